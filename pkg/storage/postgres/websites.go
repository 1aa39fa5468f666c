package postgres

import (
	"context"
	"fmt"

	"a11yscan/pkg/domain"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
)

const websitesTable = "websites"

// notDeleted is the guard shared by all website reads: soft-deleted rows are
// invisible to every query except the delete itself.
func notDeleted() goqu.Expression {
	return goqu.I("deleted_at").IsNull()
}

func (p *PgSQL) StoreWebsites(ctx context.Context, sites ...domain.Website) ([]domain.Website, error) {
	if len(sites) == 0 {
		return nil, nil
	}

	rows := make([]PgWebsite, len(sites))
	for i := range sites {
		rows[i].FromDomain(sites[i])
	}

	var result []PgWebsite
	if err := p.Builder.Insert(websitesTable).
		Rows(rows).
		Returning(&PgWebsite{}).
		Executor().ScanStructsContext(ctx, &result); err != nil {
		return nil, fmt.Errorf("could not store websites into pg: %w", err)
	}

	out := make([]domain.Website, 0, len(result))
	for i := range result {
		out = append(out, *result[i].ToDomain())
	}

	return out, nil
}

// WebsiteByID returns a live website by ID scoped to the organization, or nil.
func (p *PgSQL) WebsiteByID(ctx context.Context,
	orgID domain.OrganizationID,
	id domain.WebsiteID) (*domain.Website, error) {
	var row PgWebsite
	found, err := p.Builder.From(websitesTable).
		Where(
			goqu.I("id").Eq(uuid.UUID(id)),
			goqu.I("organization_id").Eq(uuid.UUID(orgID)),
			notDeleted(),
		).
		Executor().ScanStructContext(ctx, &row)
	if err != nil {
		return nil, fmt.Errorf("could not fetch website from pg: %w", err)
	}
	if !found {
		return nil, nil
	}

	return row.ToDomain(), nil
}

// OrganizationWebsites lists all live websites of the organization, newest
// first.
func (p *PgSQL) OrganizationWebsites(ctx context.Context,
	orgID domain.OrganizationID) ([]domain.Website, error) {
	var rows []PgWebsite
	if err := p.Builder.From(websitesTable).
		Where(
			goqu.I("organization_id").Eq(uuid.UUID(orgID)),
			notDeleted(),
		).
		Order(goqu.I("created_at").Desc()).
		Executor().ScanStructsContext(ctx, &rows); err != nil {
		return nil, fmt.Errorf("could not fetch websites from pg: %w", err)
	}

	out := make([]domain.Website, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].ToDomain())
	}

	return out, nil
}

// WebsiteCount returns the number of live websites in the organization.
func (p *PgSQL) WebsiteCount(ctx context.Context, orgID domain.OrganizationID) (int64, error) {
	count, err := p.Builder.From(websitesTable).
		Where(
			goqu.I("organization_id").Eq(uuid.UUID(orgID)),
			notDeleted(),
		).
		CountContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("could not count websites in pg: %w", err)
	}

	return count, nil
}

// DeleteWebsite performs a soft delete by stamping deleted_at and returns the
// deleted row, or nil when no live row matched.
func (p *PgSQL) DeleteWebsite(ctx context.Context,
	orgID domain.OrganizationID,
	id domain.WebsiteID) (*domain.Website, error) {
	var row PgWebsite
	found, err := p.Builder.Update(websitesTable).
		Set(goqu.Record{
			"deleted_at": goqu.L("CURRENT_TIMESTAMP"),
			"active":     false,
			"updated_at": goqu.L("CURRENT_TIMESTAMP"),
		}).
		Where(
			goqu.I("id").Eq(uuid.UUID(id)),
			goqu.I("organization_id").Eq(uuid.UUID(orgID)),
			notDeleted(),
		).
		Returning(&PgWebsite{}).
		Executor().ScanStructContext(ctx, &row)
	if err != nil {
		return nil, fmt.Errorf("could not delete website in pg: %w", err)
	}
	if !found {
		return nil, nil
	}

	return row.ToDomain(), nil
}
