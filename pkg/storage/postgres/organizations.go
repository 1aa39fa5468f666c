package postgres

import (
	"context"
	"fmt"
	"time"

	"a11yscan/pkg/domain"
	"a11yscan/pkg/storage"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
)

const (
	organizationsTable = "organizations"
	usersTable         = "users"
	apiKeysTable       = "api_keys"
)

func (p *PgSQL) StoreOrganizations(ctx context.Context, orgs ...domain.Organization) ([]domain.Organization, error) {
	if len(orgs) == 0 {
		return nil, nil
	}

	rows := make([]PgOrganization, len(orgs))
	for i := range orgs {
		rows[i].FromDomain(orgs[i])
	}

	var result []PgOrganization
	if err := p.Builder.Insert(organizationsTable).
		Rows(rows).
		Returning(&PgOrganization{}).
		Executor().ScanStructsContext(ctx, &result); err != nil {
		return nil, fmt.Errorf("could not store organizations into pg: %w", err)
	}

	out := make([]domain.Organization, 0, len(result))
	for i := range result {
		out = append(out, *result[i].ToDomain())
	}

	return out, nil
}

// OrganizationByID returns an organization by its ID, or nil when not found.
func (p *PgSQL) OrganizationByID(ctx context.Context, id domain.OrganizationID) (*domain.Organization, error) {
	var row PgOrganization
	found, err := p.Builder.From(organizationsTable).
		Where(goqu.I("id").Eq(uuid.UUID(id))).
		Executor().ScanStructContext(ctx, &row)
	if err != nil {
		return nil, fmt.Errorf("could not fetch organization from pg: %w", err)
	}
	if !found {
		return nil, nil
	}

	return row.ToDomain(), nil
}

// OrganizationByCustomerID returns the organization holding the given payment
// processor customer reference, or nil when no organization stores it.
func (p *PgSQL) OrganizationByCustomerID(ctx context.Context, customerID string) (*domain.Organization, error) {
	var row PgOrganization
	found, err := p.Builder.From(organizationsTable).
		Where(goqu.I("payment_customer_id").Eq(customerID)).
		Executor().ScanStructContext(ctx, &row)
	if err != nil {
		return nil, fmt.Errorf("could not fetch organization by customer id from pg: %w", err)
	}
	if !found {
		return nil, nil
	}

	return row.ToDomain(), nil
}

// UpdateOrganizationBilling applies the provided billing fields to a single
// organization in one UPDATE and returns the updated row. Only non-nil fields
// are set; updated_at is set automatically.
func (p *PgSQL) UpdateOrganizationBilling(ctx context.Context,
	id domain.OrganizationID,
	updates storage.OrganizationBillingUpdates) (*domain.Organization, error) {
	rec := goqu.Record{
		"updated_at": goqu.L("CURRENT_TIMESTAMP"),
	}
	if updates.PlanType != nil {
		rec["plan_type"] = string(*updates.PlanType)
	}
	if updates.BillingStatus != nil {
		rec["billing_status"] = string(*updates.BillingStatus)
	}
	if updates.PaymentCustomerID != nil {
		rec["payment_customer_id"] = *updates.PaymentCustomerID
	}
	if updates.PaymentSubscriptionID != nil {
		if *updates.PaymentSubscriptionID == "" {
			// empty string clears the subscription reference
			rec["payment_subscription_id"] = goqu.L("NULL")
		} else {
			rec["payment_subscription_id"] = *updates.PaymentSubscriptionID
		}
	}
	if updates.PeriodEnd != nil {
		rec["period_end"] = *updates.PeriodEnd
	}
	if updates.ClearOverrides {
		rec["max_websites_override"] = goqu.L("NULL")
		rec["max_pages_override"] = goqu.L("NULL")
	}

	var row PgOrganization
	found, err := p.Builder.Update(organizationsTable).
		Set(rec).
		Where(goqu.I("id").Eq(uuid.UUID(id))).
		Returning(&PgOrganization{}).
		Executor().ScanStructContext(ctx, &row)
	if err != nil {
		return nil, fmt.Errorf("could not update organization billing in pg: %w", err)
	}
	if !found {
		return nil, nil
	}

	return row.ToDomain(), nil
}

// ExpiredOrganizations returns organizations whose paid access has lapsed:
// non-free tier, no stored subscription reference and period_end before the
// given time.
func (p *PgSQL) ExpiredOrganizations(ctx context.Context, before time.Time) ([]domain.Organization, error) {
	var rows []PgOrganization
	if err := p.Builder.From(organizationsTable).
		Where(
			goqu.I("plan_type").Neq(string(domain.PlanFree)),
			goqu.I("payment_subscription_id").IsNull(),
			goqu.I("period_end").IsNotNull(),
			goqu.I("period_end").Lt(before),
		).
		Order(goqu.I("period_end").Asc()).
		Executor().ScanStructsContext(ctx, &rows); err != nil {
		return nil, fmt.Errorf("could not fetch expired organizations from pg: %w", err)
	}

	out := make([]domain.Organization, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].ToDomain())
	}

	return out, nil
}

func (p *PgSQL) StoreUsers(ctx context.Context, users ...domain.User) ([]domain.User, error) {
	if len(users) == 0 {
		return nil, nil
	}

	rows := make([]PgUser, len(users))
	for i := range users {
		rows[i].FromDomain(users[i])
	}

	var result []PgUser
	if err := p.Builder.Insert(usersTable).
		Rows(rows).
		Returning(&PgUser{}).
		Executor().ScanStructsContext(ctx, &result); err != nil {
		return nil, fmt.Errorf("could not store users into pg: %w", err)
	}

	out := make([]domain.User, 0, len(result))
	for i := range result {
		out = append(out, *result[i].ToDomain())
	}

	return out, nil
}

// UserByID returns a user by ID, or nil when not found.
func (p *PgSQL) UserByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	var row PgUser
	found, err := p.Builder.From(usersTable).
		Where(goqu.I("id").Eq(uuid.UUID(id))).
		Executor().ScanStructContext(ctx, &row)
	if err != nil {
		return nil, fmt.Errorf("could not fetch user from pg: %w", err)
	}
	if !found {
		return nil, nil
	}

	return row.ToDomain(), nil
}

// OrganizationOwner returns the owner of the organization, or nil.
func (p *PgSQL) OrganizationOwner(ctx context.Context,
	orgID domain.OrganizationID) (*domain.User, error) {
	var row PgUser
	found, err := p.Builder.From(usersTable).
		Where(
			goqu.I("organization_id").Eq(uuid.UUID(orgID)),
			goqu.I("role").Eq(string(domain.RoleOwner)),
		).
		Limit(1).
		Executor().ScanStructContext(ctx, &row)
	if err != nil {
		return nil, fmt.Errorf("could not fetch organization owner from pg: %w", err)
	}
	if !found {
		return nil, nil
	}

	return row.ToDomain(), nil
}

// MemberCount returns the number of users in the organization.
func (p *PgSQL) MemberCount(ctx context.Context, orgID domain.OrganizationID) (int64, error) {
	count, err := p.Builder.From(usersTable).
		Where(goqu.I("organization_id").Eq(uuid.UUID(orgID))).
		CountContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("could not count members in pg: %w", err)
	}

	return count, nil
}

func (p *PgSQL) StoreApiKeys(ctx context.Context, keys ...domain.ApiKey) ([]domain.ApiKey, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	rows := make([]PgApiKey, len(keys))
	for i := range keys {
		rows[i].FromDomain(keys[i])
	}

	var result []PgApiKey
	if err := p.Builder.Insert(apiKeysTable).
		Rows(rows).
		Returning(&PgApiKey{}).
		Executor().ScanStructsContext(ctx, &result); err != nil {
		return nil, fmt.Errorf("could not store api keys into pg: %w", err)
	}

	out := make([]domain.ApiKey, 0, len(result))
	for i := range result {
		out = append(out, *result[i].ToDomain())
	}

	return out, nil
}

// ApiKeyByTokenHash returns the API key whose stored hash matches, or nil.
func (p *PgSQL) ApiKeyByTokenHash(ctx context.Context, hash string) (*domain.ApiKey, error) {
	var row PgApiKey
	found, err := p.Builder.From(apiKeysTable).
		Where(goqu.I("token_hash").Eq(hash)).
		Executor().ScanStructContext(ctx, &row)
	if err != nil {
		return nil, fmt.Errorf("could not fetch api key from pg: %w", err)
	}
	if !found {
		return nil, nil
	}

	return row.ToDomain(), nil
}

// TouchApiKey stamps the key's last_used_at.
func (p *PgSQL) TouchApiKey(ctx context.Context, id domain.ApiKeyID) error {
	_, err := p.Builder.Update(apiKeysTable).
		Set(goqu.Record{"last_used_at": goqu.L("CURRENT_TIMESTAMP")}).
		Where(goqu.I("id").Eq(uuid.UUID(id))).
		Executor().ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("could not touch api key in pg: %w", err)
	}

	return nil
}
