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

const scansTable = "scans"

var terminalStatuses = []string{
	string(domain.ScanStatusCompleted),
	string(domain.ScanStatusFailed),
}

func (p *PgSQL) StoreScans(ctx context.Context, scans ...domain.Scan) ([]domain.Scan, error) {
	if len(scans) == 0 {
		return nil, nil
	}

	rows := make([]PgScan, len(scans))
	for i := range scans {
		rows[i].FromDomain(scans[i])
	}

	var result []PgScan
	if err := p.Builder.Insert(scansTable).
		Rows(rows).
		Returning(&PgScan{}).
		Executor().ScanStructsContext(ctx, &result); err != nil {
		return nil, fmt.Errorf("could not store scans into pg: %w", err)
	}

	out := make([]domain.Scan, 0, len(result))
	for i := range result {
		out = append(out, *result[i].ToDomain())
	}

	return out, nil
}

// ScanByID returns a scan by ID scoped to the organization, or nil.
func (p *PgSQL) ScanByID(ctx context.Context,
	orgID domain.OrganizationID,
	id domain.ScanID) (*domain.Scan, error) {
	var row PgScan
	found, err := p.Builder.From(scansTable).
		Where(
			goqu.I("id").Eq(uuid.UUID(id)),
			goqu.I("organization_id").Eq(uuid.UUID(orgID)),
		).
		Executor().ScanStructContext(ctx, &row)
	if err != nil {
		return nil, fmt.Errorf("could not fetch scan from pg: %w", err)
	}
	if !found {
		return nil, nil
	}

	return row.ToDomain(), nil
}

// ApplyScanProgress applies a progress report to a single scan. The UPDATE is
// guarded so it only matches rows whose current status may legally transition
// to the reported one: terminal rows are never rewritten and stale reports
// that would move the status backwards match nothing. When the guard filters
// the row out, the scan is re-read to distinguish "terminal"
// (storage.ErrTerminalScan), "stale report" (current row, unchanged) and
// "missing" (nil, nil).
func (p *PgSQL) ApplyScanProgress(ctx context.Context,
	id domain.ScanID,
	progress storage.ScanProgress) (*domain.Scan, error) {
	rec := goqu.Record{
		"status": string(progress.Status),
	}
	applyCounter := func(column string, v *int) {
		if v != nil {
			rec[column] = *v
		}
	}
	applyCounter("score", progress.Counters.Score)
	applyCounter("total_pages", progress.Counters.TotalPages)
	applyCounter("scanned_pages", progress.Counters.ScannedPages)
	applyCounter("total_issues", progress.Counters.TotalIssues)
	applyCounter("critical_issues", progress.Counters.CriticalIssues)
	applyCounter("serious_issues", progress.Counters.SeriousIssues)
	applyCounter("moderate_issues", progress.Counters.ModerateIssues)
	applyCounter("minor_issues", progress.Counters.MinorIssues)
	applyCounter("duration_ms", progress.Counters.DurationMs)
	if progress.ErrorMessage != nil {
		rec["error_message"] = *progress.ErrorMessage
	}
	if progress.CompletedAt != nil {
		rec["completed_at"] = *progress.CompletedAt
	}

	// statuses the row may currently be in for this report to apply
	var from []string
	for _, s := range []domain.ScanStatus{
		domain.ScanStatusQueued,
		domain.ScanStatusCrawling,
		domain.ScanStatusScanning,
		domain.ScanStatusAnalyzing,
	} {
		if domain.CanTransition(s, progress.Status) {
			from = append(from, string(s))
		}
	}

	var row PgScan
	if len(from) > 0 {
		found, err := p.Builder.Update(scansTable).
			Set(rec).
			Where(
				goqu.I("id").Eq(uuid.UUID(id)),
				goqu.I("status").In(from),
			).
			Returning(&PgScan{}).
			Executor().ScanStructContext(ctx, &row)
		if err != nil {
			return nil, fmt.Errorf("could not update scan in pg: %w", err)
		}
		if found {
			return row.ToDomain(), nil
		}
	}

	// Nothing updated: the scan is missing, terminal, or the report is stale.
	exists, err := p.Builder.From(scansTable).
		Where(goqu.I("id").Eq(uuid.UUID(id))).
		Executor().ScanStructContext(ctx, &row)
	if err != nil {
		return nil, fmt.Errorf("could not fetch scan from pg: %w", err)
	}
	if !exists {
		return nil, nil
	}
	if domain.ScanStatus(row.Status).Terminal() {
		return nil, storage.ErrTerminalScan
	}

	return row.ToDomain(), nil
}

// NonTerminalScanCount returns the number of in-flight scans for the
// organization.
func (p *PgSQL) NonTerminalScanCount(ctx context.Context, orgID domain.OrganizationID) (int64, error) {
	count, err := p.Builder.From(scansTable).
		Where(
			goqu.I("organization_id").Eq(uuid.UUID(orgID)),
			goqu.I("status").NotIn(terminalStatuses),
		).
		CountContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("could not count scans in pg: %w", err)
	}

	return count, nil
}

// HasNonTerminalScan reports whether any in-flight scan exists for a website.
func (p *PgSQL) HasNonTerminalScan(ctx context.Context, websiteID domain.WebsiteID) (bool, error) {
	count, err := p.Builder.From(scansTable).
		Where(
			goqu.I("website_id").Eq(uuid.UUID(websiteID)),
			goqu.I("status").NotIn(terminalStatuses),
		).
		Limit(1).
		CountContext(ctx)
	if err != nil {
		return false, fmt.Errorf("could not count scans in pg: %w", err)
	}

	return count > 0, nil
}

// OrganizationScans returns a page of the organization's scans created before
// the optional cursor, newest first. limit+1 rows are fetched to decide
// whether a next page exists.
func (p *PgSQL) OrganizationScans(ctx context.Context,
	orgID domain.OrganizationID,
	cursor time.Time,
	limit uint) (storage.OrganizationScans, error) {
	query := p.Builder.From(scansTable).
		Where(goqu.I("organization_id").Eq(uuid.UUID(orgID)))
	if !cursor.IsZero() {
		query = query.Where(goqu.I("created_at").Lt(cursor))
	}

	var rows []PgScan
	if err := query.
		Order(goqu.I("created_at").Desc()).
		Limit(limit + 1).
		Executor().ScanStructsContext(ctx, &rows); err != nil {
		return storage.OrganizationScans{}, fmt.Errorf("could not fetch scans from pg: %w", err)
	}

	result := storage.OrganizationScans{}
	if uint(len(rows)) > limit {
		rows = rows[:limit]
		next := rows[len(rows)-1].CreatedAt
		result.NextCursor = &next
	}

	result.Scans = make([]domain.Scan, 0, len(rows))
	for i := range rows {
		result.Scans = append(result.Scans, *rows[i].ToDomain())
	}

	return result, nil
}
