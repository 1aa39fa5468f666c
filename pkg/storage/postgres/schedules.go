package postgres

import (
	"context"
	"fmt"
	"time"

	"a11yscan/pkg/domain"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
)

const schedulesTable = "scan_schedules"

func (p *PgSQL) StoreSchedules(ctx context.Context,
	schedules ...domain.ScanSchedule) ([]domain.ScanSchedule, error) {
	if len(schedules) == 0 {
		return nil, nil
	}

	rows := make([]PgScanSchedule, len(schedules))
	for i := range schedules {
		rows[i].FromDomain(schedules[i])
	}

	var result []PgScanSchedule
	if err := p.Builder.Insert(schedulesTable).
		Rows(rows).
		Returning(&PgScanSchedule{}).
		Executor().ScanStructsContext(ctx, &result); err != nil {
		return nil, fmt.Errorf("could not store schedules into pg: %w", err)
	}

	out := make([]domain.ScanSchedule, 0, len(result))
	for i := range result {
		out = append(out, *result[i].ToDomain())
	}

	return out, nil
}

// ScheduleByID returns a schedule by ID scoped to the organization, or nil.
func (p *PgSQL) ScheduleByID(ctx context.Context,
	orgID domain.OrganizationID,
	id domain.ScheduleID) (*domain.ScanSchedule, error) {
	var row PgScanSchedule
	found, err := p.Builder.From(schedulesTable).
		Where(
			goqu.I("id").Eq(uuid.UUID(id)),
			goqu.I("organization_id").Eq(uuid.UUID(orgID)),
		).
		Executor().ScanStructContext(ctx, &row)
	if err != nil {
		return nil, fmt.Errorf("could not fetch schedule from pg: %w", err)
	}
	if !found {
		return nil, nil
	}

	return row.ToDomain(), nil
}

// OrganizationSchedules lists all schedules of the organization.
func (p *PgSQL) OrganizationSchedules(ctx context.Context,
	orgID domain.OrganizationID) ([]domain.ScanSchedule, error) {
	var rows []PgScanSchedule
	if err := p.Builder.From(schedulesTable).
		Where(goqu.I("organization_id").Eq(uuid.UUID(orgID))).
		Order(goqu.I("created_at").Desc()).
		Executor().ScanStructsContext(ctx, &rows); err != nil {
		return nil, fmt.Errorf("could not fetch schedules from pg: %w", err)
	}

	out := make([]domain.ScanSchedule, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].ToDomain())
	}

	return out, nil
}

// DueSchedules returns active schedules whose next_run_at is at or before the
// given time. A NULL next_run_at means the schedule never ran and is due
// immediately.
func (p *PgSQL) DueSchedules(ctx context.Context, due time.Time) ([]domain.ScanSchedule, error) {
	var rows []PgScanSchedule
	if err := p.Builder.From(schedulesTable).
		Where(
			goqu.I("active").IsTrue(),
			goqu.Or(
				goqu.I("next_run_at").IsNull(),
				goqu.I("next_run_at").Lte(due),
			),
		).
		Order(goqu.I("next_run_at").Asc().NullsFirst()).
		Executor().ScanStructsContext(ctx, &rows); err != nil {
		return nil, fmt.Errorf("could not fetch due schedules from pg: %w", err)
	}

	out := make([]domain.ScanSchedule, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].ToDomain())
	}

	return out, nil
}

// MarkScheduleRun advances a schedule's run bookkeeping.
func (p *PgSQL) MarkScheduleRun(ctx context.Context,
	id domain.ScheduleID,
	lastRun, nextRun time.Time) error {
	_, err := p.Builder.Update(schedulesTable).
		Set(goqu.Record{
			"last_run_at": lastRun,
			"next_run_at": nextRun,
			"updated_at":  goqu.L("CURRENT_TIMESTAMP"),
		}).
		Where(goqu.I("id").Eq(uuid.UUID(id))).
		Executor().ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("could not mark schedule run in pg: %w", err)
	}

	return nil
}
