package storage

import (
	"context"
	"time"

	"a11yscan/pkg/domain"
)

// ScheduleStorage defines persistence operations for recurring scan
// schedules. Run bookkeeping (last/next run) is only advanced through
// MarkScheduleRun so the scheduling sweep stays the single writer.
type ScheduleStorage interface {
	// StoreSchedules inserts one or more schedules and returns the stored rows.
	StoreSchedules(ctx context.Context, schedules ...domain.ScanSchedule) ([]domain.ScanSchedule, error)
	// ScheduleByID fetches a schedule by ID scoped to the given organization.
	// Returns nil when not found.
	ScheduleByID(ctx context.Context, orgID domain.OrganizationID, id domain.ScheduleID) (*domain.ScanSchedule, error)
	// OrganizationSchedules lists all schedules of an organization.
	OrganizationSchedules(ctx context.Context, orgID domain.OrganizationID) ([]domain.ScanSchedule, error)
	// DueSchedules returns all active schedules that are due at the given
	// time: next_run_at <= due, or next_run_at is NULL (never ran).
	DueSchedules(ctx context.Context, due time.Time) ([]domain.ScanSchedule, error)
	// MarkScheduleRun advances a schedule's run bookkeeping to the given
	// last/next pair and sets updated_at.
	MarkScheduleRun(ctx context.Context, id domain.ScheduleID, lastRun, nextRun time.Time) error
}
