package sweep

import (
	"context"
	"errors"
	"fmt"
	"time"

	"a11yscan/internal/config"
	"a11yscan/internal/plan"
	"a11yscan/internal/scan"
	"a11yscan/pkg/domain"
	"a11yscan/pkg/logger"
	"a11yscan/pkg/serrors"
	"a11yscan/pkg/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Scheduler runs the scheduling sweep: it dispatches scans for all due
// schedules. The sweep is the single writer of schedule run bookkeeping.
type Scheduler struct {
	storage storage.Storage
	scans   scan.Service
	options Options
}

// NewScheduler creates a scheduling sweep over the given storage and scan
// service.
func NewScheduler(storage storage.Storage, scans scan.Service, options Options) *Scheduler {
	return &Scheduler{
		storage: storage,
		scans:   scans,
		options: options,
	}
}

// NewOptions constructs sweep Options from the application config.
func NewOptions(cfg *config.Config) Options {
	return Options{
		Parallelism: cfg.Cron.Parallelism,
		ItemTimeout: cfg.Cron.ItemTimeout,
	}
}

// RunSchedules processes all schedules due at the given time. A schedule is
// skipped when its website is gone or inactive, when the organization's tier
// no longer allows its frequency, or when a scan is already in flight for
// the website. Dispatched schedules advance to next_run = now + interval.
func (s *Scheduler) RunSchedules(ctx context.Context, now time.Time) (Summary, error) {
	due, err := s.storage.DueSchedules(ctx, now)
	if err != nil {
		return Summary{}, fmt.Errorf("could not list due schedules: %w", err)
	}

	summary := forEach(ctx, due, s.options,
		func(item domain.ScanSchedule) string { return uuid.UUID(item.ID).String() },
		func(ctx context.Context, item domain.ScanSchedule) (Outcome, error) {
			return s.runSchedule(ctx, item, now)
		})

	observe("schedules", summary)
	logger.Info(ctx, "scheduling sweep finished",
		zap.Int("due", len(due)),
		zap.Int("scheduled", summary.Processed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("errors", len(summary.Errors)))

	return summary, nil
}

func (s *Scheduler) runSchedule(ctx context.Context,
	schedule domain.ScanSchedule,
	now time.Time) (Outcome, error) {
	org, err := s.storage.OrganizationByID(ctx, schedule.OrganizationID)
	if err != nil {
		return OutcomeSkipped, fmt.Errorf("could not get organization: %w", err)
	}
	if org == nil {
		return OutcomeSkipped, nil
	}

	site, err := s.storage.WebsiteByID(ctx, schedule.OrganizationID, schedule.WebsiteID)
	if err != nil {
		return OutcomeSkipped, fmt.Errorf("could not get website: %w", err)
	}
	if site == nil || !site.Active {
		return OutcomeSkipped, nil
	}

	// the tier may have been downgraded since the schedule was created
	if !plan.FrequencyAllowed(org.PlanType, schedule.Frequency) {
		return OutcomeSkipped, nil
	}

	inFlight, err := s.storage.HasNonTerminalScan(ctx, schedule.WebsiteID)
	if err != nil {
		return OutcomeSkipped, fmt.Errorf("could not check running scans: %w", err)
	}
	if inFlight {
		return OutcomeSkipped, nil
	}

	if _, err := s.scans.Start(ctx, *org, schedule.WebsiteID,
		domain.TriggerSchedule, domain.ScanKindFull); err != nil {
		// the concurrency slot filled up since the check; try again next pass
		if errors.Is(err, serrors.ErrPlanLimit) {
			return OutcomeSkipped, nil
		}

		return OutcomeSkipped, fmt.Errorf("could not start scan: %w", err)
	}

	if err := s.storage.MarkScheduleRun(ctx, schedule.ID, now, schedule.Frequency.Next(now)); err != nil {
		return OutcomeSkipped, fmt.Errorf("could not advance schedule: %w", err)
	}

	return OutcomeProcessed, nil
}
