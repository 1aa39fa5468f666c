// Package scan implements the scan lifecycle: admission, enqueueing, engine
// progress tracking and reads. A scan row and its queue job are created in
// one transaction so neither can exist without the other.
package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"a11yscan/internal/config"
	"a11yscan/internal/plan"
	"a11yscan/pkg/domain"
	"a11yscan/pkg/metrics"
	"a11yscan/pkg/serrors"
	"a11yscan/pkg/storage"

	"github.com/google/uuid"
)

// Options configure how scan jobs are enqueued.
type Options struct {
	// EnqueueTimeout bounds the store-and-enqueue transaction.
	EnqueueTimeout time.Duration
}

// NewOptions constructs an Options value from the provided application config.
func NewOptions(cfg *config.Config) Options {
	return Options{
		EnqueueTimeout: cfg.Queue.EnqueueTimeout,
	}
}

// service is the concrete implementation of the Service interface. It
// coordinates admission control, persistence and job enqueueing.
type service struct {
	options   Options
	storage   storage.Storage
	admission *plan.Admission
}

// New creates a new scan Service backed by the provided storage.
func New(storage storage.Storage, admission *plan.Admission, options Options) Service {
	return &service{
		options:   options,
		storage:   storage,
		admission: admission,
	}
}

// Start admits a new scan for the website and atomically stores the scan row
// together with its queue job. When the job cannot be enqueued, the scan is
// recorded as FAILED instead of being left QUEUED without a job.
func (s *service) Start(ctx context.Context,
	org domain.Organization,
	websiteID domain.WebsiteID,
	trigger domain.ScanTrigger,
	kind domain.ScanKind) (*domain.Scan, error) {
	site, err := s.storage.WebsiteByID(ctx, org.ID, websiteID)
	if err != nil {
		return nil, fmt.Errorf("could not get website: %w", err)
	}
	if site == nil {
		return nil, serrors.With(serrors.ErrNotFound, "website not found")
	}
	if !site.Active {
		return nil, serrors.With(serrors.ErrConflict, "website is inactive")
	}

	if err := s.admission.CheckLimit(ctx, org, plan.ActionStartScan); err != nil {
		return nil, err
	}

	if kind == "" {
		kind = domain.ScanKindFull
	}
	if trigger == "" {
		trigger = domain.TriggerManual
	}
	maxPages := plan.EffectiveFor(org).MaxPagesPerScan

	if s.options.EnqueueTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.options.EnqueueTimeout)
		defer cancel()
	}

	var (
		scan          *domain.Scan
		enqueueFailed error
	)
	if err := s.storage.WithTx(ctx, func(tx storage.AllStorage) error {
		res, err := tx.StoreScans(ctx, domain.Scan{
			WebsiteID:      site.ID,
			OrganizationID: org.ID,
			Status:         domain.ScanStatusQueued,
			Trigger:        trigger,
			Kind:           kind,
		})
		if err != nil {
			return fmt.Errorf("could not store scan: %w", err)
		}
		scan = &res[0]

		if _, err := tx.AddJob(ctx, ArgsFor(kind, JobPayload{
			ScanID:    uuid.UUID(scan.ID),
			WebsiteID: uuid.UUID(site.ID),
			URL:       site.URL,
			MaxPages:  maxPages,
		}), nil); err != nil {
			enqueueFailed = err

			return fmt.Errorf("could not add job: %w", err)
		}

		return nil
	}); err != nil {
		if enqueueFailed != nil {
			s.recordEnqueueFailure(ctx, org.ID, site.ID, trigger, kind, enqueueFailed)

			return nil, serrors.Wrap(serrors.ErrUnavailable, err, "could not enqueue scan")
		}

		return nil, fmt.Errorf("could not start scan: %w", err)
	}

	metrics.ScansStarted.WithLabelValues(string(kind), string(trigger)).Inc()

	return scan, nil
}

// recordEnqueueFailure stores a FAILED scan row after the enqueue transaction
// rolled back, so the attempt stays visible in scan history. Best effort: the
// queue being down must not hide the failure from the caller.
func (s *service) recordEnqueueFailure(ctx context.Context,
	orgID domain.OrganizationID,
	websiteID domain.WebsiteID,
	trigger domain.ScanTrigger,
	kind domain.ScanKind,
	cause error) {
	now := time.Now()
	_, _ = s.storage.StoreScans(ctx, domain.Scan{
		WebsiteID:      websiteID,
		OrganizationID: orgID,
		Status:         domain.ScanStatusFailed,
		Trigger:        trigger,
		Kind:           kind,
		ErrorMessage:   fmt.Sprintf("could not enqueue scan: %v", cause),
		CompletedAt:    now,
	})
}

// Restart creates a fresh scan for the website of a terminal scan. The old
// row is never reused; restarting goes through the same admission as a new
// scan.
func (s *service) Restart(ctx context.Context,
	org domain.Organization,
	scanID domain.ScanID) (*domain.Scan, error) {
	prev, err := s.storage.ScanByID(ctx, org.ID, scanID)
	if err != nil {
		return nil, fmt.Errorf("could not get scan: %w", err)
	}
	if prev == nil {
		return nil, serrors.With(serrors.ErrNotFound, "scan not found")
	}
	if !prev.Status.Terminal() {
		return nil, serrors.With(serrors.ErrConflict, "scan is still running")
	}

	return s.Start(ctx, org, prev.WebsiteID, domain.TriggerManual, prev.Kind)
}

// ReportProgress applies an engine progress report. Terminal reports get a
// completion timestamp when the engine did not provide one; stale reports are
// ignored by the storage layer and return the unchanged row.
func (s *service) ReportProgress(ctx context.Context,
	scanID domain.ScanID,
	progress storage.ScanProgress) (*domain.Scan, error) {
	if !progress.Status.Valid() {
		return nil, serrors.With(serrors.ErrBadRequest, "invalid scan status %q", progress.Status)
	}
	if progress.Status.Terminal() && progress.CompletedAt == nil {
		now := time.Now()
		progress.CompletedAt = &now
	}

	scan, err := s.storage.ApplyScanProgress(ctx, scanID, progress)
	if err != nil {
		if errors.Is(err, storage.ErrTerminalScan) {
			return nil, serrors.Wrap(serrors.ErrConflict, err, "scan already finished")
		}

		return nil, fmt.Errorf("could not apply scan progress: %w", err)
	}
	if scan == nil {
		return nil, serrors.With(serrors.ErrNotFound, "scan not found")
	}
	if scan.Status.Terminal() && scan.Status == progress.Status {
		metrics.ScansFinished.WithLabelValues(string(scan.Status)).Inc()
	}

	return scan, nil
}

// Result fetches a single scan by ID for the given organization.
func (s *service) Result(ctx context.Context,
	orgID domain.OrganizationID,
	scanID domain.ScanID) (*domain.Scan, error) {
	res, err := s.storage.ScanByID(ctx, orgID, scanID)
	if err != nil {
		return nil, fmt.Errorf("could not get scan: %w", err)
	}
	if res == nil {
		return nil, serrors.With(serrors.ErrNotFound, "scan not found")
	}

	return res, nil
}

// OrganizationScans returns a page of scans for the organization. It supports
// cursor-based pagination using an RFC3339 timestamp string and returns the
// next cursor when more results are available.
func (s *service) OrganizationScans(ctx context.Context,
	orgID domain.OrganizationID,
	cursor string,
	limit uint) ([]domain.Scan, string, error) {
	var cursorTime time.Time
	if cursor != "" {
		t, err := time.Parse(time.RFC3339, cursor)
		if err != nil {
			return nil, "", serrors.Wrap(serrors.ErrBadRequest, err, "invalid cursor")
		}
		cursorTime = t
	}

	page, err := s.storage.OrganizationScans(ctx, orgID, cursorTime, limit)
	if err != nil {
		return nil, "", fmt.Errorf("could not get organization scans: %w", err)
	}

	var next string
	if page.NextCursor != nil {
		next = page.NextCursor.Format(time.RFC3339)
	}

	return page.Scans, next, nil
}
