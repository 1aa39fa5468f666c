package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"a11yscan/internal/scan"
	"a11yscan/pkg/domain"
	"a11yscan/pkg/engine"
	"a11yscan/pkg/logger"
	"a11yscan/pkg/serrors"
	"a11yscan/pkg/storage"

	"github.com/riverqueue/river"
	"go.uber.org/zap"
)

// Options configure how audits are driven against the engine.
type Options struct {
	// PollInterval is how often the engine is polled for progress.
	PollInterval time.Duration
	// PollTimeout bounds a single progress poll request.
	PollTimeout time.Duration
}

// auditRunner drives one audit end to end: it submits the job's website to
// the engine, polls for progress, and mirrors every report into the scan row.
// Both job kinds share this runner; they differ only in queue policy.
type auditRunner struct {
	engine  engine.Client
	scans   scan.Service
	options Options
}

// run processes one audit job. Engine-side failures (phase "failed") are a
// final scan outcome, not a job error: the scan is marked FAILED and the job
// completes. Transport errors are returned so River retries under the kind's
// policy; the last attempt marks the scan FAILED before giving up.
func (a *auditRunner) run(ctx context.Context,
	payload scan.JobPayload,
	kind domain.ScanKind,
	attempt, maxAttempts int) error {
	scanID := domain.ScanID(payload.ScanID)
	ctx = logger.WithFields(ctx,
		zap.String("scanID", payload.ScanID.String()),
		zap.String("URL", payload.URL))

	err := a.audit(ctx, scanID, payload, kind)
	if err == nil {
		return nil
	}

	// the scan finished elsewhere (restart raced us, or a stale retry)
	if errors.Is(err, serrors.ErrConflict) {
		return river.JobCancel(err) //nolint: wrapcheck
	}

	logger.Error(ctx, "audit attempt failed", zap.Error(err), zap.Int("attempt", attempt))

	if attempt >= maxAttempts {
		a.markFailed(ctx, scanID, err)

		return fmt.Errorf("audit failed after %d attempts: %w", attempt, err)
	}

	return fmt.Errorf("could not run audit: %w", err)
}

func (a *auditRunner) audit(ctx context.Context,
	scanID domain.ScanID,
	payload scan.JobPayload,
	kind domain.ScanKind) error {
	submitted, err := a.engine.Submit(ctx, engine.SubmitReq{
		URL:      payload.URL,
		MaxPages: payload.MaxPages,
		Quick:    kind == domain.ScanKindQuick,
	})
	if err != nil {
		return fmt.Errorf("could not submit audit: %w", err)
	}
	ctx = logger.WithFields(ctx, zap.String("auditID", submitted.ID))

	ticker := time.NewTicker(a.options.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("audit interrupted: %w", ctx.Err())
		case <-ticker.C:
		}

		progress, err := a.poll(ctx, submitted.ID)
		if err != nil {
			return fmt.Errorf("could not poll audit progress: %w", err)
		}

		report := storage.ScanProgress{
			Status:   progress.Phase.ScanStatus(),
			Counters: progress.Counters,
		}
		if progress.Phase == engine.PhaseFailed {
			message := progress.Error
			if message == "" {
				message = "audit failed"
			}
			report.ErrorMessage = &message
		}

		if _, err := a.scans.ReportProgress(ctx, scanID, report); err != nil {
			return fmt.Errorf("could not report progress: %w", err)
		}

		if progress.Phase.Terminal() {
			logger.Info(ctx, "audit finished", zap.String("phase", string(progress.Phase)))

			return nil
		}
	}
}

func (a *auditRunner) poll(ctx context.Context, auditID string) (*engine.Progress, error) {
	if a.options.PollTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.options.PollTimeout)
		defer cancel()
	}

	return a.engine.Progress(ctx, auditID)
}

// markFailed records the final failure on the scan row once retries are
// exhausted. Best effort: the row may already be terminal.
func (a *auditRunner) markFailed(ctx context.Context, scanID domain.ScanID, cause error) {
	message := cause.Error()
	if _, err := a.scans.ReportProgress(ctx, scanID, storage.ScanProgress{
		Status:       domain.ScanStatusFailed,
		ErrorMessage: &message,
	}); err != nil && !errors.Is(err, serrors.ErrConflict) {
		logger.Error(ctx, "could not mark scan failed", zap.Error(err))
	}
}

// FullScanWorker processes full audit jobs.
type FullScanWorker struct {
	river.WorkerDefaults[scan.FullScanArgs]

	runner *auditRunner
}

// NewFullScanWorker constructs a worker for full audits.
func NewFullScanWorker(engineClient engine.Client, scans scan.Service, options Options) *FullScanWorker {
	return &FullScanWorker{runner: &auditRunner{engine: engineClient, scans: scans, options: options}}
}

// Work executes one full audit job.
func (w *FullScanWorker) Work(ctx context.Context, job *river.Job[scan.FullScanArgs]) error {
	ctx = logger.WithFields(ctx, zap.Int64("jobID", job.ID))

	return w.runner.run(ctx, job.Args.JobPayload, domain.ScanKindFull, job.Attempt, job.MaxAttempts)
}

// NextRetry applies the full-scan backoff: base * 2^(attempt-1).
func (w *FullScanWorker) NextRetry(job *river.Job[scan.FullScanArgs]) time.Time {
	return time.Now().Add(scan.PolicyFor(domain.ScanKindFull).NextRetryDelay(job.Attempt))
}

// QuickScanWorker processes quick audit jobs.
type QuickScanWorker struct {
	river.WorkerDefaults[scan.QuickScanArgs]

	runner *auditRunner
}

// NewQuickScanWorker constructs a worker for quick audits.
func NewQuickScanWorker(engineClient engine.Client, scans scan.Service, options Options) *QuickScanWorker {
	return &QuickScanWorker{runner: &auditRunner{engine: engineClient, scans: scans, options: options}}
}

// Work executes one quick audit job.
func (w *QuickScanWorker) Work(ctx context.Context, job *river.Job[scan.QuickScanArgs]) error {
	ctx = logger.WithFields(ctx, zap.Int64("jobID", job.ID))

	return w.runner.run(ctx, job.Args.JobPayload, domain.ScanKindQuick, job.Attempt, job.MaxAttempts)
}

// NextRetry applies the quick-scan backoff: base * 2^(attempt-1).
func (w *QuickScanWorker) NextRetry(job *river.Job[scan.QuickScanArgs]) time.Time {
	return time.Now().Add(scan.PolicyFor(domain.ScanKindQuick).NextRetryDelay(job.Attempt))
}
