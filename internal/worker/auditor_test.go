package worker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"a11yscan/internal/plan"
	"a11yscan/internal/scan"
	"a11yscan/internal/worker"
	"a11yscan/pkg/domain"
	"a11yscan/pkg/engine"
	mockengine "a11yscan/pkg/engine/mock"
	"a11yscan/pkg/logger"
	"a11yscan/pkg/serrors"
	"a11yscan/pkg/storage"
	"a11yscan/pkg/storage/memory"

	"github.com/google/uuid"
)

func TestMain(m *testing.M) {
	logger.Setup(logger.DevelopmentEnvironment)
	m.Run()
}

// stubEngine serves a scripted sequence of progress reports.
type stubEngine struct {
	submitErr error
	reports   []engine.Progress
	calls     int
}

func (s *stubEngine) Submit(context.Context, engine.SubmitReq) (engine.SubmitRes, error) {
	if s.submitErr != nil {
		return engine.SubmitRes{}, s.submitErr
	}

	return engine.SubmitRes{ID: "audit-1"}, nil
}

func (s *stubEngine) Progress(context.Context, string) (*engine.Progress, error) {
	if s.calls < len(s.reports) {
		report := s.reports[s.calls]
		s.calls++

		return &report, nil
	}

	return &s.reports[len(s.reports)-1], nil
}

type fixture struct {
	store *memory.Memory
	scans scan.Service
	org   domain.Organization
	scan  domain.Scan
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	orgs, err := store.StoreOrganizations(ctx, domain.Organization{
		Name:     "acme",
		PlanType: domain.PlanStarter,
	})
	require.NoError(t, err)

	sites, err := store.StoreWebsites(ctx, domain.Website{
		OrganizationID: orgs[0].ID,
		URL:            "https://example.com",
		Active:         true,
	})
	require.NoError(t, err)

	scans := scan.New(store, plan.NewAdmission(store), scan.Options{})
	started, err := scans.Start(ctx, orgs[0], sites[0].ID, domain.TriggerManual, domain.ScanKindFull)
	require.NoError(t, err)

	return &fixture{store: store, scans: scans, org: orgs[0], scan: *started}
}

func makeJob(f *fixture, attempt, maxAttempts int) *river.Job[scan.FullScanArgs] {
	return &river.Job[scan.FullScanArgs]{
		JobRow: &rivertype.JobRow{ID: 1, Attempt: attempt, MaxAttempts: maxAttempts},
		Args: scan.FullScanArgs{JobPayload: scan.JobPayload{
			ScanID:    uuid.UUID(f.scan.ID),
			WebsiteID: uuid.UUID(f.scan.WebsiteID),
			URL:       "https://example.com",
			MaxPages:  100,
		}},
	}
}

func options() worker.Options {
	return worker.Options{PollInterval: time.Millisecond, PollTimeout: time.Second}
}

func intp(v int) *int { return &v }

func TestFullScanWorker_Work_Success(t *testing.T) {
	f := newFixture(t)

	eng := &stubEngine{reports: []engine.Progress{
		{Phase: engine.PhaseCrawling, Counters: domain.ScanCounters{TotalPages: intp(40)}},
		{Phase: engine.PhaseScanning, Counters: domain.ScanCounters{ScannedPages: intp(12)}},
		{Phase: engine.PhaseCompleted, Counters: domain.ScanCounters{
			Score:       intp(91),
			TotalIssues: intp(5),
			DurationMs:  intp(8000),
		}},
	}}

	w := worker.NewFullScanWorker(eng, f.scans, options())
	require.NoError(t, w.Work(context.Background(), makeJob(f, 1, 3)))

	res, err := f.scans.Result(context.Background(), f.org.ID, f.scan.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ScanStatusCompleted, res.Status)
	require.Equal(t, 91, *res.Counters.Score)
	// counters reported in earlier phases survive
	require.Equal(t, 40, *res.Counters.TotalPages)
	require.False(t, res.CompletedAt.IsZero())
}

func TestFullScanWorker_Work_EngineFailureMarksScanFailed(t *testing.T) {
	f := newFixture(t)

	eng := &stubEngine{reports: []engine.Progress{
		{Phase: engine.PhaseCrawling},
		{Phase: engine.PhaseFailed, Error: "target unreachable"},
	}}

	w := worker.NewFullScanWorker(eng, f.scans, options())
	// an engine-side failure is a scan outcome, not a job error
	require.NoError(t, w.Work(context.Background(), makeJob(f, 1, 3)))

	res, err := f.scans.Result(context.Background(), f.org.ID, f.scan.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ScanStatusFailed, res.Status)
	require.Equal(t, "target unreachable", res.ErrorMessage)
}

func TestFullScanWorker_Work_TransportErrorRetries(t *testing.T) {
	f := newFixture(t)

	eng := &stubEngine{submitErr: errors.New("connection refused")}
	w := worker.NewFullScanWorker(eng, f.scans, options())

	err := w.Work(context.Background(), makeJob(f, 1, 3))
	require.Error(t, err)

	// not the last attempt: the scan stays QUEUED for the retry
	res, resErr := f.scans.Result(context.Background(), f.org.ID, f.scan.ID)
	require.NoError(t, resErr)
	require.Equal(t, domain.ScanStatusQueued, res.Status)
}

func TestFullScanWorker_Work_FinalAttemptMarksScanFailed(t *testing.T) {
	f := newFixture(t)

	eng := &stubEngine{submitErr: errors.New("connection refused")}
	w := worker.NewFullScanWorker(eng, f.scans, options())

	err := w.Work(context.Background(), makeJob(f, 3, 3))
	require.Error(t, err)

	res, resErr := f.scans.Result(context.Background(), f.org.ID, f.scan.ID)
	require.NoError(t, resErr)
	require.Equal(t, domain.ScanStatusFailed, res.Status)
	require.Contains(t, res.ErrorMessage, "connection refused")
}

func TestFullScanWorker_Work_TerminalScanCancelsJob(t *testing.T) {
	f := newFixture(t)

	// the scan finished elsewhere before this (stale) attempt ran
	message := "superseded"
	_, err := f.scans.ReportProgress(context.Background(), f.scan.ID, storage.ScanProgress{
		Status:       domain.ScanStatusFailed,
		ErrorMessage: &message,
	})
	require.NoError(t, err)

	eng := &stubEngine{reports: []engine.Progress{{Phase: engine.PhaseCrawling}}}
	w := worker.NewFullScanWorker(eng, f.scans, options())

	err = w.Work(context.Background(), makeJob(f, 2, 3))
	require.Error(t, err)
	var cancelErr *river.JobCancelError
	require.ErrorAs(t, err, &cancelErr)
}

func TestQuickScanWorker_Work_SubmitsQuickAudit(t *testing.T) {
	f := newFixture(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	eng := mockengine.NewMockClient(ctrl)
	eng.EXPECT().
		Submit(gomock.Any(), engine.SubmitReq{URL: "https://example.com", MaxPages: 100, Quick: true}).
		Return(engine.SubmitRes{ID: "audit-q1"}, nil)
	eng.EXPECT().
		Progress(gomock.Any(), "audit-q1").
		Return(&engine.Progress{Phase: engine.PhaseCompleted}, nil)

	w := worker.NewQuickScanWorker(eng, f.scans, options())
	job := &river.Job[scan.QuickScanArgs]{
		JobRow: &rivertype.JobRow{ID: 2, Attempt: 1, MaxAttempts: 2},
		Args: scan.QuickScanArgs{JobPayload: scan.JobPayload{
			ScanID:    uuid.UUID(f.scan.ID),
			WebsiteID: uuid.UUID(f.scan.WebsiteID),
			URL:       "https://example.com",
			MaxPages:  100,
		}},
	}
	require.NoError(t, w.Work(context.Background(), job))
}

func TestFullScanWorker_Work_SubmitConflictCancels(t *testing.T) {
	f := newFixture(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	eng := mockengine.NewMockClient(ctrl)
	eng.EXPECT().
		Submit(gomock.Any(), gomock.Any()).
		Return(engine.SubmitRes{}, serrors.With(serrors.ErrConflict, "audit already running"))

	w := worker.NewFullScanWorker(eng, f.scans, options())
	err := w.Work(context.Background(), makeJob(f, 1, 3))
	require.Error(t, err)
	var cancelErr *river.JobCancelError
	require.ErrorAs(t, err, &cancelErr)
}

func TestWorkers_NextRetry_ExponentialBackoff(t *testing.T) {
	f := newFixture(t)
	w := worker.NewFullScanWorker(&stubEngine{}, f.scans, options())

	delay := time.Until(w.NextRetry(makeJob(f, 2, 3)))
	require.InDelta(t, (10 * time.Second).Seconds(), delay.Seconds(), 1)
}
