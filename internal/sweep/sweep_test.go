package sweep_test

import (
	"context"
	"testing"
	"time"

	"a11yscan/internal/plan"
	"a11yscan/internal/scan"
	"a11yscan/internal/sweep"
	"a11yscan/pkg/domain"
	"a11yscan/pkg/logger"
	"a11yscan/pkg/mailer"
	"a11yscan/pkg/storage"
	"a11yscan/pkg/storage/memory"

	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.Setup(logger.DevelopmentEnvironment)
	m.Run()
}

func newScheduler(t *testing.T, store *memory.Memory) *sweep.Scheduler {
	t.Helper()
	scans := scan.New(store, plan.NewAdmission(store), scan.Options{})

	return sweep.NewScheduler(store, scans, sweep.Options{
		Parallelism: 4,
		ItemTimeout: time.Second,
	})
}

func seedOrgWithSite(t *testing.T,
	store *memory.Memory,
	planType domain.PlanType) (domain.Organization, domain.Website) {
	t.Helper()
	ctx := context.Background()

	orgs, err := store.StoreOrganizations(ctx, domain.Organization{
		Name:          "acme",
		PlanType:      planType,
		BillingStatus: domain.BillingActive,
	})
	require.NoError(t, err)

	sites, err := store.StoreWebsites(ctx, domain.Website{
		OrganizationID: orgs[0].ID,
		URL:            "https://example.com",
		Active:         true,
	})
	require.NoError(t, err)

	return orgs[0], sites[0]
}

func TestRunSchedules_DispatchesDueSchedule(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	org, site := seedOrgWithSite(t, store, domain.PlanStarter)

	schedules, err := store.StoreSchedules(ctx, domain.ScanSchedule{
		WebsiteID:      site.ID,
		OrganizationID: org.ID,
		Frequency:      domain.FrequencyWeekly,
		Active:         true,
		// zero NextRunAt: never ran, immediately due
	})
	require.NoError(t, err)

	now := time.Now()
	summary, err := newScheduler(t, store).RunSchedules(ctx, now)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Processed)
	require.Empty(t, summary.Errors)

	// a scheduled FULL scan exists
	page, err := store.OrganizationScans(ctx, org.ID, time.Time{}, 10)
	require.NoError(t, err)
	require.Len(t, page.Scans, 1)
	require.Equal(t, domain.TriggerSchedule, page.Scans[0].Trigger)
	require.Equal(t, domain.ScanKindFull, page.Scans[0].Kind)

	// bookkeeping advanced by exactly one interval
	updated, err := store.ScheduleByID(ctx, org.ID, schedules[0].ID)
	require.NoError(t, err)
	require.WithinDuration(t, now, updated.LastRunAt, time.Second)
	require.WithinDuration(t, now.AddDate(0, 0, 7), updated.NextRunAt, time.Second)
}

func TestRunSchedules_SkipsNotDue(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	org, site := seedOrgWithSite(t, store, domain.PlanStarter)

	_, err := store.StoreSchedules(ctx, domain.ScanSchedule{
		WebsiteID:      site.ID,
		OrganizationID: org.ID,
		Frequency:      domain.FrequencyWeekly,
		Active:         true,
		NextRunAt:      time.Now().AddDate(0, 0, 3),
	})
	require.NoError(t, err)

	summary, err := newScheduler(t, store).RunSchedules(ctx, time.Now())
	require.NoError(t, err)
	require.Zero(t, summary.Processed)
	require.Zero(t, summary.Skipped)
}

func TestRunSchedules_SkipsDisallowedFrequency(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	// STARTER does not allow daily schedules; this one predates a downgrade
	org, site := seedOrgWithSite(t, store, domain.PlanStarter)

	_, err := store.StoreSchedules(ctx, domain.ScanSchedule{
		WebsiteID:      site.ID,
		OrganizationID: org.ID,
		Frequency:      domain.FrequencyDaily,
		Active:         true,
	})
	require.NoError(t, err)

	summary, err := newScheduler(t, store).RunSchedules(ctx, time.Now())
	require.NoError(t, err)
	require.Zero(t, summary.Processed)
	require.Equal(t, 1, summary.Skipped)

	page, err := store.OrganizationScans(ctx, org.ID, time.Time{}, 10)
	require.NoError(t, err)
	require.Empty(t, page.Scans)
}

func TestRunSchedules_SkipsInFlightWebsite(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	org, site := seedOrgWithSite(t, store, domain.PlanProfessional)

	_, err := store.StoreScans(ctx, domain.Scan{
		WebsiteID:      site.ID,
		OrganizationID: org.ID,
		Status:         domain.ScanStatusScanning,
	})
	require.NoError(t, err)

	_, err = store.StoreSchedules(ctx, domain.ScanSchedule{
		WebsiteID:      site.ID,
		OrganizationID: org.ID,
		Frequency:      domain.FrequencyDaily,
		Active:         true,
	})
	require.NoError(t, err)

	summary, err := newScheduler(t, store).RunSchedules(ctx, time.Now())
	require.NoError(t, err)
	require.Zero(t, summary.Processed)
	require.Equal(t, 1, summary.Skipped)
}

func TestRunSchedules_SkipsInactiveWebsite(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	org, site := seedOrgWithSite(t, store, domain.PlanProfessional)

	_, err := store.StoreSchedules(ctx, domain.ScanSchedule{
		WebsiteID:      site.ID,
		OrganizationID: org.ID,
		Frequency:      domain.FrequencyDaily,
		Active:         true,
	})
	require.NoError(t, err)

	_, err = store.DeleteWebsite(ctx, org.ID, site.ID)
	require.NoError(t, err)

	summary, err := newScheduler(t, store).RunSchedules(ctx, time.Now())
	require.NoError(t, err)
	require.Zero(t, summary.Processed)
	require.Equal(t, 1, summary.Skipped)
}

type recordingSender struct {
	sent []mailer.Message
}

func (r *recordingSender) Send(_ context.Context, msg mailer.Message) error {
	r.sent = append(r.sent, msg)

	return nil
}

func TestRunExpiry_DowngradesLapsedOrganization(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	orgs, err := store.StoreOrganizations(ctx, domain.Organization{
		Name:                "acme",
		PlanType:            domain.PlanProfessional,
		BillingStatus:       domain.BillingGrace,
		MaxWebsitesOverride: 99,
		PeriodEnd:           time.Now().AddDate(0, 0, -1),
	})
	require.NoError(t, err)
	org := orgs[0]

	_, err = store.StoreUsers(ctx, domain.User{
		OrganizationID: org.ID,
		Email:          "owner@acme.test",
		Role:           domain.RoleOwner,
	})
	require.NoError(t, err)

	sender := &recordingSender{}
	expiry := sweep.NewExpiry(store, sender, sweep.Options{Parallelism: 2, ItemTimeout: time.Second})

	summary, err := expiry.RunExpiry(ctx, time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, summary.Processed)

	updated, err := store.OrganizationByID(ctx, org.ID)
	require.NoError(t, err)
	require.Equal(t, domain.PlanFree, updated.PlanType)
	require.Equal(t, domain.BillingActive, updated.BillingStatus)
	require.Zero(t, updated.MaxWebsitesOverride)

	require.Len(t, sender.sent, 1)
	require.Equal(t, "owner@acme.test", sender.sent[0].ToEmail)
}

func TestRunExpiry_LeavesLiveSubscriptionsAlone(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	// grace, but the subscription reference is still stored: a renewal may
	// yet arrive, so the sweep must not touch it
	sub := "sub_1"
	orgs, err := store.StoreOrganizations(ctx, domain.Organization{
		Name:          "acme",
		PlanType:      domain.PlanStarter,
		BillingStatus: domain.BillingGrace,
		PeriodEnd:     time.Now().AddDate(0, 0, -1),
	})
	require.NoError(t, err)
	_, err = store.UpdateOrganizationBilling(ctx, orgs[0].ID, storage.OrganizationBillingUpdates{
		PaymentSubscriptionID: &sub,
	})
	require.NoError(t, err)

	expiry := sweep.NewExpiry(store, nil, sweep.Options{Parallelism: 2})
	summary, err := expiry.RunExpiry(ctx, time.Now())
	require.NoError(t, err)
	require.Zero(t, summary.Processed)

	updated, err := store.OrganizationByID(ctx, orgs[0].ID)
	require.NoError(t, err)
	require.Equal(t, domain.PlanStarter, updated.PlanType)
}
