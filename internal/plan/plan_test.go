package plan_test

import (
	"context"
	"errors"
	"testing"

	"a11yscan/internal/plan"
	"a11yscan/pkg/domain"
	"a11yscan/pkg/serrors"
	"a11yscan/pkg/storage"
	"a11yscan/pkg/storage/memory"

	"github.com/stretchr/testify/require"
)

func TestForPlan_UnknownTierFallsBackToFree(t *testing.T) {
	e := plan.ForPlan(domain.PlanType("LEGACY"))
	require.Equal(t, plan.ForPlan(domain.PlanFree), e)
}

func TestEffectiveFor_OverridesReplaceTierLimits(t *testing.T) {
	org := domain.Organization{
		PlanType:            domain.PlanStarter,
		MaxWebsitesOverride: 42,
	}

	e := plan.EffectiveFor(org)
	require.Equal(t, 42, e.MaxWebsites)
	// untouched limits keep the tier value
	require.Equal(t, plan.ForPlan(domain.PlanStarter).MaxPagesPerScan, e.MaxPagesPerScan)
}

func TestFrequencyAllowed(t *testing.T) {
	require.False(t, plan.FrequencyAllowed(domain.PlanFree, domain.FrequencyDaily))
	require.False(t, plan.FrequencyAllowed(domain.PlanStarter, domain.FrequencyDaily))
	require.True(t, plan.FrequencyAllowed(domain.PlanStarter, domain.FrequencyWeekly))
	require.True(t, plan.FrequencyAllowed(domain.PlanProfessional, domain.FrequencyDaily))
	require.True(t, plan.FrequencyAllowed(domain.PlanBureau, domain.FrequencyMonthly))
}

func TestAdmission_CheckLimit_Websites(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	orgs, err := store.StoreOrganizations(ctx, domain.Organization{
		Name:          "acme",
		PlanType:      domain.PlanFree,
		BillingStatus: domain.BillingActive,
	})
	require.NoError(t, err)
	org := orgs[0]

	admission := plan.NewAdmission(store)

	// FREE allows a single website
	require.NoError(t, admission.CheckLimit(ctx, org, plan.ActionAddWebsite))

	_, err = store.StoreWebsites(ctx, domain.Website{
		OrganizationID: org.ID,
		URL:            "https://example.com",
		Active:         true,
	})
	require.NoError(t, err)

	err = admission.CheckLimit(ctx, org, plan.ActionAddWebsite)
	require.ErrorIs(t, err, serrors.ErrPlanLimit)

	var limitErr *plan.LimitError
	require.True(t, errors.As(err, &limitErr))
	require.Equal(t, plan.ActionAddWebsite, limitErr.Action)
	require.Equal(t, 1, limitErr.Limit)
}

func TestAdmission_CheckLimit_ConcurrentScans(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	orgs, err := store.StoreOrganizations(ctx, domain.Organization{
		Name:     "acme",
		PlanType: domain.PlanStarter,
	})
	require.NoError(t, err)
	org := orgs[0]

	sites, err := store.StoreWebsites(ctx, domain.Website{OrganizationID: org.ID, Active: true})
	require.NoError(t, err)

	admission := plan.NewAdmission(store)

	// STARTER allows two concurrent scans
	_, err = store.StoreScans(ctx, domain.Scan{
		WebsiteID:      sites[0].ID,
		OrganizationID: org.ID,
		Status:         domain.ScanStatusQueued,
	})
	require.NoError(t, err)
	require.NoError(t, admission.CheckLimit(ctx, org, plan.ActionStartScan))

	_, err = store.StoreScans(ctx, domain.Scan{
		WebsiteID:      sites[0].ID,
		OrganizationID: org.ID,
		Status:         domain.ScanStatusScanning,
	})
	require.NoError(t, err)
	require.ErrorIs(t, admission.CheckLimit(ctx, org, plan.ActionStartScan), serrors.ErrPlanLimit)

	// terminal scans free up a slot
	scans, err := store.StoreScans(ctx, domain.Scan{
		WebsiteID:      sites[0].ID,
		OrganizationID: org.ID,
		Status:         domain.ScanStatusCrawling,
	})
	require.NoError(t, err)

	_, err = store.ApplyScanProgress(ctx, scans[0].ID, storage.ScanProgress{
		Status: domain.ScanStatusFailed,
	})
	require.NoError(t, err)
	_, err = store.ApplyScanProgress(ctx, scans[0].ID, storage.ScanProgress{
		Status: domain.ScanStatusFailed,
	})
	require.ErrorIs(t, err, storage.ErrTerminalScan)
}
