package postgres_test

import (
	"context"
	"testing"
	"time"

	"a11yscan/pkg/domain"
	"a11yscan/pkg/storage"

	"github.com/stretchr/testify/require"
)

func TestRecordBillingEvent_Idempotent(t *testing.T) {
	strg, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	org, _ := seedOrg(t, strg, domain.PlanFree)
	event := domain.BillingEvent{
		PaymentID:      "pay_123",
		OrganizationID: org.ID,
		PaymentStatus:  "paid",
		SequenceType:   "first",
	}

	recorded, err := strg.RecordBillingEvent(ctx, event)
	require.NoError(t, err)
	require.True(t, recorded)

	// replayed delivery: same payment id, not recorded again
	recorded, err = strg.RecordBillingEvent(ctx, event)
	require.NoError(t, err)
	require.False(t, recorded)

	stored, err := strg.BillingEventByPaymentID(ctx, "pay_123")
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, org.ID, stored.OrganizationID)
}

func TestUpdateOrganizationBilling(t *testing.T) {
	strg, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	org, _ := seedOrg(t, strg, domain.PlanFree)

	pro := domain.PlanProfessional
	active := domain.BillingActive
	customer := "cst_1"
	subscription := "sub_1"
	periodEnd := time.Now().Add(30 * 24 * time.Hour).UTC().Truncate(time.Microsecond)

	updated, err := strg.UpdateOrganizationBilling(ctx, org.ID, storage.OrganizationBillingUpdates{
		PlanType:              &pro,
		BillingStatus:         &active,
		PaymentCustomerID:     &customer,
		PaymentSubscriptionID: &subscription,
		PeriodEnd:             &periodEnd,
	})
	require.NoError(t, err)
	require.Equal(t, domain.PlanProfessional, updated.PlanType)
	require.Equal(t, "cst_1", updated.PaymentCustomerID)
	require.WithinDuration(t, periodEnd, updated.PeriodEnd, time.Second)

	// partial update touches only the given fields
	empty := ""
	updated, err = strg.UpdateOrganizationBilling(ctx, org.ID, storage.OrganizationBillingUpdates{
		PaymentSubscriptionID: &empty,
	})
	require.NoError(t, err)
	require.Empty(t, updated.PaymentSubscriptionID)
	require.Equal(t, domain.PlanProfessional, updated.PlanType)
	require.Equal(t, "cst_1", updated.PaymentCustomerID)

	found, err := strg.OrganizationByCustomerID(ctx, "cst_1")
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, org.ID, found.ID)
}

func TestExpiredOrganizations(t *testing.T) {
	strg, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	org, _ := seedOrg(t, strg, domain.PlanFree)

	pro := domain.PlanProfessional
	lapsed := time.Now().Add(-24 * time.Hour).UTC()
	_, err := strg.UpdateOrganizationBilling(ctx, org.ID, storage.OrganizationBillingUpdates{
		PlanType:  &pro,
		PeriodEnd: &lapsed,
	})
	require.NoError(t, err)

	expired, err := strg.ExpiredOrganizations(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, expired, 1)
	require.Equal(t, org.ID, expired[0].ID)

	// a live subscription ref keeps the organization out of the sweep
	subscription := "sub_live"
	_, err = strg.UpdateOrganizationBilling(ctx, org.ID, storage.OrganizationBillingUpdates{
		PaymentSubscriptionID: &subscription,
	})
	require.NoError(t, err)

	expired, err = strg.ExpiredOrganizations(ctx, time.Now())
	require.NoError(t, err)
	require.Empty(t, expired)
}
