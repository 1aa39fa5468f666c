package postgres_test

import (
	"context"
	"testing"
	"time"

	"a11yscan/pkg/domain"

	"github.com/stretchr/testify/require"
)

func TestDueSchedules(t *testing.T) {
	strg, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	org, site := seedOrg(t, strg, domain.PlanProfessional)
	now := time.Now().UTC().Truncate(time.Microsecond)

	schedules, err := strg.StoreSchedules(ctx,
		// never ran: immediately due
		domain.ScanSchedule{
			WebsiteID:      site.ID,
			OrganizationID: org.ID,
			Frequency:      domain.FrequencyDaily,
			Active:         true,
		},
		// due in the past
		domain.ScanSchedule{
			WebsiteID:      site.ID,
			OrganizationID: org.ID,
			Frequency:      domain.FrequencyWeekly,
			Active:         true,
			NextRunAt:      now.Add(-time.Hour),
		},
		// not due yet
		domain.ScanSchedule{
			WebsiteID:      site.ID,
			OrganizationID: org.ID,
			Frequency:      domain.FrequencyMonthly,
			Active:         true,
			NextRunAt:      now.Add(time.Hour),
		},
		// due but disabled
		domain.ScanSchedule{
			WebsiteID:      site.ID,
			OrganizationID: org.ID,
			Frequency:      domain.FrequencyDaily,
			Active:         false,
		})
	require.NoError(t, err)

	due, err := strg.DueSchedules(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 2)
	// never-ran schedules sort before dated ones
	require.Equal(t, schedules[0].ID, due[0].ID)
	require.Equal(t, schedules[1].ID, due[1].ID)
}

func TestMarkScheduleRun(t *testing.T) {
	strg, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	org, site := seedOrg(t, strg, domain.PlanProfessional)
	now := time.Now().UTC().Truncate(time.Microsecond)

	schedules, err := strg.StoreSchedules(ctx, domain.ScanSchedule{
		WebsiteID:      site.ID,
		OrganizationID: org.ID,
		Frequency:      domain.FrequencyWeekly,
		Active:         true,
	})
	require.NoError(t, err)

	next := domain.FrequencyWeekly.Next(now)
	require.NoError(t, strg.MarkScheduleRun(ctx, schedules[0].ID, now, next))

	stored, err := strg.ScheduleByID(ctx, org.ID, schedules[0].ID)
	require.NoError(t, err)
	require.WithinDuration(t, now, stored.LastRunAt, time.Second)
	require.WithinDuration(t, next, stored.NextRunAt, time.Second)

	// advanced schedules are no longer due
	due, err := strg.DueSchedules(ctx, now)
	require.NoError(t, err)
	require.Empty(t, due)
}

func TestDeleteWebsite_FreesPlanSlot(t *testing.T) {
	strg, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	org, site := seedOrg(t, strg, domain.PlanFree)

	count, err := strg.WebsiteCount(ctx, org.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	deleted, err := strg.DeleteWebsite(ctx, org.ID, site.ID)
	require.NoError(t, err)
	require.NotNil(t, deleted)

	// soft-deleted rows are invisible to reads and counts
	count, err = strg.WebsiteCount(ctx, org.ID)
	require.NoError(t, err)
	require.Zero(t, count)

	found, err := strg.WebsiteByID(ctx, org.ID, site.ID)
	require.NoError(t, err)
	require.Nil(t, found)
}
