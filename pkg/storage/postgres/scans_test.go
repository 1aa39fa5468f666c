package postgres_test

import (
	"context"
	"testing"
	"time"

	"a11yscan/pkg/domain"
	"a11yscan/pkg/storage"

	"github.com/stretchr/testify/require"
)

func intp(v int) *int { return &v }

func TestApplyScanProgress_Lifecycle(t *testing.T) {
	strg, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	org, site := seedOrg(t, strg, domain.PlanStarter)
	scans, err := strg.StoreScans(ctx, domain.Scan{
		WebsiteID:      site.ID,
		OrganizationID: org.ID,
		Status:         domain.ScanStatusQueued,
		Trigger:        domain.TriggerManual,
		Kind:           domain.ScanKindFull,
	})
	require.NoError(t, err)
	scan := scans[0]

	// forward transition with counters
	updated, err := strg.ApplyScanProgress(ctx, scan.ID, storage.ScanProgress{
		Status:   domain.ScanStatusScanning,
		Counters: domain.ScanCounters{TotalPages: intp(40), ScannedPages: intp(3)},
	})
	require.NoError(t, err)
	require.Equal(t, domain.ScanStatusScanning, updated.Status)
	require.Equal(t, 40, *updated.Counters.TotalPages)

	// a stale CRAWLING report arriving late is ignored
	stale, err := strg.ApplyScanProgress(ctx, scan.ID, storage.ScanProgress{
		Status:   domain.ScanStatusCrawling,
		Counters: domain.ScanCounters{TotalPages: intp(10)},
	})
	require.NoError(t, err)
	require.Equal(t, domain.ScanStatusScanning, stale.Status)
	require.Equal(t, 40, *stale.Counters.TotalPages)

	// same-status report refreshes counters
	refreshed, err := strg.ApplyScanProgress(ctx, scan.ID, storage.ScanProgress{
		Status:   domain.ScanStatusScanning,
		Counters: domain.ScanCounters{ScannedPages: intp(17)},
	})
	require.NoError(t, err)
	require.Equal(t, 17, *refreshed.Counters.ScannedPages)
	// untouched counters survive partial reports
	require.Equal(t, 40, *refreshed.Counters.TotalPages)
}

func TestApplyScanProgress_TerminalIsImmutable(t *testing.T) {
	strg, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	org, site := seedOrg(t, strg, domain.PlanStarter)
	scans, err := strg.StoreScans(ctx, domain.Scan{
		WebsiteID:      site.ID,
		OrganizationID: org.ID,
		Status:         domain.ScanStatusQueued,
		Trigger:        domain.TriggerManual,
		Kind:           domain.ScanKindFull,
	})
	require.NoError(t, err)

	_, err = strg.ApplyScanProgress(ctx, scans[0].ID, storage.ScanProgress{
		Status:   domain.ScanStatusCompleted,
		Counters: domain.ScanCounters{Score: intp(92)},
	})
	require.NoError(t, err)

	_, err = strg.ApplyScanProgress(ctx, scans[0].ID, storage.ScanProgress{
		Status: domain.ScanStatusFailed,
	})
	require.ErrorIs(t, err, storage.ErrTerminalScan)

	// the completed row kept its result
	row, err := strg.ScanByID(ctx, org.ID, scans[0].ID)
	require.NoError(t, err)
	require.Equal(t, domain.ScanStatusCompleted, row.Status)
	require.Equal(t, 92, *row.Counters.Score)
}

func TestNonTerminalScanCounts(t *testing.T) {
	strg, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	org, site := seedOrg(t, strg, domain.PlanStarter)
	scans, err := strg.StoreScans(ctx,
		domain.Scan{
			WebsiteID:      site.ID,
			OrganizationID: org.ID,
			Status:         domain.ScanStatusQueued,
			Trigger:        domain.TriggerManual,
			Kind:           domain.ScanKindFull,
		},
		domain.Scan{
			WebsiteID:      site.ID,
			OrganizationID: org.ID,
			Status:         domain.ScanStatusScanning,
			Trigger:        domain.TriggerAPI,
			Kind:           domain.ScanKindQuick,
		})
	require.NoError(t, err)

	count, err := strg.NonTerminalScanCount(ctx, org.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	inFlight, err := strg.HasNonTerminalScan(ctx, site.ID)
	require.NoError(t, err)
	require.True(t, inFlight)

	for _, s := range scans {
		_, err = strg.ApplyScanProgress(ctx, s.ID, storage.ScanProgress{
			Status: domain.ScanStatusFailed,
		})
		require.NoError(t, err)
	}

	count, err = strg.NonTerminalScanCount(ctx, org.ID)
	require.NoError(t, err)
	require.Zero(t, count)

	inFlight, err = strg.HasNonTerminalScan(ctx, site.ID)
	require.NoError(t, err)
	require.False(t, inFlight)
}

func TestOrganizationScans_CursorPagination(t *testing.T) {
	strg, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	org, site := seedOrg(t, strg, domain.PlanStarter)
	for range 5 {
		_, err := strg.StoreScans(ctx, domain.Scan{
			WebsiteID:      site.ID,
			OrganizationID: org.ID,
			Status:         domain.ScanStatusQueued,
			Trigger:        domain.TriggerManual,
			Kind:           domain.ScanKindFull,
		})
		require.NoError(t, err)
	}

	var seen int
	var cursor time.Time
	for {
		page, err := strg.OrganizationScans(ctx, org.ID, cursor, 2)
		require.NoError(t, err)
		seen += len(page.Scans)
		if page.NextCursor == nil {
			break
		}
		require.False(t, page.NextCursor.IsZero())
		cursor = *page.NextCursor
	}
	require.Equal(t, 5, seen)
}
