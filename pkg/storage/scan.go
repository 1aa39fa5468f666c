package storage

import (
	"context"
	"time"

	"a11yscan/pkg/domain"
)

// ScanProgress describes a progress report applied to a scan. Status is
// required; counter fields are merged into the stored counters when non-nil.
type ScanProgress struct {
	// Status is the new lifecycle state to set.
	Status domain.ScanStatus
	// Counters carries the engine-reported figures; nil fields keep the
	// stored value.
	Counters domain.ScanCounters
	// ErrorMessage, when provided, sets the failure reason.
	ErrorMessage *string
	// CompletedAt, when provided, marks the terminal timestamp.
	CompletedAt *time.Time
}

// OrganizationScans groups a page of scans together with an optional
// NextCursor used for pagination.
type OrganizationScans struct {
	// Scans contains the current page of scan records.
	Scans []domain.Scan
	// NextCursor points to the timestamp to be used as the cursor for fetching
	// the next page. It is nil when there is no next page.
	NextCursor *time.Time
}

// ScanStorage defines persistence and query operations for scans.
// Terminal rows (COMPLETED/FAILED) are immutable: progress updates must not
// touch them, and implementations signal such attempts with ErrTerminalScan.
type ScanStorage interface {
	// StoreScans inserts one or more scans and returns the stored rows as they
	// exist in the database (including generated fields).
	StoreScans(ctx context.Context, scans ...domain.Scan) ([]domain.Scan, error)
	// ScanByID fetches a scan by ID scoped to the given organization.
	// Returns nil when not found.
	ScanByID(ctx context.Context, orgID domain.OrganizationID, id domain.ScanID) (*domain.Scan, error)
	// ApplyScanProgress applies a progress report to a single non-terminal
	// scan and returns the updated row. Returns ErrTerminalScan when the scan
	// exists but already reached a terminal status, nil when it does not
	// exist. Reports that would move the status backwards (stale or reordered
	// deliveries) are ignored: the current row is returned unchanged.
	ApplyScanProgress(ctx context.Context, id domain.ScanID, progress ScanProgress) (*domain.Scan, error)
	// NonTerminalScanCount returns the number of scans that have not reached
	// a terminal status for the given organization.
	NonTerminalScanCount(ctx context.Context, orgID domain.OrganizationID) (int64, error)
	// HasNonTerminalScan reports whether any non-terminal scan exists for the
	// given website.
	HasNonTerminalScan(ctx context.Context, websiteID domain.WebsiteID) (bool, error)
	// OrganizationScans returns a page of scans for an organization created
	// before the optional cursor time, newest first, limited by limit.
	OrganizationScans(ctx context.Context,
		orgID domain.OrganizationID,
		cursor time.Time,
		limit uint) (OrganizationScans, error)
}
