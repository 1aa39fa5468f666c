package scan

import (
	"context"

	"a11yscan/pkg/domain"
	"a11yscan/pkg/storage"
)

//go:generate mockgen -package mockscan -source=interface.go -destination=mock/mockscan.go *
type Service interface {
	// Start admits and enqueues a new scan for a website.
	Start(ctx context.Context,
		org domain.Organization,
		websiteID domain.WebsiteID,
		trigger domain.ScanTrigger,
		kind domain.ScanKind) (*domain.Scan, error)
	// Restart creates a fresh scan for the website of a terminal scan.
	Restart(ctx context.Context, org domain.Organization, scanID domain.ScanID) (*domain.Scan, error)
	// ReportProgress applies an engine progress report to a scan.
	ReportProgress(ctx context.Context, scanID domain.ScanID, progress storage.ScanProgress) (*domain.Scan, error)
	// Result fetches a single scan scoped to the organization.
	Result(ctx context.Context, orgID domain.OrganizationID, scanID domain.ScanID) (*domain.Scan, error)
	// OrganizationScans returns a page of the organization's scans, newest
	// first, with an RFC3339 cursor.
	OrganizationScans(ctx context.Context,
		orgID domain.OrganizationID,
		cursor string,
		limit uint) ([]domain.Scan, string, error)
}
