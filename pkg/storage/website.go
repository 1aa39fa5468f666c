package storage

import (
	"context"

	"a11yscan/pkg/domain"
)

// WebsiteStorage defines persistence operations for websites. Websites are
// soft-deleted; reads exclude deleted rows.
type WebsiteStorage interface {
	// StoreWebsites inserts one or more websites and returns the stored rows.
	StoreWebsites(ctx context.Context, sites ...domain.Website) ([]domain.Website, error)
	// WebsiteByID fetches a website by ID scoped to the given organization.
	// Returns nil when not found.
	WebsiteByID(ctx context.Context, orgID domain.OrganizationID, id domain.WebsiteID) (*domain.Website, error)
	// OrganizationWebsites lists all live websites of an organization.
	OrganizationWebsites(ctx context.Context, orgID domain.OrganizationID) ([]domain.Website, error)
	// WebsiteCount returns the number of live websites in the organization.
	WebsiteCount(ctx context.Context, orgID domain.OrganizationID) (int64, error)
	// DeleteWebsite performs a soft delete and returns the deleted website,
	// or nil if it was not found.
	DeleteWebsite(ctx context.Context, orgID domain.OrganizationID, id domain.WebsiteID) (*domain.Website, error)
}
