package domain

import (
	"time"

	"github.com/google/uuid"
)

// WebsiteID uniquely identifies a website.
type WebsiteID uuid.UUID

// Website is a site registered for auditing. It belongs to exactly one
// organization; the count of active websites per organization is bounded by
// the plan's website limit (enforced by admission control).
type Website struct {
	// ID is the unique identifier of the website.
	ID WebsiteID `json:"id"`
	// OrganizationID is the owning organization.
	OrganizationID OrganizationID `json:"organizationId"`

	// URL is the root URL audits start from.
	URL string `json:"url"`
	// Name is a human-friendly label.
	Name string `json:"name"`
	// Active indicates whether the website participates in scheduled audits.
	Active bool `json:"active"`

	// CreatedAt is when the website was registered.
	CreatedAt time.Time `json:"createdAt"`
	// UpdatedAt is when the website was last modified.
	UpdatedAt time.Time `json:"updatedAt"`
	// DeletedAt marks when the website was soft-deleted; zero means live.
	DeletedAt time.Time `json:"-"`
}
