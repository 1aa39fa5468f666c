package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrganizationID uniquely identifies an organization (tenant).
// It wraps uuid.UUID to provide type safety at the domain layer.
type OrganizationID uuid.UUID

// PlanType is the named plan tier an organization is subscribed to.
// Tiers are ordered: FREE < STARTER < PROFESSIONAL < BUREAU.
type PlanType string

const (
	PlanFree         PlanType = "FREE"
	PlanStarter      PlanType = "STARTER"
	PlanProfessional PlanType = "PROFESSIONAL"
	PlanBureau       PlanType = "BUREAU"
)

// Valid reports whether the plan type is one of the known tiers.
func (p PlanType) Valid() bool {
	switch p {
	case PlanFree, PlanStarter, PlanProfessional, PlanBureau:
		return true
	}

	return false
}

// BillingStatus describes the current billing health of an organization.
type BillingStatus string

const (
	// BillingActive means the organization's subscription is in good standing.
	BillingActive BillingStatus = "ACTIVE"
	// BillingGrace means the last charge failed or expired; access is kept
	// until the expiry sweep observes the paid period has truly elapsed.
	BillingGrace BillingStatus = "GRACE"
)

// BillingInterval is the length of one paid period.
type BillingInterval string

const (
	IntervalMonthly BillingInterval = "monthly"
	IntervalYearly  BillingInterval = "yearly"
)

// Advance returns the given time moved forward by one billing interval.
// Unknown intervals fall back to monthly.
func (i BillingInterval) Advance(t time.Time) time.Time {
	if i == IntervalYearly {
		return t.AddDate(1, 0, 0)
	}

	return t.AddDate(0, 1, 0)
}

// Organization is the tenant entity. Plan tier, billing status, the payment
// processor references and the paid-period end are the single source of truth
// for entitlement checks and are only mutated together by billing
// reconciliation (or an admin override).
type Organization struct {
	// ID is the unique identifier of the organization.
	ID OrganizationID `json:"id"`
	// Name is the display name of the organization.
	Name string `json:"name"`

	// PlanType is the current plan tier.
	PlanType PlanType `json:"planType"`
	// BillingStatus tracks whether the subscription is healthy or in grace.
	BillingStatus BillingStatus `json:"billingStatus"`

	// MaxWebsitesOverride, when > 0, replaces the tier's website limit.
	MaxWebsitesOverride int `json:"maxWebsitesOverride,omitempty"`
	// MaxPagesOverride, when > 0, replaces the tier's pages-per-scan limit.
	MaxPagesOverride int `json:"maxPagesOverride,omitempty"`

	// PaymentCustomerID is the payment processor's customer reference.
	PaymentCustomerID string `json:"-"`
	// PaymentSubscriptionID is the processor's recurring subscription
	// reference. Empty when no live subscription exists.
	PaymentSubscriptionID string `json:"-"`
	// PeriodEnd is when the currently paid period runs out. Zero for FREE
	// organizations that never subscribed.
	PeriodEnd time.Time `json:"periodEnd,omitempty"`

	// CreatedAt is when the organization was created (first user signup).
	CreatedAt time.Time `json:"createdAt"`
	// UpdatedAt is when the organization was last modified.
	UpdatedAt time.Time `json:"updatedAt"`
}

// UserID uniquely identifies a user (team member) within the system.
type UserID uuid.UUID

// UserRole describes a member's role inside their organization.
type UserRole string

const (
	RoleOwner  UserRole = "OWNER"
	RoleMember UserRole = "MEMBER"
)

// User is a team member belonging to exactly one organization.
type User struct {
	ID             UserID         `json:"id"`
	OrganizationID OrganizationID `json:"organizationId"`
	Email          string         `json:"email"`
	Role           UserRole       `json:"role"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// ApiKeyID uniquely identifies an API key.
type ApiKeyID uuid.UUID

// ApiKey grants programmatic access scoped to one organization. Only the
// SHA-256 hash of the token is stored.
type ApiKey struct {
	ID             ApiKeyID       `json:"id"`
	OrganizationID OrganizationID `json:"organizationId"`
	Name           string         `json:"name"`
	TokenHash      string         `json:"-"`
	CreatedAt      time.Time      `json:"createdAt"`
	LastUsedAt     time.Time      `json:"lastUsedAt,omitempty"`
}
