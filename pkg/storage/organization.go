package storage

import (
	"context"
	"time"

	"a11yscan/pkg/domain"
)

// OrganizationBillingUpdates describes a set of optional billing fields that
// can be applied to an organization in one step. Only non-nil fields are
// updated; this keeps plan tier, billing status, processor references and
// period end mutations atomic within a single statement.
type OrganizationBillingUpdates struct {
	// PlanType, when provided, sets the plan tier.
	PlanType *domain.PlanType
	// BillingStatus, when provided, sets the billing health.
	BillingStatus *domain.BillingStatus
	// PaymentCustomerID, when provided, sets the processor customer reference.
	PaymentCustomerID *string
	// PaymentSubscriptionID, when provided, sets the processor subscription
	// reference. An empty string clears it (set to NULL).
	PaymentSubscriptionID *string
	// PeriodEnd, when provided, sets the paid-period end timestamp.
	PeriodEnd *time.Time
	// ClearOverrides, when true, resets the per-organization limit overrides.
	ClearOverrides bool
}

// OrganizationStorage defines persistence operations for organizations.
type OrganizationStorage interface {
	// StoreOrganizations inserts one or more organizations and returns the
	// stored rows as they exist in the database (including generated fields).
	StoreOrganizations(ctx context.Context, orgs ...domain.Organization) ([]domain.Organization, error)
	// OrganizationByID fetches an organization by ID. Returns nil when not found.
	OrganizationByID(ctx context.Context, id domain.OrganizationID) (*domain.Organization, error)
	// OrganizationByCustomerID fetches the organization holding the given
	// payment-processor customer reference. Returns nil when not found.
	OrganizationByCustomerID(ctx context.Context, customerID string) (*domain.Organization, error)
	// UpdateOrganizationBilling applies the provided billing field set to a
	// single organization and returns the updated row. updated_at is set
	// automatically. Returns nil when the organization does not exist.
	UpdateOrganizationBilling(ctx context.Context,
		id domain.OrganizationID,
		updates OrganizationBillingUpdates) (*domain.Organization, error)
	// ExpiredOrganizations returns organizations whose paid access has truly
	// lapsed: tier is not FREE, no subscription reference is stored, and the
	// period end lies before the given time.
	ExpiredOrganizations(ctx context.Context, before time.Time) ([]domain.Organization, error)
}

// UserStorage defines persistence operations for team members and API keys.
type UserStorage interface {
	// StoreUsers inserts one or more users and returns the stored rows.
	StoreUsers(ctx context.Context, users ...domain.User) ([]domain.User, error)
	// UserByID fetches a user by ID. Returns nil when not found.
	UserByID(ctx context.Context, id domain.UserID) (*domain.User, error)
	// OrganizationOwner fetches the owner of an organization. Returns nil
	// when not found.
	OrganizationOwner(ctx context.Context, orgID domain.OrganizationID) (*domain.User, error)
	// MemberCount returns the number of users in the given organization.
	MemberCount(ctx context.Context, orgID domain.OrganizationID) (int64, error)
	// StoreApiKeys inserts one or more API keys and returns the stored rows.
	StoreApiKeys(ctx context.Context, keys ...domain.ApiKey) ([]domain.ApiKey, error)
	// ApiKeyByTokenHash fetches an API key by the SHA-256 hash of its token.
	// Returns nil when not found.
	ApiKeyByTokenHash(ctx context.Context, hash string) (*domain.ApiKey, error)
	// TouchApiKey updates the key's last_used_at to the current time.
	TouchApiKey(ctx context.Context, id domain.ApiKeyID) error
}
