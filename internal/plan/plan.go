// Package plan holds the plan catalog and admission control. Entitlements
// are a hardcoded table keyed by plan tier; per-organization overrides
// replace individual limits when set. Admission checks run before any
// resource-creating operation.
package plan

import (
	"context"
	"fmt"
	"slices"

	"a11yscan/pkg/domain"
	"a11yscan/pkg/serrors"
	"a11yscan/pkg/storage"
)

// Entitlements describes the numeric limits and allowed schedule frequencies
// of one plan tier.
type Entitlements struct {
	// MaxWebsites is the number of live websites the organization may hold.
	MaxWebsites int
	// MaxConcurrentScans is the number of non-terminal scans allowed at once.
	MaxConcurrentScans int
	// MaxMembers is the number of team members.
	MaxMembers int
	// MaxPagesPerScan caps how many pages the engine audits in one scan.
	MaxPagesPerScan int
	// Frequencies lists the schedule cadences the tier may use.
	Frequencies []domain.Frequency
}

// catalog is the entitlement table. Limits only ever grow with the tier.
var catalog = map[domain.PlanType]Entitlements{
	domain.PlanFree: {
		MaxWebsites:        1,
		MaxConcurrentScans: 1,
		MaxMembers:         1,
		MaxPagesPerScan:    25,
		Frequencies:        []domain.Frequency{domain.FrequencyMonthly},
	},
	domain.PlanStarter: {
		MaxWebsites:        5,
		MaxConcurrentScans: 2,
		MaxMembers:         3,
		MaxPagesPerScan:    100,
		Frequencies:        []domain.Frequency{domain.FrequencyWeekly, domain.FrequencyMonthly},
	},
	domain.PlanProfessional: {
		MaxWebsites:        15,
		MaxConcurrentScans: 5,
		MaxMembers:         10,
		MaxPagesPerScan:    500,
		Frequencies: []domain.Frequency{
			domain.FrequencyDaily, domain.FrequencyWeekly, domain.FrequencyMonthly,
		},
	},
	domain.PlanBureau: {
		MaxWebsites:        50,
		MaxConcurrentScans: 10,
		MaxMembers:         25,
		MaxPagesPerScan:    2000,
		Frequencies: []domain.Frequency{
			domain.FrequencyDaily, domain.FrequencyWeekly, domain.FrequencyMonthly,
		},
	},
}

// ForPlan returns the entitlements of a tier. Unknown tiers get the FREE
// entitlements, the most restrictive set.
func ForPlan(p domain.PlanType) Entitlements {
	if e, ok := catalog[p]; ok {
		return e
	}

	return catalog[domain.PlanFree]
}

// EffectiveFor returns the organization's entitlements with any admin
// overrides applied on top of its tier.
func EffectiveFor(org domain.Organization) Entitlements {
	e := ForPlan(org.PlanType)
	if org.MaxWebsitesOverride > 0 {
		e.MaxWebsites = org.MaxWebsitesOverride
	}
	if org.MaxPagesOverride > 0 {
		e.MaxPagesPerScan = org.MaxPagesOverride
	}

	return e
}

// FrequencyAllowed reports whether the tier may run schedules at the given
// cadence.
func FrequencyAllowed(p domain.PlanType, f domain.Frequency) bool {
	return slices.Contains(ForPlan(p).Frequencies, f)
}

// Action identifies the resource-creating operation being admission checked.
type Action string

const (
	ActionAddWebsite Action = "ADD_WEBSITE"
	ActionStartScan  Action = "START_SCAN"
	ActionAddMember  Action = "ADD_MEMBER"
)

// LimitError reports that an action would exceed the organization's plan
// limit. It is always wrapped in serrors.ErrPlanLimit.
type LimitError struct {
	Action Action
	Tier   domain.PlanType
	Limit  int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s exceeds the %s plan limit of %d", e.Action, e.Tier, e.Limit)
}

// AdmissionStorage is the subset of storage the admission checker reads.
type AdmissionStorage interface {
	WebsiteCount(ctx context.Context, orgID domain.OrganizationID) (int64, error)
	NonTerminalScanCount(ctx context.Context, orgID domain.OrganizationID) (int64, error)
	MemberCount(ctx context.Context, orgID domain.OrganizationID) (int64, error)
}

// Admission performs plan-limit checks against current usage. The check is a
// read followed by a write outside one transaction, so two racing requests
// can both pass; the window is accepted and limits may be exceeded by at most
// the number of in-flight requests.
type Admission struct {
	storage AdmissionStorage
}

// NewAdmission creates an admission checker reading usage from storage.
func NewAdmission(storage AdmissionStorage) *Admission {
	return &Admission{storage: storage}
}

// CheckLimit verifies that performing action once more stays within the
// organization's effective entitlements. It returns an ErrPlanLimit semantic
// error wrapping a *LimitError when the limit is already reached.
func (a *Admission) CheckLimit(ctx context.Context, org domain.Organization, action Action) error {
	entitlements := EffectiveFor(org)

	var (
		current int64
		limit   int
		err     error
	)
	switch action {
	case ActionAddWebsite:
		limit = entitlements.MaxWebsites
		current, err = a.storage.WebsiteCount(ctx, org.ID)
	case ActionStartScan:
		limit = entitlements.MaxConcurrentScans
		current, err = a.storage.NonTerminalScanCount(ctx, org.ID)
	case ActionAddMember:
		limit = entitlements.MaxMembers
		current, err = a.storage.MemberCount(ctx, org.ID)
	default:
		return serrors.With(serrors.ErrInternal, "unknown admission action %q", action)
	}
	if err != nil {
		return fmt.Errorf("could not read usage for %s: %w", action, err)
	}

	if current >= int64(limit) {
		return serrors.Wrap(serrors.ErrPlanLimit, &LimitError{
			Action: action,
			Tier:   org.PlanType,
			Limit:  limit,
		}, "plan limit reached")
	}

	return nil
}

var _ AdmissionStorage = (storage.AllStorage)(nil)
