package sweep

import (
	"context"
	"fmt"
	"time"

	"a11yscan/pkg/domain"
	"a11yscan/pkg/logger"
	"a11yscan/pkg/mailer"
	"a11yscan/pkg/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Expiry runs the expiry sweep: organizations whose paid period truly lapsed
// (no live subscription, period end in the past) are downgraded to FREE.
// Grace ends here, not on the payment failure itself.
type Expiry struct {
	storage storage.Storage
	mail    mailer.Sender
	options Options
}

// NewExpiry creates an expiry sweep. mail may be nil; downgrade notices are
// best effort.
func NewExpiry(storage storage.Storage, mail mailer.Sender, options Options) *Expiry {
	return &Expiry{
		storage: storage,
		mail:    mail,
		options: options,
	}
}

// RunExpiry downgrades all organizations whose paid access lapsed before the
// given time. Overrides are cleared so the FREE limits apply unmodified.
func (e *Expiry) RunExpiry(ctx context.Context, now time.Time) (Summary, error) {
	expired, err := e.storage.ExpiredOrganizations(ctx, now)
	if err != nil {
		return Summary{}, fmt.Errorf("could not list expired organizations: %w", err)
	}

	summary := forEach(ctx, expired, e.options,
		func(item domain.Organization) string { return uuid.UUID(item.ID).String() },
		e.downgrade)

	observe("expiry", summary)
	logger.Info(ctx, "expiry sweep finished",
		zap.Int("expired", len(expired)),
		zap.Int("downgraded", summary.Processed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("errors", len(summary.Errors)))

	return summary, nil
}

func (e *Expiry) downgrade(ctx context.Context, org domain.Organization) (Outcome, error) {
	freePlan := domain.PlanFree
	active := domain.BillingActive
	updated, err := e.storage.UpdateOrganizationBilling(ctx, org.ID, storage.OrganizationBillingUpdates{
		PlanType:       &freePlan,
		BillingStatus:  &active,
		ClearOverrides: true,
	})
	if err != nil {
		return OutcomeSkipped, fmt.Errorf("could not downgrade organization: %w", err)
	}
	if updated == nil {
		return OutcomeSkipped, nil
	}

	logger.Info(ctx, "organization downgraded to FREE",
		zap.String("organizationID", uuid.UUID(org.ID).String()),
		zap.String("previousPlan", string(org.PlanType)))

	e.notifyDowngrade(ctx, org)

	return OutcomeProcessed, nil
}

// notifyDowngrade sends a best-effort downgrade notice to the organization
// owner.
func (e *Expiry) notifyDowngrade(ctx context.Context, org domain.Organization) {
	if e.mail == nil {
		return
	}

	owner, err := e.storage.OrganizationOwner(ctx, org.ID)
	if err != nil || owner == nil {
		logger.Warn(ctx, "could not resolve organization owner for downgrade notice",
			zap.String("organizationID", uuid.UUID(org.ID).String()),
			zap.Error(err))

		return
	}

	mailer.SendBestEffort(ctx, e.mail, mailer.Message{
		ToEmail: owner.Email,
		Subject: "Your subscription has ended",
		Text: fmt.Sprintf(
			"The %s subscription for %s has ended and the account moved to the FREE plan. "+
				"Resubscribe any time to restore your previous limits.",
			org.PlanType, org.Name),
	})
}
