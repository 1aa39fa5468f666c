// Package billing reconciles payment processor notifications with
// organization state. Webhook bodies are never trusted: the payment is
// re-fetched by id, resolved to an organization, and the resulting billing
// mutation is recorded together with a ledger entry keyed by payment id so
// replayed deliveries apply at most once.
package billing

import (
	"context"
	"fmt"
	"time"

	"a11yscan/pkg/domain"
	"a11yscan/pkg/logger"
	"a11yscan/pkg/payments"
	"a11yscan/pkg/serrors"
	"a11yscan/pkg/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service processes payment notifications.
type Service struct {
	storage  storage.Storage
	payments payments.Client
	// now is injectable for tests.
	now func() time.Time
}

// New creates a billing service over the given storage and payment
// processor client.
func New(storage storage.Storage, paymentsClient payments.Client) *Service {
	return &Service{
		storage:  storage,
		payments: paymentsClient,
		now:      time.Now,
	}
}

// ProcessNotification handles one webhook delivery carrying an opaque
// payment id. Unresolvable payments are logged and dropped (nil error): the
// processor retries deliveries that do not get a 2xx, and a payment that
// cannot be matched to an organization will not match on retry either.
func (s *Service) ProcessNotification(ctx context.Context, paymentID string) error {
	payment, err := s.payments.Payment(ctx, paymentID)
	if err != nil {
		return fmt.Errorf("could not fetch payment: %w", err)
	}
	if payment == nil {
		return serrors.With(serrors.ErrNotFound, "payment %s not found", paymentID)
	}

	org, interval, err := s.resolve(ctx, payment)
	if err != nil {
		return err
	}
	if org == nil {
		logger.Warn(ctx, "payment does not resolve to an organization",
			zap.String("paymentID", payment.ID),
			zap.String("customerID", payment.CustomerID))

		return nil
	}

	ctx = logger.WithFields(ctx,
		zap.String("paymentID", payment.ID),
		zap.String("organizationID", uuid.UUID(org.ID).String()))

	switch payment.Status {
	case payments.StatusPaid:
		if payment.Metadata.MethodUpdate || payment.Amount.Zero() {
			logger.Info(ctx, "ignoring payment-method-update probe")

			return nil
		}
		if payment.SequenceType == payments.SequenceRecurring {
			return s.applyRenewal(ctx, *org, *payment, interval)
		}

		return s.applyFirstPayment(ctx, *org, *payment, interval)
	case payments.StatusFailed, payments.StatusExpired:
		return s.markGrace(ctx, *org, *payment)
	case payments.StatusCanceled:
		return s.clearSubscription(ctx, *org, *payment)
	default:
		// open, pending, authorized: transient, a final status follows
		logger.Info(ctx, "ignoring transient payment status",
			zap.String("status", payment.Status))

		return nil
	}
}

// resolve maps a payment to its organization and billing interval. Metadata
// is authoritative when present; otherwise the stored customer reference is
// used and plan details are reconstructed from the subscription object.
func (s *Service) resolve(ctx context.Context,
	payment *payments.Payment) (*domain.Organization, domain.BillingInterval, error) {
	metadata := payment.Metadata

	var org *domain.Organization
	if metadata.OrganizationID != "" {
		id, err := uuid.Parse(metadata.OrganizationID)
		if err != nil {
			logger.Warn(ctx, "payment metadata carries a malformed organization id",
				zap.String("paymentID", payment.ID),
				zap.String("organizationID", metadata.OrganizationID))
		} else {
			org, err = s.storage.OrganizationByID(ctx, domain.OrganizationID(id))
			if err != nil {
				return nil, "", fmt.Errorf("could not get organization: %w", err)
			}
		}
	}
	if org == nil && payment.CustomerID != "" {
		var err error
		org, err = s.storage.OrganizationByCustomerID(ctx, payment.CustomerID)
		if err != nil {
			return nil, "", fmt.Errorf("could not get organization by customer id: %w", err)
		}
	}
	if org == nil {
		return nil, "", nil
	}

	// fill plan details from the subscription when metadata is incomplete
	if (metadata.Interval == "" || metadata.PlanType == "") &&
		payment.SubscriptionID != "" && payment.CustomerID != "" {
		sub, err := s.payments.Subscription(ctx, payment.CustomerID, payment.SubscriptionID)
		if err != nil {
			logger.Warn(ctx, "could not fetch subscription for payment",
				zap.String("paymentID", payment.ID),
				zap.Error(err))
		} else {
			if metadata.Interval == "" {
				metadata.Interval = sub.Interval
			}
			if metadata.PlanType == "" {
				metadata.PlanType = sub.Metadata.PlanType
			}
			payment.Metadata = metadata
		}
	}

	interval := domain.BillingInterval(metadata.Interval)
	if interval != domain.IntervalMonthly && interval != domain.IntervalYearly {
		interval = domain.IntervalMonthly
	}

	return org, interval, nil
}

// applyFirstPayment activates a subscription: tier, processor references,
// billing status and period end are set together with the ledger entry in
// one transaction.
func (s *Service) applyFirstPayment(ctx context.Context,
	org domain.Organization,
	payment payments.Payment,
	interval domain.BillingInterval) error {
	planType := domain.PlanType(payment.Metadata.PlanType)
	if !planType.Valid() {
		logger.Warn(ctx, "paid payment carries no valid plan tier",
			zap.String("planType", payment.Metadata.PlanType))

		return nil
	}

	return s.storage.WithTx(ctx, func(tx storage.AllStorage) error {
		inserted, err := tx.RecordBillingEvent(ctx, domain.BillingEvent{
			PaymentID:      payment.ID,
			OrganizationID: org.ID,
			PaymentStatus:  payment.Status,
			SequenceType:   payment.SequenceType,
		})
		if err != nil {
			return fmt.Errorf("could not record billing event: %w", err)
		}
		if !inserted {
			logger.Info(ctx, "payment already processed, skipping")

			return nil
		}

		active := domain.BillingActive
		periodEnd := interval.Advance(s.now())
		if _, err := tx.UpdateOrganizationBilling(ctx, org.ID, storage.OrganizationBillingUpdates{
			PlanType:              &planType,
			BillingStatus:         &active,
			PaymentCustomerID:     &payment.CustomerID,
			PaymentSubscriptionID: &payment.SubscriptionID,
			PeriodEnd:             &periodEnd,
		}); err != nil {
			return fmt.Errorf("could not activate subscription: %w", err)
		}

		logger.Info(ctx, "subscription activated",
			zap.String("planType", string(planType)),
			zap.Time("periodEnd", periodEnd))

		return nil
	})
}

// applyRenewal extends the paid period by one interval. The new period is
// anchored on the stored period end so late webhook deliveries do not shrink
// the entitlement; a long-lapsed period is anchored on now instead.
func (s *Service) applyRenewal(ctx context.Context,
	org domain.Organization,
	payment payments.Payment,
	interval domain.BillingInterval) error {
	return s.storage.WithTx(ctx, func(tx storage.AllStorage) error {
		inserted, err := tx.RecordBillingEvent(ctx, domain.BillingEvent{
			PaymentID:      payment.ID,
			OrganizationID: org.ID,
			PaymentStatus:  payment.Status,
			SequenceType:   payment.SequenceType,
		})
		if err != nil {
			return fmt.Errorf("could not record billing event: %w", err)
		}
		if !inserted {
			logger.Info(ctx, "payment already processed, skipping")

			return nil
		}

		// anchor on the row as it stands inside the transaction: a concurrent
		// renewal may have advanced the period since the webhook was resolved
		current, err := tx.OrganizationByID(ctx, org.ID)
		if err != nil {
			return fmt.Errorf("could not get organization: %w", err)
		}
		if current == nil {
			logger.Warn(ctx, "organization vanished before renewal applied")

			return nil
		}

		base := current.PeriodEnd
		if base.IsZero() || base.Before(s.now()) {
			base = s.now()
		}
		periodEnd := interval.Advance(base)

		active := domain.BillingActive
		if _, err := tx.UpdateOrganizationBilling(ctx, org.ID, storage.OrganizationBillingUpdates{
			BillingStatus: &active,
			PeriodEnd:     &periodEnd,
		}); err != nil {
			return fmt.Errorf("could not extend paid period: %w", err)
		}

		logger.Info(ctx, "subscription renewed", zap.Time("periodEnd", periodEnd))

		return nil
	})
}

// markGrace flags a failed or expired charge. The tier and period end stay
// untouched; the expiry sweep downgrades once the paid period truly lapses.
func (s *Service) markGrace(ctx context.Context,
	org domain.Organization,
	payment payments.Payment) error {
	grace := domain.BillingGrace
	if _, err := s.storage.UpdateOrganizationBilling(ctx, org.ID, storage.OrganizationBillingUpdates{
		BillingStatus: &grace,
	}); err != nil {
		return fmt.Errorf("could not mark organization grace: %w", err)
	}

	logger.Warn(ctx, "charge did not complete, organization in grace",
		zap.String("status", payment.Status))

	return nil
}

// clearSubscription drops the stored subscription reference after a
// cancellation. Paid access runs until the expiry sweep observes the period
// end has passed.
func (s *Service) clearSubscription(ctx context.Context,
	org domain.Organization,
	payment payments.Payment) error {
	empty := ""
	if _, err := s.storage.UpdateOrganizationBilling(ctx, org.ID, storage.OrganizationBillingUpdates{
		PaymentSubscriptionID: &empty,
	}); err != nil {
		return fmt.Errorf("could not clear subscription reference: %w", err)
	}

	logger.Info(ctx, "subscription canceled",
		zap.Time("accessUntil", org.PeriodEnd))

	return nil
}
