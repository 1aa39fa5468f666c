package storage

import (
	"context"

	"a11yscan/pkg/domain"
)

// BillingStorage defines persistence operations for the reconciliation
// ledger. The payment id is the idempotency key: recording the same payment
// twice must be a silent no-op so replayed webhook deliveries cannot apply a
// billing mutation more than once.
type BillingStorage interface {
	// RecordBillingEvent inserts the ledger entry for a payment. It returns
	// false when an entry for the same payment id already exists, in which
	// case nothing is written.
	RecordBillingEvent(ctx context.Context, event domain.BillingEvent) (bool, error)
	// BillingEventByPaymentID fetches a ledger entry by payment id.
	// Returns nil when not found.
	BillingEventByPaymentID(ctx context.Context, paymentID string) (*domain.BillingEvent, error)
}
