package domain

import "time"

// BillingEvent is the local ledger entry recording that a processor payment
// has been reconciled. The processor's payment object itself stays external
// and authoritative; this row only exists so that replayed or duplicated
// notifications for the same payment become no-ops.
type BillingEvent struct {
	// PaymentID is the processor's opaque payment identifier (primary key).
	PaymentID string `json:"paymentId"`
	// OrganizationID is the organization the payment was reconciled against.
	OrganizationID OrganizationID `json:"organizationId"`
	// PaymentStatus is the processor status observed when the event was applied.
	PaymentStatus string `json:"paymentStatus"`
	// SequenceType is the processor's sequence classification (first/recurring/...).
	SequenceType string `json:"sequenceType"`
	// ProcessedAt is when reconciliation applied the event.
	ProcessedAt time.Time `json:"processedAt"`
}
