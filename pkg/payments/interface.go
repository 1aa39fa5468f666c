// Package payments defines the interface and data types used to talk to the
// payment processor. Webhook notifications only carry an opaque payment id;
// the processor is always re-queried before any billing decision is made.
package payments

import (
	"context"
)

// Payment statuses as reported by the processor. Only paid, failed, expired
// and canceled drive billing mutations; the rest are transient.
const (
	StatusPaid       = "paid"
	StatusFailed     = "failed"
	StatusExpired    = "expired"
	StatusCanceled   = "canceled"
	StatusOpen       = "open"
	StatusPending    = "pending"
	StatusAuthorized = "authorized"
)

// Sequence types distinguishing the first charge of a subscription from
// recurring renewals.
const (
	SequenceFirst     = "first"
	SequenceRecurring = "recurring"
	SequenceOneOff    = "oneoff"
)

// Amount is a processor money value: a currency code and a decimal string.
type Amount struct {
	Currency string `json:"currency"`
	Value    string `json:"value"`
}

// Zero reports whether the amount is absent or zero. Zero-amount payments
// are payment-method-update probes, not real charges.
func (a Amount) Zero() bool {
	switch a.Value {
	case "", "0", "0.00":
		return true
	}

	return false
}

// Metadata is the key/value bag attached to payments and subscriptions at
// checkout time. It links the processor objects back to an organization.
type Metadata struct {
	// OrganizationID is the organization the payment belongs to.
	OrganizationID string `json:"organizationId,omitempty"`
	// PlanType is the tier purchased at checkout.
	PlanType string `json:"planType,omitempty"`
	// Interval is the billing interval purchased at checkout.
	Interval string `json:"interval,omitempty"`
	// MethodUpdate marks a zero-amount payment-method-update probe.
	MethodUpdate bool `json:"methodUpdate,omitempty"`
}

// Payment is the processor's view of a single charge.
type Payment struct {
	// ID is the opaque payment identifier.
	ID string
	// Status is one of the Status constants.
	Status string
	// SequenceType is one of the Sequence constants.
	SequenceType string
	// CustomerID is the processor customer the payment belongs to.
	CustomerID string
	// SubscriptionID is set for recurring payments.
	SubscriptionID string
	// Metadata links the payment back to an organization and plan.
	Metadata Metadata
	// Amount is the charged amount.
	Amount Amount
}

// Subscription is the processor's view of a recurring mandate.
type Subscription struct {
	// ID is the subscription identifier.
	ID string
	// CustomerID is the owning processor customer.
	CustomerID string
	// Status is the subscription status as reported by the processor.
	Status string
	// Interval is the renewal cadence.
	Interval string
	// Metadata carries the checkout metadata.
	Metadata Metadata
}

// Client is the abstraction for payment processors.
//
//go:generate mockgen -package mockpayments -source=interface.go -destination=mock/mockpayments.go *
type Client interface {
	// Payment fetches a payment by its id.
	Payment(ctx context.Context, paymentID string) (*Payment, error)
	// Subscription fetches a subscription scoped to its customer.
	Subscription(ctx context.Context, customerID, subscriptionID string) (*Subscription, error)
}
