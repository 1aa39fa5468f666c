package postgres

import (
	"context"
	"fmt"

	"a11yscan/pkg/domain"

	"github.com/doug-martin/goqu/v9"
)

const billingEventsTable = "billing_events"

// RecordBillingEvent inserts the reconciliation ledger entry for a payment.
// The payment id carries a unique constraint and the insert uses ON CONFLICT
// DO NOTHING, so a replayed payment leaves the ledger untouched and returns
// false. Callers run this inside the same transaction as the billing mutation
// it guards.
func (p *PgSQL) RecordBillingEvent(ctx context.Context, event domain.BillingEvent) (bool, error) {
	var row PgBillingEvent
	row.FromDomain(event)

	result, err := p.Builder.Insert(billingEventsTable).
		Rows(row).
		OnConflict(goqu.DoNothing()).
		Executor().ExecContext(ctx)
	if err != nil {
		return false, fmt.Errorf("could not record billing event into pg: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("could not read billing event insert result: %w", err)
	}

	return affected == 1, nil
}

// BillingEventByPaymentID returns the ledger entry for a payment, or nil.
func (p *PgSQL) BillingEventByPaymentID(ctx context.Context,
	paymentID string) (*domain.BillingEvent, error) {
	var row PgBillingEvent
	found, err := p.Builder.From(billingEventsTable).
		Where(goqu.I("payment_id").Eq(paymentID)).
		Executor().ScanStructContext(ctx, &row)
	if err != nil {
		return nil, fmt.Errorf("could not fetch billing event from pg: %w", err)
	}
	if !found {
		return nil, nil
	}

	return row.ToDomain(), nil
}
