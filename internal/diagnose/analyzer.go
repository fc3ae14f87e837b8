// Package diagnose scans the order/payment ledger for data-loss and
// duplication anomalies, independent of any external statement.
package diagnose

import (
	"context"
	"errors"
	"fmt"

	"github.com/nkrasko/paper-trail/internal/common"
	"github.com/nkrasko/paper-trail/internal/model"
	"github.com/nkrasko/paper-trail/internal/service"
)

// Analyzer scans paid orders for missing or doubly-attributed payment
// records.
type Analyzer struct {
	store service.Store
}

// New creates an analyzer backed by the given store.
func New(store service.Store) *Analyzer {
	return &Analyzer{store: store}
}

// Run diagnoses every order in the paid terminal state. Each order
// receives at most one record; when more than one condition applies,
// duplicate-order wins over missing-payment wins over no-provider-uid.
func (a *Analyzer) Run(ctx context.Context) ([]model.DiagnosisRecord, error) {
	orders, err := a.store.GetPaidOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load paid orders: %w", err)
	}

	var records []model.DiagnosisRecord
	seenPairs := make(map[string]bool)

	for _, order := range orders {
		record, err := a.diagnoseOrder(ctx, order)
		if err != nil {
			return nil, err
		}
		if record == nil {
			continue
		}

		// When both orders sharing a UID are paid, the scan reaches the
		// pair from each side; one record naming both is enough.
		if record.Diagnosis == model.DiagnosisDuplicateOrder {
			key := pairKey(record.OrderID, record.ConflictingOrderID)
			if seenPairs[key] {
				continue
			}
			seenPairs[key] = true
		}

		records = append(records, *record)
	}

	return records, nil
}

func pairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "\x00" + b
}

func (a *Analyzer) diagnoseOrder(ctx context.Context, order model.LedgerEntry) (*model.DiagnosisRecord, error) {
	uid := order.LinkedUID
	hasOwnUID := uid != ""

	// An order without its own provider UID can still reveal a
	// duplicate through the payment row it references.
	if !hasOwnUID && order.PaymentID != "" {
		payment, err := a.store.GetPaymentByID(ctx, order.PaymentID)
		if err != nil && !errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("failed to load payment %s: %w", order.PaymentID, err)
		}
		if payment != nil {
			uid = payment.LinkedUID
		}
	}

	if uid != "" {
		payments, err := a.store.GetPaymentsByUID(ctx, uid)
		if err != nil {
			return nil, fmt.Errorf("failed to load payments for %s: %w", uid, err)
		}

		for _, payment := range payments {
			if payment.OrderID == order.OrderID {
				continue
			}
			// Same provider UID attributed to another order: the same
			// money counted twice. Highest severity.
			return &model.DiagnosisRecord{
				OrderID:   order.OrderID,
				Diagnosis: model.DiagnosisDuplicateOrder,
				Detail: fmt.Sprintf("payment %s for UID %s is linked to order %s",
					payment.PaymentID, uid, payment.OrderID),
				ConflictingOrderID:   payment.OrderID,
				ConflictingPaymentID: payment.PaymentID,
			}, nil
		}

		if hasOwnUID && !hasOwnPayment(payments, order.OrderID) {
			return &model.DiagnosisRecord{
				OrderID:   order.OrderID,
				Diagnosis: model.DiagnosisMissingPayment,
				Detail:    fmt.Sprintf("order is paid but no payment row carries UID %s", uid),
			}, nil
		}
	}

	if !hasOwnUID {
		return &model.DiagnosisRecord{
			OrderID:   order.OrderID,
			Diagnosis: model.DiagnosisNoProviderUID,
			Detail:    "order carries no provider UID; likely granted manually or outside the provider",
		}, nil
	}

	return nil, nil
}

func hasOwnPayment(payments []model.LedgerEntry, orderID string) bool {
	for _, payment := range payments {
		if payment.OrderID == orderID {
			return true
		}
	}
	return false
}
