// Package reconcile computes the three-way diff between an
// authoritative external statement and the internal ledger for the
// same window. It never mutates state; recovery is a separate,
// explicit step driven by its output.
package reconcile

import (
	"github.com/shopspring/decimal"

	"github.com/nkrasko/paper-trail/internal/model"
)

// sampleCap bounds the representative samples carried in a report.
// Counts are always exact.
const sampleCap = 10

// Diff classifies every UID on each side exactly once: present in both
// is matched (with status/amount mismatches recorded as a subset of
// matched), statement-only is missing-in-ledger (money the ledger does
// not know about, the highest-severity finding), ledger-only is
// extra-in-ledger (flagged, never auto-removed).
func Diff(statement []model.StatementEntry, ledger []model.Transaction) model.ReconciliationReport {
	report := model.ReconciliationReport{
		StatementTotals: make(map[model.NormalizedStatus]model.StatusBucket),
		LedgerTotals:    make(map[model.NormalizedStatus]model.StatusBucket),
	}

	ledgerByUID := make(map[string]model.Transaction, len(ledger))
	for _, txn := range ledger {
		ledgerByUID[txn.UID] = txn
		addToBucket(report.LedgerTotals, txn.NormalizedStatus, txn.Amount)
	}

	statementUIDs := make(map[string]bool, len(statement))
	for _, entry := range statement {
		statementUIDs[entry.UID] = true
		addToBucket(report.StatementTotals, entry.NormalizedStatus, entry.Amount)

		txn, known := ledgerByUID[entry.UID]
		if !known {
			report.MissingInLedger++
			if len(report.MissingSamples) < sampleCap {
				report.MissingSamples = append(report.MissingSamples, entry)
			}
			continue
		}

		report.Matched++

		if entry.NormalizedStatus != txn.NormalizedStatus {
			report.StatusMismatches = append(report.StatusMismatches, model.Mismatch{
				UID:             entry.UID,
				StatementStatus: entry.NormalizedStatus,
				LedgerStatus:    txn.NormalizedStatus,
				StatementAmount: entry.Amount,
				LedgerAmount:    txn.Amount,
			})
		}
		if !entry.Amount.Equal(txn.Amount) {
			report.AmountMismatches = append(report.AmountMismatches, model.Mismatch{
				UID:             entry.UID,
				StatementStatus: entry.NormalizedStatus,
				LedgerStatus:    txn.NormalizedStatus,
				StatementAmount: entry.Amount,
				LedgerAmount:    txn.Amount,
			})
		}
	}

	for _, txn := range ledger {
		if statementUIDs[txn.UID] {
			continue
		}
		report.ExtraInLedger++
		if len(report.ExtraSamples) < sampleCap {
			report.ExtraSamples = append(report.ExtraSamples, txn)
		}
	}

	return report
}

func addToBucket(totals map[model.NormalizedStatus]model.StatusBucket, status model.NormalizedStatus, amount decimal.Decimal) {
	bucket := totals[status]
	bucket.Count++
	bucket.Sum = bucket.Sum.Add(amount)
	totals[status] = bucket
}
