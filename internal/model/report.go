package model

import "github.com/shopspring/decimal"

// StatementEntry is one row of an authoritative external statement as
// the differ consumes it: already normalized, already validated.
type StatementEntry struct {
	UID              string
	Currency         string
	NormalizedStatus NormalizedStatus
	Type             TransactionType
	Amount           decimal.Decimal
}

// Mismatch describes a UID present on both sides whose status or
// amount disagrees. Mismatches are a subset of matched entries, never
// double-counted against missing or extra.
type Mismatch struct {
	UID             string
	StatementStatus NormalizedStatus
	LedgerStatus    NormalizedStatus
	StatementAmount decimal.Decimal
	LedgerAmount    decimal.Decimal
}

// StatusBucket aggregates one side of the diff per normalized status.
type StatusBucket struct {
	Count int
	Sum   decimal.Decimal
}

// ReconciliationReport is the result of one statement-vs-ledger run.
// Sample slices are capped; counts are exact.
type ReconciliationReport struct {
	StatementTotals map[NormalizedStatus]StatusBucket
	LedgerTotals    map[NormalizedStatus]StatusBucket

	MissingSamples   []StatementEntry
	ExtraSamples     []Transaction
	StatusMismatches []Mismatch
	AmountMismatches []Mismatch

	Matched         int
	MissingInLedger int
	ExtraInLedger   int
}
