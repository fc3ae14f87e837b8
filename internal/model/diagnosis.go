package model

// Diagnosis classifies a ledger anomaly found without reference to any
// external statement.
type Diagnosis string

// Diagnosis constants, in descending severity. When more than one
// condition applies to an order, the most severe wins and the order
// receives exactly one record.
const (
	// DiagnosisDuplicateOrder: a payment UID is attributed to more than
	// one order, i.e. the same money counted twice.
	DiagnosisDuplicateOrder Diagnosis = "MISMATCH_DUPLICATE_ORDER"
	// DiagnosisMissingPayment: the order is paid but no payment row
	// carries its provider UID.
	DiagnosisMissingPayment Diagnosis = "MISSING_PAYMENT_RECORD"
	// DiagnosisNoProviderUID: the order carries no provider UID at all,
	// likely granted manually or outside the provider.
	DiagnosisNoProviderUID Diagnosis = "NO_PROVIDER_UID"
)

// DiagnosisRecord is one anomaly finding for one order.
type DiagnosisRecord struct {
	OrderID              string
	Diagnosis            Diagnosis
	Detail               string
	ConflictingOrderID   string // set for duplicate-order findings
	ConflictingPaymentID string // set for duplicate-order findings
}
