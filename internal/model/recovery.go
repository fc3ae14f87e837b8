package model

import "time"

// RecoveryKind names one of the guarded mutation flows.
type RecoveryKind string

// Recovery kind constants.
const (
	RecoverySingle     RecoveryKind = "single_recovery"
	RecoveryBulkResync RecoveryKind = "bulk_resync"
	RecoverySoftCancel RecoveryKind = "soft_cancel"
)

// RecoveryState tracks a plan through its two-phase lifecycle:
// previewed -> executed, or previewed -> stopped when the candidate set
// exceeds the safety threshold and explicit confirmation is required.
type RecoveryState string

// Recovery state constants.
const (
	StatePreviewed RecoveryState = "previewed"
	StateStopped   RecoveryState = "stopped"
	StateExecuted  RecoveryState = "executed"
)

// SingleOutcome is the preview verdict for a single-record recovery.
type SingleOutcome string

// Single-recovery outcomes. Only a created preview may be executed.
const (
	OutcomeCreated       SingleOutcome = "created"
	OutcomeAlreadyExists SingleOutcome = "already_exists"
	OutcomeNotFound      SingleOutcome = "not_found"
)

// RecoveryPlan is the persisted output of a preview and the required
// input of an execute. The ID doubles as an idempotency token: execute
// verifies the plan against the state the preview was computed from.
type RecoveryPlan struct {
	CreatedAt  time.Time
	ID         string
	Kind       RecoveryKind
	State      RecoveryState
	StopReason string // set when State is stopped

	// Single recovery only.
	Outcome   SingleOutcome
	Candidate *Transaction // the fetched record a created preview would queue
	LookupRef string       // the UID or tracking id the operator supplied

	// Bulk operations only.
	CandidateUIDs []string
	ConflictUIDs  []string // soft-cancel candidates excluded for ledger overlap
}

// ItemFailure records one per-record failure inside a bulk execution.
// Per-item failures never abort the rest of the batch.
type ItemFailure struct {
	UID    string
	Reason string
}

// RecoveryResult is the outcome of executing a plan.
type RecoveryResult struct {
	PlanID    string
	Kind      RecoveryKind
	State     RecoveryState
	Applied   int
	Conflicts []string
	Failures  []ItemFailure
}
