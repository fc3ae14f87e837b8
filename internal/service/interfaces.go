// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/nkrasko/paper-trail/internal/model"
)

// DateRange represents a time period with inclusive start and end.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls within the range. A zero Start or
// End leaves that bound open.
func (r DateRange) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && t.After(r.End) {
		return false
	}
	return true
}

// Page is one keyset-paginated slice of the statement listing.
type Page struct {
	NextCursor   string // empty on the last page
	Transactions []model.Transaction
}

// Store defines the contract for our persistence layer.
type Store interface {
	// Transaction ledger operations
	UpsertTransaction(ctx context.Context, txn model.Transaction) error
	UpsertTransactions(ctx context.Context, txns []model.Transaction) (int, error)
	GetTransactionByUID(ctx context.Context, uid string) (*model.Transaction, error)
	GetTransactionByTrackingID(ctx context.Context, trackingID string) (*model.Transaction, error)
	GetTransactionsByDateRange(ctx context.Context, window DateRange) ([]model.Transaction, error)
	GetIncompleteUIDs(ctx context.Context, window DateRange, limit int) ([]string, error)
	GetCancellationCandidates(ctx context.Context, window DateRange, statuses []model.NormalizedStatus) ([]string, error)
	MarkCancelled(ctx context.Context, uids []string) (int, error)
	ListStatement(ctx context.Context, cursor string, pageSize int) (*Page, error)

	// Order/payment ledger operations
	GetPaidOrders(ctx context.Context) ([]model.LedgerEntry, error)
	GetPaymentsByUID(ctx context.Context, uid string) ([]model.LedgerEntry, error)
	GetPaymentByID(ctx context.Context, paymentID string) (*model.LedgerEntry, error)
	FilterLedgerUIDs(ctx context.Context, uids []string) (map[string]bool, error)

	// Contact matching operations
	GetContactByEmail(ctx context.Context, email string) (*model.Contact, error)
	GetContactByFullName(ctx context.Context, normalizedName string) (*model.Contact, error)
	GetManualLinkByUID(ctx context.Context, uid string) (*model.ManualLink, error)
	GetManualLinkByEmail(ctx context.Context, email string) (*model.ManualLink, error)
	GetManualLinkByCardHolder(ctx context.Context, cardHolder string) (*model.ManualLink, error)
	SaveManualLink(ctx context.Context, link *model.ManualLink) error
	GetMatch(ctx context.Context, uid string) (*model.MatchResult, error)
	SaveMatch(ctx context.Context, match *model.MatchResult) error
	GetUnmatchedByAttributes(ctx context.Context, email, cardHolder string) ([]model.Transaction, error)

	// Recovery plan persistence
	SaveRecoveryPlan(ctx context.Context, plan *model.RecoveryPlan) error
	GetRecoveryPlan(ctx context.Context, id string) (*model.RecoveryPlan, error)
	UpdateRecoveryPlanState(ctx context.Context, id string, state model.RecoveryState) error

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
