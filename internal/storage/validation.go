package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nkrasko/paper-trail/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrEmptySlice         = errors.New("slice cannot be empty")
	ErrInvalidDateRange   = errors.New("start date must be before end date")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidLink        = errors.New("invalid manual link")
	ErrInvalidMatch       = errors.New("invalid match result")
	ErrInvalidPlan        = errors.New("invalid recovery plan")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateTransaction validates a single transaction before it touches
// the store.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if txn.UID == "" {
		return fmt.Errorf("%w: missing UID", ErrInvalidTransaction)
	}
	if txn.Currency == "" {
		return fmt.Errorf("%w: missing currency", ErrInvalidTransaction)
	}
	if txn.NormalizedStatus == "" {
		return fmt.Errorf("%w: missing normalized status", ErrInvalidTransaction)
	}
	if txn.SourceChannel == "" {
		return fmt.Errorf("%w: missing source channel", ErrInvalidTransaction)
	}
	if txn.IngestedAt.IsZero() {
		return fmt.Errorf("%w: missing ingestion time", ErrInvalidTransaction)
	}
	return nil
}

// validateManualLink validates a manual link before saving.
func validateManualLink(link *model.ManualLink) error {
	if link == nil {
		return fmt.Errorf("%w: link", ErrNilParameter)
	}
	if link.TransactionUID == "" {
		return fmt.Errorf("%w: missing transaction UID", ErrInvalidLink)
	}
	if link.ContactID == "" {
		return fmt.Errorf("%w: missing contact id", ErrInvalidLink)
	}
	return nil
}

// validateMatch validates a match result before saving.
func validateMatch(match *model.MatchResult) error {
	if match == nil {
		return fmt.Errorf("%w: match", ErrNilParameter)
	}
	if match.TransactionUID == "" {
		return fmt.Errorf("%w: missing transaction UID", ErrInvalidMatch)
	}
	switch match.MatchType {
	case model.MatchManual, model.MatchEmail, model.MatchCardHolderName:
		if match.ContactID == "" {
			return fmt.Errorf("%w: missing contact id", ErrInvalidMatch)
		}
	case model.MatchNone:
	default:
		return fmt.Errorf("%w: unknown match type %s", ErrInvalidMatch, match.MatchType)
	}
	return nil
}

// validatePlan validates a recovery plan before saving.
func validatePlan(plan *model.RecoveryPlan) error {
	if plan == nil {
		return fmt.Errorf("%w: plan", ErrNilParameter)
	}
	if plan.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidPlan)
	}
	switch plan.Kind {
	case model.RecoverySingle, model.RecoveryBulkResync, model.RecoverySoftCancel:
	default:
		return fmt.Errorf("%w: unknown kind %s", ErrInvalidPlan, plan.Kind)
	}
	switch plan.State {
	case model.StatePreviewed, model.StateStopped, model.StateExecuted:
	default:
		return fmt.Errorf("%w: unknown state %s", ErrInvalidPlan, plan.State)
	}
	return nil
}
