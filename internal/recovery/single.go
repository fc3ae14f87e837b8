package recovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nkrasko/paper-trail/internal/common"
	"github.com/nkrasko/paper-trail/internal/model"
	"github.com/nkrasko/paper-trail/internal/normalize"
	"github.com/nkrasko/paper-trail/internal/service"
)

// PreviewRecovery resolves a single UID or tracking id: if the record
// is already in the ledger the preview reports already_exists; if the
// provider knows it the preview carries the fetched record and reports
// created; otherwise not_found. Only a created preview may be executed.
func (s *Service) PreviewRecovery(ctx context.Context, ref string) (*model.RecoveryPlan, error) {
	if ref == "" {
		return nil, common.NewValidationError("ref", "missing UID or tracking id")
	}

	byUID := normalize.ValidateUID(ref) == nil

	plan := &model.RecoveryPlan{
		ID:        uuid.NewString(),
		Kind:      model.RecoverySingle,
		State:     model.StatePreviewed,
		LookupRef: ref,
	}

	existing, err := s.lookupKnown(ctx, ref, byUID)
	if err != nil && !isNotFound(err) {
		return nil, err
	}

	switch {
	case existing != nil:
		plan.Outcome = model.OutcomeAlreadyExists
	default:
		record, fetchErr := s.fetchWithRetry(ctx, ref, byUID)
		switch {
		case fetchErr == nil:
			candidate, normErr := normalize.FromRecord(*record, model.ChannelManualRecovery, time.Now().UTC())
			if normErr != nil {
				return nil, fmt.Errorf("provider returned an unusable record for %s: %w", ref, normErr)
			}
			plan.Outcome = model.OutcomeCreated
			plan.Candidate = &candidate
			plan.CandidateUIDs = []string{candidate.UID}
		case isNotFound(fetchErr):
			plan.Outcome = model.OutcomeNotFound
		default:
			return nil, fetchErr
		}
	}

	if err := s.store.SaveRecoveryPlan(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// ExecuteRecovery applies a created single-recovery preview, queueing
// the fetched record. If the UID arrived through another channel since
// the preview, the execution reports a conflict instead of writing.
func (s *Service) ExecuteRecovery(ctx context.Context, planID string) (*model.RecoveryResult, error) {
	plan, err := s.loadExecutablePlan(ctx, planID, model.RecoverySingle, false)
	if err != nil {
		return nil, err
	}
	if plan.Outcome != model.OutcomeCreated || plan.Candidate == nil {
		return nil, fmt.Errorf("%w: preview outcome was %s", common.ErrPlanNotPreviewed, plan.Outcome)
	}

	result := &model.RecoveryResult{
		PlanID: plan.ID,
		Kind:   plan.Kind,
		State:  model.StateExecuted,
	}

	// The state may have drifted since the preview.
	existing, err := s.store.GetTransactionByUID(ctx, plan.Candidate.UID)
	if err != nil && !isNotFound(err) {
		return nil, err
	}

	if existing != nil {
		conflict := &common.ConflictError{
			UID:    plan.Candidate.UID,
			Reason: "arrived through another channel since the preview",
		}
		result.Conflicts = append(result.Conflicts, conflict.UID)
		result.Failures = append(result.Failures, model.ItemFailure{
			UID:    conflict.UID,
			Reason: conflict.Error(),
		})
	} else {
		if err := s.store.UpsertTransaction(ctx, *plan.Candidate); err != nil {
			return nil, fmt.Errorf("failed to queue recovered record: %w", err)
		}
		result.Applied = 1
	}

	if err := s.store.UpdateRecoveryPlanState(ctx, plan.ID, model.StateExecuted); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) lookupKnown(ctx context.Context, ref string, byUID bool) (*model.Transaction, error) {
	if byUID {
		return s.store.GetTransactionByUID(ctx, ref)
	}
	return s.store.GetTransactionByTrackingID(ctx, ref)
}

func (s *Service) fetchWithRetry(ctx context.Context, ref string, byUID bool) (*normalize.Record, error) {
	var record *normalize.Record

	err := common.WithRetry(ctx, func() error {
		var fetchErr error
		if byUID {
			record, fetchErr = s.provider.GetByUID(ctx, ref)
		} else {
			record, fetchErr = s.provider.GetByTrackingID(ctx, ref)
		}
		return fetchErr
	}, service.RetryOptions{MaxAttempts: s.cfg.MaxAttempts})
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}

	return record, nil
}
