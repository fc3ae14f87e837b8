package recovery

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nkrasko/paper-trail/internal/common"
	"github.com/nkrasko/paper-trail/internal/model"
	"github.com/nkrasko/paper-trail/internal/service"
)

// PreviewSoftCancel plans the cancellation of queued records matching
// the given normalized statuses within a window. Any candidate whose
// UID is corroborated by a payment row in the authoritative ledger is
// excluded up front and reported as a conflict; cancellation must never
// touch a UID that has a corroborated payment.
func (s *Service) PreviewSoftCancel(ctx context.Context, window service.DateRange, statuses []model.NormalizedStatus) (*model.RecoveryPlan, error) {
	candidates, err := s.store.GetCancellationCandidates(ctx, window, statuses)
	if err != nil {
		return nil, err
	}

	eligible, conflicts, err := s.splitByLedgerConflict(ctx, candidates)
	if err != nil {
		return nil, err
	}

	plan := &model.RecoveryPlan{
		ID:            uuid.NewString(),
		Kind:          model.RecoverySoftCancel,
		State:         model.StatePreviewed,
		CandidateUIDs: eligible,
		ConflictUIDs:  conflictUIDs(conflicts),
	}

	if len(eligible) > s.cfg.MaxCandidates {
		plan.State = model.StateStopped
		plan.StopReason = fmt.Sprintf("%d candidates exceed the safety threshold of %d; re-run with explicit confirmation",
			len(eligible), s.cfg.MaxCandidates)
	}

	if err := s.store.SaveRecoveryPlan(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// ExecuteSoftCancel transitions the plan's candidates to the cancelled
// terminal status in bounded chunks. Conflicts are re-checked at
// execute time: a candidate corroborated since the preview is skipped
// and reported, never cancelled.
func (s *Service) ExecuteSoftCancel(ctx context.Context, planID string, confirmed bool) (*model.RecoveryResult, error) {
	plan, err := s.loadExecutablePlan(ctx, planID, model.RecoverySoftCancel, confirmed)
	if err != nil {
		return nil, err
	}

	result := &model.RecoveryResult{
		PlanID:    plan.ID,
		Kind:      plan.Kind,
		State:     model.StateExecuted,
		Conflicts: append([]string(nil), plan.ConflictUIDs...),
	}

	// State may have drifted since the preview was computed.
	eligible, drifted, err := s.splitByLedgerConflict(ctx, plan.CandidateUIDs)
	if err != nil {
		return nil, err
	}
	for _, conflict := range drifted {
		result.Conflicts = append(result.Conflicts, conflict.UID)
		result.Failures = append(result.Failures, model.ItemFailure{
			UID:    conflict.UID,
			Reason: conflict.Error(),
		})
	}

	total := len(eligible)
	done := 0

	for _, chunk := range chunkUIDs(eligible, s.cfg.BatchSize) {
		cancelled, err := s.store.MarkCancelled(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("failed to cancel chunk: %w", err)
		}
		result.Applied += cancelled

		done += len(chunk)
		s.reportProgress(done, total)
	}

	if len(drifted) > 0 {
		slog.Info("Soft cancel skipped drifted conflicts",
			"plan_id", plan.ID,
			"drifted", len(drifted))
	}

	if err := s.store.UpdateRecoveryPlanState(ctx, plan.ID, model.StateExecuted); err != nil {
		return nil, err
	}
	return result, nil
}

// splitByLedgerConflict partitions candidates into UIDs safe to touch
// and typed conflicts for UIDs the authoritative ledger corroborates.
func (s *Service) splitByLedgerConflict(ctx context.Context, uids []string) (eligible []string, conflicts []*common.ConflictError, err error) {
	corroborated, err := s.store.FilterLedgerUIDs(ctx, uids)
	if err != nil {
		return nil, nil, err
	}

	for _, uid := range uids {
		if corroborated[uid] {
			conflicts = append(conflicts, &common.ConflictError{
				UID:    uid,
				Reason: "corroborated by a ledger payment",
			})
		} else {
			eligible = append(eligible, uid)
		}
	}
	return eligible, conflicts, nil
}

func conflictUIDs(conflicts []*common.ConflictError) []string {
	if len(conflicts) == 0 {
		return nil
	}
	uids := make([]string, 0, len(conflicts))
	for _, conflict := range conflicts {
		uids = append(uids, conflict.UID)
	}
	return uids
}
