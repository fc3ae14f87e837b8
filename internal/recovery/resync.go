package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nkrasko/paper-trail/internal/model"
	"github.com/nkrasko/paper-trail/internal/normalize"
	"github.com/nkrasko/paper-trail/internal/service"
)

// PreviewBulkResync plans an enrichment pass over already-known UIDs
// still missing their provider-reported timestamp. Resync is strictly
// an enrichment, never a discovery mechanism: the provider offers no
// bulk listing API, so the candidate set is always drawn from records
// the ledger already holds.
func (s *Service) PreviewBulkResync(ctx context.Context, window service.DateRange) (*model.RecoveryPlan, error) {
	uids, err := s.store.GetIncompleteUIDs(ctx, window, 0)
	if err != nil {
		return nil, err
	}

	plan := &model.RecoveryPlan{
		ID:            uuid.NewString(),
		Kind:          model.RecoveryBulkResync,
		State:         model.StatePreviewed,
		CandidateUIDs: uids,
	}

	if len(uids) > s.cfg.MaxCandidates {
		plan.State = model.StateStopped
		plan.StopReason = fmt.Sprintf("%d candidates exceed the safety threshold of %d; re-run with explicit confirmation",
			len(uids), s.cfg.MaxCandidates)
	}

	if err := s.store.SaveRecoveryPlan(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// ExecuteBulkResync re-fetches each candidate from the provider and
// merges the result into the stored record, filling in missing fields.
// Per-record fetch failures are retried up to the configured attempt
// count, then collected in the result; they never abort the batch.
func (s *Service) ExecuteBulkResync(ctx context.Context, planID string, confirmed bool) (*model.RecoveryResult, error) {
	plan, err := s.loadExecutablePlan(ctx, planID, model.RecoveryBulkResync, confirmed)
	if err != nil {
		return nil, err
	}

	result := &model.RecoveryResult{
		PlanID: plan.ID,
		Kind:   plan.Kind,
		State:  model.StateExecuted,
	}

	total := len(plan.CandidateUIDs)
	done := 0

	for _, chunk := range chunkUIDs(plan.CandidateUIDs, s.cfg.BatchSize) {
		for _, uid := range chunk {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			if err := s.resyncOne(ctx, uid); err != nil {
				result.Failures = append(result.Failures, model.ItemFailure{
					UID:    uid,
					Reason: err.Error(),
				})
			} else {
				result.Applied++
			}

			done++
			s.reportProgress(done, total)
		}
	}

	if len(result.Failures) > 0 {
		slog.Warn("Bulk resync completed with failures",
			"plan_id", plan.ID,
			"applied", result.Applied,
			"failed", len(result.Failures))
	}

	if err := s.store.UpdateRecoveryPlanState(ctx, plan.ID, model.StateExecuted); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) resyncOne(ctx context.Context, uid string) error {
	record, err := s.fetchWithRetry(ctx, uid, true)
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("provider does not know %s", uid)
		}
		return err
	}

	txn, err := normalize.FromRecord(*record, model.ChannelAPIPull, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("unusable provider record: %w", err)
	}
	if txn.UID != uid {
		return fmt.Errorf("provider returned %s for requested %s", txn.UID, uid)
	}

	if err := s.store.UpsertTransaction(ctx, txn); err != nil {
		return fmt.Errorf("failed to merge resynced record: %w", err)
	}
	return nil
}

// chunkUIDs splits the candidate set into bounded batches so individual
// store operations stay small and retryable.
func chunkUIDs(uids []string, size int) [][]string {
	var chunks [][]string
	for len(uids) > size {
		chunks = append(chunks, uids[:size])
		uids = uids[size:]
	}
	if len(uids) > 0 {
		chunks = append(chunks, uids)
	}
	return chunks
}
