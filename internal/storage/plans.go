package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nkrasko/paper-trail/internal/common"
	"github.com/nkrasko/paper-trail/internal/model"
)

// Recovery plans are persisted so an execute can verify the preview it
// was computed from, across process restarts.

// SaveRecoveryPlan stores a previewed plan.
func (s *SQLiteStorage) SaveRecoveryPlan(ctx context.Context, plan *model.RecoveryPlan) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validatePlan(plan); err != nil {
		return err
	}

	var candidateJSON any
	if plan.Candidate != nil {
		raw, err := json.Marshal(plan.Candidate)
		if err != nil {
			return fmt.Errorf("failed to marshal plan candidate: %w", err)
		}
		candidateJSON = string(raw)
	}

	candidateUIDs, err := json.Marshal(plan.CandidateUIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal candidate uids: %w", err)
	}
	conflictUIDs, err := json.Marshal(plan.ConflictUIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal conflict uids: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO recovery_plans (
			id, kind, state, stop_reason, outcome, lookup_ref,
			candidate_json, candidate_uids, conflict_uids, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		plan.ID,
		string(plan.Kind),
		string(plan.State),
		nullString(plan.StopReason),
		nullString(string(plan.Outcome)),
		nullString(plan.LookupRef),
		candidateJSON,
		string(candidateUIDs),
		string(conflictUIDs),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save recovery plan: %w", err)
	}
	return nil
}

// GetRecoveryPlan loads a plan by its idempotency token.
func (s *SQLiteStorage) GetRecoveryPlan(ctx context.Context, id string) (*model.RecoveryPlan, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	var (
		plan          model.RecoveryPlan
		kind          string
		state         string
		stopReason    sql.NullString
		outcome       sql.NullString
		lookupRef     sql.NullString
		candidateJSON sql.NullString
		candidateUIDs string
		conflictUIDs  string
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT id, kind, state, stop_reason, outcome, lookup_ref,
		       candidate_json, candidate_uids, conflict_uids, created_at
		FROM recovery_plans
		WHERE id = ?
	`, id).Scan(
		&plan.ID, &kind, &state, &stopReason, &outcome, &lookupRef,
		&candidateJSON, &candidateUIDs, &conflictUIDs, &plan.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recovery plan: %w", err)
	}

	plan.Kind = model.RecoveryKind(kind)
	plan.State = model.RecoveryState(state)
	plan.StopReason = stopReason.String
	plan.Outcome = model.SingleOutcome(outcome.String)
	plan.LookupRef = lookupRef.String

	if candidateJSON.Valid && candidateJSON.String != "" {
		var candidate model.Transaction
		if err := json.Unmarshal([]byte(candidateJSON.String), &candidate); err != nil {
			return nil, fmt.Errorf("failed to parse plan candidate: %w", err)
		}
		plan.Candidate = &candidate
	}
	if err := json.Unmarshal([]byte(candidateUIDs), &plan.CandidateUIDs); err != nil {
		return nil, fmt.Errorf("failed to parse candidate uids: %w", err)
	}
	if err := json.Unmarshal([]byte(conflictUIDs), &plan.ConflictUIDs); err != nil {
		return nil, fmt.Errorf("failed to parse conflict uids: %w", err)
	}

	return &plan, nil
}

// UpdateRecoveryPlanState transitions a plan, stamping the execution
// time when it reaches the executed state.
func (s *SQLiteStorage) UpdateRecoveryPlanState(ctx context.Context, id string, state model.RecoveryState) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	var executedAt any
	if state == model.StateExecuted {
		executedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE recovery_plans SET state = ?, executed_at = coalesce(?, executed_at) WHERE id = ?
	`, string(state), executedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update plan state: %w", err)
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		return common.ErrPlanNotFound
	}
	return nil
}
