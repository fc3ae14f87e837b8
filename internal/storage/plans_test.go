package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkrasko/paper-trail/internal/common"
	"github.com/nkrasko/paper-trail/internal/model"
)

func TestRecoveryPlans(t *testing.T) {
	ctx := context.Background()

	t.Run("single recovery plan round trips its candidate", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		candidate := makeTestTransaction("uid-1")
		plan := &model.RecoveryPlan{
			ID:            "plan-1",
			Kind:          model.RecoverySingle,
			State:         model.StatePreviewed,
			Outcome:       model.OutcomeCreated,
			LookupRef:     "uid-1",
			Candidate:     &candidate,
			CandidateUIDs: []string{"uid-1"},
		}
		require.NoError(t, store.SaveRecoveryPlan(ctx, plan))

		got, err := store.GetRecoveryPlan(ctx, "plan-1")
		require.NoError(t, err)
		assert.Equal(t, model.RecoverySingle, got.Kind)
		assert.Equal(t, model.StatePreviewed, got.State)
		assert.Equal(t, model.OutcomeCreated, got.Outcome)
		assert.Equal(t, "uid-1", got.LookupRef)
		assert.Equal(t, []string{"uid-1"}, got.CandidateUIDs)
		require.NotNil(t, got.Candidate)
		assert.Equal(t, candidate.UID, got.Candidate.UID)
		assert.True(t, got.Candidate.Amount.Equal(candidate.Amount))
	})

	t.Run("bulk plan round trips candidate and conflict sets", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		plan := &model.RecoveryPlan{
			ID:            "plan-2",
			Kind:          model.RecoverySoftCancel,
			State:         model.StateStopped,
			StopReason:    "too many candidates",
			CandidateUIDs: []string{"uid-1", "uid-2"},
			ConflictUIDs:  []string{"uid-3"},
		}
		require.NoError(t, store.SaveRecoveryPlan(ctx, plan))

		got, err := store.GetRecoveryPlan(ctx, "plan-2")
		require.NoError(t, err)
		assert.Equal(t, model.StateStopped, got.State)
		assert.Equal(t, "too many candidates", got.StopReason)
		assert.Equal(t, []string{"uid-1", "uid-2"}, got.CandidateUIDs)
		assert.Equal(t, []string{"uid-3"}, got.ConflictUIDs)
		assert.Nil(t, got.Candidate)
	})

	t.Run("unknown plan", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		_, err := store.GetRecoveryPlan(ctx, "nope")
		require.ErrorIs(t, err, common.ErrPlanNotFound)
	})

	t.Run("state transition", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		require.NoError(t, store.SaveRecoveryPlan(ctx, &model.RecoveryPlan{
			ID:    "plan-3",
			Kind:  model.RecoveryBulkResync,
			State: model.StatePreviewed,
		}))

		require.NoError(t, store.UpdateRecoveryPlanState(ctx, "plan-3", model.StateExecuted))

		got, err := store.GetRecoveryPlan(ctx, "plan-3")
		require.NoError(t, err)
		assert.Equal(t, model.StateExecuted, got.State)
	})

	t.Run("transitioning an unknown plan fails", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		err := store.UpdateRecoveryPlanState(ctx, "nope", model.StateExecuted)
		require.ErrorIs(t, err, common.ErrPlanNotFound)
	})

	t.Run("rejects plans with unknown kinds", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		err := store.SaveRecoveryPlan(ctx, &model.RecoveryPlan{
			ID:    "plan-4",
			Kind:  "teleport",
			State: model.StatePreviewed,
		})
		require.ErrorIs(t, err, ErrInvalidPlan)
	})
}
