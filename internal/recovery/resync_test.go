package recovery

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkrasko/paper-trail/internal/common"
	"github.com/nkrasko/paper-trail/internal/model"
	"github.com/nkrasko/paper-trail/internal/normalize"
	"github.com/nkrasko/paper-trail/internal/service"
	"github.com/nkrasko/paper-trail/internal/storage"
)

// seedIncomplete stores a record without a provider timestamp and
// returns its uid.
func seedIncomplete(t *testing.T, store *storage.SQLiteStorage, ingestedAt time.Time) string {
	t.Helper()

	uid := uuid.NewString()
	require.NoError(t, store.UpsertTransaction(context.Background(), model.Transaction{
		UID:              uid,
		Currency:         "USD",
		Status:           "pending",
		NormalizedStatus: model.StatusPending,
		Type:             model.TypePayment,
		SourceChannel:    model.ChannelWebhook,
		Amount:           decimal.RequireFromString("10"),
		IngestedAt:       ingestedAt,
	}))
	return uid
}

func TestPreviewBulkResync(t *testing.T) {
	ctx := context.Background()
	ingestedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("candidates are already-known incomplete records only", func(t *testing.T) {
		svc, store, _ := newTestService(t, Config{})

		incomplete := seedIncomplete(t, store, ingestedAt)
		seedKnownTransaction(t, store, testUID) // no occurred_at either

		complete := model.Transaction{
			UID:              otherTestUID,
			Currency:         "USD",
			Status:           "successful",
			NormalizedStatus: model.StatusSuccessful,
			Type:             model.TypePayment,
			SourceChannel:    model.ChannelWebhook,
			Amount:           decimal.RequireFromString("10"),
			IngestedAt:       ingestedAt,
		}
		occurred := time.Date(2026, 2, 28, 14, 30, 0, 0, time.UTC)
		complete.OccurredAt = &occurred
		require.NoError(t, store.UpsertTransaction(ctx, complete))

		plan, err := svc.PreviewBulkResync(ctx, service.DateRange{})
		require.NoError(t, err)

		assert.Equal(t, model.StatePreviewed, plan.State)
		assert.ElementsMatch(t, []string{incomplete, testUID}, plan.CandidateUIDs)
	})

	t.Run("stops past the safety threshold", func(t *testing.T) {
		svc, store, _ := newTestService(t, Config{MaxCandidates: 2})
		for i := 0; i < 3; i++ {
			seedIncomplete(t, store, ingestedAt.Add(time.Duration(i)*time.Hour))
		}

		plan, err := svc.PreviewBulkResync(ctx, service.DateRange{})
		require.NoError(t, err)

		assert.Equal(t, model.StateStopped, plan.State)
		assert.Contains(t, plan.StopReason, "safety threshold")
		assert.Len(t, plan.CandidateUIDs, 3)

		// The stopped plan is persisted as stopped, not silently dropped.
		saved, err := store.GetRecoveryPlan(ctx, plan.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StateStopped, saved.State)
	})
}

func TestExecuteBulkResync(t *testing.T) {
	ctx := context.Background()
	ingestedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("enriches records and collects per-item failures", func(t *testing.T) {
		svc, store, mock := newTestService(t, Config{MaxAttempts: 1, BatchSize: 2})

		good1 := seedIncomplete(t, store, ingestedAt)
		good2 := seedIncomplete(t, store, ingestedAt.Add(time.Hour))
		missing := seedIncomplete(t, store, ingestedAt.Add(2*time.Hour))

		mock.GetByUIDFn = func(_ context.Context, uid string) (*normalize.Record, error) {
			if uid == missing {
				return nil, common.ErrNotFound
			}
			rec := providerRecord(uid)
			return rec, nil
		}

		plan, err := svc.PreviewBulkResync(ctx, service.DateRange{})
		require.NoError(t, err)

		var progress []int
		svc.Progress = func(done, _ int) { progress = append(progress, done) }

		result, err := svc.ExecuteBulkResync(ctx, plan.ID, false)
		require.NoError(t, err)

		assert.Equal(t, 2, result.Applied)
		require.Len(t, result.Failures, 1)
		assert.Equal(t, missing, result.Failures[0].UID)
		assert.Contains(t, result.Failures[0].Reason, "does not know")
		assert.Equal(t, []int{1, 2, 3}, progress)

		// Enriched records now carry the provider timestamp and status.
		for _, uid := range []string{good1, good2} {
			got, err := store.GetTransactionByUID(ctx, uid)
			require.NoError(t, err)
			require.NotNil(t, got.OccurredAt)
			assert.Equal(t, model.StatusSuccessful, got.NormalizedStatus)
			assert.Equal(t, model.ChannelAPIPull, got.SourceChannel)
		}

		saved, err := store.GetRecoveryPlan(ctx, plan.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StateExecuted, saved.State)
	})

	t.Run("a uid echo mismatch is a per-item failure", func(t *testing.T) {
		svc, store, mock := newTestService(t, Config{MaxAttempts: 1})
		seedIncomplete(t, store, ingestedAt)

		mock.GetByUIDFn = func(_ context.Context, _ string) (*normalize.Record, error) {
			return providerRecord(testUID), nil
		}

		plan, err := svc.PreviewBulkResync(ctx, service.DateRange{})
		require.NoError(t, err)

		result, err := svc.ExecuteBulkResync(ctx, plan.ID, false)
		require.NoError(t, err)
		assert.Zero(t, result.Applied)
		require.Len(t, result.Failures, 1)
		assert.Contains(t, result.Failures[0].Reason, "returned")
	})

	t.Run("a stopped plan requires confirmation", func(t *testing.T) {
		svc, store, mock := newTestService(t, Config{MaxCandidates: 1, MaxAttempts: 1})
		seedIncomplete(t, store, ingestedAt)
		seedIncomplete(t, store, ingestedAt.Add(time.Hour))

		mock.GetByUIDFn = func(_ context.Context, uid string) (*normalize.Record, error) {
			return providerRecord(uid), nil
		}

		plan, err := svc.PreviewBulkResync(ctx, service.DateRange{})
		require.NoError(t, err)
		require.Equal(t, model.StateStopped, plan.State)

		_, err = svc.ExecuteBulkResync(ctx, plan.ID, false)
		require.ErrorIs(t, err, common.ErrPlanStopped)
		assert.True(t, strings.Contains(err.Error(), "safety threshold"))

		// A refused execution leaves the plan stopped.
		saved, err := store.GetRecoveryPlan(ctx, plan.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StateStopped, saved.State)

		result, err := svc.ExecuteBulkResync(ctx, plan.ID, true)
		require.NoError(t, err)
		assert.Equal(t, 2, result.Applied)
	})
}
