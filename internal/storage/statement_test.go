package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListStatement(t *testing.T) {
	ctx := context.Background()

	t.Run("orders newest first with uid tie-break", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		shared := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		later := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

		for _, uid := range []string{"uid-a", "uid-b", "uid-c"} {
			txn := makeTestTransaction(uid)
			ts := shared
			txn.OccurredAt = &ts
			require.NoError(t, store.UpsertTransaction(ctx, txn))
		}
		newest := makeTestTransaction("uid-d")
		newest.OccurredAt = &later
		require.NoError(t, store.UpsertTransaction(ctx, newest))

		page, err := store.ListStatement(ctx, "", 10)
		require.NoError(t, err)
		require.Len(t, page.Transactions, 4)
		assert.Empty(t, page.NextCursor)

		got := make([]string, 0, 4)
		for _, txn := range page.Transactions {
			got = append(got, txn.UID)
		}
		assert.Equal(t, []string{"uid-d", "uid-c", "uid-b", "uid-a"}, got)
	})

	t.Run("pages without skips or duplicates across shared timestamps", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		// Many rows sharing one sort timestamp is exactly the case where
		// offset pagination duplicates or drops rows.
		shared := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		want := make(map[string]bool)
		for i := 0; i < 7; i++ {
			uid := fmt.Sprintf("uid-%02d", i)
			want[uid] = true
			txn := makeTestTransaction(uid)
			ts := shared
			txn.OccurredAt = &ts
			require.NoError(t, store.UpsertTransaction(ctx, txn))
		}

		seen := make(map[string]bool)
		cursor := ""
		pages := 0
		for {
			page, err := store.ListStatement(ctx, cursor, 3)
			require.NoError(t, err)
			pages++

			for _, txn := range page.Transactions {
				assert.False(t, seen[txn.UID], "uid %s served twice", txn.UID)
				seen[txn.UID] = true
			}

			if page.NextCursor == "" {
				break
			}
			cursor = page.NextCursor
			require.Less(t, pages, 10, "pagination did not terminate")
		}

		assert.Equal(t, want, seen)
		assert.Equal(t, 3, pages)
	})

	t.Run("records without a provider timestamp sort by ingestion time", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		occurred := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		withTime := makeTestTransaction("uid-occurred")
		withTime.OccurredAt = &occurred
		withTime.IngestedAt = time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)
		require.NoError(t, store.UpsertTransaction(ctx, withTime))

		withoutTime := makeTestTransaction("uid-ingested")
		withoutTime.IngestedAt = time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC)
		require.NoError(t, store.UpsertTransaction(ctx, withoutTime))

		page, err := store.ListStatement(ctx, "", 10)
		require.NoError(t, err)
		require.Len(t, page.Transactions, 2)
		assert.Equal(t, "uid-ingested", page.Transactions[0].UID)
		assert.Equal(t, "uid-occurred", page.Transactions[1].UID)
	})

	t.Run("rejects a malformed cursor", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		_, err := store.ListStatement(ctx, "not-a-cursor", 10)
		require.Error(t, err)
	})

	t.Run("empty table yields an empty last page", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		page, err := store.ListStatement(ctx, "", 10)
		require.NoError(t, err)
		assert.Empty(t, page.Transactions)
		assert.Empty(t, page.NextCursor)
	})
}

func TestCursorRoundTrip(t *testing.T) {
	pos := statementCursor{
		SortTime: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		UID:      "uid-a",
	}

	decoded, err := decodeCursor(encodeCursor(pos))
	require.NoError(t, err)
	assert.Equal(t, pos.UID, decoded.UID)
	assert.True(t, decoded.SortTime.Equal(pos.SortTime))

	t.Run("rejects a cursor without a uid", func(t *testing.T) {
		_, err := decodeCursor(encodeCursor(statementCursor{SortTime: pos.SortTime}))
		require.Error(t, err)
	})
}
