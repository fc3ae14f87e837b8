package normalize

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkrasko/paper-trail/internal/common"
	"github.com/nkrasko/paper-trail/internal/model"
)

const testUID = "7afad5a2-21cf-4a75-bc5a-0f6b38940c8a"

func TestValidateUID(t *testing.T) {
	t.Run("accepts a provider identifier", func(t *testing.T) {
		require.NoError(t, ValidateUID(testUID))
	})

	t.Run("rejects empty", func(t *testing.T) {
		require.Error(t, ValidateUID(""))
	})

	t.Run("rejects arbitrary strings", func(t *testing.T) {
		err := ValidateUID("order-42")
		require.Error(t, err)

		var vErr *common.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "uid", vErr.Field)
	})
}

func TestFromWebhook(t *testing.T) {
	ingestedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("full payload", func(t *testing.T) {
		body := []byte(`{
			"transaction": {
				"uid": "` + testUID + `",
				"tracking_id": "order-42",
				"amount": 12550,
				"currency": "USD",
				"status": "successful",
				"type": "payment",
				"paid_at": "2026-02-28T14:30:00Z",
				"credit_card": {"holder": "JANE DOE", "last_4": "4242", "brand": "visa"},
				"customer": {"first_name": "Jane", "last_name": "Doe", "email": "jane@example.com"}
			}
		}`)

		txn, err := FromWebhook(body, ingestedAt)
		require.NoError(t, err)

		assert.Equal(t, testUID, txn.UID)
		assert.Equal(t, "order-42", txn.TrackingID)
		assert.True(t, txn.Amount.Equal(decimal.RequireFromString("125.50")))
		assert.Equal(t, "USD", txn.Currency)
		assert.Equal(t, "successful", txn.Status)
		assert.Equal(t, model.StatusSuccessful, txn.NormalizedStatus)
		assert.Equal(t, model.TypePayment, txn.Type)
		assert.Equal(t, model.ChannelWebhook, txn.SourceChannel)
		assert.Equal(t, "JANE DOE", txn.Card.Holder)
		assert.Equal(t, "Jane Doe", txn.Customer.Name)
		assert.Equal(t, "jane@example.com", txn.Customer.Email)
		assert.Equal(t, string(body), txn.RawPayload)

		require.NotNil(t, txn.OccurredAt)
		assert.True(t, txn.OccurredAt.Equal(time.Date(2026, 2, 28, 14, 30, 0, 0, time.UTC)))
	})

	t.Run("optional nested blocks may be absent", func(t *testing.T) {
		body := []byte(`{"transaction": {"uid": "` + testUID + `", "amount": 100, "currency": "EUR", "status": "pending", "type": "payment"}}`)

		txn, err := FromWebhook(body, ingestedAt)
		require.NoError(t, err)
		assert.Empty(t, txn.Card.Holder)
		assert.Empty(t, txn.Customer.Email)
		assert.Nil(t, txn.OccurredAt)
	})

	t.Run("malformed body is rejected", func(t *testing.T) {
		_, err := FromWebhook([]byte(`{not json`), ingestedAt)
		require.Error(t, err)
	})
}

func TestFromRecord(t *testing.T) {
	ingestedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	base := func() Record {
		return Record{
			UID:      testUID,
			Amount:   5000,
			Currency: "USD",
			Status:   "successful",
			Type:     "payment",
		}
	}

	t.Run("amounts convert from minor units", func(t *testing.T) {
		txn, err := FromRecord(base(), model.ChannelAPIPull, ingestedAt)
		require.NoError(t, err)
		assert.True(t, txn.Amount.Equal(decimal.RequireFromString("50")))
		assert.Equal(t, model.ChannelAPIPull, txn.SourceChannel)
	})

	t.Run("uid is canonicalized", func(t *testing.T) {
		rec := base()
		rec.UID = "7AFAD5A2-21CF-4A75-BC5A-0F6B38940C8A"

		txn, err := FromRecord(rec, model.ChannelAPIPull, ingestedAt)
		require.NoError(t, err)
		assert.Equal(t, testUID, txn.UID)
	})

	t.Run("prefers paid_at over created_at", func(t *testing.T) {
		rec := base()
		rec.PaidAt = "2026-02-28T14:30:00Z"
		rec.CreatedAt = "2026-02-27T09:00:00Z"

		txn, err := FromRecord(rec, model.ChannelAPIPull, ingestedAt)
		require.NoError(t, err)
		require.NotNil(t, txn.OccurredAt)
		assert.True(t, txn.OccurredAt.Equal(time.Date(2026, 2, 28, 14, 30, 0, 0, time.UTC)))
	})

	t.Run("falls back to created_at", func(t *testing.T) {
		rec := base()
		rec.CreatedAt = "2026-02-27T09:00:00Z"

		txn, err := FromRecord(rec, model.ChannelAPIPull, ingestedAt)
		require.NoError(t, err)
		require.NotNil(t, txn.OccurredAt)
		assert.True(t, txn.OccurredAt.Equal(time.Date(2026, 2, 27, 9, 0, 0, 0, time.UTC)))
	})

	tests := []struct {
		name   string
		mutate func(*Record)
	}{
		{name: "invalid uid", mutate: func(r *Record) { r.UID = "nope" }},
		{name: "unknown status", mutate: func(r *Record) { r.Status = "weird" }},
		{name: "unknown type", mutate: func(r *Record) { r.Type = "chargeback" }},
		{name: "missing currency", mutate: func(r *Record) { r.Currency = "" }},
		{name: "zero amount", mutate: func(r *Record) { r.Amount = 0 }},
		{name: "negative amount", mutate: func(r *Record) { r.Amount = -100 }},
	}

	for _, tt := range tests {
		t.Run("rejects "+tt.name, func(t *testing.T) {
			rec := base()
			tt.mutate(&rec)

			_, err := FromRecord(rec, model.ChannelAPIPull, ingestedAt)
			require.Error(t, err)

			var vErr *common.ValidationError
			assert.ErrorAs(t, err, &vErr)
		})
	}
}

func TestFromStatementRow(t *testing.T) {
	ingestedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	occurredAt := time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)

	t.Run("happy path", func(t *testing.T) {
		txn, err := FromStatementRow(StatementRow{
			UID:        testUID,
			Status:     "paid",
			Type:       "payment",
			Currency:   "BYN",
			Amount:     decimal.RequireFromString("100"),
			OccurredAt: &occurredAt,
		}, ingestedAt)
		require.NoError(t, err)

		assert.Equal(t, model.StatusSuccessful, txn.NormalizedStatus)
		assert.Equal(t, model.ChannelFileImport, txn.SourceChannel)
		assert.Equal(t, "BYN", txn.Currency)
		require.NotNil(t, txn.OccurredAt)
		assert.True(t, txn.OccurredAt.Equal(occurredAt))
		assert.NotEmpty(t, txn.RawPayload)
	})

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		_, err := FromStatementRow(StatementRow{
			UID:      testUID,
			Status:   "paid",
			Type:     "payment",
			Currency: "BYN",
			Amount:   decimal.Zero,
		}, ingestedAt)
		require.Error(t, err)
	})
}

func TestStatementEntry(t *testing.T) {
	entry, err := StatementEntry(StatementRow{
		UID:      testUID,
		Status:   "successful",
		Type:     "payment",
		Currency: "USD",
		Amount:   decimal.RequireFromString("10.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, testUID, entry.UID)
	assert.Equal(t, model.StatusSuccessful, entry.NormalizedStatus)
	assert.Equal(t, model.TypePayment, entry.Type)
}
