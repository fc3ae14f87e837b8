package statement

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const (
	testUID      = "7afad5a2-21cf-4a75-bc5a-0f6b38940c8a"
	otherTestUID = "b3a9c8d0-1234-4f00-9abc-5de6f7a8b9c0"
)

func TestParseCSV(t *testing.T) {
	t.Run("reads a plain statement", func(t *testing.T) {
		input := `UID,Status,Type,Amount,Currency,Paid at
` + testUID + `,successful,payment,125.50,USD,2026-02-28 14:30:00
` + otherTestUID + `,pending,payment,10,USD,
`
		result, err := NewParser().ParseCSV(strings.NewReader(input))
		require.NoError(t, err)
		require.Len(t, result.Rows, 2)
		assert.Zero(t, result.Skipped)

		first := result.Rows[0]
		assert.Equal(t, testUID, first.UID)
		assert.Equal(t, "successful", first.Status)
		assert.True(t, first.Amount.Equal(decimal.RequireFromString("125.50")))
		require.NotNil(t, first.OccurredAt)
		assert.True(t, first.OccurredAt.Equal(time.Date(2026, 2, 28, 14, 30, 0, 0, time.UTC)))

		assert.Nil(t, result.Rows[1].OccurredAt)
	})

	t.Run("finds the header below preamble rows", func(t *testing.T) {
		input := `Monthly statement,,,
Merchant: shop-1,,,
uid,status,amount,currency
` + testUID + `,paid,100,BYN
`
		result, err := NewParser().ParseCSV(strings.NewReader(input))
		require.NoError(t, err)
		require.Len(t, result.Rows, 1)
		assert.Equal(t, "BYN", result.Rows[0].Currency)
	})

	t.Run("type defaults to payment", func(t *testing.T) {
		input := `uid,status,amount,currency
` + testUID + `,successful,10,USD
`
		result, err := NewParser().ParseCSV(strings.NewReader(input))
		require.NoError(t, err)
		require.Len(t, result.Rows, 1)
		assert.Equal(t, "payment", result.Rows[0].Type)
	})

	t.Run("tolerates comma decimals and grouping spaces", func(t *testing.T) {
		input := `uid,status,amount,currency
` + testUID + `,successful,"1 234,56",BYN
`
		result, err := NewParser().ParseCSV(strings.NewReader(input))
		require.NoError(t, err)
		require.Len(t, result.Rows, 1)
		assert.True(t, result.Rows[0].Amount.Equal(decimal.RequireFromString("1234.56")))
	})

	t.Run("invalid rows are skipped and counted, never fatal", func(t *testing.T) {
		input := `uid,status,amount,currency
not-a-uid,successful,10,USD
` + testUID + `,exploded,10,USD
` + otherTestUID + `,successful,10,USD
`
		result, err := NewParser().ParseCSV(strings.NewReader(input))
		require.NoError(t, err)
		require.Len(t, result.Rows, 1)
		assert.Equal(t, 2, result.Skipped)
		assert.Equal(t, otherTestUID, result.Rows[0].UID)
	})

	t.Run("blank rows are ignored silently", func(t *testing.T) {
		input := `uid,status,amount,currency
` + testUID + `,successful,10,USD
,,,
`
		result, err := NewParser().ParseCSV(strings.NewReader(input))
		require.NoError(t, err)
		assert.Len(t, result.Rows, 1)
		assert.Zero(t, result.Skipped)
	})

	t.Run("a sheet without a recognizable header yields nothing", func(t *testing.T) {
		input := `foo,bar
1,2
`
		result, err := NewParser().ParseCSV(strings.NewReader(input))
		require.NoError(t, err)
		assert.Empty(t, result.Rows)
	})
}

func TestParseXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "statement.xlsx")

	book := excelize.NewFile()
	sheet := book.GetSheetName(0)
	require.NoError(t, book.SetSheetRow(sheet, "A1", &[]any{"uid", "status", "type", "amount", "currency"}))
	require.NoError(t, book.SetSheetRow(sheet, "A2", &[]any{testUID, "successful", "payment", "125.50", "USD"}))

	// Second sheet with its own header and a bad row.
	_, err := book.NewSheet("March")
	require.NoError(t, err)
	require.NoError(t, book.SetSheetRow("March", "A1", &[]any{"uid", "status", "amount", "currency"}))
	require.NoError(t, book.SetSheetRow("March", "A2", &[]any{otherTestUID, "pending", "10", "EUR"}))
	require.NoError(t, book.SetSheetRow("March", "A3", &[]any{"junk", "pending", "10", "EUR"}))

	require.NoError(t, book.SaveAs(path))
	require.NoError(t, book.Close())

	result, err := NewParser().ParseFile(path)
	require.NoError(t, err)

	require.Len(t, result.Rows, 2)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, testUID, result.Rows[0].UID)
	assert.Equal(t, otherTestUID, result.Rows[1].UID)
}

func TestParseFile(t *testing.T) {
	t.Run("rejects unsupported extensions", func(t *testing.T) {
		_, err := NewParser().ParseFile("statement.pdf")
		require.Error(t, err)
	})
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Time
	}{
		{raw: "2026-02-28T14:30:00Z", want: time.Date(2026, 2, 28, 14, 30, 0, 0, time.UTC)},
		{raw: "2026-02-28 14:30:00", want: time.Date(2026, 2, 28, 14, 30, 0, 0, time.UTC)},
		{raw: "2026-02-28", want: time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)},
		{raw: "28.02.2026", want: time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseTimestamp(tt.raw)
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want))
		})
	}

	t.Run("unrecognized layouts are rejected", func(t *testing.T) {
		_, err := parseTimestamp("later that day")
		require.Error(t, err)
	})
}
