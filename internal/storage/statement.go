package storage

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nkrasko/paper-trail/internal/service"
)

// statementCursor is the keyset position of the last row served:
// (sort timestamp, uid). The next page takes rows strictly before the
// cursor's sort key, or with an equal sort key and a strictly lower
// uid. Keyset pagination avoids offset drift under concurrent inserts
// and duplicate/skip bugs when many rows share a timestamp.
type statementCursor struct {
	SortTime time.Time `json:"t"`
	UID      string    `json:"uid"`
}

func encodeCursor(c statementCursor) string {
	raw, _ := json.Marshal(c)
	return base64.URLEncoding.EncodeToString(raw)
}

func decodeCursor(s string) (statementCursor, error) {
	var c statementCursor
	raw, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return c, fmt.Errorf("malformed cursor: %w", err)
	}
	if err := json.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("malformed cursor: %w", err)
	}
	if c.UID == "" {
		return c, fmt.Errorf("malformed cursor: missing uid")
	}
	return c, nil
}

// ListStatement serves one page of the statement listing ordered by
// (coalesce(occurred_at, ingested_at) DESC, uid DESC). An empty cursor
// starts from the top; the returned cursor is empty on the last page.
func (s *SQLiteStorage) ListStatement(ctx context.Context, cursor string, pageSize int) (*service.Page, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if pageSize <= 0 {
		pageSize = 50
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	args := []any{}

	if cursor != "" {
		pos, err := decodeCursor(cursor)
		if err != nil {
			return nil, err
		}
		query += `
			WHERE coalesce(occurred_at, ingested_at) < ?
			   OR (coalesce(occurred_at, ingested_at) = ? AND uid < ?)`
		args = append(args, pos.SortTime, pos.SortTime, pos.UID)
	}

	// Fetch one extra row to decide whether another page exists.
	query += `
		ORDER BY coalesce(occurred_at, ingested_at) DESC, uid DESC
		LIMIT ?`
	args = append(args, pageSize+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query statement page: %w", err)
	}
	defer func() { _ = rows.Close() }()

	transactions, err := scanTransactions(rows)
	if err != nil {
		return nil, err
	}

	page := &service.Page{}
	if len(transactions) > pageSize {
		transactions = transactions[:pageSize]
		last := transactions[len(transactions)-1]
		page.NextCursor = encodeCursor(statementCursor{
			SortTime: last.SortTimestamp(),
			UID:      last.UID,
		})
	}
	page.Transactions = transactions

	return page, nil
}
