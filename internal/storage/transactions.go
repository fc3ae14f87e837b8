package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nkrasko/paper-trail/internal/common"
	"github.com/nkrasko/paper-trail/internal/model"
	"github.com/nkrasko/paper-trail/internal/normalize"
	"github.com/nkrasko/paper-trail/internal/service"
)

const transactionColumns = `uid, tracking_id, amount, currency, status, normalized_status,
	transaction_type, occurred_at, ingested_at,
	card_holder, card_last4, card_brand, card_bank, card_bank_country,
	customer_name, customer_email, customer_phone, customer_ip, customer_country, customer_city,
	source_channel, raw_payload`

// UpsertTransaction inserts a transaction or merges it into the
// existing record for the same UID. Calling it twice with identical
// input is a no-op after the first call, and merges from different
// channels converge to one record regardless of arrival order.
func (s *SQLiteStorage) UpsertTransaction(ctx context.Context, txn model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransaction(&txn); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.upsertTransactionTx(ctx, tx, txn); err != nil {
		return err
	}

	return tx.Commit()
}

// UpsertTransactions upserts a batch. Duplicate UIDs within the batch
// are pre-merged before touching storage so the store never sees two
// writes for one UID in a single statement. Returns the number of
// distinct UIDs written.
func (s *SQLiteStorage) UpsertTransactions(ctx context.Context, txns []model.Transaction) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if len(txns) == 0 {
		return 0, fmt.Errorf("%w: transactions", ErrEmptySlice)
	}
	for i := range txns {
		if err := validateTransaction(&txns[i]); err != nil {
			return 0, fmt.Errorf("transaction at index %d: %w", i, err)
		}
	}

	merged := premergeBatch(txns)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, txn := range merged {
		if err := s.upsertTransactionTx(ctx, tx, txn); err != nil {
			return 0, fmt.Errorf("failed to upsert %s: %w", txn.UID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(merged), nil
}

// premergeBatch folds duplicate UIDs within one batch into single
// records, preserving first-seen order.
func premergeBatch(txns []model.Transaction) []model.Transaction {
	byUID := make(map[string]int, len(txns))
	merged := make([]model.Transaction, 0, len(txns))

	for _, txn := range txns {
		if idx, seen := byUID[txn.UID]; seen {
			merged[idx] = merged[idx].Merge(txn)
			continue
		}
		byUID[txn.UID] = len(merged)
		merged = append(merged, txn)
	}

	return merged
}

func (s *SQLiteStorage) upsertTransactionTx(ctx context.Context, q queryable, txn model.Transaction) error {
	existing, err := s.getTransactionByUIDTx(ctx, q, txn.UID)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return err
	}

	record := txn
	if existing != nil {
		record = existing.Merge(txn)
	}

	// The normalized matching columns must stay consistent with the
	// attribute normalization the matcher applies, so they are derived
	// here on every write.
	_, err = q.ExecContext(ctx, `
		INSERT INTO transactions (`+transactionColumns+`, customer_email_norm, card_holder_norm, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uid) DO UPDATE SET
			tracking_id = excluded.tracking_id,
			amount = excluded.amount,
			currency = excluded.currency,
			status = excluded.status,
			normalized_status = excluded.normalized_status,
			transaction_type = excluded.transaction_type,
			occurred_at = excluded.occurred_at,
			ingested_at = excluded.ingested_at,
			card_holder = excluded.card_holder,
			card_last4 = excluded.card_last4,
			card_brand = excluded.card_brand,
			card_bank = excluded.card_bank,
			card_bank_country = excluded.card_bank_country,
			customer_name = excluded.customer_name,
			customer_email = excluded.customer_email,
			customer_phone = excluded.customer_phone,
			customer_ip = excluded.customer_ip,
			customer_country = excluded.customer_country,
			customer_city = excluded.customer_city,
			source_channel = excluded.source_channel,
			raw_payload = excluded.raw_payload,
			customer_email_norm = excluded.customer_email_norm,
			card_holder_norm = excluded.card_holder_norm,
			updated_at = excluded.updated_at
	`,
		record.UID,
		nullString(record.TrackingID),
		record.Amount.String(),
		record.Currency,
		record.Status,
		string(record.NormalizedStatus),
		string(record.Type),
		nullTime(record.OccurredAt),
		record.IngestedAt,
		nullString(record.Card.Holder),
		nullString(record.Card.Last4),
		nullString(record.Card.Brand),
		nullString(record.Card.Bank),
		nullString(record.Card.BankCountry),
		nullString(record.Customer.Name),
		nullString(record.Customer.Email),
		nullString(record.Customer.Phone),
		nullString(record.Customer.IP),
		nullString(record.Customer.Country),
		nullString(record.Customer.City),
		string(record.SourceChannel),
		nullString(record.RawPayload),
		nullString(normalize.NormalizeEmail(record.Customer.Email)),
		nullString(normalize.NormalizeName(record.Card.Holder)),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert transaction: %w", err)
	}

	return nil
}

// GetTransactionByUID retrieves a single transaction by provider UID.
func (s *SQLiteStorage) GetTransactionByUID(ctx context.Context, uid string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(uid, "uid"); err != nil {
		return nil, err
	}
	return s.getTransactionByUIDTx(ctx, s.db, uid)
}

func (s *SQLiteStorage) getTransactionByUIDTx(ctx context.Context, q queryable, uid string) (*model.Transaction, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions WHERE uid = ?
	`, uid)

	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return txn, nil
}

// GetTransactionByTrackingID retrieves the most recently ingested
// transaction carrying the merchant-supplied tracking id.
func (s *SQLiteStorage) GetTransactionByTrackingID(ctx context.Context, trackingID string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(trackingID, "trackingID"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE tracking_id = ?
		ORDER BY ingested_at DESC
		LIMIT 1
	`, trackingID)

	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction by tracking id: %w", err)
	}
	return txn, nil
}

// GetTransactionsByDateRange returns the ledger's view of a window,
// ordered by sort timestamp. Zero bounds are open.
func (s *SQLiteStorage) GetTransactionsByDateRange(ctx context.Context, window service.DateRange) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if !window.Start.IsZero() && !window.End.IsZero() && window.End.Before(window.Start) {
		return nil, ErrInvalidDateRange
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE 1=1`
	args := []any{}

	if !window.Start.IsZero() {
		query += ` AND coalesce(occurred_at, ingested_at) >= ?`
		args = append(args, window.Start)
	}
	if !window.End.IsZero() {
		query += ` AND coalesce(occurred_at, ingested_at) <= ?`
		args = append(args, window.End)
	}
	query += ` ORDER BY coalesce(occurred_at, ingested_at) ASC, uid ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanTransactions(rows)
}

// GetIncompleteUIDs returns UIDs of already-known records still missing
// the provider-reported timestamp, oldest first. These are the only
// legal candidates for bulk resync: the provider has no bulk listing
// API, so resync enriches known records and never discovers new ones.
func (s *SQLiteStorage) GetIncompleteUIDs(ctx context.Context, window service.DateRange, limit int) ([]string, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `
		SELECT uid FROM transactions
		WHERE occurred_at IS NULL
		  AND normalized_status != ?
	`
	args := []any{string(model.StatusCancelled)}

	if !window.Start.IsZero() {
		query += ` AND ingested_at >= ?`
		args = append(args, window.Start)
	}
	if !window.End.IsZero() {
		query += ` AND ingested_at <= ?`
		args = append(args, window.End)
	}
	query += ` ORDER BY ingested_at ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	return s.queryUIDs(ctx, query, args...)
}

// GetCancellationCandidates returns UIDs matching the given normalized
// statuses within a window, the raw candidate set for soft-cancel.
func (s *SQLiteStorage) GetCancellationCandidates(ctx context.Context, window service.DateRange, statuses []model.NormalizedStatus) ([]string, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if len(statuses) == 0 {
		return nil, fmt.Errorf("%w: statuses", ErrEmptySlice)
	}

	query := `SELECT uid FROM transactions WHERE normalized_status IN (`
	args := make([]any, 0, len(statuses)+2)
	for i, status := range statuses {
		if i > 0 {
			query += `, `
		}
		query += `?`
		args = append(args, string(status))
	}
	query += `)`

	if !window.Start.IsZero() {
		query += ` AND coalesce(occurred_at, ingested_at) >= ?`
		args = append(args, window.Start)
	}
	if !window.End.IsZero() {
		query += ` AND coalesce(occurred_at, ingested_at) <= ?`
		args = append(args, window.End)
	}
	query += ` ORDER BY ingested_at ASC`

	return s.queryUIDs(ctx, query, args...)
}

// MarkCancelled transitions the given UIDs to the cancelled terminal
// status. Records are never physically deleted; the raw payload and
// audit trail stay intact. Returns the number of records transitioned.
func (s *SQLiteStorage) MarkCancelled(ctx context.Context, uids []string) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if len(uids) == 0 {
		return 0, nil
	}

	total := 0
	for _, chunk := range chunkStrings(uids, 500) {
		query := `UPDATE transactions SET normalized_status = ?, updated_at = ? WHERE normalized_status != ? AND uid IN (`
		args := []any{string(model.StatusCancelled), time.Now().UTC(), string(model.StatusCancelled)}
		for i, uid := range chunk {
			if i > 0 {
				query += `, `
			}
			query += `?`
			args = append(args, uid)
		}
		query += `)`

		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return total, fmt.Errorf("failed to mark cancelled: %w", err)
		}
		affected, _ := res.RowsAffected()
		total += int(affected)
	}

	return total, nil
}

func (s *SQLiteStorage) queryUIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query uids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var uids []string
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, fmt.Errorf("failed to scan uid: %w", err)
		}
		uids = append(uids, uid)
	}
	return uids, rows.Err()
}

// chunkStrings splits a slice into bounded chunks so IN lists stay
// under SQLite's bound-parameter limit.
func chunkStrings(items []string, size int) [][]string {
	var chunks [][]string
	for len(items) > size {
		chunks = append(chunks, items[:size])
		items = items[size:]
	}
	if len(items) > 0 {
		chunks = append(chunks, items)
	}
	return chunks
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var (
		txn        model.Transaction
		trackingID sql.NullString
		amount     string
		occurredAt sql.NullTime
		card       [5]sql.NullString
		customer   [6]sql.NullString
		rawPayload sql.NullString
		status     string
		txType     string
		channel    string
	)

	err := row.Scan(
		&txn.UID,
		&trackingID,
		&amount,
		&txn.Currency,
		&txn.Status,
		&status,
		&txType,
		&occurredAt,
		&txn.IngestedAt,
		&card[0], &card[1], &card[2], &card[3], &card[4],
		&customer[0], &customer[1], &customer[2], &customer[3], &customer[4], &customer[5],
		&channel,
		&rawPayload,
	)
	if err != nil {
		return nil, err
	}

	txn.TrackingID = trackingID.String
	txn.NormalizedStatus = model.NormalizedStatus(status)
	txn.Type = model.TransactionType(txType)
	txn.SourceChannel = model.SourceChannel(channel)
	txn.RawPayload = rawPayload.String

	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored amount %q: %w", amount, err)
	}
	txn.Amount = parsed

	if occurredAt.Valid {
		ts := occurredAt.Time
		txn.OccurredAt = &ts
	}

	txn.Card = model.CardInfo{
		Holder:      card[0].String,
		Last4:       card[1].String,
		Brand:       card[2].String,
		Bank:        card[3].String,
		BankCountry: card[4].String,
	}
	txn.Customer = model.CustomerInfo{
		Name:    customer[0].String,
		Email:   customer[1].String,
		Phone:   customer[2].String,
		IP:      customer[3].String,
		Country: customer[4].String,
		City:    customer[5].String,
	}

	return &txn, nil
}

func scanTransactions(rows *sql.Rows) ([]model.Transaction, error) {
	var transactions []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *txn)
	}
	return transactions, rows.Err()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
