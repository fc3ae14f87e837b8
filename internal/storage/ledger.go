package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nkrasko/paper-trail/internal/common"
	"github.com/nkrasko/paper-trail/internal/model"
)

// The order/payment ledger is written by the commerce system; this
// engine reads it for diagnostics and conflict checks, and seeds it in
// tests and fixtures.

// GetPaidOrders returns all orders in the paid terminal state.
func (s *SQLiteStorage) GetPaidOrders(ctx context.Context) ([]model.LedgerEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, coalesce(payment_id, ''), coalesce(contact_id, ''), coalesce(provider_uid, ''), status, created_at
		FROM orders
		WHERE status = ?
		ORDER BY created_at ASC
	`, string(model.OrderPaid))
	if err != nil {
		return nil, fmt.Errorf("failed to query paid orders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.LedgerEntry
	for rows.Next() {
		var entry model.LedgerEntry
		var status string
		if err := rows.Scan(&entry.OrderID, &entry.PaymentID, &entry.ContactID, &entry.LinkedUID, &status, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		entry.OrderStatus = model.OrderStatus(status)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// GetPaymentsByUID returns every payment row carrying the provider UID,
// each with the order it is linked to. More than one row, or a row
// linked to an unexpected order, is the duplicate-order anomaly.
func (s *SQLiteStorage) GetPaymentsByUID(ctx context.Context, uid string) ([]model.LedgerEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(uid, "uid"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, coalesce(provider_uid, ''), created_at
		FROM payments
		WHERE provider_uid = ?
		ORDER BY created_at ASC
	`, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.LedgerEntry
	for rows.Next() {
		var entry model.LedgerEntry
		if err := rows.Scan(&entry.PaymentID, &entry.OrderID, &entry.LinkedUID, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// GetPaymentByID returns one payment row by its identifier.
func (s *SQLiteStorage) GetPaymentByID(ctx context.Context, paymentID string) (*model.LedgerEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(paymentID, "paymentID"); err != nil {
		return nil, err
	}

	var entry model.LedgerEntry
	err := s.db.QueryRowContext(ctx, `
		SELECT id, order_id, coalesce(provider_uid, ''), created_at
		FROM payments
		WHERE id = ?
	`, paymentID).Scan(&entry.PaymentID, &entry.OrderID, &entry.LinkedUID, &entry.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &entry, nil
}

// FilterLedgerUIDs reports which of the given UIDs are corroborated by
// a payment row in the authoritative ledger. Soft-cancel must never
// touch a corroborated UID.
func (s *SQLiteStorage) FilterLedgerUIDs(ctx context.Context, uids []string) (map[string]bool, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	corroborated := make(map[string]bool, len(uids))
	if len(uids) == 0 {
		return corroborated, nil
	}

	for _, chunk := range chunkStrings(uids, 500) {
		query := `SELECT DISTINCT provider_uid FROM payments WHERE provider_uid IN (`
		args := make([]any, 0, len(chunk))
		for i, uid := range chunk {
			if i > 0 {
				query += `, `
			}
			query += `?`
			args = append(args, uid)
		}
		query += `)`

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to filter ledger uids: %w", err)
		}

		for rows.Next() {
			var uid string
			if err := rows.Scan(&uid); err != nil {
				_ = rows.Close()
				return nil, fmt.Errorf("failed to scan ledger uid: %w", err)
			}
			corroborated[uid] = true
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return nil, err
		}
		_ = rows.Close()
	}

	return corroborated, nil
}

// InsertOrder adds an order row. Used by fixtures and the ledger-owning
// system's sync path.
func (s *SQLiteStorage) InsertOrder(ctx context.Context, entry model.LedgerEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(entry.OrderID, "orderID"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (id, payment_id, contact_id, provider_uid, status)
		VALUES (?, ?, ?, ?, ?)
	`,
		entry.OrderID,
		nullString(entry.PaymentID),
		nullString(entry.ContactID),
		nullString(entry.LinkedUID),
		string(entry.OrderStatus),
	)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

// InsertPayment adds a payment row linked to an order.
func (s *SQLiteStorage) InsertPayment(ctx context.Context, paymentID, orderID, providerUID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(paymentID, "paymentID"); err != nil {
		return err
	}
	if err := validateString(orderID, "orderID"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payments (id, order_id, provider_uid)
		VALUES (?, ?, ?)
	`, paymentID, orderID, nullString(providerUID))
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}
