package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/nkrasko/paper-trail/internal/normalize"
)

// ExpectedSchemaVersion is the latest schema version that the
// application expects. If the database cannot be migrated to this
// version, it's a fatal error.
const ExpectedSchemaVersion = 4

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Canonical transaction table and order/payment ledger",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS transactions (
					uid TEXT PRIMARY KEY,
					tracking_id TEXT,
					amount TEXT NOT NULL,
					currency TEXT NOT NULL,
					status TEXT NOT NULL,
					normalized_status TEXT NOT NULL,
					transaction_type TEXT NOT NULL,
					occurred_at DATETIME,
					ingested_at DATETIME NOT NULL,
					card_holder TEXT,
					card_last4 TEXT,
					card_brand TEXT,
					card_bank TEXT,
					card_bank_country TEXT,
					customer_name TEXT,
					customer_email TEXT,
					customer_phone TEXT,
					customer_ip TEXT,
					customer_country TEXT,
					customer_city TEXT,
					source_channel TEXT NOT NULL,
					raw_payload TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_transactions_occurred ON transactions(occurred_at)`,
				`CREATE INDEX idx_transactions_tracking ON transactions(tracking_id)`,
				`CREATE INDEX idx_transactions_email ON transactions(customer_email)`,
				`CREATE INDEX idx_transactions_status ON transactions(normalized_status)`,

				`CREATE TABLE IF NOT EXISTS orders (
					id TEXT PRIMARY KEY,
					payment_id TEXT,
					contact_id TEXT,
					provider_uid TEXT,
					status TEXT NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_orders_uid ON orders(provider_uid)`,
				`CREATE INDEX idx_orders_status ON orders(status)`,

				`CREATE TABLE IF NOT EXISTS payments (
					id TEXT PRIMARY KEY,
					order_id TEXT NOT NULL,
					provider_uid TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_payments_uid ON payments(provider_uid)`,
				`CREATE INDEX idx_payments_order ON payments(order_id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Contact directory, persisted manual links and match annotations",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS contacts (
					id TEXT PRIMARY KEY,
					email TEXT,
					full_name TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_contacts_email ON contacts(email)`,
				`CREATE INDEX idx_contacts_name ON contacts(full_name)`,

				`CREATE TABLE IF NOT EXISTS manual_links (
					transaction_uid TEXT PRIMARY KEY,
					contact_id TEXT NOT NULL,
					email TEXT,
					card_holder TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_manual_links_email ON manual_links(email)`,
				`CREATE INDEX idx_manual_links_holder ON manual_links(card_holder)`,

				`CREATE TABLE IF NOT EXISTS contact_matches (
					transaction_uid TEXT PRIMARY KEY,
					contact_id TEXT NOT NULL,
					match_type TEXT NOT NULL,
					matched_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Persisted recovery plans for two-phase preview/execute",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS recovery_plans (
					id TEXT PRIMARY KEY,
					kind TEXT NOT NULL,
					state TEXT NOT NULL,
					stop_reason TEXT,
					outcome TEXT,
					lookup_ref TEXT,
					candidate_json TEXT,
					candidate_uids TEXT,
					conflict_uids TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					executed_at DATETIME
				)`,
				`CREATE INDEX idx_recovery_plans_state ON recovery_plans(state)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     4,
		Description: "Normalized matching attributes on transactions",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`ALTER TABLE transactions ADD COLUMN customer_email_norm TEXT`,
				`ALTER TABLE transactions ADD COLUMN card_holder_norm TEXT`,
				`CREATE INDEX idx_transactions_email_norm ON transactions(customer_email_norm)`,
				`CREATE INDEX idx_transactions_holder_norm ON transactions(card_holder_norm)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return backfillNormalizedAttributes(tx)
		},
	},
}

// backfillNormalizedAttributes recomputes the matching columns for rows
// written before the columns existed. The values must match what the
// upsert path writes, so normalization runs in Go rather than SQL.
func backfillNormalizedAttributes(tx *sql.Tx) error {
	rows, err := tx.Query(`SELECT uid, customer_email, card_holder FROM transactions`)
	if err != nil {
		return fmt.Errorf("failed to read transactions for backfill: %w", err)
	}
	defer func() { _ = rows.Close() }()

	type normalized struct {
		uid, email, holder string
	}
	var updates []normalized

	for rows.Next() {
		var uid string
		var email, holder sql.NullString
		if err := rows.Scan(&uid, &email, &holder); err != nil {
			return fmt.Errorf("failed to scan transaction for backfill: %w", err)
		}
		updates = append(updates, normalized{
			uid:    uid,
			email:  normalize.NormalizeEmail(email.String),
			holder: normalize.NormalizeName(holder.String),
		})
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, u := range updates {
		if _, err := tx.Exec(
			`UPDATE transactions SET customer_email_norm = ?, card_holder_norm = ? WHERE uid = ?`,
			nullString(u.email), nullString(u.holder), u.uid,
		); err != nil {
			return fmt.Errorf("failed to backfill normalized attributes for %s: %w", u.uid, err)
		}
	}
	return nil
}

// Migrate applies all pending schema migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion); err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		slog.Info("Applying migration",
			"version", migration.Version,
			"description", migration.Description)

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration transaction: %w", err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}

		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to set schema version %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
