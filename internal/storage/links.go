package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nkrasko/paper-trail/internal/common"
	"github.com/nkrasko/paper-trail/internal/model"
)

// Manual links and match annotations are persisted rather than held in
// process memory so links survive restarts and propagation stays
// auditable.

// GetManualLinkByUID returns the operator link recorded against a UID.
func (s *SQLiteStorage) GetManualLinkByUID(ctx context.Context, uid string) (*model.ManualLink, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(uid, "uid"); err != nil {
		return nil, err
	}
	return s.getManualLink(ctx, `transaction_uid = ?`, uid)
}

// GetManualLinkByEmail returns the most recent link recorded for a
// normalized email.
func (s *SQLiteStorage) GetManualLinkByEmail(ctx context.Context, email string) (*model.ManualLink, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(email, "email"); err != nil {
		return nil, err
	}
	return s.getManualLink(ctx, `email = ?`, email)
}

// GetManualLinkByCardHolder returns the most recent link recorded for a
// normalized card-holder name.
func (s *SQLiteStorage) GetManualLinkByCardHolder(ctx context.Context, cardHolder string) (*model.ManualLink, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(cardHolder, "cardHolder"); err != nil {
		return nil, err
	}
	return s.getManualLink(ctx, `card_holder = ?`, cardHolder)
}

func (s *SQLiteStorage) getManualLink(ctx context.Context, predicate string, arg any) (*model.ManualLink, error) {
	var link model.ManualLink
	var email, cardHolder sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT transaction_uid, contact_id, email, card_holder, created_at
		FROM manual_links
		WHERE `+predicate+`
		ORDER BY created_at DESC
		LIMIT 1
	`, arg).Scan(&link.TransactionUID, &link.ContactID, &email, &cardHolder, &link.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get manual link: %w", err)
	}

	link.Email = email.String
	link.CardHolder = cardHolder.String
	return &link, nil
}

// SaveManualLink records an operator link. Re-linking the same UID
// overwrites the previous decision; manual links are authoritative.
func (s *SQLiteStorage) SaveManualLink(ctx context.Context, link *model.ManualLink) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateManualLink(link); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO manual_links (transaction_uid, contact_id, email, card_holder, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(transaction_uid) DO UPDATE SET
			contact_id = excluded.contact_id,
			email = excluded.email,
			card_holder = excluded.card_holder,
			created_at = excluded.created_at
	`,
		link.TransactionUID,
		link.ContactID,
		nullString(link.Email),
		nullString(link.CardHolder),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save manual link: %w", err)
	}
	return nil
}

// GetMatch returns the stored match annotation for a UID.
func (s *SQLiteStorage) GetMatch(ctx context.Context, uid string) (*model.MatchResult, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(uid, "uid"); err != nil {
		return nil, err
	}

	var match model.MatchResult
	var matchType string

	err := s.db.QueryRowContext(ctx, `
		SELECT transaction_uid, contact_id, match_type, matched_at
		FROM contact_matches
		WHERE transaction_uid = ?
	`, uid).Scan(&match.TransactionUID, &match.ContactID, &matchType, &match.MatchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}

	match.MatchType = model.MatchType(matchType)
	return &match, nil
}

// SaveMatch stores or replaces the match annotation for a UID.
func (s *SQLiteStorage) SaveMatch(ctx context.Context, match *model.MatchResult) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateMatch(match); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contact_matches (transaction_uid, contact_id, match_type, matched_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(transaction_uid) DO UPDATE SET
			contact_id = excluded.contact_id,
			match_type = excluded.match_type,
			matched_at = excluded.matched_at
	`,
		match.TransactionUID,
		match.ContactID,
		string(match.MatchType),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save match: %w", err)
	}
	return nil
}

// GetUnmatchedByAttributes returns transactions sharing the given
// normalized email or card-holder name that have no match annotation,
// or a none annotation. These are the propagation targets of a manual
// link; anything already matched stays untouched. The comparison runs
// against the normalized columns kept by the upsert path, so it agrees
// with the matcher on what "same name" means.
func (s *SQLiteStorage) GetUnmatchedByAttributes(ctx context.Context, email, cardHolder string) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if email == "" && cardHolder == "" {
		return nil, nil
	}

	query := `
		SELECT ` + prefixedTransactionColumns("t") + `
		FROM transactions t
		LEFT JOIN contact_matches m ON t.uid = m.transaction_uid
		WHERE (m.transaction_uid IS NULL OR m.match_type = ?)
		  AND (`
	args := []any{string(model.MatchNone)}

	if email != "" {
		query += `t.customer_email_norm = ?`
		args = append(args, email)
	}
	if cardHolder != "" {
		if email != "" {
			query += ` OR `
		}
		query += `t.card_holder_norm = ?`
		args = append(args, cardHolder)
	}
	query += `) ORDER BY t.ingested_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query unmatched transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanTransactions(rows)
}

// GetContactByEmail returns the contact with the exact email.
func (s *SQLiteStorage) GetContactByEmail(ctx context.Context, email string) (*model.Contact, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(email, "email"); err != nil {
		return nil, err
	}
	return s.getContact(ctx, `lower(email) = ?`, email)
}

// GetContactByFullName returns the contact with the exact normalized
// full name.
func (s *SQLiteStorage) GetContactByFullName(ctx context.Context, normalizedName string) (*model.Contact, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(normalizedName, "normalizedName"); err != nil {
		return nil, err
	}
	return s.getContact(ctx, `lower(full_name) = ?`, normalizedName)
}

func (s *SQLiteStorage) getContact(ctx context.Context, predicate string, arg any) (*model.Contact, error) {
	var contact model.Contact
	var email, fullName sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, full_name FROM contacts WHERE `+predicate+` LIMIT 1
	`, arg).Scan(&contact.ID, &email, &fullName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}

	contact.Email = email.String
	contact.FullName = fullName.String
	return &contact, nil
}

// InsertContact adds a contact directory row. The directory is owned by
// the CRM; this is for fixtures and sync.
func (s *SQLiteStorage) InsertContact(ctx context.Context, contact model.Contact) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(contact.ID, "contactID"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contacts (id, email, full_name) VALUES (?, ?, ?)
	`, contact.ID, nullString(contact.Email), nullString(contact.FullName))
	if err != nil {
		return fmt.Errorf("failed to insert contact: %w", err)
	}
	return nil
}

// prefixedTransactionColumns qualifies the shared column list with a
// table alias for joins.
func prefixedTransactionColumns(alias string) string {
	return alias + `.uid, ` + alias + `.tracking_id, ` + alias + `.amount, ` + alias + `.currency, ` +
		alias + `.status, ` + alias + `.normalized_status, ` + alias + `.transaction_type, ` +
		alias + `.occurred_at, ` + alias + `.ingested_at, ` +
		alias + `.card_holder, ` + alias + `.card_last4, ` + alias + `.card_brand, ` +
		alias + `.card_bank, ` + alias + `.card_bank_country, ` +
		alias + `.customer_name, ` + alias + `.customer_email, ` + alias + `.customer_phone, ` +
		alias + `.customer_ip, ` + alias + `.customer_country, ` + alias + `.customer_city, ` +
		alias + `.source_channel, ` + alias + `.raw_payload`
}
