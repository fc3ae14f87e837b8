// Package normalize converts raw provider payloads into canonical
// transactions. It is pure: no I/O, no storage access. Untyped blobs
// never propagate past this boundary; each source channel has an
// explicit payload shape with an explicit mapping.
package normalize

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkrasko/paper-trail/internal/common"
	"github.com/nkrasko/paper-trail/internal/model"
)

// Record is the provider's transaction object as it appears inside
// webhook bodies and single-record API responses. Amounts are in minor
// currency units. Every nested field is optional; absence maps to the
// zero value, never to a parse failure.
type Record struct {
	UID        string `json:"uid"`
	TrackingID string `json:"tracking_id"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	Status     string `json:"status"`
	Type       string `json:"type"`
	PaidAt     string `json:"paid_at"`
	CreatedAt  string `json:"created_at"`
	CreditCard *struct {
		Holder      string `json:"holder"`
		Last4       string `json:"last_4"`
		Brand       string `json:"brand"`
		Bank        string `json:"bank"`
		BankCountry string `json:"bank_country"`
	} `json:"credit_card"`
	Customer *struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Email     string `json:"email"`
		Phone     string `json:"phone"`
		IP        string `json:"ip"`
		Country   string `json:"country"`
		City      string `json:"city"`
	} `json:"customer"`
}

// WebhookPayload is the envelope the provider posts to the webhook
// receiver.
type WebhookPayload struct {
	Transaction Record `json:"transaction"`
}

// StatementRow is one validated row of an uploaded bank or processor
// statement, produced by the statement parser. Amounts are in major
// currency units.
type StatementRow struct {
	OccurredAt *time.Time
	UID        string
	Status     string
	Type       string
	Currency   string
	Amount     decimal.Decimal
}

// ValidateUID checks the provider identifier format. The UID anchors
// the entire dedup model, so non-conforming values are rejected rather
// than silently accepted as a wrong key.
func ValidateUID(uid string) error {
	if uid == "" {
		return common.NewValidationError("uid", "missing")
	}
	if _, err := uuid.Parse(uid); err != nil {
		return common.NewValidationError("uid", "not a valid provider identifier")
	}
	return nil
}

// FromWebhook normalizes a raw webhook body.
func FromWebhook(body []byte, ingestedAt time.Time) (model.Transaction, error) {
	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return model.Transaction{}, common.NewValidationError("body", "malformed webhook payload")
	}

	txn, err := FromRecord(payload.Transaction, model.ChannelWebhook, ingestedAt)
	if err != nil {
		return model.Transaction{}, err
	}
	txn.RawPayload = string(body)
	return txn, nil
}

// FromRecord normalizes a provider transaction record fetched over the
// API or unwrapped from a webhook envelope.
func FromRecord(rec Record, channel model.SourceChannel, ingestedAt time.Time) (model.Transaction, error) {
	if err := ValidateUID(rec.UID); err != nil {
		return model.Transaction{}, err
	}

	status, err := NormalizeStatus(rec.Status)
	if err != nil {
		return model.Transaction{}, err
	}
	txType, err := NormalizeType(rec.Type)
	if err != nil {
		return model.Transaction{}, err
	}
	if rec.Currency == "" {
		return model.Transaction{}, common.NewValidationError("currency", "missing")
	}
	if rec.Amount <= 0 {
		return model.Transaction{}, common.NewValidationError("amount", "missing or non-positive")
	}

	txn := model.Transaction{
		UID:              normalizeUID(rec.UID),
		TrackingID:       rec.TrackingID,
		Amount:           decimal.New(rec.Amount, -2),
		Currency:         rec.Currency,
		Status:           rec.Status,
		NormalizedStatus: status,
		Type:             txType,
		OccurredAt:       parseProviderTime(rec.PaidAt, rec.CreatedAt),
		IngestedAt:       ingestedAt,
		SourceChannel:    channel,
	}

	if rec.CreditCard != nil {
		txn.Card = model.CardInfo{
			Holder:      rec.CreditCard.Holder,
			Last4:       rec.CreditCard.Last4,
			Brand:       rec.CreditCard.Brand,
			Bank:        rec.CreditCard.Bank,
			BankCountry: rec.CreditCard.BankCountry,
		}
	}
	if rec.Customer != nil {
		txn.Customer = model.CustomerInfo{
			Name:    joinName(rec.Customer.FirstName, rec.Customer.LastName),
			Email:   rec.Customer.Email,
			Phone:   rec.Customer.Phone,
			IP:      rec.Customer.IP,
			Country: rec.Customer.Country,
			City:    rec.Customer.City,
		}
	}

	if raw, marshalErr := json.Marshal(rec); marshalErr == nil {
		txn.RawPayload = string(raw)
	}

	return txn, nil
}

// FromStatementRow normalizes one parsed statement row.
func FromStatementRow(row StatementRow, ingestedAt time.Time) (model.Transaction, error) {
	if err := ValidateUID(row.UID); err != nil {
		return model.Transaction{}, err
	}

	status, err := NormalizeStatus(row.Status)
	if err != nil {
		return model.Transaction{}, err
	}
	txType, err := NormalizeType(row.Type)
	if err != nil {
		return model.Transaction{}, err
	}
	if row.Currency == "" {
		return model.Transaction{}, common.NewValidationError("currency", "missing")
	}
	if row.Amount.LessThanOrEqual(decimal.Zero) {
		return model.Transaction{}, common.NewValidationError("amount", "missing or non-positive")
	}

	raw, _ := json.Marshal(map[string]any{
		"uid":      row.UID,
		"status":   row.Status,
		"type":     row.Type,
		"amount":   row.Amount.String(),
		"currency": row.Currency,
	})

	return model.Transaction{
		UID:              normalizeUID(row.UID),
		Amount:           row.Amount,
		Currency:         row.Currency,
		Status:           row.Status,
		NormalizedStatus: status,
		Type:             txType,
		OccurredAt:       row.OccurredAt,
		IngestedAt:       ingestedAt,
		SourceChannel:    model.ChannelFileImport,
		RawPayload:       string(raw),
	}, nil
}

// StatementEntry converts a parsed row into the shape the differ
// consumes.
func StatementEntry(row StatementRow) (model.StatementEntry, error) {
	status, err := NormalizeStatus(row.Status)
	if err != nil {
		return model.StatementEntry{}, err
	}
	txType, err := NormalizeType(row.Type)
	if err != nil {
		return model.StatementEntry{}, err
	}
	if err := ValidateUID(row.UID); err != nil {
		return model.StatementEntry{}, err
	}

	return model.StatementEntry{
		UID:              normalizeUID(row.UID),
		NormalizedStatus: status,
		Type:             txType,
		Amount:           row.Amount,
		Currency:         row.Currency,
	}, nil
}

func normalizeUID(uid string) string {
	parsed, err := uuid.Parse(uid)
	if err != nil {
		return uid
	}
	return parsed.String()
}

// parseProviderTime returns the first parseable of the provider's
// timestamp fields, preferring the paid-at time.
func parseProviderTime(candidates ...string) *time.Time {
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if ts, err := time.Parse(time.RFC3339, c); err == nil {
			return &ts
		}
	}
	return nil
}

func joinName(first, last string) string {
	switch {
	case first == "":
		return last
	case last == "":
		return first
	default:
		return first + " " + last
	}
}
