// Package model defines the core domain models used throughout the application.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// NormalizedStatus is the closed set of transaction states the engine
// reasons about. Raw provider strings are mapped into this set at
// ingestion time and never compared directly.
type NormalizedStatus string

// Normalized status constants.
const (
	StatusSuccessful NormalizedStatus = "successful"
	StatusPending    NormalizedStatus = "pending"
	StatusFailed     NormalizedStatus = "failed"
	StatusRefunded   NormalizedStatus = "refunded"
	StatusCancelled  NormalizedStatus = "cancelled"
)

// TransactionType classifies the direction of money movement.
type TransactionType string

// Transaction type constants.
const (
	TypePayment TransactionType = "payment"
	TypeRefund  TransactionType = "refund"
	TypeVoid    TransactionType = "void"
	TypeFee     TransactionType = "fee"
)

// SourceChannel records which ingestion path first or last observed a
// transaction.
type SourceChannel string

// Source channel constants.
const (
	ChannelWebhook        SourceChannel = "webhook"
	ChannelAPIPull        SourceChannel = "api_pull"
	ChannelFileImport     SourceChannel = "file_import"
	ChannelManualRecovery SourceChannel = "manual_recovery"
)

// CardInfo holds the optional card details a payload may carry.
type CardInfo struct {
	Holder      string
	Last4       string
	Brand       string
	Bank        string
	BankCountry string
}

// CustomerInfo holds the optional customer details a payload may carry.
type CustomerInfo struct {
	Name    string
	Email   string
	Phone   string
	IP      string
	Country string
	City    string
}

// Transaction is the canonical post-normalization shape of a provider
// transaction. UID is the dedup key: multiple observations of the same
// UID from different channels merge into one record.
type Transaction struct {
	OccurredAt       *time.Time
	IngestedAt       time.Time
	UID              string
	TrackingID       string
	Currency         string
	Status           string // raw provider string, retained verbatim
	RawPayload       string
	NormalizedStatus NormalizedStatus
	Type             TransactionType
	SourceChannel    SourceChannel
	Card             CardInfo
	Customer         CustomerInfo
	Amount           decimal.Decimal
}

// Merge folds a later observation of the same UID into the receiver and
// returns the merged record. Non-null wins; when both sides carry a
// value the incoming observation wins, except OccurredAt which keeps
// the earliest non-null value. Merging is idempotent and, for
// non-overlapping observations, commutative.
func (t Transaction) Merge(incoming Transaction) Transaction {
	merged := t

	merged.TrackingID = pickString(t.TrackingID, incoming.TrackingID)
	merged.Currency = pickString(t.Currency, incoming.Currency)
	merged.Status = pickString(t.Status, incoming.Status)
	merged.RawPayload = pickString(t.RawPayload, incoming.RawPayload)

	if incoming.NormalizedStatus != "" {
		merged.NormalizedStatus = incoming.NormalizedStatus
	}
	if incoming.Type != "" {
		merged.Type = incoming.Type
	}
	if incoming.SourceChannel != "" {
		merged.SourceChannel = incoming.SourceChannel
	}
	if !incoming.Amount.IsZero() {
		merged.Amount = incoming.Amount
	}

	merged.OccurredAt = earliestTime(t.OccurredAt, incoming.OccurredAt)
	if merged.IngestedAt.IsZero() || (!incoming.IngestedAt.IsZero() && incoming.IngestedAt.Before(merged.IngestedAt)) {
		if !incoming.IngestedAt.IsZero() {
			merged.IngestedAt = incoming.IngestedAt
		}
	}

	merged.Card = CardInfo{
		Holder:      pickString(t.Card.Holder, incoming.Card.Holder),
		Last4:       pickString(t.Card.Last4, incoming.Card.Last4),
		Brand:       pickString(t.Card.Brand, incoming.Card.Brand),
		Bank:        pickString(t.Card.Bank, incoming.Card.Bank),
		BankCountry: pickString(t.Card.BankCountry, incoming.Card.BankCountry),
	}
	merged.Customer = CustomerInfo{
		Name:    pickString(t.Customer.Name, incoming.Customer.Name),
		Email:   pickString(t.Customer.Email, incoming.Customer.Email),
		Phone:   pickString(t.Customer.Phone, incoming.Customer.Phone),
		IP:      pickString(t.Customer.IP, incoming.Customer.IP),
		Country: pickString(t.Customer.Country, incoming.Customer.Country),
		City:    pickString(t.Customer.City, incoming.Customer.City),
	}

	return merged
}

// SortTimestamp returns the timestamp statement listings order by:
// the provider-reported time when known, the ingestion time otherwise.
func (t Transaction) SortTimestamp() time.Time {
	if t.OccurredAt != nil {
		return *t.OccurredAt
	}
	return t.IngestedAt
}

// pickString prefers the incoming value when set, keeping the existing
// one otherwise.
func pickString(existing, incoming string) string {
	if incoming != "" {
		return incoming
	}
	return existing
}

// earliestTime returns the earlier of two optional timestamps.
func earliestTime(a, b *time.Time) *time.Time {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case b.Before(*a):
		return b
	default:
		return a
	}
}
