package model

import "time"

// MatchType records how a transaction was resolved to a contact.
type MatchType string

// Match type constants, in descending confidence order. Manual links
// are authoritative; card-holder-name matches are lowest confidence
// (names collide across unrelated customers) and must not drive
// money-moving side effects.
const (
	MatchManual         MatchType = "manual"
	MatchEmail          MatchType = "email"
	MatchCardHolderName MatchType = "cardHolderName"
	MatchNone           MatchType = "none"
)

// MatchResult is the matcher's verdict for one transaction.
type MatchResult struct {
	MatchedAt      time.Time
	TransactionUID string
	ContactID      string
	MatchType      MatchType
}

// ManualLink is a persisted operator decision binding a transaction to
// a contact. The normalized email and card-holder name are stored so
// the link propagates to later observations sharing either attribute.
type ManualLink struct {
	CreatedAt      time.Time
	TransactionUID string
	ContactID      string
	Email          string // normalized, may be empty
	CardHolder     string // normalized, may be empty
}
