package model

import "time"

// OrderStatus mirrors the internal order lifecycle. Only the paid
// terminal state matters to diagnostics.
type OrderStatus string

// Order status constants.
const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderCancelled OrderStatus = "cancelled"
)

// LedgerEntry is an internal order/payment pair derived from a
// transaction once matched to a contact. A payment links to exactly one
// order; two orders referencing one payment UID is a detectable
// anomaly, never a valid state.
type LedgerEntry struct {
	CreatedAt   time.Time
	OrderID     string
	PaymentID   string
	ContactID   string // empty when the order has no matched contact
	LinkedUID   string
	OrderStatus OrderStatus
}

// Contact is the minimal slice of the contact directory the matcher
// needs. The directory itself is owned elsewhere and read-only here.
type Contact struct {
	ID       string
	Email    string
	FullName string
}
