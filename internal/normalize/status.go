package normalize

import (
	"strings"

	"github.com/nkrasko/paper-trail/internal/common"
	"github.com/nkrasko/paper-trail/internal/model"
)

// statusAliases maps the raw status strings observed across the
// provider's webhook, API and statement formats into the closed enum.
// Comparisons and diffs operate only on normalized values.
var statusAliases = map[string]model.NormalizedStatus{
	"successful": model.StatusSuccessful,
	"succeeded":  model.StatusSuccessful,
	"success":    model.StatusSuccessful,
	"paid":       model.StatusSuccessful,
	"pending":    model.StatusPending,
	"processing": model.StatusPending,
	"incomplete": model.StatusPending,
	"failed":     model.StatusFailed,
	"declined":   model.StatusFailed,
	"error":      model.StatusFailed,
	"refunded":   model.StatusRefunded,
	"refund":     model.StatusRefunded,
	"cancelled":  model.StatusCancelled,
	"canceled":   model.StatusCancelled,
	"voided":     model.StatusCancelled,
	"expired":    model.StatusCancelled,
}

var typeAliases = map[string]model.TransactionType{
	"payment":       model.TypePayment,
	"p2p":           model.TypePayment,
	"authorization": model.TypePayment,
	"refund":        model.TypeRefund,
	"void":          model.TypeVoid,
	"fee":           model.TypeFee,
	"commission":    model.TypeFee,
}

// NormalizeStatus maps a raw provider status string into the closed
// enum, rejecting values outside the known vocabulary.
func NormalizeStatus(raw string) (model.NormalizedStatus, error) {
	status, ok := statusAliases[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return "", common.NewValidationError("status", "unknown provider status "+raw)
	}
	return status, nil
}

// NormalizeType maps a raw provider transaction type into the closed
// enum, rejecting values outside the known vocabulary.
func NormalizeType(raw string) (model.TransactionType, error) {
	txType, ok := typeAliases[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return "", common.NewValidationError("type", "unknown transaction type "+raw)
	}
	return txType, nil
}

// NormalizeEmail lowercases and trims an email for matching and
// manual-link propagation.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeName collapses whitespace and case in a person name so
// card-holder and full-name comparisons are format-insensitive.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
