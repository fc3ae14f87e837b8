// Package provider implements the payment provider's HTTP API client.
// The provider offers single-record fetch by UID or tracking id only;
// there is no bulk listing endpoint, which is why bulk resync can
// enrich known records but never discover new ones.
package provider

import (
	"context"

	"github.com/nkrasko/paper-trail/internal/normalize"
)

// Client fetches individual transaction records from the provider.
type Client interface {
	// GetByUID fetches one transaction by its provider UID. Returns
	// common.ErrNotFound when the provider does not know the UID.
	GetByUID(ctx context.Context, uid string) (*normalize.Record, error)
	// GetByTrackingID fetches one transaction by the merchant-supplied
	// tracking id.
	GetByTrackingID(ctx context.Context, trackingID string) (*normalize.Record, error)
}
