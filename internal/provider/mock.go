package provider

import (
	"context"

	"github.com/nkrasko/paper-trail/internal/common"
	"github.com/nkrasko/paper-trail/internal/normalize"
)

// MockClient is a mock implementation of Client for testing.
type MockClient struct {
	// Functions that can be set by tests to control behavior
	GetByUIDFn        func(ctx context.Context, uid string) (*normalize.Record, error)
	GetByTrackingIDFn func(ctx context.Context, trackingID string) (*normalize.Record, error)

	// Call tracking
	GetByUIDCalls        []string
	GetByTrackingIDCalls []string
}

// NewMockClient creates a new mock provider client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// GetByUID implements Client.GetByUID.
func (m *MockClient) GetByUID(ctx context.Context, uid string) (*normalize.Record, error) {
	m.GetByUIDCalls = append(m.GetByUIDCalls, uid)

	if m.GetByUIDFn != nil {
		return m.GetByUIDFn(ctx, uid)
	}
	return nil, common.ErrNotFound
}

// GetByTrackingID implements Client.GetByTrackingID.
func (m *MockClient) GetByTrackingID(ctx context.Context, trackingID string) (*normalize.Record, error) {
	m.GetByTrackingIDCalls = append(m.GetByTrackingIDCalls, trackingID)

	if m.GetByTrackingIDFn != nil {
		return m.GetByTrackingIDFn(ctx, trackingID)
	}
	return nil, common.ErrNotFound
}

// Reset clears all call tracking.
func (m *MockClient) Reset() {
	m.GetByUIDCalls = nil
	m.GetByTrackingIDCalls = nil
}

// Ensure MockClient implements the Client interface.
var _ Client = (*MockClient)(nil)
