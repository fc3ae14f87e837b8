package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/nkrasko/paper-trail/internal/common"
	"github.com/nkrasko/paper-trail/internal/normalize"
)

// HTTPClient talks to the provider's gateway API with shop credentials.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	shopID     string
	secretKey  string
}

// NewHTTPClient creates a provider client.
func NewHTTPClient(baseURL, shopID, secretKey string) (*HTTPClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%w: provider base URL", common.ErrMissingConfig)
	}
	if secretKey == "" {
		return nil, fmt.Errorf("%w: provider secret key", common.ErrMissingConfig)
	}

	return &HTTPClient{
		baseURL:   baseURL,
		shopID:    shopID,
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// GetByUID fetches one transaction by provider UID.
func (c *HTTPClient) GetByUID(ctx context.Context, uid string) (*normalize.Record, error) {
	return c.fetch(ctx, "/transactions/"+url.PathEscape(uid))
}

// GetByTrackingID fetches one transaction by merchant tracking id.
func (c *HTTPClient) GetByTrackingID(ctx context.Context, trackingID string) (*normalize.Record, error) {
	return c.fetch(ctx, "/transactions/tracking_id/"+url.PathEscape(trackingID))
}

func (c *HTTPClient) fetch(ctx context.Context, path string) (*normalize.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider request: %w", err)
	}
	req.SetBasicAuth(c.shopID, c.secretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &common.ProviderFetchError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return nil, common.ErrNotFound
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &common.ProviderFetchError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected provider response: %s", string(body)),
		}
	}

	var payload normalize.WebhookPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &common.ProviderFetchError{Err: fmt.Errorf("malformed provider response: %w", err)}
	}

	return &payload.Transaction, nil
}

// Ensure HTTPClient implements the Client interface.
var _ Client = (*HTTPClient)(nil)
