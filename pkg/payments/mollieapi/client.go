// Package mollieapi provides a payments.Client implementation backed by the
// Mollie v2 REST API.
package mollieapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"a11yscan/pkg/payments"
	"a11yscan/pkg/serrors"
)

// Client talks to the Mollie v2 REST API and fulfills the payments.Client
// interface. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client // httpClient performs HTTP requests to the API
	baseURL    string       // baseURL is the API root, no trailing slash
	apiKey     string       // apiKey is the Mollie API key
}

// metadata mirrors payments.Metadata on the wire. Mollie stores metadata
// as-is, so values written by the checkout flow come back with the same
// shape, except MethodUpdate which some integrations store as a string.
type metadata struct {
	OrganizationID string          `json:"organizationId,omitempty"`
	PlanType       string          `json:"planType,omitempty"`
	Interval       string          `json:"interval,omitempty"`
	MethodUpdate   json.RawMessage `json:"methodUpdate,omitempty"`
}

func (m metadata) toDomain() payments.Metadata {
	methodUpdate := false
	if len(m.MethodUpdate) > 0 {
		if b, err := strconv.ParseBool(strings.Trim(string(m.MethodUpdate), `"`)); err == nil {
			methodUpdate = b
		}
	}

	return payments.Metadata{
		OrganizationID: m.OrganizationID,
		PlanType:       m.PlanType,
		Interval:       m.Interval,
		MethodUpdate:   methodUpdate,
	}
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("could not send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("could not read response body: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return serrors.With(serrors.ErrNotFound, "resource not found")
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return serrors.With(serrors.ErrRateLimited, "rate limited: %s", strings.TrimSpace(string(b)))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("request failed: %s", strings.TrimSpace(string(b)))
	}

	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("could not decode response: %w", err)
	}

	return nil
}

// Payment fetches a payment by its id.
func (c *Client) Payment(ctx context.Context, paymentID string) (*payments.Payment, error) {
	// https://docs.mollie.com/reference/get-payment
	var resp struct {
		ID             string          `json:"id"`
		Status         string          `json:"status"`
		SequenceType   string          `json:"sequenceType"`
		CustomerID     string          `json:"customerId"`
		SubscriptionID string          `json:"subscriptionId"`
		Metadata       metadata        `json:"metadata"`
		Amount         payments.Amount `json:"amount"`
	}
	if err := c.get(ctx, "/payments/"+paymentID, &resp); err != nil {
		return nil, fmt.Errorf("could not get payment: %w", err)
	}

	return &payments.Payment{
		ID:             resp.ID,
		Status:         resp.Status,
		SequenceType:   resp.SequenceType,
		CustomerID:     resp.CustomerID,
		SubscriptionID: resp.SubscriptionID,
		Metadata:       resp.Metadata.toDomain(),
		Amount:         resp.Amount,
	}, nil
}

// Subscription fetches a subscription scoped to its customer.
func (c *Client) Subscription(ctx context.Context,
	customerID, subscriptionID string) (*payments.Subscription, error) {
	// https://docs.mollie.com/reference/get-subscription
	var resp struct {
		ID         string   `json:"id"`
		CustomerID string   `json:"customerId"`
		Status     string   `json:"status"`
		Interval   string   `json:"interval"`
		Metadata   metadata `json:"metadata"`
	}
	if err := c.get(ctx, "/customers/"+customerID+"/subscriptions/"+subscriptionID, &resp); err != nil {
		return nil, fmt.Errorf("could not get subscription: %w", err)
	}

	return &payments.Subscription{
		ID:         resp.ID,
		CustomerID: resp.CustomerID,
		Status:     resp.Status,
		Interval:   resp.Interval,
		Metadata:   resp.Metadata.toDomain(),
	}, nil
}

// Ensure Client conforms to the payments.Client interface at compile time.
var _ payments.Client = (*Client)(nil)

// New constructs a Client that uses the provided http.Client, API base URL
// and API key.
func New(httpClient *http.Client, baseURL, apiKey string) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}
