// Package enginehttp provides an engine.Client implementation backed by the
// audit engine's REST API.
package enginehttp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"a11yscan/pkg/domain"
	"a11yscan/pkg/engine"
	"a11yscan/pkg/serrors"
)

// Client talks to the audit engine REST API and fulfills the engine.Client
// interface. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client // httpClient performs HTTP requests to the engine
	baseURL    string       // baseURL is the engine's root URL, no trailing slash
	token      string       // token is the bearer token for the engine API
}

// Submit starts an audit on the engine. It returns the engine job identifier
// or an error if the submission failed.
func (c *Client) Submit(ctx context.Context, submitReq engine.SubmitReq) (engine.SubmitRes, error) {
	type auditReq struct {
		URL      string `json:"url"`
		MaxPages int    `json:"maxPages"`
		Quick    bool   `json:"quick,omitempty"`
	}
	bodyBytes, err := json.Marshal(auditReq{
		URL:      submitReq.URL,
		MaxPages: submitReq.MaxPages,
		Quick:    submitReq.Quick,
	})
	if err != nil {
		return engine.SubmitRes{}, fmt.Errorf("could not marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx,
		http.MethodPost,
		c.baseURL+"/v1/audits",
		strings.NewReader(string(bodyBytes)))
	if err != nil {
		return engine.SubmitRes{}, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return engine.SubmitRes{}, fmt.Errorf("could not send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return engine.SubmitRes{}, fmt.Errorf("could not read response body: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return engine.SubmitRes{},
			serrors.With(serrors.ErrRateLimited, "engine rate limited: %s", strings.TrimSpace(string(b)))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return engine.SubmitRes{}, fmt.Errorf("submit failed: %s", strings.TrimSpace(string(b)))
	}

	var submitResp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(b, &submitResp); err != nil {
		return engine.SubmitRes{}, fmt.Errorf("could not decode response: %w", err)
	}

	return engine.SubmitRes{ID: submitResp.ID}, nil
}

// Progress fetches and decodes the current progress of the given audit. It
// returns ErrNotFound when the engine does not know the audit.
func (c *Client) Progress(ctx context.Context, auditID string) (*engine.Progress, error) {
	req, err := http.NewRequestWithContext(ctx,
		http.MethodGet,
		c.baseURL+"/v1/audits/"+auditID,
		nil)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read response body: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, serrors.With(serrors.ErrNotFound, "audit not found")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("get progress failed: %s", strings.TrimSpace(string(b)))
	}

	var progressResp struct {
		Phase    string              `json:"phase"`
		Counters domain.ScanCounters `json:"counters"`
		Error    string              `json:"error,omitempty"`
	}
	if err := json.Unmarshal(b, &progressResp); err != nil {
		return nil, fmt.Errorf("could not decode response: %w", err)
	}

	return &engine.Progress{
		Phase:    engine.Phase(progressResp.Phase),
		Counters: progressResp.Counters,
		Error:    progressResp.Error,
	}, nil
}

// Ensure Client conforms to the engine.Client interface at compile time.
var _ engine.Client = (*Client)(nil)

// New constructs a Client that uses the provided http.Client, engine base URL
// and bearer token.
func New(httpClient *http.Client, baseURL, token string) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
	}
}
