package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/noah-isme/checkout-gateway/internal/cart"
	"github.com/noah-isme/checkout-gateway/internal/resilience"
)

// SubmitError carries the message returned by the backend on a failed order
// submission so it can be surfaced to the user verbatim.
type SubmitError struct {
	Status  int
	Message string
}

func (e *SubmitError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("order submission failed with status %d", e.Status)
}

// Client talks to the storefront backend-of-record. Read calls are retried
// through the resilience wrapper; the order POST is sent exactly once per
// call because retry safety belongs to the idempotency key, not the
// transport.
type Client struct {
	BaseURL string
	Token   string
	HTTP    resilience.HTTPClient
}

// New constructs a backend client with a breaker labelled for telemetry.
func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	breaker := resilience.NewBreaker(5, 0.5, 30*time.Second).WithTarget("backend")
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP: resilience.HTTPClient{
			Client:      &http.Client{},
			Breaker:     breaker,
			MaxAttempts: 3,
			BaseBackoff: 100 * time.Millisecond,
			Jitter:      0.2,
			Timeout:     timeout,
		},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path, shopperID string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := strings.TrimSpace(c.Token); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if shopperID != "" {
		req.Header.Set("X-Shopper-ID", shopperID)
	}
	return req, nil
}

// Healthy probes the backend liveness endpoint.
func (c *Client) Healthy(ctx context.Context) bool {
	req, err := c.newRequest(ctx, http.MethodGet, "/health", "", nil)
	if err != nil {
		return false
	}
	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

// Cart fetches the shopper's authoritative cart.
func (c *Client) Cart(ctx context.Context, shopperID string) ([]cart.Item, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/cart", shopperID, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cart fetch failed: %s", resp.Status)
	}
	var payload struct {
		Items []cart.Item `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	return cart.Normalize(payload.Items), nil
}

// WalletBalance fetches the shopper's authoritative wallet balance.
func (c *Client) WalletBalance(ctx context.Context, shopperID string) (int64, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/wallet", shopperID, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("wallet fetch failed: %s", resp.Status)
	}
	var payload struct {
		Balance int64 `json:"balance"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, err
	}
	if payload.Balance < 0 {
		return 0, errors.New("wallet balance is negative")
	}
	return payload.Balance, nil
}

// SubmitOrder posts the order. The idempotency key rides both the header and
// the body so the backend can collapse duplicates however it indexes them.
// There is no transport-level retry here.
func (c *Client) SubmitOrder(ctx context.Context, shopperID string, sub OrderSubmission) (OrderResult, error) {
	body, err := json.Marshal(sub)
	if err != nil {
		return OrderResult{}, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/checkout", shopperID, body)
	if err != nil {
		return OrderResult{}, err
	}
	req.Header.Set("Idempotency-Key", sub.IdempotencyKey)

	once := c.HTTP
	once.MaxAttempts = 1
	resp, err := once.Do(ctx, req)
	if err != nil {
		return OrderResult{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		subErr := &SubmitError{Status: resp.StatusCode}
		var payload struct {
			Message string `json:"message"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil {
			subErr.Message = payload.Message
		}
		return OrderResult{}, subErr
	}

	var result OrderResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return OrderResult{}, err
	}
	if strings.TrimSpace(result.OrderID) == "" {
		return OrderResult{}, errors.New("backend returned no order id")
	}
	return result, nil
}
