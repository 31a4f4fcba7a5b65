// Package backend is the thin REST client to the remote POS backend. All
// business truth (inventory, settlement, persistence) lives on the other side
// of this boundary.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/pos-terminal/internal/catalog"
	"github.com/noah-isme/pos-terminal/internal/resilience"
)

// ErrNotFound maps 404-class responses, e.g. an external barcode lookup miss.
var ErrNotFound = errors.New("backend: not found")

// APIError is a non-2xx response decoded from the backend's error envelope.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend: %s (%d)", e.Message, e.StatusCode)
	}
	return fmt.Sprintf("backend: status %d", e.StatusCode)
}

// Client talks to the remote backend. Idempotent GETs retry behind a shared
// circuit breaker; mutating POSTs are single-shot so a flaky network cannot
// double-submit a sale.
type Client struct {
	baseURL string
	apiKey  string
	reads   resilience.HTTPClient
	writes  resilience.HTTPClient
	logger  zerolog.Logger
}

// Options tune the client; zero values get defaults.
type Options struct {
	Timeout     time.Duration
	MaxAttempts int
}

// NewClient constructs a backend client rooted at baseURL.
func NewClient(baseURL, apiKey string, opts Options, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	httpClient := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	breaker := resilience.NewBreaker("backend", 5, 0.5, 30*time.Second, logger)
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		reads: resilience.HTTPClient{
			Client:      httpClient,
			Breaker:     breaker,
			MaxAttempts: attempts,
			Timeout:     timeout,
		},
		writes: resilience.HTTPClient{
			Client:      httpClient,
			Breaker:     breaker,
			MaxAttempts: 1,
			Timeout:     timeout,
		},
		logger: logger.With().Str("component", "backend").Logger(),
	}
}

// ListProducts fetches the product collection.
func (c *Client) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	var out []catalog.Product
	if err := c.getJSON(ctx, "/products", &out); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return out, nil
}

// ListCustomers fetches the customer collection.
func (c *Client) ListCustomers(ctx context.Context) ([]catalog.Customer, error) {
	var out []catalog.Customer
	if err := c.getJSON(ctx, "/customers", &out); err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	return out, nil
}

// ListCategories fetches the category collection.
func (c *Client) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	var out []catalog.Category
	if err := c.getJSON(ctx, "/categories", &out); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return out, nil
}

// SubmitSale posts the sale payload once; failures are reported to the caller
// with no client-side retry so nothing is lost from the cart.
func (c *Client) SubmitSale(ctx context.Context, sale Sale) (SaleRecord, error) {
	var out SaleRecord
	if err := c.postJSON(ctx, "/sales", sale, &out); err != nil {
		return SaleRecord{}, fmt.Errorf("submit sale: %w", err)
	}
	return out, nil
}

// ExternalLookup resolves a scanned code against the external product catalog.
// A 404-class response is reported as ErrNotFound.
func (c *Client) ExternalLookup(ctx context.Context, code string) (catalog.ProductDraft, error) {
	var out catalog.ProductDraft
	path := "/products/external-lookup/" + url.PathEscape(strings.TrimSpace(code))
	if err := c.getJSON(ctx, path, &out); err != nil {
		return catalog.ProductDraft{}, fmt.Errorf("external lookup: %w", err)
	}
	return out, nil
}

// InitiatePayment obtains a gateway reference for a mobile-money payment.
func (c *Client) InitiatePayment(ctx context.Context, amount decimal.Decimal, currency string, customer PaymentCustomer) (InitiateResponse, error) {
	body := map[string]any{
		"amount":   amount,
		"currency": currency,
		"customer": customer,
	}
	var out InitiateResponse
	if err := c.postJSON(ctx, "/payments/lenco/initiate", body, &out); err != nil {
		return InitiateResponse{}, fmt.Errorf("initiate payment: %w", err)
	}
	return out, nil
}

// ChargeMobileMoney attempts a direct carrier charge against an initiated
// reference.
func (c *Client) ChargeMobileMoney(ctx context.Context, amount decimal.Decimal, reference, phone, operator string) (ChargeResponse, error) {
	body := map[string]any{
		"amount":    amount,
		"reference": reference,
		"phone":     phone,
		"operator":  operator,
	}
	var out ChargeResponse
	if err := c.postJSON(ctx, "/payments/lenco/charge-mobile-money", body, &out); err != nil {
		return ChargeResponse{}, fmt.Errorf("charge mobile money: %w", err)
	}
	return out, nil
}

// VerifyPayment checks whether an in-flight charge has settled.
func (c *Client) VerifyPayment(ctx context.Context, reference string) (VerifyResponse, error) {
	var out VerifyResponse
	if err := c.postJSON(ctx, "/payments/lenco/verify", map[string]any{"reference": reference}, &out); err != nil {
		return VerifyResponse{}, fmt.Errorf("verify payment: %w", err)
	}
	return out, nil
}

// CancelPayment asks the backend to cancel the upstream charge. Best effort:
// callers treat local cancellation as complete regardless of this outcome.
func (c *Client) CancelPayment(ctx context.Context, reference string) (CancelResponse, error) {
	var out CancelResponse
	if err := c.postJSON(ctx, "/payments/lenco/cancel", map[string]any{"reference": reference}, &out); err != nil {
		return CancelResponse{}, fmt.Errorf("cancel payment: %w", err)
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)
	resp, err := c.reads.Do(ctx, req)
	if err != nil {
		return err
	}
	return decodeResponse(resp, dst)
}

func (c *Client) postJSON(ctx context.Context, path string, body any, dst any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.writes.Do(ctx, req)
	if err != nil {
		return err
	}
	return decodeResponse(resp, dst)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "pos-terminal/1.0")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func decodeResponse(resp *http.Response, dst any) error {
	defer func() {
		_ = resp.Body.Close()
	}()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
			if apiErr.Message == "" {
				apiErr.Message = envelope.Message
			}
		}
		return apiErr
	}
	if dst == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
