// Package suitedash is a minimal client for the SuiteDash secure API, covering
// what order sync needs: contacts and invoices.
package suitedash

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultBaseURL is the hosted API root.
const DefaultBaseURL = "https://app.suitedash.com/secure-api"

// maxErrorMessage bounds a raw response body quoted in an APIError, in bytes.
const maxErrorMessage = 200

var (
	// ErrRateLimited matches an APIError with status 429.
	ErrRateLimited = errors.New("suitedash rate limit exceeded")
	// ErrAuth matches an APIError with status 401 or 403.
	ErrAuth = errors.New("suitedash rejected the credentials")
	// ErrNotConfigured is returned by New when credentials are missing.
	ErrNotConfigured = errors.New("suitedash is not configured")
)

// APIError is a non-2xx response. Callers classify it with errors.Is against
// ErrRateLimited and ErrAuth instead of inspecting Message.
type APIError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("suitedash: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("suitedash: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests
	case ErrAuth:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	}
	return false
}

type Config struct {
	BaseURL    string
	PublicID   string
	SecretKey  string
	HTTPClient *http.Client
}

type Client struct {
	baseURL   string
	publicID  string
	secretKey string
	http      *http.Client
}

// New validates cfg and returns a client.
func New(cfg Config) (*Client, error) {
	if cfg.PublicID == "" || cfg.SecretKey == "" {
		return nil, ErrNotConfigured
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("suitedash: bad base url: %w", err)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: base, publicID: cfg.PublicID, secretKey: cfg.SecretKey, http: hc}, nil
}

// Contact is the subset of a SuiteDash contact the server writes.
type Contact struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
	Role        string `json:"role"`
	Notes       string `json:"notes,omitempty"`
}

type InvoiceLine struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

type Invoice struct {
	ContactUID string        `json:"contact_uid"`
	Number     string        `json:"invoice_number"`
	Currency   string        `json:"currency"`
	Paid       bool          `json:"paid"`
	Lines      []InvoiceLine `json:"line_items"`
}

type envelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type uidPayload struct {
	UID string `json:"uid"`
	ID  string `json:"id"`
}

// Ping checks the credentials with the cheapest authenticated call.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/contacts?page=1&limit=1", nil, nil)
}

// CreateContact creates a client contact and returns its uid.
func (c *Client) CreateContact(ctx context.Context, contact Contact) (string, error) {
	if contact.Role == "" {
		contact.Role = "Client"
	}
	var out uidPayload
	if err := c.do(ctx, http.MethodPost, "/contact", contact, &out); err != nil {
		return "", err
	}
	return out.value()
}

func (c *Client) DeleteContact(ctx context.Context, uid string) error {
	return c.do(ctx, http.MethodDelete, "/contact/"+url.PathEscape(uid), nil, nil)
}

// CreateInvoice creates an invoice for a contact and returns its uid.
func (c *Client) CreateInvoice(ctx context.Context, inv Invoice) (string, error) {
	var out uidPayload
	if err := c.do(ctx, http.MethodPost, "/invoice", inv, &out); err != nil {
		return "", err
	}
	return out.value()
}

func (c *Client) DeleteInvoice(ctx context.Context, uid string) error {
	return c.do(ctx, http.MethodDelete, "/invoice/"+url.PathEscape(uid), nil, nil)
}

func (p uidPayload) value() (string, error) {
	if p.UID != "" {
		return p.UID, nil
	}
	if p.ID != "" {
		return p.ID, nil
	}
	return "", errors.New("suitedash: response carried no uid")
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("suitedash: encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("suitedash: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Public-ID", c.publicID)
	req.Header.Set("X-Secret-Key", c.secretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("suitedash: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("suitedash: read response: %w", err)
	}

	var env envelope
	_ = json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(env, raw),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	if env.Success != nil && !*env.Success {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(env, raw)}
	}

	if out != nil {
		data := env.Data
		if len(data) == 0 {
			data = raw
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("suitedash: decode response: %w", err)
		}
	}
	return nil
}

func errorMessage(env envelope, raw []byte) string {
	if env.Message != "" {
		return env.Message
	}
	msg := strings.TrimSpace(string(raw))
	if len(msg) <= maxErrorMessage {
		return msg
	}
	cut := maxErrorMessage
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
