// Package ringcentral is a minimal RingCentral REST client: JWT-bearer OAuth,
// extension info for connection tests, SMS and the call log.
package ringcentral

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
	"sync"
	"time"
)

const DefaultServerURL = "https://platform.ringcentral.com"

var (
	ErrRateLimited   = errors.New("ringcentral rate limit exceeded")
	ErrAuth          = errors.New("ringcentral rejected the credentials")
	ErrNotConfigured = errors.New("ringcentral is not configured")
)

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	return fmt.Sprintf("ringcentral: HTTP %d: %s", e.StatusCode, strings.TrimSpace(msg))
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests
	case ErrAuth:
		return e.StatusCode == http.StatusUnauthorized ||
			(e.StatusCode == http.StatusBadRequest && e.Code == "invalid_grant")
	}
	return false
}

type Config struct {
	ServerURL    string
	ClientID     string
	ClientSecret string
	JWT          string
	HTTPClient   *http.Client
}

// Client caches its access token until shortly before expiry.
type Client struct {
	serverURL    string
	clientID     string
	clientSecret string
	jwt          string
	http         *http.Client
	now          func() time.Time

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

func New(cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.JWT == "" {
		return nil, ErrNotConfigured
	}
	server := strings.TrimRight(cfg.ServerURL, "/")
	if server == "" {
		server = DefaultServerURL
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		serverURL:    server,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		jwt:          cfg.JWT,
		http:         hc,
		now:          time.Now,
	}, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// token returns a cached access token or exchanges the JWT for a new one.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && c.now().Before(c.expiresAt) {
		return c.accessToken, nil
	}

	form := url.Values{
		"grant_type": {"urn:ietf:params:oauth:grant-type:jwt-bearer"},
		"assertion":  {c.jwt},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+"/restapi/oauth/token",
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("ringcentral: build token request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	var tok tokenResponse
	if err := c.send(req, &tok); err != nil {
		return "", err
	}
	if tok.AccessToken == "" {
		return "", errors.New("ringcentral: token response without access_token")
	}

	ttl := time.Duration(tok.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = time.Hour
	}
	c.accessToken = tok.AccessToken
	// Renew a minute early so a request never races the expiry.
	c.expiresAt = c.now().Add(ttl - time.Minute)
	return c.accessToken, nil
}

func (c *Client) dropToken() {
	c.mu.Lock()
	c.accessToken = ""
	c.mu.Unlock()
}

// api performs an authenticated call, retrying once with a fresh token when
// the cached one was rejected.
func (c *Client) api(ctx context.Context, method, path string, body, out any) error {
	for attempt := 0; ; attempt++ {
		tok, err := c.token(ctx)
		if err != nil {
			return err
		}

		var reader io.Reader
		if body != nil {
			raw, err := json.Marshal(body)
			if err != nil {
				return fmt.Errorf("ringcentral: encode request: %w", err)
			}
			reader = bytes.NewReader(raw)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.serverURL+path, reader)
		if err != nil {
			return fmt.Errorf("ringcentral: build request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		err = c.send(req, out)
		var apiErr *APIError
		if attempt == 0 && errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
			c.dropToken()
			continue
		}
		return err
	}
}

type errorBody struct {
	ErrorCode        string `json:"errorCode"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ringcentral: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("ringcentral: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		_ = json.Unmarshal(raw, &eb)
		apiErr := &APIError{StatusCode: resp.StatusCode, Code: eb.ErrorCode, Message: eb.Message}
		if eb.Error != "" {
			apiErr.Code = eb.Error
			apiErr.Message = eb.ErrorDescription
		}
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			apiErr.RetryAfter = time.Duration(secs) * time.Second
		}
		return apiErr
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("ringcentral: decode response: %w", err)
		}
	}
	return nil
}

// ─── Endpoints ───

type Extension struct {
	ID              int64  `json:"id"`
	ExtensionNumber string `json:"extensionNumber"`
	Name            string `json:"name"`
	Status          string `json:"status"`
}

// Ping fetches the extension the JWT belongs to.
func (c *Client) Ping(ctx context.Context) (*Extension, error) {
	var ext Extension
	if err := c.api(ctx, http.MethodGet, "/restapi/v1.0/account/~/extension/~", nil, &ext); err != nil {
		return nil, err
	}
	return &ext, nil
}

type phoneNumber struct {
	PhoneNumber string `json:"phoneNumber"`
}

type smsRequest struct {
	From phoneNumber   `json:"from"`
	To   []phoneNumber `json:"to"`
	Text string        `json:"text"`
}

type SMSResult struct {
	ID            int64  `json:"id"`
	MessageStatus string `json:"messageStatus"`
}

func (c *Client) SendSMS(ctx context.Context, from, to, text string) (*SMSResult, error) {
	var res SMSResult
	req := smsRequest{From: phoneNumber{from}, To: []phoneNumber{{to}}, Text: text}
	if err := c.api(ctx, http.MethodPost, "/restapi/v1.0/account/~/extension/~/sms", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

type CallParty struct {
	PhoneNumber string `json:"phoneNumber"`
	Name        string `json:"name"`
}

type CallRecord struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	StartTime time.Time `json:"startTime"`
	Duration  int       `json:"duration"`
	Type      string    `json:"type"`
	Direction string    `json:"direction"`
	Action    string    `json:"action"`
	Result    string    `json:"result"`
	From      CallParty `json:"from"`
	To        CallParty `json:"to"`
}

type CallLogQuery struct {
	From    time.Time
	PerPage int
}

func (c *Client) CallLog(ctx context.Context, q CallLogQuery) ([]CallRecord, error) {
	params := url.Values{}
	if !q.From.IsZero() {
		params.Set("dateFrom", q.From.UTC().Format(time.RFC3339))
	}
	if q.PerPage > 0 {
		params.Set("perPage", strconv.Itoa(q.PerPage))
	}
	path := "/restapi/v1.0/account/~/extension/~/call-log"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var out struct {
		Records []CallRecord `json:"records"`
	}
	if err := c.api(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	if out.Records == nil {
		out.Records = []CallRecord{}
	}
	return out.Records, nil
}
