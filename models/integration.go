package models

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

type IntegrationProvider string

const (
	ProviderSuiteDash   IntegrationProvider = "suitedash"
	ProviderRingCentral IntegrationProvider = "ringcentral"
)

func ParseIntegrationProvider(raw string) (IntegrationProvider, error) {
	p := IntegrationProvider(strings.ToLower(strings.TrimSpace(raw)))
	switch p {
	case ProviderSuiteDash, ProviderRingCentral:
		return p, nil
	}
	return "", fmt.Errorf("unknown integration %q", raw)
}

// Integration is the stored row. SecretEnc is the AES-GCM encrypted JSON of
// the provider's secret struct and never leaves the service layer.
type Integration struct {
	Provider      IntegrationProvider
	Enabled       bool
	Config        json.RawMessage
	SecretEnc     string
	LastTestedAt  *time.Time
	LastTestOK    *bool
	LastTestError string
	UpdatedAt     time.Time
}

// IntegrationSource tells the admin where the effective settings come from.
type IntegrationSource string

const (
	SourceDatabase IntegrationSource = "database"
	SourceEnv      IntegrationSource = "env"
	SourceNone     IntegrationSource = "none"
)

// IntegrationView is what the admin API returns; secrets are reduced to a flag.
type IntegrationView struct {
	Provider      IntegrationProvider `json:"provider"`
	Enabled       bool                `json:"enabled"`
	Configured    bool                `json:"configured"`
	Source        IntegrationSource   `json:"source"`
	Config        any                 `json:"config"`
	HasSecret     bool                `json:"has_secret"`
	LastTestedAt  *time.Time          `json:"last_tested_at"`
	LastTestOK    *bool               `json:"last_test_ok"`
	LastTestError string              `json:"last_test_error,omitempty"`
}

type SuiteDashConfig struct {
	PublicID       string `json:"public_id"`
	BaseURL        string `json:"base_url"`
	AutoSync       bool   `json:"auto_sync"`
	CreateInvoices bool   `json:"create_invoices"`
}

type SuiteDashSecrets struct {
	SecretKey string `json:"secret_key"`
}

func (c *SuiteDashConfig) Validate() error {
	c.PublicID = strings.TrimSpace(c.PublicID)
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL != "" {
		if err := validateBaseURL(c.BaseURL); err != nil {
			return fmt.Errorf("base_url: %w", err)
		}
	}
	return nil
}

type RingCentralConfig struct {
	ServerURL    string `json:"server_url"`
	ClientID     string `json:"client_id"`
	FromNumber   string `json:"from_number"`
	NotifyNumber string `json:"notify_number"`
	SMSOnOrder   bool   `json:"sms_on_order"`
}

type RingCentralSecrets struct {
	ClientSecret string `json:"client_secret"`
	JWT          string `json:"jwt"`
}

func (c *RingCentralConfig) Validate() error {
	c.ServerURL = strings.TrimRight(strings.TrimSpace(c.ServerURL), "/")
	c.ClientID = strings.TrimSpace(c.ClientID)
	if c.ServerURL != "" {
		if err := validateBaseURL(c.ServerURL); err != nil {
			return fmt.Errorf("server_url: %w", err)
		}
	}
	for name, n := range map[string]*string{"from_number": &c.FromNumber, "notify_number": &c.NotifyNumber} {
		*n = strings.TrimSpace(*n)
		if *n != "" && !IsPhoneNumber(*n) {
			return fmt.Errorf("%s must be in E.164 format", name)
		}
	}
	if c.SMSOnOrder && (c.FromNumber == "" || c.NotifyNumber == "") {
		return fmt.Errorf("sms_on_order needs from_number and notify_number")
	}
	return nil
}

// UpdateIntegrationRequest is the PUT body. A nil Secrets keeps the stored
// secrets; an empty string inside Secrets clears that one value.
type UpdateIntegrationRequest struct {
	Enabled *bool           `json:"enabled"`
	Config  json.RawMessage `json:"config"`
	Secrets json.RawMessage `json:"secrets"`
}

// IntegrationTestResult is the outcome of a connection round trip.
type IntegrationTestResult struct {
	Provider IntegrationProvider `json:"provider"`
	OK       bool                `json:"ok"`
	Code     string              `json:"code,omitempty"`
	Error    string              `json:"error,omitempty"`
	Detail   string              `json:"detail,omitempty"`
	TestedAt time.Time           `json:"tested_at"`
}

type SendSMSRequest struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

func (r *SendSMSRequest) Validate() error {
	r.To = strings.TrimSpace(r.To)
	if !IsPhoneNumber(r.To) {
		return fmt.Errorf("to must be in E.164 format")
	}
	r.Text = strings.TrimSpace(r.Text)
	if r.Text == "" || utf8.RuneCountInString(r.Text) > 1000 {
		return fmt.Errorf("text must be between 1 and 1000 characters")
	}
	return nil
}

var e164Re = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)

func IsPhoneNumber(s string) bool {
	return e164Re.MatchString(s)
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return fmt.Errorf("must be an absolute URL")
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("must use http or https")
	}
	return nil
}
