package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pillarworks/storefront/config"
	"github.com/pillarworks/storefront/models"
	"github.com/pillarworks/storefront/pkg"
	"github.com/pillarworks/storefront/pkg/crypto"
	"github.com/pillarworks/storefront/pkg/ringcentral"
	"github.com/pillarworks/storefront/pkg/suitedash"
	"github.com/pillarworks/storefront/repository"
)

// SuiteDashAPI is the part of the SuiteDash client the services use.
type SuiteDashAPI interface {
	Ping(ctx context.Context) error
	CreateContact(ctx context.Context, contact suitedash.Contact) (string, error)
	DeleteContact(ctx context.Context, uid string) error
	CreateInvoice(ctx context.Context, inv suitedash.Invoice) (string, error)
	DeleteInvoice(ctx context.Context, uid string) error
}

// RingCentralAPI is the part of the RingCentral client the services use.
type RingCentralAPI interface {
	Ping(ctx context.Context) (*ringcentral.Extension, error)
	SendSMS(ctx context.Context, from, to, text string) (*ringcentral.SMSResult, error)
	CallLog(ctx context.Context, q ringcentral.CallLogQuery) ([]ringcentral.CallRecord, error)
}

// IntegrationClients builds API clients from resolved settings. Tests swap
// these for fakes.
type IntegrationClients struct {
	SuiteDash   func(cfg suitedash.Config) (SuiteDashAPI, error)
	RingCentral func(cfg ringcentral.Config) (RingCentralAPI, error)
}

// DefaultIntegrationClients returns the real HTTP clients.
func DefaultIntegrationClients() IntegrationClients {
	return IntegrationClients{
		SuiteDash: func(cfg suitedash.Config) (SuiteDashAPI, error) {
			return suitedash.New(cfg)
		},
		RingCentral: func(cfg ringcentral.Config) (RingCentralAPI, error) {
			return ringcentral.New(cfg)
		},
	}
}

// IntegrationService stores integration settings (secrets encrypted at rest),
// falls back to the environment when nothing is stored, and hands out
// configured API clients.
type IntegrationService interface {
	List(ctx context.Context) ([]models.IntegrationView, error)
	Get(ctx context.Context, provider models.IntegrationProvider) (*models.IntegrationView, error)
	Update(ctx context.Context, provider models.IntegrationProvider, req *models.UpdateIntegrationRequest) (*models.IntegrationView, error)
	// Test performs a round trip with the provider and records the outcome.
	Test(ctx context.Context, provider models.IntegrationProvider) (*models.IntegrationTestResult, error)

	// SuiteDash and RingCentral fail with pkg.ErrUnavailable (code
	// "not_configured") when the integration is disabled or incomplete.
	SuiteDash(ctx context.Context) (SuiteDashAPI, *models.SuiteDashConfig, error)
	RingCentral(ctx context.Context) (RingCentralAPI, *models.RingCentralConfig, error)

	CallLog(ctx context.Context, since time.Time, perPage int) ([]ringcentral.CallRecord, error)
	SendSMS(ctx context.Context, req *models.SendSMSRequest) (*ringcentral.SMSResult, error)
}

type integrationService struct {
	repo    repository.IntegrationRepository
	box     *crypto.Box
	env     IntegrationEnv
	clients IntegrationClients
	now     func() time.Time

	// The RingCentral client caches its OAuth token, so it is reused for as
	// long as the settings it was built from do not change.
	rcMu     sync.Mutex
	rcClient RingCentralAPI
	rcKey    string

	log *zap.Logger
}

// IntegrationEnv is the environment fallback.
type IntegrationEnv struct {
	SuiteDash   config.SuiteDashConfig
	RingCentral config.RingCentralConfig
}

// NewIntegrationService, constructor.
func NewIntegrationService(
	repo repository.IntegrationRepository,
	box *crypto.Box,
	env IntegrationEnv,
	clients IntegrationClients,
) IntegrationService {
	return &integrationService{
		repo:    repo,
		box:     box,
		env:     env,
		clients: clients,
		now:     time.Now,
		log:     zap.L().Named("integrations"),
	}
}

var providers = []models.IntegrationProvider{models.ProviderSuiteDash, models.ProviderRingCentral}

func errNotConfigured(provider models.IntegrationProvider) error {
	return pkg.WithCode("not_configured", fmt.Errorf("%w: %s integration is not configured", pkg.ErrUnavailable, provider))
}

// ─── Resolution ───

type resolvedSuiteDash struct {
	config  models.SuiteDashConfig
	secrets models.SuiteDashSecrets
	enabled bool
	source  models.IntegrationSource
	row     *models.Integration
}

func (r *resolvedSuiteDash) configured() bool {
	return r.enabled && r.config.PublicID != "" && r.secrets.SecretKey != ""
}

type resolvedRingCentral struct {
	config  models.RingCentralConfig
	secrets models.RingCentralSecrets
	enabled bool
	source  models.IntegrationSource
	row     *models.Integration
}

func (r *resolvedRingCentral) configured() bool {
	return r.enabled && r.config.ClientID != "" && r.secrets.ClientSecret != "" && r.secrets.JWT != ""
}

// storedRow returns the row when it holds settings. A row created only by a
// connection test carries no settings and does not override the environment.
func (s *integrationService) storedRow(ctx context.Context, provider models.IntegrationProvider) (*models.Integration, error) {
	row, err := s.repo.Get(ctx, provider)
	if err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return row, nil
}

func hasSettings(row *models.Integration) bool {
	if row == nil {
		return false
	}
	cfg := bytes.TrimSpace(row.Config)
	return row.SecretEnc != "" || (len(cfg) > 0 && !bytes.Equal(cfg, []byte("{}")) && !bytes.Equal(cfg, []byte("null")))
}

func (s *integrationService) resolveSuiteDash(ctx context.Context) (*resolvedSuiteDash, error) {
	row, err := s.storedRow(ctx, models.ProviderSuiteDash)
	if err != nil {
		return nil, err
	}
	out := &resolvedSuiteDash{row: row}

	if hasSettings(row) {
		out.source = models.SourceDatabase
		out.enabled = row.Enabled
		if len(row.Config) > 0 {
			if err := json.Unmarshal(row.Config, &out.config); err != nil {
				return nil, fmt.Errorf("stored suitedash config is corrupt: %w", err)
			}
		}
		if row.SecretEnc != "" {
			if err := s.box.OpenJSON(row.SecretEnc, string(models.ProviderSuiteDash), &out.secrets); err != nil {
				return nil, fmt.Errorf("failed to decrypt suitedash secrets: %w", err)
			}
		}
		if out.config.BaseURL == "" {
			out.config.BaseURL = s.env.SuiteDash.BaseURL
		}
		return out, nil
	}

	env := s.env.SuiteDash
	out.config = models.SuiteDashConfig{PublicID: env.PublicID, BaseURL: env.BaseURL}
	out.secrets = models.SuiteDashSecrets{SecretKey: env.SecretKey}
	if env.PublicID != "" && env.SecretKey != "" {
		out.source = models.SourceEnv
		out.enabled = true
	} else {
		out.source = models.SourceNone
	}
	return out, nil
}

func (s *integrationService) resolveRingCentral(ctx context.Context) (*resolvedRingCentral, error) {
	row, err := s.storedRow(ctx, models.ProviderRingCentral)
	if err != nil {
		return nil, err
	}
	out := &resolvedRingCentral{row: row}

	if hasSettings(row) {
		out.source = models.SourceDatabase
		out.enabled = row.Enabled
		if len(row.Config) > 0 {
			if err := json.Unmarshal(row.Config, &out.config); err != nil {
				return nil, fmt.Errorf("stored ringcentral config is corrupt: %w", err)
			}
		}
		if row.SecretEnc != "" {
			if err := s.box.OpenJSON(row.SecretEnc, string(models.ProviderRingCentral), &out.secrets); err != nil {
				return nil, fmt.Errorf("failed to decrypt ringcentral secrets: %w", err)
			}
		}
		if out.config.ServerURL == "" {
			out.config.ServerURL = s.env.RingCentral.ServerURL
		}
		return out, nil
	}

	env := s.env.RingCentral
	out.config = models.RingCentralConfig{ServerURL: env.ServerURL, ClientID: env.ClientID}
	out.secrets = models.RingCentralSecrets{ClientSecret: env.ClientSecret, JWT: env.JWT}
	if env.ClientID != "" && env.ClientSecret != "" && env.JWT != "" {
		out.source = models.SourceEnv
		out.enabled = true
	} else {
		out.source = models.SourceNone
	}
	return out, nil
}

// ─── Views ───

func (s *integrationService) List(ctx context.Context) ([]models.IntegrationView, error) {
	views := make([]models.IntegrationView, 0, len(providers))
	for _, p := range providers {
		v, err := s.Get(ctx, p)
		if err != nil {
			return nil, err
		}
		views = append(views, *v)
	}
	return views, nil
}

func (s *integrationService) Get(ctx context.Context, provider models.IntegrationProvider) (*models.IntegrationView, error) {
	view := &models.IntegrationView{Provider: provider}
	var row *models.Integration

	switch provider {
	case models.ProviderSuiteDash:
		r, err := s.resolveSuiteDash(ctx)
		if err != nil {
			return nil, err
		}
		view.Enabled, view.Configured, view.Source = r.enabled, r.configured(), r.source
		view.Config = r.config
		view.HasSecret = r.secrets.SecretKey != ""
		row = r.row
	case models.ProviderRingCentral:
		r, err := s.resolveRingCentral(ctx)
		if err != nil {
			return nil, err
		}
		view.Enabled, view.Configured, view.Source = r.enabled, r.configured(), r.source
		view.Config = r.config
		view.HasSecret = r.secrets.ClientSecret != "" || r.secrets.JWT != ""
		row = r.row
	default:
		return nil, fmt.Errorf("integration %q: %w", provider, pkg.ErrNotFound)
	}

	if row != nil {
		view.LastTestedAt = row.LastTestedAt
		view.LastTestOK = row.LastTestOK
		view.LastTestError = row.LastTestError
	}
	return view, nil
}

// ─── Update ───

func (s *integrationService) Update(ctx context.Context, provider models.IntegrationProvider, req *models.UpdateIntegrationRequest) (*models.IntegrationView, error) {
	if req.Enabled == nil && len(req.Config) == 0 && len(req.Secrets) == 0 {
		return nil, validationError(errors.New("nothing to update"))
	}

	row, err := s.storedRow(ctx, provider)
	if err != nil {
		return nil, err
	}
	if row == nil {
		row = &models.Integration{Provider: provider}
	}
	if !hasSettings(row) && req.Enabled == nil {
		// First save: enable unless told otherwise.
		row.Enabled = true
	}
	if req.Enabled != nil {
		row.Enabled = *req.Enabled
	}

	switch provider {
	case models.ProviderSuiteDash:
		var cfg models.SuiteDashConfig
		var secrets models.SuiteDashSecrets
		if err := s.mergeSettings(row, req, &cfg, &secrets); err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, validationError(err)
		}
		if err := s.encodeSettings(row, cfg, secrets, secrets.SecretKey != ""); err != nil {
			return nil, err
		}
	case models.ProviderRingCentral:
		var cfg models.RingCentralConfig
		var secrets models.RingCentralSecrets
		if err := s.mergeSettings(row, req, &cfg, &secrets); err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, validationError(err)
		}
		if err := s.encodeSettings(row, cfg, secrets, secrets.ClientSecret != "" || secrets.JWT != ""); err != nil {
			return nil, err
		}
		s.dropRingCentralClient()
	default:
		return nil, fmt.Errorf("integration %q: %w", provider, pkg.ErrNotFound)
	}

	if err := s.repo.Upsert(ctx, row); err != nil {
		return nil, err
	}
	s.log.Info("integration updated", zap.String("provider", string(provider)), zap.Bool("enabled", row.Enabled))
	return s.Get(ctx, provider)
}

// mergeSettings overlays the request on the stored config and secrets.
func (s *integrationService) mergeSettings(row *models.Integration, req *models.UpdateIntegrationRequest, cfg, secrets any) error {
	if len(row.Config) > 0 {
		if err := json.Unmarshal(row.Config, cfg); err != nil {
			return fmt.Errorf("stored %s config is corrupt: %w", row.Provider, err)
		}
	}
	if len(req.Config) > 0 {
		if err := strictUnmarshal(req.Config, cfg); err != nil {
			return validationError(fmt.Errorf("config: %w", err))
		}
	}

	if row.SecretEnc != "" {
		if err := s.box.OpenJSON(row.SecretEnc, string(row.Provider), secrets); err != nil {
			return fmt.Errorf("failed to decrypt %s secrets: %w", row.Provider, err)
		}
	}
	if len(req.Secrets) > 0 {
		if err := strictUnmarshal(req.Secrets, secrets); err != nil {
			return validationError(fmt.Errorf("secrets: %w", err))
		}
	}
	return nil
}

func (s *integrationService) encodeSettings(row *models.Integration, cfg, secrets any, hasSecret bool) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode %s config: %w", row.Provider, err)
	}
	row.Config = raw

	row.SecretEnc = ""
	if hasSecret {
		sealed, err := s.box.SealJSON(secrets, string(row.Provider))
		if err != nil {
			return fmt.Errorf("failed to encrypt %s secrets: %w", row.Provider, err)
		}
		row.SecretEnc = sealed
	}
	return nil
}

func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// ─── Test ───

func (s *integrationService) Test(ctx context.Context, provider models.IntegrationProvider) (*models.IntegrationTestResult, error) {
	result := &models.IntegrationTestResult{Provider: provider, TestedAt: s.now().UTC()}

	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	var testErr error
	switch provider {
	case models.ProviderSuiteDash:
		client, _, err := s.SuiteDash(ctx)
		if err == nil {
			err = client.Ping(ctx)
		}
		testErr = err
	case models.ProviderRingCentral:
		client, _, err := s.RingCentral(ctx)
		if err == nil {
			var ext *ringcentral.Extension
			if ext, err = client.Ping(ctx); err == nil {
				result.Detail = fmt.Sprintf("connected as %s (ext. %s)", ext.Name, ext.ExtensionNumber)
			}
		}
		testErr = err
	default:
		return nil, fmt.Errorf("integration %q: %w", provider, pkg.ErrNotFound)
	}

	if testErr != nil {
		result.Code = ClassifyIntegrationError(testErr)
		result.Error = testErr.Error()
	} else {
		result.OK = true
	}

	// Recording is best effort; the round trip already happened.
	if err := s.repo.RecordTest(context.WithoutCancel(ctx), provider, result.OK, result.Error, result.TestedAt); err != nil {
		s.log.Warn("failed to record integration test", zap.String("provider", string(provider)), zap.Error(err))
	}
	return result, nil
}

// ClassifyIntegrationError maps a client error to a stable code.
func ClassifyIntegrationError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, suitedash.ErrRateLimited), errors.Is(err, ringcentral.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, suitedash.ErrAuth), errors.Is(err, ringcentral.ErrAuth):
		return "auth_failed"
	case errors.Is(err, suitedash.ErrNotConfigured), errors.Is(err, ringcentral.ErrNotConfigured), errors.Is(err, pkg.ErrUnavailable):
		return "not_configured"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "upstream_error"
	}
}

// ─── Clients ───

func (s *integrationService) SuiteDash(ctx context.Context) (SuiteDashAPI, *models.SuiteDashConfig, error) {
	r, err := s.resolveSuiteDash(ctx)
	if err != nil {
		return nil, nil, err
	}
	if !r.configured() {
		return nil, nil, errNotConfigured(models.ProviderSuiteDash)
	}
	client, err := s.clients.SuiteDash(suitedash.Config{
		BaseURL:   r.config.BaseURL,
		PublicID:  r.config.PublicID,
		SecretKey: r.secrets.SecretKey,
	})
	if err != nil {
		return nil, nil, err
	}
	cfg := r.config
	return client, &cfg, nil
}

func (s *integrationService) RingCentral(ctx context.Context) (RingCentralAPI, *models.RingCentralConfig, error) {
	r, err := s.resolveRingCentral(ctx)
	if err != nil {
		return nil, nil, err
	}
	if !r.configured() {
		return nil, nil, errNotConfigured(models.ProviderRingCentral)
	}

	sum := sha256.Sum256([]byte(r.config.ServerURL + "\x00" + r.config.ClientID + "\x00" + r.secrets.ClientSecret + "\x00" + r.secrets.JWT))
	key := hex.EncodeToString(sum[:])
	cfg := r.config

	s.rcMu.Lock()
	defer s.rcMu.Unlock()
	if s.rcClient != nil && s.rcKey == key {
		return s.rcClient, &cfg, nil
	}

	client, err := s.clients.RingCentral(ringcentral.Config{
		ServerURL:    r.config.ServerURL,
		ClientID:     r.config.ClientID,
		ClientSecret: r.secrets.ClientSecret,
		JWT:          r.secrets.JWT,
	})
	if err != nil {
		return nil, nil, err
	}
	s.rcClient, s.rcKey = client, key
	return client, &cfg, nil
}

func (s *integrationService) dropRingCentralClient() {
	s.rcMu.Lock()
	s.rcClient, s.rcKey = nil, ""
	s.rcMu.Unlock()
}

func (s *integrationService) CallLog(ctx context.Context, since time.Time, perPage int) ([]ringcentral.CallRecord, error) {
	client, _, err := s.RingCentral(ctx)
	if err != nil {
		return nil, err
	}
	if perPage <= 0 || perPage > 250 {
		perPage = 50
	}
	records, err := client.CallLog(ctx, ringcentral.CallLogQuery{From: since, PerPage: perPage})
	if err != nil {
		return nil, upstreamError(err)
	}
	return records, nil
}

func (s *integrationService) SendSMS(ctx context.Context, req *models.SendSMSRequest) (*ringcentral.SMSResult, error) {
	if err := req.Validate(); err != nil {
		return nil, validationError(err)
	}
	client, cfg, err := s.RingCentral(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.FromNumber == "" {
		return nil, validationError(errors.New("ringcentral from_number is not set"))
	}
	res, err := client.SendSMS(ctx, cfg.FromNumber, req.To, req.Text)
	if err != nil {
		return nil, upstreamError(err)
	}
	return res, nil
}

// upstreamError maps a provider failure onto the domain errors.
func upstreamError(err error) error {
	code := ClassifyIntegrationError(err)
	if code == "rate_limited" {
		return pkg.WithCode(code, fmt.Errorf("%w: %s", pkg.ErrRateLimited, err.Error()))
	}
	return pkg.WithCode(code, fmt.Errorf("%w: %s", pkg.ErrUnavailable, err.Error()))
}
