package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pillarworks/storefront/config"
	"github.com/pillarworks/storefront/models"
	"github.com/pillarworks/storefront/pkg"
	"github.com/pillarworks/storefront/pkg/ringcentral"
	"github.com/pillarworks/storefront/pkg/suitedash"
	"github.com/pillarworks/storefront/repository"
)

type integrationFixture struct {
	svc   IntegrationService
	repo  repository.IntegrationRepository
	sd    *fakeSuiteDash
	rc    *fakeRingCentral
	built *[]suitedash.Config
}

func newIntegrationFixture(t *testing.T, env IntegrationEnv) *integrationFixture {
	t.Helper()
	db := openTestDB(t)
	f := &integrationFixture{
		repo: repository.NewSQLiteIntegrationRepo(db.Conn),
		sd:   newFakeSuiteDash(),
		rc:   &fakeRingCentral{ext: ringcentral.Extension{Name: "Front Desk", ExtensionNumber: "101"}},
	}
	var clients IntegrationClients
	clients, f.built = fakeClients(f.sd, f.rc)
	f.svc = NewIntegrationService(f.repo, testBox(t), env, clients)
	return f
}

func updateRequest(t *testing.T, enabled *bool, cfg, secrets any) *models.UpdateIntegrationRequest {
	t.Helper()
	req := &models.UpdateIntegrationRequest{Enabled: enabled}
	if cfg != nil {
		raw, err := json.Marshal(cfg)
		require.NoError(t, err)
		req.Config = raw
	}
	if secrets != nil {
		raw, err := json.Marshal(secrets)
		require.NoError(t, err)
		req.Secrets = raw
	}
	return req
}

func TestIntegrationsUnconfigured(t *testing.T) {
	f := newIntegrationFixture(t, IntegrationEnv{})
	ctx := context.Background()

	views, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, views, 2)
	for _, v := range views {
		assert.Equal(t, models.SourceNone, v.Source, v.Provider)
		assert.False(t, v.Configured, v.Provider)
		assert.False(t, v.HasSecret, v.Provider)
	}

	_, _, err = f.svc.SuiteDash(ctx)
	require.ErrorIs(t, err, pkg.ErrUnavailable)
	assert.Equal(t, "not_configured", errorCode(err))

	_, err = f.svc.Get(ctx, models.IntegrationProvider("zapier"))
	assert.ErrorIs(t, err, pkg.ErrNotFound)
}

func TestIntegrationsEnvFallback(t *testing.T) {
	f := newIntegrationFixture(t, IntegrationEnv{
		SuiteDash: config.SuiteDashConfig{PublicID: "pub", SecretKey: "sek", BaseURL: "https://sd.test/api"},
	})
	ctx := context.Background()

	view, err := f.svc.Get(ctx, models.ProviderSuiteDash)
	require.NoError(t, err)
	assert.Equal(t, models.SourceEnv, view.Source)
	assert.True(t, view.Configured)
	assert.True(t, view.HasSecret)

	_, cfg, err := f.svc.SuiteDash(ctx)
	require.NoError(t, err)
	assert.Equal(t, "pub", cfg.PublicID)
	require.Len(t, *f.built, 1)
	assert.Equal(t, suitedash.Config{BaseURL: "https://sd.test/api", PublicID: "pub", SecretKey: "sek"}, (*f.built)[0])

	// Stored settings take over from the environment.
	off := false
	view, err = f.svc.Update(ctx, models.ProviderSuiteDash, updateRequest(t, &off,
		models.SuiteDashConfig{PublicID: "db-pub"}, models.SuiteDashSecrets{SecretKey: "db-sek"}))
	require.NoError(t, err)
	assert.Equal(t, models.SourceDatabase, view.Source)
	assert.False(t, view.Enabled)
	assert.False(t, view.Configured)
	assert.Equal(t, "https://sd.test/api", view.Config.(models.SuiteDashConfig).BaseURL)
}

func TestIntegrationUpdateEncryptsSecrets(t *testing.T) {
	f := newIntegrationFixture(t, IntegrationEnv{})
	ctx := context.Background()

	view, err := f.svc.Update(ctx, models.ProviderSuiteDash, updateRequest(t, nil,
		models.SuiteDashConfig{PublicID: "pub", AutoSync: true}, models.SuiteDashSecrets{SecretKey: "super-secret-key"}))
	require.NoError(t, err)
	assert.True(t, view.Enabled, "the first save enables the integration")
	assert.True(t, view.Configured)
	assert.True(t, view.HasSecret)

	row, err := f.repo.Get(ctx, models.ProviderSuiteDash)
	require.NoError(t, err)
	assert.NotEmpty(t, row.SecretEnc)
	assert.NotContains(t, row.SecretEnc, "super-secret-key")
	assert.NotContains(t, string(row.Config), "super-secret-key")

	// A config-only update keeps the stored secret.
	view, err = f.svc.Update(ctx, models.ProviderSuiteDash, updateRequest(t, nil,
		map[string]any{"create_invoices": true}, nil))
	require.NoError(t, err)
	assert.True(t, view.HasSecret)
	cfg := view.Config.(models.SuiteDashConfig)
	assert.True(t, cfg.AutoSync)
	assert.True(t, cfg.CreateInvoices)
	assert.Equal(t, "pub", cfg.PublicID)

	_, _, err = f.svc.SuiteDash(ctx)
	require.NoError(t, err)
	assert.Equal(t, "super-secret-key", (*f.built)[0].SecretKey)
}

func TestIntegrationUpdateValidation(t *testing.T) {
	f := newIntegrationFixture(t, IntegrationEnv{})
	ctx := context.Background()

	cases := map[string]*models.UpdateIntegrationRequest{
		"empty":          {},
		"unknown field":  {Config: json.RawMessage(`{"public_key":"x"}`)},
		"bad url":        {Config: json.RawMessage(`{"base_url":"ftp://sd.test"}`)},
		"unknown secret": {Secrets: json.RawMessage(`{"password":"x"}`)},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Update(ctx, models.ProviderSuiteDash, req)
			assert.ErrorIs(t, err, pkg.ErrValidation)
		})
	}

	_, err := f.svc.Update(ctx, models.ProviderRingCentral, &models.UpdateIntegrationRequest{
		Config: json.RawMessage(`{"sms_on_order":true}`),
	})
	assert.ErrorIs(t, err, pkg.ErrValidation)

	_, err = f.repo.Get(ctx, models.ProviderSuiteDash)
	assert.ErrorIs(t, err, pkg.ErrNotFound)
}

func enableRingCentral(t *testing.T, f *integrationFixture, cfg models.RingCentralConfig) {
	t.Helper()
	cfg.ClientID = "client"
	_, err := f.svc.Update(context.Background(), models.ProviderRingCentral, updateRequest(t, nil, cfg,
		models.RingCentralSecrets{ClientSecret: "secret", JWT: "jwt"}))
	require.NoError(t, err)
}

func TestIntegrationTestRecordsOutcome(t *testing.T) {
	f := newIntegrationFixture(t, IntegrationEnv{})
	ctx := context.Background()

	res, err := f.svc.Test(ctx, models.ProviderRingCentral)
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, "not_configured", res.Code)

	enableRingCentral(t, f, models.RingCentralConfig{})
	res, err = f.svc.Test(ctx, models.ProviderRingCentral)
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, "connected as Front Desk (ext. 101)", res.Detail)

	view, err := f.svc.Get(ctx, models.ProviderRingCentral)
	require.NoError(t, err)
	require.NotNil(t, view.LastTestOK)
	assert.True(t, *view.LastTestOK)
	require.NotNil(t, view.LastTestedAt)

	f.rc.err = &ringcentral.APIError{StatusCode: 401, Message: "bad jwt"}
	res, err = f.svc.Test(ctx, models.ProviderRingCentral)
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, "auth_failed", res.Code)

	view, err = f.svc.Get(ctx, models.ProviderRingCentral)
	require.NoError(t, err)
	assert.False(t, *view.LastTestOK)
	assert.Contains(t, view.LastTestError, "bad jwt")
}

func TestIntegrationTestRowDoesNotOverrideEnv(t *testing.T) {
	f := newIntegrationFixture(t, IntegrationEnv{
		SuiteDash: config.SuiteDashConfig{PublicID: "pub", SecretKey: "sek"},
	})
	ctx := context.Background()

	f.sd.pingErr = &suitedash.APIError{StatusCode: 429}
	res, err := f.svc.Test(ctx, models.ProviderSuiteDash)
	require.NoError(t, err)
	assert.Equal(t, "rate_limited", res.Code)

	view, err := f.svc.Get(ctx, models.ProviderSuiteDash)
	require.NoError(t, err)
	assert.Equal(t, models.SourceEnv, view.Source)
	assert.NotNil(t, view.LastTestedAt)
}

func TestSendSMS(t *testing.T) {
	f := newIntegrationFixture(t, IntegrationEnv{})
	ctx := context.Background()

	_, err := f.svc.SendSMS(ctx, &models.SendSMSRequest{To: "+447700900123", Text: "hi"})
	require.ErrorIs(t, err, pkg.ErrUnavailable)

	enableRingCentral(t, f, models.RingCentralConfig{})
	_, err = f.svc.SendSMS(ctx, &models.SendSMSRequest{To: "+447700900123", Text: "hi"})
	require.ErrorIs(t, err, pkg.ErrValidation, "from_number is required")

	enableRingCentral(t, f, models.RingCentralConfig{FromNumber: "+15550001111"})
	_, err = f.svc.SendSMS(ctx, &models.SendSMSRequest{To: "07700 900123", Text: "hi"})
	require.ErrorIs(t, err, pkg.ErrValidation)

	res, err := f.svc.SendSMS(ctx, &models.SendSMSRequest{To: "+447700900123", Text: " Your order shipped "})
	require.NoError(t, err)
	assert.Equal(t, "Queued", res.MessageStatus)
	assert.Equal(t, []sentSMS{{From: "+15550001111", To: "+447700900123", Text: "Your order shipped"}}, f.rc.sent())

	f.rc.err = &ringcentral.APIError{StatusCode: 429, RetryAfter: time.Minute}
	_, err = f.svc.SendSMS(ctx, &models.SendSMSRequest{To: "+447700900123", Text: "again"})
	require.ErrorIs(t, err, pkg.ErrRateLimited)
	assert.Equal(t, "rate_limited", errorCode(err))
}

func TestCallLog(t *testing.T) {
	f := newIntegrationFixture(t, IntegrationEnv{
		RingCentral: config.RingCentralConfig{ClientID: "c", ClientSecret: "s", JWT: "j"},
	})
	f.rc.logs = []ringcentral.CallRecord{{ID: "call-1", Direction: "Inbound", Duration: 42}}

	records, err := f.svc.CallLog(context.Background(), time.Now().Add(-24*time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "call-1", records[0].ID)

	f.rc.err = &ringcentral.APIError{StatusCode: 500, Message: "boom"}
	_, err = f.svc.CallLog(context.Background(), time.Time{}, 10)
	require.ErrorIs(t, err, pkg.ErrUnavailable)
	assert.Equal(t, "upstream_error", errorCode(err))
}

func TestClassifyIntegrationError(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&suitedash.APIError{StatusCode: 429}, "rate_limited"},
		{&suitedash.APIError{StatusCode: 403}, "auth_failed"},
		{&ringcentral.APIError{StatusCode: 400, Code: "invalid_grant"}, "auth_failed"},
		{ringcentral.ErrNotConfigured, "not_configured"},
		{context.DeadlineExceeded, "timeout"},
		{&suitedash.APIError{StatusCode: 502}, "upstream_error"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ClassifyIntegrationError(tc.err), "%v", tc.err)
	}
}
