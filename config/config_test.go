package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "access-secret")
	t.Setenv("JWT_REFRESH_SECRET", "refresh-secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.IsProduction())
	assert.Equal(t, "0.0.0.0:4000", cfg.Server.Addr())
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTTL())
	assert.Equal(t, 7*24*time.Hour, cfg.JWT.RefreshTTL())
	assert.Equal(t, "gbp", cfg.Stripe.Currency)
	assert.Equal(t, 5, cfg.RateLimit.Login)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORS.Origins)
}

func TestLoadNormalizes(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_ENV", " Production ")
	t.Setenv("DATABASE_URL", "sqlite:///var/lib/storefront.db")
	t.Setenv("CORS_ORIGIN", "https://a.test, ,https://b.test")
	t.Setenv("CURRENCY", "EUR")
	t.Setenv("APP_URL", "https://shop.test/")
	t.Setenv("RATE_LIMIT_GLOBAL_WINDOW", "1m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "/var/lib/storefront.db", cfg.Database.URL)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.CORS.Origins)
	assert.Equal(t, "eur", cfg.Stripe.Currency)
	assert.Equal(t, "https://shop.test", cfg.AppURL)
	assert.Equal(t, time.Minute, cfg.RateLimit.GlobalWindow)
}

func TestLoadRejects(t *testing.T) {
	cases := map[string]map[string]string{
		"same secrets": {"JWT_REFRESH_SECRET": "access-secret"},
		"bad port":     {"SERVER_PORT": "70000"},
		"zero access":  {"JWT_ACCESS_EXPIRY_MINUTES": "0"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			setRequired(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestEncryptionKeyFallback(t *testing.T) {
	cfg := &Config{JWT: JWTConfig{Secret: "s"}}
	derived1, derived := cfg.EncryptionKeyHex()
	assert.True(t, derived)
	assert.Len(t, derived1, 64)

	again, _ := cfg.EncryptionKeyHex()
	assert.Equal(t, derived1, again, "the derived key is stable")

	cfg.Security.EncryptionKey = "explicit"
	key, derived := cfg.EncryptionKeyHex()
	assert.False(t, derived)
	assert.Equal(t, "explicit", key)
}
