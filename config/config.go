// Package config loads every runtime setting from the environment.
//
// A .env file is read first when present (development convenience), then the
// struct tags below are resolved by cleanenv. Derived values (encryption key,
// database path) are normalised in Load so the rest of the program never calls
// os.Getenv.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config carries the whole configuration, one sub-struct per concern.
type Config struct {
	Env         string `env:"APP_ENV" env-default:"development"`
	LogLevel    string `env:"LOG_LEVEL" env-default:"info"`
	AppURL      string `env:"APP_URL" env-default:"http://localhost:5173"`
	SiteName    string `env:"SITE_NAME" env-default:"Pillarworks"`
	SeedOnStart bool   `env:"SEED_ON_START" env-default:"false"`

	Server      ServerConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	Cookie      CookieConfig
	CORS        CORSConfig
	Security    SecurityConfig
	Email       EmailConfig
	Admin       AdminConfig
	Stripe      StripeConfig
	SuiteDash   SuiteDashConfig
	RingCentral RingCentralConfig
	RateLimit   RateLimitConfig
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" env-default:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" env-default:"4000"`
}

// DatabaseConfig holds the SQLite location. DATABASE_URL may carry a
// "file:" or "sqlite:" prefix, Load strips it.
type DatabaseConfig struct {
	URL string `env:"DATABASE_URL" env-default:"./data/storefront.db"`
}

// JWTConfig holds token secrets and lifetimes.
type JWTConfig struct {
	Secret             string `env:"JWT_SECRET" env-required:"true"`
	RefreshSecret      string `env:"JWT_REFRESH_SECRET" env-required:"true"`
	AccessTokenExpiry  int    `env:"JWT_ACCESS_EXPIRY_MINUTES" env-default:"15"`
	RefreshTokenExpiry int    `env:"JWT_REFRESH_EXPIRY_DAYS" env-default:"7"`
}

// CookieConfig controls the auth cookies.
type CookieConfig struct {
	Secure bool   `env:"COOKIE_SECURE" env-default:"false"`
	Domain string `env:"COOKIE_DOMAIN"`
}

// CORSConfig lists the allowed browser origins.
type CORSConfig struct {
	Origins []string `env:"CORS_ORIGIN" env-separator:"," env-default:"http://localhost:5173"`
}

// SecurityConfig holds the at-rest encryption key for integration secrets.
type SecurityConfig struct {
	EncryptionKey string `env:"ENCRYPTION_KEY"`
}

// EmailConfig selects the email transport. An empty ResendAPIKey means the
// development sender that only logs messages.
type EmailConfig struct {
	ResendAPIKey string `env:"RESEND_API_KEY"`
	From         string `env:"EMAIL_FROM" env-default:"no-reply@localhost"`
}

// AdminConfig seeds the first admin account and receives notifications.
type AdminConfig struct {
	Email    string `env:"ADMIN_EMAIL"`
	Password string `env:"ADMIN_PASSWORD"`
}

// StripeConfig enables real checkout sessions when SecretKey is set.
type StripeConfig struct {
	SecretKey     string `env:"STRIPE_SECRET_KEY"`
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	Currency      string `env:"CURRENCY" env-default:"gbp"`
}

// SuiteDashConfig is the fallback when no SuiteDash settings are stored.
type SuiteDashConfig struct {
	PublicID  string `env:"SUITEDASH_PUBLIC_ID"`
	SecretKey string `env:"SUITEDASH_SECRET_KEY"`
	BaseURL   string `env:"SUITEDASH_BASE_URL" env-default:"https://app.suitedash.com/secure-api"`
}

// RingCentralConfig is the fallback when no RingCentral settings are stored.
type RingCentralConfig struct {
	ServerURL    string `env:"RINGCENTRAL_SERVER_URL" env-default:"https://platform.ringcentral.com"`
	ClientID     string `env:"RINGCENTRAL_CLIENT_ID"`
	ClientSecret string `env:"RINGCENTRAL_CLIENT_SECRET"`
	JWT          string `env:"RINGCENTRAL_JWT"`
}

// RateLimitConfig sets the two limiter tiers.
type RateLimitConfig struct {
	Global       int           `env:"RATE_LIMIT_GLOBAL" env-default:"300"`
	GlobalWindow time.Duration `env:"RATE_LIMIT_GLOBAL_WINDOW" env-default:"15m"`
	Login        int           `env:"RATE_LIMIT_LOGIN" env-default:"5"`
	LoginWindow  time.Duration `env:"RATE_LIMIT_LOGIN_WINDOW" env-default:"15m"`
}

// Load builds a Config from the environment (and .env when present).
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid SERVER_PORT: %d", c.Server.Port)
	}
	if c.JWT.AccessTokenExpiry <= 0 {
		return fmt.Errorf("invalid JWT_ACCESS_EXPIRY_MINUTES: %d", c.JWT.AccessTokenExpiry)
	}
	if c.JWT.RefreshTokenExpiry <= 0 {
		return fmt.Errorf("invalid JWT_REFRESH_EXPIRY_DAYS: %d", c.JWT.RefreshTokenExpiry)
	}
	if c.JWT.Secret == c.JWT.RefreshSecret {
		return fmt.Errorf("JWT_SECRET and JWT_REFRESH_SECRET must differ")
	}

	for _, prefix := range []string{"sqlite://", "sqlite:", "file:"} {
		if strings.HasPrefix(c.Database.URL, prefix) {
			c.Database.URL = strings.TrimPrefix(c.Database.URL, prefix)
			break
		}
	}

	origins := c.CORS.Origins[:0]
	for _, o := range c.CORS.Origins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.CORS.Origins = origins

	c.Stripe.Currency = strings.ToLower(c.Stripe.Currency)
	c.AppURL = strings.TrimRight(c.AppURL, "/")
	return nil
}

// IsProduction reports whether APP_ENV is "production".
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// EncryptionKeyHex returns ENCRYPTION_KEY, or a key derived from JWT_SECRET
// when it is unset. derived reports the fallback so main can warn about it.
func (c *Config) EncryptionKeyHex() (key string, derived bool) {
	if c.Security.EncryptionKey != "" {
		return c.Security.EncryptionKey, false
	}
	sum := sha256.Sum256([]byte("storefront-encryption:" + c.JWT.Secret))
	return hex.EncodeToString(sum[:]), true
}

// Addr returns the listen address, e.g. "0.0.0.0:4000".
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AccessTTL returns the access token lifetime.
func (c *JWTConfig) AccessTTL() time.Duration {
	return time.Duration(c.AccessTokenExpiry) * time.Minute
}

// RefreshTTL returns the refresh token lifetime.
func (c *JWTConfig) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTokenExpiry) * 24 * time.Hour
}
