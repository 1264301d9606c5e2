package main

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pillarworks/storefront/config"
	"github.com/pillarworks/storefront/database"
	"github.com/pillarworks/storefront/models"
	"github.com/pillarworks/storefront/pkg/cache"
	"github.com/pillarworks/storefront/pkg/crypto"
	"github.com/pillarworks/storefront/pkg/email"
	"github.com/pillarworks/storefront/pkg/payment"
	"github.com/pillarworks/storefront/pkg/ratelimit"
	"github.com/pillarworks/storefront/services"
	"github.com/pillarworks/storefront/ws"
)

const (
	contentCacheTTL      = 5 * time.Minute
	contentCacheSweep    = time.Minute
	contactLimit         = 5
	contactWindow        = time.Hour
	tokenJanitorInterval = time.Hour
	tokenJanitorGrace    = 24 * time.Hour
)

// Services groups the service layer together with the background resources
// main must stop on shutdown.
type Services struct {
	Auth        services.AuthService
	User        services.UserService
	Content     services.ContentService
	Theme       services.ThemeService
	Catalog     services.CatalogService
	Faq         services.FaqService
	Integration services.IntegrationService
	Order       services.OrderService
	Checkout    services.CheckoutService
	Stats       services.StatsService
	Health      services.HealthService
	Seed        services.SeedService
	Janitor     services.TokenJanitor

	sectionCache   *cache.TTLCache[models.SectionKey, *services.SectionView]
	contactLimiter *ratelimit.Limiter
}

// Close releases the caches and limiters owned by the service layer.
func (s *Services) Close() {
	s.sectionCache.Close()
	s.contactLimiter.Close()
}

func initServices(cfg *config.Config, db *database.DB, repos *Repositories, hub *ws.Hub, version string) (*Services, error) {
	log := zap.L().Named("main")

	keyHex, derived := cfg.EncryptionKeyHex()
	if derived {
		log.Warn("ENCRYPTION_KEY is not set; integration secrets are encrypted with a key derived from JWT_SECRET")
	}
	key, err := crypto.DeriveKey(keyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid ENCRYPTION_KEY: %w", err)
	}
	box, err := crypto.NewBox(key)
	if err != nil {
		return nil, err
	}

	var sender email.EmailSender
	if cfg.Email.ResendAPIKey != "" {
		sender = email.NewResendSender(cfg.Email.ResendAPIKey, cfg.Email.From)
	} else {
		log.Info("RESEND_API_KEY is not set; emails are only logged")
		sender = email.NewLogSender(cfg.Email.From)
	}

	var gateway payment.Gateway
	if cfg.Stripe.SecretKey != "" {
		gateway = payment.NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret)
	} else {
		log.Info("STRIPE_SECRET_KEY is not set; checkout runs in mock mode")
		gateway = payment.NewMockGateway(cfg.Stripe.WebhookSecret)
	}

	s := &Services{
		sectionCache:   cache.New[models.SectionKey, *services.SectionView](contentCacheTTL, contentCacheSweep),
		contactLimiter: ratelimit.New(contactLimit, contactWindow),
	}

	notifier := services.NewNotifier(sender, services.NotifierConfig{
		SiteName:   cfg.SiteName,
		AdminEmail: cfg.Admin.Email,
		AppURL:     cfg.AppURL,
	})

	s.Auth = services.NewAuthService(db.Conn, repos.User, repos.RefreshToken, services.AuthConfig{
		JWTSecret:     cfg.JWT.Secret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		AccessTTL:     cfg.JWT.AccessTTL(),
		RefreshTTL:    cfg.JWT.RefreshTTL(),
	})
	s.User = services.NewUserService(repos.User, repos.RefreshToken)
	s.Content = services.NewContentService(repos.Content, hub, notifier, s.sectionCache, s.contactLimiter)
	s.Theme = services.NewThemeService(s.Content, repos.Content, hub, s.sectionCache.Delete)
	s.Catalog = services.NewCatalogService(repos.Pillar, repos.Service, hub)
	s.Faq = services.NewFaqService(repos.Faq, hub)
	s.Integration = services.NewIntegrationService(repos.Integration, box, services.IntegrationEnv{
		SuiteDash:   cfg.SuiteDash,
		RingCentral: cfg.RingCentral,
	}, services.DefaultIntegrationClients())
	s.Order = services.NewOrderService(repos.Order, s.Integration, hub)
	s.Checkout = services.NewCheckoutService(db.Conn, repos.Order, repos.Service, s.Content, s.Order,
		s.Integration, notifier, gateway, hub, services.CheckoutConfig{
			Currency: cfg.Stripe.Currency,
			AppURL:   cfg.AppURL,
		})
	s.Stats = services.NewStatsService(repos.Stats, repos.Pillar, repos.Service, repos.Faq, repos.User, cfg.Stripe.Currency)
	s.Health = services.NewHealthService(db, hub.ConnectionCount, version)
	s.Seed = services.NewSeedService(db.Conn)
	s.Janitor = services.NewTokenJanitor(s.Auth, tokenJanitorInterval, tokenJanitorGrace)

	return s, nil
}
