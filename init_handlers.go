package main

import (
	"github.com/pillarworks/storefront/config"
	"github.com/pillarworks/storefront/handlers"
	"github.com/pillarworks/storefront/pkg/ratelimit"
	"github.com/pillarworks/storefront/ws"
)

// Handlers holds every HTTP handler.
type Handlers struct {
	Auth        *handlers.AuthHandler
	Content     *handlers.ContentHandler
	Catalog     *handlers.CatalogHandler
	Faq         *handlers.FaqHandler
	Checkout    *handlers.CheckoutHandler
	Order       *handlers.OrderHandler
	Integration *handlers.IntegrationHandler
	User        *handlers.UserHandler
	Stats       *handlers.StatsHandler
	WS          *ws.Handler
}

func initHandlers(svcs *Services, loginLimiter *ratelimit.Limiter, hub *ws.Hub, cfg *config.Config) *Handlers {
	return &Handlers{
		Auth: handlers.NewAuthHandler(svcs.Auth, loginLimiter, handlers.CookieOptions{
			Secure: cfg.Cookie.Secure,
			Domain: cfg.Cookie.Domain,
		}),
		Content:     handlers.NewContentHandler(svcs.Content, svcs.Theme),
		Catalog:     handlers.NewCatalogHandler(svcs.Catalog),
		Faq:         handlers.NewFaqHandler(svcs.Faq),
		Checkout:    handlers.NewCheckoutHandler(svcs.Checkout),
		Order:       handlers.NewOrderHandler(svcs.Order),
		Integration: handlers.NewIntegrationHandler(svcs.Integration),
		User:        handlers.NewUserHandler(svcs.User),
		Stats:       handlers.NewStatsHandler(svcs.Stats, svcs.Health),
		WS:          ws.NewHandler(hub, svcs.Auth, cfg.CORS.Origins),
	}
}
