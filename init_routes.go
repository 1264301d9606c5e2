package main

import (
	"net/http"

	"github.com/pillarworks/storefront/middleware"
	"github.com/pillarworks/storefront/models"
	"github.com/pillarworks/storefront/repository"
	"github.com/pillarworks/storefront/services"
)

// initRoutes binds every endpoint. Literal segments such as
// /api/content/theme.css win over {key} patterns, so registration order does
// not matter.
func initRoutes(mux *http.ServeMux, h *Handlers, authService services.AuthService, userRepo repository.UserRepository) {
	authMw := middleware.NewAuthMiddleware(authService, userRepo)

	auth := func(handler http.HandlerFunc) http.Handler {
		return authMw.Require(handler)
	}
	perm := func(p models.Permission, handler http.HandlerFunc) http.Handler {
		return authMw.Require(middleware.RequirePermission(p, handler))
	}

	// ─── Platform ───
	mux.HandleFunc("GET /api/health", h.Stats.Health)
	mux.HandleFunc("GET /ws", h.WS.HandleConnection)

	// ─── Auth ───
	mux.HandleFunc("POST /api/auth/login", h.Auth.Login)
	mux.HandleFunc("POST /api/auth/refresh", h.Auth.Refresh)
	mux.Handle("POST /api/auth/logout", authMw.Optional(http.HandlerFunc(h.Auth.Logout)))
	mux.Handle("GET /api/auth/user", auth(h.Auth.Me))
	mux.Handle("POST /api/auth/change-password", auth(h.Auth.ChangePassword))

	// ─── Public content ───
	mux.HandleFunc("GET /api/content", h.Content.ListPublic)
	mux.HandleFunc("GET /api/content/theme.css", h.Content.ThemeCSS)
	mux.HandleFunc("GET /api/content/{key}", h.Content.GetPublic)
	mux.HandleFunc("POST /api/contact", h.Content.SubmitContact)

	// ─── Public catalog ───
	mux.HandleFunc("GET /api/pillars", h.Catalog.ListPillars)
	mux.HandleFunc("GET /api/pillars/{slug}", h.Catalog.GetPillar)
	mux.HandleFunc("GET /api/services", h.Catalog.ListServices)
	mux.HandleFunc("GET /api/services/{slug}", h.Catalog.GetService)
	mux.HandleFunc("GET /api/faqs", h.Faq.List)

	// ─── Checkout ───
	mux.HandleFunc("POST /api/checkout", h.Checkout.Checkout)
	mux.HandleFunc("GET /api/checkout/session/{sessionId}", h.Checkout.Session)
	mux.HandleFunc("POST /api/checkout/session/{sessionId}/complete", h.Checkout.CompleteMock)

	// ─── Webhooks ───
	mux.HandleFunc("POST /api/webhooks/stripe", h.Checkout.StripeWebhook)
	mux.HandleFunc("POST /api/webhooks/{provider}", h.Checkout.ProviderWebhook)

	// ─── Admin: content & theme ───
	// Content writes check the section's own permission in the handler.
	mux.Handle("GET /api/admin/content/{key}", auth(h.Content.Get))
	mux.Handle("PUT /api/admin/content/{key}", auth(h.Content.Update))
	mux.Handle("GET /api/admin/theme", perm(models.PermManageTheme, h.Content.GetTheme))
	mux.Handle("PUT /api/admin/theme", perm(models.PermManageTheme, h.Content.UpdateTheme))

	// ─── Admin: catalog ───
	mux.Handle("GET /api/admin/pillars", perm(models.PermManageCatalog, h.Catalog.AdminListPillars))
	mux.Handle("POST /api/admin/pillars", perm(models.PermManageCatalog, h.Catalog.CreatePillar))
	mux.Handle("GET /api/admin/pillars/{id}", perm(models.PermManageCatalog, h.Catalog.AdminGetPillar))
	mux.Handle("PATCH /api/admin/pillars/{id}", perm(models.PermManageCatalog, h.Catalog.UpdatePillar))
	mux.Handle("DELETE /api/admin/pillars/{id}", perm(models.PermManageCatalog, h.Catalog.DeletePillar))
	mux.Handle("GET /api/admin/services", perm(models.PermManageCatalog, h.Catalog.AdminListServices))
	mux.Handle("POST /api/admin/services", perm(models.PermManageCatalog, h.Catalog.CreateService))
	mux.Handle("GET /api/admin/services/{id}", perm(models.PermManageCatalog, h.Catalog.AdminGetService))
	mux.Handle("PATCH /api/admin/services/{id}", perm(models.PermManageCatalog, h.Catalog.UpdateService))
	mux.Handle("DELETE /api/admin/services/{id}", perm(models.PermManageCatalog, h.Catalog.DeleteService))

	// ─── Admin: FAQs ───
	mux.Handle("GET /api/admin/faqs", perm(models.PermManageFAQs, h.Faq.AdminList))
	mux.Handle("POST /api/admin/faqs", perm(models.PermManageFAQs, h.Faq.Create))
	mux.Handle("GET /api/admin/faqs/{id}", perm(models.PermManageFAQs, h.Faq.Get))
	mux.Handle("PUT /api/admin/faqs/{id}", perm(models.PermManageFAQs, h.Faq.Update))
	mux.Handle("DELETE /api/admin/faqs/{id}", perm(models.PermManageFAQs, h.Faq.Delete))

	// ─── Admin: orders ───
	mux.Handle("GET /api/admin/orders", perm(models.PermManageOrders, h.Order.List))
	mux.Handle("POST /api/admin/orders/bulk-delete", perm(models.PermManageOrders, h.Order.BulkDelete))
	mux.Handle("POST /api/admin/orders/bulk-sync", perm(models.PermManageOrders, h.Order.BulkSync))
	mux.Handle("GET /api/admin/orders/{id}", perm(models.PermManageOrders, h.Order.Get))
	mux.Handle("PATCH /api/admin/orders/{id}", perm(models.PermManageOrders, h.Order.Update))
	mux.Handle("DELETE /api/admin/orders/{id}", perm(models.PermManageOrders, h.Order.Delete))
	mux.Handle("POST /api/admin/orders/{id}/sync", perm(models.PermManageOrders, h.Order.Sync))

	// ─── Admin: integrations ───
	mux.Handle("GET /api/admin/integrations", perm(models.PermManageIntegrations, h.Integration.List))
	mux.Handle("GET /api/admin/integrations/ringcentral/calls", perm(models.PermManageIntegrations, h.Integration.Calls))
	mux.Handle("POST /api/admin/integrations/ringcentral/sms", perm(models.PermManageIntegrations, h.Integration.SendSMS))
	mux.Handle("GET /api/admin/integrations/{provider}", perm(models.PermManageIntegrations, h.Integration.Get))
	mux.Handle("PUT /api/admin/integrations/{provider}", perm(models.PermManageIntegrations, h.Integration.Update))
	mux.Handle("POST /api/admin/integrations/{provider}/test", perm(models.PermManageIntegrations, h.Integration.Test))

	// ─── Admin: users & stats ───
	mux.Handle("GET /api/admin/users", perm(models.PermManageUsers, h.User.List))
	mux.Handle("POST /api/admin/users", perm(models.PermManageUsers, h.User.Create))
	mux.Handle("PATCH /api/admin/users/{id}", perm(models.PermManageUsers, h.User.Update))
	mux.Handle("DELETE /api/admin/users/{id}", perm(models.PermManageUsers, h.User.Delete))
	mux.Handle("GET /api/admin/stats", auth(h.Stats.Dashboard))
}
