package handlers

import (
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/pillarworks/storefront/models"
	"github.com/pillarworks/storefront/pkg"
	"github.com/pillarworks/storefront/services"
)

// maxWebhookBody caps a webhook payload; Stripe events are a few KB.
const maxWebhookBody = 256 << 10

// CheckoutHandler serves checkout and the payment webhooks.
type CheckoutHandler struct {
	checkoutService services.CheckoutService
}

// NewCheckoutHandler, constructor.
func NewCheckoutHandler(checkoutService services.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkoutService: checkoutService}
}

// Checkout godoc
// POST /api/checkout
// Body: { "customer": {...}, "notes": "", "items": [{ "service_id": 1, "quantity": 1 }] }
// Prices are always taken from the catalog, never from the request.
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req models.CheckoutRequest
	if err := pkg.DecodeJSON(r, &req); err != nil {
		pkg.Error(w, err)
		return
	}

	res, err := h.checkoutService.Checkout(r.Context(), &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusCreated, res)
}

// Session godoc
// GET /api/checkout/session/{sessionId}
func (h *CheckoutHandler) Session(w http.ResponseWriter, r *http.Request) {
	summary, err := h.checkoutService.SessionSummary(r.Context(), r.PathValue("sessionId"))
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, summary)
}

// CompleteMock godoc
// POST /api/checkout/session/{sessionId}/complete
// Only answers while no payment provider is configured.
func (h *CheckoutHandler) CompleteMock(w http.ResponseWriter, r *http.Request) {
	summary, err := h.checkoutService.CompleteMockSession(r.Context(), r.PathValue("sessionId"))
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, summary)
}

// StripeWebhook godoc
// POST /api/webhooks/stripe
// The signature covers the exact bytes, so the body is read raw.
func (h *CheckoutHandler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		pkg.Error(w, pkg.WithCode("payload_too_large", fmt.Errorf("%w: webhook body too large", pkg.ErrBadRequest)))
		return
	}

	if err := h.checkoutService.HandleStripeWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, map[string]bool{"received": true})
}

// ProviderWebhook godoc
// POST /api/webhooks/{provider}
// Placeholder for provider callbacks that need no processing yet: logged and
// acknowledged.
func (h *CheckoutHandler) ProviderWebhook(w http.ResponseWriter, r *http.Request) {
	n, _ := io.Copy(io.Discard, http.MaxBytesReader(w, r.Body, maxWebhookBody))
	zap.L().Named("webhooks").Info("webhook received",
		zap.String("provider", r.PathValue("provider")),
		zap.Int64("bytes", n))
	pkg.JSON(w, http.StatusOK, map[string]bool{"received": true})
}
