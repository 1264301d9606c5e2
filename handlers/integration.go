package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/pillarworks/storefront/models"
	"github.com/pillarworks/storefront/pkg"
	"github.com/pillarworks/storefront/services"
)

// IntegrationHandler serves /api/admin/integrations.
type IntegrationHandler struct {
	integrationService services.IntegrationService
}

// NewIntegrationHandler, constructor.
func NewIntegrationHandler(integrationService services.IntegrationService) *IntegrationHandler {
	return &IntegrationHandler{integrationService: integrationService}
}

func parseProvider(r *http.Request) (models.IntegrationProvider, error) {
	p, err := models.ParseIntegrationProvider(r.PathValue("provider"))
	if err != nil {
		return "", fmt.Errorf("%w: %s", pkg.ErrNotFound, err.Error())
	}
	return p, nil
}

// List godoc
// GET /api/admin/integrations
// Secrets are never returned, only whether one is stored.
func (h *IntegrationHandler) List(w http.ResponseWriter, r *http.Request) {
	views, err := h.integrationService.List(r.Context())
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, views)
}

// Get godoc
// GET /api/admin/integrations/{provider}
func (h *IntegrationHandler) Get(w http.ResponseWriter, r *http.Request) {
	provider, err := parseProvider(r)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	view, err := h.integrationService.Get(r.Context(), provider)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, view)
}

// Update godoc
// PUT /api/admin/integrations/{provider}
// Body: { "enabled"?: bool, "config"?: {...}, "secrets"?: {...} }
func (h *IntegrationHandler) Update(w http.ResponseWriter, r *http.Request) {
	provider, err := parseProvider(r)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	var req models.UpdateIntegrationRequest
	if err := pkg.DecodeJSON(r, &req); err != nil {
		pkg.Error(w, err)
		return
	}
	view, err := h.integrationService.Update(r.Context(), provider, &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, view)
}

// Test godoc
// POST /api/admin/integrations/{provider}/test
func (h *IntegrationHandler) Test(w http.ResponseWriter, r *http.Request) {
	provider, err := parseProvider(r)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	res, err := h.integrationService.Test(r.Context(), provider)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, res)
}

// Calls godoc
// GET /api/admin/integrations/ringcentral/calls?days=7&per_page=50
func (h *IntegrationHandler) Calls(w http.ResponseWriter, r *http.Request) {
	days := min(queryInt(r, "days", 7), 90)
	since := time.Now().AddDate(0, 0, -days)

	records, err := h.integrationService.CallLog(r.Context(), since, queryInt(r, "per_page", 50))
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, records)
}

// SendSMS godoc
// POST /api/admin/integrations/ringcentral/sms
// Body: { "to": "+441234567890", "text": "..." }
func (h *IntegrationHandler) SendSMS(w http.ResponseWriter, r *http.Request) {
	var req models.SendSMSRequest
	if err := pkg.DecodeJSON(r, &req); err != nil {
		pkg.Error(w, err)
		return
	}
	res, err := h.integrationService.SendSMS(r.Context(), &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, res)
}
