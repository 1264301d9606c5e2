package handlers

import (
	"net/http"

	"github.com/pillarworks/storefront/pkg"
	"github.com/pillarworks/storefront/services"
)

// StatsHandler serves the admin dashboard summary and the health check.
type StatsHandler struct {
	statsService  services.StatsService
	healthService services.HealthService
}

// NewStatsHandler, constructor.
func NewStatsHandler(statsService services.StatsService, healthService services.HealthService) *StatsHandler {
	return &StatsHandler{statsService: statsService, healthService: healthService}
}

// Dashboard godoc
// GET /api/admin/stats
func (h *StatsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.statsService.Dashboard(r.Context())
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, stats)
}

// Health godoc
// GET /api/health
// 200 when every dependency answers, 503 with the same body otherwise.
func (h *StatsHandler) Health(w http.ResponseWriter, r *http.Request) {
	report := h.healthService.Check(r.Context())
	status := http.StatusOK
	if !report.Healthy() {
		status = http.StatusServiceUnavailable
	}
	pkg.JSON(w, status, report)
}
