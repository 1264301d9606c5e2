package handlers

import (
	"net/http"

	"github.com/pillarworks/storefront/models"
	"github.com/pillarworks/storefront/pkg"
	"github.com/pillarworks/storefront/repository"
	"github.com/pillarworks/storefront/services"
)

// CatalogHandler serves pillars and services, public and admin.
type CatalogHandler struct {
	catalogService services.CatalogService
}

// NewCatalogHandler, constructor.
func NewCatalogHandler(catalogService services.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService}
}

// ─── Public ───

// ListPillars godoc
// GET /api/pillars
func (h *CatalogHandler) ListPillars(w http.ResponseWriter, r *http.Request) {
	pillars, err := h.catalogService.ListPillars(r.Context(), true)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, pillars)
}

// GetPillar godoc
// GET /api/pillars/{slug}
func (h *CatalogHandler) GetPillar(w http.ResponseWriter, r *http.Request) {
	pillar, err := h.catalogService.GetPillarBySlug(r.Context(), r.PathValue("slug"), true)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, pillar)
}

// ListServices godoc
// GET /api/services?pillar=<slug>
func (h *CatalogHandler) ListServices(w http.ResponseWriter, r *http.Request) {
	list, err := h.catalogService.ListServices(r.Context(), repository.ServiceFilter{
		PillarSlug: r.URL.Query().Get("pillar"),
		ActiveOnly: true,
	})
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, list)
}

// GetService godoc
// GET /api/services/{slug}
func (h *CatalogHandler) GetService(w http.ResponseWriter, r *http.Request) {
	svc, err := h.catalogService.GetServiceBySlug(r.Context(), r.PathValue("slug"), true)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, svc)
}

// ─── Admin ───

// AdminListPillars godoc
// GET /api/admin/pillars
func (h *CatalogHandler) AdminListPillars(w http.ResponseWriter, r *http.Request) {
	pillars, err := h.catalogService.ListPillars(r.Context(), false)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, pillars)
}

// AdminGetPillar godoc
// GET /api/admin/pillars/{id}
func (h *CatalogHandler) AdminGetPillar(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pillar, err := h.catalogService.GetPillar(r.Context(), id)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, pillar)
}

// CreatePillar godoc
// POST /api/admin/pillars
func (h *CatalogHandler) CreatePillar(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePillarRequest
	if err := pkg.DecodeJSON(r, &req); err != nil {
		pkg.Error(w, err)
		return
	}
	pillar, err := h.catalogService.CreatePillar(r.Context(), &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusCreated, pillar)
}

// UpdatePillar godoc
// PATCH /api/admin/pillars/{id}
func (h *CatalogHandler) UpdatePillar(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		pkg.Error(w, err)
		return
	}
	var req models.UpdatePillarRequest
	if err := pkg.DecodeJSON(r, &req); err != nil {
		pkg.Error(w, err)
		return
	}
	pillar, err := h.catalogService.UpdatePillar(r.Context(), id, &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, pillar)
}

// DeletePillar godoc
// DELETE /api/admin/pillars/{id}
// Fails with 400 while services still belong to the pillar.
func (h *CatalogHandler) DeletePillar(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		pkg.Error(w, err)
		return
	}
	if err := h.catalogService.DeletePillar(r.Context(), id); err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, map[string]string{"message": "pillar deleted"})
}

// AdminListServices godoc
// GET /api/admin/services?pillar_id=
func (h *CatalogHandler) AdminListServices(w http.ResponseWriter, r *http.Request) {
	list, err := h.catalogService.ListServices(r.Context(), repository.ServiceFilter{
		PillarID: int64(queryInt(r, "pillar_id", 0)),
	})
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, list)
}

// AdminGetService godoc
// GET /api/admin/services/{id}
func (h *CatalogHandler) AdminGetService(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		pkg.Error(w, err)
		return
	}
	svc, err := h.catalogService.GetService(r.Context(), id)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, svc)
}

// CreateService godoc
// POST /api/admin/services
func (h *CatalogHandler) CreateService(w http.ResponseWriter, r *http.Request) {
	var req models.CreateServiceRequest
	if err := pkg.DecodeJSON(r, &req); err != nil {
		pkg.Error(w, err)
		return
	}
	svc, err := h.catalogService.CreateService(r.Context(), &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusCreated, svc)
}

// UpdateService godoc
// PATCH /api/admin/services/{id}
func (h *CatalogHandler) UpdateService(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		pkg.Error(w, err)
		return
	}
	var req models.UpdateServiceRequest
	if err := pkg.DecodeJSON(r, &req); err != nil {
		pkg.Error(w, err)
		return
	}
	svc, err := h.catalogService.UpdateService(r.Context(), id, &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, svc)
}

// DeleteService godoc
// DELETE /api/admin/services/{id}
func (h *CatalogHandler) DeleteService(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		pkg.Error(w, err)
		return
	}
	if err := h.catalogService.DeleteService(r.Context(), id); err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, map[string]string{"message": "service deleted"})
}
