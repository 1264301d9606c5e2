package handlers

import (
	"fmt"
	"net/http"

	"github.com/pillarworks/storefront/models"
	"github.com/pillarworks/storefront/pkg"
	"github.com/pillarworks/storefront/services"
)

type FaqHandler struct {
	faqService services.FaqService
}

// NewFaqHandler, constructor.
func NewFaqHandler(faqService services.FaqService) *FaqHandler {
	return &FaqHandler{faqService: faqService}
}

// faqFilter reads ?pillar=<slug> or ?scope=global; the two are exclusive.
func faqFilter(r *http.Request) (models.FaqFilter, error) {
	q := r.URL.Query()
	f := models.FaqFilter{PillarSlug: q.Get("pillar")}
	switch q.Get("scope") {
	case "":
	case "global":
		f.GlobalOnly = true
	default:
		return f, fmt.Errorf("%w: scope must be \"global\"", pkg.ErrBadRequest)
	}
	if f.GlobalOnly && f.PillarSlug != "" {
		return f, fmt.Errorf("%w: pillar and scope cannot be combined", pkg.ErrBadRequest)
	}
	return f, nil
}

// List godoc
// GET /api/faqs?pillar=<slug>|scope=global
func (h *FaqHandler) List(w http.ResponseWriter, r *http.Request) {
	f, err := faqFilter(r)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	faqs, err := h.faqService.List(r.Context(), f)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, faqs)
}

// AdminList godoc
// GET /api/admin/faqs
// Includes inactive entries.
func (h *FaqHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	f, err := faqFilter(r)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	f.IncludeInactive = true
	faqs, err := h.faqService.List(r.Context(), f)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, faqs)
}

// Get godoc
// GET /api/admin/faqs/{id}
func (h *FaqHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		pkg.Error(w, err)
		return
	}
	faq, err := h.faqService.Get(r.Context(), id)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, faq)
}

// Create godoc
// POST /api/admin/faqs
func (h *FaqHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.FaqRequest
	if err := pkg.DecodeJSON(r, &req); err != nil {
		pkg.Error(w, err)
		return
	}
	faq, err := h.faqService.Create(r.Context(), &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusCreated, faq)
}

// Update godoc
// PUT /api/admin/faqs/{id}
func (h *FaqHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		pkg.Error(w, err)
		return
	}
	var req models.FaqRequest
	if err := pkg.DecodeJSON(r, &req); err != nil {
		pkg.Error(w, err)
		return
	}
	faq, err := h.faqService.Update(r.Context(), id, &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, faq)
}

// Delete godoc
// DELETE /api/admin/faqs/{id}
func (h *FaqHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		pkg.Error(w, err)
		return
	}
	if err := h.faqService.Delete(r.Context(), id); err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, map[string]string{"message": "faq deleted"})
}
