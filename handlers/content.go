package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pillarworks/storefront/models"
	"github.com/pillarworks/storefront/pkg"
	"github.com/pillarworks/storefront/pkg/ratelimit"
	"github.com/pillarworks/storefront/services"
)

// ContentHandler serves the public content reads, the contact form and the
// content admin.
type ContentHandler struct {
	contentService services.ContentService
	themeService   services.ThemeService
}

// NewContentHandler, constructor.
func NewContentHandler(contentService services.ContentService, themeService services.ThemeService) *ContentHandler {
	return &ContentHandler{contentService: contentService, themeService: themeService}
}

func parseSectionKey(r *http.Request) (models.SectionKey, error) {
	key, err := models.ParseSectionKey(r.PathValue("key"))
	if err != nil {
		return "", fmt.Errorf("%w: %s", pkg.ErrNotFound, err.Error())
	}
	return key, nil
}

// ListPublic godoc
// GET /api/content
func (h *ContentHandler) ListPublic(w http.ResponseWriter, r *http.Request) {
	sections, err := h.contentService.ListPublic(r.Context())
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, sections)
}

// GetPublic godoc
// GET /api/content/{key}
func (h *ContentHandler) GetPublic(w http.ResponseWriter, r *http.Request) {
	key, err := parseSectionKey(r)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	data, err := h.contentService.GetPublic(r.Context(), key)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, data)
}

// ThemeCSS godoc
// GET /api/content/theme.css
// Plain CSS, not the JSON envelope.
func (h *ContentHandler) ThemeCSS(w http.ResponseWriter, r *http.Request) {
	css, err := h.themeService.CSS(r.Context())
	if err != nil {
		pkg.Error(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, css)
}

// SubmitContact godoc
// POST /api/contact
func (h *ContentHandler) SubmitContact(w http.ResponseWriter, r *http.Request) {
	var req models.ContactRequest
	if err := pkg.DecodeJSON(r, &req); err != nil {
		pkg.Error(w, err)
		return
	}

	if err := h.contentService.SubmitContact(r.Context(), ratelimit.ExtractIP(r), &req); err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusAccepted, map[string]string{"message": "message sent"})
}

// ─── Admin ───

// Get godoc
// GET /api/admin/content/{key}
func (h *ContentHandler) Get(w http.ResponseWriter, r *http.Request) {
	key, err := parseSectionKey(r)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	view, err := h.contentService.Get(r.Context(), key)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, view)
}

// Update godoc
// PUT /api/admin/content/{key}
// Body: the full section document. Missing fields fall back to defaults.
//
// The required permission depends on the section, so the check happens here
// rather than in the route table.
func (h *ContentHandler) Update(w http.ResponseWriter, r *http.Request) {
	key, err := parseSectionKey(r)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	user, ok := userFrom(r)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if !user.EffectivePermissions().Has(key.Permission()) {
		pkg.ErrorWithMessage(w, http.StatusForbidden, "insufficient permissions")
		return
	}

	var data json.RawMessage
	if err := pkg.DecodeJSON(r, &data); err != nil {
		pkg.Error(w, err)
		return
	}

	view, err := h.contentService.Update(r.Context(), key, data, user.ID)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, view)
}

// GetTheme godoc
// GET /api/admin/theme
func (h *ContentHandler) GetTheme(w http.ResponseWriter, r *http.Request) {
	theme, err := h.themeService.Get(r.Context())
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, theme)
}

// UpdateTheme godoc
// PUT /api/admin/theme
func (h *ContentHandler) UpdateTheme(w http.ResponseWriter, r *http.Request) {
	user, ok := userFrom(r)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var data json.RawMessage
	if err := pkg.DecodeJSON(r, &data); err != nil {
		pkg.Error(w, err)
		return
	}

	theme, err := h.themeService.Update(r.Context(), data, user.ID)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, theme)
}
