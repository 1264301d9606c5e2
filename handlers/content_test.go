package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pillarworks/storefront/models"
	"github.com/pillarworks/storefront/services"
)

type fakeContent struct {
	services.ContentService
	updated []models.SectionKey
}

func (f *fakeContent) Update(_ context.Context, key models.SectionKey, data json.RawMessage, userID string) (*services.SectionView, error) {
	f.updated = append(f.updated, key)
	return &services.SectionView{Key: key, Data: data, UpdatedBy: &userID}, nil
}

func updateContent(h *ContentHandler, user *models.User, key, body string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /api/admin/content/{key}", h.Update)

	req := httptest.NewRequest(http.MethodPut, "/api/admin/content/"+key, strings.NewReader(body))
	if user != nil {
		req = req.WithContext(context.WithValue(req.Context(), UserContextKey, user))
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestContentUpdatePermissionDependsOnSection(t *testing.T) {
	content := &fakeContent{}
	h := NewContentHandler(content, nil)
	editor := &models.User{ID: "e1", Role: models.RoleEditor}
	admin := &models.User{ID: "a1", Role: models.RoleAdmin}

	rec := updateContent(h, editor, "home", `{"hero":{"title":"Hi"}}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = updateContent(h, editor, "website", `{}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = updateContent(h, editor, "system", `{}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = updateContent(h, admin, "website", `{}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, []models.SectionKey{models.SectionHome, models.SectionWebsite}, content.updated)
}

func TestContentUpdateRejectsUnknownKey(t *testing.T) {
	content := &fakeContent{}
	h := NewContentHandler(content, nil)

	rec := updateContent(h, &models.User{Role: models.RoleAdmin}, "pricing", `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = updateContent(h, nil, "home", `{}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = updateContent(h, &models.User{Role: models.RoleAdmin}, "home", `{`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad_request", decodeEnvelope(t, rec).Code)
	assert.Empty(t, content.updated)
}
