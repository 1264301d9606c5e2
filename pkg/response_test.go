package pkg

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("%w: order", ErrNotFound), http.StatusNotFound, "not_found"},
		{fmt.Errorf("%w: slug taken", ErrAlreadyExists), http.StatusConflict, "conflict"},
		{fmt.Errorf("validation failed: %w", ErrValidation), http.StatusUnprocessableEntity, "validation_failed"},
		{WithCode("token_expired", fmt.Errorf("%w: expired", ErrUnauthorized)), http.StatusUnauthorized, "token_expired"},
		{WithCode("", ErrForbidden), http.StatusForbidden, "forbidden"},
		{fmt.Errorf("wrapped: %w", WithCode("not_configured", ErrUnavailable)), http.StatusServiceUnavailable, "not_configured"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		status, code := Classify(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.code, code, tc.err.Error())
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestErrorEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, WithCode("rate_limited", fmt.Errorf("%w: slow down", ErrRateLimited)))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	resp := decode(t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, "rate_limited", resp.Code)
	assert.Equal(t, "rate limited: slow down", resp.Error)
}

func TestInternalErrorsHiddenInProduction(t *testing.T) {
	SetHideInternalErrors(true)
	t.Cleanup(func() { SetHideInternalErrors(false) })

	rec := httptest.NewRecorder()
	Error(rec, errors.New("pq: password authentication failed"))
	assert.Equal(t, "internal server error", decode(t, rec).Error)

	// Only 500s are masked.
	rec = httptest.NewRecorder()
	Error(rec, fmt.Errorf("%w: suitedash is down", ErrUnavailable))
	assert.Equal(t, "service unavailable: suitedash is down", decode(t, rec).Error)
}

func TestJSONEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, http.StatusCreated, map[string]int{"id": 7})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"success":true,"data":{"id":7}}`, rec.Body.String())
}

func TestDecodeJSON(t *testing.T) {
	var dst struct{ Name string }

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Ada"}`))
	require.NoError(t, DecodeJSON(req, &dst))
	assert.Equal(t, "Ada", dst.Name)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":`))
	assert.ErrorIs(t, DecodeJSON(req, &dst), ErrBadRequest)

	rec := httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"`+strings.Repeat("a", 100)+`"}`))
	req.Body = http.MaxBytesReader(rec, req.Body, 10)
	err := DecodeJSON(req, &dst)
	require.ErrorIs(t, err, ErrBadRequest)
	_, code := Classify(err)
	assert.Equal(t, "payload_too_large", code)
}
