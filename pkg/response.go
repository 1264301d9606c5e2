package pkg

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"

	"go.uber.org/zap"
)

// APIResponse is the envelope for every API response. Clients branch on
// Code, never on the human-readable Error text.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// hideInternal suppresses 5xx messages in production.
var hideInternal atomic.Bool

// SetHideInternalErrors toggles whether 500 responses carry the underlying
// error message. main enables it when APP_ENV=production.
func SetHideInternalErrors(hide bool) {
	hideInternal.Store(hide)
}

// JSON writes a success envelope.
func JSON(w http.ResponseWriter, status int, data any) {
	write(w, status, APIResponse{Success: true, Data: data})
}

// Error maps a domain error to its HTTP status and writes an error envelope.
func Error(w http.ResponseWriter, err error) {
	status, code := Classify(err)
	msg := err.Error()

	if status >= http.StatusInternalServerError {
		zap.L().Named("http").Error("request failed", zap.Int("status", status), zap.Error(err))
		if hideInternal.Load() && status == http.StatusInternalServerError {
			msg = "internal server error"
		}
	}

	write(w, status, APIResponse{Success: false, Error: msg, Code: code})
}

// ErrorWithMessage writes an error envelope with an explicit status.
func ErrorWithMessage(w http.ResponseWriter, status int, message string) {
	write(w, status, APIResponse{Success: false, Error: message, Code: codeForStatus(status)})
}

// Classify returns the HTTP status and machine code for err.
func Classify(err error) (int, string) {
	status := mapErrorToStatus(err)

	var coded *CodedError
	if errors.As(err, &coded) && coded.Code != "" {
		return status, coded.Code
	}
	return status, codeForStatus(status)
}

func mapErrorToStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrPaymentRequired):
		return http.StatusPaymentRequired
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusNotFound:
		return "not_found"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusConflict:
		return "conflict"
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusPaymentRequired:
		return "payment_failed"
	case http.StatusTooManyRequests:
		return "rate_limited"
	case http.StatusServiceUnavailable:
		return "unavailable"
	case http.StatusRequestEntityTooLarge:
		return "payload_too_large"
	default:
		return "internal"
	}
}

func write(w http.ResponseWriter, status int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

// DecodeJSON decodes a request body into dst. A decode failure is reported as
// ErrBadRequest.
func DecodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return WithCode("payload_too_large", fmt.Errorf("%w: request body too large", ErrBadRequest))
		}
		return fmt.Errorf("%w: invalid request body", ErrBadRequest)
	}
	return nil
}
