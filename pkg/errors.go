// Package pkg holds the helpers shared by every layer: the JSON response
// envelope and the domain-level errors that handlers map to HTTP statuses.
//
// Services return these sentinels (usually wrapped with fmt.Errorf("%w: ...")),
// handlers pass them to Error and never inspect messages:
//
//	if errors.Is(err, pkg.ErrNotFound) { ... }
package pkg

import "errors"

// Domain-level errors.
var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrAlreadyExists   = errors.New("already exists")
	ErrBadRequest      = errors.New("bad request")
	ErrValidation      = errors.New("validation failed")
	ErrPaymentRequired = errors.New("payment failed")
	ErrRateLimited     = errors.New("rate limited")
	ErrUnavailable     = errors.New("service unavailable")
)

// CodedError lets a lower layer attach a more specific machine-readable code
// than the one derived from its sentinel (for example "token_expired" instead
// of "unauthorized").
type CodedError struct {
	Code string
	Err  error
}

func (e *CodedError) Error() string { return e.Err.Error() }

func (e *CodedError) Unwrap() error { return e.Err }

// WithCode wraps err so that Error responds with the given code.
func WithCode(code string, err error) error {
	return &CodedError{Code: code, Err: err}
}
