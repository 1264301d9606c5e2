package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/pillarworks/storefront/models"
	"github.com/pillarworks/storefront/pkg"
)

type contextKey string

// UserContextKey carries the authenticated *models.User.
const UserContextKey contextKey = "user"

// ClaimsContextKey carries the validated *models.TokenClaims.
const ClaimsContextKey contextKey = "claims"

// userFrom returns the user the auth middleware put on the request.
func userFrom(r *http.Request) (*models.User, bool) {
	u, ok := r.Context().Value(UserContextKey).(*models.User)
	return u, ok && u != nil
}

func claimsFrom(r *http.Request) *models.TokenClaims {
	c, _ := r.Context().Value(ClaimsContextKey).(*models.TokenClaims)
	return c
}

// pathID parses a numeric {name} path segment.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s", pkg.ErrBadRequest, name)
	}
	return id, nil
}

// queryInt reads a positive integer query parameter, or def.
func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

// queryBool accepts "1" and "true".
func queryBool(r *http.Request, key string) bool {
	v := r.URL.Query().Get(key)
	return v == "1" || v == "true"
}
