// Package middleware holds the http.Handler wrappers of the request pipeline:
// authentication, permissions, security headers, logging, rate limiting and
// body limits. Each one either handles the request itself or calls next.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/pillarworks/storefront/handlers"
	"github.com/pillarworks/storefront/models"
	"github.com/pillarworks/storefront/pkg"
	"github.com/pillarworks/storefront/repository"
	"github.com/pillarworks/storefront/services"
)

// AuthMiddleware validates the access JWT from the access_token cookie or an
// "Authorization: Bearer" header.
type AuthMiddleware struct {
	authService services.AuthService
	userRepo    repository.UserRepository
}

// NewAuthMiddleware, constructor.
func NewAuthMiddleware(authService services.AuthService, userRepo repository.UserRepository) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
		userRepo:    userRepo,
	}
}

// tokenFrom prefers the bearer header so API clients can override a stale
// browser cookie.
func tokenFrom(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if c, err := r.Cookie(handlers.AccessCookieName); err == nil {
		return c.Value
	}
	return ""
}

// authenticate resolves the token to a live user. The user is reloaded on
// every request so a deleted account or changed permissions take effect
// before the token expires.
func (m *AuthMiddleware) authenticate(r *http.Request, token string) (context.Context, error) {
	claims, err := m.authService.ValidateAccessToken(token)
	if err != nil {
		return nil, err
	}

	user, err := m.userRepo.GetByID(r.Context(), claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: user no longer exists", pkg.ErrUnauthorized)
	}
	user.PasswordHash = ""

	ctx := context.WithValue(r.Context(), handlers.UserContextKey, user)
	ctx = context.WithValue(ctx, handlers.ClaimsContextKey, claims)
	return ctx, nil
}

// Require rejects the request with 401 unless it carries a valid token.
func (m *AuthMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := tokenFrom(r)
		if token == "" {
			pkg.ErrorWithMessage(w, http.StatusUnauthorized, "authentication required")
			return
		}

		ctx, err := m.authenticate(r, token)
		if err != nil {
			pkg.Error(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Optional attaches the user when a valid token is present and otherwise
// passes the request through untouched. Logout uses it so that an expired
// session can still sign out.
func (m *AuthMiddleware) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := tokenFrom(r); token != "" {
			if ctx, err := m.authenticate(r, token); err == nil {
				r = r.WithContext(ctx)
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequirePermission answers 403 unless the authenticated user holds perm.
// It runs after Require.
func RequirePermission(perm models.Permission, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := r.Context().Value(handlers.UserContextKey).(*models.User)
		if !ok {
			pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
			return
		}
		if !user.EffectivePermissions().Has(perm) {
			pkg.ErrorWithMessage(w, http.StatusForbidden, "insufficient permissions")
			return
		}
		next.ServeHTTP(w, r)
	})
}
