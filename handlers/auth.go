// Package handlers holds the thin HTTP layer: decode the request, call one
// service, write the envelope. No handler touches the database or carries
// business rules.
package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/pillarworks/storefront/models"
	"github.com/pillarworks/storefront/pkg"
	"github.com/pillarworks/storefront/pkg/ratelimit"
	"github.com/pillarworks/storefront/services"
)

// AuthHandler serves /api/auth/*.
type AuthHandler struct {
	authService  services.AuthService
	loginLimiter *ratelimit.Limiter
	cookies      CookieOptions
}

// NewAuthHandler, constructor. A nil loginLimiter disables login throttling.
func NewAuthHandler(authService services.AuthService, loginLimiter *ratelimit.Limiter, cookies CookieOptions) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		loginLimiter: loginLimiter,
		cookies:      cookies,
	}
}

// Login godoc
// POST /api/auth/login
//
// Attempts are limited per IP; a successful login clears the counter so a
// legitimate user is never locked out by earlier typos.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ip := ratelimit.ExtractIP(r)
	if h.loginLimiter != nil && !h.loginLimiter.Allow(ip) {
		retryAfter := h.loginLimiter.RetryAfterSeconds(ip)
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		pkg.ErrorWithMessage(w, http.StatusTooManyRequests,
			fmt.Sprintf("too many login attempts, please try again in %s", ratelimit.FormatRetryMessage(retryAfter)))
		return
	}

	var req models.LoginRequest
	if err := pkg.DecodeJSON(r, &req); err != nil {
		pkg.Error(w, err)
		return
	}

	res, err := h.authService.Login(r.Context(), &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	if h.loginLimiter != nil {
		h.loginLimiter.Reset(ip)
	}

	h.cookies.setSession(w, res)
	pkg.JSON(w, http.StatusOK, res)
}

// Refresh godoc
// POST /api/auth/refresh
// The refresh token comes from its cookie only.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(RefreshCookieName)
	if err != nil || c.Value == "" {
		pkg.Error(w, pkg.WithCode("refresh_missing", fmt.Errorf("%w: no refresh token", pkg.ErrUnauthorized)))
		return
	}

	res, err := h.authService.Refresh(r.Context(), c.Value)
	if err != nil {
		// A dead refresh token is useless to the browser; drop both cookies so
		// the client falls back to the login page.
		h.cookies.clearSession(w)
		pkg.Error(w, err)
		return
	}

	h.cookies.setSession(w, res)
	pkg.JSON(w, http.StatusOK, res)
}

// Logout godoc
// POST /api/auth/logout
// Always succeeds and always clears both cookies.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var refresh string
	if c, err := r.Cookie(RefreshCookieName); err == nil {
		refresh = c.Value
	}

	claims := claimsFrom(r)
	if claims == nil {
		if c, err := r.Cookie(AccessCookieName); err == nil {
			claims, _ = h.authService.SessionClaims(c.Value)
		}
	}

	// The browser session ends even when revocation fails.
	if err := h.authService.Logout(r.Context(), refresh, claims); err != nil {
		zap.L().Named("auth").Warn("logout revocation failed", zap.Error(err))
	}

	h.cookies.clearSession(w)
	pkg.JSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// Me godoc
// GET /api/auth/user
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := userFrom(r)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	fresh, err := h.authService.CurrentUser(r.Context(), user.ID)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, fresh)
}

// ChangePassword godoc
// POST /api/auth/change-password
// Signs out every other session and returns a fresh pair for this one.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := userFrom(r)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req models.ChangePasswordRequest
	if err := pkg.DecodeJSON(r, &req); err != nil {
		pkg.Error(w, err)
		return
	}

	res, err := h.authService.ChangePassword(r.Context(), user.ID, &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	h.cookies.setSession(w, res)
	pkg.JSON(w, http.StatusOK, res)
}
