package handlers

import (
	"net/http"
	"time"

	"github.com/pillarworks/storefront/services"
)

const (
	AccessCookieName  = "access_token"
	RefreshCookieName = "refresh_token"

	// refreshCookiePath keeps the refresh token off every request but the
	// refresh call itself. Logout finds the session through the access
	// token's family claim instead.
	refreshCookiePath = "/api/auth/refresh"
)

// CookieOptions are the deployment dependent cookie attributes.
type CookieOptions struct {
	Secure bool
	Domain string
}

func (o CookieOptions) cookie(name, value, path string, expires time.Time) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   o.Domain,
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if expires.IsZero() {
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
	} else {
		c.Expires = expires
		c.MaxAge = int(time.Until(expires).Seconds())
	}
	return c
}

func (o CookieOptions) setSession(w http.ResponseWriter, res *services.AuthResult) {
	http.SetCookie(w, o.cookie(AccessCookieName, res.AccessToken, "/", res.AccessExpiresAt))
	http.SetCookie(w, o.cookie(RefreshCookieName, res.RefreshToken, refreshCookiePath, res.RefreshExpiresAt))
}

func (o CookieOptions) clearSession(w http.ResponseWriter) {
	http.SetCookie(w, o.cookie(AccessCookieName, "", "/", time.Time{}))
	http.SetCookie(w, o.cookie(RefreshCookieName, "", refreshCookiePath, time.Time{}))
}
