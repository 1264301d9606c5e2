package middleware

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/pillarworks/storefront/pkg"
	"github.com/pillarworks/storefront/pkg/ratelimit"
)

// RateLimit applies limiter per client IP to every request except the paths
// in skip (webhooks must never be throttled away).
func RateLimit(limiter *ratelimit.Limiter, skip func(*http.Request) bool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if skip != nil && skip(r) {
			next.ServeHTTP(w, r)
			return
		}

		ip := ratelimit.ExtractIP(r)
		if !limiter.Allow(ip) {
			retryAfter := limiter.RetryAfterSeconds(ip)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			pkg.Error(w, pkg.WithCode("rate_limited",
				fmt.Errorf("%w: too many requests, please try again in %s", pkg.ErrRateLimited,
					ratelimit.FormatRetryMessage(retryAfter))))
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(limiter.Remaining(ip)))
		next.ServeHTTP(w, r)
	})
}
