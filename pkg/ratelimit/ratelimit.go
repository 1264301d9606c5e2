// Package ratelimit provides in-memory fixed-window rate limiting keyed by an
// arbitrary string (client IP for the global and login limits, IP + email for
// the contact form).
//
// A bucket counts hits inside a window. Once the count passes the limit the
// key is rejected until the window ends or, when a cooldown is configured,
// until the cooldown elapses. State lives in process memory and is lost on
// restart, which is acceptable for abuse throttling.
package ratelimit

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

type bucket struct {
	count         int
	windowStart   time.Time
	cooldownUntil time.Time // zero = no cooldown
}

// Limiter is safe for concurrent use. Call Close to stop its cleanup goroutine.
type Limiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	limit    int
	window   time.Duration
	cooldown time.Duration
	now      func() time.Time

	stopCleanup chan struct{}
	closeOnce   sync.Once
	done        chan struct{}
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithCooldown blocks a key for d after it exceeds the limit instead of for
// the rest of the window.
func WithCooldown(d time.Duration) Option {
	return func(l *Limiter) { l.cooldown = d }
}

// WithClock replaces time.Now; tests use it to move time forward.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a limiter allowing limit hits per window per key.
func New(limit int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		buckets:     make(map[string]*bucket),
		limit:       limit,
		window:      window,
		now:         time.Now,
		stopCleanup: make(chan struct{}),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}

	go l.cleanupLoop()

	return l
}

// Allow records a hit for key and reports whether it is within the limit.
func (l *Limiter) Allow(key string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, exists := l.buckets[key]
	if !exists {
		l.buckets[key] = &bucket{count: 1, windowStart: now}
		return l.limit >= 1
	}

	if !b.cooldownUntil.IsZero() {
		if now.Before(b.cooldownUntil) {
			return false
		}
		// Cooldown over: start a fresh window.
		*b = bucket{count: 1, windowStart: now}
		return true
	}

	if now.Sub(b.windowStart) >= l.window {
		b.count = 1
		b.windowStart = now
		return true
	}

	b.count++
	if b.count > l.limit {
		if l.cooldown > 0 {
			b.cooldownUntil = now.Add(l.cooldown)
		}
		return false
	}
	return true
}

// Remaining returns how many more hits key may make in the current window.
func (l *Limiter) Remaining(key string) int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, exists := l.buckets[key]
	if !exists || (b.cooldownUntil.IsZero() && now.Sub(b.windowStart) >= l.window) {
		return l.limit
	}
	if !b.cooldownUntil.IsZero() && now.Before(b.cooldownUntil) {
		return 0
	}
	if rem := l.limit - b.count; rem > 0 {
		return rem
	}
	return 0
}

// Reset forgets key, e.g. after a successful login.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}

// RetryAfterSeconds is how long key must wait, rounded up; 0 if not blocked.
func (l *Limiter) RetryAfterSeconds(key string) int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, exists := l.buckets[key]
	if !exists {
		return 0
	}

	var until time.Time
	if !b.cooldownUntil.IsZero() {
		until = b.cooldownUntil
	} else {
		until = b.windowStart.Add(l.window)
	}
	remaining := until.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int((remaining + time.Second - 1) / time.Second)
}

// Limit and Window expose the configuration for response headers.
func (l *Limiter) Limit() int { return l.limit }

func (l *Limiter) Window() time.Duration { return l.window }

// Close stops the cleanup goroutine and waits for it to exit.
func (l *Limiter) Close() {
	l.closeOnce.Do(func() {
		close(l.stopCleanup)
		<-l.done
	})
}

func (l *Limiter) cleanupLoop() {
	defer close(l.done)

	interval := l.window
	if interval > time.Minute || interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stopCleanup:
			return
		}
	}
}

func (l *Limiter) cleanup() {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, b := range l.buckets {
		windowExpired := now.Sub(b.windowStart) >= l.window
		cooldownExpired := b.cooldownUntil.IsZero() || !now.Before(b.cooldownUntil)
		if windowExpired && cooldownExpired {
			delete(l.buckets, key)
		}
	}
}

// Len is the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// ExtractIP returns the client IP: the first X-Forwarded-For hop, then
// X-Real-IP, then the connection address.
func ExtractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// FormatRetryMessage renders a wait time for error messages.
func FormatRetryMessage(seconds int) string {
	if seconds >= 60 {
		minutes := (seconds + 59) / 60
		return fmt.Sprintf("%d minute(s)", minutes)
	}
	return fmt.Sprintf("%d second(s)", seconds)
}
