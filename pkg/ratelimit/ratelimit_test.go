package ratelimit

import (
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func TestAllowWithinLimit(t *testing.T) {
	clock := newClock()
	l := New(3, time.Minute, WithClock(clock.Now))
	defer l.Close()

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("1.2.3.4"), "hit %d", i+1)
	}
	assert.False(t, l.Allow("1.2.3.4"))
	assert.True(t, l.Allow("5.6.7.8"), "keys are independent")
	assert.Equal(t, 0, l.Remaining("1.2.3.4"))
	assert.Equal(t, 2, l.Remaining("5.6.7.8"))
}

func TestWindowResets(t *testing.T) {
	clock := newClock()
	l := New(2, time.Minute, WithClock(clock.Now))
	defer l.Close()

	l.Allow("k")
	l.Allow("k")
	assert.False(t, l.Allow("k"))
	assert.Equal(t, 60, l.RetryAfterSeconds("k"))

	clock.Advance(30 * time.Second)
	assert.Equal(t, 30, l.RetryAfterSeconds("k"))

	clock.Advance(30 * time.Second)
	assert.True(t, l.Allow("k"))
	assert.Equal(t, 0, l.RetryAfterSeconds("unknown"))
}

func TestCooldownOutlastsWindow(t *testing.T) {
	clock := newClock()
	l := New(1, 10*time.Second, WithCooldown(time.Minute), WithClock(clock.Now))
	defer l.Close()

	assert.True(t, l.Allow("k"))
	assert.False(t, l.Allow("k"))

	clock.Advance(20 * time.Second)
	assert.False(t, l.Allow("k"), "window ended but cooldown still running")
	assert.Equal(t, 40, l.RetryAfterSeconds("k"))

	clock.Advance(40 * time.Second)
	assert.True(t, l.Allow("k"))
}

func TestReset(t *testing.T) {
	l := New(1, time.Minute)
	defer l.Close()

	l.Allow("k")
	assert.False(t, l.Allow("k"))
	l.Reset("k")
	assert.True(t, l.Allow("k"))
}

func TestCleanupDropsExpiredBuckets(t *testing.T) {
	clock := newClock()
	l := New(5, time.Minute, WithClock(clock.Now))
	defer l.Close()

	l.Allow("a")
	l.Allow("b")
	assert.Equal(t, 2, l.Len())

	clock.Advance(2 * time.Minute)
	l.cleanup()
	assert.Equal(t, 0, l.Len())
}

func TestConcurrentAllowCountsEveryHit(t *testing.T) {
	l := New(50, time.Hour)
	defer l.Close()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("shared") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, allowed)
}

func TestCloseIsIdempotent(t *testing.T) {
	l := New(1, time.Second)
	l.Close()
	l.Close()
}

func TestExtractIP(t *testing.T) {
	tests := []struct {
		name   string
		xff    string
		realIP string
		remote string
		want   string
	}{
		{"forwarded first hop", "203.0.113.7, 10.0.0.1", "", "10.0.0.2:1234", "203.0.113.7"},
		{"real ip", "", "198.51.100.4", "10.0.0.2:1234", "198.51.100.4"},
		{"remote addr", "", "", "192.0.2.1:5555", "192.0.2.1"},
		{"remote without port", "", "", "192.0.2.1", "192.0.2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				r.Header.Set("X-Real-IP", tt.realIP)
			}
			assert.Equal(t, tt.want, ExtractIP(r))
		})
	}
}

func TestFormatRetryMessage(t *testing.T) {
	assert.Equal(t, "45 second(s)", FormatRetryMessage(45))
	assert.Equal(t, "2 minute(s)", FormatRetryMessage(61))
	assert.Equal(t, "15 minute(s)", FormatRetryMessage(900))
}
