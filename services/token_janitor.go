package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TokenJanitor periodically deletes refresh-token families that expired more
// than a grace period ago. Redeemed rows are kept until then so that reuse
// can still be detected.
type TokenJanitor interface {
	Start()
	Stop()
}

type tokenJanitor struct {
	auth     AuthService
	interval time.Duration
	grace    time.Duration

	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	started bool
	stopped bool

	log *zap.Logger
}

// NewTokenJanitor, constructor.
func NewTokenJanitor(auth AuthService, interval, grace time.Duration) TokenJanitor {
	return &tokenJanitor{
		auth:     auth,
		interval: interval,
		grace:    grace,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		log:      zap.L().Named("token-janitor"),
	}
}

func (j *tokenJanitor) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.started || j.stopped {
		return
	}
	j.started = true

	j.log.Info("starting", zap.Duration("interval", j.interval), zap.Duration("grace", j.grace))

	go func() {
		defer close(j.doneCh)
		j.sweep()

		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				j.sweep()
			case <-j.stopCh:
				j.log.Info("stopped")
				return
			}
		}
	}()
}

// Stop halts the sweeper and waits for an in-flight sweep. It is safe to
// call more than once, and before Start.
func (j *tokenJanitor) Stop() {
	j.mu.Lock()
	if j.stopped {
		j.mu.Unlock()
		return
	}
	j.stopped = true
	started := j.started
	close(j.stopCh)
	j.mu.Unlock()

	if started {
		<-j.doneCh
	}
}

func (j *tokenJanitor) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := j.auth.PurgeStaleTokens(ctx, j.grace)
	if err != nil {
		j.log.Error("purge failed", zap.Error(err))
		return
	}
	if n > 0 {
		j.log.Info("purged stale refresh tokens", zap.Int64("deleted", n))
	}
}
