package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// purgeTimeout bounds a single purge statement.
const purgeTimeout = 30 * time.Second

// ExpiredClaimStore deletes idempotency claims past their expiry.
type ExpiredClaimStore interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// ClaimPurger keeps the checkout dedup table short by deleting expired
// claims on a fixed interval.
type ClaimPurger struct {
	claims   ExpiredClaimStore
	interval time.Duration
	now      func() time.Time
	logger   zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewClaimPurger creates a purger. An interval of zero or less disables it.
func NewClaimPurger(claims ExpiredClaimStore, interval time.Duration, logger zerolog.Logger) *ClaimPurger {
	return &ClaimPurger{
		claims:   claims,
		interval: interval,
		now:      time.Now,
		logger:   logger.With().Str("component", "claim_purger").Logger(),
	}
}

// Start purges once and then on every tick until ctx ends or Close is
// called. Calling Start on a running or disabled purger does nothing.
func (p *ClaimPurger) Start(ctx context.Context) {
	if p.interval <= 0 {
		p.logger.Info().Msg("idempotency claim purge disabled")
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done != nil {
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})

	go p.loop(ctx, p.done)
}

func (p *ClaimPurger) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.PurgeOnce(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// PurgeOnce deletes every claim that has expired by now. Failures are logged
// and retried on the next tick.
func (p *ClaimPurger) PurgeOnce(ctx context.Context) int64 {
	ctx, cancel := context.WithTimeout(ctx, purgeTimeout)
	defer cancel()

	n, err := p.claims.PurgeExpired(ctx, p.now())
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Warn().Err(err).Msg("failed to purge expired idempotency claims")
		}
		return 0
	}
	return n
}

// Close stops the loop and waits for an in-flight purge to finish.
func (p *ClaimPurger) Close() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
