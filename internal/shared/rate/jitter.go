// Package rate turns a leaky-bucket limiter (go.uber.org/ratelimit) into a
// channel a caller can select on, so pacing waits compose with
// context cancellation instead of blocking unconditionally.
package rate

import (
	"context"
	"time"

	"go.uber.org/ratelimit"
)

// Jitter hands out "go" tokens produced at the configured rate by a
// background provider goroutine; its channel holds at most one ready token.
type Jitter struct {
	ch chan struct{}
	l  ratelimit.Limiter
}

// NewJitterFromInterval paces at one token per interval — the shape the
// upstream dispatch queue needs (a fixed minInterval between requests)
// rather than a whole-number requests-per-second rate.
func NewJitterFromInterval(ctx context.Context, interval time.Duration) *Jitter {
	if interval <= 0 {
		interval = time.Millisecond
	}
	return newJitter(ctx, ratelimit.New(1, ratelimit.Per(interval)))
}

// NewJitterPerSecond paces at limit tokens per second (minimum 1).
func NewJitterPerSecond(ctx context.Context, limit int) *Jitter {
	if limit < 1 {
		limit = 1
	}
	return newJitter(ctx, ratelimit.New(limit))
}

func newJitter(ctx context.Context, limiter ratelimit.Limiter) *Jitter {
	j := &Jitter{ch: make(chan struct{}, 1), l: limiter}
	go j.provider(ctx)
	return j
}

func (j *Jitter) provider(ctx context.Context) {
	defer close(j.ch)
	for {
		j.l.Take()
		select {
		case <-ctx.Done():
			return
		case j.ch <- struct{}{}:
		}
	}
}

// Take blocks until a token is available.
func (j *Jitter) Take() {
	<-j.ch
}

// Wait blocks until a token is available or ctx is done, whichever comes
// first. A caller that loses the race leaves its token for the next waiter.
func (j *Jitter) Wait(ctx context.Context) error {
	select {
	case <-j.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Chan exposes the underlying token channel for callers that want to select
// on it alongside other channels.
func (j *Jitter) Chan() <-chan struct{} {
	return j.ch
}
