// Package composite implements the Composite Cache (C3): an ordered chain
// of backends with read-fallback, write-through and delete-all semantics,
// plus optional fire-and-forget promotion of a lower-tier hit into the
// more-preferred tiers above it.
package composite

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Borislavv/bracket-bff/internal/cache"
)

const promotionQueueSize = 256

// Composite chains backends B0..Bn-1, B0 most preferred.
type Composite struct {
	backends  []cache.Backend
	logger    *slog.Logger
	promote   bool
	promoteCh chan promotionJob
	done      chan struct{}
	closeOnce sync.Once
}

type promotionJob struct {
	key     string
	value   []byte
	ttl     time.Duration
	upTo    int
}

// Option configures a Composite at construction.
type Option func(*Composite)

// WithPromotion enables background promotion of lower-tier hits into the
// more-preferred backends above them (§4.2 invariant 3). It never blocks
// the read that triggered it; the promotion work queue is bounded, and a
// promotion attempt is dropped (not queued unboundedly) when it is full.
func WithPromotion(enabled bool) Option {
	return func(c *Composite) { c.promote = enabled }
}

// New builds a Composite over backends, most-preferred first. backends must
// be non-empty.
func New(logger *slog.Logger, backends ...cache.Backend) *Composite {
	return NewWithOptions(logger, backends, nil)
}

// NewWithOptions is New plus functional options (e.g. WithPromotion).
func NewWithOptions(logger *slog.Logger, backends []cache.Backend, opts []Option) *Composite {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Composite{
		backends: backends,
		logger:   logger,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.promote {
		c.promoteCh = make(chan promotionJob, promotionQueueSize)
		go c.promotionWorker()
	}
	return c
}

func (c *Composite) Name() string {
	names := make([]string, len(c.backends))
	for i, b := range c.backends {
		names[i] = b.Name()
	}
	return "Composite(" + strings.Join(names, " → ") + ")"
}

// Get returns the first non-nil value found scanning backends in
// preference order. A fault on one backend is logged and the scan
// continues; Get returns (nil, nil) only once every backend has been
// consulted and none returned a value.
func (c *Composite) Get(ctx context.Context, key string) ([]byte, error) {
	for i, b := range c.backends {
		v, err := b.Get(ctx, key)
		if err != nil {
			c.logger.Warn("cache backend read fault, falling through",
				slog.String("backend", b.Name()), slog.String("key", key), slog.Any("err", err))
			continue
		}
		if v != nil {
			if c.promote && i > 0 {
				c.schedulePromotion(ctx, key, v, i)
			}
			return v, nil
		}
	}
	return nil, nil
}

func (c *Composite) schedulePromotion(ctx context.Context, key string, value []byte, hitLevel int) {
	meta, err := c.backends[hitLevel].GetMetadata(ctx, key)
	if err != nil || meta == nil || meta.TTL <= 0 {
		return
	}
	job := promotionJob{key: key, value: value, ttl: meta.TTL, upTo: hitLevel}
	select {
	case c.promoteCh <- job:
	default:
		c.logger.Debug("promotion queue full, dropping promotion", slog.String("key", key))
	}
}

func (c *Composite) promotionWorker() {
	for {
		select {
		case <-c.done:
			return
		case job := <-c.promoteCh:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			for i := 0; i < job.upTo; i++ {
				if err := c.backends[i].Set(ctx, job.key, job.value, job.ttl); err != nil {
					c.logger.Debug("promotion write failed, ignoring",
						slog.String("backend", c.backends[i].Name()), slog.String("key", job.key), slog.Any("err", err))
				}
			}
			cancel()
		}
	}
}

// Exists mirrors Get's fallback scan without returning a value.
func (c *Composite) Exists(ctx context.Context, key string) (bool, error) {
	for _, b := range c.backends {
		ok, err := b.Exists(ctx, key)
		if err != nil {
			c.logger.Warn("cache backend exists fault, falling through",
				slog.String("backend", b.Name()), slog.String("key", key), slog.Any("err", err))
			continue
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// GetMetadata mirrors Get's fallback scan, returning the metadata of the
// first backend that has the key.
func (c *Composite) GetMetadata(ctx context.Context, key string) (*cache.Metadata, error) {
	for _, b := range c.backends {
		m, err := b.GetMetadata(ctx, key)
		if err != nil {
			c.logger.Warn("cache backend metadata fault, falling through",
				slog.String("backend", b.Name()), slog.String("key", key), slog.Any("err", err))
			continue
		}
		if m != nil {
			return m, nil
		}
	}
	return nil, nil
}

// Set dispatches to every backend in parallel and awaits all. It reports
// success if at least one backend succeeded (availability over strict
// coherence — see DESIGN.md); it fails only when every backend failed.
func (c *Composite) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	errs := c.fanOut(func(b cache.Backend) error {
		return b.Set(ctx, key, value, ttl)
	})
	return c.fold(errs, "set")
}

// Clear dispatches to every backend in parallel; succeeds if any backend
// succeeded.
func (c *Composite) Clear(ctx context.Context) error {
	errs := c.fanOut(func(b cache.Backend) error {
		return b.Clear(ctx)
	})
	return c.fold(errs, "clear")
}

// Del dispatches to every backend in parallel; individual failures are
// logged and swallowed, mirroring every backend's "absent key is a no-op".
func (c *Composite) Del(ctx context.Context, key string) error {
	errs := c.fanOut(func(b cache.Backend) error {
		return b.Del(ctx, key)
	})
	for i, err := range errs {
		if err != nil {
			c.logger.Warn("cache backend delete fault, ignoring",
				slog.String("backend", c.backends[i].Name()), slog.String("key", key), slog.Any("err", err))
		}
	}
	return nil
}

// Close closes every backend and stops the promotion worker, if any.
func (c *Composite) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	errs := c.fanOut(func(b cache.Backend) error {
		return b.Close()
	})
	return c.fold(errs, "close")
}

func (c *Composite) fanOut(op func(cache.Backend) error) []error {
	errs := make([]error, len(c.backends))
	var wg sync.WaitGroup
	wg.Add(len(c.backends))
	for i, b := range c.backends {
		go func(i int, b cache.Backend) {
			defer wg.Done()
			errs[i] = op(b)
		}(i, b)
	}
	wg.Wait()
	return errs
}

func (c *Composite) fold(errs []error, op string) error {
	succeeded := 0
	var joined error
	for i, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		c.logger.Warn("cache backend write fault",
			slog.String("backend", c.backends[i].Name()), slog.String("op", op), slog.Any("err", err))
		joined = errors.Join(joined, err)
	}
	if succeeded > 0 {
		if joined != nil {
			c.logger.Warn("cache write partially failed, reporting success", slog.String("op", op))
		}
		return nil
	}
	return joined
}

var _ cache.Backend = (*Composite)(nil)
