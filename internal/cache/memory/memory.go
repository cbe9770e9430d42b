// Package memory implements the in-process Cache Entry Store (C1): a
// sharded, xxh3-fingerprinted map with expiry checked against the cached
// wall clock (internal/shared/cachedtime, 10 ms resolution) and a periodic
// sweep, adapted from this lineage's sharded cache map with the
// LRU/admission-control machinery trimmed out — this store has no memory
// ceiling to police, just TTL expiry.
package memory

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Borislavv/bracket-bff/internal/cache"
	"github.com/Borislavv/bracket-bff/internal/shared/cachedtime"
)

const defaultShardCount = 32
const defaultSweepInterval = 300 * time.Second

// Option configures a Store at construction time.
type Option func(*Store)

// WithShardCount overrides the default shard count (rounded up to a power
// of two, minimum 1).
func WithShardCount(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.shardMask = uint64(nextPow2(n) - 1)
		}
	}
}

// WithSweepInterval overrides the default 300s background sweep interval.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Store) { s.sweepInterval = d }
}

// Store is the in-memory Backend (C1).
type Store struct {
	shards        []*shard
	shardMask     uint64
	sweepInterval time.Duration
	logger        *slog.Logger

	cancel context.CancelFunc
	closed atomic.Bool
}

// New constructs a Store and starts its background sweep goroutine, bound
// to ctx — cancelling ctx (or calling Close) stops the sweep.
func New(ctx context.Context, logger *slog.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	sctx, cancel := context.WithCancel(ctx)
	s := &Store{
		shards:        make([]*shard, defaultShardCount),
		shardMask:     uint64(defaultShardCount - 1),
		sweepInterval: defaultSweepInterval,
		logger:        logger,
		cancel:        cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	n := int(s.shardMask) + 1
	s.shards = make([]*shard, n)
	for i := range s.shards {
		s.shards[i] = newShard()
	}
	cachedtime.CloseByCtx(sctx)
	go s.sweepLoop(sctx)
	return s
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func (s *Store) shardFor(fp fingerprint) *shard {
	return s.shards[fp.v&s.shardMask]
}

func (s *Store) Name() string { return "memory" }

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	fp := fingerprintOf(key)
	e, ok := s.shardFor(fp).get(fp)
	if !ok {
		return nil, nil
	}
	if isExpired(e) {
		s.shardFor(fp).del(fp)
		return nil, nil
	}
	return e.Value, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return cache.ErrInvalidTTL
	}
	now := cachedtime.Now()
	fp := fingerprintOf(key)
	s.shardFor(fp).set(fp, cache.Entry{
		Key:       key,
		Value:     value,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	})
	return nil
}

func (s *Store) Del(_ context.Context, key string) error {
	fp := fingerprintOf(key)
	s.shardFor(fp).del(fp)
	return nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	v, err := s.Get(ctx, key)
	return v != nil, err
}

func (s *Store) GetMetadata(_ context.Context, key string) (*cache.Metadata, error) {
	fp := fingerprintOf(key)
	sh := s.shardFor(fp)
	e, ok := sh.get(fp)
	if !ok {
		return nil, nil
	}
	if isExpired(e) {
		sh.del(fp)
		return nil, nil
	}
	return &cache.Metadata{
		Key:       key,
		TTL:       e.ExpiresAt.Sub(cachedtime.Now()),
		CreatedAt: e.CreatedAt,
		ExpiresAt: e.ExpiresAt,
	}, nil
}

func (s *Store) Clear(_ context.Context) error {
	for _, sh := range s.shards {
		sh.clear()
	}
	return nil
}

// Close stops the sweep goroutine and empties every shard.
func (s *Store) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.cancel()
		for _, sh := range s.shards {
			sh.clear()
		}
	}
	return nil
}

// Len returns the total number of live (not necessarily unexpired) entries
// across all shards, for telemetry.
func (s *Store) Len() int {
	total := 0
	for _, sh := range s.shards {
		total += sh.len()
	}
	return total
}

func isExpired(e cache.Entry) bool {
	return !cachedtime.Now().Before(e.ExpiresAt)
}

func (s *Store) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce()
		}
	}
}

func (s *Store) sweepOnce() {
	removed := 0
	for _, sh := range s.shards {
		removed += sh.sweepExpired(isExpired)
	}
	if removed > 0 {
		s.logger.Debug("memory cache sweep removed expired entries",
			slog.Int("removed", removed), slog.Int("shards", len(s.shards)))
	}
}

var _ cache.Backend = (*Store)(nil)
