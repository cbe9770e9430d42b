// Package router is the Request Router (C7): it binds the cache-backend
// contract, the TTL policy, and the upstream client together behind
// read/refresh/status operations, collapsing concurrent misses for the same
// key into a single upstream fetch.
package router

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/Borislavv/bracket-bff/internal/cache"
	"github.com/Borislavv/bracket-bff/internal/cache/keys"
	"github.com/Borislavv/bracket-bff/internal/domain"
	"github.com/Borislavv/bracket-bff/internal/shared/cachedtime"
	"github.com/Borislavv/bracket-bff/internal/ttl"
	"github.com/Borislavv/bracket-bff/internal/upstream"
)

// Fetcher is the subset of *upstream.Client the router depends on, so tests
// can substitute a stub without standing up an executor/queue.
type Fetcher interface {
	Fetch(ctx context.Context, slug string, onProgress upstream.ProgressFunc) (*domain.Tournament, error)
}

// inflight is one key's shared completion handle: every waiter blocks on
// done and reads result/err only after it closes.
type inflight struct {
	done   chan struct{}
	result *domain.TournamentResponse
	err    error
}

// Router implements C7 over a cache.Backend and a Fetcher.
type Router struct {
	cache    cache.Backend
	upstream Fetcher
	logger   *slog.Logger

	mu       sync.Mutex
	inflight map[string]*inflight
}

// New builds a Router. logger may be nil, in which case a discarding logger
// is used — convenient for tests that don't care about log output.
func New(backend cache.Backend, upstreamClient Fetcher, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(discardWriter{}, nil))
	}
	return &Router{
		cache:    backend,
		upstream: upstreamClient,
		logger:   logger,
		inflight: make(map[string]*inflight),
	}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// Read serves slug from cache unless refresh is true or the cache misses,
// in which case it joins (or starts) a single-flight fetch.
func (r *Router) Read(ctx context.Context, slug string, refresh bool) (*domain.TournamentResponse, error) {
	key := keys.Tournament(slug)

	if !refresh {
		if resp, ok := r.readCached(ctx, key); ok {
			return resp, nil
		}
	}

	return r.joinFetch(ctx, key, slug, refresh)
}

// Refresh always deletes the cache entry and performs a fresh fetch.
func (r *Router) Refresh(ctx context.Context, slug string) (*domain.TournamentResponse, error) {
	key := keys.Tournament(slug)
	return r.joinFetch(ctx, key, slug, true)
}

// Status reports cache presence and metadata without ever calling upstream.
func (r *Router) Status(ctx context.Context, slug string) (*domain.StatusResponse, error) {
	key := keys.Tournament(slug)

	meta, err := r.cache.GetMetadata(ctx, key)
	if err != nil {
		r.logger.Warn("cache fault on status lookup, reporting not cached", slog.String("slug", slug), slog.Any("err", err))
		return &domain.StatusResponse{Cached: false}, nil
	}
	if meta == nil {
		return &domain.StatusResponse{Cached: false}, nil
	}

	raw, err := r.cache.Get(ctx, key)
	if err != nil || raw == nil {
		return &domain.StatusResponse{Cached: false}, nil
	}

	var t domain.Tournament
	if err := json.Unmarshal(raw, &t); err != nil {
		r.logger.Warn("cached value failed to decode, reporting not cached", slog.String("slug", slug), slog.Any("err", err))
		return &domain.StatusResponse{Cached: false}, nil
	}

	m := metadataFromCacheEntry(&t, meta)
	return &domain.StatusResponse{Cached: true, Metadata: &m}, nil
}

// readCached returns a response built from a cache hit, and false on any
// miss or fault — faults are logged here and treated identically to a miss.
func (r *Router) readCached(ctx context.Context, key string) (*domain.TournamentResponse, bool) {
	raw, err := r.cache.Get(ctx, key)
	if err != nil {
		r.logger.Warn("cache fault on read, falling through to upstream", slog.String("key", key), slog.Any("err", err))
		return nil, false
	}
	if raw == nil {
		return nil, false
	}

	var t domain.Tournament
	if err := json.Unmarshal(raw, &t); err != nil {
		r.logger.Warn("cached value failed to decode, treating as a miss", slog.String("key", key), slog.Any("err", err))
		return nil, false
	}

	meta, err := r.cache.GetMetadata(ctx, key)
	if err != nil || meta == nil {
		return nil, false
	}

	m := metadataFromCacheEntry(&t, meta)
	return &domain.TournamentResponse{Data: &t, Cached: true, Metadata: m}, true
}

// joinFetch collapses concurrent misses for key into one upstream fetch. A
// forced refresh never waits on an existing entry; it starts its own fetch
// and installs it as the new in-flight entry immediately, so subsequent
// readers — forced or not — join the fresher one.
func (r *Router) joinFetch(ctx context.Context, key, slug string, refresh bool) (*domain.TournamentResponse, error) {
	r.mu.Lock()
	existing, ok := r.inflight[key]
	if ok && !refresh {
		r.mu.Unlock()
		return r.wait(ctx, existing)
	}

	entry := &inflight{done: make(chan struct{})}
	r.inflight[key] = entry
	r.mu.Unlock()

	go r.runFetch(key, slug, refresh, entry)

	return r.wait(ctx, entry)
}

func (r *Router) wait(ctx context.Context, entry *inflight) (*domain.TournamentResponse, error) {
	select {
	case <-entry.done:
		return entry.result, entry.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// runFetch is the single-flight leader. It always runs detached from the
// caller's context: a canceled caller must not cancel a fetch that other
// waiters (or the cache) still depend on.
func (r *Router) runFetch(key, slug string, refresh bool, entry *inflight) {
	ctx := context.Background()
	defer func() {
		close(entry.done)
		r.clearInflight(key, entry)
	}()

	if refresh {
		if err := r.cache.Del(ctx, key); err != nil {
			r.logger.Warn("cache fault deleting entry before forced refresh", slog.String("key", key), slog.Any("err", err))
		}
	}

	t, err := r.upstream.Fetch(ctx, slug, nil)
	if err != nil {
		entry.err = err
		return
	}

	now := cachedtime.Now()
	duration, counts, hasOngoing, hasRecent := ttl.Calculate(t, now)

	data, err := json.Marshal(t)
	if err != nil {
		entry.err = err
		return
	}
	if err := r.cache.Set(ctx, key, data, duration); err != nil {
		r.logger.Warn("cache fault writing fresh fetch, serving uncached", slog.String("key", key), slog.Any("err", err))
	}

	cachedAt := now.Unix()
	ttlSeconds := int64(duration.Seconds())
	entry.result = &domain.TournamentResponse{
		Data:   t,
		Cached: false,
		Metadata: domain.Metadata{
			CachedAt:          &cachedAt,
			TTL:               &ttlSeconds,
			HasOngoingMatches: hasOngoing,
			HasRecentMatches:  hasRecent,
			Counts:            counts,
		},
	}
}

// clearInflight removes key's map entry only if it still points at entry —
// a forced refresh started after this fetch began will have already
// replaced it, and that newer entry must not be clobbered.
func (r *Router) clearInflight(key string, entry *inflight) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inflight[key] == entry {
		delete(r.inflight, key)
	}
}

// metadataFromCacheEntry reports CachedAt as the entry's write time,
// cache.Metadata.CreatedAt, when the backend records one. The remote backend
// cannot populate CreatedAt (Redis doesn't expose original write time); for
// its entries CachedAt is ExpiresAt minus the remaining TTL, which is the
// time of this lookup rather than the time of the write.
func metadataFromCacheEntry(t *domain.Tournament, meta *cache.Metadata) domain.Metadata {
	_, counts, hasOngoing, hasRecent := ttl.Calculate(t, cachedtime.Now())
	cachedAt := meta.ExpiresAt.Add(-meta.TTL).Unix()
	if !meta.CreatedAt.IsZero() {
		cachedAt = meta.CreatedAt.Unix()
	}
	ttlSeconds := int64(meta.TTL.Seconds())
	return domain.Metadata{
		CachedAt:          &cachedAt,
		TTL:               &ttlSeconds,
		HasOngoingMatches: hasOngoing,
		HasRecentMatches:  hasRecent,
		Counts:            counts,
	}
}
