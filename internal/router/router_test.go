package router

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Borislavv/bracket-bff/internal/cache"
	"github.com/Borislavv/bracket-bff/internal/domain"
	"github.com/Borislavv/bracket-bff/internal/upstream"
)

// fakeCache is a minimal in-memory cache.Backend stand-in, guarded by a
// mutex, with no expiry sweep — router tests only need Get/Set/Del/GetMetadata
// semantics, not eviction.
type fakeCache struct {
	mu      sync.Mutex
	values  map[string][]byte
	expires map[string]time.Time
	ttls    map[string]time.Duration
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: map[string][]byte{}, expires: map[string]time.Time{}, ttls: map[string]time.Duration{}}
}

func (f *fakeCache) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	if !ok {
		return nil, nil
	}
	return v, nil
}

func (f *fakeCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	f.ttls[key] = ttl
	f.expires[key] = time.Now().Add(ttl)
	return nil
}

func (f *fakeCache) Del(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.values, key)
	delete(f.ttls, key)
	delete(f.expires, key)
	return nil
}

func (f *fakeCache) Exists(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.values[key]
	return ok, nil
}

func (f *fakeCache) GetMetadata(_ context.Context, key string) (*cache.Metadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.values[key]; !ok {
		return nil, nil
	}
	return &cache.Metadata{Key: key, TTL: f.ttls[key], ExpiresAt: f.expires[key]}, nil
}

func (f *fakeCache) Clear(_ context.Context) error { return nil }
func (f *fakeCache) Close() error                  { return nil }
func (f *fakeCache) Name() string                  { return "fake" }

var _ cache.Backend = (*fakeCache)(nil)

// fakeFetcher counts invocations and blocks on a gate, so tests can force
// concurrent Read calls to overlap while the fetch is in flight.
type fakeFetcher struct {
	calls  int32
	gate   chan struct{}
	result *domain.Tournament
	err    error
}

func (f *fakeFetcher) Fetch(ctx context.Context, slug string, onProgress upstream.ProgressFunc) (*domain.Tournament, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func sampleTournament(slug string) *domain.Tournament {
	return &domain.Tournament{Slug: slug, Events: []domain.Event{{
		CurrentMatches: []domain.Match{{Status: domain.MatchPending}},
	}}}
}

func TestRead_MissFetchesAndCachesWriteThrough(t *testing.T) {
	c := newFakeCache()
	f := &fakeFetcher{result: sampleTournament("genesis")}
	r := New(c, f, nil)

	resp, err := r.Read(context.Background(), "genesis", false)
	require.NoError(t, err)
	require.False(t, resp.Cached)
	require.Equal(t, int32(1), atomic.LoadInt32(&f.calls))

	ok, _ := c.Exists(context.Background(), "tournament:genesis")
	require.True(t, ok)
}

func TestRead_HitServesFromCacheWithoutFetching(t *testing.T) {
	c := newFakeCache()
	f := &fakeFetcher{result: sampleTournament("genesis")}
	r := New(c, f, nil)

	_, err := r.Read(context.Background(), "genesis", false)
	require.NoError(t, err)

	resp, err := r.Read(context.Background(), "genesis", false)
	require.NoError(t, err)
	require.True(t, resp.Cached)
	require.Equal(t, int32(1), atomic.LoadInt32(&f.calls))
}

func TestRead_ForcedRefreshBypassesCacheAndDeletes(t *testing.T) {
	c := newFakeCache()
	f := &fakeFetcher{result: sampleTournament("genesis")}
	r := New(c, f, nil)

	_, err := r.Read(context.Background(), "genesis", false)
	require.NoError(t, err)
	require.Equal(t, int32(1), atomic.LoadInt32(&f.calls))

	resp, err := r.Read(context.Background(), "genesis", true)
	require.NoError(t, err)
	require.False(t, resp.Cached)
	require.Equal(t, int32(2), atomic.LoadInt32(&f.calls))
}

func TestRead_ConcurrentMissesCollapseIntoOneFetch(t *testing.T) {
	c := newFakeCache()
	f := &fakeFetcher{result: sampleTournament("genesis"), gate: make(chan struct{})}
	r := New(c, f, nil)

	var wg sync.WaitGroup
	results := make([]*domain.TournamentResponse, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := r.Read(context.Background(), "genesis", false)
			require.NoError(t, err)
			results[i] = resp
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(f.gate)
	wg.Wait()

	require.Equal(t, int32(1), atomic.LoadInt32(&f.calls))
	for _, resp := range results {
		require.False(t, resp.Cached)
	}
}

func TestRefresh_AlwaysDeletesAndRefetches(t *testing.T) {
	c := newFakeCache()
	f := &fakeFetcher{result: sampleTournament("genesis")}
	r := New(c, f, nil)

	_, err := r.Read(context.Background(), "genesis", false)
	require.NoError(t, err)

	resp, err := r.Refresh(context.Background(), "genesis")
	require.NoError(t, err)
	require.False(t, resp.Cached)
	require.Equal(t, int32(2), atomic.LoadInt32(&f.calls))
}

func TestRead_UpstreamErrorPropagatesAndIsNotCached(t *testing.T) {
	c := newFakeCache()
	f := &fakeFetcher{err: errors.New("boom")}
	r := New(c, f, nil)

	_, err := r.Read(context.Background(), "genesis", false)
	require.Error(t, err)

	ok, _ := c.Exists(context.Background(), "tournament:genesis")
	require.False(t, ok)
}

func TestStatus_ReportsUncachedWhenAbsent(t *testing.T) {
	c := newFakeCache()
	f := &fakeFetcher{}
	r := New(c, f, nil)

	resp, err := r.Status(context.Background(), "genesis")
	require.NoError(t, err)
	require.False(t, resp.Cached)
	require.Nil(t, resp.Metadata)
}

func TestStatus_ReportsCachedWithMetadataAfterFetch(t *testing.T) {
	c := newFakeCache()
	f := &fakeFetcher{result: sampleTournament("genesis")}
	r := New(c, f, nil)

	_, err := r.Read(context.Background(), "genesis", false)
	require.NoError(t, err)

	resp, err := r.Status(context.Background(), "genesis")
	require.NoError(t, err)
	require.True(t, resp.Cached)
	require.NotNil(t, resp.Metadata)
	require.NotNil(t, resp.Metadata.TTL)
}

func TestStatus_CacheFaultReportsUncached(t *testing.T) {
	c := newFakeCache()
	_ = c
	f := &fakeFetcher{}
	r := New(&faultingCache{}, f, nil)

	resp, err := r.Status(context.Background(), "genesis")
	require.NoError(t, err)
	require.False(t, resp.Cached)
}

// faultingCache always reports a FaultError from GetMetadata, simulating a
// disconnected remote backend.
type faultingCache struct{ fakeCache }

func (f *faultingCache) GetMetadata(_ context.Context, key string) (*cache.Metadata, error) {
	return nil, &cache.FaultError{Backend: "fake", Op: "GetMetadata", Err: errors.New("disconnected")}
}

var _ cache.Backend = (*faultingCache)(nil)

func TestRead_DecodesCachedTournamentData(t *testing.T) {
	c := newFakeCache()
	f := &fakeFetcher{result: sampleTournament("genesis")}
	r := New(c, f, nil)

	_, err := r.Read(context.Background(), "genesis", false)
	require.NoError(t, err)

	resp, err := r.Read(context.Background(), "genesis", false)
	require.NoError(t, err)
	require.Equal(t, "genesis", resp.Data.Slug)
}

func TestRead_RespectsCallerCancellationWithoutAbortingLeader(t *testing.T) {
	c := newFakeCache()
	f := &fakeFetcher{result: sampleTournament("genesis"), gate: make(chan struct{})}
	r := New(c, f, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := r.Read(ctx, "genesis", false)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()
	err := <-done
	require.Error(t, err)

	close(f.gate)
	require.Eventually(t, func() bool {
		ok, _ := c.Exists(context.Background(), "tournament:genesis")
		return ok
	}, time.Second, 5*time.Millisecond)
}
