package memory

import (
	"sync"
	"unsafe"

	"github.com/zeebo/xxh3"

	"github.com/Borislavv/bracket-bff/internal/cache"
)

var hasherPool = sync.Pool{New: func() any { return xxh3.New() }}

// fingerprint hashes a key into a 64-bit shard-selector plus a 128-bit
// verifier, so a shard bucket can detect a hash collision between two
// distinct keys instead of silently returning the wrong value.
type fingerprint struct {
	v  uint64
	hi uint64
	lo uint64
}

func fingerprintOf(key string) fingerprint {
	h := hasherPool.Get().(*xxh3.Hasher)
	h.Reset()
	_, _ = h.Write(unsafe.Slice(unsafe.StringData(key), len(key)))
	u128 := h.Sum128()
	fp := fingerprint{v: h.Sum64(), hi: u128.Hi, lo: u128.Lo}
	hasherPool.Put(h)
	return fp
}

func (f fingerprint) sameAs(o fingerprint) bool {
	return f.v == o.v && f.hi == o.hi && f.lo == o.lo
}

// shard is one independent segment of the sharded map: its own mutex, its
// own bucket. Spreading keys across shards keeps lock contention low without
// needing the lineage's LRU/admission-control machinery, which this cache
// has no use for (no memory ceiling to police).
type shard struct {
	mu    sync.RWMutex
	items map[uint64]*entry
}

type entry struct {
	fp  fingerprint
	val cache.Entry
}

func newShard() *shard {
	return &shard{items: make(map[uint64]*entry)}
}

func (s *shard) get(fp fingerprint) (cache.Entry, bool) {
	s.mu.RLock()
	e, ok := s.items[fp.v]
	s.mu.RUnlock()
	if !ok || !e.fp.sameAs(fp) {
		return cache.Entry{}, false
	}
	return e.val, true
}

func (s *shard) set(fp fingerprint, val cache.Entry) {
	s.mu.Lock()
	s.items[fp.v] = &entry{fp: fp, val: val}
	s.mu.Unlock()
}

func (s *shard) del(fp fingerprint) {
	s.mu.Lock()
	delete(s.items, fp.v)
	s.mu.Unlock()
}

func (s *shard) clear() {
	s.mu.Lock()
	s.items = make(map[uint64]*entry)
	s.mu.Unlock()
}

// sweepExpired removes every entry for which isExpired returns true,
// returning the count removed. It holds the shard lock only for this
// bounded scan.
func (s *shard) sweepExpired(isExpired func(cache.Entry) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for k, e := range s.items {
		if isExpired(e.val) {
			delete(s.items, k)
			removed++
		}
	}
	return removed
}

func (s *shard) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
