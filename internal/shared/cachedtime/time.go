// Package cachedtime exposes a cheap cached wall clock for hot paths (a
// cache Get/Set on every request) that would otherwise call time.Now() far
// more often than any caller needs. A single background ticker refreshes an
// atomic timestamp that every reader loads without a syscall.
package cachedtime

import (
	"context"
	"sync/atomic"
	"time"
)

const cacheTimeEach = 10 * time.Millisecond

var (
	nowUnix atomic.Int64
	closed  atomic.Bool
	doneCh  = make(chan struct{})
)

func init() {
	nowUnix.Store(time.Now().UnixNano())
	ticker := time.NewTicker(cacheTimeEach)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case tt, ok := <-ticker.C:
				if !ok {
					// never, but for robust behavior if the go Ticker will be changed in further versions
					// don't cache nil value of time.Time never
					return
				}
				nowUnix.Store(tt.UnixNano())
			case <-doneCh:
				return
			}
		}
	}()
}

func Now() time.Time {
	if closed.Load() {
		return time.Now()
	}
	return time.Unix(0, nowUnix.Load())
}

func UnixNano() int64 {
	if closed.Load() {
		return time.Now().UnixNano()
	}
	return nowUnix.Load()
}

func Since(t time.Time) time.Duration {
	return Now().Sub(t)
}

// Unix returns the cached wall clock as Unix seconds — the form cache
// metadata and response timestamps (CachedAt) are stamped in, cheaper than
// materializing a time.Time just to call .Unix() on it.
func Unix() int64 {
	if closed.Load() {
		return time.Now().Unix()
	}
	return nowUnix.Load() / int64(time.Second)
}

func CloseByCtx(ctx context.Context) {
	go func() {
		<-ctx.Done()
		if closed.CompareAndSwap(false, true) {
			// we are only one how closing the channel
			close(doneCh)
		}
	}()
}
