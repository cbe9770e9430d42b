// Package factory is the Cache Factory (C4): it chooses the in-memory
// backend alone, or a [remote, in-memory] composite, from configuration —
// the only place in the service that decides this, so callers never branch
// on REMOTE_CACHE_URL's presence themselves.
package factory

import (
	"context"
	"log/slog"

	"github.com/Borislavv/bracket-bff/internal/cache"
	"github.com/Borislavv/bracket-bff/internal/cache/composite"
	"github.com/Borislavv/bracket-bff/internal/cache/memory"
	"github.com/Borislavv/bracket-bff/internal/cache/remote"
	"github.com/Borislavv/bracket-bff/internal/config"
)

// New builds the cache backend named by cfg: a remote-backed composite
// (remote preferred, in-memory as fallback) when cfg.Cache.RemoteURL is
// set, the in-memory store alone otherwise.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (cache.Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}

	mem := memory.New(ctx, logger, memory.WithSweepInterval(cfg.Cache.SweepInterval))

	if !cfg.Cache.UseRemote {
		return mem, nil
	}

	rdb, err := remote.Dial(ctx, cfg.Cache.RemoteURL, logger)
	if rdb == nil {
		return nil, err
	}
	if err != nil {
		logger.Warn("remote cache unreachable at startup, its operations will fail fast",
			slog.Any("err", err))
	}

	backends := []cache.Backend{rdb, mem}

	var opts []composite.Option
	if cfg.Cache.PromotionEnabled {
		opts = append(opts, composite.WithPromotion(true))
	}
	return composite.NewWithOptions(logger, backends, opts), nil
}
