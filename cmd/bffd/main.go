package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Borislavv/bracket-bff/internal/cache/factory"
	"github.com/Borislavv/bracket-bff/internal/config"
	"github.com/Borislavv/bracket-bff/internal/httpapi"
	"github.com/Borislavv/bracket-bff/internal/router"
	"github.com/Borislavv/bracket-bff/internal/telemetry"
	"github.com/Borislavv/bracket-bff/internal/upstream"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := telemetry.NewSlogLogger(telemetry.Stderr, cfg.LogLevel)
	zlog := telemetry.NewZerologLogger(telemetry.Stderr, cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	backend, err := factory.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build cache backend: %w", err)
	}
	defer backend.Close()

	upstreamClient := upstream.New(ctx, upstream.Config{
		Endpoint:       cfg.Upstream.Endpoint,
		Token:          cfg.Upstream.Token,
		MinInterval:    cfg.Upstream.MinInterval,
		MaxRetries:     cfg.Upstream.MaxRetries,
		RetryBaseDelay: cfg.Upstream.RetryBaseDelay,
		PageSize:       cfg.Upstream.PageSize,
		PageLimit:      cfg.Upstream.PageLimit,
	}, zlog)

	svc := router.New(backend, upstreamClient, logger)
	handler := httpapi.New(svc, cfg.Server.Environment)

	wrapped := httpapi.Chain(handler.Routes(),
		httpapi.CORS(cfg.Server.AllowedOrigin),
		httpapi.AccessLog(zlog),
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.ListenPort),
		Handler:           wrapped,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.Int("port", cfg.Server.ListenPort), slog.String("environment", cfg.Server.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}
