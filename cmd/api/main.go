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

	"golang.org/x/sync/errgroup"

	"github.com/hexhub/platform/internal/app"
	"github.com/hexhub/platform/internal/broadcast"
	"github.com/hexhub/platform/internal/game"
	"github.com/hexhub/platform/internal/guard"
	"github.com/hexhub/platform/internal/handler"
	"github.com/hexhub/platform/internal/infra"
	"github.com/hexhub/platform/internal/service"
)

const (
	sweepInterval        = time.Minute
	idempotencyRetention = 10 * time.Minute
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := infra.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *infra.Config, logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Event writers behind the relay
	var writers []infra.EventWriter
	health := handler.HealthProbe{}

	if cfg.ArchiveEnabled {
		if err := infra.RunMigrations(cfg.ArchiveDatabaseURL, logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		pool, err := infra.NewPostgresPool(ctx, cfg.ArchiveDatabaseURL)
		if err != nil {
			return fmt.Errorf("connect archive: %w", err)
		}
		defer pool.Close()
		archive := infra.NewArchive(pool)
		writers = append(writers, archive)
		health.Archive = archive.HealthCheck
		logger.Info("event archive enabled")
	}

	if cfg.KafkaEnabled {
		mirror := infra.NewKafkaMirror(cfg.Brokers(), cfg.KafkaTopic, logger)
		defer mirror.Close()
		writers = append(writers, mirror)
		logger.Info("kafka mirror enabled", "topic", cfg.KafkaTopic)
	}

	// Broadcaster and sinks
	broadcaster := broadcast.New(broadcast.Options{
		AckTimeout:   cfg.AckTimeout,
		WriteTimeout: cfg.WSWriteTimeout,
	}, logger)

	sinks := service.Fanout{service.NewBroadcastSink(broadcaster, logger)}
	var relay *infra.EventRelay
	if len(writers) > 0 {
		relay = infra.NewEventRelay(cfg.RelayBuffer, guard.NewCircuitBreaker(5, 30*time.Second), logger, writers...)
		sinks = append(sinks, relay)
		health.Dropped = relay.Dropped
	}

	registry := game.NewRegistry(game.WithPublisher(sinks))
	svc := service.NewGameService(registry, sinks, service.Options{
		Defaults:       cfg.GameDefaults(),
		MonitorTimeout: cfg.MonitorTimeout,
	}, logger)

	// Guards
	createLimiter := guard.NewRateLimiter(cfg.CreateGameRate, time.Minute)
	idem := guard.NewIdempotencyGuard(idempotencyRetention)

	r := app.NewRouter(app.RouterDeps{
		Service:        svc,
		Broadcaster:    broadcaster,
		Logger:         logger,
		CORSOrigins:    cfg.CORSOrigins(),
		WSWriteTimeout: cfg.WSWriteTimeout,
		CreateLimiter:  createLimiter,
		Idempotency:    idem,
		Health:         health,
	})

	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	srv := app.NewServer(addr, r, cfg.MonitorTimeout)

	// The relay outlives the HTTP server so events posted while draining
	// requests are still written.
	relayCtx, stopRelay := context.WithCancel(context.Background())
	defer stopRelay()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("api server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if relay != nil {
		g.Go(func() error { return relay.Run(relayCtx) })
	}

	g.Go(func() error {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				createLimiter.Sweep()
				idem.Sweep()
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("graceful shutdown failed: %w", err))
		}
		if err := broadcaster.Close(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("close broadcaster: %w", err))
		}
		stopRelay()
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped gracefully")
	return nil
}
