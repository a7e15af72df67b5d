package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hexhub/platform/internal/infra"
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
		logger.Error("event tail failed", "error", err)
		os.Exit(1)
	}
}

// run logs every event mirrored to the Kafka topic until interrupted.
func run(cfg *infra.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	brokers := cfg.Brokers()
	if len(brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is empty")
	}

	tail := infra.NewKafkaTail(brokers, cfg.KafkaTopic, cfg.KafkaGroupID, logger)
	defer tail.Close()
	logger.Info("event-tail starting", "topic", cfg.KafkaTopic, "group", cfg.KafkaGroupID)

	perGame := make(map[string]int)
	for {
		ev, err := tail.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				logger.Info("event-tail shutting down", "games", len(perGame))
				return nil
			}
			return fmt.Errorf("read event: %w", err)
		}
		perGame[ev.Game]++
		logger.Info("game event",
			"game", ev.Game,
			"kind", ev.Kind,
			"partition", ev.Partition,
			"offset", ev.Offset,
			"count", perGame[ev.Game],
		)
		logger.Debug("game event payload", "game", ev.Game, "payload", string(ev.Value))
	}
}
