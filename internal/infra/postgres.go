package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hexhub/platform/internal/domain"
)

// NewPostgresPool creates a pgx connection pool for the event archive.
func NewPostgresPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	poolCfg.MaxConns = 8
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// Archive appends posted events to the game_events table. Nothing is read
// back into the running process.
type Archive struct {
	pool *pgxpool.Pool
}

func NewArchive(pool *pgxpool.Pool) *Archive {
	return &Archive{pool: pool}
}

func (a *Archive) Name() string { return "archive" }

// Write inserts one batch. Rows already archived are skipped.
func (a *Archive) Write(ctx context.Context, recs []*domain.EventRecord) error {
	batch := &pgx.Batch{}
	for _, rec := range recs {
		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal event %d: %w", rec.Seq(), err)
		}
		batch.Queue(`
			INSERT INTO game_events (id, game_key, seq, kind, player, payload, occurred_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING`,
			rec.ID(), rec.Game(), int64(rec.Seq()), string(rec.Kind()), rec.Player(), payload, rec.At())
	}
	if err := a.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("archive events: %w", err)
	}
	return nil
}

// HealthCheck pings the database and returns an error if unreachable.
func (a *Archive) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return a.pool.Ping(ctx)
}
