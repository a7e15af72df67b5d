package infra

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hexhub/platform/internal/domain"
	"github.com/hexhub/platform/internal/guard"
)

// EventWriter is an outbound destination of the relay.
type EventWriter interface {
	Name() string
	Write(ctx context.Context, recs []*domain.EventRecord) error
}

// EventRelay hands posted events to slow writers off the request path. Publish
// never blocks: when the buffer is full the event is dropped and counted.
type EventRelay struct {
	ch        chan *domain.EventRecord
	writers   []EventWriter
	breaker   *guard.CircuitBreaker
	logger    *slog.Logger
	batchSize int
	timeout   time.Duration
	dropped   atomic.Uint64
}

// NewEventRelay creates a relay buffering up to buffer events.
func NewEventRelay(buffer int, breaker *guard.CircuitBreaker, logger *slog.Logger, writers ...EventWriter) *EventRelay {
	return &EventRelay{
		ch:        make(chan *domain.EventRecord, buffer),
		writers:   writers,
		breaker:   breaker,
		logger:    logger,
		batchSize: 100,
		timeout:   5 * time.Second,
	}
}

// Publish queues rec for the writers.
func (r *EventRelay) Publish(rec *domain.EventRecord) {
	select {
	case r.ch <- rec:
	default:
		if n := r.dropped.Add(1); n == 1 || n%100 == 0 {
			r.logger.Warn("event relay buffer full, dropping", "game", rec.Game(), "seq", rec.Seq(), "dropped", n)
		}
	}
}

// Dropped returns the number of events discarded because the buffer was full
// or a writer's circuit was open.
func (r *EventRelay) Dropped() uint64 { return r.dropped.Load() }

// Run delivers batches until ctx ends, then flushes what is still buffered.
func (r *EventRelay) Run(ctx context.Context) error {
	r.logger.Info("event relay started", "writers", len(r.writers), "buffer", cap(r.ch))
	for {
		select {
		case <-ctx.Done():
			r.drain()
			r.logger.Info("event relay stopped", "dropped", r.Dropped())
			return nil
		case rec := <-r.ch:
			batch := r.collect(rec)
			r.flush(ctx, batch)
		}
	}
}

// collect gathers first plus whatever is buffered, up to batchSize.
func (r *EventRelay) collect(first *domain.EventRecord) []*domain.EventRecord {
	batch := []*domain.EventRecord{first}
	for len(batch) < r.batchSize {
		select {
		case rec := <-r.ch:
			batch = append(batch, rec)
		default:
			return batch
		}
	}
	return batch
}

func (r *EventRelay) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	for {
		select {
		case rec := <-r.ch:
			r.flush(ctx, r.collect(rec))
		default:
			return
		}
	}
}

func (r *EventRelay) flush(ctx context.Context, batch []*domain.EventRecord) {
	for _, w := range r.writers {
		if res := r.breaker.Check(ctx, w.Name()); !res.Allowed {
			r.dropped.Add(uint64(len(batch)))
			r.logger.Debug("event writer skipped", "writer", w.Name(), "reason", res.Reason)
			continue
		}
		wctx, cancel := context.WithTimeout(ctx, r.timeout)
		err := w.Write(wctx, batch)
		cancel()
		if err != nil {
			r.breaker.RecordFailure(w.Name())
			r.logger.Error("event write failed", "writer", w.Name(), "events", len(batch), "error", err)
			continue
		}
		r.breaker.RecordSuccess(w.Name())
	}
}
