package service

import (
	"log/slog"

	"github.com/hexhub/platform/internal/broadcast"
	"github.com/hexhub/platform/internal/domain"
)

// Sink receives every record posted to any game. Publish is called in
// sequence order per game and must not block.
type Sink interface {
	Publish(rec *domain.EventRecord)
}

// DeletionSink is implemented by sinks that keep per-game state.
type DeletionSink interface {
	GameDeleted(key string)
}

// Fanout forwards records to every sink in order.
type Fanout []Sink

func (f Fanout) Publish(rec *domain.EventRecord) {
	for _, s := range f {
		s.Publish(rec)
	}
}

func (f Fanout) GameDeleted(key string) {
	for _, s := range f {
		if d, ok := s.(DeletionSink); ok {
			d.GameDeleted(key)
		}
	}
}

// BroadcastSink posts records to the persistent-connection broadcaster.
type BroadcastSink struct {
	b      *broadcast.Broadcaster
	logger *slog.Logger
}

func NewBroadcastSink(b *broadcast.Broadcaster, logger *slog.Logger) *BroadcastSink {
	return &BroadcastSink{b: b, logger: logger}
}

func (s *BroadcastSink) Publish(rec *domain.EventRecord) {
	if err := s.b.Post(rec.Game(), rec); err != nil {
		s.logger.Warn("broadcast post failed", "game", rec.Game(), "seq", rec.Seq(), "error", err)
	}
}

func (s *BroadcastSink) GameDeleted(key string) {
	if err := s.b.Detach(key); err != nil {
		s.logger.Warn("broadcast detach failed", "game", key, "error", err)
	}
}
