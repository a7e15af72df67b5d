package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/hexhub/platform/internal/domain"
)

// KafkaMirror writes posted events to a topic, keyed by game so one game's
// events stay on one partition in order.
type KafkaMirror struct {
	writer *kafka.Writer
	topic  string
	logger *slog.Logger
}

// NewKafkaMirror creates the producer side of the mirror.
func NewKafkaMirror(brokers []string, topic string, logger *slog.Logger) *KafkaMirror {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	logger.Info("kafka mirror initialized", "brokers", brokers, "topic", topic)
	return &KafkaMirror{writer: w, topic: topic, logger: logger}
}

func (m *KafkaMirror) Name() string { return "kafka" }

// Write publishes one batch.
func (m *KafkaMirror) Write(ctx context.Context, recs []*domain.EventRecord) error {
	msgs, err := kafkaMessages(recs)
	if err != nil {
		return err
	}
	if err := m.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

func kafkaMessages(recs []*domain.EventRecord) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(recs))
	for _, rec := range recs {
		value, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("marshal event %d: %w", rec.Seq(), err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(domain.FoldKey(rec.Game())),
			Value: value,
			Time:  rec.At(),
			Headers: []kafka.Header{
				{Key: "kind", Value: []byte(rec.Kind())},
			},
		})
	}
	return msgs, nil
}

// Close flushes and shuts down the writer.
func (m *KafkaMirror) Close() error {
	return m.writer.Close()
}

// KafkaTail reads the mirrored topic as a consumer group member.
type KafkaTail struct {
	reader *kafka.Reader
	logger *slog.Logger
}

// NewKafkaTail creates a consumer for topic in groupID.
func NewKafkaTail(brokers []string, topic, groupID string, logger *slog.Logger) *KafkaTail {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	return &KafkaTail{reader: r, logger: logger}
}

// TailedEvent is one mirrored event as read back from the topic.
type TailedEvent struct {
	Partition int
	Offset    int64
	Game      string
	Kind      string
	Value     json.RawMessage
}

// Next blocks until the next message arrives or ctx ends.
func (t *KafkaTail) Next(ctx context.Context) (TailedEvent, error) {
	msg, err := t.reader.ReadMessage(ctx)
	if err != nil {
		return TailedEvent{}, err
	}
	ev := TailedEvent{
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Game:      string(msg.Key),
		Value:     msg.Value,
	}
	for _, h := range msg.Headers {
		if h.Key == "kind" {
			ev.Kind = string(h.Value)
		}
	}
	return ev, nil
}

// Close shuts down the reader.
func (t *KafkaTail) Close() error {
	return t.reader.Close()
}
