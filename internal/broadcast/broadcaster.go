// Package broadcast fans serialized game events out to persistent
// connections. Each subscriber has a private outbound queue seeded with the
// replay history, and its send loop waits for one acknowledgment per drained
// batch before sending more.
package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hexhub/platform/internal/domain"
)

var (
	// ErrAckTimeout ends a send loop whose peer did not acknowledge in time.
	ErrAckTimeout = errors.New("broadcast: ack timeout")
	// ErrBadAck ends a send loop whose peer replied with something other than an ack.
	ErrBadAck = errors.New("broadcast: malformed ack")
	// ErrClosed is returned by Post and Attach after Close.
	ErrClosed = errors.New("broadcast: closed")
)

// Conn is the transport a subscriber is attached to.
type Conn interface {
	// WriteMessage sends one text frame.
	WriteMessage(ctx context.Context, data []byte) error
	// ReadMessage blocks for the next inbound frame or until ctx ends.
	ReadMessage(ctx context.Context) ([]byte, error)
	Close() error
}

// Frame types on the wire.
const (
	FrameHello       = "Hello"
	FrameEvent       = "Event"
	FrameGameDeleted = "GameDeleted"
	FrameAck         = "Ack"
)

// Frame is the JSON envelope of every message on a stream.
type Frame struct {
	Type       string          `json:"type"`
	Game       string          `json:"game,omitempty"`
	Subscriber string          `json:"subscriber,omitempty"`
	Event      json.RawMessage `json:"event,omitempty"`
}

// Options tunes the send loop.
type Options struct {
	AckTimeout   time.Duration
	WriteTimeout time.Duration
}

type entry struct {
	game string // folded key
	data []byte
}

// Broadcaster owns the history buffer and the live subscriber set.
type Broadcaster struct {
	opts   Options
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	history []entry
	subs    map[uuid.UUID]*Subscriber
	closed  bool
}

// New creates a broadcaster. Zero option values default to a 60s ack timeout
// and a 10s write timeout.
func New(opts Options, logger *slog.Logger) *Broadcaster {
	if opts.AckTimeout <= 0 {
		opts.AckTimeout = 60 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Broadcaster{
		opts:   opts,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		subs:   make(map[uuid.UUID]*Subscriber),
	}
}

// Post serializes message under the Event envelope for gameKey, appends it to
// the history and queues it on every matching subscriber.
func (b *Broadcaster) Post(gameKey string, message any) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return b.post(Frame{Type: FrameEvent, Game: gameKey, Event: payload})
}

func (b *Broadcaster) post(f Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	folded := domain.FoldKey(f.Game)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	b.history = append(b.history, entry{game: folded, data: data})
	b.fanoutLocked(folded, data)
	return nil
}

// fanoutLocked queues data on every subscriber following game. b.mu must be
// held.
func (b *Broadcaster) fanoutLocked(game string, data []byte) {
	for _, s := range b.subs {
		if s.matches(game) {
			s.enqueue(data)
		}
	}
}

// Attach registers conn as subscriber id, seeds its queue with the matching
// history and starts its send loop. An empty game subscribes to every game.
// The returned Subscriber's Done channel closes when the loop ends.
func (b *Broadcaster) Attach(id uuid.UUID, conn Conn, game string) (*Subscriber, error) {
	s := &Subscriber{
		id:   id,
		game: domain.FoldKey(game),
		conn: conn,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	for _, e := range b.history {
		if s.matches(e.game) {
			s.queue = append(s.queue, e.data)
		}
	}
	b.subs[id] = s
	b.wg.Add(1)
	b.mu.Unlock()

	s.signal()
	go b.run(s)
	return s, nil
}

// Detach purges the history of a deleted game and sends a deletion notice to
// the live subscribers following it. The notice is not kept in the history, so
// a later game under the same key replays only its own events.
func (b *Broadcaster) Detach(gameKey string) error {
	data, err := json.Marshal(Frame{Type: FrameGameDeleted, Game: gameKey})
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	folded := domain.FoldKey(gameKey)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	kept := b.history[:0]
	for _, e := range b.history {
		if e.game != folded {
			kept = append(kept, e)
		}
	}
	clear(b.history[len(kept):])
	b.history = kept
	b.fanoutLocked(folded, data)
	return nil
}

// Subscribers returns the number of live send loops.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// HistoryLen returns the number of buffered frames.
func (b *Broadcaster) HistoryLen() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.history)
}

// Close stops every send loop, closes their connections and waits for the
// loops to exit or ctx to end.
func (b *Broadcaster) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := make([]*Subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	b.cancel()
	for _, s := range subs {
		_ = s.conn.Close()
	}

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Broadcaster) run(s *Subscriber) {
	defer b.wg.Done()
	defer close(s.done)
	defer b.remove(s)
	defer s.conn.Close()

	log := b.logger.With("subscriber", s.id.String())
	log.Info("subscriber attached", "game", s.game)

	for {
		batch := s.take()
		if len(batch) == 0 {
			select {
			case <-s.wake:
				continue
			case <-b.ctx.Done():
				return
			}
		}

		for _, data := range batch {
			wctx, cancel := context.WithTimeout(b.ctx, b.opts.WriteTimeout)
			err := s.conn.WriteMessage(wctx, data)
			cancel()
			if err != nil {
				log.Info("subscriber write failed", "error", err)
				return
			}
		}

		if err := b.awaitAck(s); err != nil {
			if errors.Is(err, ErrAckTimeout) || errors.Is(err, ErrBadAck) {
				log.Warn("subscriber dropped", "error", err)
			} else {
				log.Info("subscriber disconnected", "error", err)
			}
			return
		}
	}
}

func (b *Broadcaster) awaitAck(s *Subscriber) error {
	ctx, cancel := context.WithTimeout(b.ctx, b.opts.AckTimeout)
	defer cancel()

	raw, err := s.conn.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrAckTimeout
		}
		return err
	}
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("%w: %v", ErrBadAck, err)
	}
	if f.Type != FrameAck {
		return fmt.Errorf("%w: unexpected type %q", ErrBadAck, f.Type)
	}
	return nil
}

func (b *Broadcaster) remove(s *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[s.id] == s {
		delete(b.subs, s.id)
	}
}
