package broadcast

import (
	"sync"

	"github.com/google/uuid"
)

// Subscriber is one attached connection.
type Subscriber struct {
	id   uuid.UUID
	game string
	conn Conn

	mu    sync.Mutex
	queue [][]byte

	wake chan struct{}
	done chan struct{}
}

func (s *Subscriber) ID() uuid.UUID { return s.id }

// Done closes once the send loop has exited and the connection is closed.
func (s *Subscriber) Done() <-chan struct{} { return s.done }

func (s *Subscriber) matches(game string) bool {
	return s.game == "" || s.game == game
}

// enqueue appends data and wakes the send loop. Called with the
// broadcaster's lock held.
func (s *Subscriber) enqueue(data []byte) {
	s.mu.Lock()
	s.queue = append(s.queue, data)
	s.mu.Unlock()
	s.signal()
}

func (s *Subscriber) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscriber) take() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.queue
	s.queue = nil
	return out
}
