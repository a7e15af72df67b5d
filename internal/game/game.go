// Package game owns the set of player ledgers of one session and assigns
// the sequence numbers of the session's event log.
//
// Lock order: Registry.mu, then Game.postMu, then Game.mu, then a ledger's
// own lock. No path acquires them in the reverse direction.
package game

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/hexhub/platform/internal/domain"
	"github.com/hexhub/platform/internal/ledger"
)

var (
	ErrStarted = errors.New("game: already started")
	ErrDeleted = errors.New("game: deleted")
)

// State is the one-directional lifecycle of a game.
type State int

const (
	StateOpen State = iota
	StateStarted
	StateDeleted
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateStarted:
		return "started"
	case StateDeleted:
		return "deleted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Option customizes a Game at construction.
type Option func(*Game)

// WithRand seeds the dev card pool from rng.
func WithRand(rng *rand.Rand) Option {
	return func(g *Game) { g.rng = rng }
}

// Publisher receives every sealed record in sequence order. Publish runs while
// the game's posting lock is held and must not block or call back into the game.
type Publisher interface {
	Publish(rec *domain.EventRecord)
}

// WithPublisher forwards every posted record to p.
func WithPublisher(p Publisher) Option {
	return func(g *Game) { g.publisher = p }
}

// WithClock overrides the timestamp source for sealed events.
func WithClock(now func() time.Time) Option {
	return func(g *Game) { g.now = now }
}

// Game is one session: its configuration, its dev card pool, its players,
// and the sequence counter of its event log.
type Game struct {
	key  string
	info domain.GameInfo
	pool *DevCardPool
	rng  *rand.Rand
	now  func() time.Time

	publisher Publisher

	// postMu serializes sequence assignment with fan-out so every ledger
	// receives records in sequence order.
	postMu sync.Mutex
	seq    uint64

	mu      sync.RWMutex
	state   State
	players map[string]*ledger.Ledger
	order   []string
}

// New creates an open game seeded with info.
func New(key string, info domain.GameInfo, opts ...Option) *Game {
	g := &Game{
		key:     key,
		info:    info,
		now:     time.Now,
		players: make(map[string]*ledger.Ledger),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.pool = NewDevCardPool(info.DevCards, g.rng)
	return g
}

func (g *Game) Key() string { return g.key }

// Info returns the configuration snapshot.
func (g *Game) Info() domain.GameInfo { return g.info }

func (g *Game) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// Start moves an open game to started; registrations stop being accepted.
func (g *Game) Start() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch g.state {
	case StateOpen:
		g.state = StateStarted
		return nil
	case StateStarted:
		return ErrStarted
	default:
		return ErrDeleted
	}
}

// RegisterPlayer returns the ledger for name, creating it if the game is
// still open. created reports whether a new ledger was made.
func (g *Game) RegisterPlayer(name string) (l *ledger.Ledger, created bool, err error) {
	key := domain.FoldKey(name)
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == StateDeleted {
		return nil, false, ErrDeleted
	}
	if existing, ok := g.players[key]; ok {
		return existing, false, nil
	}
	if g.state != StateOpen {
		return nil, false, ErrStarted
	}
	l = ledger.New(domain.PlayerIdentity{Game: g.key, Player: name}, g.info.MaxEntitlements)
	g.players[key] = l
	g.order = append(g.order, key)
	return l, true, nil
}

// GetPlayer looks name up case-insensitively.
func (g *Game) GetPlayer(name string) (*ledger.Ledger, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	l, ok := g.players[domain.FoldKey(name)]
	return l, ok
}

// RemovePlayer unregisters name and closes its ledger.
func (g *Game) RemovePlayer(name string) (*ledger.Ledger, bool) {
	key := domain.FoldKey(name)
	g.mu.Lock()
	l, ok := g.players[key]
	if ok {
		delete(g.players, key)
		for i, k := range g.order {
			if k == key {
				g.order = append(g.order[:i], g.order[i+1:]...)
				break
			}
		}
	}
	g.mu.Unlock()
	if ok {
		l.Close()
	}
	return l, ok
}

// Players returns the ledgers in registration order.
func (g *Game) Players() []*ledger.Ledger {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.playersLocked()
}

func (g *Game) playersLocked() []*ledger.Ledger {
	out := make([]*ledger.Ledger, 0, len(g.order))
	for _, k := range g.order {
		out = append(out, g.players[k])
	}
	return out
}

// DrawDevCard removes a random card from the shared pool.
func (g *Game) DrawDevCard() (domain.DevCardKind, bool) {
	return g.pool.Draw()
}

// ReturnDevCard puts a drawn card back into the pool.
func (g *Game) ReturnDevCard(kind domain.DevCardKind) {
	g.pool.Return(kind)
}

// DevCardsRemaining returns the size of the shared pool.
func (g *Game) DevCardsRemaining() int {
	return g.pool.Remaining()
}

// TakeAllFromEveryPlayer zeroes kind on every ledger except beneficiary's and
// returns the total removed. One Take record per player that lost something is
// posted after the sweep, since posting needs the locks the sweep holds.
func (g *Game) TakeAllFromEveryPlayer(kind domain.ResourceKind, beneficiary string) (int, []*domain.EventRecord) {
	domain.MustResource(kind)
	skip := domain.FoldKey(beneficiary)

	type loss struct {
		player string
		amount int
	}
	var losses []loss
	total := 0

	g.mu.RLock()
	for _, k := range g.order {
		if k == skip {
			continue
		}
		l := g.players[k]
		if n := l.TakeAllOfResource(kind); n > 0 {
			losses = append(losses, loss{player: l.Name(), amount: n})
			total += n
		}
	}
	g.mu.RUnlock()

	records := make([]*domain.EventRecord, 0, len(losses))
	for _, ls := range losses {
		draft := domain.NewEvent(domain.EventTake, ls.player).
			WithCounterparty(beneficiary).
			WithResource(kind).
			WithAmount(ls.amount).
			WithDelta(domain.Of(kind, -ls.amount))
		records = append(records, g.PostEvent(draft))
	}
	return total, records
}

// PostEvent seals draft with the next sequence number, appends the record to
// every registered ledger and hands it to the publisher. It does not wake waiters.
func (g *Game) PostEvent(draft domain.EventDraft) *domain.EventRecord {
	g.postMu.Lock()
	defer g.postMu.Unlock()

	g.seq++
	rec := draft.Seal(g.key, g.seq, g.now())

	g.mu.RLock()
	for _, k := range g.order {
		g.players[k].AppendEvent(rec)
	}
	g.mu.RUnlock()

	if g.publisher != nil {
		g.publisher.Publish(rec)
	}
	return rec
}

// ReleaseAllWaiters wakes every ledger's outstanding long-poll.
func (g *Game) ReleaseAllWaiters() {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, k := range g.order {
		g.players[k].ReleaseWaiter()
	}
}

// LastSeq returns the most recently assigned sequence number.
func (g *Game) LastSeq() uint64 {
	g.postMu.Lock()
	defer g.postMu.Unlock()
	return g.seq
}

// markDeleted empties the game and closes every ledger. Called by the
// registry while it holds its write lock.
func (g *Game) markDeleted() {
	g.mu.Lock()
	g.state = StateDeleted
	ledgers := g.playersLocked()
	g.players = make(map[string]*ledger.Ledger)
	g.order = nil
	g.mu.Unlock()

	for _, l := range ledgers {
		l.Close()
	}
}
