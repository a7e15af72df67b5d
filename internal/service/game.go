package service

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hexhub/platform/internal/domain"
	"github.com/hexhub/platform/internal/game"
	"github.com/hexhub/platform/internal/ledger"
)

// Options configures the game service.
type Options struct {
	Defaults       domain.GameInfo
	MonitorTimeout time.Duration
}

// GameService applies game rules on top of the registry and ledgers and posts
// one event per accepted mutation.
type GameService struct {
	registry *game.Registry
	sinks    Fanout
	opts     Options
	logger   *slog.Logger
}

// NewGameService creates a GameService. The registry should be built with
// game.WithPublisher(sinks) so posted records reach the sinks.
func NewGameService(registry *game.Registry, sinks Fanout, opts Options, logger *slog.Logger) *GameService {
	if opts.MonitorTimeout <= 0 {
		opts.MonitorTimeout = 55 * time.Second
	}
	return &GameService{registry: registry, sinks: sinks, opts: opts, logger: logger}
}

// GameSummary is the public view of one game.
type GameSummary struct {
	Key               string          `json:"key"`
	State             game.State      `json:"state"`
	Players           []string        `json:"players"`
	LastSeq           uint64          `json:"last_seq"`
	DevCardsRemaining int             `json:"dev_cards_remaining"`
	Info              domain.GameInfo `json:"info"`
}

func summarize(g *game.Game) GameSummary {
	players := g.Players()
	names := make([]string, len(players))
	for i, l := range players {
		names[i] = l.Name()
	}
	return GameSummary{
		Key:               g.Key(),
		State:             g.State(),
		Players:           names,
		LastSeq:           g.LastSeq(),
		DevCardsRemaining: g.DevCardsRemaining(),
		Info:              g.Info(),
	}
}

// Outcome is the result of a ledger mutation.
type Outcome struct {
	Ledger ledger.Snapshot       `json:"ledger"`
	Event  *domain.EventRecord   `json:"event"`
	Extra  []*domain.EventRecord `json:"related,omitempty"`
}

func validateName(what, name string) error {
	if strings.TrimSpace(name) == "" {
		return domain.ErrValidation(what + " is required")
	}
	if len(name) > 64 {
		return domain.ErrValidation(what + " must be at most 64 bytes")
	}
	return nil
}

func gameError(key string, err error) error {
	switch {
	case errors.Is(err, game.ErrStarted):
		return domain.ErrBadState(fmt.Sprintf("game %s already started", key))
	case errors.Is(err, game.ErrDeleted):
		return domain.ErrNotFound("game", key)
	default:
		return domain.ErrInternal("game", err)
	}
}

// CreateGame finds or creates the game under key. A nil info uses the
// configured defaults.
func (s *GameService) CreateGame(key string, info *domain.GameInfo) (GameSummary, bool, error) {
	if err := validateName("game key", key); err != nil {
		return GameSummary{}, false, err
	}
	cfg := s.opts.Defaults
	if info != nil {
		cfg = *info
	}
	if err := cfg.Validate(); err != nil {
		return GameSummary{}, false, domain.ErrValidation(err.Error())
	}
	g, created := s.registry.FindOrCreate(key, cfg)
	if created {
		s.logger.Info("game created", "game", g.Key())
	}
	return summarize(g), created, nil
}

func (s *GameService) game(key string) (*game.Game, error) {
	g, ok := s.registry.Get(key)
	if !ok {
		return nil, domain.ErrNotFound("game", key)
	}
	return g, nil
}

func (s *GameService) player(key, name string) (*game.Game, *ledger.Ledger, error) {
	g, err := s.game(key)
	if err != nil {
		return nil, nil, err
	}
	l, ok := g.GetPlayer(name)
	if !ok {
		return nil, nil, domain.ErrNotFound("player", name)
	}
	return g, l, nil
}

// post seals drafts in order and then wakes every waiter of g.
func (s *GameService) post(g *game.Game, drafts ...domain.EventDraft) []*domain.EventRecord {
	recs := make([]*domain.EventRecord, len(drafts))
	for i, d := range drafts {
		recs[i] = g.PostEvent(d)
	}
	g.ReleaseAllWaiters()
	return recs
}

func (s *GameService) outcome(g *game.Game, l *ledger.Ledger, d domain.EventDraft) *Outcome {
	rec := s.post(g, d)[0]
	return &Outcome{Ledger: l.Snapshot(), Event: rec}
}

// GetGame returns the summary of one game.
func (s *GameService) GetGame(key string) (GameSummary, error) {
	g, err := s.game(key)
	if err != nil {
		return GameSummary{}, err
	}
	return summarize(g), nil
}

// ListGames returns every live game sorted by key.
func (s *GameService) ListGames() []GameSummary {
	keys := s.registry.Keys()
	out := make([]GameSummary, 0, len(keys))
	for _, k := range keys {
		if g, ok := s.registry.Get(k); ok {
			out = append(out, summarize(g))
		}
	}
	return out
}

// GameCount returns the number of live games.
func (s *GameService) GameCount() int { return s.registry.Len() }

// StartGame closes registration.
func (s *GameService) StartGame(key string) (GameSummary, error) {
	g, err := s.game(key)
	if err != nil {
		return GameSummary{}, err
	}
	if err := g.Start(); err != nil {
		return GameSummary{}, gameError(key, err)
	}
	s.post(g, domain.NewEvent(domain.EventGameStarted, "").WithMessage("registration closed"))
	s.logger.Info("game started", "game", g.Key(), "players", len(g.Players()))
	return summarize(g), nil
}

// DeleteGame posts a final notice to every ledger, removes the game and
// closes its ledgers. Only one of several concurrent deletes succeeds.
func (s *GameService) DeleteGame(key string) error {
	g, ok := s.registry.Delete(key, func(g *game.Game) {
		s.post(g, domain.NewEvent(domain.EventGameDeleted, ""))
		s.sinks.GameDeleted(g.Key())
	})
	if !ok {
		return domain.ErrNotFound("game", key)
	}
	s.logger.Info("game deleted", "game", g.Key())
	return nil
}

// JoinGame registers player. Joining twice returns the existing ledger.
func (s *GameService) JoinGame(key, player string) (ledger.Snapshot, bool, error) {
	if err := validateName("player name", player); err != nil {
		return ledger.Snapshot{}, false, err
	}
	g, err := s.game(key)
	if err != nil {
		return ledger.Snapshot{}, false, err
	}
	l, created, err := g.RegisterPlayer(player)
	if err != nil {
		return ledger.Snapshot{}, false, gameError(key, err)
	}
	if created {
		s.post(g, domain.NewEvent(domain.EventPlayerAdded, l.Name()))
		s.logger.Info("player joined", "game", g.Key(), "player", l.Name())
	}
	return l.Snapshot(), created, nil
}

// LeaveGame posts the departure, then unregisters the player and closes its
// ledger so an outstanding monitor returns.
func (s *GameService) LeaveGame(key, player string) error {
	g, l, err := s.player(key, player)
	if err != nil {
		return err
	}
	s.post(g, domain.NewEvent(domain.EventPlayerRemoved, l.Name()))
	if _, ok := g.RemovePlayer(player); !ok {
		return domain.ErrNotFound("player", player)
	}
	s.logger.Info("player left", "game", g.Key(), "player", l.Name())
	return nil
}

// Snapshot returns a deep copy of one player's ledger.
func (s *GameService) Snapshot(key, player string) (ledger.Snapshot, error) {
	_, l, err := s.player(key, player)
	if err != nil {
		return ledger.Snapshot{}, err
	}
	return l.Snapshot(), nil
}
