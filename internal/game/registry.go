package game

import (
	"slices"
	"sync"

	"github.com/hexhub/platform/internal/domain"
)

// Registry maps case-folded game keys to games.
type Registry struct {
	mu    sync.RWMutex
	games map[string]*Game
	opts  []Option
}

// NewRegistry creates an empty registry. opts are applied to every game it creates.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{games: make(map[string]*Game), opts: opts}
}

// FindOrCreate returns the game under key, creating it from info when absent.
// Two concurrent calls for the same key observe the same game.
func (r *Registry) FindOrCreate(key string, info domain.GameInfo) (*Game, bool) {
	folded := domain.FoldKey(key)
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.games[folded]; ok {
		return g, false
	}
	g := New(key, info, r.opts...)
	r.games[folded] = g
	return g, true
}

// Get looks key up case-insensitively.
func (r *Registry) Get(key string) (*Game, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.games[domain.FoldKey(key)]
	return g, ok
}

// Delete removes the game under key and closes all of its ledgers. A non-nil
// final runs under the registry's write lock before the ledgers close, so a
// notice it posts reaches every ledger exactly once and no lookup can find the
// game afterwards.
func (r *Registry) Delete(key string, final func(*Game)) (*Game, bool) {
	folded := domain.FoldKey(key)
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.games[folded]
	if !ok {
		return nil, false
	}
	if final != nil {
		final(g)
	}
	delete(r.games, folded)
	g.markDeleted()
	return g, true
}

// Keys returns the display keys of all games, sorted.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	keys := make([]string, 0, len(r.games))
	for _, g := range r.games {
		keys = append(keys, g.Key())
	}
	r.mu.RUnlock()
	slices.Sort(keys)
	return keys
}

// Len returns the number of live games.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.games)
}
