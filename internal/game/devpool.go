package game

import (
	"math/rand/v2"
	"sync"

	"github.com/hexhub/platform/internal/domain"
)

// DevCardPool is the shared bag of development cards of one game, drawn
// uniformly at random without replacement.
type DevCardPool struct {
	mu    sync.Mutex
	cards []domain.DevCardKind
	rng   *rand.Rand
}

// NewDevCardPool fills the bag from counts. A nil rng uses a randomly seeded source.
func NewDevCardPool(counts domain.DevCardCounts, rng *rand.Rand) *DevCardPool {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	cards := make([]domain.DevCardKind, 0, counts.Total())
	for i, n := range counts {
		for j := 0; j < n; j++ {
			cards = append(cards, domain.DevCardKind(i))
		}
	}
	return &DevCardPool{cards: cards, rng: rng}
}

// Draw removes one card at a uniformly random index. It returns false when
// the bag is empty.
func (p *DevCardPool) Draw() (domain.DevCardKind, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.cards)
	if n == 0 {
		return 0, false
	}
	i := p.rng.IntN(n)
	card := p.cards[i]
	p.cards[i] = p.cards[n-1]
	p.cards = p.cards[:n-1]
	return card, true
}

// Return puts a card back, used when a purchase is rolled back.
func (p *DevCardPool) Return(kind domain.DevCardKind) {
	domain.MustDevCard(kind)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cards = append(p.cards, kind)
}

// Remaining returns the number of cards left in the bag.
func (p *DevCardPool) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.cards)
}
