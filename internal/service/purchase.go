package service

import (
	"fmt"

	"github.com/hexhub/platform/internal/domain"
	"github.com/hexhub/platform/internal/game"
	"github.com/hexhub/platform/internal/ledger"
)

// Purchase buys one entitlement or one development card at the game's price.
func (s *GameService) Purchase(key, player string, req PurchaseRequest) (*Outcome, error) {
	it, err := parseItem(req.Item)
	if err != nil {
		return nil, err
	}
	g, l, err := s.player(key, player)
	if err != nil {
		return nil, err
	}
	if it.devCard {
		return s.purchaseDevCard(g, l)
	}

	cost := g.Info().Costs[it.entitlement]
	_, result := l.PurchaseEntitlement(it.entitlement, cost)
	switch result {
	case ledger.SoldOut:
		return nil, domain.ErrLimitExceeded(fmt.Sprintf("%s has no %s left", l.Name(), it.entitlement))
	case ledger.Insufficient:
		return nil, domain.ErrInsufficientResource(fmt.Sprintf("%s cannot afford a %s", l.Name(), it.entitlement))
	}
	d := domain.NewEvent(domain.EventPurchase, l.Name()).
		WithEntitlement(it.entitlement).
		WithDelta(cost.Negate()).
		WithUndo(undo(g.Key(), l.Name(), "refund", BodyRefund, PurchaseRequest{Item: it.String()}))
	return s.outcome(g, l, d), nil
}

// purchaseDevCard debits the price, then draws. An empty pool refunds the price.
func (s *GameService) purchaseDevCard(g *game.Game, l *ledger.Ledger) (*Outcome, error) {
	cost := g.Info().DevCardCost
	if _, ok := l.TryApplyIfSufficient(cost.Negate()); !ok {
		return nil, domain.ErrInsufficientResource(fmt.Sprintf("%s cannot afford a development card", l.Name()))
	}
	card, ok := g.DrawDevCard()
	if !ok {
		l.AddResources(cost)
		return nil, domain.ErrLimitExceeded("no development cards left")
	}
	l.DrawAndHoldDevCard(card)

	d := domain.NewEvent(domain.EventPurchase, l.Name()).
		WithDevCard(card).
		WithDelta(cost.Negate()).
		WithUndo(undo(g.Key(), l.Name(), "refund", BodyRefund, PurchaseRequest{Item: itemDevCard, DevCard: &card}))
	return s.outcome(g, l, d), nil
}

// Refund reverses a purchase: the piece goes back to the pool, or the
// unplayed card goes back to the deck, and the price is credited.
func (s *GameService) Refund(key, player string, req PurchaseRequest) (*Outcome, error) {
	it, err := parseItem(req.Item)
	if err != nil {
		return nil, err
	}
	if it.devCard && (req.DevCard == nil || !req.DevCard.Valid()) {
		return nil, domain.ErrValidation("dev_card is required to refund a development card")
	}
	g, l, err := s.player(key, player)
	if err != nil {
		return nil, err
	}

	var d domain.EventDraft
	if it.devCard {
		card := *req.DevCard
		if !l.DiscardDevCard(card) {
			return nil, domain.ErrBadState(fmt.Sprintf("%s holds no unplayed %s", l.Name(), card))
		}
		g.ReturnDevCard(card)
		cost := g.Info().DevCardCost
		l.AddResources(cost)
		d = domain.NewEvent(domain.EventRefund, l.Name()).WithDevCard(card).WithDelta(cost)
	} else {
		cost := g.Info().Costs[it.entitlement]
		if _, ok := l.RefundEntitlement(it.entitlement, cost); !ok {
			return nil, domain.ErrBadState(fmt.Sprintf("%s has no %s to refund", l.Name(), it.entitlement))
		}
		d = domain.NewEvent(domain.EventRefund, l.Name()).WithEntitlement(it.entitlement).WithDelta(cost)
	}
	d = d.WithUndo(undo(g.Key(), l.Name(), "purchase", BodyPurchase, PurchaseRequest{Item: it.String()}))
	return s.outcome(g, l, d), nil
}

// PlayDevCard marks one held card as played and applies its effect.
func (s *GameService) PlayDevCard(key, player string, req PlayRequest) (*Outcome, error) {
	if !req.Card.Valid() {
		return nil, domain.ErrValidation(fmt.Sprintf("unknown card %d", int(req.Card)))
	}
	switch req.Card {
	case domain.YearOfPlenty:
		if len(req.Resources) != 2 {
			return nil, domain.ErrValidation("year of plenty takes exactly two resources")
		}
		for _, k := range req.Resources {
			if !k.Tradable() {
				return nil, domain.ErrValidation(fmt.Sprintf("cannot take %s from the bank", k))
			}
		}
	case domain.Monopoly:
		if req.Resource == nil || !req.Resource.Tradable() {
			return nil, domain.ErrValidation("monopoly needs a tradable resource")
		}
	}

	g, l, err := s.player(key, player)
	if err != nil {
		return nil, err
	}
	if !l.PlayDevCard(req.Card) {
		return nil, domain.ErrBadState(fmt.Sprintf("%s holds no unplayed %s", l.Name(), req.Card))
	}

	d := domain.NewEvent(domain.EventDevCardPlayed, l.Name()).WithDevCard(req.Card)
	var related []*domain.EventRecord

	switch req.Card {
	case domain.YearOfPlenty:
		var gain domain.Resources
		for _, k := range req.Resources {
			gain[k]++
		}
		l.AddResources(gain)
		d = d.WithDelta(gain)
	case domain.Monopoly:
		kind := *req.Resource
		total, losses := g.TakeAllFromEveryPlayer(kind, l.Name())
		l.AddResources(domain.Of(kind, total))
		related = losses
		d = domain.NewEvent(domain.EventMonopoly, l.Name()).
			WithDevCard(req.Card).
			WithResource(kind).
			WithAmount(total).
			WithDelta(domain.Of(kind, total))
	case domain.RoadBuilding:
		placed := 0
		for i := 0; i < 2; i++ {
			if l.AllocateEntitlement(domain.Road) {
				l.AddEntitlementHeld(domain.Road)
				placed++
			}
		}
		d = d.WithEntitlement(domain.Road).WithAmount(placed)
	}

	out := s.outcome(g, l, d)
	out.Extra = related
	return out, nil
}
