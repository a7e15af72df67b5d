package service

import (
	"fmt"

	"github.com/hexhub/platform/internal/domain"
	"github.com/hexhub/platform/internal/ledger"
)

func validKind(k domain.ResourceKind) error {
	if !k.Valid() {
		return domain.ErrValidation(fmt.Sprintf("unknown resource %d", int(k)))
	}
	return nil
}

// ChangeResources applies req.Delta to the player's counters. A delta that
// would leave any counter negative is rejected without effect.
func (s *GameService) ChangeResources(key, player string, req ResourcesRequest) (*Outcome, error) {
	if req.Delta.IsZero() {
		return nil, domain.ErrValidation("delta must change at least one resource")
	}
	g, l, err := s.player(key, player)
	if err != nil {
		return nil, err
	}
	if _, ok := l.TryApplyIfSufficient(req.Delta); !ok {
		return nil, domain.ErrInsufficientResource(fmt.Sprintf("%s cannot pay %v", l.Name(), req.Delta.Negate()))
	}
	d := domain.NewEvent(domain.EventResourceChange, l.Name()).
		WithDelta(req.Delta).
		WithUndo(undo(g.Key(), l.Name(), "resources", BodyResources, ResourcesRequest{Delta: req.Delta.Negate()}))
	return s.outcome(g, l, d), nil
}

// Trade swaps req.Give from the player for req.Get from req.With. Both
// ledgers change together or not at all.
func (s *GameService) Trade(key, player string, req TradeRequest) (*Outcome, error) {
	if !req.Give.NonNegative() || !req.Get.NonNegative() {
		return nil, domain.ErrValidation("trade amounts must not be negative")
	}
	if req.Give.IsZero() && req.Get.IsZero() {
		return nil, domain.ErrValidation("trade must move at least one resource")
	}
	g, a, err := s.player(key, player)
	if err != nil {
		return nil, err
	}
	b, ok := g.GetPlayer(req.With)
	if !ok {
		return nil, domain.ErrNotFound("player", req.With)
	}
	if a == b {
		return nil, domain.ErrValidation("cannot trade with yourself")
	}

	da := req.Get.Sub(req.Give)
	db := req.Give.Sub(req.Get)
	if !ledger.Exchange(a, b, da, db) {
		return nil, domain.ErrInsufficientResource(fmt.Sprintf("trade between %s and %s not covered", a.Name(), b.Name()))
	}
	d := domain.NewEvent(domain.EventTrade, a.Name()).
		WithCounterparty(b.Name()).
		WithDelta(da).
		WithCounterDelta(db).
		WithUndo(undo(g.Key(), a.Name(), "trade", BodyTrade, TradeRequest{With: b.Name(), Give: req.Get, Get: req.Give}))
	return s.outcome(g, a, d), nil
}

// Take moves req.Amount of one resource from req.From to the player.
func (s *GameService) Take(key, player string, req TakeRequest) (*Outcome, error) {
	if err := validKind(req.Resource); err != nil {
		return nil, err
	}
	if req.Amount <= 0 {
		return nil, domain.ErrValidation("amount must be positive")
	}
	g, to, err := s.player(key, player)
	if err != nil {
		return nil, err
	}
	from, ok := g.GetPlayer(req.From)
	if !ok {
		return nil, domain.ErrNotFound("player", req.From)
	}
	if from == to {
		return nil, domain.ErrValidation("cannot take from yourself")
	}

	gain := domain.Of(req.Resource, req.Amount)
	if !ledger.Exchange(to, from, gain, gain.Negate()) {
		return nil, domain.ErrInsufficientResource(fmt.Sprintf("%s holds fewer than %d %s", from.Name(), req.Amount, req.Resource))
	}
	d := domain.NewEvent(domain.EventTake, to.Name()).
		WithCounterparty(from.Name()).
		WithResource(req.Resource).
		WithAmount(req.Amount).
		WithDelta(gain).
		WithCounterDelta(gain.Negate()).
		WithUndo(undo(g.Key(), from.Name(), "take", BodyTake, TakeRequest{From: to.Name(), Resource: req.Resource, Amount: req.Amount}))
	return s.outcome(g, to, d), nil
}

var maritimeRatios = map[int]bool{2: true, 3: true, 4: true}

// MaritimeTrade trades with the bank. Gold converts one to one into any
// tradable resource; other resources go at the requested harbor ratio.
func (s *GameService) MaritimeTrade(key, player string, req MaritimeRequest) (*Outcome, error) {
	if err := validKind(req.Give); err != nil {
		return nil, err
	}
	if !req.Get.Tradable() {
		return nil, domain.ErrValidation(fmt.Sprintf("cannot receive %s from the bank", req.Get))
	}
	if req.Give == req.Get {
		return nil, domain.ErrValidation("give and get must differ")
	}
	g, l, err := s.player(key, player)
	if err != nil {
		return nil, err
	}

	ratio := req.Ratio
	switch {
	case req.Give == domain.Gold:
		ratio = 1
	case ratio == 0:
		ratio = g.Info().MaritimeRatio
	case !maritimeRatios[ratio]:
		return nil, domain.ErrValidation(fmt.Sprintf("ratio must be 2, 3 or 4, got %d", ratio))
	}

	delta := domain.Of(req.Give, -ratio).Add(domain.Of(req.Get, 1))
	if _, ok := l.TryApplyIfSufficient(delta); !ok {
		return nil, domain.ErrInsufficientResource(fmt.Sprintf("%s needs %d %s", l.Name(), ratio, req.Give))
	}
	d := domain.NewEvent(domain.EventMaritimeTrade, l.Name()).
		WithResource(req.Get).
		WithAmount(ratio).
		WithDelta(delta).
		WithUndo(undo(g.Key(), l.Name(), "resources", BodyResources, ResourcesRequest{Delta: delta.Negate()}))
	return s.outcome(g, l, d), nil
}
