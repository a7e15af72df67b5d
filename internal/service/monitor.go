package service

import (
	"context"
	"errors"

	"github.com/hexhub/platform/internal/domain"
	"github.com/hexhub/platform/internal/ledger"
)

// Monitor long-polls the player's event queue. It returns the queued records
// as soon as a release wakes it, or an empty list once the monitor timeout
// passes or ctx is cancelled with nothing to deliver.
func (s *GameService) Monitor(ctx context.Context, key, player string) ([]*domain.EventRecord, error) {
	_, l, err := s.player(key, player)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.MonitorTimeout)
	defer cancel()

	recs, err := l.WaitForEvents(ctx)
	switch {
	case err == nil:
		return recs, nil
	case errors.Is(err, ledger.ErrWaitInProgress):
		return nil, domain.ErrBadState("a monitor is already waiting for " + l.Name())
	case errors.Is(err, ledger.ErrClosed):
		return nil, domain.ErrNotFound("player", player)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return []*domain.EventRecord{}, nil
	default:
		return nil, err
	}
}
