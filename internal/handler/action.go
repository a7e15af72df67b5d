package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hexhub/platform/internal/domain"
	"github.com/hexhub/platform/internal/guard"
	"github.com/hexhub/platform/internal/service"
)

// IdempotencyHeader carries a client token that makes a mutation safe to retry.
const IdempotencyHeader = "X-Idempotency-Key"

// ActionHandler handles per-player ledger mutations.
type ActionHandler struct {
	svc  *service.GameService
	idem *guard.IdempotencyGuard
}

// NewActionHandler creates a new ActionHandler. A nil guard disables
// duplicate detection.
func NewActionHandler(svc *service.GameService, idem *guard.IdempotencyGuard) *ActionHandler {
	return &ActionHandler{svc: svc, idem: idem}
}

// claim reserves the request's idempotency key. It returns the reserved key,
// empty when the request carries none.
func (h *ActionHandler) claim(r *http.Request) (string, error) {
	token := r.Header.Get(IdempotencyHeader)
	if token == "" || h.idem == nil {
		return "", nil
	}
	key := r.URL.Path + "|" + token
	if res := h.idem.Check(r.Context(), key); !res.Allowed {
		return "", domain.ErrConflict(res.Reason)
	}
	return key, nil
}

func mutate[T any](h *ActionHandler, w http.ResponseWriter, r *http.Request,
	fn func(game, player string, req T) (*service.Outcome, error)) {
	var req T
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, err)
		return
	}
	key, err := h.claim(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	out, err := fn(chi.URLParam(r, "game"), chi.URLParam(r, "player"), req)
	if err != nil {
		if key != "" {
			h.idem.Remove(key)
		}
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, out)
}

// ChangeResources handles POST /games/{game}/players/{player}/resources.
func (h *ActionHandler) ChangeResources(w http.ResponseWriter, r *http.Request) {
	mutate(h, w, r, h.svc.ChangeResources)
}

// Trade handles POST /games/{game}/players/{player}/trade.
func (h *ActionHandler) Trade(w http.ResponseWriter, r *http.Request) {
	mutate(h, w, r, h.svc.Trade)
}

// Take handles POST /games/{game}/players/{player}/take.
func (h *ActionHandler) Take(w http.ResponseWriter, r *http.Request) {
	mutate(h, w, r, h.svc.Take)
}

// MaritimeTrade handles POST /games/{game}/players/{player}/maritime.
func (h *ActionHandler) MaritimeTrade(w http.ResponseWriter, r *http.Request) {
	mutate(h, w, r, h.svc.MaritimeTrade)
}

// Purchase handles POST /games/{game}/players/{player}/purchase.
func (h *ActionHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	mutate(h, w, r, h.svc.Purchase)
}

// Refund handles POST /games/{game}/players/{player}/refund.
func (h *ActionHandler) Refund(w http.ResponseWriter, r *http.Request) {
	mutate(h, w, r, h.svc.Refund)
}

// PlayDevCard handles POST /games/{game}/players/{player}/devcards/play.
func (h *ActionHandler) PlayDevCard(w http.ResponseWriter, r *http.Request) {
	mutate(h, w, r, h.svc.PlayDevCard)
}
