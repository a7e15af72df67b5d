package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hexhub/platform/internal/service"
)

// PlayerHandler handles registration, snapshots and long-poll monitoring.
type PlayerHandler struct {
	svc *service.GameService
}

// NewPlayerHandler creates a new PlayerHandler.
func NewPlayerHandler(svc *service.GameService) *PlayerHandler {
	return &PlayerHandler{svc: svc}
}

type joinRequest struct {
	Name string `json:"name"`
}

// Join handles POST /games/{game}/players.
func (h *PlayerHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, err)
		return
	}
	snap, created, err := h.svc.JoinGame(chi.URLParam(r, "game"), req.Name)
	if err != nil {
		RespondError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	RespondJSON(w, status, snap)
}

// GetPlayer handles GET /games/{game}/players/{player}.
func (h *PlayerHandler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Snapshot(chi.URLParam(r, "game"), chi.URLParam(r, "player"))
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, snap)
}

// Leave handles DELETE /games/{game}/players/{player}.
func (h *PlayerHandler) Leave(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.LeaveGame(chi.URLParam(r, "game"), chi.URLParam(r, "player")); err != nil {
		RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Monitor handles GET /games/{game}/players/{player}/monitor. It blocks until
// the game releases waiters or the monitor timeout passes, in which case the
// body is an empty list.
func (h *PlayerHandler) Monitor(w http.ResponseWriter, r *http.Request) {
	recs, err := h.svc.Monitor(r.Context(), chi.URLParam(r, "game"), chi.URLParam(r, "player"))
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, recs)
}
