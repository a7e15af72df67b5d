package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hexhub/platform/internal/domain"
	"github.com/hexhub/platform/internal/service"
)

// GameHandler handles game lifecycle endpoints.
type GameHandler struct {
	svc *service.GameService
}

// NewGameHandler creates a new GameHandler.
func NewGameHandler(svc *service.GameService) *GameHandler {
	return &GameHandler{svc: svc}
}

type createGameRequest struct {
	Key  string           `json:"key"`
	Info *domain.GameInfo `json:"info,omitempty"`
}

// CreateGame handles POST /games. An existing key answers 200 with the
// current summary.
func (h *GameHandler) CreateGame(w http.ResponseWriter, r *http.Request) {
	var req createGameRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, err)
		return
	}
	summary, created, err := h.svc.CreateGame(req.Key, req.Info)
	if err != nil {
		RespondError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	RespondJSON(w, status, summary)
}

// ListGames handles GET /games.
func (h *GameHandler) ListGames(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, h.svc.ListGames())
}

// GetGame handles GET /games/{game}.
func (h *GameHandler) GetGame(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.GetGame(chi.URLParam(r, "game"))
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, summary)
}

// StartGame handles POST /games/{game}/start.
func (h *GameHandler) StartGame(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.StartGame(chi.URLParam(r, "game"))
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, summary)
}

// DeleteGame handles DELETE /games/{game}.
func (h *GameHandler) DeleteGame(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteGame(chi.URLParam(r, "game")); err != nil {
		RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
