package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/hexhub/platform/internal/broadcast"
	"github.com/hexhub/platform/internal/infra"
)

// StreamHandler upgrades GET /stream to a websocket and hands the connection
// to the broadcaster. The optional game query parameter filters the stream.
type StreamHandler struct {
	b            *broadcast.Broadcaster
	upgrader     *websocket.Upgrader
	writeTimeout time.Duration
	logger       *slog.Logger
}

// NewStreamHandler creates a new StreamHandler.
func NewStreamHandler(b *broadcast.Broadcaster, upgrader *websocket.Upgrader, writeTimeout time.Duration, logger *slog.Logger) *StreamHandler {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &StreamHandler{b: b, upgrader: upgrader, writeTimeout: writeTimeout, logger: logger}
}

// Stream handles GET /stream. The subscriber is greeted with a Hello frame
// naming its id, then receives the replay history and live events. The
// broadcaster owns the connection once attached.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	game := r.URL.Query().Get("game")
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error.
		h.logger.Warn("websocket upgrade failed", "error", err, "request_id", GetRequestID(r.Context()))
		return
	}
	conn := infra.NewWSConn(ws)
	id := uuid.New()

	hello, err := json.Marshal(broadcast.Frame{Type: broadcast.FrameHello, Game: game, Subscriber: id.String()})
	if err != nil {
		conn.Close()
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.writeTimeout)
	err = conn.WriteMessage(ctx, hello)
	cancel()
	if err != nil {
		h.logger.Warn("hello write failed", "subscriber", id, "error", err)
		conn.Close()
		return
	}

	if _, err := h.b.Attach(id, conn, game); err != nil {
		h.logger.Warn("attach failed", "subscriber", id, "error", err)
		conn.Close()
		return
	}
	h.logger.Info("subscriber attached", "subscriber", id, "game", game)
}
