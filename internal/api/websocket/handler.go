package websocket

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler handles WebSocket connections for run progress streaming
type Handler struct {
	hub    *Hub
	ctx    context.Context
	logger *slog.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(ctx context.Context, hub *Hub, logger *slog.Logger) *Handler {
	return &Handler{hub: hub, ctx: ctx, logger: logger}
}

// ServeWS handles websocket requests from clients
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	clientID := uuid.New().String()
	client := NewClient(h.ctx, h.hub, conn, clientID, h.logger)

	h.hub.register <- client

	go client.WritePump()
	go client.ReadPump()

	h.logger.Info("websocket client connected", "client_id", clientID)
}
