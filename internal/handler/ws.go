package handler

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/duochat/duochat-server/internal/relay"
)

type WSHandler struct {
	hub      *relay.Hub
	upgrader websocket.Upgrader
}

// NewWSHandler builds the websocket entry point. Clients are native
// apps, not browsers, so cross-origin checks are disabled; room access
// is authorized per joinRoom frame, not at upgrade time.
func NewWSHandler(hub *relay.Hub) *WSHandler {
	return &WSHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Serve upgrades the connection and hands it to the hub for the rest of
// its lifetime.
// GET /ws
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	h.hub.HandleConnection(conn)
}
