package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/duochat/duochat-server/internal/audit"
	apperrors "github.com/duochat/duochat-server/internal/errors"
	"github.com/duochat/duochat-server/internal/middleware"
	"github.com/duochat/duochat-server/internal/model"
	"github.com/duochat/duochat-server/internal/relay"
	"github.com/duochat/duochat-server/internal/service"
)

type MessagesHandler struct {
	messages *service.MessageService
	hub      *relay.Hub
}

func NewMessagesHandler(messages *service.MessageService, hub *relay.Hub) *MessagesHandler {
	return &MessagesHandler{messages: messages, hub: hub}
}

// List returns the room history, oldest first. The claim's room must
// match the path; history is always queried by the claim's room so a
// forged path can never leak another room's messages.
// GET /api/messages/{roomID}
func (h *MessagesHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	if chi.URLParam(r, "roomID") != claims.RoomID {
		writeError(w, apperrors.Forbidden("Claim does not grant access to this room"))
		return
	}

	msgs, err := h.messages.History(r.Context(), claims.RoomID)
	if err != nil {
		writeError(w, err)
		return
	}
	if msgs == nil {
		msgs = []model.Message{}
	}

	writeJSON(w, http.StatusOK, msgs)
}

// Clear deletes the room history and tells live connections to drop
// their local copies.
// DELETE /api/messages/{roomID}
func (h *MessagesHandler) Clear(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	if chi.URLParam(r, "roomID") != claims.RoomID {
		writeError(w, apperrors.Forbidden("Claim does not grant access to this room"))
		return
	}

	if err := h.messages.Clear(r.Context(), claims.RoomID); err != nil {
		writeError(w, err)
		return
	}

	h.hub.Broadcast(claims.RoomID, relay.NewFrame(relay.EventChatCleared, nil))

	audit.LogFromRequest(r, audit.Event{
		Type:     audit.EventChatClear,
		DeviceID: claims.DeviceID,
		RoomID:   claims.RoomID,
	})

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
