package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/duochat/duochat-server/internal/audit"
	apperrors "github.com/duochat/duochat-server/internal/errors"
	"github.com/duochat/duochat-server/internal/middleware"
	"github.com/duochat/duochat-server/internal/relay"
	"github.com/duochat/duochat-server/internal/service"
	"github.com/duochat/duochat-server/internal/token"
	"github.com/duochat/duochat-server/internal/util"
)

type PairingHandler struct {
	pairing *service.PairingService
	issuer  *token.Issuer
	hub     *relay.Hub
}

func NewPairingHandler(pairing *service.PairingService, issuer *token.Issuer, hub *relay.Hub) *PairingHandler {
	return &PairingHandler{pairing: pairing, issuer: issuer, hub: hub}
}

// Generate mints a fresh pairing code for the requesting device.
// POST /api/pairing/generate
func (h *PairingHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DeviceID string `json:"deviceId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid JSON body"))
		return
	}
	if !util.IsValidDeviceID(req.DeviceID) {
		writeError(w, apperrors.MissingRequired("deviceId"))
		return
	}

	pc, err := h.pairing.Generate(r.Context(), req.DeviceID)
	if err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:     audit.EventCodeGenerate,
		DeviceID: req.DeviceID,
		RoomID:   pc.RoomID,
		Details:  map[string]interface{}{"code": util.MaskCode(pc.Code)},
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"code":      pc.Code,
		"expiresAt": pc.ExpiresAt.Format(time.RFC3339),
		"roomId":    pc.RoomID,
	})
}

// Enter redeems a pairing code for the second device. The generator is
// notified over its device channel with its own claim; the consumer
// receives its claim in the response body.
// POST /api/pairing/enter
func (h *PairingHandler) Enter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code     string `json:"code"`
		DeviceID string `json:"deviceId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid JSON body"))
		return
	}
	if req.Code == "" {
		writeError(w, apperrors.MissingRequired("code"))
		return
	}
	if !util.IsValidDeviceID(req.DeviceID) {
		writeError(w, apperrors.MissingRequired("deviceId"))
		return
	}
	if !util.IsValidPairingCode(req.Code) {
		writeError(w, apperrors.ValidationError("Pairing code must be 6 digits"))
		return
	}

	result, err := h.pairing.Consume(r.Context(), req.Code, req.DeviceID)
	if err != nil {
		audit.LogFromRequest(r, audit.Event{
			Type:     audit.EventPairingRejected,
			DeviceID: req.DeviceID,
			Details: map[string]interface{}{
				"code":   util.MaskCode(req.Code),
				"reason": string(apperrors.GetCode(err)),
			},
		})
		writeError(w, err)
		return
	}

	consumerClaim, err := h.issuer.Issue(result.ConsumerDeviceID, result.RoomID)
	if err != nil {
		writeError(w, apperrors.Internal("Failed to issue claim"))
		return
	}
	generatorClaim, err := h.issuer.Issue(result.GeneratorDeviceID, result.RoomID)
	if err != nil {
		writeError(w, apperrors.Internal("Failed to issue claim"))
		return
	}

	h.hub.PublishToDevice(result.GeneratorDeviceID, relay.NewFrame(relay.EventPaired, map[string]string{
		"roomId": result.RoomID,
		"token":  generatorClaim,
	}))

	audit.LogFromRequest(r, audit.Event{
		Type:     audit.EventPairingSuccess,
		DeviceID: result.ConsumerDeviceID,
		RoomID:   result.RoomID,
	})

	writeJSON(w, http.StatusOK, map[string]string{
		"roomId": result.RoomID,
		"token":  consumerClaim,
	})
}

// RoomInfo returns the durable membership record for the claim's room,
// including which member is the peer. A stale claim whose room was
// unpaired gets a 404: claims are never revoked, the room is simply
// gone.
// GET /api/room
func (h *PairingHandler) RoomInfo(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())

	room, err := h.pairing.Room(r.Context(), claims.RoomID)
	if err != nil {
		writeError(w, err)
		return
	}
	if room == nil {
		writeError(w, apperrors.NotFound("Room"))
		return
	}
	if !room.HasDevice(claims.DeviceID) {
		writeError(w, apperrors.Forbidden("Claim does not grant access to this room"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"roomId":       room.ID,
		"deviceA":      room.DeviceA,
		"deviceB":      room.DeviceB,
		"peerDeviceId": room.Peer(claims.DeviceID),
		"createdAt":    room.CreatedAt.Format(time.RFC3339),
	})
}

// Unpair destroys the claim holder's room. Possession of a valid claim
// is the only authorization; repeating the call is a no-op. Live
// sockets stay connected until the clients react to the event.
// POST /api/pairing/unpair
func (h *PairingHandler) Unpair(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())

	if err := h.pairing.Unpair(r.Context(), claims.RoomID); err != nil {
		writeError(w, err)
		return
	}

	h.hub.Broadcast(claims.RoomID, relay.NewFrame(relay.EventUnpaired, nil))

	audit.LogFromRequest(r, audit.Event{
		Type:     audit.EventUnpair,
		DeviceID: claims.DeviceID,
		RoomID:   claims.RoomID,
	})

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
