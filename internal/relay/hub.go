// Package relay is the real-time event router. It accepts inbound
// frames from live connections, authorizes them against the session
// table, persists chat messages, and fans events out to the other
// member of the room.
package relay

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/duochat/duochat-server/internal/model"
	"github.com/duochat/duochat-server/internal/service"
	"github.com/duochat/duochat-server/internal/session"
	"github.com/duochat/duochat-server/internal/token"
)

// Hub tracks which connections are joined to which device- and
// room-scoped channels. The session table is injected rather than
// ambient; the hub is its only writer.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]bool
	devices map[string]map[*Client]bool

	sessions *session.Table
	issuer   *token.Issuer
	messages *service.MessageService
}

func NewHub(sessions *session.Table, issuer *token.Issuer, messages *service.MessageService) *Hub {
	return &Hub{
		rooms:    make(map[string]map[*Client]bool),
		devices:  make(map[string]map[*Client]bool),
		sessions: sessions,
		issuer:   issuer,
		messages: messages,
	}
}

// HandleConnection runs a freshly upgraded connection until it closes.
// Called from the websocket HTTP handler; blocks for the connection's
// lifetime.
func (h *Hub) HandleConnection(conn *websocket.Conn) {
	c := newClient(h, conn)
	go c.writePump()
	c.readPump()
}

func (h *Hub) dispatch(c *Client, frame Frame) {
	switch frame.Event {
	case EventRegisterDevice:
		h.handleRegisterDevice(c, frame)
	case EventJoinRoom:
		h.handleJoinRoom(c, frame)
	case EventSendMessage:
		h.handleSendMessage(c, frame)
	case EventMessageRead:
		h.handleMessageRead(c, frame)
	case EventCallOffer:
		h.handleCallOffer(c, frame)
	case EventCallAnswer:
		h.relayToPeers(c, EventCallAnswer, frame.Data)
	case EventICECandidate:
		h.relayToPeers(c, EventICECandidate, frame.Data)
	case EventCallEnd:
		h.relayToPeers(c, EventCallEnded, nil)
	default:
		log.Debug().Str("event", frame.Event).Msg("ignoring unknown event")
	}
}

// handleRegisterDevice joins the private device-scoped channel. The
// device id is self-asserted here; it only exists so the pairing
// success can be pushed to the code generator, which never calls the
// REST enter endpoint. Room access still requires a verified claim.
func (h *Hub) handleRegisterDevice(c *Client, frame Frame) {
	var payload struct {
		DeviceID string `json:"deviceId"`
	}
	if err := json.Unmarshal(frame.Data, &payload); err != nil || payload.DeviceID == "" {
		return
	}

	h.mu.Lock()
	if c.deviceID != "" {
		h.removeFromSet(h.devices, c.deviceID, c)
	}
	c.deviceID = payload.DeviceID
	h.addToSet(h.devices, payload.DeviceID, c)
	h.mu.Unlock()

	log.Debug().Str("deviceId", payload.DeviceID).Msg("device channel joined")
}

func (h *Hub) handleJoinRoom(c *Client, frame Frame) {
	var payload struct {
		RoomID string `json:"roomId"`
		Claim  string `json:"claim"`
	}
	if err := json.Unmarshal(frame.Data, &payload); err != nil {
		c.enqueue(errorFrame("malformed joinRoom payload"))
		return
	}

	claims, err := h.issuer.Verify(payload.Claim)
	if err != nil {
		c.enqueue(errorFrame("invalid claim"))
		return
	}
	if claims.RoomID != payload.RoomID {
		c.enqueue(errorFrame("claim does not grant access to this room"))
		return
	}

	h.mu.Lock()
	if c.roomID != "" {
		h.removeFromSet(h.rooms, c.roomID, c)
	}
	c.roomID = claims.RoomID
	h.addToSet(h.rooms, claims.RoomID, c)
	h.mu.Unlock()

	h.sessions.Bind(c, claims.DeviceID, claims.RoomID)

	h.broadcastExcept(claims.RoomID, NewFrame(EventPeerOnline, map[string]string{
		"deviceId": claims.DeviceID,
	}), c)

	log.Info().
		Str("deviceId", claims.DeviceID).
		Str("roomId", claims.RoomID).
		Msg("room joined")
}

func (h *Hub) handleSendMessage(c *Client, frame Frame) {
	sess, ok := h.sessions.Lookup(c)
	if !ok {
		// No session means the caller never joined; there is no meaningful
		// channel to report the error on.
		return
	}

	var payload struct {
		Content       string            `json:"content"`
		Kind          model.MessageKind `json:"kind"`
		ReplyTo       *model.ReplyRef   `json:"replyTo,omitempty"`
		VoiceURL      *string           `json:"voiceUrl,omitempty"`
		VoiceDuration *float64          `json:"voiceDuration,omitempty"`
	}
	if err := json.Unmarshal(frame.Data, &payload); err != nil {
		h.ack(c, frame.AckID, false, "")
		return
	}

	msg, err := h.messages.Append(context.Background(), model.CreateMessageParams{
		RoomID:        sess.RoomID,
		SenderID:      sess.DeviceID,
		Content:       payload.Content,
		Kind:          payload.Kind,
		VoiceURL:      payload.VoiceURL,
		VoiceDuration: payload.VoiceDuration,
		ReplyTo:       payload.ReplyTo,
	})
	if err != nil {
		log.Error().Err(err).Str("roomId", sess.RoomID).Msg("failed to persist message")
		h.ack(c, frame.AckID, false, "")
		return
	}

	// The sender receives the broadcast too: the server-confirmed record
	// carries the assigned id and timestamp, unlike the client's
	// optimistic copy.
	h.Broadcast(sess.RoomID, NewFrame(EventNewMessage, msg))
	h.ack(c, frame.AckID, true, msg.ID)
}

func (h *Hub) handleMessageRead(c *Client, frame Frame) {
	sess, ok := h.sessions.Lookup(c)
	if !ok {
		return
	}

	var payload struct {
		MessageID string `json:"messageId"`
	}
	if err := json.Unmarshal(frame.Data, &payload); err != nil || payload.MessageID == "" {
		return
	}

	if _, err := h.messages.MarkRead(context.Background(), payload.MessageID); err != nil {
		log.Debug().Err(err).Str("messageId", payload.MessageID).Msg("mark read failed")
		return
	}

	h.broadcastExcept(sess.RoomID, NewFrame(EventMessageRead, map[string]string{
		"messageId": payload.MessageID,
	}), c)
}

func (h *Hub) handleCallOffer(c *Client, frame Frame) {
	sess, ok := h.sessions.Lookup(c)
	if !ok {
		return
	}

	// Signaling blobs are opaque; the only server addition is the
	// sender's identity so the callee knows who is ringing.
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(frame.Data, &payload); err != nil {
		return
	}
	if payload == nil {
		payload = map[string]json.RawMessage{}
	}
	fromDevice, _ := json.Marshal(sess.DeviceID)
	payload["fromDevice"] = fromDevice

	h.broadcastExcept(sess.RoomID, NewFrame(EventCallOffer, payload), c)
}

// relayToPeers forwards an opaque payload to the other members of the
// caller's room. Operations requiring a session silently no-op without
// one.
func (h *Hub) relayToPeers(c *Client, event string, data json.RawMessage) {
	sess, ok := h.sessions.Lookup(c)
	if !ok {
		return
	}
	h.broadcastExcept(sess.RoomID, Frame{Event: event, Data: data}, c)
}

func (h *Hub) ack(c *Client, ackID string, success bool, messageID string) {
	data := map[string]any{"success": success}
	if messageID != "" {
		data["messageId"] = messageID
	}
	frame := NewFrame(EventAck, data)
	frame.AckID = ackID
	c.enqueue(frame)
}

// disconnect is the terminal transition for a connection: channel
// memberships are dropped, the session entry is removed, and the rest
// of the room learns the peer went offline. Safe to reach for
// connections that never registered or joined.
func (h *Hub) disconnect(c *Client) {
	h.mu.Lock()
	if c.deviceID != "" {
		h.removeFromSet(h.devices, c.deviceID, c)
		c.deviceID = ""
	}
	if c.roomID != "" {
		h.removeFromSet(h.rooms, c.roomID, c)
		c.roomID = ""
	}
	h.mu.Unlock()

	if sess, ok := h.sessions.Unbind(c); ok {
		h.broadcastExcept(sess.RoomID, NewFrame(EventPeerOffline, map[string]string{
			"deviceId": sess.DeviceID,
		}), c)
		log.Info().Str("deviceId", sess.DeviceID).Str("roomId", sess.RoomID).Msg("peer disconnected")
	}

	c.closeSend()
}

// PublishToDevice delivers a frame to every connection registered on
// the device-scoped channel. Used to push pairing success to the code
// generator.
func (h *Hub) PublishToDevice(deviceID string, frame Frame) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.devices[deviceID]))
	for c := range h.devices[deviceID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.enqueue(frame)
	}
}

// Broadcast delivers a frame to every connection in the room, sender
// included.
func (h *Hub) Broadcast(roomID string, frame Frame) {
	h.broadcastExcept(roomID, frame, nil)
}

func (h *Hub) broadcastExcept(roomID string, frame Frame, except *Client) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.rooms[roomID]))
	for c := range h.rooms[roomID] {
		if c != except {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.enqueue(frame)
	}
}

// RoomClientCount reports how many connections are joined to the room.
func (h *Hub) RoomClientCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

func (h *Hub) addToSet(sets map[string]map[*Client]bool, key string, c *Client) {
	if sets[key] == nil {
		sets[key] = make(map[*Client]bool)
	}
	sets[key][c] = true
}

func (h *Hub) removeFromSet(sets map[string]map[*Client]bool, key string, c *Client) {
	if clients, ok := sets[key]; ok {
		delete(clients, c)
		if len(clients) == 0 {
			delete(sets, key)
		}
	}
}
