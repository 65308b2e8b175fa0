package relay

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
)

// Frame is the wire format of the duplex channel: a named event with a
// JSON payload. AckID correlates a request frame with its ack frame for
// the one acked operation (sendMessage).
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	AckID string          `json:"ackId,omitempty"`
}

// Inbound events
const (
	EventRegisterDevice = "registerDevice"
	EventJoinRoom       = "joinRoom"
	EventSendMessage    = "sendMessage"
	EventMessageRead    = "messageRead"
	EventCallOffer      = "callOffer"
	EventCallAnswer     = "callAnswer"
	EventICECandidate   = "iceCandidate"
	EventCallEnd        = "callEnd"
)

// Outbound events
const (
	EventPaired      = "paired"
	EventPeerOnline  = "peerOnline"
	EventNewMessage  = "newMessage"
	EventChatCleared = "chatCleared"
	EventUnpaired    = "unpaired"
	EventCallEnded   = "callEnded"
	EventPeerOffline = "peerOffline"
	EventError       = "error"
	EventAck         = "ack"
)

// NewFrame builds an outbound frame, marshalling data to JSON.
func NewFrame(event string, data any) Frame {
	if data == nil {
		return Frame{Event: event}
	}

	raw, err := json.Marshal(data)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("failed to marshal event payload")
		return Frame{Event: event}
	}
	return Frame{Event: event, Data: raw}
}

func errorFrame(reason string) Frame {
	return NewFrame(EventError, map[string]string{"reason": reason})
}
