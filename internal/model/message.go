package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type MessageKind string

const (
	MessageKindText  MessageKind = "text"
	MessageKindVoice MessageKind = "voice"
)

func (k MessageKind) Valid() bool {
	return k == MessageKindText || k == MessageKindVoice
}

// ReplyRef is the quoted excerpt a message replies to. Stored inline as
// jsonb so history survives deletion of the original message.
type ReplyRef struct {
	MessageID string `json:"messageId"`
	Content   string `json:"content"`
	SenderID  string `json:"senderId"`
}

func (r *ReplyRef) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, r)
	case string:
		return json.Unmarshal([]byte(v), r)
	}
	return fmt.Errorf("unsupported reply_to type %T", src)
}

func (r *ReplyRef) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	return json.Marshal(r)
}

// Message is a single chat record. Append-only except for the read
// flag, which transitions false to true exactly once.
type Message struct {
	ID            string      `db:"id" json:"id"`
	RoomID        string      `db:"room_id" json:"roomId"`
	SenderID      string      `db:"sender_id" json:"senderId"`
	Content       string      `db:"content" json:"content"`
	Kind          MessageKind `db:"kind" json:"kind"`
	VoiceURL      *string     `db:"voice_url" json:"voiceUrl,omitempty"`
	VoiceDuration *float64    `db:"voice_duration" json:"voiceDuration,omitempty"`
	ReplyTo       *ReplyRef   `db:"reply_to" json:"replyTo,omitempty"`
	Read          bool        `db:"read" json:"read"`
	Timestamp     time.Time   `db:"created_at" json:"timestamp"`
}

type CreateMessageParams struct {
	RoomID        string
	SenderID      string
	Content       string
	Kind          MessageKind
	VoiceURL      *string
	VoiceDuration *float64
	ReplyTo       *ReplyRef
}
