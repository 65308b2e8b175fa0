package model

import "time"

// PairingCode is a short-lived one-time code linking the generating
// device to the room that pairing will create. A device has at most one
// pending code at a time; generating a new one supersedes the old.
type PairingCode struct {
	Code      string    `db:"code" json:"code"`
	DeviceID  string    `db:"device_id" json:"deviceId"`
	RoomID    string    `db:"room_id" json:"roomId"`
	Paired    bool      `db:"paired" json:"paired"`
	ExpiresAt time.Time `db:"expires_at" json:"expiresAt"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

func (pc *PairingCode) Expired(now time.Time) bool {
	return now.After(pc.ExpiresAt)
}

type CreatePairingCodeParams struct {
	Code      string
	DeviceID  string
	RoomID    string
	ExpiresAt time.Time
}
