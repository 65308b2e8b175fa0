package model

import "time"

// Room is the durable record of a paired device couple. Membership is
// immutable once created; the row is deleted on unpair.
type Room struct {
	ID        string    `db:"id" json:"roomId"`
	DeviceA   string    `db:"device_a" json:"deviceA"`
	DeviceB   string    `db:"device_b" json:"deviceB"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Peer returns the other member of the room, or "" when the given
// device is not a member.
func (r *Room) Peer(deviceID string) string {
	switch deviceID {
	case r.DeviceA:
		return r.DeviceB
	case r.DeviceB:
		return r.DeviceA
	}
	return ""
}

func (r *Room) HasDevice(deviceID string) bool {
	return deviceID == r.DeviceA || deviceID == r.DeviceB
}
