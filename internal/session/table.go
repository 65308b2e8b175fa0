// Package session holds the process-local table of live relay
// connections. The table is a best-effort cache of who is online right
// now; the room directory in the database remains the durable truth of
// membership.
package session

import "sync"

// Session records which device and room a live connection represents.
type Session struct {
	DeviceID string
	RoomID   string
}

// Table maps a connection handle to its Session. One physical
// connection holds at most one entry at a time; rebinding a handle
// overwrites the prior value. The zero key space is whatever the caller
// uses as handles (the relay uses its *Client pointers).
type Table struct {
	mu       sync.RWMutex
	sessions map[any]Session
}

func NewTable() *Table {
	return &Table{sessions: make(map[any]Session)}
}

// Bind associates handle with the given device and room, replacing any
// prior binding for that handle.
func (t *Table) Bind(handle any, deviceID, roomID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions[handle] = Session{DeviceID: deviceID, RoomID: roomID}
}

func (t *Table) Lookup(handle any) (Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sessions[handle]
	return s, ok
}

// Unbind removes the handle's entry and returns the prior value.
func (t *Table) Unbind(handle any) (Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[handle]
	if ok {
		delete(t.sessions, handle)
	}
	return s, ok
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}
