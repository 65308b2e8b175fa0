package relay

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum frame size allowed from peer. Signaling payloads (SDP
	// offers) run to a few KB.
	maxFrameSize = 64 * 1024

	sendBufferSize = 256
)

// Client is one live duplex connection. Its pointer identity is the
// connection handle used as the session table key.
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	// sendMu serializes enqueue against closeSend. Broadcasters snapshot
	// their targets under hub.mu but deliver after releasing it, so a
	// frame can arrive for a client that is concurrently tearing down.
	sendMu sync.Mutex
	closed bool
	send   chan Frame

	// Channel memberships, mutated only under hub.mu.
	deviceID string
	roomID   string
}

func newClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan Frame, sendBufferSize),
	}
}

// enqueue hands a frame to the write pump without blocking; a slow
// consumer drops frames rather than stalling the relay. Frames for a
// closed client are dropped.
func (c *Client) enqueue(frame Frame) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return
	}

	select {
	case c.send <- frame:
	default:
		log.Warn().Str("event", frame.Event).Msg("client send buffer full, dropping frame")
	}
}

func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// readPump pumps inbound frames from the connection into the hub
// dispatcher. It runs on the connection's handler goroutine, so every
// event from one connection is processed in arrival order.
func (c *Client) readPump() {
	defer func() {
		c.hub.disconnect(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var frame Frame
		if err := c.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Msg("websocket read error")
			}
			return
		}
		c.hub.dispatch(c, frame)
	}
}

// writePump pumps frames from the send channel to the connection and
// keeps the connection alive with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(frame); err != nil {
				log.Debug().Err(err).Str("event", frame.Event).Msg("websocket write failed")
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
