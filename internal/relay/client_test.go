package relay

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/duochat/duochat-server/internal/service"
	"github.com/duochat/duochat-server/internal/session"
	"github.com/duochat/duochat-server/internal/token"
)

func newBareHub() *Hub {
	return NewHub(session.NewTable(), token.NewIssuer(testSecret), service.NewMessageService(newMemMessageRepo()))
}

func TestClientSendLifecycle(t *testing.T) {
	t.Run("enqueue after close is dropped, not a panic", func(t *testing.T) {
		c := newClient(newBareHub(), nil)

		c.closeSend()
		c.enqueue(NewFrame(EventPaired, nil))
	})

	t.Run("closing twice is a no-op", func(t *testing.T) {
		c := newClient(newBareHub(), nil)

		c.closeSend()
		c.closeSend()
	})

	t.Run("frames enqueued before close stay readable", func(t *testing.T) {
		c := newClient(newBareHub(), nil)

		c.enqueue(NewFrame(EventPeerOnline, map[string]string{"deviceId": "device-a"}))
		c.closeSend()

		frame, ok := <-c.send
		assert.True(t, ok)
		assert.Equal(t, EventPeerOnline, frame.Event)

		_, ok = <-c.send
		assert.False(t, ok)
	})

	t.Run("concurrent enqueue and close never panics", func(t *testing.T) {
		for i := 0; i < 200; i++ {
			c := newClient(newBareHub(), nil)

			var wg sync.WaitGroup
			for g := 0; g < 4; g++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for j := 0; j < 50; j++ {
						c.enqueue(NewFrame(EventNewMessage, nil))
					}
				}()
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				c.closeSend()
			}()
			wg.Wait()
		}
	})
}

// Broadcast targets are snapshotted under hub.mu but delivered after it
// is released, so delivery can race the target's teardown.
func TestPublishRacingDisconnect(t *testing.T) {
	hub := newBareHub()
	frame := NewFrame(EventPaired, map[string]string{"roomId": "room-1"})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5000; i++ {
			hub.PublishToDevice("device-a", frame)
		}
	}()

	for i := 0; i < 5000; i++ {
		c := newClient(hub, nil)
		hub.mu.Lock()
		c.deviceID = "device-a"
		hub.addToSet(hub.devices, "device-a", c)
		hub.mu.Unlock()

		hub.disconnect(c)
	}
	<-done
}
