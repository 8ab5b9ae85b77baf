package chat

import (
	"errors"
	"log"

	"github.com/complydesk/chat-server/internal/stats"
)

// ErrSendBufferFull is returned by SendDirect when the target client's
// send buffer cannot accept the frame.
var ErrSendBufferFull = errors.New("chat: client send buffer full")

// Broadcaster fans frames out to a room's connections. It never holds
// the registry lock across a send; delivery works on a snapshot.
type Broadcaster struct {
	registry *Registry
	log      *log.Logger
	stats    stats.StatsProvider
}

func NewBroadcaster(registry *Registry, logger *log.Logger, su stats.StatsProvider) *Broadcaster {
	su.RegisterMetric("BroadcastsSent")

	return &Broadcaster{
		registry: registry,
		log:      logger,
		stats:    su,
	}
}

// Broadcast delivers the frame to every client in the room except
// excludeClientId. A peer that cannot accept the frame is treated as
// disconnected: it is unregistered and closed, and delivery to the
// remaining peers continues. Returns the number of successful deliveries.
func (b *Broadcaster) Broadcast(roomName string, frame *ServerFrame, excludeClientId string) int {
	sent := 0
	for _, c := range b.registry.Snapshot(roomName) {
		if excludeClientId != "" && c.Id == excludeClientId {
			continue
		}

		if !c.queueFrame(frame) {
			b.log.Printf("evicting unresponsive client %q from room %q", c.Id, roomName)
			b.registry.Unregister(c.Id)
			c.Close()
			continue
		}

		sent++
	}

	b.stats.Incr("BroadcastsSent")
	return sent
}

// SendDirect delivers a frame to exactly one client. Unlike Broadcast,
// failure is reported to the caller, which owns that client's lifecycle.
func (b *Broadcaster) SendDirect(c *Client, frame *ServerFrame) error {
	if !c.queueFrame(frame) {
		return ErrSendBufferFull
	}

	return nil
}

// SendSystemNotice broadcasts a server-generated text notice to a room.
func (b *Broadcaster) SendSystemNotice(roomName, text string) int {
	return b.Broadcast(roomName, NewSystemMessageFrame(text), "")
}

func (b *Broadcaster) NotifyUserJoined(roomName, username string) int {
	return b.Broadcast(roomName, NewUserJoinedFrame(username), "")
}

func (b *Broadcaster) NotifyUserLeft(roomName, username string) int {
	return b.Broadcast(roomName, NewUserLeftFrame(username), "")
}
