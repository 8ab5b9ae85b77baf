package chat

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/complydesk/chat-server/internal/types"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256
)

// Client is one live socket. It is owned by the Registry from Register
// until Unregister; the write pump is its only writer to the connection.
type Client struct {
	Id       string
	RoomName string
	User     types.User

	conn     *websocket.Conn
	log      *log.Logger
	send     chan *ServerFrame
	stop     chan struct{}
	stopOnce sync.Once
}

func NewClient(id, roomName string, user types.User, conn *websocket.Conn, l *log.Logger) *Client {
	return &Client{
		Id:       id,
		RoomName: roomName,
		User:     user,
		conn:     conn,
		log:      l,
		send:     make(chan *ServerFrame, sendBufferSize),
		stop:     make(chan struct{}),
	}
}

// WritePump drains the send buffer onto the socket and keeps the
// connection alive with pings. It closes the connection on exit, which
// unblocks the session's read loop.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := serializeFrame(frame)
			if err != nil {
				c.log.Println("failed to serialize frame:", err)
				continue
			}

			if !c.writeMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.writeMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

// queueFrame enqueues a frame for the write pump. It returns false when
// the buffer is full, which callers treat as a dead peer.
func (c *Client) queueFrame(frame *ServerFrame) bool {
	select {
	case c.send <- frame:
	default:
		c.log.Printf("send buffer full for client %q", c.Id)
		return false
	}

	return true
}

func (c *Client) writeMessage(msgType int, data []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, data); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

// Close signals the write pump to exit. Safe to call more than once and
// from any goroutine.
func (c *Client) Close() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

func serializeFrame(frame *ServerFrame) ([]byte, error) {
	return json.Marshal(frame)
}
