package chat

import (
	"time"

	"github.com/complydesk/chat-server/internal/types"
)

// Outbound frame types.
const (
	FramePreviousMessages = "previous_messages"
	FrameMessage          = "message"
	FrameSystemMessage    = "system_message"
	FrameUserJoined       = "user_joined"
	FrameUserLeft         = "user_left"
)

// ClientFrame is the payload a connected client sends over the socket.
type ClientFrame struct {
	Content  string         `json:"content"`
	Type     string         `json:"type,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	ReplyTo  string         `json:"reply_to,omitempty"`
}

// ServerFrame is the envelope for everything the server pushes to a client.
type ServerFrame struct {
	Type      string     `json:"type"`
	Data      any        `json:"data"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// PresenceData is the payload of user_joined and user_left frames.
type PresenceData struct {
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}

func NewPreviousMessagesFrame(msgs []types.Message) *ServerFrame {
	if msgs == nil {
		msgs = []types.Message{}
	}
	return &ServerFrame{
		Type: FramePreviousMessages,
		Data: msgs,
	}
}

func NewMessageFrame(msg *types.Message) *ServerFrame {
	return &ServerFrame{
		Type: FrameMessage,
		Data: msg,
	}
}

func NewSystemMessageFrame(text string) *ServerFrame {
	ts := Now()
	return &ServerFrame{
		Type:      FrameSystemMessage,
		Data:      text,
		Timestamp: &ts,
	}
}

func NewUserJoinedFrame(username string) *ServerFrame {
	return &ServerFrame{
		Type: FrameUserJoined,
		Data: PresenceData{Username: username, Timestamp: Now()},
	}
}

func NewUserLeftFrame(username string) *ServerFrame {
	return &ServerFrame{
		Type: FrameUserLeft,
		Data: PresenceData{Username: username, Timestamp: Now()},
	}
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
