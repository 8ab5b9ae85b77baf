package types

import "time"

// MessageType discriminates the kinds of messages carried in a room.
type MessageType string

const (
	MessageText       MessageType = "text"
	MessageFile       MessageType = "file"
	MessageSystem     MessageType = "system"
	MessageAIResponse MessageType = "ai_response"
)

// ParseMessageType maps a wire value to a MessageType. An empty value
// means text. The second return is false for unknown values.
func ParseMessageType(s string) (MessageType, bool) {
	switch MessageType(s) {
	case "":
		return MessageText, true
	case MessageText, MessageFile, MessageSystem, MessageAIResponse:
		return MessageType(s), true
	default:
		return "", false
	}
}

// User is the session-scoped identity attached to a connection and to
// every message it authors. It is not a managed account.
type User struct {
	Id     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// Message is a persisted chat event. Id, RoomName and User are fixed at
// creation; edits touch Content, Metadata, UpdatedAt and IsEdited only.
type Message struct {
	Id          string         `json:"id"`
	Content     string         `json:"content"`
	RoomName    string         `json:"room_name"`
	User        User           `json:"user"`
	MessageType MessageType    `json:"message_type"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	IsEdited    bool           `json:"is_edited"`
	ReplyTo     string         `json:"reply_to,omitempty"`
}
