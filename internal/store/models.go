package store

import (
	"time"

	"github.com/complydesk/chat-server/internal/types"
)

type userDoc struct {
	Id     string `bson:"id"`
	Name   string `bson:"name"`
	Avatar string `bson:"avatar,omitempty"`
}

type messageDoc struct {
	Id          string         `bson:"_id"`
	Content     string         `bson:"content"`
	RoomName    string         `bson:"room_name"`
	User        userDoc        `bson:"user"`
	MessageType string         `bson:"message_type"`
	CreatedAt   time.Time      `bson:"created_at"`
	UpdatedAt   time.Time      `bson:"updated_at"`
	Metadata    map[string]any `bson:"metadata,omitempty"`
	IsEdited    bool           `bson:"is_edited"`
	ReplyTo     string         `bson:"reply_to,omitempty"`
}

func newMessageDoc(msg *types.Message) messageDoc {
	return messageDoc{
		Id:       msg.Id,
		Content:  msg.Content,
		RoomName: msg.RoomName,
		User: userDoc{
			Id:     msg.User.Id,
			Name:   msg.User.Name,
			Avatar: msg.User.Avatar,
		},
		MessageType: string(msg.MessageType),
		CreatedAt:   msg.CreatedAt,
		UpdatedAt:   msg.UpdatedAt,
		Metadata:    msg.Metadata,
		IsEdited:    msg.IsEdited,
		ReplyTo:     msg.ReplyTo,
	}
}

func (d messageDoc) toMessage() types.Message {
	kind, ok := types.ParseMessageType(d.MessageType)
	if !ok {
		kind = types.MessageText
	}

	return types.Message{
		Id:       d.Id,
		Content:  d.Content,
		RoomName: d.RoomName,
		User: types.User{
			Id:     d.User.Id,
			Name:   d.User.Name,
			Avatar: d.User.Avatar,
		},
		MessageType: kind,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
		Metadata:    d.Metadata,
		IsEdited:    d.IsEdited,
		ReplyTo:     d.ReplyTo,
	}
}
