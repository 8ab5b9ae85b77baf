package chat

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/complydesk/chat-server/internal/stats"
	"github.com/complydesk/chat-server/internal/store"
	"github.com/complydesk/chat-server/internal/types"
	"github.com/google/uuid"
)

const (
	// MaxContentLength bounds message content, enforced before persistence.
	MaxContentLength = 1000

	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 100
)

// ValidationError marks a per-message failure that never reaches the
// store. Sessions drop the message and continue.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

type SendMessageParams struct {
	RoomName string
	User     types.User
	Content  string
	Type     types.MessageType
	Metadata map[string]any
	ReplyTo  string
	// ExcludeClientId suppresses delivery back to a live sender. Leave
	// empty for injected messages with no connection of their own.
	ExcludeClientId string
}

// RoomStatistics summarizes a room's persisted history.
type RoomStatistics struct {
	TotalMessages int64          `json:"total_messages"`
	MessagesToday int            `json:"messages_today"`
	MessageTypes  map[string]int `json:"message_types"`
	LastActivity  *time.Time     `json:"last_activity,omitempty"`
}

// Service owns message semantics: validation, server-assigned identity
// and timestamps, and the persist-then-broadcast ordering. It is also
// the entry point other subsystems use to inject system or AI messages
// into a room without a live connection.
type Service struct {
	store       store.MessageStore
	broadcaster *Broadcaster
	log         *log.Logger
	stats       stats.StatsProvider
}

func NewService(st store.MessageStore, broadcaster *Broadcaster, logger *log.Logger, su stats.StatsProvider) *Service {
	su.RegisterMetric("MessagesSent")

	return &Service{
		store:       st,
		broadcaster: broadcaster,
		log:         logger,
		stats:       su,
	}
}

// SendMessage validates, persists, and then broadcasts a message. The
// store write completes before any recipient can observe the message; a
// store failure means nothing was broadcast.
func (s *Service) SendMessage(ctx context.Context, params SendMessageParams) (*types.Message, error) {
	content, err := validateContent(params.Content)
	if err != nil {
		return nil, err
	}
	if params.RoomName == "" {
		return nil, &ValidationError{Field: "room_name", Reason: "must not be empty"}
	}

	kind := params.Type
	if kind == "" {
		kind = types.MessageText
	}

	now := Now()
	msg := &types.Message{
		Id:          uuid.NewString(),
		Content:     content,
		RoomName:    params.RoomName,
		User:        params.User,
		MessageType: kind,
		CreatedAt:   now,
		UpdatedAt:   now,
		Metadata:    params.Metadata,
		ReplyTo:     params.ReplyTo,
	}

	if err := s.store.Append(ctx, msg); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	s.stats.Incr("MessagesSent")

	s.broadcaster.Broadcast(params.RoomName, NewMessageFrame(msg), params.ExcludeClientId)

	return msg, nil
}

// RoomHistory returns a page of the room's messages in ascending time
// order, for replay to a joining client.
func (s *Service) RoomHistory(ctx context.Context, roomName string, limit, skip int64) ([]types.Message, error) {
	return s.store.ListByRoom(ctx, roomName, clampLimit(limit), skip, true)
}

// UserMessages returns a user's messages across rooms, newest first.
func (s *Service) UserMessages(ctx context.Context, userId string, limit, skip int64) ([]types.Message, error) {
	return s.store.ListByUser(ctx, userId, clampLimit(limit), skip)
}

// Search runs a text search within a room, newest first. A blank term
// matches nothing.
func (s *Service) Search(ctx context.Context, roomName, term string, limit int64) ([]types.Message, error) {
	if strings.TrimSpace(term) == "" {
		return []types.Message{}, nil
	}

	return s.store.Search(ctx, roomName, term, clampLimit(limit))
}

// EditMessage updates content and metadata of an existing message. Id,
// room and author never change; the edited flag is set once content does.
func (s *Service) EditMessage(ctx context.Context, id, content string, metadata map[string]any) (*types.Message, error) {
	msg, err := s.store.GetById(ctx, id)
	if err != nil {
		return nil, err
	}

	if content != "" {
		validated, err := validateContent(content)
		if err != nil {
			return nil, err
		}
		msg.Content = validated
		msg.IsEdited = true
	}

	if len(metadata) > 0 {
		if msg.Metadata == nil {
			msg.Metadata = make(map[string]any, len(metadata))
		}
		for k, v := range metadata {
			msg.Metadata[k] = v
		}
	}

	msg.UpdatedAt = Now()

	if err := s.store.Update(ctx, id, store.UpdateMessageParams{
		Content:   msg.Content,
		IsEdited:  msg.IsEdited,
		UpdatedAt: msg.UpdatedAt,
		Metadata:  msg.Metadata,
	}); err != nil {
		return nil, err
	}

	return msg, nil
}

func (s *Service) DeleteMessage(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// ClearRoom deletes a room's entire persisted history and returns the
// number of removed messages.
func (s *Service) ClearRoom(ctx context.Context, roomName string) (int64, error) {
	return s.store.DeleteByRoom(ctx, roomName)
}

// RoomStatistics reports totals plus a per-kind breakdown of today's
// messages.
func (s *Service) RoomStatistics(ctx context.Context, roomName string) (*RoomStatistics, error) {
	total, err := s.store.CountByRoom(ctx, roomName)
	if err != nil {
		return nil, err
	}

	midnight := Now().Truncate(24 * time.Hour)
	recent, err := s.store.ListSince(ctx, roomName, midnight, 1000)
	if err != nil {
		return nil, err
	}

	rs := &RoomStatistics{
		TotalMessages: total,
		MessagesToday: len(recent),
		MessageTypes:  make(map[string]int),
	}
	for _, msg := range recent {
		rs.MessageTypes[string(msg.MessageType)]++
	}
	if len(recent) > 0 {
		rs.LastActivity = &recent[len(recent)-1].CreatedAt
	}

	return rs, nil
}

func validateContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", &ValidationError{Field: "content", Reason: "must not be empty"}
	}
	if len([]rune(content)) > MaxContentLength {
		return "", &ValidationError{
			Field:  "content",
			Reason: fmt.Sprintf("exceeds maximum length of %d characters", MaxContentLength),
		}
	}

	return content, nil
}

func clampLimit(limit int64) int64 {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return limit
}
