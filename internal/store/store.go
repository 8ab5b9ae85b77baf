package store

import (
	"context"
	"errors"
	"time"

	"github.com/complydesk/chat-server/internal/types"
)

// ErrNotFound is returned when no message matches the given id.
var ErrNotFound = errors.New("store: message not found")

// UpdateMessageParams carries the only fields an edit may touch.
type UpdateMessageParams struct {
	Content   string
	IsEdited  bool
	UpdatedAt time.Time
	Metadata  map[string]any
}

// MessageStore is the persistence contract the messaging core consumes.
// The engine behind it provides its own atomicity for single-document
// writes; the core never spans multiple messages in one operation.
type MessageStore interface {
	Append(ctx context.Context, msg *types.Message) error
	GetById(ctx context.Context, id string) (*types.Message, error)
	Update(ctx context.Context, id string, params UpdateMessageParams) error
	Delete(ctx context.Context, id string) error
	ListByRoom(ctx context.Context, roomName string, limit, skip int64, ascending bool) ([]types.Message, error)
	ListByUser(ctx context.Context, userId string, limit, skip int64) ([]types.Message, error)
	ListSince(ctx context.Context, roomName string, since time.Time, limit int64) ([]types.Message, error)
	Search(ctx context.Context, roomName, term string, limit int64) ([]types.Message, error)
	CountByRoom(ctx context.Context, roomName string) (int64, error)
	DeleteByRoom(ctx context.Context, roomName string) (int64, error)
}
