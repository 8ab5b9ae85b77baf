package store

import (
	"context"
	"time"

	"github.com/complydesk/chat-server/internal/types"
	"github.com/stretchr/testify/mock"
)

type MockMessageStore struct {
	mock.Mock
}

func (m *MockMessageStore) Append(ctx context.Context, msg *types.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}
func (m *MockMessageStore) GetById(ctx context.Context, id string) (*types.Message, error) {
	args := m.Called(ctx, id)
	if msg, ok := args.Get(0).(*types.Message); ok {
		return msg, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockMessageStore) Update(ctx context.Context, id string, params UpdateMessageParams) error {
	args := m.Called(ctx, id, params)
	return args.Error(0)
}
func (m *MockMessageStore) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
func (m *MockMessageStore) ListByRoom(ctx context.Context, roomName string, limit, skip int64, ascending bool) ([]types.Message, error) {
	args := m.Called(ctx, roomName, limit, skip, ascending)
	if msgs, ok := args.Get(0).([]types.Message); ok {
		return msgs, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockMessageStore) ListByUser(ctx context.Context, userId string, limit, skip int64) ([]types.Message, error) {
	args := m.Called(ctx, userId, limit, skip)
	if msgs, ok := args.Get(0).([]types.Message); ok {
		return msgs, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockMessageStore) ListSince(ctx context.Context, roomName string, since time.Time, limit int64) ([]types.Message, error) {
	args := m.Called(ctx, roomName, since, limit)
	if msgs, ok := args.Get(0).([]types.Message); ok {
		return msgs, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockMessageStore) Search(ctx context.Context, roomName, term string, limit int64) ([]types.Message, error) {
	args := m.Called(ctx, roomName, term, limit)
	if msgs, ok := args.Get(0).([]types.Message); ok {
		return msgs, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockMessageStore) CountByRoom(ctx context.Context, roomName string) (int64, error) {
	args := m.Called(ctx, roomName)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockMessageStore) DeleteByRoom(ctx context.Context, roomName string) (int64, error) {
	args := m.Called(ctx, roomName)
	return args.Get(0).(int64), args.Error(1)
}
