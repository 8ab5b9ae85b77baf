package api

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/complydesk/chat-server/internal/chat"
	"github.com/complydesk/chat-server/internal/sessioncache"
	"github.com/complydesk/chat-server/internal/store"
	"github.com/complydesk/chat-server/internal/types"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
)

// fakeStore is an in-memory MessageStore for socket-level tests, where a
// stateful history matters and a mock's expectation ordering gets in the
// way.
type fakeStore struct {
	mu   sync.Mutex
	msgs []types.Message
}

func (f *fakeStore) Append(ctx context.Context, msg *types.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, *msg)
	return nil
}

func (f *fakeStore) GetById(ctx context.Context, id string) (*types.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.msgs {
		if m.Id == id {
			return &m, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) Update(ctx context.Context, id string, params store.UpdateMessageParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.msgs {
		if f.msgs[i].Id == id {
			f.msgs[i].Content = params.Content
			f.msgs[i].IsEdited = params.IsEdited
			f.msgs[i].UpdatedAt = params.UpdatedAt
			f.msgs[i].Metadata = params.Metadata
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeStore) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.msgs {
		if f.msgs[i].Id == id {
			f.msgs = append(f.msgs[:i], f.msgs[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeStore) ListByRoom(ctx context.Context, roomName string, limit, skip int64, ascending bool) ([]types.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	matched := []types.Message{}
	for _, m := range f.msgs {
		if m.RoomName == roomName {
			matched = append(matched, m)
		}
	}
	if !ascending {
		slices.Reverse(matched)
	}
	if skip >= int64(len(matched)) {
		return []types.Message{}, nil
	}
	matched = matched[skip:]
	if int64(len(matched)) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (f *fakeStore) ListByUser(ctx context.Context, userId string, limit, skip int64) ([]types.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []types.Message{}
	for _, m := range f.msgs {
		if m.User.Id == userId && int64(len(out)) < limit {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) ListSince(ctx context.Context, roomName string, since time.Time, limit int64) ([]types.Message, error) {
	return f.ListByRoom(ctx, roomName, limit, 0, true)
}

func (f *fakeStore) Search(ctx context.Context, roomName, term string, limit int64) ([]types.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []types.Message{}
	for _, m := range f.msgs {
		if m.RoomName == roomName && strings.Contains(m.Content, term) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) CountByRoom(ctx context.Context, roomName string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, m := range f.msgs {
		if m.RoomName == roomName {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) DeleteByRoom(ctx context.Context, roomName string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.msgs[:0]
	var n int64
	for _, m := range f.msgs {
		if m.RoomName == roomName {
			n++
			continue
		}
		kept = append(kept, m)
	}
	f.msgs = kept
	return n, nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

// fakeSessionCache records session bookkeeping in memory.
type fakeSessionCache struct {
	mu      sync.Mutex
	records map[string]sessioncache.Session
}

func newFakeSessionCache() *fakeSessionCache {
	return &fakeSessionCache{records: map[string]sessioncache.Session{}}
}

func (f *fakeSessionCache) Set(ctx context.Context, sess sessioncache.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[sess.ClientId] = sess
	return nil
}

func (f *fakeSessionCache) Get(ctx context.Context, clientId string) (*sessioncache.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sess, ok := f.records[clientId]
	if !ok {
		return nil, sessioncache.ErrNotFound
	}
	return &sess, nil
}

func (f *fakeSessionCache) Delete(ctx context.Context, clientId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, clientId)
	return nil
}

func (f *fakeSessionCache) Extend(ctx context.Context, clientId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[clientId]; !ok {
		return sessioncache.ErrNotFound
	}
	return nil
}

func (f *fakeSessionCache) username(clientId string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sess, ok := f.records[clientId]
	return sess.Username, ok
}

// wireFrame mirrors the outbound envelope with the payload left raw so
// each assertion can decode what it expects.
type wireFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func dialWs(t *testing.T, srv *httptest.Server, clientId, roomName, displayName string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + clientId + "/" + roomName + "/" + displayName
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) wireFrame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame wireFrame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return frame
}

func presenceName(t *testing.T, frame wireFrame) string {
	t.Helper()
	var data chat.PresenceData
	assert.NoError(t, json.Unmarshal(frame.Data, &data))
	return data.Username
}

func TestChatSessionLifecycle(t *testing.T) {
	st := &fakeStore{}
	app, reg := newTestApp(t, st)
	srv := httptest.NewServer(app.mux.Handler)
	defer srv.Close()

	// Alice joins an empty room: she sees her own join notice, then an
	// empty history replay.
	alice := dialWs(t, srv, "client-a", "lobby", "Alice")

	frame := readFrame(t, alice)
	assert.Equal(t, chat.FrameUserJoined, frame.Type)
	assert.Equal(t, "Alice", presenceName(t, frame))

	frame = readFrame(t, alice)
	assert.Equal(t, chat.FramePreviousMessages, frame.Type)
	var history []types.Message
	assert.NoError(t, json.Unmarshal(frame.Data, &history))
	assert.Empty(t, history)

	// Alice speaks twice. She must not hear her own echo, and both
	// messages must be persisted before anyone else joins.
	err := alice.WriteJSON(chat.ClientFrame{Content: "hi"})
	assert.NoError(t, err)
	assert.Eventually(t, func() bool { return st.count() == 1 },
		2*time.Second, 10*time.Millisecond, "expected the first message to be persisted")
	err = alice.WriteJSON(chat.ClientFrame{Content: "anyone around"})
	assert.NoError(t, err)
	assert.Eventually(t, func() bool { return st.count() == 2 },
		2*time.Second, 10*time.Millisecond, "expected the second message to be persisted")

	// Bob joins: his replay carries Alice's messages oldest first, and
	// Alice sees his join notice but never the messages she sent.
	bob := dialWs(t, srv, "client-b", "lobby", "Bob")

	frame = readFrame(t, bob)
	assert.Equal(t, chat.FrameUserJoined, frame.Type)
	assert.Equal(t, "Bob", presenceName(t, frame))

	frame = readFrame(t, bob)
	assert.Equal(t, chat.FramePreviousMessages, frame.Type)
	assert.NoError(t, json.Unmarshal(frame.Data, &history))
	if assert.Len(t, history, 2) {
		assert.Equal(t, "hi", history[0].Content, "expected replay in ascending time order")
		assert.Equal(t, "anyone around", history[1].Content)
		assert.Equal(t, "Alice", history[0].User.Name)
	}

	frame = readFrame(t, alice)
	assert.Equal(t, chat.FrameUserJoined, frame.Type, "expected Bob's join, not an echo of hi")
	assert.Equal(t, "Bob", presenceName(t, frame))

	// Bob replies and Alice receives it live.
	err = bob.WriteJSON(chat.ClientFrame{Content: "there"})
	assert.NoError(t, err)

	frame = readFrame(t, alice)
	assert.Equal(t, chat.FrameMessage, frame.Type)
	var msg types.Message
	assert.NoError(t, json.Unmarshal(frame.Data, &msg))
	assert.Equal(t, "there", msg.Content)
	assert.Equal(t, "Bob", msg.User.Name)

	// Alice leaves and Bob is told.
	alice.Close()

	frame = readFrame(t, bob)
	assert.Equal(t, chat.FrameUserLeft, frame.Type)
	assert.Equal(t, "Alice", presenceName(t, frame))

	assert.Eventually(t, func() bool {
		return reg.Counts().TotalConnections == 1
	}, 2*time.Second, 10*time.Millisecond, "expected Alice to be unregistered")
}

func TestServeWs_duplicateClientId(t *testing.T) {
	app, _ := newTestApp(t, &fakeStore{})
	cache := newFakeSessionCache()
	app.sessions = cache
	srv := httptest.NewServer(app.mux.Handler)
	defer srv.Close()

	first := dialWs(t, srv, "client-a", "lobby", "Alice")
	readFrame(t, first) // user_joined
	readFrame(t, first) // previous_messages

	assert.Eventually(t, func() bool {
		_, ok := cache.username("client-a")
		return ok
	}, 2*time.Second, 10*time.Millisecond, "expected a session record after the join")

	second := dialWs(t, srv, "client-a", "lobby", "Impostor")
	second.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := second.ReadMessage()

	var closeErr *websocket.CloseError
	assert.ErrorAs(t, err, &closeErr, "expected a close frame, got %v", err)
	assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)

	// the original connection is unaffected
	err = first.WriteJSON(chat.ClientFrame{Content: "still here"})
	assert.NoError(t, err)

	// and so is its session record: the rejected connection must neither
	// overwrite nor delete it
	name, ok := cache.username("client-a")
	assert.True(t, ok, "expected the session record to survive the rejection")
	assert.Equal(t, "Alice", name)

	sess, err := cache.Get(context.Background(), "client-a")
	assert.NoError(t, err)
	assert.Equal(t, "lobby", sess.RoomName)
}
