package chat

import (
	"fmt"
	"sync"
	"testing"

	"github.com/complydesk/chat-server/internal/stats"
	"github.com/complydesk/chat-server/internal/testutil"
	"github.com/complydesk/chat-server/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// newTestRegistry creates a Registry with relaxed stats expectations.
func newTestRegistry(t *testing.T, su *stats.MockStatsUpdater) *Registry {
	su.On("RegisterMetric", mock.Anything).Twice()
	su.On("Incr", mock.Anything).Maybe()
	su.On("Decr", mock.Anything).Maybe()

	return NewRegistry(testutil.TestLogger(t), su)
}

func newTestClient(t *testing.T, id, room string) *Client {
	return &Client{
		Id:       id,
		RoomName: room,
		User:     types.User{Id: id, Name: "user-" + id},
		send:     make(chan *ServerFrame, sendBufferSize),
		stop:     make(chan struct{}),
		log:      testutil.TestLogger(t),
	}
}

func TestRegister(t *testing.T) {
	t.Run("creates room on first join", func(t *testing.T) {
		su := &stats.MockStatsUpdater{}
		defer su.AssertExpectations(t)
		reg := newTestRegistry(t, su)

		c := newTestClient(t, "client-a", "lobby")
		err := reg.Register(c)
		assert.NoError(t, err, "expected first registration to succeed")
		assert.Equal(t, []string{"client-a"}, reg.ListClients("lobby"), "expected client to be listed in room")
	})

	t.Run("rejects duplicate client id", func(t *testing.T) {
		su := &stats.MockStatsUpdater{}
		defer su.AssertExpectations(t)
		reg := newTestRegistry(t, su)

		assert.NoError(t, reg.Register(newTestClient(t, "client-a", "lobby")))

		err := reg.Register(newTestClient(t, "client-a", "lobby"))
		var dupErr *DuplicateClientError
		assert.ErrorAs(t, err, &dupErr, "expected DuplicateClientError")
		assert.Equal(t, "client-a", dupErr.ClientId)
		assert.Equal(t, "lobby", dupErr.RoomName)
		assert.Len(t, reg.ListClients("lobby"), 1, "expected registry to be unchanged after rejection")
	})

	t.Run("same id in another room is still rejected", func(t *testing.T) {
		su := &stats.MockStatsUpdater{}
		defer su.AssertExpectations(t)
		reg := newTestRegistry(t, su)

		assert.NoError(t, reg.Register(newTestClient(t, "client-a", "lobby")))
		err := reg.Register(newTestClient(t, "client-a", "general"))
		assert.Error(t, err, "expected a connected client id to be unique across rooms")
	})
}

func TestUnregister(t *testing.T) {
	t.Run("removes client and reaps empty room", func(t *testing.T) {
		su := &stats.MockStatsUpdater{}
		defer su.AssertExpectations(t)
		reg := newTestRegistry(t, su)

		c := newTestClient(t, "client-a", "lobby")
		assert.NoError(t, reg.Register(c))

		removed := reg.Unregister("client-a")
		assert.Equal(t, c, removed, "expected removed client to be returned")

		cs := reg.Counts()
		assert.Zero(t, cs.TotalConnections, "expected no connections")
		assert.Zero(t, cs.ActiveRooms, "expected empty room to be removed")
	})

	t.Run("keeps room while occupied", func(t *testing.T) {
		su := &stats.MockStatsUpdater{}
		defer su.AssertExpectations(t)
		reg := newTestRegistry(t, su)

		assert.NoError(t, reg.Register(newTestClient(t, "client-a", "lobby")))
		assert.NoError(t, reg.Register(newTestClient(t, "client-b", "lobby")))

		reg.Unregister("client-a")
		assert.Equal(t, []string{"client-b"}, reg.ListClients("lobby"))
		assert.Equal(t, 1, reg.Counts().ActiveRooms, "expected room to survive while occupied")
	})

	t.Run("unknown client is a no-op", func(t *testing.T) {
		su := &stats.MockStatsUpdater{}
		defer su.AssertExpectations(t)
		reg := newTestRegistry(t, su)

		assert.NotPanics(t, func() {
			assert.Nil(t, reg.Unregister("nobody"), "expected nil for unknown client")
		})
	})
}

func TestListClients_returnsCopy(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)
	reg := newTestRegistry(t, su)

	assert.NoError(t, reg.Register(newTestClient(t, "client-a", "lobby")))

	ids := reg.ListClients("lobby")
	ids[0] = "mutated"

	assert.Equal(t, []string{"client-a"}, reg.ListClients("lobby"), "expected registry to be unaffected by mutation of the returned slice")
}

func TestCounts(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)
	reg := newTestRegistry(t, su)

	assert.NoError(t, reg.Register(newTestClient(t, "client-a", "lobby")))
	assert.NoError(t, reg.Register(newTestClient(t, "client-b", "lobby")))
	assert.NoError(t, reg.Register(newTestClient(t, "client-c", "general")))

	cs := reg.Counts()
	assert.Equal(t, 3, cs.TotalConnections)
	assert.Equal(t, 2, cs.ActiveRooms)
	assert.Equal(t, map[string]int{"lobby": 2, "general": 1}, cs.RoomCounts)
}

func TestRegistry_concurrentChurn(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	reg := newTestRegistry(t, su)

	const numClients = 64
	var wg sync.WaitGroup
	for i := 0; i < numClients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("client-%d", i)
			room := fmt.Sprintf("room-%d", i%4)
			c := newTestClient(t, id, room)
			if err := reg.Register(c); err != nil {
				t.Errorf("register %s: %v", id, err)
				return
			}
			reg.Unregister(id)
		}(i)
	}
	wg.Wait()

	cs := reg.Counts()
	assert.Zero(t, cs.TotalConnections, "expected both indices drained after churn")
	assert.Zero(t, cs.ActiveRooms, "expected all rooms reaped after churn")
}

func TestCloseAll(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	reg := newTestRegistry(t, su)

	a := newTestClient(t, "client-a", "lobby")
	b := newTestClient(t, "client-b", "general")
	assert.NoError(t, reg.Register(a))
	assert.NoError(t, reg.Register(b))

	reg.CloseAll()

	for _, c := range []*Client{a, b} {
		select {
		case <-c.stop:
		default:
			t.Errorf("expected client %q to be signalled to stop", c.Id)
		}
	}
}
