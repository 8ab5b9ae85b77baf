package chat

import (
	"fmt"
	"log"
	"sync"

	"github.com/complydesk/chat-server/internal/stats"
)

// DuplicateClientError is returned by Register when a client id is
// already connected. Callers must not admit the new connection.
type DuplicateClientError struct {
	ClientId string
	RoomName string
}

func (e *DuplicateClientError) Error() string {
	return fmt.Sprintf("client %q already registered in room %q", e.ClientId, e.RoomName)
}

// ConnectionStats is a point-in-time view of the registry.
type ConnectionStats struct {
	TotalConnections int            `json:"total_connections"`
	ActiveRooms      int            `json:"active_rooms"`
	RoomCounts       map[string]int `json:"room_stats"`
}

// Registry tracks live connections in two indices, room -> clients and
// client -> room, mutated together under one lock. A room exists exactly
// as long as it has at least one connection.
type Registry struct {
	mu          sync.Mutex
	rooms       map[string]map[string]*Client
	clientRooms map[string]string
	log         *log.Logger
	stats       stats.StatsProvider
}

func NewRegistry(logger *log.Logger, su stats.StatsProvider) *Registry {
	su.RegisterMetric("NumActiveConnections")
	su.RegisterMetric("NumActiveRooms")

	return &Registry{
		rooms:       make(map[string]map[string]*Client),
		clientRooms: make(map[string]string),
		log:         logger,
		stats:       su,
	}
}

// Register adds the client under its room, creating the room entry on
// first join. A client id may be connected to at most one room.
func (r *Registry) Register(c *Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if room, ok := r.clientRooms[c.Id]; ok {
		return &DuplicateClientError{ClientId: c.Id, RoomName: room}
	}

	clients, ok := r.rooms[c.RoomName]
	if !ok {
		clients = make(map[string]*Client)
		r.rooms[c.RoomName] = clients
		r.stats.Incr("NumActiveRooms")
	}

	clients[c.Id] = c
	r.clientRooms[c.Id] = c.RoomName
	r.stats.Incr("NumActiveConnections")

	return nil
}

// Unregister removes the client and reaps its room if that was the last
// connection. Unknown ids are a no-op; disconnect paths may race.
// It returns the removed client, or nil.
func (r *Registry) Unregister(clientId string) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomName, ok := r.clientRooms[clientId]
	if !ok {
		return nil
	}

	clients := r.rooms[roomName]
	c := clients[clientId]
	delete(clients, clientId)
	delete(r.clientRooms, clientId)
	r.stats.Decr("NumActiveConnections")

	if len(clients) == 0 {
		delete(r.rooms, roomName)
		r.stats.Decr("NumActiveRooms")
	}

	return c
}

// ListClients returns a copy of the client ids currently in the room.
func (r *Registry) ListClients(roomName string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	clients := r.rooms[roomName]
	ids := make([]string, 0, len(clients))
	for id := range clients {
		ids = append(ids, id)
	}

	return ids
}

// Snapshot returns a copy of the room's connection handles, taken in a
// single critical section so fan-out never iterates a live map.
func (r *Registry) Snapshot(roomName string) []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	clients := r.rooms[roomName]
	snapshot := make([]*Client, 0, len(clients))
	for _, c := range clients {
		snapshot = append(snapshot, c)
	}

	return snapshot
}

// Counts reports the total connection count and per-room counts.
func (r *Registry) Counts() ConnectionStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	cs := ConnectionStats{
		ActiveRooms: len(r.rooms),
		RoomCounts:  make(map[string]int, len(r.rooms)),
	}
	for name, clients := range r.rooms {
		cs.RoomCounts[name] = len(clients)
		cs.TotalConnections += len(clients)
	}

	return cs
}

// CloseAll signals every registered client to shut down. Sessions then
// unregister themselves as their read loops observe the closed sockets.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	clients := make([]*Client, 0, len(r.clientRooms))
	for _, room := range r.rooms {
		for _, c := range room {
			clients = append(clients, c)
		}
	}
	r.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
}
