package ws

import (
	"sync"

	"github.com/lumenchat/lumen/internal/domain"
	"github.com/lumenchat/lumen/internal/infrastructure/logging"
	"github.com/lumenchat/lumen/internal/infrastructure/metrics"
)

// Hub tracks which local connections belong to which rooms. Membership is
// strictly per-instance; cross-instance fanout goes through the backplane,
// so no shared bookkeeping is needed on disconnect.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	clients map[*Client]struct{}
	logger  logging.Logger
}

func NewHub(logger logging.Logger) *Hub {
	return &Hub{
		rooms:   make(map[string]map[*Client]struct{}),
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a verified connection and auto-joins its private user room.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.joinLocked(c, domain.UserRoom(c.UserID))
	h.mu.Unlock()

	metrics.LiveConnections.Inc()

	h.logger.Info(logging.WebSocket, logging.Connection, "client connected", map[logging.ExtraKey]any{
		logging.UserID: c.UserID,
		"connectionId": c.ID,
	})
}

// Unregister drops a connection and all of its room memberships. Cleanup is
// local-only; other instances never knew about this socket.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
	h.mu.Unlock()

	metrics.LiveConnections.Dec()
	c.close()

	h.logger.Info(logging.WebSocket, logging.Connection, "client disconnected", map[logging.ExtraKey]any{
		logging.UserID: c.UserID,
		"connectionId": c.ID,
	})
}

func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.joinLocked(c, room)
}

func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, room)
}

func (h *Hub) joinLocked(c *Client, room string) {
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

func (h *Hub) leaveLocked(c *Client, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(c.rooms, room)
}

// BroadcastLocal delivers a message to every local member of a room. Slow
// clients whose send buffer is full miss the message rather than block the
// fanout.
func (h *Hub) BroadcastLocal(room string, msg *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[room] {
		c.trySend(msg)
	}
}

// EvictRoom forces every local member out of a room, so stale membership
// cannot outlive a deleted resource.
func (h *Hub) EvictRoom(room string) {
	h.mu.Lock()
	members := h.rooms[room]
	evicted := make([]*Client, 0, len(members))
	for c := range members {
		evicted = append(evicted, c)
	}
	for _, c := range evicted {
		h.leaveLocked(c, room)
	}
	h.mu.Unlock()

	if len(evicted) > 0 {
		h.logger.Info(logging.WebSocket, logging.Membership, "room evicted", map[logging.ExtraKey]any{
			logging.RoomKey: room,
			"members":       len(evicted),
		})
	}
}

// Shutdown disconnects every local client. Used during graceful shutdown
// after the server has stopped accepting new connections.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.Unregister(c)
	}
}

// ConnectionCount reports live local connections for the health endpoint.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomSize reports local membership of one room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
