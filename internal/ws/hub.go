package ws

import (
	"log"
	"sync"
)

// Hub is the group registry: it maps thread ids to the set of live
// connections subscribed to them. A connection appears in a thread's set iff
// it joined and has not since left or disconnected. The reverse index makes
// LeaveAll cheap and idempotent.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Client]struct{}
	joined map[*Client]map[string]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms:  make(map[string]map[*Client]struct{}),
		joined: make(map[*Client]map[string]struct{}),
	}
}

// Join registers a connection in a thread's room. Joining twice is a no-op.
func (h *Hub) Join(threadID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[threadID]; !ok {
		h.rooms[threadID] = make(map[*Client]struct{})
	}
	h.rooms[threadID][c] = struct{}{}
	if _, ok := h.joined[c]; !ok {
		h.joined[c] = make(map[string]struct{})
	}
	h.joined[c][threadID] = struct{}{}
}

// Leave removes a connection from a thread's room. Safe to call when not
// joined.
func (h *Hub) Leave(threadID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(threadID, c)
}

// LeaveAll removes a connection from every room it joined. Called exactly
// once per connection lifecycle end, but safe to call repeatedly.
func (h *Hub) LeaveAll(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for threadID := range h.joined[c] {
		h.leaveLocked(threadID, c)
	}
	delete(h.joined, c)
}

// Members returns a snapshot of the connections currently in a thread's room.
func (h *Hub) Members(threadID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	room := h.rooms[threadID]
	members := make([]*Client, 0, len(room))
	for c := range room {
		members = append(members, c)
	}
	return members
}

// BroadcastRaw writes an already-marshaled frame to every current member of
// the thread. A failed write closes the connection and evicts it; the
// connection's read loop finishes the cleanup.
func (h *Hub) BroadcastRaw(threadID string, payload []byte) {
	for _, c := range h.Members(threadID) {
		if err := c.writeRaw(payload); err != nil {
			log.Printf("websocket write error conn=%s: %v", c.info.ConnID, err)
			c.conn.Close()
			h.Leave(threadID, c)
		}
	}
}

func (h *Hub) leaveLocked(threadID string, c *Client) {
	if room, ok := h.rooms[threadID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, threadID)
		}
	}
	if threads, ok := h.joined[c]; ok {
		delete(threads, threadID)
		if len(threads) == 0 {
			delete(h.joined, c)
		}
	}
}
