package app

import (
	"strings"
	"sync"

	"task_chat_service/internal/chat/domain"
)

// Hub local connection registry: group name -> clients
// group 為 room id 或 user_<id>，只記本 instance 的連線
type Hub struct {
	mu      sync.RWMutex
	groups  map[string]map[*Client]struct{}
	joined  map[*Client]map[string]struct{}
	clients map[string]*Client
}

// NewHub create Hub
func NewHub() *Hub {
	return &Hub{
		groups:  make(map[string]map[*Client]struct{}),
		joined:  make(map[*Client]map[string]struct{}),
		clients: make(map[string]*Client),
	}
}

// Register add client
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID] = c
	h.joined[c] = make(map[string]struct{})
}

// Unregister remove client from every group, returns the room groups it was in
func (h *Hub) Unregister(c *Client) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	rooms := make([]string, 0)
	for group := range h.joined[c] {
		h.leaveLocked(group, c)
		if !strings.HasPrefix(group, domain.UserGroup("")) {
			rooms = append(rooms, group)
		}
	}
	delete(h.joined, c)
	delete(h.clients, c.ID)
	return rooms
}

// Join add client into group
func (h *Hub) Join(group string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.joined[c]; !ok {
		return
	}
	members, ok := h.groups[group]
	if !ok {
		members = make(map[*Client]struct{})
		h.groups[group] = members
	}
	members[c] = struct{}{}
	h.joined[c][group] = struct{}{}
}

// Leave remove client from group
func (h *Hub) Leave(group string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(group, c)
}

func (h *Hub) leaveLocked(group string, c *Client) {
	if members, ok := h.groups[group]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
	if groups, ok := h.joined[c]; ok {
		delete(groups, group)
	}
}

// InGroup check client joined group
func (h *Hub) InGroup(group string, c *Client) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.groups[group][c]
	return ok
}

// Emit deliver to every local client of group except connection exclude
func (h *Hub) Emit(group string, data []byte, exclude string) int {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.groups[group]))
	for c := range h.groups[group] {
		if c.ID != exclude {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	return deliver(targets, data)
}

// EmitAll deliver to every local client except connection exclude
func (h *Hub) EmitAll(data []byte, exclude string) int {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for id, c := range h.clients {
		if id != exclude {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	return deliver(targets, data)
}

// Count local connections
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll close send of every client, writers then send close frames
func (h *Hub) CloseAll() {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.closeSend()
	}
}

// 在鎖外送，slow client 在 Enqueue 內被關掉
func deliver(targets []*Client, data []byte) int {
	n := 0
	for _, c := range targets {
		if c.Enqueue(data) {
			n++
		}
	}
	return n
}
