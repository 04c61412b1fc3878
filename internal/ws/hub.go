package ws

import (
	"sync"

	"douniyaconnect/internal/domain"
	"douniyaconnect/pkg/logger"
)

// Hub tracks live connections per username and per-conversation topic
// subscriptions. Delivery is fire-and-forget: an offline user or a full send
// buffer means the event is dropped, the database row stays the source of
// truth.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	topics  map[int64]map[*Client]struct{}
	log     logger.Logger
}

func NewHub(log logger.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		topics:  make(map[int64]map[*Client]struct{}),
		log:     log,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[c.Username] == nil {
		h.clients[c.Username] = make(map[*Client]struct{})
	}
	h.clients[c.Username][c] = struct{}{}
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if set, ok := h.clients[c.Username]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.Username)
		}
	}
	for _, subscribers := range h.topics {
		delete(subscribers, c)
	}
	h.mu.Unlock()

	c.close()
}

func (h *Hub) Subscribe(c *Client, conversationID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.topics[conversationID] == nil {
		h.topics[conversationID] = make(map[*Client]struct{})
	}
	h.topics[conversationID][c] = struct{}{}
}

func (h *Hub) Unsubscribe(c *Client, conversationID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subscribers, ok := h.topics[conversationID]; ok {
		delete(subscribers, c)
	}
}

// NotifyUser pushes an event to every live connection of one user.
func (h *Hub) NotifyUser(username string, event domain.ChatNotification) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients[username] {
		if !c.enqueue(event) {
			h.log.Warn("Dropping event for slow consumer", "username", username, "event", event.Type)
		}
	}
}

// BroadcastConversation pushes an event to every subscriber of a
// conversation topic. Used for typing indicators.
func (h *Hub) BroadcastConversation(conversationID int64, event domain.ChatNotification) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.topics[conversationID] {
		c.enqueue(event)
	}
}

// BroadcastAll pushes an event to every connected client. Used for online
// and offline presence changes.
func (h *Hub) BroadcastAll(event domain.ChatNotification) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, set := range h.clients {
		for c := range set {
			c.enqueue(event)
		}
	}
}

// IsConnected reports whether the user has at least one live connection.
func (h *Hub) IsConnected(username string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients[username]) > 0
}
