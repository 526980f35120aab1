package ws

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
)

// MsgTypeBalance is the only message the server pushes today.
const MsgTypeBalance = "balance"

// BalanceMessage tells a desktop client its balance changed.
type BalanceMessage struct {
	Type        string `json:"type"`
	Credits     int64  `json:"credits"`
	Reason      string `json:"reason"`
	ReferenceID string `json:"reference_id,omitempty"`
}

// ─────────────────────────────────────────────
// Hub: manages all connected desktop sessions
// ─────────────────────────────────────────────

// Hub maintains the active WebSocket sessions per user. One user may
// have several open (two machines, a reconnect racing the old socket).
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{} // userID → sessions
	log     zerolog.Logger
}

// NewHub creates a new Hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		log:     log.With().Str("component", "ws").Logger(),
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	set, ok := h.clients[c.UserID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.UserID] = set
	}
	set[c] = struct{}{}
	total := h.countLocked()
	h.mu.Unlock()
	h.log.Debug().Str("user_id", c.UserID).Int("total", total).Msg("client connected")
}

// Unregister removes a client and closes its send channel. Calling it
// twice is harmless.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	set := h.clients[c.UserID]
	if _, ok := set[c]; ok {
		delete(set, c)
		close(c.send)
		if len(set) == 0 {
			delete(h.clients, c.UserID)
		}
	}
	total := h.countLocked()
	h.mu.Unlock()
	h.log.Debug().Str("user_id", c.UserID).Int("total", total).Msg("client disconnected")
}

// ClientCount returns the number of open sessions.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.countLocked()
}

func (h *Hub) countLocked() int {
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// NotifyBalance pushes the new balance to every session of userID. It
// never blocks: a session whose buffer is full misses the message and
// catches up on the next one or on its next balance read.
func (h *Hub) NotifyBalance(userID string, credits int64, reason, referenceID string) {
	data, err := json.Marshal(BalanceMessage{
		Type:        MsgTypeBalance,
		Credits:     credits,
		Reason:      reason,
		ReferenceID: referenceID,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("marshal balance message")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients[userID] {
		select {
		case c.send <- data:
		default:
			h.log.Warn().Str("user_id", userID).Msg("send buffer full, dropping balance message")
		}
	}
}
