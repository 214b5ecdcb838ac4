package ws

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/OmerCohen55/VideoProject/internal/core/domain"
)

// Hub is the server-side relay: one registered socket per user handle,
// envelopes forwarded by their "to" field.
type Hub struct {
	log zerolog.Logger

	mu    sync.Mutex
	peers map[domain.UserHandle]*peer
}

type peer struct {
	writeMu sync.Mutex
	conn    *websocket.Conn
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log:   log,
		peers: make(map[domain.UserHandle]*peer),
	}
}

// Register attaches conn as the socket for handle, replacing and closing any
// previous connection for the same user.
func (h *Hub) Register(handle domain.UserHandle, conn *websocket.Conn) {
	h.mu.Lock()
	old := h.peers[handle]
	h.peers[handle] = &peer{conn: conn}
	h.mu.Unlock()

	if old != nil {
		old.conn.Close()
	}
	h.log.Info().Str("user", string(handle)).Msg("signaling client registered")
}

// Unregister drops conn if it is still the registered socket for handle.
// A newer connection for the same handle stays put.
func (h *Hub) Unregister(handle domain.UserHandle, conn *websocket.Conn) {
	h.mu.Lock()
	if p, ok := h.peers[handle]; ok && p.conn == conn {
		delete(h.peers, handle)
	}
	h.mu.Unlock()
	h.log.Info().Str("user", string(handle)).Msg("signaling client unregistered")
}

// SendTo forwards env to the socket registered for env.To. Envelopes for
// offline users are dropped silently, matching the relay's fire-and-forget
// contract.
func (h *Hub) SendTo(env domain.Envelope) {
	to := domain.NewUserHandle(env.To)
	h.mu.Lock()
	p, ok := h.peers[to]
	h.mu.Unlock()
	if !ok {
		h.log.Debug().Str("to", string(to)).Str("type", env.Type).Msg("dropping envelope for offline user")
		return
	}

	p.writeMu.Lock()
	err := p.conn.WriteJSON(env)
	p.writeMu.Unlock()
	if err != nil {
		h.log.Error().Err(err).Str("to", string(to)).Msg("relay write failed")
		h.Unregister(to, p.conn)
		p.conn.Close()
	}
}

// Connected reports whether handle has a live socket.
func (h *Hub) Connected(handle domain.UserHandle) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.peers[handle]
	return ok
}

// Stop closes every registered socket.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for handle, p := range h.peers {
		p.conn.Close()
		delete(h.peers, handle)
	}
}
