package http

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/OmerCohen55/VideoProject/internal/core/domain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// TODO: only for dev
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades the connection, registers it under the client's handle,
// and relays every well-formed envelope to the user named in its "to" field.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	self := domain.NewUserHandle(r.URL.Query().Get("email"))
	if self.IsZero() {
		http.Error(w, "email query parameter is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	l := h.Log.With().Str("user", string(self)).Logger()
	h.Hub.Register(self, conn)
	h.Presence.Touch(self)

	defer func() {
		h.Hub.Unregister(self, conn)
		conn.Close()
	}()

	for {
		var env domain.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				l.Error().Err(err).Msg("unexpected websocket close")
			}
			return
		}
		if env.Type == "" || env.To == "" {
			l.Warn().Str("type", env.Type).Msg("dropping unroutable envelope")
			continue
		}
		// the relay stamps the sender; clients cannot spoof each other
		env.From = string(self)
		h.Hub.SendTo(env)
	}
}
