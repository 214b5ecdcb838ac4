// Package ws carries signaling envelopes over gorilla websockets: Gateway is
// the client-side connection, Hub the server-side relay.
package ws

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/OmerCohen55/VideoProject/internal/core/domain"
)

// EnvelopeHandler receives every envelope read from the socket.
type EnvelopeHandler func(domain.Envelope)

// Gateway implements port.SignalGateway over a single websocket identified
// by the local user's handle.
type Gateway struct {
	self domain.UserHandle
	log  zerolog.Logger

	writeMu sync.Mutex
	conn    *websocket.Conn
}

// Dial connects to the signaling endpoint, announcing self in the query
// string the way the relay expects.
func Dial(ctx context.Context, endpoint string, self domain.UserHandle, log zerolog.Logger) (*Gateway, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("signaling url: %w", err)
	}
	q := u.Query()
	q.Set("email", string(self))
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial signaling: %w", err)
	}
	return &Gateway{self: self, log: log, conn: conn}, nil
}

// Send writes one envelope. Safe for concurrent use; gorilla allows only one
// concurrent writer.
func (g *Gateway) Send(ctx context.Context, env domain.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.writeMu.Lock()
	defer g.writeMu.Unlock()
	return g.conn.WriteJSON(env)
}

// Run is the read pump: it blocks decoding envelopes and handing them to
// handle until the socket dies or ctx is cancelled.
func (g *Gateway) Run(ctx context.Context, handle EnvelopeHandler) error {
	go func() {
		<-ctx.Done()
		g.conn.Close()
	}()

	for {
		var env domain.Envelope
		if err := g.conn.ReadJSON(&env); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				g.log.Error().Err(err).Msg("signaling socket closed unexpectedly")
			}
			return fmt.Errorf("read signaling: %w", err)
		}
		if env.Type == "" {
			g.log.Warn().Msg("dropping untyped signaling frame")
			continue
		}
		handle(env)
	}
}

func (g *Gateway) Close() error {
	g.writeMu.Lock()
	defer g.writeMu.Unlock()
	g.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return g.conn.Close()
}
