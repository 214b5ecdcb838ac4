package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OmerCohen55/VideoProject/internal/core/domain"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func TestGatewayRoundTrip(t *testing.T) {
	gotEmail := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotEmail <- r.URL.Query().Get("email")
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		// echo everything back with the addressing flipped
		for {
			var env domain.Envelope
			if err := conn.ReadJSON(&env); err != nil {
				return
			}
			env.From, env.To = env.To, env.From
			if err := conn.WriteJSON(env); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gw, err := Dial(ctx, wsURL(srv), "me@example.com", zerolog.Nop())
	require.NoError(t, err)
	defer gw.Close()

	assert.Equal(t, "me@example.com", <-gotEmail)

	received := make(chan domain.Envelope, 1)
	go gw.Run(ctx, func(env domain.Envelope) { received <- env })

	require.NoError(t, gw.Send(ctx, domain.Envelope{
		Type:   domain.MsgCallEnded,
		From:   "me@example.com",
		To:     "friend@example.com",
		CallID: 9,
	}))

	select {
	case env := <-received:
		assert.Equal(t, domain.MsgCallEnded, env.Type)
		assert.Equal(t, "me@example.com", env.To)
		assert.Equal(t, "friend@example.com", env.From)
		assert.Equal(t, domain.CallID(9), env.CallID)
	case <-time.After(2 * time.Second):
		t.Fatal("no envelope relayed back")
	}
}

func TestGatewayRunStopsOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	gw, err := Dial(ctx, wsURL(srv), "me@example.com", zerolog.Nop())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- gw.Run(ctx, func(domain.Envelope) {}) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("read pump did not stop")
	}
}

func TestHubRoutesByRecipient(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	defer hub.Stop()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		hub.Register(domain.NewUserHandle(r.URL.Query().Get("email")), conn)
	}))
	defer srv.Close()

	dial := func(email string) *websocket.Conn {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv)+"?email="+email, nil)
		require.NoError(t, err)
		return conn
	}
	alice := dial("alice@x.com")
	defer alice.Close()
	bob := dial("bob@x.com")
	defer bob.Close()

	require.Eventually(t, func() bool {
		return hub.Connected("alice@x.com") && hub.Connected("bob@x.com")
	}, time.Second, 10*time.Millisecond)

	hub.SendTo(domain.Envelope{Type: domain.MsgIncomingCall, From: "alice@x.com", To: "Bob@X.com", CallID: 2})

	bob.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env domain.Envelope
	require.NoError(t, bob.ReadJSON(&env))
	assert.Equal(t, domain.MsgIncomingCall, env.Type)
	assert.Equal(t, domain.CallID(2), env.CallID)

	// envelopes for unknown users vanish without error
	hub.SendTo(domain.Envelope{Type: domain.MsgCallEnded, To: "nobody@x.com"})
}
