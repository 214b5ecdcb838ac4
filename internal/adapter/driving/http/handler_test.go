package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OmerCohen55/VideoProject/internal/adapter/driven/call/memory"
	"github.com/OmerCohen55/VideoProject/internal/adapter/driven/gateway/ws"
	"github.com/OmerCohen55/VideoProject/internal/core/domain"
)

func newTestServer(t *testing.T) (*httptest.Server, *Handler) {
	t.Helper()
	h := NewHandler(memory.NewRegistry(), memory.NewPresence(30*time.Second), ws.NewHub(zerolog.Nop()), zerolog.Nop())
	srv := httptest.NewServer(h.NewRouter())
	t.Cleanup(srv.Close)
	t.Cleanup(h.Hub.Stop)
	return srv, h
}

func connect(t *testing.T, srv *httptest.Server, email string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?email=" + email
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(buf))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func readEnvelope(t *testing.T, conn *websocket.Conn) domain.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env domain.Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func TestCallLifecycleNotifications(t *testing.T) {
	srv, h := newTestServer(t)
	caller := connect(t, srv, "alice@x.com")
	receiver := connect(t, srv, "bob@x.com")

	require.Eventually(t, func() bool {
		return h.Hub.Connected("alice@x.com") && h.Hub.Connected("bob@x.com")
	}, time.Second, 10*time.Millisecond)

	resp := postJSON(t, srv.URL+"/call", map[string]string{
		"caller_email":   "Alice@X.com",
		"receiver_email": "bob@x.com",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var created struct {
		CallID domain.CallID `json:"call_id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	require.NotZero(t, created.CallID)

	ring := readEnvelope(t, receiver)
	assert.Equal(t, domain.MsgIncomingCall, ring.Type)
	assert.Equal(t, "alice@x.com", ring.From)
	assert.Equal(t, created.CallID, ring.CallID)

	resp = postJSON(t, srv.URL+"/accept", map[string]any{"call_id": created.CallID})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	accepted := readEnvelope(t, caller)
	assert.Equal(t, domain.MsgCallAccepted, accepted.Type)
	assert.Equal(t, "bob@x.com", accepted.By)
	assert.Equal(t, "alice@x.com", accepted.To)

	resp = postJSON(t, srv.URL+"/end", map[string]any{"call_id": created.CallID})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	assert.Equal(t, domain.MsgCallEnded, readEnvelope(t, caller).Type)
	assert.Equal(t, domain.MsgCallEnded, readEnvelope(t, receiver).Type)
}

func TestCallRequiresOnlineReceiver(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/call", map[string]string{
		"caller_email":   "alice@x.com",
		"receiver_email": "ghost@x.com",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCallValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/call", map[string]string{"caller_email": "alice@x.com"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/call", map[string]string{
		"caller_email":   "alice@x.com",
		"receiver_email": "ALICE@x.com",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/accept", map[string]any{"call_id": 999})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestKeepAliveAndOnline(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/keepalive?user=Carol@X.com", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/online")
	require.NoError(t, err)
	defer resp.Body.Close()
	var emails []string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&emails))
	assert.Equal(t, []string{"carol@x.com"}, emails)
}

func TestCallHistory(t *testing.T) {
	srv, h := newTestServer(t)
	connect(t, srv, "bob@x.com")
	require.Eventually(t, func() bool { return h.Hub.Connected("bob@x.com") }, time.Second, 10*time.Millisecond)

	resp := postJSON(t, srv.URL+"/call", map[string]string{
		"caller_email":   "alice@x.com",
		"receiver_email": "bob@x.com",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err := http.Get(srv.URL + "/calls/Alice@X.com")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var history []struct {
		CallID   domain.CallID `json:"call_id"`
		Caller   string        `json:"caller"`
		Receiver string        `json:"receiver"`
		Status   string        `json:"status"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&history))
	require.Len(t, history, 1)
	assert.Equal(t, "alice@x.com", history[0].Caller)
	assert.Equal(t, "bob@x.com", history[0].Receiver)
	assert.Equal(t, "pending", history[0].Status)
}

func TestRelayStampsSender(t *testing.T) {
	srv, h := newTestServer(t)
	alice := connect(t, srv, "alice@x.com")
	bob := connect(t, srv, "bob@x.com")

	require.Eventually(t, func() bool {
		return h.Hub.Connected("alice@x.com") && h.Hub.Connected("bob@x.com")
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, alice.WriteJSON(domain.Envelope{
		Type:  domain.MsgOffer,
		From:  "mallory@x.com",
		To:    "bob@x.com",
		Offer: &domain.Description{Type: "offer", SDP: "v=0"},
	}))

	env := readEnvelope(t, bob)
	assert.Equal(t, domain.MsgOffer, env.Type)
	assert.Equal(t, "alice@x.com", env.From, "relay overwrites the claimed sender")
	require.NotNil(t, env.Offer)
	assert.Equal(t, "v=0", env.Offer.SDP)
}
