package callctl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OmerCohen55/VideoProject/internal/core/domain"
)

func TestCallReturnsID(t *testing.T) {
	var got callRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/call", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int64{"call_id": 17})
	}))
	defer srv.Close()

	c := New(srv.URL)
	id, err := c.Call(context.Background(), "me@example.com", "friend@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.CallID(17), id)
	assert.Equal(t, "me@example.com", got.CallerEmail)
	assert.Equal(t, "friend@example.com", got.ReceiverEmail)
}

func TestActionsPostCallID(t *testing.T) {
	type seen struct {
		path string
		id   domain.CallID
	}
	var calls []seen
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req actionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		calls = append(calls, seen{r.URL.Path, req.CallID})
	}))
	defer srv.Close()

	c := New(srv.URL)
	ctx := context.Background()
	require.NoError(t, c.Accept(ctx, 3))
	require.NoError(t, c.Reject(ctx, 4))
	require.NoError(t, c.End(ctx, 5))
	assert.Equal(t, []seen{{"/accept", 3}, {"/reject", 4}, {"/end", 5}}, calls)
}

func TestErrorStatusSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "receiver offline", http.StatusConflict)
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.Call(context.Background(), "a@x.com", "b@x.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "409")

	assert.Error(t, c.End(context.Background(), 1))
}

func TestOnlineAndKeepAlive(t *testing.T) {
	var keptAlive string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/online":
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode([]string{"a@x.com", "b@x.com"})
		case "/keepalive":
			keptAlive = r.URL.Query().Get("user")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	handles, err := c.Online(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.UserHandle{"a@x.com", "b@x.com"}, handles)

	require.NoError(t, c.KeepAlive(context.Background(), "me@example.com"))
	assert.Equal(t, "me@example.com", keptAlive)
}
