package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OmerCohen55/VideoProject/internal/core/domain"
)

type fakePresenceAPI struct {
	mu         sync.Mutex
	online     []domain.UserHandle
	keepalives int
}

func (f *fakePresenceAPI) Online(context.Context) ([]domain.UserHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.UserHandle(nil), f.online...), nil
}

func (f *fakePresenceAPI) KeepAlive(context.Context, domain.UserHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keepalives++
	return nil
}

func TestKeeperTracksOnlineSet(t *testing.T) {
	api := &fakePresenceAPI{online: []domain.UserHandle{
		domain.NewUserHandle(selfAddr),
		domain.NewUserHandle(peerAddr),
	}}
	k := NewKeeper(domain.NewUserHandle(selfAddr), api, zerolog.Nop())
	k.pollEvery = 10 * time.Millisecond
	k.keepaliveEvery = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go k.Run(ctx)

	require.Eventually(t, func() bool {
		return k.IsOnline(domain.NewUserHandle(peerAddr))
	}, time.Second, 5*time.Millisecond)

	// the local user is filtered from the listing but the peer is kept
	assert.Equal(t, []domain.UserHandle{domain.NewUserHandle(peerAddr)}, k.Online())

	api.mu.Lock()
	api.online = nil
	sent := api.keepalives
	api.mu.Unlock()
	assert.Greater(t, sent, 0)

	require.Eventually(t, func() bool {
		return !k.IsOnline(domain.NewUserHandle(peerAddr))
	}, time.Second, 5*time.Millisecond)
}
