package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OmerCohen55/VideoProject/internal/core/domain"
	"github.com/OmerCohen55/VideoProject/internal/core/port"
)

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	first, err := r.Create(ctx, "alice@x.com", "bob@x.com")
	require.NoError(t, err)
	second, err := r.Create(ctx, "carol@x.com", "alice@x.com")
	require.NoError(t, err)
	assert.Equal(t, port.CallPending, first.Status)
	assert.Greater(t, second.ID, first.ID)

	rec, err := r.SetStatus(ctx, first.ID, port.CallAccepted)
	require.NoError(t, err)
	assert.Equal(t, port.CallAccepted, rec.Status)
	assert.Equal(t, domain.UserHandle("bob@x.com"), rec.Receiver)

	_, err = r.SetStatus(ctx, 999, port.CallEnded)
	assert.ErrorIs(t, err, ErrCallNotFound)

	alice, err := r.ByHandle(ctx, "alice@x.com")
	require.NoError(t, err)
	require.Len(t, alice, 2)
	assert.Equal(t, first.ID, alice[0].ID)
	assert.Equal(t, second.ID, alice[1].ID)

	bob, err := r.ByHandle(ctx, "bob@x.com")
	require.NoError(t, err)
	require.Len(t, bob, 1)
	assert.Equal(t, port.CallAccepted, bob[0].Status)
}

func TestPresenceExpires(t *testing.T) {
	p := NewPresence(50 * time.Millisecond)

	p.Touch("alice@x.com")
	p.Touch("bob@x.com")
	assert.True(t, p.IsOnline("alice@x.com"))
	assert.Equal(t, []domain.UserHandle{"alice@x.com", "bob@x.com"}, p.Online())

	require.Eventually(t, func() bool {
		return !p.IsOnline("alice@x.com")
	}, time.Second, 10*time.Millisecond)
	assert.Empty(t, p.Online())
}
