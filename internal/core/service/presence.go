package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/OmerCohen55/VideoProject/internal/core/domain"
)

// PresenceAPI is what the keeper needs from the call-control service.
type PresenceAPI interface {
	Online(ctx context.Context) ([]domain.UserHandle, error)
	KeepAlive(ctx context.Context, self domain.UserHandle) error
}

// Keeper maintains the local view of who is online: it posts keepalives for
// the local user and polls the online list on its own tickers.
type Keeper struct {
	self           domain.UserHandle
	api            PresenceAPI
	log            zerolog.Logger
	pollEvery      time.Duration
	keepaliveEvery time.Duration

	mu     sync.RWMutex
	online map[domain.UserHandle]struct{}
}

func NewKeeper(self domain.UserHandle, api PresenceAPI, log zerolog.Logger) *Keeper {
	return &Keeper{
		self:           self,
		api:            api,
		log:            log,
		pollEvery:      5 * time.Second,
		keepaliveEvery: 20 * time.Second,
		online:         make(map[domain.UserHandle]struct{}),
	}
}

// Run blocks until ctx is done, keeping presence fresh both ways.
func (k *Keeper) Run(ctx context.Context) {
	k.keepalive(ctx)
	k.poll(ctx)

	ka := time.NewTicker(k.keepaliveEvery)
	defer ka.Stop()
	pl := time.NewTicker(k.pollEvery)
	defer pl.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ka.C:
			k.keepalive(ctx)
		case <-pl.C:
			k.poll(ctx)
		}
	}
}

// IsOnline reports whether peer was in the last fetched online set.
func (k *Keeper) IsOnline(peer domain.UserHandle) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	_, ok := k.online[peer]
	return ok
}

// Online returns the current online set, sorted, without the local user.
func (k *Keeper) Online() []domain.UserHandle {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := make([]domain.UserHandle, 0, len(k.online))
	for h := range k.online {
		if h != k.self {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (k *Keeper) keepalive(ctx context.Context) {
	if err := k.api.KeepAlive(ctx, k.self); err != nil && ctx.Err() == nil {
		k.log.Warn().Err(err).Msg("keepalive failed")
	}
}

func (k *Keeper) poll(ctx context.Context) {
	handles, err := k.api.Online(ctx)
	if err != nil {
		if ctx.Err() == nil {
			k.log.Warn().Err(err).Msg("online poll failed")
		}
		return
	}
	next := make(map[domain.UserHandle]struct{}, len(handles))
	for _, h := range handles {
		next[h] = struct{}{}
	}
	k.mu.Lock()
	k.online = next
	k.mu.Unlock()
}
