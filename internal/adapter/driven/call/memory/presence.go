package memory

import (
	"sort"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/OmerCohen55/VideoProject/internal/core/domain"
)

// Presence implements port.PresenceStore on a TTL cache: a user is online
// while their last keepalive is younger than the window.
type Presence struct {
	cache *gocache.Cache
}

func NewPresence(window time.Duration) *Presence {
	return &Presence{
		cache: gocache.New(window, window/2),
	}
}

func (p *Presence) Touch(h domain.UserHandle) {
	p.cache.SetDefault(string(h), struct{}{})
}

func (p *Presence) IsOnline(h domain.UserHandle) bool {
	_, ok := p.cache.Get(string(h))
	return ok
}

func (p *Presence) Online() []domain.UserHandle {
	items := p.cache.Items()
	out := make([]domain.UserHandle, 0, len(items))
	for k := range items {
		out = append(out, domain.UserHandle(k))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
