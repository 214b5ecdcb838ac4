// Package memory holds the server-side call registry and presence store.
// Everything lives in process; restarting the server forgets all calls,
// which is fine for a signaling service with no history requirements.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/OmerCohen55/VideoProject/internal/core/domain"
	"github.com/OmerCohen55/VideoProject/internal/core/port"
)

var ErrCallNotFound = errors.New("call not found")

// Registry implements port.CallRegistry with a mutex-guarded map and an
// incrementing id.
type Registry struct {
	mu     sync.Mutex
	nextID domain.CallID
	calls  map[domain.CallID]port.CallRecord
}

func NewRegistry() *Registry {
	return &Registry{
		nextID: 1,
		calls:  make(map[domain.CallID]port.CallRecord),
	}
}

func (r *Registry) Create(_ context.Context, caller, receiver domain.UserHandle) (port.CallRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := port.CallRecord{
		ID:       r.nextID,
		Caller:   caller,
		Receiver: receiver,
		Status:   port.CallPending,
	}
	r.nextID++
	r.calls[rec.ID] = rec
	return rec, nil
}

func (r *Registry) SetStatus(_ context.Context, id domain.CallID, status port.CallStatus) (port.CallRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.calls[id]
	if !ok {
		return port.CallRecord{}, ErrCallNotFound
	}
	rec.Status = status
	r.calls[id] = rec
	return rec, nil
}

func (r *Registry) ByHandle(_ context.Context, h domain.UserHandle) ([]port.CallRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []port.CallRecord
	for _, rec := range r.calls {
		if rec.Caller == h || rec.Receiver == h {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
