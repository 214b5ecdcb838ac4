package port

import (
	"context"

	"github.com/OmerCohen55/VideoProject/internal/core/domain"
)

// CallControl talks to the server-side call registry. Every method maps to
// one REST action; a non-2xx response is a hard error, never swallowed.
type CallControl interface {
	Call(ctx context.Context, caller, receiver domain.UserHandle) (domain.CallID, error)
	Accept(ctx context.Context, id domain.CallID) error
	Reject(ctx context.Context, id domain.CallID) error
	End(ctx context.Context, id domain.CallID) error
}

// Presence answers the dial guard: is the target currently online.
type Presence interface {
	IsOnline(peer domain.UserHandle) bool
}
