package port

import (
	"context"

	"github.com/OmerCohen55/VideoProject/internal/core/domain"
)

// CallStatus is the server-side view of a registered call.
type CallStatus string

const (
	CallPending  CallStatus = "pending"
	CallAccepted CallStatus = "accepted"
	CallRejected CallStatus = "rejected"
	CallEnded    CallStatus = "ended"
)

// CallRecord is one row in the call registry.
type CallRecord struct {
	ID       domain.CallID
	Caller   domain.UserHandle
	Receiver domain.UserHandle
	Status   CallStatus
}

// CallRegistry is the authoritative store of call state on the server.
type CallRegistry interface {
	Create(ctx context.Context, caller, receiver domain.UserHandle) (CallRecord, error)
	SetStatus(ctx context.Context, id domain.CallID, status CallStatus) (CallRecord, error)
	ByHandle(ctx context.Context, h domain.UserHandle) ([]CallRecord, error)
}

// PresenceStore tracks which users are considered online on the server.
type PresenceStore interface {
	Touch(h domain.UserHandle)
	Online() []domain.UserHandle
	IsOnline(h domain.UserHandle) bool
}
