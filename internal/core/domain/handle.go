package domain

import (
	"strings"
)

// UserHandle identifies a registered user by email. Handles are
// case-insensitive; NewUserHandle normalizes so that comparison is plain ==.
type UserHandle string

func NewUserHandle(email string) UserHandle {
	return UserHandle(strings.ToLower(strings.TrimSpace(email)))
}

func (h UserHandle) String() string {
	return string(h)
}

func (h UserHandle) IsZero() bool {
	return h == ""
}

// CallID is assigned by the call-control service when a call is requested.
// Zero means no call has been registered yet.
type CallID int64

func (id CallID) IsZero() bool {
	return id == 0
}
