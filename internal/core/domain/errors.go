package domain

import "errors"

// Guard failures surfaced to the caller of a local intent. These never leave
// the orchestrator as anything but a returned error.
var (
	ErrNotIdle        = errors.New("another call is already in progress")
	ErrSelfCall       = errors.New("cannot call yourself")
	ErrPeerOffline    = errors.New("peer is not online")
	ErrNotRinging     = errors.New("no incoming call to answer")
	ErrNoPendingOffer = errors.New("offer has not arrived yet")
)

// MediaReason classifies why local media acquisition failed. Each reason maps
// to a distinct user-facing message.
type MediaReason int

const (
	MediaUnknown MediaReason = iota
	MediaPermissionDenied
	MediaDeviceAbsent
	MediaDeviceBusy
	MediaBadConstraints
)

// MediaError wraps a device/permission failure from the media engine.
type MediaError struct {
	Reason MediaReason
	Err    error
}

func (e *MediaError) Error() string {
	if e.Err != nil {
		return "media: " + e.Err.Error()
	}
	return "media: " + e.UserMessage()
}

func (e *MediaError) Unwrap() error { return e.Err }

// UserMessage is the text shown to the user, per failure class.
func (e *MediaError) UserMessage() string {
	switch e.Reason {
	case MediaPermissionDenied:
		return "camera/microphone access is blocked"
	case MediaDeviceAbsent:
		return "no camera or microphone was found"
	case MediaDeviceBusy:
		return "camera or microphone is in use by another application"
	case MediaBadConstraints:
		return "camera does not support the requested settings"
	default:
		return "could not start camera/microphone"
	}
}
