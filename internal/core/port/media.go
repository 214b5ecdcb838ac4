package port

import (
	"context"

	"github.com/OmerCohen55/VideoProject/internal/core/domain"
)

// MediaEngine is the boundary to the WebRTC stack. The orchestrator owns
// exactly one LocalMedia and one MediaSession per call and closes both on
// teardown; they are never shared or reused across calls.
type MediaEngine interface {
	// AcquireMedia opens camera and microphone. Failures come back as
	// *domain.MediaError so the orchestrator can surface a classified
	// message.
	AcquireMedia(ctx context.Context) (LocalMedia, error)

	// NewSession creates a peer connection with the local tracks attached.
	// Callbacks fire from the engine's own goroutines.
	NewSession(local LocalMedia, cb SessionCallbacks) (MediaSession, error)
}

// LocalMedia is the captured camera/microphone pair. Enabled state flips are
// local only; disabling never tears down the track.
type LocalMedia interface {
	SetAudioEnabled(on bool)
	SetVideoEnabled(on bool)
	Close()
}

// MediaSession is the peer connection handle for one call.
type MediaSession interface {
	CreateOffer(ctx context.Context) (domain.Description, error)
	CreateAnswer(ctx context.Context) (domain.Description, error)
	SetRemoteDescription(desc domain.Description) error
	AddRemoteCandidate(c domain.Candidate) error
	Close() error
}

// SessionCallbacks are the engine-to-orchestrator events. Any of them may be
// nil.
type SessionCallbacks struct {
	OnLocalCandidate func(c domain.Candidate)
	OnRemoteTrack    func(kind string)
	OnStateChange    func(s domain.ConnState)
}
