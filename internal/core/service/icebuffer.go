package service

import (
	"github.com/OmerCohen55/VideoProject/internal/core/domain"
	"github.com/OmerCohen55/VideoProject/internal/core/port"
)

// iceBuffer holds remote ICE candidates that arrived before the remote
// description was set. Applying a candidate without a remote description is
// invalid, so early arrivals wait here and are replayed in arrival order.
// One buffer exists per call session; it is dropped with the session.
type iceBuffer struct {
	pending []domain.Candidate
}

func newIceBuffer() *iceBuffer {
	return &iceBuffer{}
}

func (b *iceBuffer) Enqueue(c domain.Candidate) {
	b.pending = append(b.pending, c)
}

func (b *iceBuffer) Len() int {
	return len(b.pending)
}

// DrainInto applies every buffered candidate to sess in FIFO order and
// clears the buffer. A failing candidate does not stop the rest; the first
// error is returned for logging.
func (b *iceBuffer) DrainInto(sess port.MediaSession) error {
	var first error
	for _, c := range b.pending {
		if err := sess.AddRemoteCandidate(c); err != nil && first == nil {
			first = err
		}
	}
	b.pending = nil
	return first
}
