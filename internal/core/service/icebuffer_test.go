package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OmerCohen55/VideoProject/internal/core/domain"
)

func TestIceBufferDrainsFIFO(t *testing.T) {
	b := newIceBuffer()
	sess := &fakeMediaSession{}
	require.NoError(t, sess.SetRemoteDescription(domain.Description{Type: "offer", SDP: "x"}))

	for _, s := range []string{"a", "b", "c"} {
		b.Enqueue(rawCandidate(s))
	}
	require.Equal(t, 3, b.Len())

	require.NoError(t, b.DrainInto(sess))
	applied := sess.appliedCandidates()
	require.Len(t, applied, 3)
	for i, want := range []string{"a", "b", "c"} {
		assert.JSONEq(t, string(rawCandidate(want)), string(applied[i]))
	}

	// drained exactly once: a second drain applies nothing
	assert.Equal(t, 0, b.Len())
	require.NoError(t, b.DrainInto(sess))
	assert.Len(t, sess.appliedCandidates(), 3)
}

func TestIceBufferDrainClearsOnError(t *testing.T) {
	b := newIceBuffer()
	sess := &fakeMediaSession{} // no remote description: every apply fails

	b.Enqueue(rawCandidate("a"))
	b.Enqueue(rawCandidate("b"))

	err := b.DrainInto(sess)
	require.Error(t, err)
	assert.Equal(t, 0, b.Len(), "buffer clears even when candidates fail")
	assert.Empty(t, sess.appliedCandidates())
}
