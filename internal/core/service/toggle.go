package service

import (
	"github.com/OmerCohen55/VideoProject/internal/core/domain"
)

// Media toggle relay: a local toggle flips the corresponding local track and
// sends a best-effort notification to the peer; it never touches the call
// phase and expects no acknowledgment. Inbound toggle reports only update
// the remote-reported flags.

// ToggleAudio flips the local mute state. Returns the new muted state; with
// no session it is a no-op returning false.
func (o *Orchestrator) ToggleAudio() bool {
	o.mu.Lock()
	s := o.sess
	if s == nil || s.local == nil {
		o.mu.Unlock()
		return false
	}
	s.localAudioOff = !s.localAudioOff
	off := s.localAudioOff
	s.local.SetAudioEnabled(!off)
	peer := s.peer
	o.mu.Unlock()

	o.sendEnvelope(domain.Envelope{
		Type: domain.MsgMuteToggle,
		To:   peer.String(),
		From: o.self.String(),
		Off:  &off,
	})
	o.log.Debug().Bool("off", off).Msg("audio toggled")
	return off
}

// ToggleVideo flips the local camera state. Re-enabling reattaches the live
// video track to the existing peer connection; the connection itself is
// never recreated.
func (o *Orchestrator) ToggleVideo() bool {
	o.mu.Lock()
	s := o.sess
	if s == nil || s.local == nil {
		o.mu.Unlock()
		return false
	}
	s.localVideoOff = !s.localVideoOff
	off := s.localVideoOff
	s.local.SetVideoEnabled(!off)
	peer := s.peer
	o.mu.Unlock()

	o.sendEnvelope(domain.Envelope{
		Type: domain.MsgVideoToggle,
		To:   peer.String(),
		From: o.self.String(),
		Off:  &off,
	})
	o.log.Debug().Bool("off", off).Msg("video toggled")
	return off
}

// RemoteToggles reports the last state the peer advertised.
func (o *Orchestrator) RemoteToggles() (videoOff, audioOff bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sess == nil {
		return false, false
	}
	return o.sess.remoteVideoOff, o.sess.remoteAudioOff
}

func (o *Orchestrator) handleToggle(env domain.Envelope) {
	if env.Off == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	s := o.sess
	if s == nil || s.peer != env.Sender() {
		o.log.Debug().Str("from", env.From).Msg("toggle with no matching session, ignoring")
		return
	}
	switch env.Type {
	case domain.MsgVideoToggle:
		s.remoteVideoOff = *env.Off
	case domain.MsgMuteToggle:
		s.remoteAudioOff = *env.Off
	}
	if o.events.RemoteToggle != nil {
		o.events.RemoteToggle(s.remoteVideoOff, s.remoteAudioOff)
	}
}
