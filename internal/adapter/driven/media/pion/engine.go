// Package pion implements the media boundary with pion/webrtc and
// pion/mediadevices: camera/microphone capture with VP8+Opus and one peer
// connection per call.
package pion

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	_ "github.com/pion/mediadevices/pkg/driver/camera"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"github.com/OmerCohen55/VideoProject/internal/core/domain"
	"github.com/OmerCohen55/VideoProject/internal/core/port"
)

// Engine implements port.MediaEngine.
type Engine struct {
	api      *webrtc.API
	selector *mediadevices.CodecSelector
	stun     []string
	log      zerolog.Logger
}

func NewEngine(stunURLs []string, log zerolog.Logger) (*Engine, error) {
	vpxParams, err := vpx.NewVP8Params()
	if err != nil {
		return nil, fmt.Errorf("vp8 params: %w", err)
	}
	vpxParams.BitRate = 1_500_000

	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, fmt.Errorf("opus params: %w", err)
	}

	selector := mediadevices.NewCodecSelector(
		mediadevices.WithVideoEncoders(&vpxParams),
		mediadevices.WithAudioEncoders(&opusParams),
	)

	me := &webrtc.MediaEngine{}
	selector.Populate(me)

	reg := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(me, reg); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	if len(stunURLs) == 0 {
		stunURLs = []string{"stun:stun.l.google.com:19302"}
	}

	return &Engine{
		api: webrtc.NewAPI(
			webrtc.WithMediaEngine(me),
			webrtc.WithInterceptorRegistry(reg),
		),
		selector: selector,
		stun:     stunURLs,
		log:      log,
	}, nil
}

// AcquireMedia captures camera and microphone. GetUserMedia fails as a unit
// when either device cannot open, so it retries video-only and audio-only
// before giving up.
func (e *Engine) AcquireMedia(ctx context.Context) (port.LocalMedia, error) {
	attempts := []struct {
		video, audio bool
		label        string
	}{
		{true, true, "video+audio"},
		{true, false, "video-only"},
		{false, true, "audio-only"},
	}

	var lastErr error
	for _, a := range attempts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		constraints := mediadevices.MediaStreamConstraints{Codec: e.selector}
		if a.video {
			constraints.Video = func(c *mediadevices.MediaTrackConstraints) {
				// MJPEG camera nodes feed the VP8 encoder malformed frames;
				// raw formats only.
				c.FrameFormat = prop.FrameFormatOneOf{
					frame.FormatYUYV,
					frame.FormatI420,
					frame.FormatI444,
					frame.FormatRGBA,
				}
				c.Width = prop.IntRanged{Max: 640}
				c.Height = prop.IntRanged{Max: 480}
			}
		}
		if a.audio {
			constraints.Audio = func(*mediadevices.MediaTrackConstraints) {}
		}

		stream, err := mediadevices.GetUserMedia(constraints)
		if err != nil {
			e.log.Warn().Err(err).Str("attempt", a.label).Msg("media capture attempt failed")
			lastErr = err
			continue
		}

		local := &localMedia{log: e.log, audioOn: true, videoOn: true}
		for _, t := range stream.GetTracks() {
			switch t.Kind() {
			case webrtc.RTPCodecTypeVideo:
				local.videoTrack = t
			case webrtc.RTPCodecTypeAudio:
				local.audioTrack = t
			}
		}
		e.log.Info().Str("attempt", a.label).Msg("local media captured")
		return local, nil
	}

	return nil, classifyCaptureError(lastErr)
}

// classifyCaptureError maps driver failures onto the media error taxonomy so
// the caller can show something better than the raw error text.
func classifyCaptureError(err error) *domain.MediaError {
	reason := domain.MediaUnknown
	if err != nil {
		msg := strings.ToLower(err.Error())
		switch {
		case strings.Contains(msg, "permission") || strings.Contains(msg, "not allowed") || strings.Contains(msg, "access denied"):
			reason = domain.MediaPermissionDenied
		case strings.Contains(msg, "not found") || strings.Contains(msg, "no such") || strings.Contains(msg, "failed to find"):
			reason = domain.MediaDeviceAbsent
		case strings.Contains(msg, "busy") || strings.Contains(msg, "in use"):
			reason = domain.MediaDeviceBusy
		case strings.Contains(msg, "constraint") || strings.Contains(msg, "overconstrained"):
			reason = domain.MediaBadConstraints
		}
	}
	return &domain.MediaError{Reason: reason, Err: err}
}

type localMedia struct {
	log zerolog.Logger

	mu         sync.Mutex
	audioTrack mediadevices.Track
	videoTrack mediadevices.Track
	audioOn    bool
	videoOn    bool

	audioSender *webrtc.RTPSender
	videoSender *webrtc.RTPSender
	closed      bool
}

// SetAudioEnabled pauses or resumes the outgoing audio by swapping the track
// in and out of its sender. The capture itself keeps running so re-enabling
// is instant.
func (l *localMedia) SetAudioEnabled(on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.audioOn = on
	l.applySenderLocked(l.audioSender, l.audioTrack, on)
}

func (l *localMedia) SetVideoEnabled(on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.videoOn = on
	l.applySenderLocked(l.videoSender, l.videoTrack, on)
}

func (l *localMedia) applySenderLocked(sender *webrtc.RTPSender, track mediadevices.Track, on bool) {
	if sender == nil || l.closed {
		return
	}
	var next webrtc.TrackLocal
	if on && track != nil {
		next = track
	}
	if err := sender.ReplaceTrack(next); err != nil {
		l.log.Error().Err(err).Bool("on", on).Msg("track toggle failed")
	}
}

func (l *localMedia) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	l.audioSender, l.videoSender = nil, nil
	if l.audioTrack != nil {
		l.audioTrack.Close()
	}
	if l.videoTrack != nil {
		l.videoTrack.Close()
	}
}

// attach adds the captured tracks to pc, honoring enabled state decided
// before the session existed.
func (l *localMedia) attach(pc *webrtc.PeerConnection) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.audioTrack != nil {
		sender, err := pc.AddTrack(l.audioTrack)
		if err != nil {
			return fmt.Errorf("add audio track: %w", err)
		}
		l.audioSender = sender
		if !l.audioOn {
			l.applySenderLocked(sender, l.audioTrack, false)
		}
	}
	if l.videoTrack != nil {
		sender, err := pc.AddTrack(l.videoTrack)
		if err != nil {
			return fmt.Errorf("add video track: %w", err)
		}
		l.videoSender = sender
		if !l.videoOn {
			l.applySenderLocked(sender, l.videoTrack, false)
		}
	}
	return nil
}

// NewSession builds a peer connection with local tracks attached and
// receive-only transceivers for any kind we cannot send, so the SDP always
// negotiates both audio and video.
func (e *Engine) NewSession(local port.LocalMedia, cb port.SessionCallbacks) (port.MediaSession, error) {
	servers := make([]webrtc.ICEServer, 0, len(e.stun))
	for _, u := range e.stun {
		servers = append(servers, webrtc.ICEServer{URLs: []string{u}})
	}

	pc, err := e.api.NewPeerConnection(webrtc.Configuration{ICEServers: servers})
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}

	lm, _ := local.(*localMedia)
	if lm != nil {
		if err := lm.attach(pc); err != nil {
			pc.Close()
			return nil, err
		}
	}
	if lm == nil || lm.audioSender == nil {
		if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			pc.Close()
			return nil, fmt.Errorf("add audio transceiver: %w", err)
		}
	}
	if lm == nil || lm.videoSender == nil {
		if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			pc.Close()
			return nil, fmt.Errorf("add video transceiver: %w", err)
		}
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil || cb.OnLocalCandidate == nil {
			return
		}
		raw, err := json.Marshal(c.ToJSON())
		if err != nil {
			e.log.Error().Err(err).Msg("marshal local candidate")
			return
		}
		cb.OnLocalCandidate(domain.Candidate(raw))
	})

	pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		e.log.Debug().Str("kind", remote.Kind().String()).Msg("remote track arrived")
		if cb.OnRemoteTrack != nil {
			cb.OnRemoteTrack(remote.Kind().String())
		}
	})

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		e.log.Debug().Str("state", s.String()).Msg("peer connection state")
		if cb.OnStateChange != nil {
			cb.OnStateChange(mapConnState(s))
		}
	})

	return &session{pc: pc, log: e.log}, nil
}

func mapConnState(s webrtc.PeerConnectionState) domain.ConnState {
	switch s {
	case webrtc.PeerConnectionStateConnecting:
		return domain.ConnConnecting
	case webrtc.PeerConnectionStateConnected:
		return domain.ConnConnected
	case webrtc.PeerConnectionStateDisconnected:
		return domain.ConnDisconnected
	case webrtc.PeerConnectionStateFailed:
		return domain.ConnFailed
	case webrtc.PeerConnectionStateClosed:
		return domain.ConnClosed
	default:
		return domain.ConnNew
	}
}

type session struct {
	pc  *webrtc.PeerConnection
	log zerolog.Logger
}

const gatherGrace = 500 * time.Millisecond

func (s *session) CreateOffer(ctx context.Context) (domain.Description, error) {
	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		return domain.Description{}, fmt.Errorf("create offer: %w", err)
	}
	if err := s.pc.SetLocalDescription(offer); err != nil {
		return domain.Description{}, fmt.Errorf("set local description: %w", err)
	}
	s.waitForGathering(ctx)
	local := s.pc.LocalDescription()
	return domain.Description{Type: local.Type.String(), SDP: local.SDP}, nil
}

func (s *session) CreateAnswer(ctx context.Context) (domain.Description, error) {
	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		return domain.Description{}, fmt.Errorf("create answer: %w", err)
	}
	if err := s.pc.SetLocalDescription(answer); err != nil {
		return domain.Description{}, fmt.Errorf("set local description: %w", err)
	}
	s.waitForGathering(ctx)
	local := s.pc.LocalDescription()
	return domain.Description{Type: local.Type.String(), SDP: local.SDP}, nil
}

// waitForGathering gives ICE a moment to collect host candidates so the SDP
// is usable immediately; trickle delivers the rest.
func (s *session) waitForGathering(ctx context.Context) {
	grace, cancel := context.WithTimeout(ctx, gatherGrace)
	defer cancel()
	select {
	case <-webrtc.GatheringCompletePromise(s.pc):
	case <-grace.Done():
	}
}

func (s *session) SetRemoteDescription(desc domain.Description) error {
	var sdpType webrtc.SDPType
	switch desc.Type {
	case "offer":
		sdpType = webrtc.SDPTypeOffer
	case "answer":
		sdpType = webrtc.SDPTypeAnswer
	default:
		return fmt.Errorf("unsupported remote description type %q", desc.Type)
	}
	return s.pc.SetRemoteDescription(webrtc.SessionDescription{Type: sdpType, SDP: desc.SDP})
}

func (s *session) AddRemoteCandidate(c domain.Candidate) error {
	var init webrtc.ICECandidateInit
	if err := json.Unmarshal(c, &init); err != nil {
		return fmt.Errorf("decode candidate: %w", err)
	}
	return s.pc.AddICECandidate(init)
}

func (s *session) Close() error {
	return s.pc.Close()
}
