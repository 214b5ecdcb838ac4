package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/OmerCohen55/VideoProject/internal/core/domain"
	"github.com/OmerCohen55/VideoProject/internal/core/port"
)

// Events is the only surface the UI observes. Callbacks run synchronously on
// the orchestrator's sequencing lock and must not call back into the
// Orchestrator; hand work off to another goroutine if needed. Any callback
// may be nil.
type Events struct {
	// PhaseChanged fires on every phase transition.
	PhaseChanged func(p domain.Phase)
	// Ringing fires when an inbound call starts ringing locally.
	Ringing func(peer domain.UserHandle)
	// RemoteToggle fires when the peer reports a mute/camera change.
	RemoteToggle func(videoOff, audioOff bool)
	// Notice carries a transient, user-visible message (errors, call end).
	Notice func(text string)
}

// session is the state owned by one live-or-pending call. It is created on
// dial or on an inbound-call notification, and every resource it references
// (media session, local media, candidate buffer) lives and dies with it —
// replaced wholesale on the next call, never reused.
type session struct {
	// token guards against stale media-engine callbacks: each session gets
	// a fresh one, and callbacks carrying an old token are discarded.
	token string

	id    domain.CallID
	role  domain.Role
	peer  domain.UserHandle
	phase domain.Phase

	media port.MediaSession
	local port.LocalMedia
	ice   *iceBuffer

	// remoteSet flips once the remote description is applied; until then
	// inbound candidates go to the buffer.
	remoteSet bool

	// busy marks an in-flight accept/dial continuation so duplicate user
	// intents are rejected while the lock is released.
	busy bool

	// accepted records a call_accepted that arrived while the dial
	// continuation still held no local media; the continuation creates the
	// offer as soon as the stream lands.
	accepted bool

	localVideoOff  bool
	localAudioOff  bool
	remoteVideoOff bool
	remoteAudioOff bool
}

// Orchestrator is the call session state machine. It reconciles UI intents,
// signaling transport events and media-engine callbacks into one correctly
// sequenced call lifecycle. All transitions are serialized on a single
// mutex; there is never more than one live session.
type Orchestrator struct {
	self    domain.UserHandle
	gateway port.SignalGateway
	calls   port.CallControl
	engine  port.MediaEngine
	roster  port.Presence
	events  Events
	log     zerolog.Logger

	mu   sync.Mutex
	sess *session

	// pendingOffer is the single buffered remote offer, held between its
	// arrival and the local accept decision. The callee routinely receives
	// the offer before the human answers the ring.
	pendingOffer *domain.Description
	pendingFrom  domain.UserHandle
}

func NewOrchestrator(
	self domain.UserHandle,
	gateway port.SignalGateway,
	calls port.CallControl,
	engine port.MediaEngine,
	roster port.Presence,
	events Events,
	log zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		self:    self,
		gateway: gateway,
		calls:   calls,
		engine:  engine,
		roster:  roster,
		events:  events,
		log:     log.With().Str("self", self.String()).Logger(),
	}
}

// Phase returns the current call phase.
func (o *Orchestrator) Phase() domain.Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sess == nil {
		return domain.PhaseIdle
	}
	return o.sess.phase
}

// Peer returns the counterpart of the current session, if any.
func (o *Orchestrator) Peer() (domain.UserHandle, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sess == nil {
		return "", false
	}
	return o.sess.peer, true
}

// HasPendingOffer reports whether the accept intent is actionable: an offer
// is buffered and it came from the peer of the ringing session.
func (o *Orchestrator) HasPendingOffer() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pendingOffer == nil {
		return false
	}
	return o.sess == nil || o.sess.peer == o.pendingFrom
}

// Dial places an outbound call to peer. On success the session sits in
// Dialing until the server relays the callee's decision.
func (o *Orchestrator) Dial(ctx context.Context, peer domain.UserHandle) error {
	peer = domain.NewUserHandle(peer.String())

	o.mu.Lock()
	if o.sess != nil {
		o.mu.Unlock()
		return domain.ErrNotIdle
	}
	if peer == o.self {
		o.mu.Unlock()
		return domain.ErrSelfCall
	}
	if o.roster != nil && !o.roster.IsOnline(peer) {
		o.mu.Unlock()
		return domain.ErrPeerOffline
	}
	s := &session{
		token: uuid.NewString(),
		role:  domain.RoleCaller,
		peer:  peer,
		phase: domain.PhaseDialing,
		ice:   newIceBuffer(),
		busy:  true,
	}
	o.sess = s
	o.mu.Unlock()

	id, err := o.calls.Call(ctx, o.self, peer)
	if err != nil {
		o.dropIfCurrent(s.token, "could not reach the call service")
		return fmt.Errorf("call request: %w", err)
	}

	o.mu.Lock()
	if o.sess != s {
		// ended/canceled while the request was in flight
		o.mu.Unlock()
		o.endQuietly(id)
		return nil
	}
	s.id = id
	o.mu.Unlock()

	local, err := o.engine.AcquireMedia(ctx)
	if err != nil {
		o.dropIfCurrent(s.token, mediaNotice(err))
		o.endQuietly(id)
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sess != s {
		local.Close()
		o.endQuietly(id)
		return nil
	}
	s.local = local
	s.busy = false
	o.log.Info().Int64("call_id", int64(id)).Str("peer", peer.String()).Msg("dialing")
	o.emitPhase(domain.PhaseDialing)
	if s.accepted {
		o.startOfferLocked(s)
	}
	return nil
}

// Accept answers the ringing inbound call. It is only actionable once the
// remote offer has arrived.
func (o *Orchestrator) Accept(ctx context.Context) error {
	o.mu.Lock()
	s := o.sess
	if s == nil || s.role != domain.RoleCallee || s.phase != domain.PhaseRingingLocal || s.busy {
		o.mu.Unlock()
		return domain.ErrNotRinging
	}
	if o.pendingOffer == nil || o.pendingFrom != s.peer {
		o.mu.Unlock()
		return domain.ErrNoPendingOffer
	}
	s.busy = true
	id := s.id
	o.mu.Unlock()

	if err := o.calls.Accept(ctx, id); err != nil {
		o.dropIfCurrent(s.token, "could not accept the call")
		return fmt.Errorf("accept request: %w", err)
	}

	local, err := o.engine.AcquireMedia(ctx)
	if err != nil {
		o.dropIfCurrent(s.token, mediaNotice(err))
		o.endQuietly(id)
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sess != s {
		// the caller hung up, or we were torn down, while off the lock
		local.Close()
		o.endQuietly(id)
		return nil
	}
	s.local = local
	s.busy = false

	offer := o.pendingOffer
	o.pendingOffer = nil
	o.pendingFrom = ""
	if offer == nil {
		// superseded while the accept request was in flight
		o.teardownLocked("call setup failed")
		o.endQuietly(id)
		return domain.ErrNoPendingOffer
	}

	media, err := o.engine.NewSession(local, o.callbacks(s.token))
	if err != nil {
		o.failNegotiationLocked(err)
		return err
	}
	s.media = media

	if err := media.SetRemoteDescription(*offer); err != nil {
		o.failNegotiationLocked(err)
		return err
	}
	s.remoteSet = true
	if err := s.ice.DrainInto(media); err != nil {
		o.log.Warn().Err(err).Msg("buffered candidate rejected")
	}

	answer, err := media.CreateAnswer(ctx)
	if err != nil {
		o.failNegotiationLocked(err)
		return err
	}
	o.sendEnvelope(domain.Envelope{
		Type:   domain.MsgAnswer,
		To:     s.peer.String(),
		From:   o.self.String(),
		Answer: &answer,
	})

	s.phase = domain.PhaseNegotiating
	o.log.Info().Int64("call_id", int64(id)).Str("peer", s.peer.String()).Msg("call accepted, answering")
	o.emitPhase(domain.PhaseNegotiating)
	return nil
}

// Reject declines the ringing inbound call. Local state returns to idle even
// if the reject request fails, so the UI never sticks.
func (o *Orchestrator) Reject(ctx context.Context) error {
	o.mu.Lock()
	s := o.sess
	if s == nil || s.phase != domain.PhaseRingingLocal || s.busy {
		o.mu.Unlock()
		return domain.ErrNotRinging
	}
	id := s.id
	o.teardownLocked("")
	o.mu.Unlock()

	if err := o.calls.Reject(ctx, id); err != nil {
		o.notice("could not notify the caller")
		return fmt.Errorf("reject request: %w", err)
	}
	return nil
}

// End hangs up whatever call exists. Calling it with no session, or twice,
// is a safe no-op. Teardown never waits for the call-control service.
func (o *Orchestrator) End(ctx context.Context) {
	o.mu.Lock()
	s := o.sess
	if s == nil {
		o.mu.Unlock()
		return
	}
	id := s.id
	peer := s.peer
	o.teardownLocked("")
	o.mu.Unlock()

	// Best-effort: the server pushes call_ended to both sides, and the
	// direct envelope covers the window where the end request fails.
	o.sendEnvelope(domain.Envelope{
		Type: domain.MsgCallEnded,
		To:   peer.String(),
		From: o.self.String(),
	})
	if !id.IsZero() {
		o.endQuietly(id)
	}
	o.log.Info().Int64("call_id", int64(id)).Msg("call ended locally")
}

// HandleEnvelope is the single entry point for inbound signaling messages.
// The transport adapter calls it from its read loop for every message.
func (o *Orchestrator) HandleEnvelope(env domain.Envelope) {
	switch env.Type {
	case domain.MsgIncomingCall:
		o.handleIncomingCall(env)
	case domain.MsgCallAccepted:
		o.handleCallAccepted(env)
	case domain.MsgCallRejected:
		o.handleCallRejected(env)
	case domain.MsgCallEnded:
		o.handleCallEnded()
	case domain.MsgOffer:
		o.handleOffer(env)
	case domain.MsgAnswer:
		o.handleAnswer(env)
	case domain.MsgICECandidate:
		o.handleCandidate(env)
	case domain.MsgVideoToggle, domain.MsgMuteToggle:
		o.handleToggle(env)
	default:
		o.log.Debug().Str("type", env.Type).Msg("ignoring unknown signaling message")
	}
}

func (o *Orchestrator) handleIncomingCall(env domain.Envelope) {
	from := env.Sender()

	o.mu.Lock()
	if o.sess != nil {
		// Busy: auto-reject the new call without touching the live session.
		o.mu.Unlock()
		o.log.Info().Str("from", from.String()).Int64("call_id", int64(env.CallID)).
			Msg("busy, auto-rejecting inbound call")
		o.rejectQuietly(env.CallID)
		return
	}
	s := &session{
		token: uuid.NewString(),
		id:    env.CallID,
		role:  domain.RoleCallee,
		peer:  from,
		phase: domain.PhaseRingingLocal,
		ice:   newIceBuffer(),
	}
	o.sess = s
	o.log.Info().Str("from", from.String()).Int64("call_id", int64(env.CallID)).Msg("inbound call ringing")
	if o.events.Ringing != nil {
		o.events.Ringing(from)
	}
	o.emitPhase(domain.PhaseRingingLocal)
	o.mu.Unlock()
}

// handleCallAccepted is the caller-side trigger: the server confirmed the
// callee picked up, so we — and only we — create the offer now.
func (o *Orchestrator) handleCallAccepted(env domain.Envelope) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := o.sess
	if s == nil || s.role != domain.RoleCaller || s.phase != domain.PhaseDialing {
		o.log.Debug().Msg("stray call_accepted, ignoring")
		return
	}
	if s.media != nil {
		// duplicate trigger; negotiation already started
		return
	}
	if s.local == nil {
		if s.busy {
			// media acquisition still in flight; the dial continuation
			// creates the offer once the stream lands
			s.accepted = true
			return
		}
		o.failNegotiationLocked(errors.New("no local media at accept"))
		return
	}
	o.log.Info().Str("by", env.By).Int64("call_id", int64(s.id)).Msg("call accepted by peer")
	o.startOfferLocked(s)
}

// startOfferLocked begins caller-side negotiation: peer connection, offer,
// send. No-op if a connection already exists. The caller must hold o.mu.
func (o *Orchestrator) startOfferLocked(s *session) {
	if s.media != nil {
		return
	}
	media, err := o.engine.NewSession(s.local, o.callbacks(s.token))
	if err != nil {
		o.failNegotiationLocked(err)
		return
	}
	s.media = media

	offer, err := media.CreateOffer(context.Background())
	if err != nil {
		o.failNegotiationLocked(err)
		return
	}
	o.sendEnvelope(domain.Envelope{
		Type:  domain.MsgOffer,
		To:    s.peer.String(),
		From:  o.self.String(),
		Offer: &offer,
	})

	s.phase = domain.PhaseNegotiating
	o.log.Info().Int64("call_id", int64(s.id)).Str("peer", s.peer.String()).Msg("offer sent")
	o.emitPhase(domain.PhaseNegotiating)
}

func (o *Orchestrator) handleCallRejected(env domain.Envelope) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sess == nil {
		return
	}
	o.log.Info().Str("by", env.By).Msg("call rejected by peer")
	o.teardownLocked("call rejected by " + env.By)
}

func (o *Orchestrator) handleCallEnded() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sess == nil {
		return
	}
	o.teardownLocked("call ended")
}

func (o *Orchestrator) handleOffer(env domain.Envelope) {
	if env.Offer == nil {
		return
	}
	from := env.Sender()

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sess != nil && o.sess.peer != from {
		// stray/late offer from an unrelated peer
		o.log.Debug().Str("from", from.String()).Msg("discarding offer from unrelated peer")
		return
	}
	o.pendingOffer = env.Offer
	o.pendingFrom = from
	o.log.Debug().Str("from", from.String()).Msg("offer buffered")
}

func (o *Orchestrator) handleAnswer(env domain.Envelope) {
	if env.Answer == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	s := o.sess
	if s == nil || s.role != domain.RoleCaller || s.media == nil || s.peer != env.Sender() {
		o.log.Debug().Msg("stray answer, ignoring")
		return
	}
	if s.remoteSet {
		// duplicate answer
		return
	}
	if err := s.media.SetRemoteDescription(*env.Answer); err != nil {
		o.failNegotiationLocked(err)
		return
	}
	s.remoteSet = true
	if err := s.ice.DrainInto(s.media); err != nil {
		o.log.Warn().Err(err).Msg("buffered candidate rejected")
	}
}

func (o *Orchestrator) handleCandidate(env domain.Envelope) {
	if len(env.Candidate) == 0 {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	s := o.sess
	if s == nil || s.peer != env.Sender() {
		o.log.Debug().Str("from", env.From).Msg("dropping candidate with no matching session")
		return
	}
	if !s.remoteSet || s.media == nil {
		s.ice.Enqueue(env.Candidate)
		return
	}
	if err := s.media.AddRemoteCandidate(env.Candidate); err != nil {
		o.log.Warn().Err(err).Msg("candidate rejected")
	}
}

// callbacks builds the media-engine callback set for one session. Every
// callback re-checks the session token under the lock so events from an
// already-closed connection are discarded.
func (o *Orchestrator) callbacks(token string) port.SessionCallbacks {
	return port.SessionCallbacks{
		OnLocalCandidate: func(c domain.Candidate) { o.onLocalCandidate(token, c) },
		OnRemoteTrack:    func(kind string) { o.onRemoteTrack(token, kind) },
		OnStateChange:    func(s domain.ConnState) { o.onStateChange(token, s) },
	}
}

func (o *Orchestrator) onLocalCandidate(token string, c domain.Candidate) {
	o.mu.Lock()
	s := o.sess
	if s == nil || s.token != token {
		o.mu.Unlock()
		return
	}
	peer := s.peer
	o.mu.Unlock()

	o.sendEnvelope(domain.Envelope{
		Type:      domain.MsgICECandidate,
		To:        peer.String(),
		From:      o.self.String(),
		Candidate: c,
	})
}

func (o *Orchestrator) onRemoteTrack(token, kind string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := o.sess
	if s == nil || s.token != token {
		return
	}
	o.log.Debug().Str("kind", kind).Msg("remote track received")
	if s.phase == domain.PhaseNegotiating {
		s.phase = domain.PhaseActive
		o.emitPhase(domain.PhaseActive)
	}
}

func (o *Orchestrator) onStateChange(token string, state domain.ConnState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := o.sess
	if s == nil || s.token != token {
		return
	}
	o.log.Debug().Stringer("state", state).Msg("connection state changed")
	if state.Dead() {
		id := s.id
		o.teardownLocked("connection lost")
		o.endQuietly(id)
	}
}

// failNegotiationLocked handles an exception during offer/answer work: same
// teardown as a normal end, distinct notice.
func (o *Orchestrator) failNegotiationLocked(err error) {
	o.log.Error().Err(err).Msg("negotiation failed")
	id := domain.CallID(0)
	if o.sess != nil {
		id = o.sess.id
	}
	o.teardownLocked("call setup failed")
	o.endQuietly(id)
}

// teardownLocked releases everything the session owns and resets to idle.
// It is idempotent: with no session it only clears the pending offer. The
// caller must hold o.mu.
func (o *Orchestrator) teardownLocked(noticeText string) {
	o.pendingOffer = nil
	o.pendingFrom = ""

	s := o.sess
	if s == nil {
		return
	}
	s.phase = domain.PhaseEnding
	o.emitPhase(domain.PhaseEnding)
	if s.media != nil {
		if err := s.media.Close(); err != nil {
			o.log.Debug().Err(err).Msg("closing peer connection")
		}
		s.media = nil
	}
	if s.local != nil {
		s.local.Close()
		s.local = nil
	}
	s.ice = newIceBuffer()
	o.sess = nil
	o.emitPhase(domain.PhaseIdle)
	if noticeText != "" {
		o.notice(noticeText)
	}
}

// dropIfCurrent aborts an in-flight dial/accept continuation: if the session
// identified by token is still current it is torn down with a notice.
func (o *Orchestrator) dropIfCurrent(token, noticeText string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sess == nil || o.sess.token != token {
		return
	}
	o.teardownLocked(noticeText)
}

// endQuietly fires an end request without blocking the state machine; the
// registry entry matters less than a responsive UI.
func (o *Orchestrator) endQuietly(id domain.CallID) {
	if id.IsZero() {
		return
	}
	go func() {
		if err := o.calls.End(context.Background(), id); err != nil {
			o.log.Warn().Err(err).Int64("call_id", int64(id)).Msg("end request failed")
		}
	}()
}

func (o *Orchestrator) rejectQuietly(id domain.CallID) {
	if id.IsZero() {
		return
	}
	go func() {
		if err := o.calls.Reject(context.Background(), id); err != nil {
			o.log.Warn().Err(err).Int64("call_id", int64(id)).Msg("busy reject failed")
		}
	}()
}

func (o *Orchestrator) sendEnvelope(env domain.Envelope) {
	if err := o.gateway.Send(context.Background(), env); err != nil {
		o.log.Warn().Err(err).Str("type", env.Type).Msg("signaling send failed")
	}
}

func (o *Orchestrator) emitPhase(p domain.Phase) {
	if o.events.PhaseChanged != nil {
		o.events.PhaseChanged(p)
	}
}

func (o *Orchestrator) notice(text string) {
	if o.events.Notice != nil {
		o.events.Notice(text)
	}
}

func mediaNotice(err error) string {
	var me *domain.MediaError
	if errors.As(err, &me) {
		return me.UserMessage()
	}
	return (&domain.MediaError{Reason: domain.MediaUnknown}).UserMessage()
}
