package domain

import "encoding/json"

// Signaling message types carried over the WebSocket transport. The names
// (and the dash in the toggle types) are the wire protocol and must not
// change.
const (
	MsgIncomingCall = "incoming_call"
	MsgCallAccepted = "call_accepted"
	MsgCallRejected = "call_rejected"
	MsgCallEnded    = "call_ended"
	MsgOffer        = "webrtc_offer"
	MsgAnswer       = "webrtc_answer"
	MsgICECandidate = "webrtc_ice_candidate"
	MsgVideoToggle  = "video-toggle"
	MsgMuteToggle   = "mute-toggle"
)

// Description is a session description as exchanged between peers:
// {"type":"offer","sdp":"..."}.
type Description struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// Candidate is an ICE candidate kept opaque; the orchestrator buffers and
// forwards it, only the media engine interprets it.
type Candidate = json.RawMessage

// Envelope is the single JSON shape for every signaling message, server push
// and peer relay alike. Fields not used by a given type stay empty.
type Envelope struct {
	Type      string       `json:"type"`
	From      string       `json:"from,omitempty"`
	To        string       `json:"to,omitempty"`
	By        string       `json:"by,omitempty"`
	CallID    CallID       `json:"call_id,omitempty"`
	Offer     *Description `json:"offer,omitempty"`
	Answer    *Description `json:"answer,omitempty"`
	Candidate Candidate    `json:"candidate,omitempty"`
	Off       *bool        `json:"off,omitempty"`
}

// Sender returns the peer handle an envelope claims to come from.
func (e Envelope) Sender() UserHandle {
	return NewUserHandle(e.From)
}
