// Package http exposes the call-control REST API and the websocket relay.
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/OmerCohen55/VideoProject/internal/adapter/driven/call/memory"
	"github.com/OmerCohen55/VideoProject/internal/adapter/driven/gateway/ws"
	"github.com/OmerCohen55/VideoProject/internal/core/domain"
	"github.com/OmerCohen55/VideoProject/internal/core/port"
)

type Handler struct {
	Calls    port.CallRegistry
	Presence port.PresenceStore
	Hub      *ws.Hub
	Log      zerolog.Logger
}

func NewHandler(calls port.CallRegistry, presence port.PresenceStore, hub *ws.Hub, log zerolog.Logger) *Handler {
	return &Handler{Calls: calls, Presence: presence, Hub: hub, Log: log}
}

func (h *Handler) NewRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Post("/call", h.StartCall)
	r.Post("/accept", h.AcceptCall)
	r.Post("/reject", h.RejectCall)
	r.Post("/end", h.EndCall)
	r.Post("/keepalive", h.KeepAlive)
	r.Get("/online", h.Online)
	r.Get("/calls/{email}", h.CallHistory)
	r.Get("/ws", h.ServeWS)

	return r
}

type startCallRequest struct {
	CallerEmail   string `json:"caller_email"`
	ReceiverEmail string `json:"receiver_email"`
}

type startCallResponse struct {
	CallID domain.CallID `json:"call_id"`
}

type callActionRequest struct {
	CallID domain.CallID `json:"call_id"`
}

// StartCall registers a pending call and rings the receiver over the relay.
func (h *Handler) StartCall(w http.ResponseWriter, r *http.Request) {
	var req startCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}
	caller := domain.NewUserHandle(req.CallerEmail)
	receiver := domain.NewUserHandle(req.ReceiverEmail)
	if caller.IsZero() || receiver.IsZero() {
		http.Error(w, "caller_email and receiver_email are required", http.StatusBadRequest)
		return
	}
	if caller == receiver {
		http.Error(w, "cannot call yourself", http.StatusBadRequest)
		return
	}
	if !h.Presence.IsOnline(receiver) {
		http.Error(w, "receiver offline", http.StatusConflict)
		return
	}

	rec, err := h.Calls.Create(r.Context(), caller, receiver)
	if err != nil {
		http.Error(w, "could not register call", http.StatusInternalServerError)
		return
	}
	h.Log.Info().Int64("call_id", int64(rec.ID)).
		Str("caller", string(caller)).Str("receiver", string(receiver)).
		Msg("call registered")

	h.Hub.SendTo(domain.Envelope{
		Type:   domain.MsgIncomingCall,
		From:   string(caller),
		To:     string(receiver),
		CallID: rec.ID,
	})

	writeJSON(w, http.StatusOK, startCallResponse{CallID: rec.ID})
}

// AcceptCall flips the call to accepted and tells the caller to start
// negotiating.
func (h *Handler) AcceptCall(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.resolve(w, r, port.CallAccepted)
	if !ok {
		return
	}
	h.Hub.SendTo(domain.Envelope{
		Type:   domain.MsgCallAccepted,
		By:     string(rec.Receiver),
		To:     string(rec.Caller),
		CallID: rec.ID,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RejectCall(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.resolve(w, r, port.CallRejected)
	if !ok {
		return
	}
	h.Hub.SendTo(domain.Envelope{
		Type:   domain.MsgCallRejected,
		By:     string(rec.Receiver),
		To:     string(rec.Caller),
		CallID: rec.ID,
	})
	w.WriteHeader(http.StatusNoContent)
}

// EndCall marks the call ended and notifies both parties. The side that
// initiated the end already tore down and ignores its copy.
func (h *Handler) EndCall(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.resolve(w, r, port.CallEnded)
	if !ok {
		return
	}
	for _, to := range []domain.UserHandle{rec.Caller, rec.Receiver} {
		h.Hub.SendTo(domain.Envelope{
			Type:   domain.MsgCallEnded,
			To:     string(to),
			CallID: rec.ID,
		})
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request, status port.CallStatus) (port.CallRecord, bool) {
	var req callActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return port.CallRecord{}, false
	}
	rec, err := h.Calls.SetStatus(r.Context(), req.CallID, status)
	if errors.Is(err, memory.ErrCallNotFound) {
		http.Error(w, "call not found", http.StatusNotFound)
		return port.CallRecord{}, false
	}
	if err != nil {
		http.Error(w, "could not update call", http.StatusInternalServerError)
		return port.CallRecord{}, false
	}
	return rec, true
}

// KeepAlive refreshes the caller's presence window.
func (h *Handler) KeepAlive(w http.ResponseWriter, r *http.Request) {
	user := domain.NewUserHandle(r.URL.Query().Get("user"))
	if user.IsZero() {
		http.Error(w, "user query parameter is required", http.StatusBadRequest)
		return
	}
	h.Presence.Touch(user)
	w.WriteHeader(http.StatusNoContent)
}

// Online lists users with a fresh keepalive.
func (h *Handler) Online(w http.ResponseWriter, r *http.Request) {
	handles := h.Presence.Online()
	emails := make([]string, 0, len(handles))
	for _, h := range handles {
		emails = append(emails, string(h))
	}
	writeJSON(w, http.StatusOK, emails)
}

type callHistoryEntry struct {
	CallID   domain.CallID `json:"call_id"`
	Caller   string        `json:"caller"`
	Receiver string        `json:"receiver"`
	Status   string        `json:"status"`
}

// CallHistory lists every call the user took part in, either side.
func (h *Handler) CallHistory(w http.ResponseWriter, r *http.Request) {
	user := domain.NewUserHandle(chi.URLParam(r, "email"))
	if user.IsZero() {
		http.Error(w, "email is required", http.StatusBadRequest)
		return
	}
	recs, err := h.Calls.ByHandle(r.Context(), user)
	if err != nil {
		http.Error(w, "could not list calls", http.StatusInternalServerError)
		return
	}
	out := make([]callHistoryEntry, 0, len(recs))
	for _, rec := range recs {
		out = append(out, callHistoryEntry{
			CallID:   rec.ID,
			Caller:   string(rec.Caller),
			Receiver: string(rec.Receiver),
			Status:   string(rec.Status),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
