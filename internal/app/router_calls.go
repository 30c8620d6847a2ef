package app

import (
	"context"

	"github.com/dkeye/Talk/internal/core"
	"github.com/dkeye/Talk/internal/domain"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// Failure reasons carried by call_failed so clients can render offline vs
// not-found vs generic failure distinctly.
const (
	ReasonOffline     = "offline"
	ReasonNotFound    = "not_found"
	ReasonUnreachable = "unreachable"
	ReasonInternal    = "internal_error"
)

func (r *Router) emitCallFailed(conn core.SignalConnection, callID, reason string) {
	r.emit(conn, struct {
		Type   string `json:"type"`
		CallID string `json:"callId,omitempty"`
		Reason string `json:"reason"`
	}{"call_failed", callID, reason})
}

// InitiateCall creates a call toward a currently-reachable receiver. The
// durable record is written first; only a successful write may populate the
// call table, so a failed create leaves no partial live state.
func (r *Router) InitiateCall(ctx context.Context, caller domain.UserID, callerSID core.SessionID, conn core.SignalConnection, receiver domain.UserID, kind domain.CallKind) {
	receiverSID, _, ok := r.Presence.Lookup(receiver)
	if !ok || !r.Presence.IsLive(receiverSID) {
		r.emitCallFailed(conn, "", ReasonOffline)
		return
	}

	call := &domain.Call{
		ID:         uuid.NewString(),
		Kind:       kind,
		Status:     domain.CallInitiated,
		CreatedAt:  r.clock.Now(),
		CallerID:   caller,
		ReceiverID: receiver,
	}
	if err := r.store.CreateCall(ctx, call); err != nil {
		log.Error().Err(err).Str("module", "app.router").Str("call", call.ID).Msg("create call")
		r.emitCallFailed(conn, "", ReasonInternal)
		return
	}

	// Presence may have changed while the store call was in flight.
	receiverSID, receiverConn, ok := r.Presence.Lookup(receiver)
	if !ok || !r.Presence.IsLive(receiverSID) {
		now := r.clock.Now()
		if err := r.store.EndCall(ctx, call.ID, domain.CallEnded, 0, now); err != nil {
			log.Error().Err(err).Str("module", "app.router").Str("call", call.ID).Msg("end unanswerable call")
		}
		r.emitCallFailed(conn, "", ReasonOffline)
		return
	}

	r.Calls.Add(CallSession{
		ID:          call.ID,
		CallerID:    caller,
		ReceiverID:  receiver,
		CallerSID:   callerSID,
		ReceiverSID: receiverSID,
		Kind:        kind,
		Status:      domain.CallInitiated,
		CreatedAt:   call.CreatedAt,
	})
	log.Info().Str("module", "app.router").Str("call", call.ID).
		Str("caller", string(caller)).Str("receiver", string(receiver)).Str("kind", string(kind)).Msg("call initiated")

	r.emit(receiverConn, struct {
		Type     string       `json:"type"`
		CallID   string       `json:"callId"`
		Caller   *domain.User `json:"caller"`
		CallType string       `json:"callType"`
	}{"incoming_call", call.ID, r.profileOf(ctx, caller), string(kind)})

	r.emit(conn, struct {
		Type       string `json:"type"`
		CallID     string `json:"callId"`
		ReceiverID string `json:"receiverId"`
		CallType   string `json:"callType"`
	}{"call_initiated", call.ID, string(receiver), string(kind)})
}

// AcceptCall moves an initiated call to accepted and pins the receiver side
// to the accepting session. Absent call ids are a no-op toward the table and
// a not_found toward the acting session only.
func (r *Router) AcceptCall(ctx context.Context, actor domain.UserID, sid core.SessionID, conn core.SignalConnection, callID string) {
	cs, ok := r.Calls.Get(callID)
	if !ok || cs.ReceiverID != actor {
		r.emitCallFailed(conn, callID, ReasonNotFound)
		return
	}
	if err := r.store.MarkCallAccepted(ctx, callID); err != nil {
		log.Error().Err(err).Str("module", "app.router").Str("call", callID).Msg("mark accepted")
		r.emitCallFailed(conn, callID, ReasonInternal)
		return
	}
	// Re-check under the table lock: the call may have ended while the store
	// write was in flight, and an accept must never resurrect it.
	cs, ok = r.Calls.Accept(callID, sid)
	if !ok {
		if _, still := r.Calls.Get(callID); still {
			// Duplicate accept of a live call; the first one already notified.
			return
		}
		r.emitCallFailed(conn, callID, ReasonNotFound)
		return
	}
	log.Info().Str("module", "app.router").Str("call", callID).Str("receiver", string(actor)).Msg("call accepted")
	r.emitToSession(cs.CallerSID, struct {
		Type   string `json:"type"`
		CallID string `json:"callId"`
	}{"call_accepted", callID})
}

// RejectCall terminates an initiated call and removes it from the live table.
func (r *Router) RejectCall(ctx context.Context, actor domain.UserID, conn core.SignalConnection, callID string) {
	cs, ok := r.Calls.Get(callID)
	if !ok || !cs.Involves(actor) {
		r.emitCallFailed(conn, callID, ReasonNotFound)
		return
	}
	now := r.clock.Now()
	if err := r.store.EndCall(ctx, callID, domain.CallRejected, 0, now); err != nil {
		log.Error().Err(err).Str("module", "app.router").Str("call", callID).Msg("reject call")
		r.emitCallFailed(conn, callID, ReasonInternal)
		return
	}
	cs, ok = r.Calls.Remove(callID)
	if !ok {
		return
	}
	log.Info().Str("module", "app.router").Str("call", callID).Msg("call rejected")
	r.emitToSession(cs.CallerSID, struct {
		Type   string `json:"type"`
		CallID string `json:"callId"`
	}{"call_rejected", callID})
}

// EndCall terminates a live call from either side, computing the duration
// as elapsed time since creation, and notifies every still-live participant.
func (r *Router) EndCall(ctx context.Context, actor domain.UserID, conn core.SignalConnection, callID string) {
	cs, ok := r.Calls.Get(callID)
	if !ok || !cs.Involves(actor) {
		r.emitCallFailed(conn, callID, ReasonNotFound)
		return
	}
	now := r.clock.Now()
	duration := now.Sub(cs.CreatedAt)
	if err := r.store.EndCall(ctx, callID, domain.CallEnded, duration, now); err != nil {
		log.Error().Err(err).Str("module", "app.router").Str("call", callID).Msg("end call")
		r.emitCallFailed(conn, callID, ReasonInternal)
		return
	}
	cs, ok = r.Calls.Remove(callID)
	if !ok {
		// Lost the race with a concurrent end; the winner already notified.
		return
	}
	log.Info().Str("module", "app.router").Str("call", callID).Dur("duration", duration).Msg("call ended")
	ended := struct {
		Type     string `json:"type"`
		CallID   string `json:"callId"`
		Duration int64  `json:"duration"`
	}{"call_ended", callID, int64(duration.Seconds())}
	r.emitToSession(cs.CallerSID, ended)
	r.emitToSession(cs.ReceiverSID, ended)
}

// endCallsInvolving ends every live call of a permanently-disconnected user,
// notifying each still-connected counterparty exactly once.
func (r *Router) endCallsInvolving(ctx context.Context, uid domain.UserID) {
	for _, cs := range r.Calls.RemoveInvolving(uid) {
		now := r.clock.Now()
		duration := now.Sub(cs.CreatedAt)
		if err := r.store.EndCall(ctx, cs.ID, domain.CallEnded, duration, now); err != nil {
			log.Error().Err(err).Str("module", "app.router").Str("call", cs.ID).Msg("end call on disconnect")
		}
		_, peerSID := cs.Counterparty(uid)
		r.emitToSession(peerSID, struct {
			Type     string `json:"type"`
			CallID   string `json:"callId"`
			Duration int64  `json:"duration"`
			Reason   string `json:"reason"`
		}{"call_ended", cs.ID, int64(duration.Seconds()), "peer_disconnected"})
		log.Info().Str("module", "app.router").Str("call", cs.ID).Str("user", string(uid)).Msg("call ended by disconnect")
	}
}

// RelayOffer forwards an in-call SDP offer to the sender's peer session.
func (r *Router) RelayOffer(sid core.SessionID, conn core.SignalConnection, callID string, sdp webrtc.SessionDescription) {
	r.relaySDP(sid, conn, callID, "webrtc_offer", sdp)
}

// RelayAnswer forwards an in-call SDP answer to the sender's peer session.
func (r *Router) RelayAnswer(sid core.SessionID, conn core.SignalConnection, callID string, sdp webrtc.SessionDescription) {
	r.relaySDP(sid, conn, callID, "webrtc_answer", sdp)
}

func (r *Router) relaySDP(sid core.SessionID, conn core.SignalConnection, callID, event string, sdp webrtc.SessionDescription) {
	peerSID, ok := r.resolvePeer(sid, callID)
	if !ok {
		r.emitCallFailed(conn, callID, ReasonNotFound)
		return
	}
	delivered := r.emitToSession(peerSID, struct {
		Type   string `json:"type"`
		CallID string `json:"callId"`
		SDP    string `json:"sdp"`
	}{event, callID, sdp.SDP})
	if !delivered {
		r.emitCallFailed(conn, callID, ReasonUnreachable)
	}
}

// RelayCandidate forwards an ICE candidate to the peer session. Candidates
// for a dead target are dropped, never queued.
func (r *Router) RelayCandidate(sid core.SessionID, callID string, cand webrtc.ICECandidateInit) {
	peerSID, ok := r.resolvePeer(sid, callID)
	if !ok {
		return
	}
	// sdpMid and sdpMLineIndex pass through as received: an empty mid or a
	// zero index is meaningful, only a nil field stays absent.
	r.emitToSession(peerSID, struct {
		Type          string  `json:"type"`
		CallID        string  `json:"callId"`
		Candidate     string  `json:"candidate"`
		SDPMid        *string `json:"sdpMid,omitempty"`
		SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
	}{"webrtc_ice_candidate", callID, cand.Candidate, cand.SDPMid, cand.SDPMLineIndex})
}

func (r *Router) resolvePeer(sid core.SessionID, callID string) (core.SessionID, bool) {
	cs, ok := r.Calls.Get(callID)
	if !ok {
		return "", false
	}
	return cs.PeerSID(sid)
}
