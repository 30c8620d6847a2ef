package app

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/dkeye/Talk/internal/domain"
	"github.com/pion/webrtc/v4"
)

func setupAcceptedCall(t *testing.T) (*Router, *fakeConn, *fakeConn, string) {
	t.Helper()
	r, _, _ := newTestRouter()
	alice := attach(t, r, "alice", "sid-a")
	bob := attach(t, r, "bob", "sid-b")
	callID := startCall(t, r, alice, "alice", "sid-a", "bob", domain.CallVideo)
	r.AcceptCall(context.Background(), "bob", "sid-b", bob, callID)
	return r, alice, bob, callID
}

func TestRelaySymmetric(t *testing.T) {
	r, alice, bob, callID := setupAcceptedCall(t)

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0 offer"}
	r.RelayOffer("sid-a", alice, callID, offer)
	if ev := bob.lastOfType(t, "webrtc_offer"); ev["sdp"] != "v=0 offer" || ev["callId"] != callID {
		t.Fatalf("bad relayed offer: %v", ev)
	}

	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 answer"}
	r.RelayAnswer("sid-b", bob, callID, answer)
	if ev := alice.lastOfType(t, "webrtc_answer"); ev["sdp"] != "v=0 answer" {
		t.Fatalf("bad relayed answer: %v", ev)
	}

	mid := "0"
	idx := uint16(0)
	r.RelayCandidate("sid-b", callID, webrtc.ICECandidateInit{
		Candidate: "candidate:1 1 udp 2130706431 10.0.0.1 54400 typ host", SDPMid: &mid, SDPMLineIndex: &idx,
	})
	ev := alice.lastOfType(t, "webrtc_ice_candidate")
	if ev["candidate"] == "" || ev["callId"] != callID {
		t.Fatalf("bad relayed candidate: %v", ev)
	}
}

func TestRelayCandidateKeepsZeroValuedFields(t *testing.T) {
	r, alice, bob, callID := setupAcceptedCall(t)

	// The first m-line of a call has sdpMLineIndex 0 and may carry an empty
	// mid; both must reach the peer as-is.
	mid := ""
	idx := uint16(0)
	r.RelayCandidate("sid-a", callID, webrtc.ICECandidateInit{
		Candidate: "candidate:1 1 udp 2130706431 10.0.0.1 54400 typ host", SDPMid: &mid, SDPMLineIndex: &idx,
	})
	ev := bob.lastOfType(t, "webrtc_ice_candidate")
	if v, ok := ev["sdpMLineIndex"]; !ok || v != float64(0) {
		t.Fatalf("zero sdpMLineIndex must survive the relay, got %v", ev)
	}
	if v, ok := ev["sdpMid"]; !ok || v != "" {
		t.Fatalf("empty sdpMid must survive the relay, got %v", ev)
	}

	// A candidate without either field stays without them.
	r.RelayCandidate("sid-b", callID, webrtc.ICECandidateInit{Candidate: "candidate:2"})
	ev = alice.lastOfType(t, "webrtc_ice_candidate")
	if _, ok := ev["sdpMid"]; ok {
		t.Fatalf("absent sdpMid must stay absent, got %v", ev)
	}
	if _, ok := ev["sdpMLineIndex"]; ok {
		t.Fatalf("absent sdpMLineIndex must stay absent, got %v", ev)
	}
}

func TestRelayFromForeignSessionIsDropped(t *testing.T) {
	r, _, bob, callID := setupAcceptedCall(t)
	carol := attach(t, r, "carol", "sid-c")

	r.RelayOffer("sid-c", carol, callID, webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "x"})
	if ev := carol.lastOfType(t, "call_failed"); ev["reason"] != ReasonNotFound {
		t.Fatalf("foreign session must not resolve a peer, got %v", ev)
	}
	if n := bob.countOfType(t, "webrtc_offer"); n != 0 {
		t.Fatalf("nothing may reach the call participants")
	}
}

func TestRelayToDeadTarget(t *testing.T) {
	r, alice, _, callID := setupAcceptedCall(t)
	r.Presence.DropSession("sid-b")

	r.RelayOffer("sid-a", alice, callID, webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "x"})
	if ev := alice.lastOfType(t, "call_failed"); ev["reason"] != ReasonUnreachable {
		t.Fatalf("offer to a dead target must fail unreachable, got %v", ev)
	}

	// Candidates are dropped silently, never queued.
	before := len(alice.events(t))
	r.RelayCandidate("sid-a", callID, webrtc.ICECandidateInit{Candidate: "candidate:1"})
	if len(alice.events(t)) != before {
		t.Fatalf("candidate drop must be silent")
	}
}

func TestRelayDirectByUser(t *testing.T) {
	r, _, _ := newTestRouter()
	alice := attach(t, r, "alice", "sid-a")
	bob := attach(t, r, "bob", "sid-b")

	payload := json.RawMessage(`{"sdp":"v=0"}`)
	r.RelayDirect("alice", alice, "bob", "file_webrtc_offer", payload)

	ev := bob.lastOfType(t, "file_webrtc_offer")
	if ev["fromUserId"] != "alice" {
		t.Fatalf("relay must name the sender, got %v", ev)
	}
	inner, _ := ev["payload"].(map[string]any)
	if inner["sdp"] != "v=0" {
		t.Fatalf("payload must pass through verbatim, got %v", ev)
	}
}

func TestRelayDirectToOfflineUser(t *testing.T) {
	r, _, _ := newTestRouter()
	alice := attach(t, r, "alice", "sid-a")

	r.RelayDirect("alice", alice, "bob", "file_webrtc_offer", json.RawMessage(`{}`))
	if ev := alice.lastOfType(t, "error"); ev["message"] != "user offline" {
		t.Fatalf("expected offline error, got %v", ev)
	}
}
