package app

import (
	"testing"
	"time"

	"github.com/dkeye/Talk/internal/domain"
)

func testCall(id string) CallSession {
	return CallSession{
		ID:          id,
		CallerID:    "alice",
		ReceiverID:  "bob",
		CallerSID:   "sid-a",
		ReceiverSID: "sid-b",
		Kind:        domain.CallVideo,
		Status:      domain.CallInitiated,
		CreatedAt:   time.Unix(100, 0),
	}
}

func TestCallTableAcceptGuards(t *testing.T) {
	tbl := NewCallTable()
	tbl.Add(testCall("c1"))

	cs, ok := tbl.Accept("c1", "sid-b2")
	if !ok || cs.Status != domain.CallAccepted || cs.ReceiverSID != "sid-b2" {
		t.Fatalf("accept must pin the accepting session, got %+v (ok=%v)", cs, ok)
	}

	// A second accept finds the call no longer initiated.
	if _, ok := tbl.Accept("c1", "sid-b3"); ok {
		t.Fatalf("double accept must be rejected by the guard")
	}

	// Accept of a removed call must never resurrect it.
	tbl.Remove("c1")
	if _, ok := tbl.Accept("c1", "sid-b4"); ok {
		t.Fatalf("accept after removal must be a no-op")
	}
	if tbl.Len() != 0 {
		t.Fatalf("table must stay empty, has %d", tbl.Len())
	}
}

func TestCallTableRemove(t *testing.T) {
	tbl := NewCallTable()
	tbl.Add(testCall("c1"))

	cs, ok := tbl.Remove("c1")
	if !ok || cs.ID != "c1" {
		t.Fatalf("remove must return the final snapshot")
	}
	if _, ok := tbl.Remove("c1"); ok {
		t.Fatalf("second remove must lose the race")
	}
	if _, ok := tbl.Get("c1"); ok {
		t.Fatalf("removed call must be gone")
	}
}

func TestCallTableRefreshSessions(t *testing.T) {
	tbl := NewCallTable()
	tbl.Add(testCall("c1"))
	tbl.Add(testCall("c2"))

	if n := tbl.RefreshSessions("bob", "sid-b9"); n != 2 {
		t.Fatalf("expected 2 refreshed sides, got %d", n)
	}
	cs, _ := tbl.Get("c1")
	if cs.ReceiverSID != "sid-b9" || cs.CallerSID != "sid-a" {
		t.Fatalf("only bob's side must move, got %+v", cs)
	}
	if n := tbl.RefreshSessions("bob", "sid-b9"); n != 0 {
		t.Fatalf("refresh must be idempotent, got %d", n)
	}
}

func TestCallSessionPeerSID(t *testing.T) {
	cs := testCall("c1")
	if peer, ok := cs.PeerSID("sid-a"); !ok || peer != "sid-b" {
		t.Fatalf("caller's peer must be the receiver session")
	}
	if peer, ok := cs.PeerSID("sid-b"); !ok || peer != "sid-a" {
		t.Fatalf("receiver's peer must be the caller session")
	}
	if _, ok := cs.PeerSID("sid-x"); ok {
		t.Fatalf("a foreign session has no peer in this call")
	}
}

func TestCallTableRemoveInvolving(t *testing.T) {
	tbl := NewCallTable()
	tbl.Add(testCall("c1"))
	other := testCall("c2")
	other.CallerID = "carol"
	other.ReceiverID = "dave"
	tbl.Add(other)

	removed := tbl.RemoveInvolving("bob")
	if len(removed) != 1 || removed[0].ID != "c1" {
		t.Fatalf("expected only c1 removed, got %+v", removed)
	}
	if tbl.Len() != 1 {
		t.Fatalf("unrelated call must survive")
	}
}
