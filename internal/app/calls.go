package app

import (
	"sync"
	"time"

	"github.com/dkeye/Talk/internal/core"
	"github.com/dkeye/Talk/internal/domain"
)

// CallSession is the live routing state of one call. Transport session ids
// are frozen here and refreshed explicitly on reconnect, so signaling keeps
// reaching the current socket rather than a stale one.
type CallSession struct {
	ID          string
	CallerID    domain.UserID
	ReceiverID  domain.UserID
	CallerSID   core.SessionID
	ReceiverSID core.SessionID
	Kind        domain.CallKind
	Status      domain.CallStatus
	CreatedAt   time.Time
}

// PeerSID resolves "the other end" by comparing the sending session to the
// recorded caller/receiver sessions, not by user identity. That keeps the
// SDP/ICE relay symmetric without re-deriving the sender's logical role.
func (cs CallSession) PeerSID(from core.SessionID) (core.SessionID, bool) {
	switch from {
	case cs.CallerSID:
		return cs.ReceiverSID, true
	case cs.ReceiverSID:
		return cs.CallerSID, true
	}
	return "", false
}

func (cs CallSession) Involves(uid domain.UserID) bool {
	return cs.CallerID == uid || cs.ReceiverID == uid
}

// Counterparty returns the participant opposite to uid.
func (cs CallSession) Counterparty(uid domain.UserID) (domain.UserID, core.SessionID) {
	if cs.CallerID == uid {
		return cs.ReceiverID, cs.ReceiverSID
	}
	return cs.CallerID, cs.CallerSID
}

// CallTable is the authoritative in-memory record of calls in progress.
// The durable store is written through but never read back for routing.
// Every mutation is a single guarded map operation; a call absent from the
// table means the call already ended or never existed, and the losing side
// of any race gets a no-op.
type CallTable struct {
	mu    sync.RWMutex
	calls map[string]*CallSession
}

func NewCallTable() *CallTable {
	return &CallTable{calls: make(map[string]*CallSession)}
}

func (t *CallTable) Add(cs CallSession) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls[cs.ID] = &cs
}

func (t *CallTable) Get(id string) (CallSession, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	cs, ok := t.calls[id]
	if !ok {
		return CallSession{}, false
	}
	return *cs, true
}

// Accept marks an initiated call accepted and pins the receiver side to the
// accepting session. It re-checks existence and status under the lock, so a
// duplicate or late accept after the call ended is a no-op and can never
// resurrect the call.
func (t *CallTable) Accept(id string, receiverSID core.SessionID) (CallSession, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cs, ok := t.calls[id]
	if !ok || cs.Status != domain.CallInitiated {
		return CallSession{}, false
	}
	cs.Status = domain.CallAccepted
	cs.ReceiverSID = receiverSID
	return *cs, true
}

// Remove takes the call out of the live table, returning its final snapshot.
func (t *CallTable) Remove(id string) (CallSession, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cs, ok := t.calls[id]
	if !ok {
		return CallSession{}, false
	}
	delete(t.calls, id)
	return *cs, true
}

// RefreshSessions repoints every live call involving uid at its new
// transport session. Needed because call sessions freeze session ids at
// creation/accept time, not at lookup time.
func (t *CallTable) RefreshSessions(uid domain.UserID, sid core.SessionID) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, cs := range t.calls {
		if cs.CallerID == uid && cs.CallerSID != sid {
			cs.CallerSID = sid
			n++
		}
		if cs.ReceiverID == uid && cs.ReceiverSID != sid {
			cs.ReceiverSID = sid
			n++
		}
	}
	return n
}

// RemoveInvolving drains every live call the user participates in.
func (t *CallTable) RemoveInvolving(uid domain.UserID) []CallSession {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []CallSession
	for id, cs := range t.calls {
		if cs.Involves(uid) {
			out = append(out, *cs)
			delete(t.calls, id)
		}
	}
	return out
}

func (t *CallTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.calls)
}
