package app

import (
	"sync"

	"github.com/dkeye/Talk/internal/core"
	"github.com/dkeye/Talk/internal/domain"
	"github.com/rs/zerolog/log"
)

type binding struct {
	SID  core.SessionID
	Conn core.SignalConnection
}

// Presence is the live user → session mapping, the single source of truth
// for "is this user reachable now". Last write wins: concurrent binds for
// the same user are expected (duplicate tabs, reconnect races) and resolved
// by whichever completes last.
type Presence struct {
	mu     sync.RWMutex
	byUser map[domain.UserID]binding
	live   map[core.SessionID]core.SignalConnection
}

func NewPresence() *Presence {
	return &Presence{
		byUser: make(map[domain.UserID]binding),
		live:   make(map[core.SessionID]core.SignalConnection),
	}
}

// Bind unconditionally overwrites any existing binding for uid and returns
// the superseded session id, if any. The previous id is diagnostic only,
// never a correctness input.
func (p *Presence) Bind(uid domain.UserID, sid core.SessionID, conn core.SignalConnection) (core.SessionID, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	prev, had := p.byUser[uid]
	p.byUser[uid] = binding{SID: sid, Conn: conn}
	p.live[sid] = conn
	if had && prev.SID != sid {
		log.Info().Str("module", "app.presence").Str("user", string(uid)).
			Str("sid", string(sid)).Str("prev_sid", string(prev.SID)).Msg("rebound session")
		return prev.SID, true
	}
	return "", false
}

func (p *Presence) Lookup(uid domain.UserID) (core.SessionID, core.SignalConnection, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	b, ok := p.byUser[uid]
	if !ok {
		return "", nil, false
	}
	return b.SID, b.Conn, true
}

// IsLive reports whether the transport layer still holds the session.
func (p *Presence) IsLive(sid core.SessionID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.live[sid]
	return ok
}

// ConnOf resolves a live session to its connection.
func (p *Presence) ConnOf(sid core.SessionID) (core.SignalConnection, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	conn, ok := p.live[sid]
	return conn, ok
}

// BoundTo reports whether uid's current binding is exactly sid. The grace
// check uses this to detect a reattachment that superseded the old socket.
func (p *Presence) BoundTo(uid domain.UserID, sid core.SessionID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	b, ok := p.byUser[uid]
	return ok && b.SID == sid
}

func (p *Presence) Unbind(uid domain.UserID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.byUser, uid)
	log.Info().Str("module", "app.presence").Str("user", string(uid)).Msg("unbound")
}

// DropSession removes a closed transport from the live set immediately.
// The user binding stays until the grace period decides its fate.
func (p *Presence) DropSession(sid core.SessionID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.live, sid)
}
