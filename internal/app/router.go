package app

import (
	"context"
	"encoding/json"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dkeye/Talk/internal/core"
	"github.com/dkeye/Talk/internal/domain"
	"github.com/rs/zerolog/log"
)

// Router owns the process-wide live state (presence registry, active-chat
// tracker, call table) and is the only component that mutates it. State is
// rebuilt empty on restart; calls in flight at a crash are abandoned.
type Router struct {
	Presence *Presence
	Active   *ActiveChats
	Calls    *CallTable

	store core.Store
	clock clock.Clock
	grace time.Duration
}

func NewRouter(store core.Store, clk clock.Clock, grace time.Duration) *Router {
	return &Router{
		Presence: NewPresence(),
		Active:   NewActiveChats(),
		Calls:    NewCallTable(),
		store:    store,
		clock:    clk,
		grace:    grace,
	}
}

// Attach records a verified identity on a fresh transport session, superseding
// any previous session for that user, and pushes the initial unread counts.
func (r *Router) Attach(ctx context.Context, user *domain.User, sid core.SessionID, conn core.SignalConnection) {
	if err := r.store.UpsertUser(ctx, user); err != nil {
		log.Error().Err(err).Str("module", "app.router").Str("user", string(user.ID)).Msg("upsert user")
	}
	r.Presence.Bind(user.ID, sid, conn)
	r.Calls.RefreshSessions(user.ID, sid)
	log.Info().Str("module", "app.router").Str("user", string(user.ID)).Str("sid", string(sid)).Msg("attached")
	r.pushUnreadCounts(ctx, user.ID)
}

// EnsureBound repairs a stale socket association: if uid's binding no longer
// points at the session an event arrived on, the event's own connection
// becomes the current one and live calls are repointed at it.
func (r *Router) EnsureBound(uid domain.UserID, sid core.SessionID, conn core.SignalConnection) {
	cur, _, ok := r.Presence.Lookup(uid)
	if ok && cur == sid {
		return
	}
	r.Presence.Bind(uid, sid, conn)
	r.Calls.RefreshSessions(uid, sid)
}

// Disconnected is called the moment a transport closes. Teardown is deferred
// by the grace period so a tab refresh or a brief network blip does not kill
// calls; the timer is superseded implicitly by a newer binding, checked at
// fire time rather than cancelled.
func (r *Router) Disconnected(uid domain.UserID, sid core.SessionID) {
	r.Presence.DropSession(sid)
	log.Info().Str("module", "app.router").Str("user", string(uid)).Str("sid", string(sid)).Msg("transport closed, grace timer armed")
	r.clock.AfterFunc(r.grace, func() {
		r.expireSession(context.Background(), uid, sid)
	})
}

func (r *Router) expireSession(ctx context.Context, uid domain.UserID, sid core.SessionID) {
	if !r.Presence.BoundTo(uid, sid) {
		// Reattached (or already gone) within the grace window.
		return
	}
	log.Info().Str("module", "app.router").Str("user", string(uid)).Str("sid", string(sid)).Msg("grace period elapsed, going offline")
	r.Presence.Unbind(uid)
	r.Active.Clear(uid)
	r.endCallsInvolving(ctx, uid)
}

// emit marshals and best-effort delivers one outbound event.
func (r *Router) emit(conn core.SignalConnection, v any) {
	if conn == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.router").Msg("emit marshal")
		return
	}
	if err := conn.TrySend(core.Frame(b)); err != nil {
		log.Warn().Err(err).Str("module", "app.router").Msg("emit dropped")
	}
}

// emitToSession delivers only if the session is still live.
func (r *Router) emitToSession(sid core.SessionID, v any) bool {
	conn, ok := r.Presence.ConnOf(sid)
	if !ok {
		return false
	}
	r.emit(conn, v)
	return true
}

func (r *Router) emitError(conn core.SignalConnection, msg string) {
	r.emit(conn, struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}{"error", msg})
}

// profileOf fetches the public profile, falling back to a bare ID so a store
// hiccup never blocks delivery of the event itself.
func (r *Router) profileOf(ctx context.Context, uid domain.UserID) *domain.User {
	u, err := r.store.GetUser(ctx, uid)
	if err != nil || u == nil {
		return &domain.User{ID: uid}
	}
	return u
}
