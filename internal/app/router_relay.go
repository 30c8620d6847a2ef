package app

import (
	"encoding/json"

	"github.com/dkeye/Talk/internal/core"
	"github.com/dkeye/Talk/internal/domain"
)

// RelayDirect forwards a pre-call signaling event (file-transfer offer,
// answer or candidate) to another user's current session. These are keyed
// by user identity, not by call identity: no call exists yet. The payload
// is opaque to the relay and forwarded verbatim.
func (r *Router) RelayDirect(sender domain.UserID, conn core.SignalConnection, target domain.UserID, event string, payload json.RawMessage) {
	sid, _, ok := r.Presence.Lookup(target)
	if !ok || !r.Presence.IsLive(sid) {
		r.emitError(conn, "user offline")
		return
	}
	r.emitToSession(sid, struct {
		Type       string          `json:"type"`
		FromUserID string          `json:"fromUserId"`
		Payload    json.RawMessage `json:"payload"`
	}{event, string(sender), payload})
}
