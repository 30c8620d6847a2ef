package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait = 5 * time.Second
	pongWait  = 60 * time.Second
)

func (ctl *Controller) writePump(ctx context.Context, c *wsSignalConn) {
	period := ctl.PingPeriod
	if period <= 0 {
		period = defaultPingPeriod
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, cancel context.CancelFunc, c *wsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(c.sid)).Msg("readPump closing")
		cancel()
		c.Close()
		ctl.Router.Disconnected(c.uid, c.sid)
	}()

	if ctl.ReadLimit > 0 {
		c.conn.SetReadLimit(ctl.ReadLimit)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Str("module", "signal").Str("sid", string(c.sid)).Msg("readPump read error")
				}
				return
			}
			if !ctl.handleEvent(ctx, c, data) {
				return
			}
		}
	}
}

// handleEvent re-verifies the credential, repairs a stale socket binding and
// dispatches by event type. Returns false when the connection must drop.
func (ctl *Controller) handleEvent(ctx context.Context, c *wsSignalConn, data []byte) bool {
	if _, err := ctl.Verifier.Verify(c.token); err != nil {
		// Credential expired mid-session: drop the transport, no detail.
		log.Warn().Str("module", "signal").Str("sid", string(c.sid)).Msg("credential no longer valid")
		return false
	}
	ctl.Router.EnsureBound(c.uid, c.sid, c)

	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		ctl.sendError(c, "bad_payload")
		return true
	}

	if ctl.Limiter != nil && !ctl.Limiter.Allow(c.uid) {
		ctl.sendError(c, "rate_limited")
		return true
	}

	switch env.Type {
	case "send_message":
		ctl.handleSendMessage(ctx, c, data, false)
	case "send_file_message":
		ctl.handleSendMessage(ctx, c, data, true)
	case "get_messages":
		ctl.handleGetMessages(ctx, c, data)
	case "mark_messages_read":
		ctl.handleMarkRead(ctx, c, data)
	case "set_active_chat":
		ctl.handleSetActiveChat(ctx, c, data)
	case "get_unread_counts":
		ctl.Router.UnreadCounts(ctx, c.uid, c)
	case "check_user_online":
		ctl.handleCheckOnline(c, data)
	case "initiate_call":
		ctl.handleInitiateCall(ctx, c, data)
	case "accept_call":
		ctl.handleAcceptCall(ctx, c, data)
	case "reject_call":
		ctl.handleRejectCall(ctx, c, data)
	case "end_call":
		ctl.handleEndCall(ctx, c, data)
	case "webrtc_offer", "webrtc_answer":
		ctl.handleCallSDP(c, data, env.Type)
	case "webrtc_ice_candidate":
		ctl.handleCallCandidate(c, data)
	case "file_webrtc_offer", "file_webrtc_answer", "file_webrtc_ice_candidate":
		ctl.handleFileSignal(c, data, env.Type)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
		ctl.sendError(c, "unknown_event")
	}
	return true
}

func (ctl *Controller) sendJSON(c *wsSignalConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

func (ctl *Controller) sendError(c *wsSignalConn, msg string) {
	ctl.sendJSON(c, struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}{"error", msg})
}
