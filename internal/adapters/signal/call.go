package signal

import (
	"context"
	"encoding/json"

	"github.com/dkeye/Talk/internal/domain"
	"github.com/rs/zerolog/log"
)

func (ctl *Controller) handleInitiateCall(ctx context.Context, c *wsSignalConn, data []byte) {
	type payload struct {
		Type       string `json:"type"`
		ReceiverID string `json:"receiverId"`
		CallType   string `json:"callType"`
	}
	var p payload
	if err := json.Unmarshal(data, &p); err != nil || p.ReceiverID == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad initiate_call payload")
		ctl.sendError(c, "bad_payload")
		return
	}
	kind, err := domain.ParseCallKind(p.CallType)
	if err != nil {
		ctl.sendError(c, "bad_payload")
		return
	}
	ctl.Router.InitiateCall(ctx, c.uid, c.sid, c, domain.UserID(p.ReceiverID), kind)
}

func (ctl *Controller) callIDPayload(c *wsSignalConn, data []byte) (string, bool) {
	type payload struct {
		Type   string `json:"type"`
		CallID string `json:"callId"`
	}
	var p payload
	if err := json.Unmarshal(data, &p); err != nil || p.CallID == "" {
		ctl.sendError(c, "bad_payload")
		return "", false
	}
	return p.CallID, true
}

func (ctl *Controller) handleAcceptCall(ctx context.Context, c *wsSignalConn, data []byte) {
	if callID, ok := ctl.callIDPayload(c, data); ok {
		ctl.Router.AcceptCall(ctx, c.uid, c.sid, c, callID)
	}
}

func (ctl *Controller) handleRejectCall(ctx context.Context, c *wsSignalConn, data []byte) {
	if callID, ok := ctl.callIDPayload(c, data); ok {
		ctl.Router.RejectCall(ctx, c.uid, c, callID)
	}
}

func (ctl *Controller) handleEndCall(ctx context.Context, c *wsSignalConn, data []byte) {
	if callID, ok := ctl.callIDPayload(c, data); ok {
		ctl.Router.EndCall(ctx, c.uid, c, callID)
	}
}
