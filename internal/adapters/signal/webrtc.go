package signal

import (
	"encoding/json"

	"github.com/dkeye/Talk/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// handleCallSDP relays an in-call offer or answer. The payload is typed as a
// session description before forwarding so garbage never crosses the relay.
func (ctl *Controller) handleCallSDP(c *wsSignalConn, data []byte, event string) {
	type payload struct {
		Type   string `json:"type"`
		CallID string `json:"callId"`
		SDP    string `json:"sdp"`
	}
	var p payload
	if err := json.Unmarshal(data, &p); err != nil || p.CallID == "" || p.SDP == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad sdp payload")
		ctl.sendError(c, "bad_payload")
		return
	}

	sdpType := webrtc.SDPTypeOffer
	if event == "webrtc_answer" {
		sdpType = webrtc.SDPTypeAnswer
	}
	desc := webrtc.SessionDescription{Type: sdpType, SDP: p.SDP}

	if event == "webrtc_offer" {
		ctl.Router.RelayOffer(c.sid, c, p.CallID, desc)
		return
	}
	ctl.Router.RelayAnswer(c.sid, c, p.CallID, desc)
}

func (ctl *Controller) handleCallCandidate(c *wsSignalConn, data []byte) {
	type payload struct {
		Type          string  `json:"type"`
		CallID        string  `json:"callId"`
		Candidate     string  `json:"candidate"`
		SDPMid        *string `json:"sdpMid"`
		SDPMLineIndex *uint16 `json:"sdpMLineIndex"`
	}
	var p payload
	if err := json.Unmarshal(data, &p); err != nil || p.CallID == "" || p.Candidate == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad candidate payload")
		ctl.sendError(c, "bad_payload")
		return
	}

	ctl.Router.RelayCandidate(c.sid, p.CallID, webrtc.ICECandidateInit{
		Candidate:     p.Candidate,
		SDPMid:        p.SDPMid,
		SDPMLineIndex: p.SDPMLineIndex,
	})
}

// handleFileSignal relays pre-call file-transfer signaling addressed by user
// identity; the payload stays opaque.
func (ctl *Controller) handleFileSignal(c *wsSignalConn, data []byte, event string) {
	type payload struct {
		Type         string          `json:"type"`
		TargetUserID string          `json:"targetUserId"`
		Payload      json.RawMessage `json:"payload"`
	}
	var p payload
	if err := json.Unmarshal(data, &p); err != nil || p.TargetUserID == "" || len(p.Payload) == 0 {
		ctl.sendError(c, "bad_payload")
		return
	}
	ctl.Router.RelayDirect(c.uid, c, domain.UserID(p.TargetUserID), event, p.Payload)
}
