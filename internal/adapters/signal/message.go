package signal

import (
	"context"
	"encoding/json"

	"github.com/dkeye/Talk/internal/app"
	"github.com/dkeye/Talk/internal/domain"
	"github.com/rs/zerolog/log"
)

func (ctl *Controller) handleSendMessage(ctx context.Context, c *wsSignalConn, data []byte, file bool) {
	type payload struct {
		Type       string `json:"type"`
		ReceiverID string `json:"receiverId"`
		Content    string `json:"content"`
		FileName   string `json:"fileName"`
		FileSize   int64  `json:"fileSize"`
		FileType   string `json:"fileType"`
	}
	var p payload
	if err := json.Unmarshal(data, &p); err != nil || p.ReceiverID == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad message payload")
		ctl.sendError(c, "bad_payload")
		return
	}
	in := app.MessageInput{
		Receiver: domain.UserID(p.ReceiverID),
		Content:  p.Content,
		Kind:     domain.MessageText,
	}
	if file {
		if p.FileName == "" {
			ctl.sendError(c, "bad_payload")
			return
		}
		in.Kind = domain.MessageFile
		in.File = domain.FileMeta{Name: p.FileName, Size: p.FileSize, Type: p.FileType}
	}
	ctl.Router.SendMessage(ctx, c.uid, c, in)
}

func (ctl *Controller) handleGetMessages(ctx context.Context, c *wsSignalConn, data []byte) {
	type payload struct {
		Type        string `json:"type"`
		OtherUserID string `json:"otherUserId"`
	}
	var p payload
	if err := json.Unmarshal(data, &p); err != nil || p.OtherUserID == "" {
		ctl.sendError(c, "bad_payload")
		return
	}
	ctl.Router.History(ctx, c.uid, c, domain.UserID(p.OtherUserID))
}

func (ctl *Controller) handleMarkRead(ctx context.Context, c *wsSignalConn, data []byte) {
	type payload struct {
		Type     string `json:"type"`
		SenderID string `json:"senderId"`
	}
	var p payload
	if err := json.Unmarshal(data, &p); err != nil || p.SenderID == "" {
		ctl.sendError(c, "bad_payload")
		return
	}
	ctl.Router.MarkRead(ctx, c.uid, c, domain.UserID(p.SenderID))
}

func (ctl *Controller) handleSetActiveChat(ctx context.Context, c *wsSignalConn, data []byte) {
	type payload struct {
		Type       string  `json:"type"`
		ReceiverID *string `json:"receiverId"`
	}
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(c, "bad_payload")
		return
	}
	if p.ReceiverID == nil || *p.ReceiverID == "" {
		ctl.Router.SetActiveChat(ctx, c.uid, c, nil)
		return
	}
	peer := domain.UserID(*p.ReceiverID)
	ctl.Router.SetActiveChat(ctx, c.uid, c, &peer)
}

func (ctl *Controller) handleCheckOnline(c *wsSignalConn, data []byte) {
	type payload struct {
		Type   string `json:"type"`
		UserID string `json:"userId"`
	}
	var p payload
	if err := json.Unmarshal(data, &p); err != nil || p.UserID == "" {
		ctl.sendError(c, "bad_payload")
		return
	}
	ctl.Router.CheckOnline(c, domain.UserID(p.UserID))
}
