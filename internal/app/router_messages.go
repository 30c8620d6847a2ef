package app

import (
	"context"

	"github.com/dkeye/Talk/internal/core"
	"github.com/dkeye/Talk/internal/domain"
	"github.com/rs/zerolog/log"
)

// MessageInput is the validated shape of a send_message / send_file_message
// event after boundary decoding.
type MessageInput struct {
	Receiver domain.UserID
	Content  string
	Kind     domain.MessageKind
	File     domain.FileMeta
}

// SendMessage persists the message and best-effort delivers it. The sender
// is always acked with the persisted record and the receiver-online flag; a
// failed durable write surfaces a generic error and nothing is delivered.
func (r *Router) SendMessage(ctx context.Context, sender domain.UserID, conn core.SignalConnection, in MessageInput) {
	var (
		msg *domain.Message
		err error
	)
	now := r.clock.Now()
	switch in.Kind {
	case domain.MessageFile:
		msg, err = domain.NewFileMessage(sender, in.Receiver, in.Content, in.File, now)
	default:
		msg, err = domain.NewTextMessage(sender, in.Receiver, in.Content, now)
	}
	if err != nil {
		r.emitError(conn, err.Error())
		return
	}

	// A receiver already viewing this conversation reads the message the
	// moment it lands, so it is born read.
	if peer, ok := r.Active.Get(in.Receiver); ok && peer == sender {
		msg.IsRead = true
	}

	if err := r.store.CreateMessage(ctx, msg); err != nil {
		log.Error().Err(err).Str("module", "app.router").Str("sender", string(sender)).Msg("create message")
		r.emitError(conn, "failed to send message")
		return
	}

	receiverSID, receiverConn, bound := r.Presence.Lookup(in.Receiver)
	receiverOnline := bound && r.Presence.IsLive(receiverSID)
	if receiverOnline {
		r.emit(receiverConn, struct {
			Type    string          `json:"type"`
			Message *domain.Message `json:"message"`
			Sender  *domain.User    `json:"sender"`
		}{"receive_message", msg, r.profileOf(ctx, sender)})
		r.pushUnreadCounts(ctx, in.Receiver)
	}

	r.emit(conn, struct {
		Type           string          `json:"type"`
		Message        *domain.Message `json:"message"`
		Receiver       *domain.User    `json:"receiver"`
		ReceiverOnline bool            `json:"receiverOnline"`
	}{"message_sent", msg, r.profileOf(ctx, in.Receiver), receiverOnline})
}

// MarkRead bulk-marks messages sent by sender to reader as read, refreshes
// the reader's unread counts and tells the sender's live session its
// messages were seen.
func (r *Router) MarkRead(ctx context.Context, reader domain.UserID, conn core.SignalConnection, sender domain.UserID) {
	r.markReadAndNotify(ctx, reader, conn, sender)
}

// SetActiveChat records which conversation the user is viewing. Declaring a
// peer also marks that peer's pending messages read — the second trigger of
// the mark-read behavior, kept alongside the explicit one.
func (r *Router) SetActiveChat(ctx context.Context, uid domain.UserID, conn core.SignalConnection, peer *domain.UserID) {
	if peer == nil {
		r.Active.Clear(uid)
		return
	}
	r.Active.Set(uid, *peer)
	r.markReadAndNotify(ctx, uid, conn, *peer)
}

func (r *Router) markReadAndNotify(ctx context.Context, reader domain.UserID, conn core.SignalConnection, sender domain.UserID) {
	n, err := r.store.MarkMessagesRead(ctx, sender, reader)
	if err != nil {
		log.Error().Err(err).Str("module", "app.router").Str("reader", string(reader)).Msg("mark messages read")
		r.emitError(conn, "failed to mark messages read")
		return
	}
	r.pushUnreadCounts(ctx, reader)
	if n == 0 {
		return
	}
	if sid, _, ok := r.Presence.Lookup(sender); ok {
		r.emitToSession(sid, struct {
			Type     string `json:"type"`
			ReaderID string `json:"readerId"`
			SenderID string `json:"senderId"`
		}{"messages_marked_read", string(reader), string(sender)})
	}
}

// History replies with the full conversation between the requester and one
// other user.
func (r *Router) History(ctx context.Context, uid domain.UserID, conn core.SignalConnection, other domain.UserID) {
	msgs, err := r.store.MessagesBetween(ctx, uid, other)
	if err != nil {
		log.Error().Err(err).Str("module", "app.router").Str("user", string(uid)).Msg("messages between")
		r.emitError(conn, "failed to load messages")
		return
	}
	r.emit(conn, struct {
		Type        string            `json:"type"`
		OtherUserID string            `json:"otherUserId"`
		Messages    []*domain.Message `json:"messages"`
	}{"messages_history", string(other), msgs})
}

// UnreadCounts replies to an explicit get_unread_counts request.
func (r *Router) UnreadCounts(ctx context.Context, uid domain.UserID, conn core.SignalConnection) {
	counts, err := r.store.UnreadCounts(ctx, uid)
	if err != nil {
		log.Error().Err(err).Str("module", "app.router").Str("user", string(uid)).Msg("unread counts")
		r.emitError(conn, "failed to load unread counts")
		return
	}
	r.emit(conn, unreadCountsEvent(counts))
}

// CheckOnline answers a presence query for one user.
func (r *Router) CheckOnline(conn core.SignalConnection, target domain.UserID) {
	sid, _, ok := r.Presence.Lookup(target)
	online := ok && r.Presence.IsLive(sid)
	r.emit(conn, struct {
		Type   string `json:"type"`
		UserID string `json:"userId"`
		Online bool   `json:"online"`
	}{"user_online_status", string(target), online})
}

// pushUnreadCounts refreshes the aggregate unread view on the user's current
// session, if any.
func (r *Router) pushUnreadCounts(ctx context.Context, uid domain.UserID) {
	sid, conn, ok := r.Presence.Lookup(uid)
	if !ok || !r.Presence.IsLive(sid) {
		return
	}
	counts, err := r.store.UnreadCounts(ctx, uid)
	if err != nil {
		log.Error().Err(err).Str("module", "app.router").Str("user", string(uid)).Msg("unread counts push")
		return
	}
	r.emit(conn, unreadCountsEvent(counts))
}

func unreadCountsEvent(counts map[domain.UserID]int) any {
	if counts == nil {
		counts = map[domain.UserID]int{}
	}
	return struct {
		Type   string                `json:"type"`
		Counts map[domain.UserID]int `json:"counts"`
	}{"unread_counts", counts}
}
