package core

import (
	"context"
	"time"

	"github.com/dkeye/Talk/internal/domain"
)

// UserStore keeps the public profiles attached to outbound events.
type UserStore interface {
	UpsertUser(ctx context.Context, u *domain.User) error
	GetUser(ctx context.Context, id domain.UserID) (*domain.User, error)
}

// MessageStore is the durable side of the message router. The relay only
// creates and queries records; it never assumes multi-record atomicity
// across calls.
type MessageStore interface {
	CreateMessage(ctx context.Context, m *domain.Message) error
	MessagesBetween(ctx context.Context, a, b domain.UserID) ([]*domain.Message, error)
	// MarkMessagesRead flips every unread message sent by sender to reader
	// and reports how many rows changed.
	MarkMessagesRead(ctx context.Context, sender, reader domain.UserID) (int64, error)
	UnreadCounts(ctx context.Context, user domain.UserID) (map[domain.UserID]int, error)
}

// CallStore is the write-through audit log of calls. It is never read back
// on the signaling hot path; the in-memory call table decides routing.
type CallStore interface {
	CreateCall(ctx context.Context, c *domain.Call) error
	MarkCallAccepted(ctx context.Context, id string) error
	EndCall(ctx context.Context, id string, status domain.CallStatus, duration time.Duration, endedAt time.Time) error
}

// Store is everything the router needs from the durable layer.
type Store interface {
	UserStore
	MessageStore
	CallStore
}
