package core

// Frame is a raw outbound payload, already JSON-encoded.
type Frame []byte

// SessionID identifies one live transport connection. A user may reattach
// with a new SessionID at any time; the presence registry keeps only the
// latest one.
type SessionID string

// SignalConnection abstracts a system messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
