package domain

import (
	"errors"
	"time"
)

var ErrUnknownCallKind = errors.New("unknown call kind")

type CallKind string

const (
	CallAudio  CallKind = "audio"
	CallVideo  CallKind = "video"
	CallScreen CallKind = "screen"
)

func ParseCallKind(s string) (CallKind, error) {
	switch CallKind(s) {
	case CallAudio, CallVideo, CallScreen:
		return CallKind(s), nil
	}
	return "", ErrUnknownCallKind
}

type CallStatus string

const (
	CallInitiated CallStatus = "initiated"
	CallAccepted  CallStatus = "accepted"
	CallRejected  CallStatus = "rejected"
	CallEnded     CallStatus = "ended"
)

// Call is the durable audit record of a call. Live routing state lives in
// the call table, never here.
type Call struct {
	ID         string     `json:"id"`
	Kind       CallKind   `json:"type"`
	Status     CallStatus `json:"status"`
	Duration   int64      `json:"duration,omitempty"` // seconds, set at end time
	CreatedAt  time.Time  `json:"createdAt"`
	EndedAt    *time.Time `json:"endedAt,omitempty"`
	CallerID   UserID     `json:"callerId"`
	ReceiverID UserID     `json:"receiverId"`
}
