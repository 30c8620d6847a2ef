package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

const MaxContentLen = 4096

var (
	ErrContentEmpty   = errors.New("message content empty")
	ErrContentTooLong = errors.New("message content too long")
	ErrFileNameEmpty  = errors.New("file name empty")
)

type MessageKind string

const (
	MessageText MessageKind = "text"
	MessageFile MessageKind = "file"
)

// Message is the durable chat record. The relay creates and queries these;
// the store owns their lifecycle beyond that.
type Message struct {
	ID         string      `json:"id"`
	Content    string      `json:"content"`
	Kind       MessageKind `json:"type"`
	FileName   string      `json:"fileName,omitempty"`
	FileSize   int64       `json:"fileSize,omitempty"`
	FileType   string      `json:"fileType,omitempty"`
	SenderID   UserID      `json:"senderId"`
	ReceiverID UserID      `json:"receiverId"`
	IsRead     bool        `json:"isRead"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// FileMeta describes a file attached to a file message.
type FileMeta struct {
	Name string `json:"fileName"`
	Size int64  `json:"fileSize"`
	Type string `json:"fileType"`
}

func NewTextMessage(sender, receiver UserID, content string, at time.Time) (*Message, error) {
	if content == "" {
		return nil, ErrContentEmpty
	}
	if len(content) > MaxContentLen {
		return nil, ErrContentTooLong
	}
	return &Message{
		ID:         uuid.NewString(),
		Content:    content,
		Kind:       MessageText,
		SenderID:   sender,
		ReceiverID: receiver,
		CreatedAt:  at,
	}, nil
}

func NewFileMessage(sender, receiver UserID, content string, meta FileMeta, at time.Time) (*Message, error) {
	if meta.Name == "" {
		return nil, ErrFileNameEmpty
	}
	if len(content) > MaxContentLen {
		return nil, ErrContentTooLong
	}
	return &Message{
		ID:         uuid.NewString(),
		Content:    content,
		Kind:       MessageFile,
		FileName:   meta.Name,
		FileSize:   meta.Size,
		FileType:   meta.Type,
		SenderID:   sender,
		ReceiverID: receiver,
		CreatedAt:  at,
	}, nil
}
