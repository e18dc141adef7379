package domain

import "time"

type MessageID int64

// MaxChatMessageRunes bounds the content of a single chat message.
const MaxChatMessageRunes = 1000

// ChatMessage is a persisted chat line; id and timestamp are assigned on insert.
type ChatMessage struct {
	ID        MessageID `json:"id"`
	StreamID  StreamID  `json:"stream_id"`
	UserID    UserID    `json:"user_id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	IsDeleted bool      `json:"is_deleted"`
}
