package models

import "time"

// Message is a single direct message between two users.
type Message struct {
	ID         int64     `db:"id" json:"id"`
	SenderID   int       `db:"sender_id" json:"sender_id"`
	ReceiverID int       `db:"receiver_id" json:"receiver_id"`
	Content    string    `db:"content" json:"content"`
	Read       bool      `db:"is_read" json:"read"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Conversation is the per-counterpart summary derived from the message log.
type Conversation struct {
	CounterpartID int       `db:"counterpart_id" json:"counterpart_id"`
	LastMessage   string    `db:"last_message" json:"last_message"`
	LastMessageAt time.Time `db:"last_message_at" json:"last_message_at"`
	UnreadCount   int64     `db:"unread_count" json:"unread_count"`
}
