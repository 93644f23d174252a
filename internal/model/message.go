package model

import "time"

// Message is a direct message between two users.
type Message struct {
	ID         string    `json:"id" db:"id"`
	SenderID   string    `json:"sender_id" db:"sender_id"`
	ReceiverID string    `json:"receiver_id" db:"receiver_id"`
	Content    string    `json:"content" db:"content"`
	ListingID  *string   `json:"listing_id,omitempty" db:"listing_id"`
	IsRead     bool      `json:"is_read" db:"is_read"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Conversation is the summary of messages exchanged with one counterpart.
type Conversation struct {
	UserID      string   `json:"user_id"`
	Username    string   `json:"username"`
	LastMessage *Message `json:"last_message"`
	UnreadCount int      `json:"unread_count"`
}
