package model

import "time"

// Notification type tags.
const (
	NotifyTransactionRequest    = "transaction_request"
	NotifyTransactionAccepted   = "transaction_accepted"
	NotifyTransactionRejected   = "transaction_rejected"
	NotifyTransactionInProgress = "transaction_in_progress"
	NotifyTransactionCompleted  = "transaction_completed"
	NotifyTransactionCancelled  = "transaction_cancelled"
	NotifyTransactionDisputed   = "transaction_disputed"
	NotifyDisputeResolved       = "dispute_resolved"
	NotifyNewReview             = "new_review"
	NotifyNewMessage            = "new_message"
)

// Notification is a durable user-facing notice created by the system.
type Notification struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Type      string    `json:"type" db:"type"`
	Content   string    `json:"content" db:"content"`
	Link      *string   `json:"link,omitempty" db:"link"`
	IsRead    bool      `json:"is_read" db:"is_read"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
