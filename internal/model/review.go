package model

import "time"

// Rating bounds.
const (
	MinRating = 1
	MaxRating = 5
)

// Review is the buyer's rating of the seller for a completed transaction.
type Review struct {
	ID            string    `json:"id" db:"id"`
	TransactionID string    `json:"transaction_id" db:"transaction_id"`
	ReviewerID    string    `json:"reviewer_id" db:"reviewer_id"`
	RevieweeID    string    `json:"reviewee_id" db:"reviewee_id"`
	Rating        int       `json:"rating" db:"rating"`
	Comment       string    `json:"comment" db:"comment"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// ReviewStats summarises the reviews a user received.
type ReviewStats struct {
	Total        int64         `json:"total"`
	Average      float64       `json:"average"`
	Distribution map[int]int64 `json:"distribution"`
}
