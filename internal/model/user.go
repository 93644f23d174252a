package model

import "time"

// User is a marketplace account.
type User struct {
	ID           string     `json:"id" db:"id"`
	Email        string     `json:"email" db:"email"`
	Username     string     `json:"username" db:"username"`
	PasswordHash string     `json:"-" db:"password_hash"`
	StudentID    *string    `json:"student_id,omitempty" db:"student_id"`
	Phone        string     `json:"phone,omitempty" db:"phone"`
	Department   string     `json:"department,omitempty" db:"department"`
	Bio          string     `json:"bio,omitempty" db:"bio"`
	IsAdmin      bool       `json:"is_admin" db:"is_admin"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// ProfilePatch holds the self-editable profile fields. Nil fields are left
// unchanged; an empty StudentID clears it.
type ProfilePatch struct {
	Username   *string
	StudentID  *string
	Phone      *string
	Department *string
	Bio        *string
}

// UserStats summarises a user's marketplace activity.
type UserStats struct {
	ActiveListings     int64   `json:"active_listings"`
	SoldListings       int64   `json:"sold_listings"`
	CompletedPurchases int64   `json:"completed_purchases"`
	CompletedSales     int64   `json:"completed_sales"`
	AverageRating      float64 `json:"average_rating"`
	ReviewCount        int64   `json:"review_count"`
}

// Category groups listings. Categories are seeded with the schema.
type Category struct {
	ID        string `json:"id" db:"id"`
	Name      string `json:"name" db:"name"`
	SortOrder int    `json:"sort_order" db:"sort_order"`
}

// DefaultCategories is the seed set inserted into an empty categories table.
var DefaultCategories = []Category{
	{ID: "books", Name: "Books", SortOrder: 1},
	{ID: "electronics", Name: "Electronics", SortOrder: 2},
	{ID: "daily-goods", Name: "Daily Goods", SortOrder: 3},
	{ID: "fashion", Name: "Fashion", SortOrder: 4},
	{ID: "sports", Name: "Sports", SortOrder: 5},
	{ID: "others", Name: "Others", SortOrder: 6},
}
