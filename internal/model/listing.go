package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Listing statuses.
const (
	ListingActive   = "active"
	ListingPending  = "pending"
	ListingSold     = "sold"
	ListingInactive = "inactive"
	ListingDeleted  = "deleted"
)

// Listing is an item offered by its owner.
type Listing struct {
	ID                string          `json:"id" db:"id"`
	OwnerID           string          `json:"owner_id" db:"owner_id"`
	CategoryID        string          `json:"category_id" db:"category_id"`
	Title             string          `json:"title" db:"title"`
	Description       string          `json:"description" db:"description"`
	Price             decimal.Decimal `json:"price" db:"price"`
	Condition         string          `json:"condition" db:"item_condition"`
	Location          string          `json:"location" db:"location"`
	TransactionMethod string          `json:"transaction_method" db:"transaction_method"`
	Status            string          `json:"status" db:"status"`
	ViewCount         int64           `json:"view_count" db:"view_count"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

// IsManualStatus reports whether a seller may set status directly.
func IsManualStatus(status string) bool {
	switch status {
	case ListingActive, ListingInactive, ListingDeleted:
		return true
	}
	return false
}

// CanSetStatus reports whether the seller may move the listing to status.
// Pending and sold listings belong to the transaction flow.
func (l *Listing) CanSetStatus(status string) bool {
	if !IsManualStatus(status) {
		return false
	}
	switch l.Status {
	case ListingActive:
		return status == ListingInactive || status == ListingDeleted
	case ListingInactive:
		return status == ListingActive || status == ListingDeleted
	}
	return false
}

// ListingPatch holds optional listing attribute changes.
type ListingPatch struct {
	CategoryID        *string
	Title             *string
	Description       *string
	Price             *decimal.Decimal
	Condition         *string
	Location          *string
	TransactionMethod *string
}

// Apply copies the set fields onto l.
func (p ListingPatch) Apply(l *Listing) {
	if p.CategoryID != nil {
		l.CategoryID = *p.CategoryID
	}
	if p.Title != nil {
		l.Title = *p.Title
	}
	if p.Description != nil {
		l.Description = *p.Description
	}
	if p.Price != nil {
		l.Price = *p.Price
	}
	if p.Condition != nil {
		l.Condition = *p.Condition
	}
	if p.Location != nil {
		l.Location = *p.Location
	}
	if p.TransactionMethod != nil {
		l.TransactionMethod = *p.TransactionMethod
	}
}

// ListingQuery is the search filter for listings.
type ListingQuery struct {
	Status     string
	CategoryID string
	OwnerID    string
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	Text       string
	SortBy     string
	SortDesc   bool
	Page       Page
}

// Sortable listing columns.
const (
	SortCreatedAt = "created_at"
	SortPrice     = "price"
	SortViewCount = "view_count"
)
