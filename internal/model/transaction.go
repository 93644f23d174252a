package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction statuses.
const (
	TxPending    = "pending"
	TxAccepted   = "accepted"
	TxInProgress = "in_progress"
	TxCompleted  = "completed"
	TxCancelled  = "cancelled"
	TxRejected   = "rejected"
	TxDisputed   = "disputed"
)

// Transaction types.
const (
	TypeSale     = "sale"
	TypeExchange = "exchange"
	TypeFree     = "free"
)

// Transaction roles used when listing a user's transactions.
const (
	RoleAll    = "all"
	RoleBuyer  = "buyer"
	RoleSeller = "seller"
)

// transitions is the directed status graph. Terminal statuses have no entry.
var transitions = map[string][]string{
	TxPending:    {TxAccepted, TxRejected, TxCancelled},
	TxAccepted:   {TxInProgress, TxCancelled, TxDisputed},
	TxInProgress: {TxCompleted, TxCancelled, TxDisputed},
	TxDisputed:   {TxCompleted, TxCancelled},
}

// CanTransition reports whether from -> to is an edge of the status graph.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether status has no outgoing edges.
func IsTerminal(status string) bool {
	_, ok := transitions[status]
	return !ok
}

// HoldingStatuses are the statuses that reserve a listing for one buyer.
var HoldingStatuses = []string{TxAccepted, TxInProgress, TxDisputed}

// LiveStatuses are all non-terminal statuses.
var LiveStatuses = []string{TxPending, TxAccepted, TxInProgress, TxDisputed}

// IsValidType reports whether t is a known transaction type.
func IsValidType(t string) bool {
	return t == TypeSale || t == TypeExchange || t == TypeFree
}

// Transaction is an offer by a buyer on a listing and its lifecycle.
type Transaction struct {
	ID          string          `json:"id" db:"id"`
	ListingID   string          `json:"listing_id" db:"listing_id"`
	BuyerID     string          `json:"buyer_id" db:"buyer_id"`
	SellerID    string          `json:"seller_id" db:"seller_id"`
	Status      string          `json:"status" db:"status"`
	Type        string          `json:"type" db:"type"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	Notes       string          `json:"notes" db:"notes"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
}

func (t *Transaction) CanAccept() bool { return t.Status == TxPending }
func (t *Transaction) CanReject() bool { return t.Status == TxPending }
func (t *Transaction) CanStartProgress() bool { return t.Status == TxAccepted }
func (t *Transaction) CanComplete() bool { return t.Status == TxInProgress }

func (t *Transaction) CanCancel() bool {
	switch t.Status {
	case TxCompleted, TxCancelled, TxRejected:
		return false
	}
	return true
}

func (t *Transaction) CanDispute() bool {
	return t.Status == TxAccepted || t.Status == TxInProgress
}

// IsParticipant reports whether userID is the buyer or the seller.
func (t *Transaction) IsParticipant(userID string) bool {
	return userID == t.BuyerID || userID == t.SellerID
}

// Counterpart returns the other participant, or "" if userID is not one.
func (t *Transaction) Counterpart(userID string) string {
	switch userID {
	case t.BuyerID:
		return t.SellerID
	case t.SellerID:
		return t.BuyerID
	}
	return ""
}

// AppendNote adds one line to the audit trail. Notes are never rewritten.
func (t *Transaction) AppendNote(label, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	line := text
	if label != "" {
		line = label + ": " + text
	}
	if t.Notes == "" {
		t.Notes = line
		return
	}
	t.Notes += "\n" + line
}

// TransactionQuery filters a user's transactions.
type TransactionQuery struct {
	UserID string
	Role   string
	Status string
	Page   Page
}
