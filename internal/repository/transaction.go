package repository

import (
	"context"
	"fmt"
	"strings"

	"campustrade-api/internal/model"

	"github.com/jmoiron/sqlx"
)

const transactionColumns = `id, listing_id, buyer_id, seller_id, status, type, amount, notes,
	created_at, updated_at, completed_at`

type transactionRepo struct{ repos }

func (r *transactionRepo) Create(ctx context.Context, t *model.Transaction) error {
	ts := now()
	t.CreatedAt, t.UpdatedAt = ts, ts
	_, err := r.exec(ctx, `INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ListingID, t.BuyerID, t.SellerID, t.Status, t.Type, t.Amount, t.Notes,
		t.CreatedAt, t.UpdatedAt, t.CompletedAt)
	return r.insertErr(err, "transaction")
}

func (r *transactionRepo) getOne(ctx context.Context, id, suffix string) (*model.Transaction, error) {
	var t model.Transaction
	found, err := r.get(ctx, &t, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`+suffix, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &t, nil
}

func (r *transactionRepo) GetByID(ctx context.Context, id string) (*model.Transaction, error) {
	return r.getOne(ctx, id, "")
}

func (r *transactionRepo) GetForUpdate(ctx context.Context, id string) (*model.Transaction, error) {
	return r.getOne(ctx, id, r.d.forUpdate)
}

// Update persists the mutable fields: status, notes and timestamps.
func (r *transactionRepo) Update(ctx context.Context, t *model.Transaction) error {
	t.UpdatedAt = now()
	_, err := r.exec(ctx, `UPDATE transactions SET status = ?, notes = ?, updated_at = ?, completed_at = ?
		WHERE id = ?`, t.Status, t.Notes, t.UpdatedAt, t.CompletedAt, t.ID)
	if err != nil {
		return r.insertErr(err, "transaction")
	}
	return nil
}

func (r *transactionRepo) ListByListing(ctx context.Context, listingID string, statuses []string) ([]*model.Transaction, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT `+transactionColumns+` FROM transactions
		WHERE listing_id = ? AND status IN (?) ORDER BY created_at, id`+r.d.forUpdate, listingID, statuses)
	if err != nil {
		return nil, fmt.Errorf("failed to build transaction query: %w", err)
	}

	var out []*model.Transaction
	if err := r.selectAll(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list transactions for listing: %w", err)
	}
	return out, nil
}

func (r *transactionRepo) HasPendingOffer(ctx context.Context, listingID, buyerID string) (bool, error) {
	n, err := r.count(ctx, `SELECT COUNT(*) FROM transactions WHERE listing_id = ? AND buyer_id = ? AND status = ?`,
		listingID, buyerID, model.TxPending)
	if err != nil {
		return false, fmt.Errorf("failed to check pending offers: %w", err)
	}
	return n > 0, nil
}

func (r *transactionRepo) CountByListing(ctx context.Context, listingID string) (int64, error) {
	n, err := r.count(ctx, `SELECT COUNT(*) FROM transactions WHERE listing_id = ?`, listingID)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return n, nil
}

// List returns transactions newest first. An empty UserID lists every user's.
func (r *transactionRepo) List(ctx context.Context, q model.TransactionQuery) ([]*model.Transaction, int64, error) {
	var (
		where []string
		args  []interface{}
	)

	if q.UserID != "" {
		switch q.Role {
		case model.RoleBuyer:
			where = append(where, "buyer_id = ?")
			args = append(args, q.UserID)
		case model.RoleSeller:
			where = append(where, "seller_id = ?")
			args = append(args, q.UserID)
		default:
			where = append(where, "(buyer_id = ? OR seller_id = ?)")
			args = append(args, q.UserID, q.UserID)
		}
	}
	if q.Status != "" {
		where = append(where, "status = ?")
		args = append(args, q.Status)
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	total, err := r.count(ctx, `SELECT COUNT(*) FROM transactions`+clause, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	page := q.Page.Normalize()
	var out []*model.Transaction
	if err := r.selectAll(ctx, &out, `SELECT `+transactionColumns+` FROM transactions`+clause+
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, append(args, page.Limit, page.Offset())...); err != nil {
		return nil, 0, fmt.Errorf("failed to list transactions: %w", err)
	}
	return out, total, nil
}

func (r *transactionRepo) CountByStatus(ctx context.Context) (map[string]int64, error) {
	return r.countByStatus(ctx, "transactions", "")
}

func (r *transactionRepo) CountByRole(ctx context.Context, userID, role string) (map[string]int64, error) {
	switch role {
	case model.RoleBuyer:
		return r.countByStatus(ctx, "transactions", "buyer_id = ?", userID)
	case model.RoleSeller:
		return r.countByStatus(ctx, "transactions", "seller_id = ?", userID)
	default:
		return r.countByStatus(ctx, "transactions", "buyer_id = ? OR seller_id = ?", userID, userID)
	}
}

var _ TransactionRepository = (*transactionRepo)(nil)
