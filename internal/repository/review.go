package repository

import (
	"context"
	"fmt"

	"campustrade-api/internal/model"
)

const reviewColumns = `id, transaction_id, reviewer_id, reviewee_id, rating, comment, created_at`

type reviewRepo struct{ repos }

// Create inserts a review. A second review by the same reviewer on the same
// transaction fails with ErrDuplicate.
func (r *reviewRepo) Create(ctx context.Context, rv *model.Review) error {
	if rv.CreatedAt.IsZero() {
		rv.CreatedAt = now()
	}
	_, err := r.exec(ctx, `INSERT INTO reviews (`+reviewColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rv.ID, rv.TransactionID, rv.ReviewerID, rv.RevieweeID, rv.Rating, rv.Comment, rv.CreatedAt)
	return r.insertErr(err, "review")
}

func (r *reviewRepo) Exists(ctx context.Context, transactionID, reviewerID string) (bool, error) {
	n, err := r.count(ctx, `SELECT COUNT(*) FROM reviews WHERE transaction_id = ? AND reviewer_id = ?`,
		transactionID, reviewerID)
	if err != nil {
		return false, fmt.Errorf("failed to check review: %w", err)
	}
	return n > 0, nil
}

func (r *reviewRepo) ListByReviewee(ctx context.Context, userID string, page model.Page) ([]*model.Review, int64, error) {
	total, err := r.count(ctx, `SELECT COUNT(*) FROM reviews WHERE reviewee_id = ?`, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count reviews: %w", err)
	}

	page = page.Normalize()
	var out []*model.Review
	if err := r.selectAll(ctx, &out, `SELECT `+reviewColumns+` FROM reviews WHERE reviewee_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, userID, page.Limit, page.Offset()); err != nil {
		return nil, 0, fmt.Errorf("failed to list reviews: %w", err)
	}
	return out, total, nil
}

func (r *reviewRepo) ListByTransaction(ctx context.Context, transactionID string) ([]*model.Review, error) {
	var out []*model.Review
	if err := r.selectAll(ctx, &out, `SELECT `+reviewColumns+` FROM reviews WHERE transaction_id = ?
		ORDER BY created_at`, transactionID); err != nil {
		return nil, fmt.Errorf("failed to list transaction reviews: %w", err)
	}
	return out, nil
}

func (r *reviewRepo) RatingCounts(ctx context.Context, userID string) (map[int]int64, error) {
	var rows []struct {
		Rating int   `db:"rating"`
		N      int64 `db:"n"`
	}
	if err := r.selectAll(ctx, &rows, `SELECT rating, COUNT(*) AS n FROM reviews WHERE reviewee_id = ?
		GROUP BY rating`, userID); err != nil {
		return nil, fmt.Errorf("failed to count ratings: %w", err)
	}
	out := make(map[int]int64, len(rows))
	for _, row := range rows {
		out[row.Rating] = row.N
	}
	return out, nil
}

var _ ReviewRepository = (*reviewRepo)(nil)
