package repository

import (
	"context"
	"fmt"
	"strings"

	"campustrade-api/internal/model"
)

const listingColumns = `id, owner_id, category_id, title, description, price, item_condition, location,
	transaction_method, status, view_count, created_at, updated_at`

var listingSortColumns = map[string]string{
	model.SortCreatedAt: "created_at",
	model.SortPrice:     "price",
	model.SortViewCount: "view_count",
}

type listingRepo struct{ repos }

func (r *listingRepo) Create(ctx context.Context, l *model.Listing) error {
	ts := now()
	l.CreatedAt, l.UpdatedAt = ts, ts
	_, err := r.exec(ctx, `INSERT INTO listings (`+listingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.OwnerID, l.CategoryID, l.Title, l.Description, l.Price, l.Condition, l.Location,
		l.TransactionMethod, l.Status, l.ViewCount, l.CreatedAt, l.UpdatedAt)
	return r.insertErr(err, "listing")
}

func (r *listingRepo) getOne(ctx context.Context, id, suffix string) (*model.Listing, error) {
	var l model.Listing
	found, err := r.get(ctx, &l, `SELECT `+listingColumns+` FROM listings WHERE id = ?`+suffix, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &l, nil
}

func (r *listingRepo) GetByID(ctx context.Context, id string) (*model.Listing, error) {
	return r.getOne(ctx, id, "")
}

func (r *listingRepo) GetForUpdate(ctx context.Context, id string) (*model.Listing, error) {
	return r.getOne(ctx, id, r.d.forUpdate)
}

func (r *listingRepo) Update(ctx context.Context, l *model.Listing) error {
	l.UpdatedAt = now()
	_, err := r.exec(ctx, `UPDATE listings SET category_id = ?, title = ?, description = ?, price = ?,
		item_condition = ?, location = ?, transaction_method = ?, status = ?, updated_at = ?
		WHERE id = ?`,
		l.CategoryID, l.Title, l.Description, l.Price, l.Condition, l.Location, l.TransactionMethod,
		l.Status, l.UpdatedAt, l.ID)
	if err != nil {
		return fmt.Errorf("failed to update listing: %w", err)
	}
	return nil
}

func (r *listingRepo) SetStatus(ctx context.Context, id, status string) error {
	if _, err := r.exec(ctx, `UPDATE listings SET status = ?, updated_at = ? WHERE id = ?`, status, now(), id); err != nil {
		return fmt.Errorf("failed to set listing status: %w", err)
	}
	return nil
}

func (r *listingRepo) IncrementViews(ctx context.Context, id string) error {
	if _, err := r.exec(ctx, `UPDATE listings SET view_count = view_count + 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to increment view count: %w", err)
	}
	return nil
}

func (r *listingRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.exec(ctx, `DELETE FROM listings WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete listing: %w", err)
	}
	return nil
}

// likePattern builds a case-insensitive substring pattern using '!' as escape.
func likePattern(text string) string {
	text = strings.ToLower(text)
	text = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(text)
	return "%" + text + "%"
}

func (r *listingRepo) Search(ctx context.Context, q model.ListingQuery) ([]*model.Listing, int64, error) {
	var (
		where []string
		args  []interface{}
	)

	if q.Status != "" {
		where = append(where, "status = ?")
		args = append(args, q.Status)
	} else {
		where = append(where, "status <> ?")
		args = append(args, model.ListingDeleted)
	}
	if q.CategoryID != "" {
		where = append(where, "category_id = ?")
		args = append(args, q.CategoryID)
	}
	if q.OwnerID != "" {
		where = append(where, "owner_id = ?")
		args = append(args, q.OwnerID)
	}
	if q.MinPrice != nil {
		where = append(where, "price >= ?")
		args = append(args, *q.MinPrice)
	}
	if q.MaxPrice != nil {
		where = append(where, "price <= ?")
		args = append(args, *q.MaxPrice)
	}
	if text := strings.TrimSpace(q.Text); text != "" {
		pattern := likePattern(text)
		where = append(where, "("+r.d.fold("title")+" LIKE ? ESCAPE '!' OR "+r.d.fold("description")+" LIKE ? ESCAPE '!')")
		args = append(args, pattern, pattern)
	}

	clause := " WHERE " + strings.Join(where, " AND ")

	total, err := r.count(ctx, `SELECT COUNT(*) FROM listings`+clause, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count listings: %w", err)
	}

	column, ok := listingSortColumns[q.SortBy]
	if !ok {
		column = "created_at"
	}
	direction := "ASC"
	if q.SortDesc {
		direction = "DESC"
	}

	page := q.Page.Normalize()
	query := `SELECT ` + listingColumns + ` FROM listings` + clause +
		` ORDER BY ` + column + ` ` + direction + `, id ` + direction + ` LIMIT ? OFFSET ?`

	var out []*model.Listing
	if err := r.selectAll(ctx, &out, query, append(args, page.Limit, page.Offset())...); err != nil {
		return nil, 0, fmt.Errorf("failed to search listings: %w", err)
	}
	return out, total, nil
}

func (r *listingRepo) CountByStatus(ctx context.Context) (map[string]int64, error) {
	return r.countByStatus(ctx, "listings", "")
}

func (r *listingRepo) CountByOwner(ctx context.Context, ownerID string) (map[string]int64, error) {
	return r.countByStatus(ctx, "listings", "owner_id = ?", ownerID)
}

var _ ListingRepository = (*listingRepo)(nil)
