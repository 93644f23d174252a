package repository

import (
	"context"
	"fmt"
	"time"

	"campustrade-api/internal/model"
)

const notificationColumns = `id, user_id, type, content, link, is_read, created_at`

type notificationRepo struct{ repos }

func (r *notificationRepo) Create(ctx context.Context, n *model.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now()
	}
	_, err := r.exec(ctx, `INSERT INTO notifications (`+notificationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Type, n.Content, n.Link, n.IsRead, n.CreatedAt)
	return r.insertErr(err, "notification")
}

func (r *notificationRepo) GetByID(ctx context.Context, id string) (*model.Notification, error) {
	var n model.Notification
	found, err := r.get(ctx, &n, `SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &n, nil
}

func (r *notificationRepo) List(ctx context.Context, userID string, unreadOnly bool, page model.Page) ([]*model.Notification, int64, error) {
	clause := ` WHERE user_id = ?`
	args := []interface{}{userID}
	if unreadOnly {
		clause += ` AND is_read = ?`
		args = append(args, false)
	}

	total, err := r.count(ctx, `SELECT COUNT(*) FROM notifications`+clause, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	page = page.Normalize()
	var out []*model.Notification
	if err := r.selectAll(ctx, &out, `SELECT `+notificationColumns+` FROM notifications`+clause+
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, append(args, page.Limit, page.Offset())...); err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}
	return out, total, nil
}

func (r *notificationRepo) MarkRead(ctx context.Context, id string) error {
	if _, err := r.exec(ctx, `UPDATE notifications SET is_read = ? WHERE id = ?`, true, id); err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}

func (r *notificationRepo) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	n, err := r.exec(ctx, `UPDATE notifications SET is_read = ? WHERE user_id = ? AND is_read = ?`, true, userID, false)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return n, nil
}

func (r *notificationRepo) CountUnread(ctx context.Context, userID string) (int64, error) {
	n, err := r.count(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = ?`, userID, false)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return n, nil
}

func (r *notificationRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.exec(ctx, `DELETE FROM notifications WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	return nil
}

func (r *notificationRepo) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := r.exec(ctx, `DELETE FROM notifications WHERE is_read = ? AND created_at < ?`, true, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old notifications: %w", err)
	}
	return n, nil
}

var _ NotificationRepository = (*notificationRepo)(nil)
