package repository

import (
	"context"
	"fmt"

	"campustrade-api/internal/model"
)

const messageColumns = `id, sender_id, receiver_id, content, listing_id, is_read, created_at`

type messageRepo struct{ repos }

func (r *messageRepo) Create(ctx context.Context, m *model.Message) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now()
	}
	_, err := r.exec(ctx, `INSERT INTO messages (`+messageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.SenderID, m.ReceiverID, m.Content, m.ListingID, m.IsRead, m.CreatedAt)
	return r.insertErr(err, "message")
}

func (r *messageRepo) GetByID(ctx context.Context, id string) (*model.Message, error) {
	var m model.Message
	found, err := r.get(ctx, &m, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &m, nil
}

const conversationClause = ` WHERE (sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)`

// Conversation returns the messages between two users, oldest first.
func (r *messageRepo) Conversation(ctx context.Context, userID, otherID string, page model.Page) ([]*model.Message, int64, error) {
	args := []interface{}{userID, otherID, otherID, userID}

	total, err := r.count(ctx, `SELECT COUNT(*) FROM messages`+conversationClause, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count conversation: %w", err)
	}

	page = page.Normalize()
	var out []*model.Message
	if err := r.selectAll(ctx, &out, `SELECT `+messageColumns+` FROM messages`+conversationClause+
		` ORDER BY created_at, id LIMIT ? OFFSET ?`, append(args, page.Limit, page.Offset())...); err != nil {
		return nil, 0, fmt.Errorf("failed to load conversation: %w", err)
	}
	return out, total, nil
}

func (r *messageRepo) ListForUser(ctx context.Context, userID string) ([]*model.Message, error) {
	var out []*model.Message
	if err := r.selectAll(ctx, &out, `SELECT `+messageColumns+` FROM messages
		WHERE sender_id = ? OR receiver_id = ? ORDER BY created_at DESC, id DESC`, userID, userID); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return out, nil
}

func (r *messageRepo) MarkRead(ctx context.Context, id string) error {
	if _, err := r.exec(ctx, `UPDATE messages SET is_read = ? WHERE id = ?`, true, id); err != nil {
		return fmt.Errorf("failed to mark message read: %w", err)
	}
	return nil
}

func (r *messageRepo) MarkConversationRead(ctx context.Context, userID, otherID string) (int64, error) {
	n, err := r.exec(ctx, `UPDATE messages SET is_read = ? WHERE receiver_id = ? AND sender_id = ? AND is_read = ?`,
		true, userID, otherID, false)
	if err != nil {
		return 0, fmt.Errorf("failed to mark conversation read: %w", err)
	}
	return n, nil
}

func (r *messageRepo) CountUnread(ctx context.Context, userID string) (int64, error) {
	n, err := r.count(ctx, `SELECT COUNT(*) FROM messages WHERE receiver_id = ? AND is_read = ?`, userID, false)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return n, nil
}

func (r *messageRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.exec(ctx, `DELETE FROM messages WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

var _ MessageRepository = (*messageRepo)(nil)
