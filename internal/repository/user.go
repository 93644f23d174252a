package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"campustrade-api/internal/model"

	"github.com/jmoiron/sqlx"
)

const userColumns = `id, email, username, password_hash, student_id, phone, department, bio,
	is_admin, last_login_at, created_at, updated_at`

type userRepo struct{ repos }

func (r *userRepo) Create(ctx context.Context, u *model.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now()
	}
	u.UpdatedAt = u.CreatedAt
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	_, err := r.exec(ctx, `INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Username, u.PasswordHash, u.StudentID, u.Phone, u.Department, u.Bio,
		u.IsAdmin, u.LastLoginAt, u.CreatedAt, u.UpdatedAt)
	return r.insertErr(err, "user")
}

func (r *userRepo) getBy(ctx context.Context, where string, args ...interface{}) (*model.User, error) {
	var u model.User
	found, err := r.get(ctx, &u, `SELECT `+userColumns+` FROM users WHERE `+where, args...)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &u, nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	u, err := r.getBy(ctx, `id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := r.getBy(ctx, `email = ?`, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return u, nil
}

// GetByLogin matches the email or, case-insensitively, the username. Email
// matches win; among equal usernames the oldest account is returned.
func (r *userRepo) GetByLogin(ctx context.Context, login string) (*model.User, error) {
	login = strings.ToLower(strings.TrimSpace(login))
	u, err := r.getBy(ctx, `email = ? OR `+r.d.fold("username")+` = ?
		ORDER BY CASE WHEN email = ? THEN 0 ELSE 1 END, created_at, id LIMIT 1`, login, login, login)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by login: %w", err)
	}
	return u, nil
}

// GetByIDs returns the users with the given ids in no particular order.
func (r *userRepo) GetByIDs(ctx context.Context, ids []string) ([]*model.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT `+userColumns+` FROM users WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build user lookup: %w", err)
	}
	var out []*model.User
	if err := r.selectAll(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	return out, nil
}

func (r *userRepo) UpdateProfile(ctx context.Context, u *model.User) error {
	u.UpdatedAt = now()
	_, err := r.exec(ctx, `UPDATE users SET username = ?, student_id = ?, phone = ?, department = ?, bio = ?, updated_at = ?
		WHERE id = ?`, u.Username, u.StudentID, u.Phone, u.Department, u.Bio, u.UpdatedAt, u.ID)
	return r.insertErr(err, "user profile")
}

func (r *userRepo) UpdatePassword(ctx context.Context, id, hash string) error {
	if _, err := r.exec(ctx, `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`, hash, now(), id); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

func (r *userRepo) TouchLogin(ctx context.Context, id string, at time.Time) error {
	if _, err := r.exec(ctx, `UPDATE users SET last_login_at = ? WHERE id = ?`, at, id); err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}
	return nil
}

func (r *userRepo) Count(ctx context.Context) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM users`)
}

type categoryRepo struct{ repos }

func (r *categoryRepo) List(ctx context.Context) ([]*model.Category, error) {
	var out []*model.Category
	if err := r.selectAll(ctx, &out, `SELECT id, name, sort_order FROM categories ORDER BY sort_order, name`); err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return out, nil
}

func (r *categoryRepo) GetByID(ctx context.Context, id string) (*model.Category, error) {
	var c model.Category
	found, err := r.get(ctx, &c, `SELECT id, name, sort_order FROM categories WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &c, nil
}

var (
	_ UserRepository     = (*userRepo)(nil)
	_ CategoryRepository = (*categoryRepo)(nil)
)
