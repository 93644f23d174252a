package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"campustrade-api/internal/model"

	"github.com/jmoiron/sqlx"
)

// dialect captures what differs between the supported SQL backends.
type dialect struct {
	name      string
	forUpdate string // row lock suffix, empty where the engine serializes writers
	lower     string // case-folding SQL function, LOWER when empty
	schema    []string
	isUnique  func(err error) bool
}

// fold wraps expr in the dialect's case-folding function.
func (d *dialect) fold(expr string) string {
	fn := d.lower
	if fn == "" {
		fn = "LOWER"
	}
	return fn + "(" + expr + ")"
}

// repos binds the entity repositories to a connection pool or a transaction.
type repos struct {
	q sqlx.ExtContext
	d *dialect
}

func (r repos) Users() UserRepository { return &userRepo{r} }
func (r repos) Categories() CategoryRepository { return &categoryRepo{r} }
func (r repos) Listings() ListingRepository { return &listingRepo{r} }
func (r repos) Transactions() TransactionRepository { return &transactionRepo{r} }
func (r repos) Notifications() NotificationRepository { return &notificationRepo{r} }
func (r repos) Reviews() ReviewRepository { return &reviewRepo{r} }
func (r repos) Messages() MessageRepository { return &messageRepo{r} }

// get runs a single-row query. A missing row yields found == false.
func (r repos) get(ctx context.Context, dest interface{}, query string, args ...interface{}) (bool, error) {
	err := sqlx.GetContext(ctx, r.q, dest, r.q.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r repos) selectAll(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return sqlx.SelectContext(ctx, r.q, dest, r.q.Rebind(query), args...)
}

func (r repos) exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	res, err := r.q.ExecContext(ctx, r.q.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r repos) count(ctx context.Context, query string, args ...interface{}) (int64, error) {
	var n int64
	if err := sqlx.GetContext(ctx, r.q, &n, r.q.Rebind(query), args...); err != nil {
		return 0, err
	}
	return n, nil
}

func (r repos) insertErr(err error, what string) error {
	if err == nil {
		return nil
	}
	if r.d.isUnique != nil && r.d.isUnique(err) {
		return fmt.Errorf("failed to save %s: %w", what, ErrDuplicate)
	}
	return fmt.Errorf("failed to save %s: %w", what, err)
}

// countByStatus groups a table's rows by its status column, optionally
// restricted to rows matching where.
func (r repos) countByStatus(ctx context.Context, table, where string, args ...interface{}) (map[string]int64, error) {
	var rows []struct {
		Status string `db:"status"`
		N      int64  `db:"n"`
	}
	query := "SELECT status, COUNT(*) AS n FROM " + table
	if where != "" {
		query += " WHERE " + where
	}
	if err := r.selectAll(ctx, &rows, query+" GROUP BY status", args...); err != nil {
		return nil, fmt.Errorf("failed to count %s by status: %w", table, err)
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.N
	}
	return out, nil
}

// now returns the current time at the precision every backend stores.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// SQLStore implements Store on top of sqlx for SQLite, PostgreSQL and MySQL.
type SQLStore struct {
	repos
	db      *sqlx.DB
	dialect dialect
}

func newSQLStore(db *sqlx.DB, d dialect) (*SQLStore, error) {
	s := &SQLStore{db: db, dialect: d}
	s.repos = repos{q: db, d: &s.dialect}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// migrate creates the schema and seeds categories into an empty table.
func (s *SQLStore) migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}

	n, err := s.count(ctx, "SELECT COUNT(*) FROM categories")
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	for _, c := range model.DefaultCategories {
		if _, err := s.exec(ctx, "INSERT INTO categories (id, name, sort_order) VALUES (?, ?, ?)",
			c.ID, c.Name, c.SortOrder); err != nil {
			return fmt.Errorf("failed to seed category %s: %w", c.ID, err)
		}
	}
	return nil
}

// InTx runs fn inside one database transaction.
func (s *SQLStore) InTx(ctx context.Context, fn func(tx Repos) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(repos{q: tx, d: &s.dialect}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return nil
}

// Ping checks database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Driver returns the backend name.
func (s *SQLStore) Driver() string {
	return s.dialect.name
}

// Stats returns row counts and connection pool figures.
func (s *SQLStore) Stats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})
	stats["driver"] = s.dialect.name

	for _, table := range []string{"users", "listings", "transactions", "reviews", "messages", "notifications"} {
		n, err := s.count(ctx, "SELECT COUNT(*) FROM "+table)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		stats[table] = n
	}

	pool := s.db.Stats()
	stats["pool"] = map[string]interface{}{
		"open":    pool.OpenConnections,
		"in_use":  pool.InUse,
		"idle":    pool.Idle,
		"waiting": pool.WaitCount,
	}

	if s.dialect.name == "sqlite" {
		var pageCount, pageSize int64
		_ = s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
		_ = s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		stats["db_size_bytes"] = pageCount * pageSize
	}

	return stats, nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLStore)(nil)
