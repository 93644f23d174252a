package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

// MySQL has neither CREATE INDEX IF NOT EXISTS nor partial indexes, so indexes
// live inside the table definitions and the one-pending-offer rule is enforced
// under the listing row lock only.
var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id VARCHAR(36) PRIMARY KEY,
		email VARCHAR(255) NOT NULL UNIQUE,
		username VARCHAR(100) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		student_id VARCHAR(20) UNIQUE,
		phone VARCHAR(20) NOT NULL DEFAULT '',
		department VARCHAR(120) NOT NULL DEFAULT '',
		bio TEXT NOT NULL,
		is_admin BOOLEAN NOT NULL DEFAULT FALSE,
		last_login_at DATETIME(6),
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS categories (
		id VARCHAR(36) PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		sort_order INT NOT NULL DEFAULT 0
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS listings (
		id VARCHAR(36) PRIMARY KEY,
		owner_id VARCHAR(36) NOT NULL,
		category_id VARCHAR(36) NOT NULL,
		title VARCHAR(200) NOT NULL,
		description TEXT NOT NULL,
		price DECIMAL(12,2) NOT NULL DEFAULT 0,
		item_condition VARCHAR(50) NOT NULL DEFAULT '',
		location VARCHAR(200) NOT NULL DEFAULT '',
		transaction_method VARCHAR(50) NOT NULL DEFAULT '',
		status VARCHAR(20) NOT NULL DEFAULT 'active',
		view_count BIGINT NOT NULL DEFAULT 0,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		INDEX idx_listings_status (status, created_at),
		INDEX idx_listings_owner (owner_id),
		FOREIGN KEY (owner_id) REFERENCES users(id),
		FOREIGN KEY (category_id) REFERENCES categories(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id VARCHAR(36) PRIMARY KEY,
		listing_id VARCHAR(36) NOT NULL,
		buyer_id VARCHAR(36) NOT NULL,
		seller_id VARCHAR(36) NOT NULL,
		status VARCHAR(20) NOT NULL,
		type VARCHAR(20) NOT NULL,
		amount DECIMAL(12,2) NOT NULL DEFAULT 0,
		notes TEXT NOT NULL,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		completed_at DATETIME(6) NULL,
		INDEX idx_transactions_listing (listing_id, status),
		INDEX idx_transactions_buyer (buyer_id),
		INDEX idx_transactions_seller (seller_id),
		FOREIGN KEY (listing_id) REFERENCES listings(id),
		FOREIGN KEY (buyer_id) REFERENCES users(id),
		FOREIGN KEY (seller_id) REFERENCES users(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id VARCHAR(36) PRIMARY KEY,
		user_id VARCHAR(36) NOT NULL,
		type VARCHAR(50) NOT NULL,
		content TEXT NOT NULL,
		link VARCHAR(255) NULL,
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		created_at DATETIME(6) NOT NULL,
		INDEX idx_notifications_user (user_id, is_read),
		FOREIGN KEY (user_id) REFERENCES users(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS reviews (
		id VARCHAR(36) PRIMARY KEY,
		transaction_id VARCHAR(36) NOT NULL,
		reviewer_id VARCHAR(36) NOT NULL,
		reviewee_id VARCHAR(36) NOT NULL,
		rating TINYINT NOT NULL,
		comment TEXT NOT NULL,
		created_at DATETIME(6) NOT NULL,
		UNIQUE KEY uq_reviews_reviewer (transaction_id, reviewer_id),
		INDEX idx_reviews_reviewee (reviewee_id),
		CHECK (rating BETWEEN 1 AND 5),
		FOREIGN KEY (transaction_id) REFERENCES transactions(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS messages (
		id VARCHAR(36) PRIMARY KEY,
		sender_id VARCHAR(36) NOT NULL,
		receiver_id VARCHAR(36) NOT NULL,
		content TEXT NOT NULL,
		listing_id VARCHAR(36) NULL,
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		created_at DATETIME(6) NOT NULL,
		INDEX idx_messages_receiver (receiver_id, is_read),
		INDEX idx_messages_sender (sender_id),
		FOREIGN KEY (listing_id) REFERENCES listings(id) ON DELETE SET NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

func mysqlUnique(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == 1062
}

// NewMySQLStore connects to MySQL. The DSN must set parseTime=true.
func NewMySQLStore(dsn string) (*SQLStore, error) {
	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	return newSQLStore(db, dialect{
		name:      "mysql",
		forUpdate: " FOR UPDATE",
		schema:    mysqlSchema,
		isUnique:  mysqlUnique,
	})
}
