package repository

import (
	"context"
	"errors"
	"time"

	"campustrade-api/internal/model"
)

// ErrDuplicate is returned when an insert violates a unique constraint.
var ErrDuplicate = errors.New("duplicate record")

// Lookups return (nil, nil) when the row does not exist.

// UserRepository defines user data access methods.
type UserRepository interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// GetByLogin resolves an email address or a username, ignoring case.
	GetByLogin(ctx context.Context, login string) (*model.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]*model.User, error)
	// UpdateProfile saves the username and the profile fields. A student id
	// already held by another account fails with ErrDuplicate.
	UpdateProfile(ctx context.Context, u *model.User) error
	UpdatePassword(ctx context.Context, id, hash string) error
	TouchLogin(ctx context.Context, id string, at time.Time) error
	Count(ctx context.Context) (int64, error)
}

// CategoryRepository defines category data access methods.
type CategoryRepository interface {
	List(ctx context.Context) ([]*model.Category, error)
	GetByID(ctx context.Context, id string) (*model.Category, error)
}

// ListingRepository defines listing data access methods.
type ListingRepository interface {
	Create(ctx context.Context, l *model.Listing) error
	GetByID(ctx context.Context, id string) (*model.Listing, error)
	// GetForUpdate reads the listing and locks its row until the unit of work ends.
	GetForUpdate(ctx context.Context, id string) (*model.Listing, error)
	Update(ctx context.Context, l *model.Listing) error
	SetStatus(ctx context.Context, id, status string) error
	IncrementViews(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, q model.ListingQuery) ([]*model.Listing, int64, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
	CountByOwner(ctx context.Context, ownerID string) (map[string]int64, error)
}

// TransactionRepository defines transaction data access methods.
type TransactionRepository interface {
	Create(ctx context.Context, t *model.Transaction) error
	GetByID(ctx context.Context, id string) (*model.Transaction, error)
	GetForUpdate(ctx context.Context, id string) (*model.Transaction, error)
	Update(ctx context.Context, t *model.Transaction) error
	// ListByListing returns transactions on a listing in the given statuses,
	// oldest first, locking them.
	ListByListing(ctx context.Context, listingID string, statuses []string) ([]*model.Transaction, error)
	HasPendingOffer(ctx context.Context, listingID, buyerID string) (bool, error)
	CountByListing(ctx context.Context, listingID string) (int64, error)
	List(ctx context.Context, q model.TransactionQuery) ([]*model.Transaction, int64, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
	// CountByRole counts a user's transactions by status. role is buyer,
	// seller or all.
	CountByRole(ctx context.Context, userID, role string) (map[string]int64, error)
}

// NotificationRepository defines notification data access methods.
type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) error
	GetByID(ctx context.Context, id string) (*model.Notification, error)
	List(ctx context.Context, userID string, unreadOnly bool, page model.Page) ([]*model.Notification, int64, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	Delete(ctx context.Context, id string) error
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ReviewRepository defines review data access methods.
type ReviewRepository interface {
	Create(ctx context.Context, r *model.Review) error
	Exists(ctx context.Context, transactionID, reviewerID string) (bool, error)
	ListByReviewee(ctx context.Context, userID string, page model.Page) ([]*model.Review, int64, error)
	ListByTransaction(ctx context.Context, transactionID string) ([]*model.Review, error)
	RatingCounts(ctx context.Context, userID string) (map[int]int64, error)
}

// MessageRepository defines message data access methods.
type MessageRepository interface {
	Create(ctx context.Context, m *model.Message) error
	GetByID(ctx context.Context, id string) (*model.Message, error)
	Conversation(ctx context.Context, userID, otherID string, page model.Page) ([]*model.Message, int64, error)
	// ListForUser returns every message the user sent or received, newest first.
	ListForUser(ctx context.Context, userID string) ([]*model.Message, error)
	MarkRead(ctx context.Context, id string) error
	MarkConversationRead(ctx context.Context, userID, otherID string) (int64, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	Delete(ctx context.Context, id string) error
}

// Repos groups the entity repositories bound to one connection or unit of work.
type Repos interface {
	Users() UserRepository
	Categories() CategoryRepository
	Listings() ListingRepository
	Transactions() TransactionRepository
	Notifications() NotificationRepository
	Reviews() ReviewRepository
	Messages() MessageRepository
}

// Store is the relational persistence store.
type Store interface {
	Repos

	// InTx runs fn in one database transaction. fn's error rolls everything back.
	// Repositories obtained outside fn must not be used inside it.
	InTx(ctx context.Context, fn func(tx Repos) error) error

	Ping(ctx context.Context) error
	Stats(ctx context.Context) (map[string]interface{}, error)
	Driver() string
	Close() error
}
