package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"campustrade-api/internal/model"
	"campustrade-api/internal/repository"
	"campustrade-api/pkg/uid"

	"go.uber.org/zap"
)

// ReviewService lets buyers rate sellers after a completed transaction.
type ReviewService struct {
	store    repository.Store
	notifier Notifier
	log      *zap.Logger
}

// NewReviewService creates a review service.
func NewReviewService(store repository.Store, notifier Notifier, log *zap.Logger) *ReviewService {
	return &ReviewService{
		store:    store,
		notifier: notifier,
		log:      log.Named("reviews"),
	}
}

// CanReview reports whether actorID may review the transaction. When it may
// not, reason names the failed precondition.
func (s *ReviewService) CanReview(ctx context.Context, actorID, transactionID string) (bool, string, error) {
	t, err := s.store.Transactions().GetByID(ctx, transactionID)
	if err != nil {
		return false, "", storeErr("failed to get transaction", err)
	}
	if err := checkReviewable(ctx, s.store, t, actorID); err != nil {
		if isPersistence(err) {
			return false, "", err
		}
		return false, err.Error(), nil
	}
	return true, "", nil
}

// Create stores the buyer's review. Eligibility is checked again inside the
// write with the transaction row locked; the unique index settles races.
func (s *ReviewService) Create(ctx context.Context, reviewerID, transactionID string, rating int, comment string) (*model.Review, error) {
	if rating < model.MinRating || rating > model.MaxRating {
		return nil, ErrInvalidRating
	}

	var (
		rv    *model.Review
		title string
	)
	err := s.store.InTx(ctx, func(r repository.Repos) error {
		t, err := r.Transactions().GetForUpdate(ctx, transactionID)
		if err != nil {
			return err
		}
		if err := checkReviewable(ctx, r, t, reviewerID); err != nil {
			return err
		}

		rv = &model.Review{
			ID:            uid.New(),
			TransactionID: t.ID,
			ReviewerID:    reviewerID,
			RevieweeID:    t.SellerID,
			Rating:        rating,
			Comment:       strings.TrimSpace(comment),
		}
		if err := r.Reviews().Create(ctx, rv); err != nil {
			if isDuplicate(err) {
				return ErrAlreadyReviewed
			}
			return err
		}

		l, err := r.Listings().GetByID(ctx, t.ListingID)
		if err != nil {
			return err
		}
		if l != nil {
			title = l.Title
		}
		return nil
	})
	if err != nil {
		return nil, storeErr("failed to create review", err)
	}

	deliver(ctx, s.notifier, s.log, []notice{{
		userID:  rv.RevieweeID,
		kind:    model.NotifyNewReview,
		content: fmt.Sprintf("You received a %d-star review for %q", rv.Rating, title),
		link:    "/users/" + rv.RevieweeID + "/reviews",
	}})
	return rv, nil
}

// ListForUser returns the reviews a user received, newest first.
func (s *ReviewService) ListForUser(ctx context.Context, userID string, page model.Page) ([]*model.Review, int64, error) {
	items, total, err := s.store.Reviews().ListByReviewee(ctx, userID, page)
	if err != nil {
		return nil, 0, storeErr("failed to list reviews", err)
	}
	return items, total, nil
}

// ListForTransaction returns the reviews left on a transaction.
func (s *ReviewService) ListForTransaction(ctx context.Context, transactionID string) ([]*model.Review, error) {
	items, err := s.store.Reviews().ListByTransaction(ctx, transactionID)
	if err != nil {
		return nil, storeErr("failed to list reviews", err)
	}
	return items, nil
}

// Stats summarises the ratings a user received. Average is rounded to one decimal.
func (s *ReviewService) Stats(ctx context.Context, userID string) (*model.ReviewStats, error) {
	counts, err := s.store.Reviews().RatingCounts(ctx, userID)
	if err != nil {
		return nil, storeErr("failed to load ratings", err)
	}
	return ratingStats(counts), nil
}

func ratingStats(counts map[int]int64) *model.ReviewStats {
	stats := &model.ReviewStats{Distribution: make(map[int]int64, model.MaxRating)}
	var sum int64
	for rating := model.MinRating; rating <= model.MaxRating; rating++ {
		n := counts[rating]
		stats.Distribution[rating] = n
		stats.Total += n
		sum += n * int64(rating)
	}
	if stats.Total > 0 {
		stats.Average = math.Round(float64(sum)/float64(stats.Total)*10) / 10
	}
	return stats
}

func checkReviewable(ctx context.Context, r repository.Repos, t *model.Transaction, actorID string) error {
	if t == nil {
		return ErrTransactionNotFound
	}
	if t.Status != model.TxCompleted {
		return ErrNotCompleted
	}
	if actorID != t.BuyerID {
		return ErrNotBuyer
	}
	exists, err := r.Reviews().Exists(ctx, t.ID, actorID)
	if err != nil {
		return storeErr("failed to check review", err)
	}
	if exists {
		return ErrAlreadyReviewed
	}
	return nil
}
