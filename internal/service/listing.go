package service

import (
	"context"
	"strings"

	"campustrade-api/internal/model"
	"campustrade-api/internal/repository"
	"campustrade-api/pkg/uid"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ListingInput holds the attributes of a new listing.
type ListingInput struct {
	CategoryID        string
	Title             string
	Description       string
	Price             decimal.Decimal
	Condition         string
	Location          string
	TransactionMethod string
}

// ListingService manages listings and their manual lifecycle.
type ListingService struct {
	store    repository.Store
	notifier Notifier
	log      *zap.Logger
}

// NewListingService creates a listing service.
func NewListingService(store repository.Store, notifier Notifier, log *zap.Logger) *ListingService {
	return &ListingService{
		store:    store,
		notifier: notifier,
		log:      log.Named("listings"),
	}
}

// Create publishes a new active listing owned by ownerID.
func (s *ListingService) Create(ctx context.Context, ownerID string, in ListingInput) (*model.Listing, error) {
	l := &model.Listing{
		ID:                uid.New(),
		OwnerID:           ownerID,
		CategoryID:        in.CategoryID,
		Title:             strings.TrimSpace(in.Title),
		Description:       strings.TrimSpace(in.Description),
		Price:             in.Price,
		Condition:         in.Condition,
		Location:          strings.TrimSpace(in.Location),
		TransactionMethod: in.TransactionMethod,
		Status:            model.ListingActive,
	}
	if err := s.validate(ctx, s.store, l); err != nil {
		return nil, err
	}

	if err := s.store.Listings().Create(ctx, l); err != nil {
		return nil, storeErr("failed to create listing", err)
	}
	s.log.Info("listing created", zap.String("listing_id", l.ID), zap.String("owner_id", ownerID))
	return l, nil
}

// Update applies patch to a listing owned by ownerID. Sold listings are frozen.
func (s *ListingService) Update(ctx context.Context, ownerID, id string, patch model.ListingPatch) (*model.Listing, error) {
	var out *model.Listing
	err := s.store.InTx(ctx, func(r repository.Repos) error {
		l, err := s.lockOwned(ctx, r, ownerID, id)
		if err != nil {
			return err
		}
		if l.Status == model.ListingSold {
			return ErrSoldListing
		}

		patch.Apply(l)
		l.Title = strings.TrimSpace(l.Title)
		if err := s.validate(ctx, r, l); err != nil {
			return err
		}
		if err := r.Listings().Update(ctx, l); err != nil {
			return err
		}
		out = l
		return nil
	})
	if err != nil {
		return nil, storeErr("failed to update listing", err)
	}
	return out, nil
}

// SetStatus is the seller's manual status change. Withdrawing an active
// listing rejects its pending offers.
func (s *ListingService) SetStatus(ctx context.Context, ownerID, id, status string) (*model.Listing, error) {
	if !model.IsManualStatus(status) {
		return nil, invalid("status", "status must be active, inactive or deleted")
	}

	var (
		out     *model.Listing
		notices []notice
	)
	err := s.store.InTx(ctx, func(r repository.Repos) error {
		l, err := s.lockOwned(ctx, r, ownerID, id)
		if err != nil {
			return err
		}
		if l.Status == status {
			out = l
			return nil
		}
		if !l.CanSetStatus(status) {
			return ErrListingStatus
		}

		if l.Status == model.ListingActive {
			pending, err := r.Transactions().ListByListing(ctx, l.ID, []string{model.TxPending})
			if err != nil {
				return err
			}
			notices, err = rejectAll(ctx, r, pending, l, reasonWithdrawn)
			if err != nil {
				return err
			}
		}

		if err := r.Listings().SetStatus(ctx, l.ID, status); err != nil {
			return err
		}
		l.Status = status
		out = l
		return nil
	})
	if err != nil {
		return nil, storeErr("failed to change listing status", err)
	}

	deliver(ctx, s.notifier, s.log, notices)
	s.log.Info("listing status changed",
		zap.String("listing_id", id),
		zap.String("status", status),
		zap.Int("offers_rejected", len(notices)))
	return out, nil
}

// Purge removes a listing permanently. Listings that ever had a transaction
// keep their row for the audit trail and can only be soft deleted.
func (s *ListingService) Purge(ctx context.Context, ownerID, id string) error {
	err := s.store.InTx(ctx, func(r repository.Repos) error {
		l, err := r.Listings().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if l == nil {
			return ErrListingNotFound
		}
		if l.OwnerID != ownerID {
			return ErrNotOwner
		}

		n, err := r.Transactions().CountByListing(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrListingHasTransactions
		}
		return r.Listings().Delete(ctx, id)
	})
	if err != nil {
		return storeErr("failed to purge listing", err)
	}
	s.log.Info("listing purged", zap.String("listing_id", id))
	return nil
}

// Get returns a listing as seen by viewerID, which may be empty for
// anonymous visitors. Inactive listings are visible to their owner only.
func (s *ListingService) Get(ctx context.Context, viewerID, id string, countView bool) (*model.Listing, error) {
	l, err := s.store.Listings().GetByID(ctx, id)
	if err != nil {
		return nil, storeErr("failed to get listing", err)
	}
	if l == nil || l.Status == model.ListingDeleted {
		return nil, ErrListingNotFound
	}
	isOwner := viewerID != "" && viewerID == l.OwnerID
	if l.Status == model.ListingInactive && !isOwner {
		return nil, ErrListingNotFound
	}

	if countView && !isOwner {
		if err := s.store.Listings().IncrementViews(ctx, id); err != nil {
			s.log.Warn("failed to count view", zap.String("listing_id", id), zap.Error(err))
		} else {
			l.ViewCount++
		}
	}
	return l, nil
}

// Search filters listings. Without a status it returns active listings, or
// every non-deleted listing when viewers browse their own.
func (s *ListingService) Search(ctx context.Context, viewerID string, q model.ListingQuery) ([]*model.Listing, int64, error) {
	own := q.OwnerID != "" && q.OwnerID == viewerID

	switch q.Status {
	case "":
		if !own {
			q.Status = model.ListingActive
		}
	case model.ListingActive, model.ListingPending, model.ListingSold:
	case model.ListingInactive:
		if !own {
			return nil, 0, ErrNotOwner
		}
	default:
		return nil, 0, invalid("status", "unknown listing status")
	}

	switch q.SortBy {
	case "":
		q.SortBy = model.SortCreatedAt
		q.SortDesc = true
	case model.SortCreatedAt, model.SortPrice, model.SortViewCount:
	default:
		return nil, 0, invalid("sort", "sort must be created_at, price or view_count")
	}

	if q.MinPrice != nil && q.MaxPrice != nil && q.MinPrice.GreaterThan(*q.MaxPrice) {
		return nil, 0, invalid("min_price", "min_price cannot exceed max_price")
	}

	items, total, err := s.store.Listings().Search(ctx, q)
	if err != nil {
		return nil, 0, storeErr("failed to search listings", err)
	}
	return items, total, nil
}

// Categories returns every listing category in display order.
func (s *ListingService) Categories(ctx context.Context) ([]*model.Category, error) {
	cats, err := s.store.Categories().List(ctx)
	if err != nil {
		return nil, storeErr("failed to list categories", err)
	}
	return cats, nil
}

func (s *ListingService) lockOwned(ctx context.Context, r repository.Repos, ownerID, id string) (*model.Listing, error) {
	l, err := r.Listings().GetForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if l == nil || l.Status == model.ListingDeleted {
		return nil, ErrListingNotFound
	}
	if l.OwnerID != ownerID {
		return nil, ErrNotOwner
	}
	return l, nil
}

func (s *ListingService) validate(ctx context.Context, r repository.Repos, l *model.Listing) error {
	if l.Title == "" {
		return invalid("title", "title is required")
	}
	if l.Price.IsNegative() {
		return invalid("price", "price cannot be negative")
	}

	cat, err := r.Categories().GetByID(ctx, l.CategoryID)
	if err != nil {
		return storeErr("failed to get category", err)
	}
	if cat == nil {
		return ErrInvalidCategory
	}
	return nil
}
