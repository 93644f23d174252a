package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"campustrade-api/internal/config"
	"campustrade-api/internal/model"
	"campustrade-api/internal/repository"
	"campustrade-api/pkg/apierror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// completedDeal runs an offer through to completion.
func (f *fixture) completedDeal(seller, buyer *model.User) *model.Transaction {
	f.t.Helper()
	l := f.listing(seller, "Item for "+buyer.Username, 10)
	o := f.offer(l, buyer, 10)
	_, err := f.tx.Accept(f.ctx, seller.ID, o.ID)
	require.NoError(f.t, err)
	_, err = f.tx.StartProgress(f.ctx, buyer.ID, o.ID)
	require.NoError(f.t, err)
	done, err := f.tx.Complete(f.ctx, buyer.ID, o.ID)
	require.NoError(f.t, err)
	return done
}

func TestReviewCreate_Preconditions(t *testing.T) {
	f := newFixture(t, config.MarketConfig{})
	seller := f.user("seller")
	buyer := f.user("buyer")

	l := f.listing(seller, "Shelf", 20)
	open := f.offer(l, buyer, 20)

	_, err := f.reviews.Create(f.ctx, buyer.ID, open.ID, 5, "")
	assert.ErrorIs(t, err, ErrNotCompleted)

	done := f.completedDeal(seller, buyer)

	_, err = f.reviews.Create(f.ctx, buyer.ID, done.ID, 6, "")
	assert.ErrorIs(t, err, ErrInvalidRating)
	_, err = f.reviews.Create(f.ctx, buyer.ID, done.ID, 0, "")
	assert.ErrorIs(t, err, ErrInvalidRating)

	_, err = f.reviews.Create(f.ctx, seller.ID, done.ID, 5, "")
	assert.ErrorIs(t, err, ErrNotBuyer)

	_, err = f.reviews.Create(f.ctx, buyer.ID, "missing", 5, "")
	assert.ErrorIs(t, err, ErrTransactionNotFound)

	rv, err := f.reviews.Create(f.ctx, buyer.ID, done.ID, 4, " smooth handover ")
	require.NoError(t, err)
	assert.Equal(t, seller.ID, rv.RevieweeID)
	assert.Equal(t, "smooth handover", rv.Comment)
	assert.Len(t, f.inboxOfType(seller, model.NotifyNewReview), 1)

	_, err = f.reviews.Create(f.ctx, buyer.ID, done.ID, 5, "")
	assert.ErrorIs(t, err, ErrAlreadyReviewed)

	ok, reason, err := f.reviews.CanReview(f.ctx, buyer.ID, done.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, ErrAlreadyReviewed.Message, reason)
}

// listingLookupFails makes Listings().GetByID fail inside units of work.
type listingLookupFails struct{ repository.Store }

func (s listingLookupFails) InTx(ctx context.Context, fn func(tx repository.Repos) error) error {
	return s.Store.InTx(ctx, func(tx repository.Repos) error {
		return fn(failingListingRepos{tx})
	})
}

type failingListingRepos struct{ repository.Repos }

func (r failingListingRepos) Listings() repository.ListingRepository {
	return failingListings{r.Repos.Listings()}
}

type failingListings struct{ repository.ListingRepository }

func (failingListings) GetByID(ctx context.Context, id string) (*model.Listing, error) {
	return nil, errors.New("listings table unreachable")
}

func TestReviewCreate_ListingLookupFailureRollsBack(t *testing.T) {
	f := newFixture(t, config.MarketConfig{})
	seller := f.user("seller")
	buyer := f.user("buyer")
	done := f.completedDeal(seller, buyer)

	svc := NewReviewService(listingLookupFails{f.store}, f.notes, zap.NewNop())
	_, err := svc.Create(f.ctx, buyer.ID, done.ID, 5, "")
	assert.ErrorIs(t, err, apierror.ErrPersistence)
	assert.Empty(t, f.inboxOfType(seller, model.NotifyNewReview))

	items, err := f.reviews.ListForTransaction(f.ctx, done.ID)
	require.NoError(t, err)
	assert.Empty(t, items)

	rv, err := f.reviews.Create(f.ctx, buyer.ID, done.ID, 5, "")
	require.NoError(t, err)
	require.Len(t, f.inboxOfType(seller, model.NotifyNewReview), 1)
	assert.Contains(t, f.inboxOfType(seller, model.NotifyNewReview)[0].Content, `"Item for buyer"`)
	assert.Equal(t, 5, rv.Rating)
}

func TestReviewCreate_ConcurrentAttemptsSucceedOnce(t *testing.T) {
	f := newFixture(t, config.MarketConfig{})
	seller := f.user("seller")
	buyer := f.user("buyer")
	done := f.completedDeal(seller, buyer)

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		dupes     int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.reviews.Create(f.ctx, buyer.ID, done.ID, 5, "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case assert.ErrorIs(t, err, ErrAlreadyReviewed):
				dupes++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, dupes)

	reviews, err := f.reviews.ListForTransaction(f.ctx, done.ID)
	require.NoError(t, err)
	assert.Len(t, reviews, 1)
}

func TestReviewStats(t *testing.T) {
	f := newFixture(t, config.MarketConfig{})
	seller := f.user("seller")

	for i, rating := range []int{5, 4, 4} {
		buyer := f.user("buyer" + string(rune('a'+i)))
		done := f.completedDeal(seller, buyer)
		_, err := f.reviews.Create(f.ctx, buyer.ID, done.ID, rating, "")
		require.NoError(t, err)
	}

	stats, err := f.reviews.Stats(f.ctx, seller.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, 4.3, stats.Average)
	assert.Equal(t, map[int]int64{1: 0, 2: 0, 3: 0, 4: 2, 5: 1}, stats.Distribution)

	items, total, err := f.reviews.ListForUser(f.ctx, seller.ID, model.Page{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, items, 2)

	empty, err := f.reviews.Stats(f.ctx, f.user("newcomer").ID)
	require.NoError(t, err)
	assert.Zero(t, empty.Total)
	assert.Zero(t, empty.Average)
}
