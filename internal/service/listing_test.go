package service

import (
	"testing"

	"campustrade-api/internal/config"
	"campustrade-api/internal/model"
	"campustrade-api/pkg/apierror"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestListingCreate_Validation(t *testing.T) {
	f := newFixture(t, config.MarketConfig{})
	owner := f.user("owner")

	tests := []struct {
		name string
		in   ListingInput
		want error
	}{
		{name: "missing title", in: ListingInput{CategoryID: "books", Title: "  "}, want: apierror.ErrValidation},
		{name: "negative price", in: ListingInput{CategoryID: "books", Title: "Pen", Price: decimal.NewFromInt(-3)}, want: apierror.ErrValidation},
		{name: "unknown category", in: ListingInput{CategoryID: "cars", Title: "Pen"}, want: ErrInvalidCategory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.listings.Create(f.ctx, owner.ID, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	l := f.listing(owner, "Notebook", 3)
	assert.Equal(t, model.ListingActive, l.Status)
	assert.Equal(t, owner.ID, l.OwnerID)
}

func TestListingUpdate(t *testing.T) {
	f := newFixture(t, config.MarketConfig{})
	owner := f.user("owner")
	l := f.listing(owner, "Old title", 10)

	_, err := f.listings.Update(f.ctx, f.user("intruder").ID, l.ID, model.ListingPatch{Title: strPtr("Hacked")})
	assert.ErrorIs(t, err, ErrNotOwner)

	price := decimal.NewFromInt(8)
	got, err := f.listings.Update(f.ctx, owner.ID, l.ID, model.ListingPatch{Title: strPtr("New title"), Price: &price})
	require.NoError(t, err)
	assert.Equal(t, "New title", got.Title)
	assert.True(t, got.Price.Equal(price))

	_, err = f.listings.Update(f.ctx, owner.ID, l.ID, model.ListingPatch{CategoryID: strPtr("cars")})
	assert.ErrorIs(t, err, ErrInvalidCategory)

	// sold listings are frozen
	buyer := f.user("buyer")
	o := f.offer(l, buyer, 8)
	_, err = f.tx.Accept(f.ctx, owner.ID, o.ID)
	require.NoError(t, err)
	_, err = f.tx.StartProgress(f.ctx, owner.ID, o.ID)
	require.NoError(t, err)
	_, err = f.tx.Complete(f.ctx, buyer.ID, o.ID)
	require.NoError(t, err)

	_, err = f.listings.Update(f.ctx, owner.ID, l.ID, model.ListingPatch{Title: strPtr("Relist")})
	assert.ErrorIs(t, err, ErrSoldListing)
}

func TestListingSetStatus(t *testing.T) {
	f := newFixture(t, config.MarketConfig{})
	owner := f.user("owner")
	l := f.listing(owner, "Mug", 4)

	_, err := f.listings.SetStatus(f.ctx, owner.ID, l.ID, model.ListingSold)
	assert.ErrorIs(t, err, apierror.ErrValidation)

	_, err = f.listings.SetStatus(f.ctx, f.user("intruder").ID, l.ID, model.ListingInactive)
	assert.ErrorIs(t, err, ErrNotOwner)

	got, err := f.listings.SetStatus(f.ctx, owner.ID, l.ID, model.ListingInactive)
	require.NoError(t, err)
	assert.Equal(t, model.ListingInactive, got.Status)

	got, err = f.listings.SetStatus(f.ctx, owner.ID, l.ID, model.ListingActive)
	require.NoError(t, err)
	assert.Equal(t, model.ListingActive, got.Status)

	// pending listings belong to the transaction flow
	o := f.offer(l, f.user("buyer"), 4)
	_, err = f.tx.Accept(f.ctx, owner.ID, o.ID)
	require.NoError(t, err)
	_, err = f.listings.SetStatus(f.ctx, owner.ID, l.ID, model.ListingInactive)
	assert.ErrorIs(t, err, ErrListingStatus)
	assert.ErrorIs(t, err, apierror.ErrInvalidTransition)
}

func TestListingSetStatus_WithdrawRejectsPendingOffers(t *testing.T) {
	f := newFixture(t, config.MarketConfig{})
	owner := f.user("owner")
	b1 := f.user("b1")
	b2 := f.user("b2")
	l := f.listing(owner, "Tent", 50)
	o1 := f.offer(l, b1, 45)
	o2 := f.offer(l, b2, 40)

	_, err := f.listings.SetStatus(f.ctx, owner.ID, l.ID, model.ListingDeleted)
	require.NoError(t, err)

	for _, o := range []*model.Transaction{o1, o2} {
		got := f.reload(o.ID)
		assert.Equal(t, model.TxRejected, got.Status)
		assert.Contains(t, got.Notes, "listing withdrawn by seller")
	}
	assert.Len(t, f.inboxOfType(b1, model.NotifyTransactionRejected), 1)
	assert.Len(t, f.inboxOfType(b2, model.NotifyTransactionRejected), 1)

	_, err = f.listings.Get(f.ctx, owner.ID, l.ID, false)
	assert.ErrorIs(t, err, ErrListingNotFound)
	_, err = f.listings.SetStatus(f.ctx, owner.ID, l.ID, model.ListingActive)
	assert.ErrorIs(t, err, ErrListingNotFound)
}

func TestListingPurge(t *testing.T) {
	f := newFixture(t, config.MarketConfig{})
	owner := f.user("owner")

	fresh := f.listing(owner, "Poster", 2)
	assert.ErrorIs(t, f.listings.Purge(f.ctx, f.user("intruder").ID, fresh.ID), ErrNotOwner)
	require.NoError(t, f.listings.Purge(f.ctx, owner.ID, fresh.ID))

	gone, err := f.store.Listings().GetByID(f.ctx, fresh.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	traded := f.listing(owner, "Clock", 12)
	o := f.offer(traded, f.user("buyer"), 12)
	_, err = f.tx.Reject(f.ctx, owner.ID, o.ID, "")
	require.NoError(t, err)

	err = f.listings.Purge(f.ctx, owner.ID, traded.ID)
	assert.ErrorIs(t, err, ErrListingHasTransactions)
}

func TestListingGet_VisibilityAndViews(t *testing.T) {
	f := newFixture(t, config.MarketConfig{})
	owner := f.user("owner")
	visitor := f.user("visitor")
	l := f.listing(owner, "Scarf", 7)

	got, err := f.listings.Get(f.ctx, visitor.ID, l.ID, true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ViewCount)

	got, err = f.listings.Get(f.ctx, "", l.ID, true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.ViewCount)

	got, err = f.listings.Get(f.ctx, owner.ID, l.ID, true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.ViewCount)

	_, err = f.listings.SetStatus(f.ctx, owner.ID, l.ID, model.ListingInactive)
	require.NoError(t, err)

	_, err = f.listings.Get(f.ctx, visitor.ID, l.ID, false)
	assert.ErrorIs(t, err, ErrListingNotFound)
	_, err = f.listings.Get(f.ctx, owner.ID, l.ID, false)
	assert.NoError(t, err)
}

func TestListingSearch(t *testing.T) {
	f := newFixture(t, config.MarketConfig{})
	owner := f.user("owner")
	visitor := f.user("visitor")

	f.listing(owner, "Linear Algebra", 30)
	f.listing(owner, "Organic Chemistry", 45)
	hidden := f.listing(owner, "Algebra workbook", 5)
	_, err := f.listings.SetStatus(f.ctx, owner.ID, hidden.ID, model.ListingInactive)
	require.NoError(t, err)

	items, total, err := f.listings.Search(f.ctx, visitor.ID, model.ListingQuery{Text: "ALGEBRA"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "Linear Algebra", items[0].Title)

	lo := decimal.NewFromInt(40)
	items, _, err = f.listings.Search(f.ctx, visitor.ID, model.ListingQuery{MinPrice: &lo})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Organic Chemistry", items[0].Title)

	items, _, err = f.listings.Search(f.ctx, visitor.ID, model.ListingQuery{SortBy: model.SortPrice})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Linear Algebra", items[0].Title)

	_, _, err = f.listings.Search(f.ctx, visitor.ID, model.ListingQuery{Status: model.ListingInactive, OwnerID: owner.ID})
	assert.ErrorIs(t, err, ErrNotOwner)

	items, total, err = f.listings.Search(f.ctx, owner.ID, model.ListingQuery{OwnerID: owner.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, items, 3)

	_, _, err = f.listings.Search(f.ctx, visitor.ID, model.ListingQuery{Status: model.ListingDeleted})
	assert.ErrorIs(t, err, apierror.ErrValidation)

	_, _, err = f.listings.Search(f.ctx, visitor.ID, model.ListingQuery{SortBy: "title"})
	assert.ErrorIs(t, err, apierror.ErrValidation)

	cats, err := f.listings.Categories(f.ctx)
	require.NoError(t, err)
	assert.Len(t, cats, len(model.DefaultCategories))
}
