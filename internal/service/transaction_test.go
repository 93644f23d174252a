package service

import (
	"sync"
	"testing"

	"campustrade-api/internal/config"
	"campustrade-api/internal/model"
	"campustrade-api/pkg/apierror"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTransactionCreate_Preconditions(t *testing.T) {
	f := newFixture(t, config.MarketConfig{})
	seller := f.user("seller")
	buyer := f.user("buyer")
	l := f.listing(seller, "Calculus", 100)

	_, err := f.tx.Create(f.ctx, buyer.ID, CreateTransactionInput{ListingID: "missing"})
	assert.ErrorIs(t, err, ErrListingNotFound)

	_, err = f.tx.Create(f.ctx, seller.ID, CreateTransactionInput{ListingID: l.ID})
	assert.ErrorIs(t, err, ErrSelfTransaction)
	assert.ErrorIs(t, err, apierror.ErrForbidden)

	_, err = f.tx.Create(f.ctx, buyer.ID, CreateTransactionInput{ListingID: l.ID, Type: "barter"})
	assert.ErrorIs(t, err, apierror.ErrValidation)

	_, err = f.tx.Create(f.ctx, buyer.ID, CreateTransactionInput{ListingID: l.ID, Amount: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, apierror.ErrValidation)

	_, err = f.tx.Create(f.ctx, buyer.ID, CreateTransactionInput{ListingID: l.ID, Type: model.TypeFree, Amount: decimal.NewFromInt(5)})
	assert.ErrorIs(t, err, apierror.ErrValidation)

	first := f.offer(l, buyer, 100)
	assert.Equal(t, model.TxPending, first.Status)
	assert.Equal(t, seller.ID, first.SellerID)

	_, err = f.tx.Create(f.ctx, buyer.ID, CreateTransactionInput{ListingID: l.ID, Amount: decimal.NewFromInt(90)})
	assert.ErrorIs(t, err, ErrDuplicatePendingOffer)
	assert.ErrorIs(t, err, apierror.ErrValidation)

	_, err = f.listings.SetStatus(f.ctx, seller.ID, l.ID, model.ListingInactive)
	require.NoError(t, err)
	other := f.user("other")
	_, err = f.tx.Create(f.ctx, other.ID, CreateTransactionInput{ListingID: l.ID})
	assert.ErrorIs(t, err, ErrListingNotTransactable)
	assert.ErrorIs(t, err, apierror.ErrInvalidTransition)
}

func TestTransactionCreate_NotifiesSeller(t *testing.T) {
	f := newFixture(t, config.MarketConfig{})
	seller := f.user("seller")
	buyer := f.user("buyer")
	l := f.listing(seller, "Lamp", 15)

	f.offer(l, buyer, 15)

	requests := f.inboxOfType(seller, model.NotifyTransactionRequest)
	require.Len(t, requests, 1)
	assert.Contains(t, requests[0].Content, "buyer")
	assert.Contains(t, requests[0].Content, "Lamp")
	assert.Contains(t, f.events.types(seller.ID), "new_notification")
}

func TestTransactionCreate_ReservePolicy(t *testing.T) {
	t.Run("listing stays active by default", func(t *testing.T) {
		f := newFixture(t, config.MarketConfig{})
		seller := f.user("seller")
		l := f.listing(seller, "Desk", 40)

		f.offer(l, f.user("b1"), 40)
		f.offer(l, f.user("b2"), 35)
		assert.Equal(t, model.ListingActive, f.listingStatus(l.ID))
	})

	t.Run("offer reserves listing", func(t *testing.T) {
		f := newFixture(t, config.MarketConfig{ReserveOnOffer: true})
		seller := f.user("seller")
		l := f.listing(seller, "Desk", 40)

		o := f.offer(l, f.user("b1"), 40)
		assert.Equal(t, model.ListingPending, f.listingStatus(l.ID))

		_, err := f.tx.Create(f.ctx, f.user("b2").ID, CreateTransactionInput{ListingID: l.ID})
		assert.ErrorIs(t, err, ErrListingNotTransactable)

		_, err = f.tx.Reject(f.ctx, seller.ID, o.ID, "")
		require.NoError(t, err)
		assert.Equal(t, model.ListingActive, f.listingStatus(l.ID))
	})
}

func TestTransactionAccept_RejectsCompetingOffers(t *testing.T) {
	f := newFixture(t, config.MarketConfig{})
	seller := f.user("seller")
	l := f.listing(seller, "Bike", 200)

	buyers := []*model.User{f.user("b1"), f.user("b2"), f.user("b3"), f.user("b4")}
	var offers []*model.Transaction
	for i, b := range buyers {
		offers = append(offers, f.offer(l, b, int64(150+i*10)))
	}

	accepted, err := f.tx.Accept(f.ctx, seller.ID, offers[1].ID)
	require.NoError(t, err)
	assert.Equal(t, model.TxAccepted, accepted.Status)
	assert.Equal(t, model.ListingPending, f.listingStatus(l.ID))

	counts := map[string]int{}
	for i, o := range offers {
		got := f.reload(o.ID)
		counts[got.Status]++
		if i == 1 {
			continue
		}
		assert.Equal(t, model.TxRejected, got.Status)
		assert.Contains(t, got.Notes, "seller accepted another offer")
		assert.Len(t, f.inboxOfType(buyers[i], model.NotifyTransactionRejected), 1)
	}
	assert.Equal(t, map[string]int{model.TxAccepted: 1, model.TxRejected: 3}, counts)
	assert.Len(t, f.inboxOfType(buyers[1], model.NotifyTransactionAccepted), 1)
}

func TestTransactionAccept_Guards(t *testing.T) {
	f := newFixture(t, config.MarketConfig{})
	seller := f.user("seller")
	buyer := f.user("buyer")
	l := f.listing(seller, "Chair", 20)
	o := f.offer(l, buyer, 20)

	_, err := f.tx.Accept(f.ctx, buyer.ID, o.ID)
	assert.ErrorIs(t, err, ErrNotSeller)

	_, err = f.tx.Accept(f.ctx, seller.ID, "missing")
	assert.ErrorIs(t, err, ErrTransactionNotFound)

	_, err = f.tx.Accept(f.ctx, seller.ID, o.ID)
	require.NoError(t, err)

	_, err = f.tx.Accept(f.ctx, seller.ID, o.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransactionAccept_ListingHeldByAnotherOffer(t *testing.T) {
	f := newFixture(t, config.MarketConfig{})
	seller := f.user("seller")
	b1 := f.user("b1")
	b2 := f.user("b2")
	l := f.listing(seller, "Monitor", 100)

	o1 := f.offer(l, b1, 100)
	_, err := f.tx.Accept(f.ctx, seller.ID, o1.ID)
	require.NoError(t, err)

	// new offers are refused while the listing is held
	_, err = f.tx.Create(f.ctx, b2.ID, CreateTransactionInput{ListingID: l.ID})
	assert.ErrorIs(t, err, ErrListingNotTransactable)

	// an offer that slipped in stays pending and cannot be accepted
	o2 := &model.Transaction{
		ID: "late-offer", ListingID: l.ID, BuyerID: b2.ID, SellerID: seller.ID,
		Status: model.TxPending, Type: model.TypeSale, Amount: decimal.NewFromInt(120),
	}
	require.NoError(t, f.store.Transactions().Create(f.ctx, o2))

	_, err = f.tx.Accept(f.ctx, seller.ID, o2.ID)
	assert.ErrorIs(t, err, ErrListingHeld)
	assert.ErrorIs(t, err, apierror.ErrInvalidTransition)
	assert.Equal(t, model.TxPending, f.reload(o2.ID).Status)
	assert.Equal(t, model.TxAccepted, f.reload(o1.ID).Status)
}

func TestTransactionAccept_ConcurrentOffersOneWins(t *testing.T) {
	f := newFixture(t, config.MarketConfig{})
	seller := f.user("seller")
	l := f.listing(seller, "Bike", 80)

	const buyers = 6
	offers := make([]*model.Transaction, buyers)
	for i := range offers {
		offers[i] = f.offer(l, f.user("buyer"+string(rune('a'+i))), 80)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		refused   int
	)
	for _, o := range offers {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.tx.Accept(f.ctx, seller.ID, id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case assert.ErrorIs(t, err, apierror.ErrInvalidTransition):
				refused++
			}
		}(o.ID)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, buyers-1, refused)

	statuses := make(map[string]int)
	for _, o := range offers {
		statuses[f.reload(o.ID).Status]++
	}
	assert.Equal(t, map[string]int{model.TxAccepted: 1, model.TxRejected: buyers - 1}, statuses)
	assert.Equal(t, model.ListingPending, f.listingStatus(l.ID))
}

func TestTransaction_InvalidEdgesLeaveStateUnchanged(t *testing.T) {
	f := newFixture(t, config.MarketConfig{})
	seller := f.user("seller")
	buyer := f.user("buyer")
	l := f.listing(seller, "Kettle", 10)
	o := f.offer(l, buyer, 10)

	_, err := f.tx.StartProgress(f.ctx, buyer.ID, o.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.tx.Complete(f.ctx, buyer.ID, o.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.tx.Dispute(f.ctx, buyer.ID, o.ID, "never showed up")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	got := f.reload(o.ID)
	assert.Equal(t, model.TxPending, got.Status)
	assert.Empty(t, got.Notes)
	assert.Equal(t, model.ListingActive, f.listingStatus(l.ID))

	_, err = f.tx.Reject(f.ctx, seller.ID, o.ID, "")
	require.NoError(t, err)
	for _, op := range []func() error{
		func() error { _, err := f.tx.Accept(f.ctx, seller.ID, o.ID); return err },
		func() error { _, err := f.tx.Cancel(f.ctx, buyer.ID, o.ID, ""); return err },
		func() error { _, err := f.tx.Reject(f.ctx, seller.ID, o.ID, ""); return err },
	} {
		assert.ErrorIs(t, op(), ErrInvalidTransition)
	}
	assert.Equal(t, model.TxRejected, f.reload(o.ID).Status)
}

func TestTransaction_HappyPathToReview(t *testing.T) {
	f := newFixture(t, config.MarketConfig{})
	seller := f.user("seller")
	buyer := f.user("buyer")
	l := f.listing(seller, "Guitar", 300)
	o := f.offer(l, buyer, 280)

	_, err := f.tx.Accept(f.ctx, seller.ID, o.ID)
	require.NoError(t, err)

	_, err = f.tx.StartProgress(f.ctx, seller.ID, o.ID)
	require.NoError(t, err)
	assert.Len(t, f.inboxOfType(buyer, model.NotifyTransactionInProgress), 1)

	done, err := f.tx.Complete(f.ctx, buyer.ID, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TxCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, model.ListingSold, f.listingStatus(l.ID))
	assert.Len(t, f.inboxOfType(seller, model.NotifyTransactionCompleted), 1)

	stored := f.reload(o.ID)
	require.NotNil(t, stored.CompletedAt)
	assert.True(t, stored.CompletedAt.Equal(*done.CompletedAt))

	ok, _, err := f.reviews.CanReview(f.ctx, buyer.ID, o.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, reason, err := f.reviews.CanReview(f.ctx, seller.ID, o.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NotEmpty(t, reason)
}

func TestTransactionComplete_OnlyOnce(t *testing.T) {
	f := newFixture(t, config.MarketConfig{})
	seller := f.user("seller")
	buyer := f.user("buyer")
	l := f.listing(seller, "Camera", 500)
	o := f.offer(l, buyer, 500)

	_, err := f.tx.Accept(f.ctx, seller.ID, o.ID)
	require.NoError(t, err)
	_, err = f.tx.StartProgress(f.ctx, buyer.ID, o.ID)
	require.NoError(t, err)

	_, err = f.tx.Complete(f.ctx, seller.ID, o.ID)
	require.NoError(t, err)
	_, err = f.tx.Complete(f.ctx, seller.ID, o.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	assert.Equal(t, model.ListingSold, f.listingStatus(l.ID))
	assert.Len(t, f.inboxOfType(buyer, model.NotifyTransactionCompleted), 1)
}

func TestTransactionComplete_BuyerOnlyPolicy(t *testing.T) {
	f := newFixture(t, config.MarketConfig{CompletionPolicy: config.CompletionBuyer})
	seller := f.user("seller")
	buyer := f.user("buyer")
	l := f.listing(seller, "Printer", 60)
	o := f.offer(l, buyer, 60)

	_, err := f.tx.Accept(f.ctx, seller.ID, o.ID)
	require.NoError(t, err)
	_, err = f.tx.StartProgress(f.ctx, seller.ID, o.ID)
	require.NoError(t, err)

	_, err = f.tx.Complete(f.ctx, seller.ID, o.ID)
	assert.ErrorIs(t, err, ErrNotBuyer)
	assert.Equal(t, model.TxInProgress, f.reload(o.ID).Status)

	_, err = f.tx.Complete(f.ctx, buyer.ID, o.ID)
	assert.NoError(t, err)
}

func TestTransactionReject_WithReason(t *testing.T) {
	f := newFixture(t, config.MarketConfig{ReserveOnOffer: true})
	seller := f.user("seller")
	buyer := f.user("buyer")
	l := f.listing(seller, "Sofa", 80)
	o := f.offer(l, buyer, 70)
	require.Equal(t, model.ListingPending, f.listingStatus(l.ID))

	got, err := f.tx.Reject(f.ctx, seller.ID, o.ID, "already sold")
	require.NoError(t, err)
	assert.Equal(t, model.TxRejected, got.Status)
	assert.Equal(t, "Rejection reason: already sold", got.Notes)
	assert.Equal(t, model.ListingActive, f.listingStatus(l.ID))

	inbox := f.inbox(buyer)
	require.Len(t, inbox, 1)
	assert.Equal(t, model.NotifyTransactionRejected, inbox[0].Type)
	assert.Contains(t, inbox[0].Content, "already sold")
}

func TestTransactionCancel_ReleasesListing(t *testing.T) {
	f := newFixture(t, config.MarketConfig{})
	seller := f.user("seller")
	buyer := f.user("buyer")
	l := f.listing(seller, "Fan", 25)
	o := f.offer(l, buyer, 25)

	_, err := f.tx.Accept(f.ctx, seller.ID, o.ID)
	require.NoError(t, err)

	_, err = f.tx.Cancel(f.ctx, f.user("stranger").ID, o.ID, "")
	assert.ErrorIs(t, err, ErrNotParticipant)

	got, err := f.tx.Cancel(f.ctx, buyer.ID, o.ID, "found one cheaper")
	require.NoError(t, err)
	assert.Equal(t, model.TxCancelled, got.Status)
	assert.Contains(t, got.Notes, "Cancellation reason: found one cheaper")
	assert.Equal(t, model.ListingActive, f.listingStatus(l.ID))
	assert.Len(t, f.inboxOfType(seller, model.NotifyTransactionCancelled), 1)
}

func TestTransactionDispute_AndResolve(t *testing.T) {
	f := newFixture(t, config.MarketConfig{})
	seller := f.user("seller")
	buyer := f.user("buyer")
	admin := f.admin("admin")
	l := f.listing(seller, "Phone", 400)
	o := f.offer(l, buyer, 400)

	_, err := f.tx.Accept(f.ctx, seller.ID, o.ID)
	require.NoError(t, err)

	_, err = f.tx.Dispute(f.ctx, buyer.ID, o.ID, "  ")
	assert.ErrorIs(t, err, ErrReasonRequired)

	got, err := f.tx.Dispute(f.ctx, buyer.ID, o.ID, "item damaged")
	require.NoError(t, err)
	assert.Equal(t, model.TxDisputed, got.Status)
	assert.Contains(t, got.Notes, "Dispute reason: item damaged")
	assert.Equal(t, model.ListingPending, f.listingStatus(l.ID))
	assert.Len(t, f.inboxOfType(seller, model.NotifyTransactionDisputed), 1)

	disputed, total, err := f.tx.ListDisputed(f.ctx, admin.ID, model.Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, o.ID, disputed[0].ID)

	_, _, err = f.tx.ListDisputed(f.ctx, seller.ID, model.Page{})
	assert.ErrorIs(t, err, ErrNotAdmin)

	_, err = f.tx.ResolveDispute(f.ctx, buyer.ID, o.ID, "refund", ResolveCancel)
	assert.ErrorIs(t, err, ErrNotAdmin)
	_, err = f.tx.ResolveDispute(f.ctx, admin.ID, o.ID, "refund", "split")
	assert.ErrorIs(t, err, apierror.ErrValidation)

	resolved, err := f.tx.ResolveDispute(f.ctx, admin.ID, o.ID, "refund issued", ResolveCancel)
	require.NoError(t, err)
	assert.Equal(t, model.TxCancelled, resolved.Status)
	assert.Contains(t, resolved.Notes, "Admin resolution: refund issued")
	assert.Equal(t, model.ListingActive, f.listingStatus(l.ID))
	assert.Len(t, f.inboxOfType(buyer, model.NotifyDisputeResolved), 1)
	assert.Len(t, f.inboxOfType(seller, model.NotifyDisputeResolved), 1)

	_, err = f.tx.ResolveDispute(f.ctx, admin.ID, o.ID, "again", ResolveComplete)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransactionResolveDispute_Complete(t *testing.T) {
	f := newFixture(t, config.MarketConfig{})
	seller := f.user("seller")
	buyer := f.user("buyer")
	admin := f.admin("admin")
	l := f.listing(seller, "Tablet", 250)
	o := f.offer(l, buyer, 250)

	_, err := f.tx.Accept(f.ctx, seller.ID, o.ID)
	require.NoError(t, err)
	_, err = f.tx.StartProgress(f.ctx, buyer.ID, o.ID)
	require.NoError(t, err)
	_, err = f.tx.Dispute(f.ctx, seller.ID, o.ID, "buyer claims not received")
	require.NoError(t, err)

	got, err := f.tx.ResolveDispute(f.ctx, admin.ID, o.ID, "delivery confirmed", ResolveComplete)
	require.NoError(t, err)
	assert.Equal(t, model.TxCompleted, got.Status)
	assert.NotNil(t, got.CompletedAt)
	assert.Equal(t, model.ListingSold, f.listingStatus(l.ID))
}

func TestTransaction_NotificationFailureDoesNotRollBack(t *testing.T) {
	f := newFixture(t, config.MarketConfig{})
	failing := &failingNotifier{}
	f.tx = NewTransactionService(f.store, failing, config.MarketConfig{CompletionPolicy: config.CompletionEither}, zap.NewNop())

	seller := f.user("seller")
	buyer := f.user("buyer")
	l := f.listing(seller, "Rug", 30)
	o := f.offer(l, buyer, 30)

	_, err := f.tx.Accept(f.ctx, seller.ID, o.ID)
	require.NoError(t, err)

	assert.Equal(t, model.TxAccepted, f.reload(o.ID).Status)
	assert.Equal(t, model.ListingPending, f.listingStatus(l.ID))
	assert.Equal(t, 2, failing.calls)
}

func TestTransactionGetAndList(t *testing.T) {
	f := newFixture(t, config.MarketConfig{})
	seller := f.user("seller")
	buyer := f.user("buyer")
	admin := f.admin("admin")
	l := f.listing(seller, "Oven", 90)
	o := f.offer(l, buyer, 90)

	for _, viewer := range []string{seller.ID, buyer.ID, admin.ID} {
		got, err := f.tx.Get(f.ctx, viewer, o.ID)
		require.NoError(t, err)
		assert.Equal(t, o.ID, got.ID)
	}
	_, err := f.tx.Get(f.ctx, f.user("stranger").ID, o.ID)
	assert.ErrorIs(t, err, ErrNotParticipant)

	items, total, err := f.tx.ListForUser(f.ctx, buyer.ID, model.RoleBuyer, "", model.Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, items, 1)

	_, total, err = f.tx.ListForUser(f.ctx, buyer.ID, model.RoleSeller, "", model.Page{})
	require.NoError(t, err)
	assert.Zero(t, total)

	_, _, err = f.tx.ListForUser(f.ctx, buyer.ID, "owner", "", model.Page{})
	assert.ErrorIs(t, err, apierror.ErrValidation)
}
