package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"campustrade-api/internal/cache"
	"campustrade-api/internal/config"
	"campustrade-api/internal/model"
	"campustrade-api/internal/notify"
	"campustrade-api/internal/repository"
	"campustrade-api/pkg/uid"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type eventLog struct {
	mu     sync.Mutex
	events map[string][]notify.Event
}

func (e *eventLog) Publish(ctx context.Context, userID string, ev notify.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.events == nil {
		e.events = make(map[string][]notify.Event)
	}
	e.events[userID] = append(e.events[userID], ev)
	return nil
}

func (e *eventLog) types(userID string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []string
	for _, ev := range e.events[userID] {
		out = append(out, ev.Type)
	}
	return out
}

type failingNotifier struct{ calls int }

func (f *failingNotifier) Create(ctx context.Context, userID, notifType, content, link string) (*model.Notification, error) {
	f.calls++
	return nil, errors.New("notification store offline")
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	store    *repository.SQLStore
	events   *eventLog
	notes    *NotificationService
	tx       *TransactionService
	listings *ListingService
	reviews  *ReviewService
	messages *MessageService
}

func newFixture(t *testing.T, policy config.MarketConfig) *fixture {
	t.Helper()

	store, err := repository.NewSQLiteStore(filepath.Join(t.TempDir(), "market.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	mem := cache.NewMemoryCache(time.Hour)
	t.Cleanup(func() { _ = mem.Close() })

	if policy.CompletionPolicy == "" {
		policy.CompletionPolicy = config.CompletionEither
	}

	log := zap.NewNop()
	events := &eventLog{}
	notes := NewNotificationService(store, mem, events, time.Minute, log)

	return &fixture{
		t:        t,
		ctx:      context.Background(),
		store:    store,
		events:   events,
		notes:    notes,
		tx:       NewTransactionService(store, notes, policy, log),
		listings: NewListingService(store, notes, log),
		reviews:  NewReviewService(store, notes, log),
		messages: NewMessageService(store, notes, events, log),
	}
}

func (f *fixture) user(name string) *model.User {
	f.t.Helper()
	u := &model.User{ID: uid.New(), Email: name + "@campus.edu", Username: name, PasswordHash: "x"}
	require.NoError(f.t, f.store.Users().Create(f.ctx, u))
	return u
}

func (f *fixture) admin(name string) *model.User {
	f.t.Helper()
	u := &model.User{ID: uid.New(), Email: name + "@campus.edu", Username: name, PasswordHash: "x", IsAdmin: true}
	require.NoError(f.t, f.store.Users().Create(f.ctx, u))
	return u
}

func (f *fixture) listing(owner *model.User, title string, price int64) *model.Listing {
	f.t.Helper()
	l, err := f.listings.Create(f.ctx, owner.ID, ListingInput{
		CategoryID:  "books",
		Title:       title,
		Description: "good condition",
		Price:       decimal.NewFromInt(price),
	})
	require.NoError(f.t, err)
	return l
}

func (f *fixture) offer(l *model.Listing, buyer *model.User, amount int64) *model.Transaction {
	f.t.Helper()
	t, err := f.tx.Create(f.ctx, buyer.ID, CreateTransactionInput{
		ListingID: l.ID,
		Type:      model.TypeSale,
		Amount:    decimal.NewFromInt(amount),
	})
	require.NoError(f.t, err)
	return t
}

func (f *fixture) listingStatus(id string) string {
	f.t.Helper()
	l, err := f.store.Listings().GetByID(f.ctx, id)
	require.NoError(f.t, err)
	require.NotNil(f.t, l)
	return l.Status
}

func (f *fixture) reload(id string) *model.Transaction {
	f.t.Helper()
	t, err := f.store.Transactions().GetByID(f.ctx, id)
	require.NoError(f.t, err)
	require.NotNil(f.t, t)
	return t
}

func (f *fixture) inbox(u *model.User) []*model.Notification {
	f.t.Helper()
	items, _, err := f.store.Notifications().List(f.ctx, u.ID, false, model.Page{Limit: 100})
	require.NoError(f.t, err)
	return items
}

func (f *fixture) inboxOfType(u *model.User, kind string) []*model.Notification {
	var out []*model.Notification
	for _, n := range f.inbox(u) {
		if n.Type == kind {
			out = append(out, n)
		}
	}
	return out
}
