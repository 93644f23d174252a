package service

import (
	"testing"
	"time"

	"campustrade-api/internal/config"
	"campustrade-api/internal/model"
	"campustrade-api/pkg/uid"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCleanupScheduler_RunNowDeletesOldReadNotifications(t *testing.T) {
	f := newFixture(t, config.MarketConfig{})
	alice := f.user("alice")
	repo := f.store.Notifications()

	old := time.Now().UTC().Add(-48 * time.Hour)
	for _, n := range []*model.Notification{
		{ID: uid.New(), UserID: alice.ID, Type: model.NotifyNewMessage, Content: "old read", IsRead: true, CreatedAt: old},
		{ID: uid.New(), UserID: alice.ID, Type: model.NotifyNewMessage, Content: "old unread", CreatedAt: old},
		{ID: uid.New(), UserID: alice.ID, Type: model.NotifyNewMessage, Content: "new read", IsRead: true},
	} {
		require.NoError(t, repo.Create(f.ctx, n))
	}

	s := NewCleanupScheduler(repo, CleanupConfig{RetentionAge: 24 * time.Hour}, zap.NewNop())
	deleted, err := s.RunNow()
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	left := f.inbox(alice)
	require.Len(t, left, 2)
	for _, n := range left {
		assert.NotEqual(t, "old read", n.Content)
	}
}

func TestCleanupScheduler_DisabledWithoutInterval(t *testing.T) {
	f := newFixture(t, config.MarketConfig{})
	s := NewCleanupScheduler(f.store.Notifications(), CleanupConfig{}, zap.NewNop())

	s.Start()
	assert.False(t, s.isRunning)
	s.Stop()
	s.Stop()
}
