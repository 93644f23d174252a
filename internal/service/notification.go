package service

import (
	"context"
	"strconv"
	"time"

	"campustrade-api/internal/cache"
	"campustrade-api/internal/model"
	"campustrade-api/internal/notify"
	"campustrade-api/internal/repository"
	"campustrade-api/pkg/uid"

	"go.uber.org/zap"
)

const unreadKeyPrefix = "unread:notif:"

// Notifier records a notification for a user.
type Notifier interface {
	Create(ctx context.Context, userID, notifType, content, link string) (*model.Notification, error)
}

// NotificationService is the durable notification sink. Each new record is
// mirrored to the user's live sessions on a best-effort basis.
type NotificationService struct {
	store     repository.Store
	cache     cache.Cache
	publisher notify.Publisher
	cacheTTL  time.Duration
	log       *zap.Logger
}

// NewNotificationService creates a notification service.
func NewNotificationService(store repository.Store, c cache.Cache, publisher notify.Publisher, cacheTTL time.Duration, log *zap.Logger) *NotificationService {
	if publisher == nil {
		publisher = notify.Discard
	}
	return &NotificationService{
		store:     store,
		cache:     c,
		publisher: publisher,
		cacheTTL:  cacheTTL,
		log:       log.Named("notifications"),
	}
}

// Create appends a notification and pushes it to the recipient.
func (s *NotificationService) Create(ctx context.Context, userID, notifType, content, link string) (*model.Notification, error) {
	n := &model.Notification{
		ID:      uid.New(),
		UserID:  userID,
		Type:    notifType,
		Content: content,
	}
	if link != "" {
		n.Link = &link
	}

	if err := s.store.Notifications().Create(ctx, n); err != nil {
		return nil, storeErr("failed to save notification", err)
	}
	s.invalidate(ctx, userID)

	s.publish(ctx, userID, notify.NewEvent(notify.EventNewNotification, n))
	s.pushUnread(ctx, userID)
	return n, nil
}

// List returns a page of the user's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool, page model.Page) ([]*model.Notification, int64, error) {
	items, total, err := s.store.Notifications().List(ctx, userID, unreadOnly, page)
	if err != nil {
		return nil, 0, storeErr("failed to list notifications", err)
	}
	return items, total, nil
}

// MarkRead flips one notification to read. Only the recipient may do this.
func (s *NotificationService) MarkRead(ctx context.Context, actorID, id string) error {
	n, err := s.owned(ctx, actorID, id)
	if err != nil {
		return err
	}
	if n.IsRead {
		return nil
	}
	if err := s.store.Notifications().MarkRead(ctx, id); err != nil {
		return storeErr("failed to update notification", err)
	}
	s.invalidate(ctx, actorID)
	s.pushUnread(ctx, actorID)
	return nil
}

// MarkAllRead flips every unread notification of the user and returns how many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	n, err := s.store.Notifications().MarkAllRead(ctx, userID)
	if err != nil {
		return 0, storeErr("failed to update notifications", err)
	}
	s.invalidate(ctx, userID)
	if n > 0 {
		s.pushUnread(ctx, userID)
	}
	return n, nil
}

// UnreadCount returns the user's unread badge count.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	if s.cache == nil {
		n, err := s.store.Notifications().CountUnread(ctx, userID)
		if err != nil {
			return 0, storeErr("failed to count notifications", err)
		}
		return n, nil
	}

	load := func() ([]byte, error) {
		n, err := s.store.Notifications().CountUnread(ctx, userID)
		if err != nil {
			return nil, err
		}
		return []byte(strconv.FormatInt(n, 10)), nil
	}
	raw, err := s.cache.GetOrSet(ctx, unreadKeyPrefix+userID, s.cacheTTL, load)
	if err != nil {
		return 0, storeErr("failed to count notifications", err)
	}
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		s.invalidate(ctx, userID)
		return 0, storeErr("failed to count notifications", err)
	}
	return n, nil
}

// Delete removes one of the user's notifications.
func (s *NotificationService) Delete(ctx context.Context, actorID, id string) error {
	if _, err := s.owned(ctx, actorID, id); err != nil {
		return err
	}
	if err := s.store.Notifications().Delete(ctx, id); err != nil {
		return storeErr("failed to delete notification", err)
	}
	s.invalidate(ctx, actorID)
	return nil
}

func (s *NotificationService) owned(ctx context.Context, actorID, id string) (*model.Notification, error) {
	n, err := s.store.Notifications().GetByID(ctx, id)
	if err != nil {
		return nil, storeErr("failed to get notification", err)
	}
	if n == nil {
		return nil, ErrNotificationNotFound
	}
	if n.UserID != actorID {
		return nil, ErrNotRecipient
	}
	return n, nil
}

func (s *NotificationService) invalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, unreadKeyPrefix+userID); err != nil {
		s.log.Warn("failed to invalidate unread count", zap.String("user_id", userID), zap.Error(err))
	}
}

func (s *NotificationService) pushUnread(ctx context.Context, userID string) {
	count, err := s.UnreadCount(ctx, userID)
	if err != nil {
		s.log.Warn("failed to count unread notifications", zap.String("user_id", userID), zap.Error(err))
		return
	}
	s.publish(ctx, userID, notify.NewEvent(notify.EventUnreadCount, map[string]int64{"count": count}))
}

func (s *NotificationService) publish(ctx context.Context, userID string, ev notify.Event) {
	if err := s.publisher.Publish(ctx, userID, ev); err != nil {
		s.log.Warn("event push failed",
			zap.String("user_id", userID),
			zap.String("type", ev.Type),
			zap.Error(err))
	}
}

// notice is a notification queued during a unit of work and sent after commit.
type notice struct {
	userID  string
	kind    string
	content string
	link    string
}

// deliver sends queued notices. Failures are logged and never returned:
// the state change they describe has already been committed.
func deliver(ctx context.Context, n Notifier, log *zap.Logger, notices []notice) {
	if n == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, nt := range notices {
		if _, err := n.Create(ctx, nt.userID, nt.kind, nt.content, nt.link); err != nil {
			log.Warn("notification dropped",
				zap.String("user_id", nt.userID),
				zap.String("type", nt.kind),
				zap.Error(err))
		}
	}
}

var _ Notifier = (*NotificationService)(nil)
