package service

import (
	"context"
	"fmt"
	"strings"

	"campustrade-api/internal/model"
	"campustrade-api/internal/notify"
	"campustrade-api/internal/repository"
	"campustrade-api/pkg/uid"

	"go.uber.org/zap"
)

// MessageService handles direct messages between users.
type MessageService struct {
	store     repository.Store
	notifier  Notifier
	publisher notify.Publisher
	log       *zap.Logger
}

// NewMessageService creates a message service.
func NewMessageService(store repository.Store, notifier Notifier, publisher notify.Publisher, log *zap.Logger) *MessageService {
	if publisher == nil {
		publisher = notify.Discard
	}
	return &MessageService{
		store:     store,
		notifier:  notifier,
		publisher: publisher,
		log:       log.Named("messages"),
	}
}

// Send delivers a message from senderID to receiverID, optionally about a listing.
func (s *MessageService) Send(ctx context.Context, senderID, receiverID, content string, listingID *string) (*model.Message, error) {
	if senderID == receiverID {
		return nil, ErrSelfMessage
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	if !uid.IsValid(receiverID) {
		return nil, ErrReceiverNotFound
	}
	receiver, err := s.store.Users().GetByID(ctx, receiverID)
	if err != nil {
		return nil, storeErr("failed to get receiver", err)
	}
	if receiver == nil {
		return nil, ErrReceiverNotFound
	}
	sender, err := s.store.Users().GetByID(ctx, senderID)
	if err != nil {
		return nil, storeErr("failed to get sender", err)
	}
	if sender == nil {
		return nil, ErrUserNotFound
	}

	if listingID != nil && *listingID == "" {
		listingID = nil
	}
	if listingID != nil {
		l, err := s.store.Listings().GetByID(ctx, *listingID)
		if err != nil {
			return nil, storeErr("failed to get listing", err)
		}
		if l == nil || l.Status == model.ListingDeleted {
			return nil, ErrListingNotFound
		}
	}

	m := &model.Message{
		ID:         uid.New(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		ListingID:  listingID,
	}
	if err := s.store.Messages().Create(ctx, m); err != nil {
		return nil, storeErr("failed to send message", err)
	}

	if err := s.publisher.Publish(ctx, receiverID, notify.NewEvent(notify.EventNewMessage, m)); err != nil {
		s.log.Warn("message push failed", zap.String("message_id", m.ID), zap.Error(err))
	}
	deliver(ctx, s.notifier, s.log, []notice{{
		userID:  receiverID,
		kind:    model.NotifyNewMessage,
		content: fmt.Sprintf("New message from %s", sender.Username),
		link:    "/messages/" + senderID,
	}})
	return m, nil
}

// Conversation returns the messages between userID and otherID, oldest first.
func (s *MessageService) Conversation(ctx context.Context, userID, otherID string, page model.Page) ([]*model.Message, int64, error) {
	items, total, err := s.store.Messages().Conversation(ctx, userID, otherID, page)
	if err != nil {
		return nil, 0, storeErr("failed to load conversation", err)
	}
	return items, total, nil
}

// Conversations groups the user's messages by counterpart, most recent first.
func (s *MessageService) Conversations(ctx context.Context, userID string) ([]*model.Conversation, error) {
	msgs, err := s.store.Messages().ListForUser(ctx, userID)
	if err != nil {
		return nil, storeErr("failed to list messages", err)
	}

	byUser := make(map[string]*model.Conversation)
	var out []*model.Conversation
	for _, m := range msgs {
		other := m.SenderID
		if other == userID {
			other = m.ReceiverID
		}

		conv, ok := byUser[other]
		if !ok {
			// messages arrive newest first
			conv = &model.Conversation{UserID: other, LastMessage: m}
			byUser[other] = conv
			out = append(out, conv)
		}
		if m.ReceiverID == userID && !m.IsRead {
			conv.UnreadCount++
		}
	}

	ids := make([]string, 0, len(out))
	for _, conv := range out {
		ids = append(ids, conv.UserID)
	}
	users, err := s.store.Users().GetByIDs(ctx, ids)
	if err != nil {
		return nil, storeErr("failed to get users", err)
	}
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Username
	}
	for _, conv := range out {
		conv.Username = names[conv.UserID]
	}
	return out, nil
}

// MarkConversationRead marks every unread message from otherID to userID as
// read and returns how many changed.
func (s *MessageService) MarkConversationRead(ctx context.Context, userID, otherID string) (int64, error) {
	n, err := s.store.Messages().MarkConversationRead(ctx, userID, otherID)
	if err != nil {
		return 0, storeErr("failed to update messages", err)
	}
	return n, nil
}

// MarkRead marks one message read. Only its receiver may do this.
func (s *MessageService) MarkRead(ctx context.Context, actorID, id string) error {
	m, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if m.ReceiverID != actorID {
		return ErrNotRecipient
	}
	if m.IsRead {
		return nil
	}
	if err := s.store.Messages().MarkRead(ctx, id); err != nil {
		return storeErr("failed to update message", err)
	}
	return nil
}

// UnreadCount returns the number of unread messages addressed to userID.
func (s *MessageService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	n, err := s.store.Messages().CountUnread(ctx, userID)
	if err != nil {
		return 0, storeErr("failed to count messages", err)
	}
	return n, nil
}

// Delete removes a message. Only its sender may do this.
func (s *MessageService) Delete(ctx context.Context, actorID, id string) error {
	m, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if m.SenderID != actorID {
		return ErrNotSender
	}
	if err := s.store.Messages().Delete(ctx, id); err != nil {
		return storeErr("failed to delete message", err)
	}
	return nil
}

func (s *MessageService) get(ctx context.Context, id string) (*model.Message, error) {
	m, err := s.store.Messages().GetByID(ctx, id)
	if err != nil {
		return nil, storeErr("failed to get message", err)
	}
	if m == nil {
		return nil, ErrMessageNotFound
	}
	return m, nil
}
