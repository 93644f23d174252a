// Package notify delivers live events to connected users. Delivery is best
// effort: the notification table is the durable record.
package notify

import (
	"context"
	"time"
)

// Event types pushed to clients.
const (
	EventNewNotification = "new_notification"
	EventUnreadCount     = "unread_count"
	EventNewMessage      = "new_message"
)

// ChannelPrefix prefixes the per-user channel identifier.
const ChannelPrefix = "campustrade:user:"

// Channel returns the channel identifier for a user.
func Channel(userID string) string {
	return ChannelPrefix + userID
}

// Event is one live update for a user.
type Event struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewEvent stamps an event with the current time.
func NewEvent(eventType string, payload interface{}) Event {
	return Event{Type: eventType, Payload: payload, Timestamp: time.Now().UTC()}
}

// Publisher pushes an event to a user's live sessions.
type Publisher interface {
	Publish(ctx context.Context, userID string, ev Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, userID string, ev Event) error

func (f PublisherFunc) Publish(ctx context.Context, userID string, ev Event) error {
	return f(ctx, userID, ev)
}

// Discard drops every event.
var Discard Publisher = PublisherFunc(func(context.Context, string, Event) error { return nil })
