package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisPublisher publishes events on the user's Redis channel so that every
// API instance can forward them to its own websocket sessions.
type RedisPublisher struct {
	client redis.UniversalClient
}

// NewRedisPublisher creates a publisher on an existing client.
func NewRedisPublisher(client redis.UniversalClient) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// Publish implements Publisher.
func (p *RedisPublisher) Publish(ctx context.Context, userID string, ev Event) error {
	frame, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := p.client.Publish(ctx, Channel(userID), frame).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Relay forwards events from Redis into the local hub.
type Relay struct {
	client redis.UniversalClient
	hub    *Hub
	log    *zap.Logger
}

// NewRelay creates a relay for hub.
func NewRelay(client redis.UniversalClient, hub *Hub, log *zap.Logger) *Relay {
	return &Relay{client: client, hub: hub, log: log.Named("relay")}
}

// Run subscribes to every user channel and blocks until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.client.PSubscribe(ctx, ChannelPrefix+"*")
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	r.log.Info("relay subscribed", zap.String("pattern", ChannelPrefix+"*"))

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			userID := strings.TrimPrefix(msg.Channel, ChannelPrefix)
			r.hub.Deliver(userID, []byte(msg.Payload))
		}
	}
}

var _ Publisher = (*RedisPublisher)(nil)
