// Package pubsub bridges chat events between relay instances over Redis so a
// horizontally scaled deployment behaves as one room: a message accepted by
// any instance reaches the websocket clients and long-poll waiters of all of
// them.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/chat-relay/chat"
	"github.com/onnwee/chat-relay/hub"
)

// Event is the wire format on the Redis channel. Origin lets an instance
// recognize and skip its own publications, which it has already broadcast
// locally.
type Event struct {
	Origin  string       `json:"origin"`
	Message chat.Message `json:"message"`
}

// Bridge connects one hub to a shared Redis channel.
type Bridge struct {
	client  *redis.Client
	channel string
	origin  string
	hub     *hub.Hub
}

// NewBridge dials Redis and verifies the connection.
func NewBridge(ctx context.Context, addr, password string, db int, channel string, h *hub.Hub) (*Bridge, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &Bridge{
		client:  client,
		channel: channel,
		origin:  uuid.New().String(),
		hub:     h,
	}, nil
}

// Publish announces a locally accepted message to the other instances.
func (b *Bridge) Publish(ctx context.Context, m chat.Message) error {
	data, err := json.Marshal(Event{Origin: b.origin, Message: m})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return b.client.Publish(ctx, b.channel, data).Err()
}

// Run subscribes to the channel and re-broadcasts remote messages into the
// local hub. Blocks until ctx is done; run it on its own goroutine.
func (b *Bridge) Run(ctx context.Context) {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	slog.Info("redis fan-out bridge running", slog.String("channel", b.channel))
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				slog.Warn("dropping malformed bridge event", slog.Any("err", err))
				continue
			}
			if ev.Origin == b.origin {
				continue
			}
			if err := b.hub.Broadcast(hub.EventMessage, ev.Message); err != nil {
				slog.Warn("bridge broadcast failed", slog.Any("err", err))
			}
		}
	}
}

// Close releases the Redis client.
func (b *Bridge) Close() error {
	return b.client.Close()
}
