// Package pubsub fans room chat messages out to connected clients through
// Redis pub/sub, so every API instance sees messages published by any other.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/decode-labs/decode-api/internal/models"
)

// RoomBroker publishes and subscribes to per-room message channels.
type RoomBroker struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRoomBroker constructs a broker. A nil client degrades to a no-op
// publisher with no cross-instance fan-out.
func NewRoomBroker(client *redis.Client, logger *zap.Logger) *RoomBroker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoomBroker{client: client, logger: logger}
}

func channelFor(roomID string) string {
	return fmt.Sprintf("room:%s:messages", roomID)
}

// Publish broadcasts a persisted message to the room's channel. Delivery is
// at-least-once for subscribers connected at publish time; history is served
// from the database.
func (b *RoomBroker) Publish(ctx context.Context, msg *models.RoomMessage) error {
	if b.client == nil {
		return nil
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal room message: %w", err)
	}
	if err := b.client.Publish(ctx, channelFor(msg.RoomID), payload).Err(); err != nil {
		return fmt.Errorf("publish room message: %w", err)
	}
	return nil
}

// Subscribe returns a channel of messages for the given room. The channel is
// closed when ctx is cancelled or the subscription drops.
func (b *RoomBroker) Subscribe(ctx context.Context, roomID string) (<-chan *models.RoomMessage, error) {
	if b.client == nil {
		ch := make(chan *models.RoomMessage)
		close(ch)
		return ch, nil
	}

	sub := b.client.Subscribe(ctx, channelFor(roomID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe room %s: %w", roomID, err)
	}

	out := make(chan *models.RoomMessage, 16)
	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-sub.Channel():
				if !ok {
					return
				}
				var msg models.RoomMessage
				if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
					b.logger.Warn("drop malformed room message", zap.String("room_id", roomID), zap.Error(err))
					continue
				}
				select {
				case out <- &msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
