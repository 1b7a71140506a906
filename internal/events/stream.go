package events

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"bank-accounts/internal/models"
)

// StreamEmitter appends movements to a Redis stream named after the topic.
type StreamEmitter struct {
	client *redis.Client
	maxLen int64
}

func NewStreamEmitter(client *redis.Client, maxLen int64) *StreamEmitter {
	return &StreamEmitter{client: client, maxLen: maxLen}
}

func (e *StreamEmitter) Publish(ctx context.Context, topic string, movement models.Movement) error {
	payload, err := encode(movement)
	if err != nil {
		return err
	}

	args := &redis.XAddArgs{
		Stream: topic,
		Values: map[string]any{
			"event": payload,
		},
	}
	if e.maxLen > 0 {
		args.MaxLen = e.maxLen
		args.Approx = true
	}

	if _, err := e.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to publish movement %s: %w", movement.IDMovement, err)
	}
	return nil
}
