package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"bank-accounts/internal/models"
)

const (
	DefaultMovementsTopic = "movements"
	MovementAccepted      = "movement.accepted"
)

// Emitter publishes accepted movements for downstream consumers.
type Emitter interface {
	Publish(ctx context.Context, topic string, movement models.Movement) error
}

// Event is the envelope written to every backend.
type Event struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      models.Movement `json:"data"`
}

func encode(movement models.Movement) ([]byte, error) {
	payload, err := json.Marshal(Event{
		Type:      MovementAccepted,
		Timestamp: time.Now().UTC(),
		Data:      movement,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal movement %s: %w", movement.IDMovement, err)
	}
	return payload, nil
}
