package events

import (
	"context"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"bank-accounts/internal/models"
	"bank-accounts/internal/utils"
)

type KafkaEmitter struct {
	client *kgo.Client
}

func NewKafkaEmitter(brokers []string, clientID string) (*KafkaEmitter, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	utils.LogSuccess("KafkaEmitter", "Kafka producer ready (brokers: %v)", brokers)
	return &KafkaEmitter{client: client}, nil
}

// Publish keys records by source account number so that movements of one
// account stay ordered within a partition.
func (e *KafkaEmitter) Publish(ctx context.Context, topic string, movement models.Movement) error {
	payload, err := encode(movement)
	if err != nil {
		return err
	}

	record := &kgo.Record{
		Topic: topic,
		Key:   []byte(movement.SourceAccount),
		Value: payload,
	}

	if err := e.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("failed to produce movement %s: %w", movement.IDMovement, err)
	}
	return nil
}

func (e *KafkaEmitter) Close(ctx context.Context) {
	if err := e.client.Flush(ctx); err != nil {
		utils.LogWarning("KafkaEmitter", "Flush before close failed: %v", err)
	}
	e.client.Close()
}
