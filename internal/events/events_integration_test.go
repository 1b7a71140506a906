//go:build integration

package events_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"bank-accounts/internal/events"
	"bank-accounts/internal/models"
	"bank-accounts/internal/testutil/containers"
)

func movement(id string) models.Movement {
	return models.Movement{
		IDMovement:    id,
		Operation:     string(models.OperationTransferMoney),
		Amount:        decimal.NewFromInt(-30),
		SourceAccount: "00000000000010",
		TargetAccount: "00000000000001",
	}
}

func TestStreamEmitterAppendsToStream(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	rc := containers.NewRedisContainer(t)

	emitter := events.NewStreamEmitter(rc.Client, 100)
	require.NoError(t, emitter.Publish(ctx, "movements", movement("m1")))

	entries, err := rc.Client.XRange(ctx, "movements", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	var event events.Event
	require.NoError(t, json.Unmarshal([]byte(entries[0].Values["event"].(string)), &event))
	require.Equal(t, events.MovementAccepted, event.Type)
	require.Equal(t, "m1", event.Data.IDMovement)
	require.True(t, event.Data.Amount.Equal(decimal.NewFromInt(-30)))
}

func TestKafkaEmitterProducesKeyedRecords(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	kc := containers.NewKafkaContainer(t)
	require.NoError(t, kc.CreateTopic(ctx, "movements"))

	emitter, err := events.NewKafkaEmitter([]string{kc.Broker}, "bank-accounts-test")
	require.NoError(t, err)
	defer emitter.Close(ctx)

	require.NoError(t, emitter.Publish(ctx, "movements", movement("m1")))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(kc.Broker),
		kgo.ConsumeTopics("movements"),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.Empty(t, fetches.Errors())

	records := fetches.Records()
	require.Len(t, records, 1)
	require.Equal(t, "00000000000010", string(records[0].Key))

	var event events.Event
	require.NoError(t, json.Unmarshal(records[0].Value, &event))
	require.Equal(t, "m1", event.Data.IDMovement)
}
