package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bank-accounts/internal/models"
	"bank-accounts/internal/worker"
)

type flakyEmitter struct {
	mu        sync.Mutex
	failures  int
	calls     int
	published []string
	done      chan struct{}
}

func (e *flakyEmitter) Publish(ctx context.Context, topic string, movement models.Movement) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.failures > 0 {
		e.failures--
		return errors.New("broker unavailable")
	}
	e.published = append(e.published, topic+"/"+movement.IDMovement)
	if e.done != nil {
		close(e.done)
		e.done = nil
	}
	return nil
}

func testMovement(id string) models.Movement {
	return models.Movement{
		IDMovement:    id,
		Operation:     string(models.OperationDeposit),
		Amount:        decimal.NewFromInt(10),
		SourceAccount: "00000000000001",
	}
}

func TestPooledEmitterPublishesThroughPool(t *testing.T) {
	pool := worker.NewWorkerPool(1, 4, 3)
	pool.Start()
	defer pool.Shutdown(time.Second)

	next := &flakyEmitter{failures: 1, done: make(chan struct{})}
	emitter := NewPooledEmitter(next, pool, time.Second, nil)

	require.NoError(t, emitter.Publish(context.Background(), "movements", testMovement("m1")))

	select {
	case <-next.done:
	case <-time.After(2 * time.Second):
		t.Fatal("movement was not published")
	}
	next.mu.Lock()
	defer next.mu.Unlock()
	assert.Equal(t, []string{"movements/m1"}, next.published)
	assert.Equal(t, 2, next.calls)
}

func TestPooledEmitterPublishesInlineWhenPoolIsClosed(t *testing.T) {
	pool := worker.NewWorkerPool(1, 1, 0)
	pool.Start()
	require.NoError(t, pool.Shutdown(time.Second))

	next := &flakyEmitter{}
	emitter := NewPooledEmitter(next, pool, time.Second, nil)

	require.NoError(t, emitter.Publish(context.Background(), "movements", testMovement("m1")))

	assert.Equal(t, []string{"movements/m1"}, next.published)
}

func TestPooledEmitterReportsFinalFailure(t *testing.T) {
	pool := worker.NewWorkerPool(1, 1, 0)
	pool.Start()
	require.NoError(t, pool.Shutdown(time.Second))

	var reported error
	next := &flakyEmitter{failures: 1}
	emitter := NewPooledEmitter(next, pool, time.Second, func(err error) { reported = err })

	err := emitter.Publish(context.Background(), "movements", testMovement("m1"))

	assert.NoError(t, err)
	assert.Error(t, reported)
}

func TestEncodeWrapsMovementInEnvelope(t *testing.T) {
	payload, err := encode(testMovement("m1"))
	require.NoError(t, err)

	assert.Contains(t, string(payload), `"type":"movement.accepted"`)
	assert.Contains(t, string(payload), `"idMovement":"m1"`)
}

func TestLogEmitterNeverFails(t *testing.T) {
	assert.NoError(t, LogEmitter{}.Publish(context.Background(), "movements", testMovement("m1")))
}
