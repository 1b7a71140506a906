package events

import (
	"context"
	"time"

	"bank-accounts/internal/models"
	"bank-accounts/internal/utils"
	"bank-accounts/internal/worker"
)

// PooledEmitter hands publication to the worker pool so that a slow broker
// never holds up the request that produced the movement. Failures are
// retried by the pool and then logged; they are never returned to callers.
type PooledEmitter struct {
	next      Emitter
	pool      *worker.WorkerPool
	timeout   time.Duration
	onFailure func(error)
}

func NewPooledEmitter(next Emitter, pool *worker.WorkerPool, timeout time.Duration, onFailure func(error)) *PooledEmitter {
	return &PooledEmitter{
		next:      next,
		pool:      pool,
		timeout:   timeout,
		onFailure: onFailure,
	}
}

func (e *PooledEmitter) Publish(ctx context.Context, topic string, movement models.Movement) error {
	job := worker.Job{
		ID: "publish-" + movement.IDMovement,
		Task: func() error {
			// The request context may already be gone when the job runs.
			publishCtx, cancel := context.WithTimeout(context.Background(), e.timeout)
			defer cancel()
			return e.next.Publish(publishCtx, topic, movement)
		},
		OnDone: e.done,
	}

	if err := e.pool.Submit(job); err != nil {
		utils.LogWarning("PooledEmitter", "Pool unavailable (%v), publishing movement %s inline", err, movement.IDMovement)
		publishCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()
		e.done(e.next.Publish(publishCtx, topic, movement))
	}
	return nil
}

func (e *PooledEmitter) done(err error) {
	if err == nil {
		return
	}
	utils.LogError("PooledEmitter", "Movement event was not published", err)
	if e.onFailure != nil {
		e.onFailure(err)
	}
}

// LogEmitter only logs movements; used when no broker is configured.
type LogEmitter struct{}

func (LogEmitter) Publish(ctx context.Context, topic string, movement models.Movement) error {
	utils.LogInfo("LogEmitter", "[%s] movement %s %s %s on %s",
		topic, movement.IDMovement, movement.Operation, movement.Amount, movement.SourceAccount)
	return nil
}
