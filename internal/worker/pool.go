package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"bank-accounts/internal/utils"
)

var (
	ErrQueueFull       = errors.New("worker queue is full")
	ErrPoolClosed      = errors.New("worker pool is closed")
	ErrShutdownTimeout = errors.New("worker pool shutdown timed out")
)

// Job is a unit of background work. RetryOn decides whether a failed
// attempt is worth repeating; OnDone receives the final outcome.
type Job struct {
	ID      string
	Task    func() error
	RetryOn func(error) bool
	OnDone  func(error)
}

type WorkerPool struct {
	workers    int
	maxRetries int
	backoff    time.Duration
	jobQueue   chan Job
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	mu         sync.Mutex
	closed     bool
	stats      PoolStats
}

type PoolStats struct {
	TotalJobs     int64
	CompletedJobs int64
	FailedJobs    int64
	ActiveWorkers int
	QueuedJobs    int
}

func NewWorkerPool(workers int, queueSize int, maxRetries int) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())

	pool := &WorkerPool{
		workers:    workers,
		maxRetries: maxRetries,
		backoff:    100 * time.Millisecond,
		jobQueue:   make(chan Job, queueSize),
		ctx:        ctx,
		cancel:     cancel,
		stats: PoolStats{
			ActiveWorkers: workers,
		},
	}

	utils.LogSuccess("WorkerPool", "Pool created: workers=%d queue=%d retries=%d", workers, queueSize, maxRetries)
	return pool
}

func (p *WorkerPool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	utils.LogSuccess("WorkerPool", "All %d workers started", p.workers)
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			utils.LogDebug("WorkerPool", "Worker #%d stopping", id)
			return

		case job, ok := <-p.jobQueue:
			if !ok {
				utils.LogDebug("WorkerPool", "Worker #%d: queue closed", id)
				return
			}
			p.executeJob(id, job)
		}
	}
}

func (p *WorkerPool) executeJob(workerID int, job Job) {
	startTime := time.Now()
	var err error

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			utils.LogWarning("WorkerPool", "Worker #%d: retry #%d for job %s", workerID, attempt, job.ID)
			select {
			case <-time.After(p.backoff * time.Duration(attempt)):
			case <-p.ctx.Done():
				attempt = p.maxRetries + 1
				continue
			}
		}

		err = job.Task()
		if err == nil {
			break
		}
		if job.RetryOn != nil && !job.RetryOn(err) {
			break
		}
	}

	p.mu.Lock()
	if err == nil {
		p.stats.CompletedJobs++
	} else {
		p.stats.FailedJobs++
	}
	p.mu.Unlock()

	// A job with OnDone owns its failure and reports it there.
	switch {
	case err == nil:
		utils.LogDebug("WorkerPool", "Worker #%d: job %s done in %v", workerID, job.ID, time.Since(startTime))
	case job.OnDone != nil:
		utils.LogWarning("WorkerPool", "Worker #%d: job %s failed after %v: %v", workerID, job.ID, time.Since(startTime), err)
	default:
		utils.LogError("WorkerPool", "job "+job.ID+" failed after "+time.Since(startTime).String(), err)
	}

	if job.OnDone != nil {
		job.OnDone(err)
	}
}

// Submit enqueues job without blocking; ErrQueueFull tells the caller to
// run the work itself.
func (p *WorkerPool) Submit(job Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.jobQueue <- job:
		p.stats.TotalJobs++
		return nil
	default:
		utils.LogWarning("WorkerPool", "Queue full, job %s rejected", job.ID)
		return ErrQueueFull
	}
}

// Shutdown stops accepting jobs and waits for queued ones to drain. Workers
// still running after timeout are cancelled.
func (p *WorkerPool) Shutdown(timeout time.Duration) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.jobQueue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		utils.LogSuccess("WorkerPool", "All workers finished")
		return nil

	case <-time.After(timeout):
		p.cancel()
		utils.LogWarning("WorkerPool", "Shutdown timeout exceeded, cancelling workers")
		return ErrShutdownTimeout
	}
}

func (p *WorkerPool) GetStats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := p.stats
	stats.QueuedJobs = len(p.jobQueue)
	return stats
}
