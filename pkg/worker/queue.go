package worker

import (
	"context"
	"sync"

	"github.com/Ruscigno/marketsum/pkg/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Job is one queued crawl.
type Job struct {
	ID    uuid.UUID
	Pages int
	Ctx   context.Context
}

// Runner executes a job. It is called from the worker goroutine only.
type Runner interface {
	Run(ctx context.Context, job *Job) error
}

// WorkQueue feeds jobs to a fixed set of workers. The API runs one worker so
// at most one crawl is ever in flight.
type WorkQueue struct {
	jobs    chan *Job
	workers []*Worker
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
}

func NewWorkQueue(numWorkers, capacity int, runner Runner, logger *zap.Logger) *WorkQueue {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	wq := &WorkQueue{
		jobs:    make(chan *Job, capacity),
		workers: make([]*Worker, numWorkers),
		logger:  logger,
	}
	for i := 0; i < numWorkers; i++ {
		wq.workers[i] = NewWorker(wq.jobs, runner, logger)
		wq.workers[i].Start()
	}
	return wq
}

// Enqueue adds a job without blocking. A full or stopped queue rejects it
// with a conflict error.
func (wq *WorkQueue) Enqueue(job *Job) error {
	wq.mu.RLock()
	defer wq.mu.RUnlock()
	if wq.closed {
		return errors.ErrUnavailable
	}
	select {
	case wq.jobs <- job:
		wq.logger.Debug("Job enqueued", zap.String("job_id", job.ID.String()), zap.Int("depth", len(wq.jobs)))
		return nil
	default:
		return errors.ErrCrawlBusy
	}
}

// Depth is the number of jobs waiting for a worker.
func (wq *WorkQueue) Depth() int {
	return len(wq.jobs)
}

// Stop closes the queue and waits for the workers to finish their current job.
func (wq *WorkQueue) Stop() {
	wq.mu.Lock()
	if wq.closed {
		wq.mu.Unlock()
		return
	}
	wq.closed = true
	close(wq.jobs)
	wq.mu.Unlock()

	for _, w := range wq.workers {
		w.Wait()
	}
}
