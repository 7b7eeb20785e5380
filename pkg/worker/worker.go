package worker

import (
	"context"

	"go.uber.org/zap"
)

type Worker struct {
	jobs   <-chan *Job
	runner Runner
	logger *zap.Logger
	done   chan struct{}
}

func NewWorker(jobs <-chan *Job, runner Runner, logger *zap.Logger) *Worker {
	return &Worker{
		jobs:   jobs,
		runner: runner,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Start processes jobs until the queue is closed.
func (w *Worker) Start() {
	go func() {
		defer close(w.done)
		for job := range w.jobs {
			ctx := job.Ctx
			if ctx == nil {
				ctx = context.Background()
			}
			if err := w.runner.Run(ctx, job); err != nil {
				w.logger.Error("Worker failed to process job", zap.String("job_id", job.ID.String()), zap.Error(err))
				continue
			}
			w.logger.Info("Worker processed job", zap.String("job_id", job.ID.String()))
		}
	}()
}

// Wait blocks until the worker has exited.
func (w *Worker) Wait() {
	<-w.done
}
