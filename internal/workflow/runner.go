package workflow

import (
	"context"
	"sync"

	"compliance-hub/backend/internal/logging"
)

// Runner executes workflows in the background on a fixed worker pool fed by
// a buffered queue. API handlers enqueue a workflow ID right after
// Initialize and return immediately; a worker picks it up and drives it to a
// terminal state with its own context, detached from the request.
type Runner struct {
	service *Service
	queue   chan string
	logger  *logging.Logger

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewRunner starts workers goroutines draining the queue. queueSize bounds
// how many runs may wait; Enqueue reports backpressure instead of blocking.
func NewRunner(service *Service, workers, queueSize int, logger *logging.Logger) *Runner {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 64
	}
	r := &Runner{
		service: service,
		queue:   make(chan string, queueSize),
		logger:  logger,
	}
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.work()
	}
	return r
}

// Enqueue submits a workflow for background execution. It returns false when
// the queue is full or the runner has shut down; the workflow stays pending
// and can be resubmitted.
func (r *Runner) Enqueue(workflowID string) (queued bool) {
	defer func() {
		if recover() != nil {
			queued = false
		}
	}()
	select {
	case r.queue <- workflowID:
		return true
	default:
		r.logger.Warn("validation queue full, rejecting workflow %s", workflowID)
		return false
	}
}

// Shutdown stops accepting work and waits for in-flight workflows to finish
// or ctx to expire.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.closeOnce.Do(func() { close(r.queue) })
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) work() {
	defer r.wg.Done()
	for workflowID := range r.queue {
		if err := r.service.Run(context.Background(), workflowID); err != nil {
			r.logger.Error("background run of workflow %s failed: %v", workflowID, err)
		}
	}
}
