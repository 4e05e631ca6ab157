package jobs

import (
	"context"
	"sync"

	pkgerrors "github.com/careerlens/careerlens-backend/internal/pkg/errors"
	"github.com/careerlens/careerlens-backend/internal/pkg/logger"
)

// Task is one unit of background work. The context comes from the worker, not
// the submitting request: ingestion outlives the HTTP call that triggered it.
type Task func(ctx context.Context)

// Worker is a bounded pool: a buffered task queue drained by a fixed number
// of goroutines. Submit never blocks the caller; a full queue is an error the
// caller handles.
type Worker struct {
	log         *logger.Logger
	tasks       chan Task
	concurrency int

	mu      sync.Mutex
	started bool
	wg      sync.WaitGroup
}

func NewWorker(log *logger.Logger, queueSize, concurrency int) *Worker {
	if queueSize <= 0 {
		queueSize = 64
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Worker{
		log:         log.With("component", "IngestWorker"),
		tasks:       make(chan Task, queueSize),
		concurrency: concurrency,
	}
}

func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true

	w.log.Info("Starting ingest worker pool", "concurrency", w.concurrency, "queue_size", cap(w.tasks))
	for i := 0; i < w.concurrency; i++ {
		workerID := i + 1
		w.wg.Add(1)
		go w.runLoop(ctx, workerID)
	}
}

// Submit enqueues the task, or returns ErrQueueFull without blocking.
func (w *Worker) Submit(task Task) error {
	if task == nil {
		return pkgerrors.ErrInvalidArgument
	}
	select {
	case w.tasks <- task:
		return nil
	default:
		return pkgerrors.ErrQueueFull
	}
}

// Wait blocks until the worker goroutines exit (after their context is
// cancelled). Used by shutdown paths and tests.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case task := <-w.tasks:
			w.runOne(ctx, workerID, task)
		}
	}
}

func (w *Worker) runOne(ctx context.Context, workerID int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("Task panic", "worker_id", workerID, "panic", r)
		}
	}()
	task(ctx)
}
