package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"storefront-service/internal/util"

	"go.uber.org/zap"
)

var (
	ErrQueueFull   = errors.New("task queue is full")
	ErrQueueClosed = errors.New("task queue is closed")
)

// Task is a unit of background work. The context is owned by the queue, not by the submitter.
type Task func(ctx context.Context)

type queuedTask struct {
	name string
	run  Task
}

// TaskQueue runs submitted tasks on a fixed set of goroutines reading a bounded channel.
// Submit never blocks; Pending counts tasks queued or running.
type TaskQueue struct {
	name   string
	tasks  chan queuedTask
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger

	mu      sync.Mutex
	idle    *sync.Cond
	pending int
	closed  bool

	workers sync.WaitGroup
}

// NewTaskQueue creates a queue and starts its workers
func NewTaskQueue(name string, workers, size int) *TaskQueue {
	if workers < 1 {
		workers = 1
	}
	if size < 1 {
		size = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &TaskQueue{
		name:   name,
		tasks:  make(chan queuedTask, size),
		ctx:    ctx,
		cancel: cancel,
		logger: util.GetLogger().With(zap.String("queue", name)),
	}
	q.idle = sync.NewCond(&q.mu)

	for i := 0; i < workers; i++ {
		q.workers.Add(1)
		go q.loop()
	}
	return q
}

// Submit enqueues task without blocking
func (q *TaskQueue) Submit(name string, task Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		util.TaskQueueRejectedTotal.WithLabelValues(q.name).Inc()
		return ErrQueueClosed
	}

	select {
	case q.tasks <- queuedTask{name: name, run: task}:
		q.pending++
		util.TaskQueuePending.WithLabelValues(q.name).Set(float64(q.pending))
		return nil
	default:
		util.TaskQueueRejectedTotal.WithLabelValues(q.name).Inc()
		return ErrQueueFull
	}
}

// Pending returns the number of tasks queued or running
func (q *TaskQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}

// Wait blocks until no task is queued or running
func (q *TaskQueue) Wait() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.pending > 0 {
		q.idle.Wait()
	}
}

// Shutdown stops accepting tasks and drains the queue. When ctx expires first the
// context handed to running tasks is cancelled.
func (q *TaskQueue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.tasks)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		return fmt.Errorf("task queue %s shutdown: %w", q.name, ctx.Err())
	}
}

func (q *TaskQueue) loop() {
	defer q.workers.Done()
	for t := range q.tasks {
		q.run(t)
	}
}

func (q *TaskQueue) run(t queuedTask) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("Task panicked", zap.String("task", t.name), zap.Any("panic", r))
		}

		q.mu.Lock()
		q.pending--
		util.TaskQueuePending.WithLabelValues(q.name).Set(float64(q.pending))
		if q.pending == 0 {
			q.idle.Broadcast()
		}
		q.mu.Unlock()
	}()

	t.run(q.ctx)
}
