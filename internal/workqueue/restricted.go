package workqueue

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// DefaultRestrictedCapacity is the number of load-restricted tasks allowed to
// run concurrently. Building the runtime's own test suite is demanding
// enough that co-scheduling more than one such build risks exhausting memory.
const DefaultRestrictedCapacity = 1

// LoadRestrictingQueue is a Queue with a second submission path for tasks
// that must not be co-scheduled freely. Restricted tasks acquire a slot from
// a small semaphore before they become runnable; unrestricted tasks are never
// blocked by the semaphore.
type LoadRestrictingQueue struct {
	*Queue

	sem    *semaphore.Weighted
	semCtx context.Context
	cancel context.CancelFunc
}

// NewLoadRestricting creates a LoadRestrictingQueue with numWorkers workers
// and the given capacity for the restricted task class. A non-positive
// capacity defaults to DefaultRestrictedCapacity. The capacity is expected to
// be smaller than the worker count; it is clamped to it otherwise.
func NewLoadRestricting(numWorkers, restrictedCapacity int) *LoadRestrictingQueue {
	q := New(numWorkers)
	if restrictedCapacity <= 0 {
		restrictedCapacity = DefaultRestrictedCapacity
	}
	if restrictedCapacity > q.NumWorkers() {
		restrictedCapacity = q.NumWorkers()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &LoadRestrictingQueue{
		Queue:  q,
		sem:    semaphore.NewWeighted(int64(restrictedCapacity)),
		semCtx: ctx,
		cancel: cancel,
	}
}

// AddLoadRestrictedTask queues a task subject to the restricted concurrency
// cap. The task counts as pending immediately, but is handed to the worker
// pool only once a restricted slot is free; the slot is returned when the
// task completes.
func (q *LoadRestrictingQueue) AddLoadRestrictedTask(fn TaskFunc) {
	q.addPending()
	go func() {
		if err := q.sem.Acquire(q.semCtx, 1); err != nil {
			// Shutdown raced the acquire; the task is dropped with the rest
			// of the backlog.
			return
		}
		q.submit(func(w *Worker) (any, error) {
			defer q.sem.Release(1)
			return fn(w)
		})
	}()
}

// Shutdown releases tasks waiting for restricted slots and stops the pool.
func (q *LoadRestrictingQueue) Shutdown(ctx context.Context) {
	q.cancel()
	q.Queue.Shutdown(ctx)
}
