package workqueue

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/anvilbuild/anvil/internal/ctxlog"
)

// ErrIdle is returned by GetResult when no tasks are queued, running, or
// awaiting retrieval. Callers are expected to gate retrieval on Finished.
var ErrIdle = errors.New("workqueue: no pending tasks")

// TaskError wraps a fault raised inside a task. The scheduler surfaces it as
// a failed result instead of crashing; the message carries the stack trace
// when the fault was a panic.
type TaskError struct {
	Message string
}

func (e *TaskError) Error() string {
	return e.Message
}

// TaskFunc is a unit of work. It receives the worker executing it so it can
// publish a progress status, and must not share mutable state with the
// caller; communication happens only through the returned value.
type TaskFunc func(w *Worker) (any, error)

// Result is one task completion. Err is non-nil if the task returned an
// error or panicked; Value is the task's return value otherwise.
type Result struct {
	Value any
	Err   error
}

// Worker executes tasks for a Queue. Its status string is a best-effort
// progress display; it is synchronized but carries no control-flow meaning.
type Worker struct {
	id int

	mu     sync.Mutex
	status string
}

const idleStatus = "IDLE"

// ID returns the worker's index within its pool.
func (w *Worker) ID() int {
	return w.id
}

// Status returns the worker's last published status.
func (w *Worker) Status() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// SetStatus publishes a progress status for display.
func (w *Worker) SetStatus(status string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
}

// Queue is a worker pool executing tasks in submission order as workers
// become available. The task backlog is unbounded so that the goroutine
// draining results can always submit follow-up work without deadlocking.
type Queue struct {
	workers []*Worker
	results chan Result

	mu      sync.Mutex
	cond    *sync.Cond
	backlog []TaskFunc
	closed  bool

	// pending counts tasks that have been submitted but whose results have
	// not yet been retrieved. Guarded by mu.
	pending int

	wg sync.WaitGroup
}

// New creates a Queue backed by numWorkers workers. Workers are started
// immediately and stay alive until Shutdown. A non-positive numWorkers
// defaults to the logical CPU count.
func New(numWorkers int) *Queue {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	q := &Queue{
		results: make(chan Result, numWorkers),
	}
	q.cond = sync.NewCond(&q.mu)
	for i := 0; i < numWorkers; i++ {
		w := &Worker{id: i, status: idleStatus}
		q.workers = append(q.workers, w)
		q.wg.Add(1)
		go q.work(w)
	}
	return q
}

// NumWorkers returns the size of the pool.
func (q *Queue) NumWorkers() int {
	return len(q.workers)
}

// Workers returns the pool's workers for status display.
func (q *Queue) Workers() []*Worker {
	return q.workers
}

// AddTask queues a task for execution.
func (q *Queue) AddTask(fn TaskFunc) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.pending++
	q.backlog = append(q.backlog, fn)
	q.cond.Signal()
}

// submit enqueues a task without counting it as newly pending. Used by the
// load-restricted path, which accounts for its tasks at submission time.
func (q *Queue) submit(fn TaskFunc) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.backlog = append(q.backlog, fn)
	q.cond.Signal()
}

// addPending records a task that will be submitted later (a restricted task
// waiting for its slot) so that Finished stays accurate in the meantime.
func (q *Queue) addPending() {
	q.mu.Lock()
	q.pending++
	q.mu.Unlock()
}

// next blocks until a task is available or the queue is shut down.
func (q *Queue) next() (TaskFunc, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.backlog) == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return nil, false
	}
	fn := q.backlog[0]
	q.backlog = q.backlog[1:]
	return fn, true
}

// work is the processing loop for a single worker.
func (q *Queue) work(w *Worker) {
	defer q.wg.Done()
	for {
		fn, ok := q.next()
		if !ok {
			return
		}
		q.results <- runTask(fn, w)
		w.SetStatus(idleStatus)
	}
}

// runTask executes one task, converting panics into failed results so a
// single task fault cannot take down the pool.
func runTask(fn TaskFunc, w *Worker) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Err: &TaskError{
				Message: fmt.Sprintf("task panicked: %v\n%s", r, debug.Stack()),
			}}
		}
	}()
	value, err := fn(w)
	return Result{Value: value, Err: err}
}

// GetResult blocks until one task completes and returns its outcome. It
// returns ErrIdle without blocking if the queue has no outstanding work.
func (q *Queue) GetResult() (Result, error) {
	q.mu.Lock()
	if q.pending == 0 {
		q.mu.Unlock()
		return Result{}, ErrIdle
	}
	q.mu.Unlock()

	res := <-q.results
	q.mu.Lock()
	q.pending--
	q.mu.Unlock()
	return res, nil
}

// GetResults blocks for at least one completion, then keeps draining until
// no further results are immediately available.
func (q *Queue) GetResults() ([]Result, error) {
	first, err := q.GetResult()
	if err != nil {
		return nil, err
	}
	results := []Result{first}
	for q.HasPendingResults() {
		res, err := q.GetResult()
		if err != nil {
			break
		}
		results = append(results, res)
	}
	return results, nil
}

// HasPendingResults reports whether a completion can be retrieved without
// blocking.
func (q *Queue) HasPendingResults() bool {
	return len(q.results) > 0
}

// Finished reports whether every submitted task has completed and had its
// result retrieved.
func (q *Queue) Finished() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending == 0
}

// Shutdown stops the workers and waits for them to exit. Tasks still in the
// backlog are discarded; tasks already running finish, and their results are
// dropped. Shutdown is safe to call from deferred error paths.
func (q *Queue) Shutdown(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	dropped := len(q.backlog)
	q.backlog = nil
	q.cond.Broadcast()
	q.mu.Unlock()

	if dropped > 0 {
		logger.Debug("Discarding queued tasks on shutdown.", "count", dropped)
	}

	// Unblock workers parked on the results channel.
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	for {
		select {
		case <-done:
			logger.Debug("All workers exited.")
			return
		case <-q.results:
			// Drain and drop.
		}
	}
}
