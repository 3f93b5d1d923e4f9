package workqueue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// drain retrieves every outstanding result from the queue.
func drain(t *testing.T, q *Queue) []Result {
	t.Helper()
	var results []Result
	for !q.Finished() {
		res, err := q.GetResult()
		require.NoError(t, err)
		results = append(results, res)
	}
	return results
}

func TestQueueRunsTasks(t *testing.T) {
	t.Parallel()

	q := New(4)
	defer q.Shutdown(context.Background())

	var counter atomic.Int64
	for i := 0; i < 20; i++ {
		q.AddTask(func(w *Worker) (any, error) {
			return counter.Add(1), nil
		})
	}

	results := drain(t, q)
	require.Len(t, results, 20)
	for _, res := range results {
		assert.NoError(t, res.Err)
	}
	assert.Equal(t, int64(20), counter.Load())
	assert.True(t, q.Finished())
}

func TestQueueTaskErrorIsolation(t *testing.T) {
	t.Parallel()

	q := New(2)
	defer q.Shutdown(context.Background())

	taskErr := errors.New("boom")
	q.AddTask(func(w *Worker) (any, error) { return nil, taskErr })
	q.AddTask(func(w *Worker) (any, error) { return "ok", nil })

	results := drain(t, q)
	require.Len(t, results, 2)

	var failed, succeeded int
	for _, res := range results {
		if res.Err != nil {
			assert.ErrorIs(t, res.Err, taskErr)
			failed++
		} else {
			assert.Equal(t, "ok", res.Value)
			succeeded++
		}
	}
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, succeeded)
}

func TestQueuePanicBecomesTaskError(t *testing.T) {
	t.Parallel()

	q := New(1)
	defer q.Shutdown(context.Background())

	q.AddTask(func(w *Worker) (any, error) { panic("kaboom") })
	q.AddTask(func(w *Worker) (any, error) { return "survived", nil })

	results := drain(t, q)
	require.Len(t, results, 2)

	var taskErr *TaskError
	require.ErrorAs(t, results[0].Err, &taskErr)
	assert.Contains(t, taskErr.Message, "kaboom")
	// The worker that recovered keeps processing.
	assert.NoError(t, results[1].Err)
	assert.Equal(t, "survived", results[1].Value)
}

func TestQueueGetResultIdle(t *testing.T) {
	t.Parallel()

	q := New(1)
	defer q.Shutdown(context.Background())

	_, err := q.GetResult()
	assert.ErrorIs(t, err, ErrIdle)
	assert.True(t, q.Finished())
}

func TestQueueGetResults(t *testing.T) {
	t.Parallel()

	q := New(4)
	defer q.Shutdown(context.Background())

	for i := 0; i < 5; i++ {
		q.AddTask(func(w *Worker) (any, error) { return nil, nil })
	}

	total := 0
	for !q.Finished() {
		results, err := q.GetResults()
		require.NoError(t, err)
		require.NotEmpty(t, results)
		total += len(results)
	}
	assert.Equal(t, 5, total)
}

func TestQueueDefaultsWorkerCount(t *testing.T) {
	t.Parallel()

	q := New(0)
	defer q.Shutdown(context.Background())
	assert.Greater(t, q.NumWorkers(), 0)
}

func TestWorkerStatus(t *testing.T) {
	t.Parallel()

	q := New(1)
	defer q.Shutdown(context.Background())

	w := q.Workers()[0]
	assert.Equal(t, 0, w.ID())
	assert.Equal(t, "IDLE", w.Status())

	seen := make(chan string, 1)
	q.AddTask(func(w *Worker) (any, error) {
		w.SetStatus("working hard")
		seen <- w.Status()
		return nil, nil
	})
	drain(t, q)
	assert.Equal(t, "working hard", <-seen)
	assert.Equal(t, "IDLE", w.Status())
}

func TestQueueShutdownDiscardsBacklog(t *testing.T) {
	t.Parallel()

	q := New(1)
	release := make(chan struct{})
	q.AddTask(func(w *Worker) (any, error) {
		<-release
		return nil, nil
	})
	// These sit in the backlog behind the blocked task.
	for i := 0; i < 10; i++ {
		q.AddTask(func(w *Worker) (any, error) { return nil, nil })
	}
	close(release)
	q.Shutdown(context.Background())

	// AddTask after shutdown is a no-op, not a panic.
	q.AddTask(func(w *Worker) (any, error) { return nil, nil })
}
