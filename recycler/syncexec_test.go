package recycler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSyncExecutorAllTasksComplete(t *testing.T) {
	exec := NewSyncExecutor[int](4, "test", nil)
	for i := 0; i < 5; i++ {
		i := i
		exec.Add(func() int { return i })
	}
	results, finished := exec.WhenAll(context.Background())
	assert.True(t, finished)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, results)
}

// A single-worker pool makes task execution strictly serial, so a task that
// triggers cancel is guaranteed to run before any task submitted after it.
func TestSyncExecutorCancelSkipsLaterTasks(t *testing.T) {
	exec := NewSyncExecutor[int](1, "test", func(v int) bool { return v == 1 })

	exec.Add(func() int { return 1 })
	exec.Add(func() int { return 2 })
	exec.Add(func() int { return 3 })

	results, finished := exec.WhenAll(context.Background())
	assert.False(t, finished)
	assert.Equal(t, []int{1}, results)
}

// Close must make every worker goroutine's range loop exit once the job
// channel drains, rather than leaking workers blocked forever on an
// unclosed channel.
func TestSyncExecutorCloseStopsWorkers(t *testing.T) {
	exec := NewSyncExecutor[int](2, "test", nil)
	exec.Add(func() int { return 1 })
	_, finished := exec.WhenAll(context.Background())
	assert.True(t, finished)

	exec.Close()

	select {
	case _, open := <-exec.jobs:
		assert.False(t, open, "jobs channel must be closed after Close")
	case <-time.After(time.Second):
		t.Fatal("jobs channel was not closed")
	}
}

func TestSyncExecutorResetAllowsReuse(t *testing.T) {
	exec := NewSyncExecutor[int](2, "test", nil)
	exec.Add(func() int { return 42 })
	exec.Reset(context.Background())

	exec.Add(func() int { return 7 })
	results, finished := exec.WhenAll(context.Background())
	assert.True(t, finished)
	assert.Equal(t, []int{7}, results)
}
