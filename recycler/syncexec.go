package recycler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/objvault/vaultcheck/glog"
)

const syncExecutorWarnInterval = 300 * time.Second

// syncTask holds one submitted callback's eventual result. ran is false if
// the stop token was already set when a worker picked this task up, so it
// never produced a result.
type syncTask[T any] struct {
	fn     func() T
	result T
	ran    bool
}

// SyncExecutor fans a set of callbacks out to a fixed-size worker pool and
// fans their results back in, in submission order, propagating early
// cancellation through a shared stop token once any result satisfies
// cancel. Grounded on the C++ SyncExecutor<T> template (bthread countdown
// event + injected thread pool + periodic 5-minute wait warning), adapted
// to goroutines, channels, and a sync.WaitGroup.
type SyncExecutor[T any] struct {
	nameTag string
	cancel  func(T) bool

	mu      sync.Mutex
	tasks   []*syncTask[T]
	jobs    chan *syncTask[T]
	wg      sync.WaitGroup
	workers sync.Once

	stopToken atomic.Bool
}

// NewSyncExecutor creates an executor backed by poolSize worker goroutines.
// cancel decides, from a finished task's result, whether remaining
// unstarted tasks should be skipped; nil means no task ever cancels.
func NewSyncExecutor[T any](poolSize int, nameTag string, cancel func(T) bool) *SyncExecutor[T] {
	if poolSize < 1 {
		poolSize = 1
	}
	if cancel == nil {
		cancel = func(T) bool { return false }
	}
	e := &SyncExecutor[T]{
		nameTag: nameTag,
		cancel:  cancel,
		jobs:    make(chan *syncTask[T], 4096),
	}
	e.startWorkers(poolSize)
	return e
}

func (e *SyncExecutor[T]) startWorkers(poolSize int) {
	e.workers.Do(func() {
		for i := 0; i < poolSize; i++ {
			go e.runWorker()
		}
	})
}

func (e *SyncExecutor[T]) runWorker() {
	for t := range e.jobs {
		e.runTask(t)
	}
}

func (e *SyncExecutor[T]) runTask(t *syncTask[T]) {
	defer e.wg.Done()
	if e.stopToken.Load() {
		return
	}
	res := t.fn()
	if e.cancel(res) {
		e.stopToken.Store(true)
	}
	t.result = res
	t.ran = true
}

// Add enqueues callback onto the worker pool; submission always succeeds.
func (e *SyncExecutor[T]) Add(callback func() T) {
	t := &syncTask[T]{fn: callback}
	e.mu.Lock()
	e.tasks = append(e.tasks, t)
	e.mu.Unlock()

	e.wg.Add(1)
	e.jobs <- t
}

// WhenAll blocks until every added task has signalled completion, logging a
// warning every 5 minutes of cumulative waiting, then returns results in
// submission order. finished is true iff every task actually ran (none were
// skipped by a prior task's cancellation).
func (e *SyncExecutor[T]) WhenAll(ctx context.Context) (results []T, finished bool) {
	allDone := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(allDone)
	}()

	timer := time.NewTimer(syncExecutorWarnInterval)
	defer timer.Stop()
wait:
	for {
		select {
		case <-allDone:
			break wait
		case <-ctx.Done():
			break wait
		case <-timer.C:
			glog.Warningf("%s has already taken 5 min", e.nameTag)
			timer.Reset(syncExecutorWarnInterval)
		}
	}

	e.mu.Lock()
	tasks := e.tasks
	e.tasks = nil
	e.mu.Unlock()

	results = make([]T, 0, len(tasks))
	for _, t := range tasks {
		if !t.ran {
			break
		}
		results = append(results, t.result)
	}
	finished = len(results) == len(tasks)
	return results, finished
}

// Reset drains any outstanding tasks and clears the stop token so the
// executor can be reused.
func (e *SyncExecutor[T]) Reset(ctx context.Context) {
	e.mu.Lock()
	pending := len(e.tasks) > 0
	e.mu.Unlock()
	if pending {
		e.WhenAll(ctx)
	}
	e.stopToken.Store(false)
}

// Close shuts the worker pool down, mirroring SyncExecutor<T>'s destructor,
// which drains outstanding tasks via when_all() before releasing the
// executor. Callers must have already observed WhenAll return (or never
// called Add) before calling Close; it is not safe to Add after Close.
func (e *SyncExecutor[T]) Close() {
	close(e.jobs)
}
