package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// SequencedTaskRunner guarantees strict FIFO execution of posted tasks.
// Tasks never run concurrently with each other, so resources owned by the
// sequence need no locks. Each scheduled run-loop slice is handed to the
// thread pool as a task of its own and executes exactly one user task before
// yielding back to the scheduler.
type SequencedTaskRunner struct {
	threadPool    ThreadPool
	queue         TaskQueue
	mu            sync.Mutex
	isRunning     bool
	activeRunners int32       // atomic guard for concurrency assertion
	closed        atomic.Bool // indicates if the runner is closed
}

func NewSequencedTaskRunner(threadPool ThreadPool) *SequencedTaskRunner {
	return &SequencedTaskRunner{
		threadPool: threadPool,
		queue:      NewFIFOTaskQueue(),
	}
}

// Close marks the runner as closed; subsequently posted tasks are dropped.
func (r *SequencedTaskRunner) Close() {
	r.closed.Store(true)
}

// IsClosed reports whether the runner has been closed.
func (r *SequencedTaskRunner) IsClosed() bool {
	return r.closed.Load()
}

func (r *SequencedTaskRunner) runLoop(ctx context.Context) {
	// Assertion: Ensure strictly one goroutine at a time
	if n := atomic.AddInt32(&r.activeRunners, 1); n > 1 {
		panic(fmt.Sprintf("SequencedTaskRunner: concurrent runLoop detected (count=%d)", n))
	}
	defer atomic.AddInt32(&r.activeRunners, -1)

	runCtx := context.WithValue(ctx, taskRunnerKey, r)

	// 1. Fetch SINGLE task
	item, ok := r.queue.Pop()

	if !ok {
		r.mu.Lock()
		if r.queue.IsEmpty() {
			r.isRunning = false
			r.mu.Unlock()
			return
		}
		r.mu.Unlock()

		nextTraits, _ := r.queue.PeekTraits() // Best effort peek
		r.rePostSelf(nextTraits)
		return
	}

	// 2. Execute ONE task
	func() {
		defer func() { recover() }()
		item.Task(runCtx)
	}()

	// 3. Always repost if there are more tasks (Yield)
	// This ensures we yield to the Scheduler between every task
	var more bool

	r.mu.Lock()
	if r.queue.IsEmpty() {
		r.isRunning = false
		more = false
	} else {
		more = true
	}
	r.mu.Unlock()

	if more {
		nextTraits, _ := r.queue.PeekTraits()
		r.rePostSelf(nextTraits)
	}
}

// scheduleRunLoop starts runLoop (if not already running), attributing the
// scheduled slice to the caller's post site.
func (r *SequencedTaskRunner) scheduleRunLoop(traits TaskTraits, spawnedAt SpawnLocation) {
	r.mu.Lock()
	if !r.isRunning {
		r.isRunning = true
		r.mu.Unlock()
		r.threadPool.PostInternalAt(r.runLoop, traits, spawnedAt)
	} else {
		r.mu.Unlock()
	}
}

// rePostSelf re-submits runLoop to the scheduler (for Yield)
func (r *SequencedTaskRunner) rePostSelf(traits TaskTraits) {
	r.threadPool.PostInternal(r.runLoop, traits)
}

// PostTask submits task (using default Traits)
func (r *SequencedTaskRunner) PostTask(task Task) {
	r.postTaskAt(task, DefaultTaskTraits(), CallerSpawnLocation(1))
}

// PostTaskWithTraits submits task with traits
func (r *SequencedTaskRunner) PostTaskWithTraits(task Task, traits TaskTraits) {
	r.postTaskAt(task, traits, CallerSpawnLocation(1))
}

func (r *SequencedTaskRunner) postTaskAt(task Task, traits TaskTraits, spawnedAt SpawnLocation) {
	if r.IsClosed() {
		return
	}
	r.queue.Push(TaskItem{Task: task, Traits: traits})
	r.scheduleRunLoop(traits, spawnedAt)
}

// PostDelayedTask submits a task to run after delay (using default Traits)
func (r *SequencedTaskRunner) PostDelayedTask(task Task, delay time.Duration) {
	r.PostDelayedTaskWithTraits(task, delay, DefaultTaskTraits())
}

// PostDelayedTaskWithTraits submits a delayed task with traits
func (r *SequencedTaskRunner) PostDelayedTaskWithTraits(task Task, delay time.Duration, traits TaskTraits) {
	if r.IsClosed() {
		return
	}
	r.threadPool.PostDelayedInternal(task, delay, traits, r)
}

// =============================================================================
// Repeating Task Implementation
// =============================================================================

// RepeatingTaskHandle controls the lifecycle of a repeating task.
type RepeatingTaskHandle interface {
	Stop()
	IsStopped() bool
}

// repeatingTaskHandle implements RepeatingTaskHandle
type repeatingTaskHandle struct {
	task     Task
	interval time.Duration
	traits   TaskTraits
	stopped  atomic.Bool
}

func (h *repeatingTaskHandle) Stop() {
	h.stopped.Store(true)
}

func (h *repeatingTaskHandle) IsStopped() bool {
	return h.stopped.Load()
}

// createRepeatingTask creates a self-scheduling repeating task
func (h *repeatingTaskHandle) createRepeatingTask() Task {
	return func(ctx context.Context) {
		runner := GetCurrentTaskRunner(ctx)

		// Check if runner is closed (automatic cleanup)
		if r, ok := runner.(*SequencedTaskRunner); ok && r.IsClosed() {
			return
		}
		if h.IsStopped() {
			return
		}

		h.task(ctx)

		// After execution, reschedule if not stopped and runner is still open
		if !h.IsStopped() && runner != nil {
			if r, ok := runner.(*SequencedTaskRunner); ok && r.IsClosed() {
				return
			}
			runner.PostDelayedTaskWithTraits(h.createRepeatingTask(), h.interval, h.traits)
		}
	}
}

// PostRepeatingTask submits a task that repeats at a fixed interval
func (r *SequencedTaskRunner) PostRepeatingTask(task Task, interval time.Duration) RepeatingTaskHandle {
	return r.PostRepeatingTaskWithTraits(task, interval, DefaultTaskTraits())
}

// PostRepeatingTaskWithTraits submits a repeating task with specific traits
func (r *SequencedTaskRunner) PostRepeatingTaskWithTraits(
	task Task,
	interval time.Duration,
	traits TaskTraits,
) RepeatingTaskHandle {
	return r.PostRepeatingTaskWithInitialDelay(task, 0, interval, traits)
}

// PostRepeatingTaskWithInitialDelay submits a repeating task with an initial
// delay. The task first executes after initialDelay, then repeats every
// interval.
func (r *SequencedTaskRunner) PostRepeatingTaskWithInitialDelay(
	task Task,
	initialDelay, interval time.Duration,
	traits TaskTraits,
) RepeatingTaskHandle {
	handle := &repeatingTaskHandle{
		task:     task,
		interval: interval,
		traits:   traits,
	}

	if initialDelay > 0 {
		r.PostDelayedTaskWithTraits(handle.createRepeatingTask(), initialDelay, traits)
	} else {
		r.PostTaskWithTraits(handle.createRepeatingTask(), traits)
	}

	return handle
}
