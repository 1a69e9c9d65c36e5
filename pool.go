package taskrun

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/taskrunlab/taskrun/core"
)

// GoroutineThreadPool manages a set of worker goroutines.
// Responsible for pulling tasks from the scheduler and executing them.
// Workers report their lifecycle transitions (start, stop, park, unpark) and
// bracket every task execution slice through the scheduler, which fires the
// configured lifecycle hooks synchronously on the worker goroutine.
type GoroutineThreadPool struct {
	id        string
	workers   int
	scheduler *core.TaskScheduler
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	running   bool
	runningMu sync.RWMutex
}

// NewGoroutineThreadPool creates a pool with a FIFO scheduler and default
// plugin configuration. Use Builder for hooks or a priority scheduler.
func NewGoroutineThreadPool(id string, workers int) *GoroutineThreadPool {
	return newGoroutineThreadPool(id, workers, core.NewFIFOTaskScheduler(workers))
}

// NewPriorityGoroutineThreadPool creates a pool with a priority scheduler.
func NewPriorityGoroutineThreadPool(id string, workers int) *GoroutineThreadPool {
	return newGoroutineThreadPool(id, workers, core.NewPriorityTaskScheduler(workers))
}

func newGoroutineThreadPool(id string, workers int, scheduler *core.TaskScheduler) *GoroutineThreadPool {
	return &GoroutineThreadPool{
		id:        id,
		workers:   workers,
		scheduler: scheduler,
	}
}

// Start starts all worker goroutines
func (tg *GoroutineThreadPool) Start(ctx context.Context) {
	tg.runningMu.Lock()
	defer tg.runningMu.Unlock()

	if tg.running {
		return // Already running
	}

	tg.ctx, tg.cancel = context.WithCancel(ctx)
	tg.running = true

	for i := 0; i < tg.workers; i++ {
		tg.wg.Add(1)
		go tg.workerLoop(i, tg.ctx)
	}
}

// Stop stops the thread pool
func (tg *GoroutineThreadPool) Stop() {
	// Always shutdown scheduler to clean up resources (queue, delayed tasks)
	// even if pool was never started
	tg.scheduler.Shutdown()

	tg.runningMu.Lock()
	if !tg.running {
		tg.runningMu.Unlock()
		return
	}
	tg.runningMu.Unlock()

	if tg.cancel != nil {
		tg.cancel()
	}
	tg.Join()

	tg.runningMu.Lock()
	tg.running = false
	tg.runningMu.Unlock()
}

// StopGraceful stops the thread pool gracefully, waiting for queued tasks to
// complete. Returns error if timeout is exceeded before tasks complete.
func (tg *GoroutineThreadPool) StopGraceful(timeout time.Duration) error {
	tg.runningMu.Lock()
	if !tg.running {
		tg.runningMu.Unlock()
		return nil
	}
	tg.runningMu.Unlock()

	// First, gracefully shutdown the scheduler (waits for queues to drain)
	err := tg.scheduler.ShutdownGraceful(timeout)

	if tg.cancel != nil {
		tg.cancel()
	}
	tg.Join()

	tg.runningMu.Lock()
	tg.running = false
	tg.runningMu.Unlock()

	return err
}

// ID returns the ID of the thread pool
func (tg *GoroutineThreadPool) ID() string {
	return tg.id
}

// IsRunning returns whether the thread pool is running
func (tg *GoroutineThreadPool) IsRunning() bool {
	tg.runningMu.RLock()
	defer tg.runningMu.RUnlock()
	return tg.running
}

// workerLoop is the main loop for each worker
func (tg *GoroutineThreadPool) workerLoop(id int, ctx context.Context) {
	defer tg.wg.Done()

	tg.scheduler.OnWorkerStart()
	defer tg.scheduler.OnWorkerStop()

	stopCh := ctx.Done()

	for {
		// Pull tasks from the scheduler; parks while the queue is empty
		item, ok := tg.scheduler.GetWork(stopCh)
		if !ok {
			// Queue closed or context canceled
			return
		}

		tg.runTask(ctx, id, item)
	}
}

// runTask executes one task, bracketing it with the poll hooks. The end and
// terminate notifications fire even when the task panics; the panic itself is
// recovered and routed to the PanicHandler so a misbehaving task cannot take
// down the worker.
func (tg *GoroutineThreadPool) runTask(ctx context.Context, workerID int, item core.TaskItem) {
	tg.scheduler.OnTaskStart(item.Meta)

	defer func() {
		r := recover()
		tg.scheduler.OnTaskEnd(item.Meta)
		tg.scheduler.OnTaskTerminate(item.Meta)
		if r != nil {
			tg.scheduler.GetMetrics().RecordTaskPanic(tg.id, r)
			tg.scheduler.GetPanicHandler().HandlePanic(ctx, tg.id, workerID, r, debug.Stack())
		}
	}()

	item.Task(ctx)
}

// Join waits for all worker goroutines to finish
func (tg *GoroutineThreadPool) Join() {
	tg.wg.Wait()
}

// WorkerCount returns the number of workers
func (tg *GoroutineThreadPool) WorkerCount() int {
	return tg.workers
}

func (tg *GoroutineThreadPool) QueuedTaskCount() int {
	return tg.scheduler.QueuedTaskCount()
}

func (tg *GoroutineThreadPool) ActiveTaskCount() int {
	return tg.scheduler.ActiveTaskCount()
}

func (tg *GoroutineThreadPool) DelayedTaskCount() int {
	return tg.scheduler.DelayedTaskCount()
}

// PostInternal enqueues a task attributed to the caller of this method.
func (tg *GoroutineThreadPool) PostInternal(task core.Task, traits core.TaskTraits) {
	tg.scheduler.PostInternalAt(task, traits, core.CallerSpawnLocation(1))
}

// PostInternalAt enqueues a task attributed to an explicit spawn location.
func (tg *GoroutineThreadPool) PostInternalAt(task core.Task, traits core.TaskTraits, spawnedAt core.SpawnLocation) {
	tg.scheduler.PostInternalAt(task, traits, spawnedAt)
}

func (tg *GoroutineThreadPool) PostDelayedInternal(task core.Task, delay time.Duration, traits core.TaskTraits, target core.TaskRunner) {
	tg.scheduler.PostDelayedInternal(task, delay, traits, target)
}

// =============================================================================
// Global Thread Pool Helper (Singleton)
// =============================================================================

var (
	globalThreadPool *GoroutineThreadPool
	globalMu         sync.Mutex
)

// InitGlobalThreadPool initializes the global thread pool with specified
// number of workers and starts it immediately.
func InitGlobalThreadPool(workers int) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalThreadPool != nil {
		return // Already initialized
	}

	globalThreadPool = NewGoroutineThreadPool("global-pool", workers)
	globalThreadPool.Start(context.Background())
}

// InitGlobalThreadPoolFrom initializes and starts the global thread pool from
// a configured builder. It does nothing if the global pool already exists.
func InitGlobalThreadPoolFrom(builder *Builder) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalThreadPool != nil {
		return
	}

	globalThreadPool = builder.Build()
	globalThreadPool.Start(context.Background())
}

// GetGlobalThreadPool returns the global thread pool instance.
// It panics if InitGlobalThreadPool has not been called.
func GetGlobalThreadPool() *GoroutineThreadPool {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalThreadPool == nil {
		panic("GlobalThreadPool not initialized. Call InitGlobalThreadPool() first.")
	}
	return globalThreadPool
}

// ShutdownGlobalThreadPool stops the global thread pool.
func ShutdownGlobalThreadPool() {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalThreadPool != nil {
		globalThreadPool.Stop()
		globalThreadPool = nil
	}
}

// CreateTaskRunner creates a new SequencedTaskRunner using the global thread
// pool. This is the recommended way to get a new TaskRunner.
func CreateTaskRunner(traits TaskTraits) *SequencedTaskRunner {
	pool := GetGlobalThreadPool()
	// SequencedTaskRunner attaches traits per task; the runner itself carries
	// no default traits yet.
	_ = traits
	return core.NewSequencedTaskRunner(pool)
}
