package core

import (
	"fmt"
	"sync/atomic"
	"time"
)

// TaskScheduler owns the ready queue and the delay manager, and is the single
// place where task metadata is minted. Workers pull TaskItems via GetWork;
// lifecycle hooks fire synchronously at the documented transition points:
// task-spawn on the posting goroutine, park/unpark on the worker goroutine
// around the blocking wait, and the poll/terminate pair via the pool's
// execution bracket.
type TaskScheduler struct {
	queue       TaskQueue
	signal      chan struct{}
	workerCount int

	delayManager *DelayManager

	metricQueued int32 // Waiting in ReadyQueue
	metricActive int32 // Executing in Worker

	// Handlers and Metrics
	panicHandler        PanicHandler
	metrics             Metrics
	rejectedTaskHandler RejectedTaskHandler
	logger              Logger
	hooks               *LifecycleHooks

	// Lifecycle
	shuttingDown int32 // atomic flag
}

func NewPriorityTaskScheduler(workerCount int) *TaskScheduler {
	return NewPriorityTaskSchedulerWithConfig(workerCount, DefaultTaskSchedulerConfig())
}

func NewPriorityTaskSchedulerWithConfig(workerCount int, config *TaskSchedulerConfig) *TaskScheduler {
	return newTaskScheduler(NewPriorityTaskQueue(), workerCount, config)
}

func NewFIFOTaskScheduler(workerCount int) *TaskScheduler {
	return NewFIFOTaskSchedulerWithConfig(workerCount, DefaultTaskSchedulerConfig())
}

func NewFIFOTaskSchedulerWithConfig(workerCount int, config *TaskSchedulerConfig) *TaskScheduler {
	return newTaskScheduler(NewFIFOTaskQueue(), workerCount, config)
}

func newTaskScheduler(queue TaskQueue, workerCount int, config *TaskSchedulerConfig) *TaskScheduler {
	s := &TaskScheduler{
		queue:       queue,
		signal:      make(chan struct{}, workerCount*2),
		workerCount: workerCount,
	}
	s.delayManager = NewDelayManager()

	if config != nil {
		s.panicHandler = config.PanicHandler
		s.metrics = config.Metrics
		s.rejectedTaskHandler = config.RejectedTaskHandler
		s.logger = config.Logger
		s.hooks = config.Hooks
	}

	if s.logger == nil {
		s.logger = NewDefaultLogger()
	}
	if s.panicHandler == nil {
		s.panicHandler = &DefaultPanicHandler{Logger: s.logger}
	}
	if s.metrics == nil {
		s.metrics = &NilMetrics{}
	}
	if s.rejectedTaskHandler == nil {
		s.rejectedTaskHandler = &DefaultRejectedTaskHandler{Logger: s.logger}
	}
	if s.hooks == nil {
		s.hooks = &LifecycleHooks{}
	}

	return s
}

// PostInternal enqueues a task, attributing it to the caller's location.
func (s *TaskScheduler) PostInternal(task Task, traits TaskTraits) {
	s.PostInternalAt(task, traits, CallerSpawnLocation(1))
}

// PostInternalAt enqueues a task attributed to an explicit spawn location.
// This is where task metadata is minted and the task-spawn hook fires.
func (s *TaskScheduler) PostInternalAt(task Task, traits TaskTraits, spawnedAt SpawnLocation) {
	// If shutting down, reject new tasks
	if atomic.LoadInt32(&s.shuttingDown) == 1 {
		s.rejectedTaskHandler.HandleRejectedTask("TaskScheduler", "shutting down")
		s.metrics.RecordTaskRejected("TaskScheduler", "shutting down")
		return
	}

	meta := newTaskMeta(spawnedAt)
	s.hooks.taskSpawn(meta)

	s.queue.Push(TaskItem{Task: task, Traits: traits, Meta: meta})
	atomic.AddInt32(&s.metricQueued, 1) // Metric++

	select {
	case s.signal <- struct{}{}:
	default:
		// Signal channel full, but task is already queued
	}
}

// PostDelayedInternal schedules a task to be posted to target after delay.
// Metadata is minted when the task re-enters the ready path via the target.
func (s *TaskScheduler) PostDelayedInternal(task Task, delay time.Duration, traits TaskTraits, target TaskRunner) {
	if atomic.LoadInt32(&s.shuttingDown) == 1 {
		return
	}
	s.delayManager.AddDelayedTask(task, delay, traits, target)
}

// GetWork blocks until a task is available or stopCh fires.
// The worker-thread park/unpark hooks bracket the blocking wait.
func (s *TaskScheduler) GetWork(stopCh <-chan struct{}) (TaskItem, bool) {
	for {
		// Try to pop one task
		if item, ok := s.queue.Pop(); ok {
			atomic.AddInt32(&s.metricQueued, -1) // Metric-- (Left Queue)
			return item, true
		}

		// No work available: the worker is about to block.
		s.hooks.threadPark()
		select {
		case <-s.signal:
			s.hooks.threadUnpark()
			continue
		case <-stopCh:
			s.hooks.threadUnpark()
			return TaskItem{}, false
		}
	}
}

func (s *TaskScheduler) Shutdown() {
	// 1. Mark as shutting down to stop accepting new tasks
	atomic.StoreInt32(&s.shuttingDown, 1)

	// 2. Stop DelayManager (no more new tasks generated)
	s.delayManager.Stop()

	// 3. Clear queue to release all task references
	s.queue.Clear()
	atomic.StoreInt32(&s.metricQueued, 0)
}

// ShutdownGraceful waits for all queued and active tasks to complete
// Returns error if timeout is exceeded before tasks complete
func (s *TaskScheduler) ShutdownGraceful(timeout time.Duration) error {
	atomic.StoreInt32(&s.shuttingDown, 1)
	s.delayManager.Stop()

	deadline := time.After(timeout)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			// Timeout exceeded, force clear remaining queues
			s.queue.Clear()
			atomic.StoreInt32(&s.metricQueued, 0)
			s.logger.Warn("graceful shutdown timed out, clearing queue", F("timeout", timeout))
			return fmt.Errorf("shutdown graceful timeout after %v, forced clearing", timeout)
		case <-ticker.C:
			if s.QueuedTaskCount() == 0 && s.ActiveTaskCount() == 0 {
				return nil
			}
		}
	}
}

// Metrics
func (s *TaskScheduler) WorkerCount() int     { return s.workerCount }
func (s *TaskScheduler) QueuedTaskCount() int { return int(atomic.LoadInt32(&s.metricQueued)) }
func (s *TaskScheduler) ActiveTaskCount() int { return int(atomic.LoadInt32(&s.metricActive)) }
func (s *TaskScheduler) DelayedTaskCount() int {
	return s.delayManager.TaskCount()
}

// OnWorkerStart is called by a worker goroutine as its first action.
func (s *TaskScheduler) OnWorkerStart() {
	s.hooks.threadStart()
}

// OnWorkerStop is called by a worker goroutine as its last action.
func (s *TaskScheduler) OnWorkerStop() {
	s.hooks.threadStop()
}

// OnTaskStart is called by a worker immediately before executing item's task.
func (s *TaskScheduler) OnTaskStart(meta *TaskMeta) {
	atomic.AddInt32(&s.metricActive, 1)
	s.hooks.beforeTaskPoll(meta)
}

// OnTaskEnd is called by a worker when the task's execution slice finishes,
// whether it returned or panicked.
func (s *TaskScheduler) OnTaskEnd(meta *TaskMeta) {
	s.hooks.afterTaskPoll(meta)
	atomic.AddInt32(&s.metricActive, -1)
}

// OnTaskTerminate is called by a worker after OnTaskEnd, once the task will
// not run again and is dropped.
func (s *TaskScheduler) OnTaskTerminate(meta *TaskMeta) {
	s.hooks.taskTerminate(meta)
}

// GetPanicHandler returns the panic handler for this scheduler
func (s *TaskScheduler) GetPanicHandler() PanicHandler {
	return s.panicHandler
}

// GetMetrics returns the metrics collector for this scheduler
func (s *TaskScheduler) GetMetrics() Metrics {
	return s.metrics
}

// GetLogger returns the logger for this scheduler
func (s *TaskScheduler) GetLogger() Logger {
	return s.logger
}
