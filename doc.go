// Package taskrun provides a Chromium-inspired task scheduling runtime for Go
// with lifecycle hooks for low-overhead instrumentation.
//
// Developers post tasks to virtual threads (TaskRunners) rather than managing
// goroutines directly. A GoroutineThreadPool of worker goroutines pulls tasks
// from a scheduler and executes them; SequencedTaskRunner layers strict FIFO
// execution on top of the pool.
//
// # Quick Start
//
// Build a pool with the Builder and create a runner:
//
//	pool := taskrun.NewBuilder().Workers(4).Build()
//	pool.Start(context.Background())
//	defer pool.Stop()
//
//	runner := taskrun.NewSequencedTaskRunner(pool)
//	runner.PostTask(func(ctx context.Context) {
//		// Your code here - guaranteed sequential execution
//	})
//
// Or initialize the global pool at application startup:
//
//	taskrun.InitGlobalThreadPool(4) // 4 workers
//	defer taskrun.ShutdownGlobalThreadPool()
//	runner := taskrun.CreateTaskRunner(taskrun.DefaultTaskTraits())
//
// # Lifecycle Hooks
//
// The Builder exposes eight callback slots that the runtime invokes
// synchronously at task and worker lifecycle transitions: task spawn,
// before/after each execution slice, task terminate, and worker goroutine
// start/stop/park/unpark. Hooks are an unstable API and must be switched on
// explicitly:
//
//	builder := taskrun.NewBuilder().
//		EnableUnstableHooks().
//		OnTaskSpawn(func(meta *core.TaskMeta) {
//			// runs on the posting goroutine
//		})
//
// Each setter overwrites any previously set callback for that slot. Hooks run
// on the hot path of every task execution and must be fast, non-blocking, and
// panic-free. The dtrace subpackage bridges all eight slots to USDT probes so
// task and thread activity can be observed with bpftrace or dtrace without
// touching application code.
//
// # Key Concepts
//
// TaskRunner: Interface for posting tasks. Tasks posted to a
// SequencedTaskRunner execute sequentially, eliminating the need for locks on
// resources owned by that runner.
//
// TaskTraits: Describes task attributes including priority (BestEffort,
// UserVisible, UserBlocking). Priority determines when work gets scheduled,
// not the order within a sequence.
//
// GoroutineThreadPool: The execution engine managing worker goroutines that
// pull and execute tasks from the scheduler.
package taskrun
