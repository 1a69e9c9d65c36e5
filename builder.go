package taskrun

import (
	"github.com/rs/xid"

	"github.com/taskrunlab/taskrun/core"
)

const defaultWorkers = 4

// Builder configures and constructs a GoroutineThreadPool.
//
// All setters return the same *Builder so calls can be chained. The zero
// number of hooks is the default: lifecycle hook slots only take effect when
// EnableUnstableHooks has been called, and each hook setter overwrites any
// previously set callback for that slot (last write wins). Callers that need
// to run additional code in a slot should register a wrapper function that
// calls both; see the dtrace subpackage documentation for the pattern.
//
// A Builder is not safe for concurrent use; configure it from one goroutine
// before calling Build.
type Builder struct {
	id            string
	workers       int
	priority      bool
	unstableHooks bool
	config        *core.TaskSchedulerConfig
	hooks         core.LifecycleHooks
}

// NewBuilder returns a Builder with default settings: a FIFO scheduler,
// four workers, and no lifecycle hooks.
func NewBuilder() *Builder {
	return &Builder{workers: defaultWorkers}
}

// ID sets the pool identifier. Defaults to a generated unique ID.
func (b *Builder) ID(id string) *Builder {
	b.id = id
	return b
}

// Workers sets the number of worker goroutines.
func (b *Builder) Workers(n int) *Builder {
	if n > 0 {
		b.workers = n
	}
	return b
}

// PriorityScheduler selects the priority scheduler instead of FIFO.
func (b *Builder) PriorityScheduler() *Builder {
	b.priority = true
	return b
}

// SchedulerConfig sets the scheduler plugin configuration (panic handler,
// metrics, rejection handler, logger). The Hooks field of the supplied config
// is ignored; hooks are configured through the builder's hook slots.
func (b *Builder) SchedulerConfig(cfg *core.TaskSchedulerConfig) *Builder {
	b.config = cfg
	return b
}

// EnableUnstableHooks switches on the lifecycle-hook capability for the pool
// built from this builder. The hook API is unstable and may change between
// minor releases; without this call, Build ignores all eight hook slots.
func (b *Builder) EnableUnstableHooks() *Builder {
	b.unstableHooks = true
	return b
}

// UnstableHooksEnabled reports whether EnableUnstableHooks has been called.
func (b *Builder) UnstableHooksEnabled() bool {
	return b.unstableHooks
}

// OnTaskSpawn sets the callback invoked when a task is posted.
func (b *Builder) OnTaskSpawn(fn core.TaskHook) *Builder {
	b.hooks.OnTaskSpawn = fn
	return b
}

// OnBeforeTaskPoll sets the callback invoked before each execution slice.
func (b *Builder) OnBeforeTaskPoll(fn core.TaskHook) *Builder {
	b.hooks.OnBeforeTaskPoll = fn
	return b
}

// OnAfterTaskPoll sets the callback invoked after each execution slice.
func (b *Builder) OnAfterTaskPoll(fn core.TaskHook) *Builder {
	b.hooks.OnAfterTaskPoll = fn
	return b
}

// OnTaskTerminate sets the callback invoked when a task completes and is
// dropped by the runtime.
func (b *Builder) OnTaskTerminate(fn core.TaskHook) *Builder {
	b.hooks.OnTaskTerminate = fn
	return b
}

// OnThreadStart sets the callback invoked when a worker goroutine starts.
func (b *Builder) OnThreadStart(fn core.ThreadHook) *Builder {
	b.hooks.OnThreadStart = fn
	return b
}

// OnThreadStop sets the callback invoked when a worker goroutine exits.
func (b *Builder) OnThreadStop(fn core.ThreadHook) *Builder {
	b.hooks.OnThreadStop = fn
	return b
}

// OnThreadPark sets the callback invoked when a worker goroutine runs out of
// work and is about to block.
func (b *Builder) OnThreadPark(fn core.ThreadHook) *Builder {
	b.hooks.OnThreadPark = fn
	return b
}

// OnThreadUnpark sets the callback invoked when a parked worker goroutine
// resumes.
func (b *Builder) OnThreadUnpark(fn core.ThreadHook) *Builder {
	b.hooks.OnThreadUnpark = fn
	return b
}

// NumHooks reports how many of the eight hook slots are set.
func (b *Builder) NumHooks() int {
	return b.hooks.NumSet()
}

// Hooks returns a copy of the current hook slots.
func (b *Builder) Hooks() core.LifecycleHooks {
	return b.hooks
}

// Build constructs the pool. The pool must still be started with Start; hook
// registration therefore always happens before any task is dispatched.
func (b *Builder) Build() *GoroutineThreadPool {
	id := b.id
	if id == "" {
		id = "pool-" + xid.New().String()
	}

	cfg := core.DefaultTaskSchedulerConfig()
	if b.config != nil {
		// Copy so the caller's config is never mutated; it may be shared
		// between builders.
		copied := *b.config
		cfg = &copied
	}
	hooks := core.LifecycleHooks{}
	if b.unstableHooks {
		hooks = b.hooks
	}
	cfg.Hooks = &hooks

	var scheduler *core.TaskScheduler
	if b.priority {
		scheduler = core.NewPriorityTaskSchedulerWithConfig(b.workers, cfg)
	} else {
		scheduler = core.NewFIFOTaskSchedulerWithConfig(b.workers, cfg)
	}

	return newGoroutineThreadPool(id, b.workers, scheduler)
}
