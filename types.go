package taskrun

import "github.com/taskrunlab/taskrun/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the taskrun package for most use cases.

// Task is the unit of work (Closure)
type Task = core.Task

// TaskTraits defines task attributes (priority, blocking behavior, etc.)
type TaskTraits = core.TaskTraits

// TaskPriority defines the priority levels for tasks
type TaskPriority = core.TaskPriority

// TaskRunner is the interface for posting tasks
type TaskRunner = core.TaskRunner

// SequencedTaskRunner ensures sequential execution of tasks
type SequencedTaskRunner = core.SequencedTaskRunner

// RepeatingTaskHandle controls the lifecycle of a repeating task
type RepeatingTaskHandle = core.RepeatingTaskHandle

// TaskID is the opaque stable identifier of a task
type TaskID = core.TaskID

// TaskMeta carries per-task metadata passed to lifecycle hooks
type TaskMeta = core.TaskMeta

// SpawnLocation is the source location a task was posted from
type SpawnLocation = core.SpawnLocation

// TaskHook is a lifecycle callback for task events
type TaskHook = core.TaskHook

// ThreadHook is a lifecycle callback for worker goroutine events
type ThreadHook = core.ThreadHook

// ThreadPool is re-exported for type compatibility
type ThreadPool = core.ThreadPool

// Priority constants
const (
	TaskPriorityBestEffort   TaskPriority = core.TaskPriorityBestEffort
	TaskPriorityUserVisible  TaskPriority = core.TaskPriorityUserVisible
	TaskPriorityUserBlocking TaskPriority = core.TaskPriorityUserBlocking
)

// Convenience functions for creating TaskTraits
var (
	DefaultTaskTraits  = core.DefaultTaskTraits
	TraitsUserBlocking = core.TraitsUserBlocking
	TraitsBestEffort   = core.TraitsBestEffort
	TraitsUserVisible  = core.TraitsUserVisible
)

// NewSequencedTaskRunner creates a new SequencedTaskRunner with the given
// thread pool.
func NewSequencedTaskRunner(pool ThreadPool) *SequencedTaskRunner {
	return core.NewSequencedTaskRunner(pool)
}

// GetCurrentTaskRunner retrieves the current TaskRunner from context
var GetCurrentTaskRunner = core.GetCurrentTaskRunner
