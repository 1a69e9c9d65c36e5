package core

import (
	"runtime"
	"strconv"
	"sync/atomic"
)

// TaskID is the stable identifier of a task for its lifetime.
//
// The type is deliberately opaque: there is no accessor that yields the
// underlying number, and the representation is not part of the public API.
// Use String for logging. IDs are unique within a process and are never
// reused; the runtime never mints the zero value.
type TaskID struct {
	v uint64
}

var taskIDCounter atomic.Uint64

// nextTaskID mints a fresh non-zero identifier.
func nextTaskID() TaskID {
	return TaskID{v: taskIDCounter.Add(1)}
}

// String formats the identifier for logs and error messages.
func (id TaskID) String() string {
	return strconv.FormatUint(id.v, 10)
}

// SpawnLocation is the source location a task was posted from.
// Column is 0 for locations captured by the runtime; runtime.Caller does not
// report columns.
type SpawnLocation struct {
	file   string
	line   uint32
	column uint32
}

// NewSpawnLocation builds a SpawnLocation from explicit values. Intended for
// callers testing their own hook wrappers.
func NewSpawnLocation(file string, line, column uint32) SpawnLocation {
	return SpawnLocation{file: file, line: line, column: column}
}

// File returns the file path the task was posted from.
func (l SpawnLocation) File() string { return l.file }

// Line returns the 1-based line number the task was posted from.
func (l SpawnLocation) Line() uint32 { return l.line }

// Column returns the column, or 0 when the runtime captured the location.
func (l SpawnLocation) Column() uint32 { return l.column }

// CallerSpawnLocation captures the location skip+1 frames above the caller.
// Post methods that forward work to a ThreadPool use it to attribute the task
// to their own caller rather than the forwarding frame.
func CallerSpawnLocation(skip int) SpawnLocation {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return SpawnLocation{file: "unknown"}
	}
	return SpawnLocation{file: file, line: uint32(line)}
}

// TaskMeta carries the metadata the runtime hands to lifecycle hooks.
// It is owned by the runtime and only valid for the duration of the hook
// call; hooks must copy anything they want to keep.
type TaskMeta struct {
	id        TaskID
	spawnedAt SpawnLocation
}

// NewTaskMeta builds a TaskMeta from explicit values. Intended for callers
// testing their own hook wrappers; the runtime mints its own metadata.
func NewTaskMeta(id TaskID, spawnedAt SpawnLocation) *TaskMeta {
	return &TaskMeta{id: id, spawnedAt: spawnedAt}
}

func newTaskMeta(spawnedAt SpawnLocation) *TaskMeta {
	return &TaskMeta{id: nextTaskID(), spawnedAt: spawnedAt}
}

// ID returns the task's identifier.
func (m *TaskMeta) ID() TaskID { return m.id }

// SpawnedAt returns where the task was posted from.
func (m *TaskMeta) SpawnedAt() SpawnLocation { return m.spawnedAt }
