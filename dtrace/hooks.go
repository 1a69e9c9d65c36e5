package dtrace

import "github.com/taskrunlab/taskrun/core"

// The bridge functions below translate one lifecycle event each into one
// probe firing. They run synchronously on the hot path of every task poll and
// every worker transition: no locks, no allocation unless the probe is
// enabled, no error path, never a panic. RegisterHooks installs all eight;
// they are exported so applications can compose them into their own wrapper
// hooks (see the package documentation).

// OnTaskSpawn fires the task__spawn probe. Set it with Builder.OnTaskSpawn.
func OnTaskSpawn(meta *core.TaskMeta) {
	fireTask(probes.Load().taskSpawn, meta)
}

// OnBeforeTaskPoll fires the task__poll__start probe. Set it with
// Builder.OnBeforeTaskPoll.
func OnBeforeTaskPoll(meta *core.TaskMeta) {
	fireTask(probes.Load().taskPollStart, meta)
}

// OnAfterTaskPoll fires the task__poll__end probe. Set it with
// Builder.OnAfterTaskPoll.
func OnAfterTaskPoll(meta *core.TaskMeta) {
	fireTask(probes.Load().taskPollEnd, meta)
}

// OnTaskTerminate fires the task__terminate probe. Set it with
// Builder.OnTaskTerminate.
func OnTaskTerminate(meta *core.TaskMeta) {
	fireTask(probes.Load().taskTerminate, meta)
}

// OnThreadStart fires the worker__thread__start probe. Set it with
// Builder.OnThreadStart.
func OnThreadStart() {
	fireThread(probes.Load().threadStart)
}

// OnThreadStop fires the worker__thread__stop probe. Set it with
// Builder.OnThreadStop.
func OnThreadStop() {
	fireThread(probes.Load().threadStop)
}

// OnThreadPark fires the worker__thread__park probe. Set it with
// Builder.OnThreadPark.
func OnThreadPark() {
	fireThread(probes.Load().threadPark)
}

// OnThreadUnpark fires the worker__thread__unpark probe. Set it with
// Builder.OnThreadUnpark.
func OnThreadUnpark() {
	fireThread(probes.Load().threadUnpark)
}

// fireTask unpacks metadata only when a consumer is attached; with nothing
// attached the cost is a single flag load.
func fireTask(p taskProbe, meta *core.TaskMeta) {
	if !p.Enabled() {
		return
	}
	id, file, line, column := unpackMeta(meta)
	p.Fire(id, file, line, column)
}

func fireThread(p threadProbe) {
	if !p.Enabled() {
		return
	}
	p.Fire()
}

// unpackMeta extracts the probe argument tuple from the runtime-supplied
// metadata. The file string is copied by value; nothing retains the metadata
// handle past the call. Total: no error path, no blocking.
func unpackMeta(meta *core.TaskMeta) (taskID uint64, file string, line, column uint32) {
	id := taskIDToUint64(meta.ID())
	loc := meta.SpawnedAt()
	return id, loc.File(), loc.Line(), loc.Column()
}
