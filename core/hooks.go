package core

// TaskHook is a lifecycle callback for task events. The *TaskMeta argument is
// only valid for the duration of the call.
type TaskHook func(meta *TaskMeta)

// ThreadHook is a lifecycle callback for worker goroutine events.
type ThreadHook func()

// LifecycleHooks holds one callback per lifecycle event. Each slot holds at
// most one function; nil slots are skipped. The runtime invokes the hooks
// synchronously on the goroutine where the event occurs, so they must return
// quickly and must not block or panic. Slots are fixed once a pool is built;
// the hot path reads them without locking.
type LifecycleHooks struct {
	OnTaskSpawn      TaskHook
	OnBeforeTaskPoll TaskHook
	OnAfterTaskPoll  TaskHook
	OnTaskTerminate  TaskHook

	OnThreadStart  ThreadHook
	OnThreadStop   ThreadHook
	OnThreadPark   ThreadHook
	OnThreadUnpark ThreadHook
}

// NumSet reports how many of the eight slots hold a callback.
func (h *LifecycleHooks) NumSet() int {
	n := 0
	for _, set := range []bool{
		h.OnTaskSpawn != nil,
		h.OnBeforeTaskPoll != nil,
		h.OnAfterTaskPoll != nil,
		h.OnTaskTerminate != nil,
		h.OnThreadStart != nil,
		h.OnThreadStop != nil,
		h.OnThreadPark != nil,
		h.OnThreadUnpark != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

func (h *LifecycleHooks) taskSpawn(meta *TaskMeta) {
	if h.OnTaskSpawn != nil {
		h.OnTaskSpawn(meta)
	}
}

func (h *LifecycleHooks) beforeTaskPoll(meta *TaskMeta) {
	if h.OnBeforeTaskPoll != nil {
		h.OnBeforeTaskPoll(meta)
	}
}

func (h *LifecycleHooks) afterTaskPoll(meta *TaskMeta) {
	if h.OnAfterTaskPoll != nil {
		h.OnAfterTaskPoll(meta)
	}
}

func (h *LifecycleHooks) taskTerminate(meta *TaskMeta) {
	if h.OnTaskTerminate != nil {
		h.OnTaskTerminate(meta)
	}
}

func (h *LifecycleHooks) threadStart() {
	if h.OnThreadStart != nil {
		h.OnThreadStart()
	}
}

func (h *LifecycleHooks) threadStop() {
	if h.OnThreadStop != nil {
		h.OnThreadStop()
	}
}

func (h *LifecycleHooks) threadPark() {
	if h.OnThreadPark != nil {
		h.OnThreadPark()
	}
}

func (h *LifecycleHooks) threadUnpark() {
	if h.OnThreadUnpark != nil {
		h.OnThreadUnpark()
	}
}
