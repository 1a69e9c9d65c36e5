package dtrace

import "sync/atomic"

// providerName is the USDT provider the probes are grouped under.
const providerName = "taskrun"

// Probe names are a stable external contract: tracing scripts attach by name
// and argument order. Renaming a probe or reordering its arguments is a
// breaking change.
const (
	probeTaskSpawn     = "task__spawn"
	probeTaskPollStart = "task__poll__start"
	probeTaskPollEnd   = "task__poll__end"
	probeTaskTerminate = "task__terminate"

	probeThreadStart  = "worker__thread__start"
	probeThreadStop   = "worker__thread__stop"
	probeThreadPark   = "worker__thread__park"
	probeThreadUnpark = "worker__thread__unpark"
)

// taskProbe is a probe carrying the task event tuple.
type taskProbe interface {
	Enabled() bool
	Fire(taskID uint64, file string, line, column uint32)
}

// threadProbe is a probe with no payload.
type threadProbe interface {
	Enabled() bool
	Fire()
}

// dormant probes are installed until a backend is registered, so the bridge
// functions are total even when called before (or without) registration.
type dormantTaskProbe struct{}

func (dormantTaskProbe) Enabled() bool                       { return false }
func (dormantTaskProbe) Fire(uint64, string, uint32, uint32) {}

type dormantThreadProbe struct{}

func (dormantThreadProbe) Enabled() bool { return false }
func (dormantThreadProbe) Fire()         {}

type probeSet struct {
	taskSpawn     taskProbe
	taskPollStart taskProbe
	taskPollEnd   taskProbe
	taskTerminate taskProbe

	threadStart  threadProbe
	threadStop   threadProbe
	threadPark   threadProbe
	threadUnpark threadProbe
}

func dormantProbes() *probeSet {
	return &probeSet{
		taskSpawn:     dormantTaskProbe{},
		taskPollStart: dormantTaskProbe{},
		taskPollEnd:   dormantTaskProbe{},
		taskTerminate: dormantTaskProbe{},
		threadStart:   dormantThreadProbe{},
		threadStop:    dormantThreadProbe{},
		threadPark:    dormantThreadProbe{},
		threadUnpark:  dormantThreadProbe{},
	}
}

// probes is the active probe set. registerBackend and Unload swap the whole
// set atomically; the bridge functions load it without locking, so a hook
// racing an Unload sees either the old set or the dormant one, never a torn
// mix of the two.
var probes atomic.Pointer[probeSet]

func init() {
	probes.Store(dormantProbes())
}
