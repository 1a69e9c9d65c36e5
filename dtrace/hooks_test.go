package dtrace

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	taskrun "github.com/taskrunlab/taskrun"
	"github.com/taskrunlab/taskrun/core"
)

// recordingTaskProbe captures fired tuples.
type recordingTaskProbe struct {
	mu    sync.Mutex
	fired []taskTuple
	count atomic.Int64
}

type taskTuple struct {
	taskID uint64
	file   string
	line   uint32
	column uint32
}

func (p *recordingTaskProbe) Enabled() bool { return true }

func (p *recordingTaskProbe) Fire(taskID uint64, file string, line, column uint32) {
	p.mu.Lock()
	p.fired = append(p.fired, taskTuple{taskID, file, line, column})
	p.mu.Unlock()
	p.count.Add(1)
}

type recordingThreadProbe struct {
	count atomic.Int64
}

func (p *recordingThreadProbe) Enabled() bool { return true }
func (p *recordingThreadProbe) Fire()         { p.count.Add(1) }

// installRecorders swaps the probe set for recorders and restores it on
// cleanup.
func installRecorders(t *testing.T) (map[string]*recordingTaskProbe, map[string]*recordingThreadProbe) {
	t.Helper()
	taskRecs := map[string]*recordingTaskProbe{
		probeTaskSpawn:     {},
		probeTaskPollStart: {},
		probeTaskPollEnd:   {},
		probeTaskTerminate: {},
	}
	threadRecs := map[string]*recordingThreadProbe{
		probeThreadStart:  {},
		probeThreadStop:   {},
		probeThreadPark:   {},
		probeThreadUnpark: {},
	}

	old := probes.Load()
	probes.Store(&probeSet{
		taskSpawn:     taskRecs[probeTaskSpawn],
		taskPollStart: taskRecs[probeTaskPollStart],
		taskPollEnd:   taskRecs[probeTaskPollEnd],
		taskTerminate: taskRecs[probeTaskTerminate],
		threadStart:   threadRecs[probeThreadStart],
		threadStop:    threadRecs[probeThreadStop],
		threadPark:    threadRecs[probeThreadPark],
		threadUnpark:  threadRecs[probeThreadUnpark],
	})
	t.Cleanup(func() { probes.Store(old) })
	return taskRecs, threadRecs
}

// forgeMeta builds metadata with a chosen identifier value.
func forgeMeta(taskID uint64, file string, line, column uint32) *core.TaskMeta {
	id := *(*core.TaskID)(unsafe.Pointer(&taskID))
	return core.NewTaskMeta(id, core.NewSpawnLocation(file, line, column))
}

// mintMeta captures metadata minted by the runtime itself.
func mintMeta(t *testing.T) *core.TaskMeta {
	t.Helper()
	var captured core.TaskMeta
	pool := taskrun.NewBuilder().
		Workers(1).
		EnableUnstableHooks().
		OnTaskSpawn(func(meta *core.TaskMeta) { captured = *meta }).
		Build()
	defer pool.Stop()

	pool.PostInternal(func(ctx context.Context) {}, core.DefaultTaskTraits())
	return &captured
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func TestTaskBridgeFidelity(t *testing.T) {
	taskRecs, _ := installRecorders(t)
	meta := forgeMeta(42, "app.go", 7, 3)

	OnTaskSpawn(meta)
	OnBeforeTaskPoll(meta)
	OnAfterTaskPoll(meta)
	OnTaskTerminate(meta)

	want := taskTuple{taskID: 42, file: "app.go", line: 7, column: 3}
	for name, rec := range taskRecs {
		require.Len(t, rec.fired, 1, "probe %s", name)
		require.Equal(t, want, rec.fired[0], "probe %s", name)
	}
}

func TestThreadBridgeFires(t *testing.T) {
	_, threadRecs := installRecorders(t)

	OnThreadStart()
	OnThreadStop()
	OnThreadPark()
	OnThreadUnpark()

	for name, rec := range threadRecs {
		require.Equal(t, int64(1), rec.count.Load(), "probe %s", name)
	}
}

func TestDormantBridgeIsSafe(t *testing.T) {
	// No backend registered: every bridge function must be a no-op.
	require.NotPanics(t, func() {
		meta := forgeMeta(1, "x.go", 1, 0)
		OnTaskSpawn(meta)
		OnBeforeTaskPoll(meta)
		OnAfterTaskPoll(meta)
		OnTaskTerminate(meta)
		OnThreadStart()
		OnThreadStop()
		OnThreadPark()
		OnThreadUnpark()
	})
}

func TestBridgeConcurrentInvocations(t *testing.T) {
	taskRecs, threadRecs := installRecorders(t)

	const goroutines = 16
	const perGoroutine = 1000

	var wg sync.WaitGroup
	for g := range goroutines {
		wg.Add(1)
		go func(seed int) {
			defer wg.Done()
			meta := forgeMeta(uint64(seed), "worker.go", uint32(seed), 0)
			for range perGoroutine {
				OnTaskSpawn(meta)
				OnBeforeTaskPoll(meta)
				OnAfterTaskPoll(meta)
				OnTaskTerminate(meta)
				OnThreadStart()
				OnThreadPark()
				OnThreadUnpark()
				OnThreadStop()
			}
		}(g)
	}
	wg.Wait()

	total := goroutines * perGoroutine
	for name, rec := range taskRecs {
		require.Equal(t, int64(total), rec.count.Load(), "probe %s", name)
	}
	for name, rec := range threadRecs {
		require.Equal(t, int64(total), rec.count.Load(), "probe %s", name)
	}
}

func TestBridgeConcurrentWithUnload(t *testing.T) {
	// Bridge functions race backend teardown in real deployments: Unload
	// swaps the probe set back to dormant while worker goroutines are still
	// mid-poll. Hammer the bridge while flipping the set between live
	// recorders and the dormant probes; the run must stay race-free and
	// every observed firing must land on a recorder.
	taskRecs, _ := installRecorders(t)
	live := probes.Load()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			meta := forgeMeta(7, "poll.go", 11, 0)
			for {
				select {
				case <-stop:
					return
				default:
				}
				OnTaskSpawn(meta)
				OnAfterTaskPoll(meta)
				OnThreadPark()
				OnThreadUnpark()
			}
		}()
	}

	for range 500 {
		probes.Store(dormantProbes())
		probes.Store(live)
	}
	close(stop)
	wg.Wait()

	want := taskTuple{taskID: 7, file: "poll.go", line: 11, column: 0}
	for _, got := range taskRecs[probeTaskSpawn].fired {
		require.Equal(t, want, got)
	}
	require.Equal(t,
		taskRecs[probeTaskSpawn].count.Load(),
		int64(len(taskRecs[probeTaskSpawn].fired)))
}

func TestBridgeAttachesThroughPool(t *testing.T) {
	taskRecs, threadRecs := installRecorders(t)

	builder := taskrun.NewBuilder().
		ID("bridge-pool").
		Workers(1).
		EnableUnstableHooks()
	activateStub(t, nil)
	_, err := RegisterHooks(builder)
	require.NoError(t, err)

	pool := builder.Build()
	pool.Start(context.Background())

	done := make(chan struct{})
	pool.PostInternal(func(ctx context.Context) { close(done) }, core.DefaultTaskTraits())
	<-done
	pool.Stop()

	require.Equal(t, int64(1), taskRecs[probeTaskSpawn].count.Load())
	require.Equal(t, int64(1), taskRecs[probeTaskPollStart].count.Load())
	require.Equal(t, int64(1), taskRecs[probeTaskPollEnd].count.Load())
	require.Equal(t, int64(1), taskRecs[probeTaskTerminate].count.Load())
	require.Equal(t, int64(1), threadRecs[probeThreadStart].count.Load())
	require.Equal(t, int64(1), threadRecs[probeThreadStop].count.Load())

	spawn := taskRecs[probeTaskSpawn].fired[0]
	require.NotZero(t, spawn.taskID)
	require.Contains(t, spawn.file, "hooks_test.go")
	require.NotZero(t, spawn.line)
	require.Zero(t, spawn.column)
}
