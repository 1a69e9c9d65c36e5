package taskrun

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/taskrunlab/taskrun/core"
)

// hookRecorder collects lifecycle events from all goroutines.
type hookRecorder struct {
	mu     sync.Mutex
	events []string
}

func (r *hookRecorder) record(event string) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

func (r *hookRecorder) count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == event {
			n++
		}
	}
	return n
}

func (r *hookRecorder) install(b *Builder) *Builder {
	return b.
		OnTaskSpawn(func(meta *core.TaskMeta) { r.record("spawn") }).
		OnBeforeTaskPoll(func(meta *core.TaskMeta) { r.record("poll-start") }).
		OnAfterTaskPoll(func(meta *core.TaskMeta) { r.record("poll-end") }).
		OnTaskTerminate(func(meta *core.TaskMeta) { r.record("terminate") }).
		OnThreadStart(func() { r.record("thread-start") }).
		OnThreadStop(func() { r.record("thread-stop") }).
		OnThreadPark(func() { r.record("park") }).
		OnThreadUnpark(func() { r.record("unpark") })
}

func TestPoolStartStop(t *testing.T) {
	pool := NewGoroutineThreadPool("test-pool", 2)
	if pool.IsRunning() {
		t.Fatal("pool running before Start")
	}

	pool.Start(context.Background())
	if !pool.IsRunning() {
		t.Fatal("pool not running after Start")
	}

	pool.Stop()
	if pool.IsRunning() {
		t.Fatal("pool still running after Stop")
	}
}

func TestPoolExecutesTasks(t *testing.T) {
	pool := NewGoroutineThreadPool("test-pool", 2)
	pool.Start(context.Background())
	defer pool.Stop()

	var done sync.WaitGroup
	var ran atomic.Int32
	for range 20 {
		done.Add(1)
		pool.PostInternal(func(ctx context.Context) {
			ran.Add(1)
			done.Done()
		}, core.DefaultTaskTraits())
	}

	waitDone(t, &done, 5*time.Second)
	if ran.Load() != 20 {
		t.Fatalf("ran %d tasks, want 20", ran.Load())
	}
}

func TestPoolTaskLifecycleEvents(t *testing.T) {
	rec := &hookRecorder{}
	pool := rec.install(NewBuilder().ID("lifecycle-pool").Workers(1).EnableUnstableHooks()).Build()
	pool.Start(context.Background())

	var done sync.WaitGroup
	done.Add(1)
	pool.PostInternal(func(ctx context.Context) { done.Done() }, core.DefaultTaskTraits())
	waitDone(t, &done, 5*time.Second)
	pool.Stop()

	for _, event := range []string{"spawn", "poll-start", "poll-end", "terminate"} {
		if got := rec.count(event); got != 1 {
			t.Errorf("%s fired %d times, want 1", event, got)
		}
	}
	if got := rec.count("thread-start"); got != 1 {
		t.Errorf("thread-start fired %d times, want 1 (one worker)", got)
	}
	if got := rec.count("thread-stop"); got != 1 {
		t.Errorf("thread-stop fired %d times, want 1", got)
	}

	// Ordering within the single task's lifecycle.
	rec.mu.Lock()
	defer rec.mu.Unlock()
	idx := map[string]int{}
	for i, e := range rec.events {
		if _, seen := idx[e]; !seen {
			idx[e] = i
		}
	}
	if !(idx["spawn"] < idx["poll-start"] && idx["poll-start"] < idx["poll-end"] && idx["poll-end"] < idx["terminate"]) {
		t.Errorf("lifecycle order wrong: %v", rec.events)
	}
	if !(idx["thread-start"] < idx["poll-start"]) {
		t.Errorf("thread-start after first poll: %v", rec.events)
	}
}

func TestPoolPollEventsFireOnPanic(t *testing.T) {
	rec := &hookRecorder{}
	builder := rec.install(NewBuilder().ID("panic-pool").Workers(1).EnableUnstableHooks())
	builder.SchedulerConfig(&core.TaskSchedulerConfig{
		PanicHandler: panicHandlerFunc(func(ctx context.Context, poolID string, workerID int, panicInfo any, stack []byte) {}),
		Logger:       core.NewNoOpLogger(),
	})
	pool := builder.Build()
	pool.Start(context.Background())

	var done sync.WaitGroup
	done.Add(1)
	pool.PostInternal(func(ctx context.Context) {
		defer done.Done()
		panic("boom")
	}, core.DefaultTaskTraits())
	waitDone(t, &done, 5*time.Second)
	pool.Stop()

	if got := rec.count("poll-end"); got != 1 {
		t.Errorf("poll-end fired %d times on panic, want 1", got)
	}
	if got := rec.count("terminate"); got != 1 {
		t.Errorf("terminate fired %d times on panic, want 1", got)
	}
}

func TestPoolParkUnparkWhileIdle(t *testing.T) {
	rec := &hookRecorder{}
	pool := rec.install(NewBuilder().ID("idle-pool").Workers(1).EnableUnstableHooks()).Build()
	pool.Start(context.Background())

	// The idle worker parks; posting work unparks it.
	deadline := time.After(2 * time.Second)
	for rec.count("park") == 0 {
		select {
		case <-deadline:
			t.Fatal("idle worker never parked")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	var done sync.WaitGroup
	done.Add(1)
	pool.PostInternal(func(ctx context.Context) { done.Done() }, core.DefaultTaskTraits())
	waitDone(t, &done, 5*time.Second)

	if rec.count("unpark") == 0 {
		t.Error("worker never unparked after work arrived")
	}
	pool.Stop()
}

func TestStopGracefulWaitsForQueuedTasks(t *testing.T) {
	pool := NewGoroutineThreadPool("graceful-pool", 1)
	pool.Start(context.Background())

	var ran atomic.Int32
	for range 5 {
		pool.PostInternal(func(ctx context.Context) {
			time.Sleep(10 * time.Millisecond)
			ran.Add(1)
		}, core.DefaultTaskTraits())
	}

	if err := pool.StopGraceful(5 * time.Second); err != nil {
		t.Fatalf("StopGraceful failed: %v", err)
	}
	if ran.Load() != 5 {
		t.Fatalf("ran %d tasks before graceful stop, want 5", ran.Load())
	}
}

func TestGlobalThreadPool(t *testing.T) {
	defer ShutdownGlobalThreadPool()

	InitGlobalThreadPool(2)
	pool := GetGlobalThreadPool()
	if pool == nil || !pool.IsRunning() {
		t.Fatal("global pool not initialized or not running")
	}

	// Second init is a no-op.
	InitGlobalThreadPool(8)
	if GetGlobalThreadPool() != pool {
		t.Fatal("second InitGlobalThreadPool replaced the pool")
	}

	runner := CreateTaskRunner(DefaultTaskTraits())
	done := make(chan struct{})
	runner.PostTask(func(ctx context.Context) { close(done) })
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("task on global pool runner never ran")
	}
}

func waitDone(t *testing.T, wg *sync.WaitGroup, timeout time.Duration) {
	t.Helper()
	ch := make(chan struct{})
	go func() {
		wg.Wait()
		close(ch)
	}()
	select {
	case <-ch:
	case <-time.After(timeout):
		t.Fatal("timed out waiting for tasks")
	}
}

type panicHandlerFunc func(ctx context.Context, poolID string, workerID int, panicInfo any, stack []byte)

func (f panicHandlerFunc) HandlePanic(ctx context.Context, poolID string, workerID int, panicInfo any, stack []byte) {
	f(ctx, poolID, workerID, panicInfo, stack)
}
