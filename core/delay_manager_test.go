package core

import (
	"context"
	"sync"
	"testing"
	"time"
)

// recordingRunner collects posted tasks instead of executing them.
type recordingRunner struct {
	mu    sync.Mutex
	posts []TaskTraits
	ch    chan struct{}
}

func newRecordingRunner() *recordingRunner {
	return &recordingRunner{ch: make(chan struct{}, 16)}
}

func (r *recordingRunner) PostTask(task Task) {
	r.PostTaskWithTraits(task, DefaultTaskTraits())
}

func (r *recordingRunner) PostTaskWithTraits(task Task, traits TaskTraits) {
	r.mu.Lock()
	r.posts = append(r.posts, traits)
	r.mu.Unlock()
	r.ch <- struct{}{}
}

func (r *recordingRunner) PostDelayedTask(task Task, delay time.Duration) {}
func (r *recordingRunner) PostDelayedTaskWithTraits(task Task, delay time.Duration, traits TaskTraits) {
}

func (r *recordingRunner) postCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.posts)
}

func waitPosted(t *testing.T, r *recordingRunner, timeout time.Duration) {
	t.Helper()
	select {
	case <-r.ch:
	case <-time.After(timeout):
		t.Fatal("delayed task was not posted in time")
	}
}

func TestDelayManagerPostsAfterDelay(t *testing.T) {
	dm := NewDelayManager()
	defer dm.Stop()
	runner := newRecordingRunner()

	start := time.Now()
	dm.AddDelayedTask(func(ctx context.Context) {}, 50*time.Millisecond, TraitsUserVisible(), runner)

	waitPosted(t, runner, 2*time.Second)
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("task posted after %v, want at least 50ms", elapsed)
	}
	if got := runner.posts[0].Priority; got != TaskPriorityUserVisible {
		t.Errorf("posted priority = %v, want user visible", got)
	}
}

func TestDelayManagerZeroDelay(t *testing.T) {
	dm := NewDelayManager()
	defer dm.Stop()
	runner := newRecordingRunner()

	dm.AddDelayedTask(func(ctx context.Context) {}, 0, DefaultTaskTraits(), runner)
	waitPosted(t, runner, 2*time.Second)
}

func TestDelayManagerOrdersByDeadline(t *testing.T) {
	dm := NewDelayManager()
	defer dm.Stop()
	runner := newRecordingRunner()

	dm.AddDelayedTask(func(ctx context.Context) {}, 150*time.Millisecond, TraitsBestEffort(), runner)
	dm.AddDelayedTask(func(ctx context.Context) {}, 30*time.Millisecond, TraitsUserBlocking(), runner)

	waitPosted(t, runner, 2*time.Second)
	if got := runner.posts[0].Priority; got != TaskPriorityUserBlocking {
		t.Fatalf("first posted priority = %v, want the earlier deadline's traits", got)
	}
	waitPosted(t, runner, 2*time.Second)
	if runner.postCount() != 2 {
		t.Fatalf("post count = %d, want 2", runner.postCount())
	}
}

func TestDelayManagerStopDropsPending(t *testing.T) {
	dm := NewDelayManager()
	runner := newRecordingRunner()

	dm.AddDelayedTask(func(ctx context.Context) {}, time.Hour, DefaultTaskTraits(), runner)
	if dm.TaskCount() != 1 {
		t.Fatalf("TaskCount = %d, want 1", dm.TaskCount())
	}

	dm.Stop()
	if dm.TaskCount() != 0 {
		t.Fatalf("TaskCount after Stop = %d, want 0", dm.TaskCount())
	}
}
