package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// mockCloser implements SessionCloser for testing
type mockCloser struct {
	mu     sync.Mutex
	actors []string
	closed int
	err    error
}

func (m *mockCloser) CloseStale(ctx context.Context, actor string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actors = append(m.actors, actor)
	return m.closed, m.err
}

func (m *mockCloser) getActors() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.actors...)
}

func TestStaleSessionWorker_RunsImmediatelyThenOnSchedule(t *testing.T) {
	closer := &mockCloser{closed: 2}
	worker := NewStaleSessionWorker(closer, 50*time.Millisecond, "session-reaper")

	ctx, cancel := context.WithCancel(context.Background())
	go worker.Run(ctx)

	// Startup cycle plus at least one tick
	time.Sleep(130 * time.Millisecond)
	cancel()

	actors := closer.getActors()
	if len(actors) < 2 {
		t.Fatalf("expected at least 2 cycles, got %d", len(actors))
	}
	for _, a := range actors {
		if a != "session-reaper" {
			t.Errorf("actor = %q, want session-reaper", a)
		}
	}
}

func TestStaleSessionWorker_StartupCycleOnly(t *testing.T) {
	closer := &mockCloser{}
	worker := NewStaleSessionWorker(closer, time.Hour, "session-reaper")

	ctx, cancel := context.WithCancel(context.Background())
	go worker.Run(ctx)

	time.Sleep(50 * time.Millisecond)
	cancel()

	if n := len(closer.getActors()); n != 1 {
		t.Errorf("expected exactly the startup cycle, got %d", n)
	}
}

func TestStaleSessionWorker_GracefulShutdown(t *testing.T) {
	worker := NewStaleSessionWorker(&mockCloser{}, time.Hour, "session-reaper")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		worker.Run(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("worker did not stop within 1 second")
	}
}

func TestStaleSessionWorker_KeepsRunningAfterError(t *testing.T) {
	closer := &mockCloser{err: errors.New("database is locked")}
	worker := NewStaleSessionWorker(closer, 40*time.Millisecond, "session-reaper")

	ctx, cancel := context.WithCancel(context.Background())
	go worker.Run(ctx)

	time.Sleep(110 * time.Millisecond)
	cancel()

	if n := len(closer.getActors()); n < 2 {
		t.Errorf("expected cycles to continue after an error, got %d", n)
	}
}
