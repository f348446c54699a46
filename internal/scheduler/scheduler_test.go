package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunsImmediatelyAndOnTick(t *testing.T) {
	// WHAT: The cycle fires once at start and again on each tick.
	// WHY: A freshly started daemon should check due trackers without
	// waiting out the first tick.
	var runs atomic.Int32
	s := New(30*time.Millisecond, func(ctx context.Context) {
		runs.Add(1)
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	if got := runs.Load(); got < 2 {
		t.Errorf("runs = %d, want at least 2", got)
	}
}

func TestCyclesNeverOverlap(t *testing.T) {
	// WHAT: A cycle that overruns the tick delays the next one instead
	// of running concurrently with it.
	// WHY: Overlapping cycles would double-check the same due trackers.
	var inFlight atomic.Int32
	var overlapped atomic.Bool
	s := New(10*time.Millisecond, func(ctx context.Context) {
		if inFlight.Add(1) > 1 {
			overlapped.Store(true)
		}
		time.Sleep(30 * time.Millisecond)
		inFlight.Add(-1)
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	if overlapped.Load() {
		t.Error("cycles overlapped")
	}
}

func TestStopsOnCancel(t *testing.T) {
	// WHAT: Run returns promptly once the context is cancelled.
	// WHY: Shutdown must not leak the scheduler goroutine.
	s := New(time.Hour, func(ctx context.Context) {}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
