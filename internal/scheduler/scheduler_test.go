package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestSchedulerTicksAndStops(t *testing.T) {
	var ticks atomic.Int64
	fired := make(chan struct{}, 16)

	sched := New(Options{Interval: 10 * time.Millisecond}, zerolog.Nop())
	sched.Start(context.Background(), func(ctx context.Context) error {
		ticks.Add(1)
		select {
		case fired <- struct{}{}:
		default:
		}
		return nil
	})

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler never ticked")
	}

	sched.Stop()
	after := ticks.Load()
	time.Sleep(50 * time.Millisecond)
	if ticks.Load() != after {
		t.Fatal("scheduler kept ticking after Stop")
	}

	// Stop on a stopped scheduler is a no-op.
	sched.Stop()
}

func TestSchedulerStartupDelayCancellable(t *testing.T) {
	sched := New(Options{Interval: time.Hour, StartupDelay: time.Hour}, zerolog.Nop())
	sched.Start(context.Background(), func(ctx context.Context) error {
		t.Error("tick must not fire during the startup delay")
		return nil
	})

	done := make(chan struct{})
	go func() {
		sched.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not cancel the startup timer")
	}
}
