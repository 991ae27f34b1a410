package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked on every scheduled evaluation kick.
type TickFunc func(ctx context.Context) error

// Options tune scheduler behaviour.
type Options struct {
	Interval     time.Duration
	StartupDelay time.Duration
}

// Scheduler drives the recurring evaluation kicks: a one-shot delayed
// kick-off after Start, then a periodic tick. Both handles are owned by the
// scheduler and released on Stop, so no timer outlives the owning context.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Start launches the timer goroutine. Calling Start on a running scheduler
// is a no-op.
func (s *Scheduler) Start(ctx context.Context, tick TickFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go func() {
		defer close(done)
		s.loop(ctx, tick)
	}()
}

// Stop cancels the startup timer and the recurring ticker, then waits for
// the loop goroutine to exit. Safe to call on a stopped scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Run blocks, ticking until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	s.Start(ctx, tick)
	<-ctx.Done()
	s.Stop()
	return ctx.Err()
}

func (s *Scheduler) loop(ctx context.Context, tick TickFunc) {
	if s.opts.StartupDelay > 0 {
		timer := time.NewTimer(s.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}

	s.fire(ctx, tick)

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fire(ctx, tick)
		}
	}
}

func (s *Scheduler) fire(ctx context.Context, tick TickFunc) {
	s.logger.Debug().Msg("executing scheduled tick")
	if err := tick(ctx); err != nil {
		s.logger.Error().Err(err).Msg("tick execution failed")
	}
}
