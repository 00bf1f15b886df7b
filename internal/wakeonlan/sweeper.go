package wakeonlan

import (
	"context"
	"sync"
	"time"
)

// sweeper runs fn on a fixed interval in one owned goroutine. Ticks never
// overlap: a slow fn delays the next tick instead of racing it.
type sweeper struct {
	interval time.Duration
	fn       func(ctx context.Context)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func newSweeper(interval time.Duration, fn func(ctx context.Context)) *sweeper {
	return &sweeper{interval: interval, fn: fn}
}

// Start launches the loop. Calling Start on a running sweeper is a no-op.
func (s *sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.fn(ctx)
			}
		}
	}()
}

// Stop cancels the loop without waiting for an in-flight tick. Safe to call
// any number of times.
func (s *sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.cancel = nil
}

// Wait blocks until the most recently started loop has exited or ctx ends.
func (s *sweeper) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether the loop is active.
func (s *sweeper) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}
