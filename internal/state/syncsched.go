package state

import (
	"context"
	"sync"
	"time"

	"billtrack/internal/log"
)

// SyncFunc performs one cloud sync attempt. The function records its own
// outcome in the sync state; the scheduler only logs.
type SyncFunc func(ctx context.Context) error

// stopper is the slice of time.Timer the scheduler needs. Tests swap in
// manual timers through the afterFunc hook.
type stopper interface {
	Stop() bool
}

// SyncScheduler coalesces bursts of mutations into one cloud sync per
// quiet window. Every Schedule call restarts the trailing-edge debounce
// timer; when the timer fires the sync runs unless one is already in
// flight, in which case the firing is dropped and the next mutation arms
// the timer again. No retries here: a failed sync waits for the next
// mutation.
type SyncScheduler struct {
	debounce time.Duration
	syncFn   SyncFunc
	logger   *log.Logger

	afterFunc func(time.Duration, func()) stopper

	mu       sync.Mutex
	timer    stopper
	inflight bool
	stopped  bool
	wg       sync.WaitGroup
}

func NewSyncScheduler(debounce time.Duration, syncFn SyncFunc, logger *log.Logger) *SyncScheduler {
	return &SyncScheduler{
		debounce: debounce,
		syncFn:   syncFn,
		logger:   logger,
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
	}
}

// Schedule arms the debounce window, replacing any pending firing.
func (s *SyncScheduler) Schedule() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.syncFn == nil {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = s.afterFunc(s.debounce, s.fire)
}

// SyncNow runs a sync immediately, bypassing the debounce window. Like a
// timer firing, it is dropped when a sync is already in flight.
func (s *SyncScheduler) SyncNow(ctx context.Context) error {
	if s == nil || s.syncFn == nil {
		return nil
	}
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	if s.inflight {
		s.mu.Unlock()
		s.logger.DebugContext(ctx, "Sync already in flight, skipping manual run")
		return nil
	}
	s.inflight = true
	s.wg.Add(1)
	s.mu.Unlock()

	return s.run(ctx)
}

// Stop cancels any pending firing and waits for an in-flight sync to
// finish, giving up when the context expires.
func (s *SyncScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "Sync scheduler stop timed out")
		return ctx.Err()
	}
}

func (s *SyncScheduler) fire() {
	s.mu.Lock()
	s.timer = nil
	if s.stopped {
		s.mu.Unlock()
		return
	}
	if s.inflight {
		s.mu.Unlock()
		s.logger.Debug("Sync already in flight, dropping scheduled run")
		return
	}
	s.inflight = true
	s.wg.Add(1)
	s.mu.Unlock()

	s.run(context.Background())
}

func (s *SyncScheduler) run(ctx context.Context) error {
	defer func() {
		s.mu.Lock()
		s.inflight = false
		s.mu.Unlock()
		s.wg.Done()
	}()

	if err := s.syncFn(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Cloud sync failed", log.FieldError, err)
		return err
	}
	s.logger.DebugContext(ctx, "Cloud sync completed")
	return nil
}
