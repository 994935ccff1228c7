// Package interval provides a cancellable periodic task runner.
package interval

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Runner invokes a callback on a fixed period.
type Runner struct {
	period time.Duration
	fn     func()

	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup

	started  atomic.Bool
	stopOnce sync.Once

	runMu   sync.Mutex // held while fn executes
	stopped bool       // guarded by runMu

	skipped atomic.Uint64
	runs    atomic.Uint64
}

// New creates a runner that calls fn every period once started.
//
// The period must be positive and fn must be non-nil; both are
// validated here so a misconfigured runner never constructs.
func New(period time.Duration, fn func()) (*Runner, error) {
	if period <= 0 {
		return nil, fmt.Errorf("interval: period must be positive, got %v", period)
	}
	if fn == nil {
		return nil, fmt.Errorf("interval: fn is required")
	}

	return &Runner{
		period: period,
		fn:     fn,
		stopCh: make(chan struct{}),
	}, nil
}

// Start launches the ticker loop. Calling Start more than once has no
// effect.
func (r *Runner) Start() {
	if !r.started.CompareAndSwap(false, true) {
		return
	}

	r.ticker = time.NewTicker(r.period)
	r.wg.Add(1)

	go func() {
		defer r.wg.Done()
		for {
			select {
			case <-r.ticker.C:
				r.invoke()
			case <-r.stopCh:
				return
			}
		}
	}()
}

// Trigger runs the callback immediately if no invocation is in flight.
// It returns true if the callback ran, false if it was skipped.
func (r *Runner) Trigger() bool {
	return r.invoke()
}

// invoke runs fn behind the non-reentrant guard. Overlapping calls are
// skipped, never queued.
func (r *Runner) invoke() bool {
	if !r.runMu.TryLock() {
		r.skipped.Add(1)
		return false
	}
	defer r.runMu.Unlock()

	if r.stopped {
		return false
	}

	r.fn()
	r.runs.Add(1)
	return true
}

// Stop cancels the loop and waits for an in-flight invocation to
// finish. After Stop returns the callback will not run again. Stop is
// idempotent and safe to call before Start.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
		if r.ticker != nil {
			r.ticker.Stop()
		}
		r.wg.Wait()

		r.runMu.Lock()
		r.stopped = true
		r.runMu.Unlock()
	})
}

// Runs returns the number of completed invocations.
func (r *Runner) Runs() uint64 {
	return r.runs.Load()
}

// Skipped returns the number of invocations skipped because a previous
// one was still running.
func (r *Runner) Skipped() uint64 {
	return r.skipped.Load()
}
