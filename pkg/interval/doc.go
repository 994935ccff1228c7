// Package interval provides a cancellable periodic task runner.
//
// A Runner invokes a callback on a fixed period until stopped. The
// callback is never executed concurrently with itself: a tick that
// arrives while a previous invocation is still running is skipped and
// counted rather than queued. Stop cancels the loop and waits for any
// in-flight invocation to finish.
//
// Usage:
//
//	r, err := interval.New(5*time.Second, store.flushTick)
//	if err != nil {
//		return err
//	}
//	r.Start()
//	defer r.Stop()
//
// A Runner's lifecycle is independent of whatever owns the callback;
// owners stop the runner before releasing the resources the callback
// touches.
package interval
