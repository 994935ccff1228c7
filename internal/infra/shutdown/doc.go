// Package shutdown provides graceful shutdown handling for kvstash.
//
// Long-running commands (import --watch) register cleanup hooks and
// block in Wait until SIGINT or SIGTERM arrives. Hooks run in reverse
// registration order under a shared timeout, so a store opened before
// its watcher is closed after it.
//
// Usage:
//
//	h := shutdown.NewHandler(10 * time.Second)
//	h.OnShutdown(func(ctx context.Context) error { return st.Close() })
//	h.OnShutdown(func(ctx context.Context) error { return w.Stop() })
//	return h.Wait()
package shutdown
