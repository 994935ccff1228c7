// Package fswatch watches directories for new and changed files.
package fswatch

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports files written or created under watched directories.
type Watcher struct {
	watcher   *fsnotify.Watcher
	callbacks []func(string)
	mu        sync.RWMutex
	done      chan struct{}
	logger    *slog.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger for the watcher.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// New creates a directory watcher.
func New(opts ...Option) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fswatch: %w", err)
	}

	w := &Watcher{
		watcher: fw,
		done:    make(chan struct{}),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Add starts watching a directory. Files already present are not
// reported; only subsequent writes and creations fire callbacks.
func (w *Watcher) Add(dir string) error {
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("fswatch: watch %s: %w", dir, err)
	}
	w.logger.Debug("watching directory", "path", dir)
	return nil
}

// OnChange registers a callback invoked with the path of each written
// or created file. Callbacks run on the watcher goroutine; slow work
// belongs elsewhere.
func (w *Watcher) OnChange(callback func(string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Start processes events until Stop is called. It blocks; use
// StartAsync to run in the background.
func (w *Watcher) Start() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.logger.Debug("file changed",
					"file", event.Name,
					"op", event.Op.String())
				w.notify(event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watch error", "error", err)
		case <-w.done:
			return
		}
	}
}

// StartAsync starts event processing in a goroutine.
func (w *Watcher) StartAsync() {
	go w.Start()
}

// Stop ends event processing and releases the watcher.
func (w *Watcher) Stop() error {
	close(w.done)
	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("fswatch: close: %w", err)
	}
	return nil
}

func (w *Watcher) notify(path string) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, cb := range w.callbacks {
		cb(path)
	}
}
