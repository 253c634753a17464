package config

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"pipeboard/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches .pipeboard/config.yaml for changes and reloads it.
// Subscribers receive the freshly parsed config after each settled change,
// so long-lived components (cache TTL, logging) can pick up edits without a
// restart.
type Watcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	workspace   string
	configPath  string
	subscribers []func(*Config)
	pending     time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
}

// NewWatcher creates a Watcher for the given workspace.
// The watcher monitors the directory holding config.yaml so editor
// save-via-rename still produces events.
func NewWatcher(workspace string) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		watcher:     watcher,
		workspace:   workspace,
		configPath:  Path(workspace),
		debounceDur: 500 * time.Millisecond, // Debounce rapid saves
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Subscribe registers a callback invoked with every reloaded config.
// Must be called before Start.
func (w *Watcher) Subscribe(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.subscribers = append(w.subscribers, fn)
}

// Start begins watching the config directory.
// This method is non-blocking; it starts the watcher in a goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil // Already running
	}
	w.running = true
	w.mu.Unlock()

	dir := filepath.Dir(w.configPath)
	if err := w.watcher.Add(dir); err != nil {
		// Directory may not exist yet - config defaults still apply
		logging.Get(logging.CategoryBoot).Warn("config watcher: initial watch failed (dir may not exist): %v", err)
	} else {
		logging.Boot("config watcher: watching %s", dir)
	}

	go w.run(ctx)

	return nil
}

// Stop stops the watcher and waits for cleanup.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		logging.Get(logging.CategoryBoot).Error("config watcher: error closing watcher: %v", err)
	}
}

// run is the main event loop for the watcher.
func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	debounceTicker := time.NewTicker(100 * time.Millisecond)
	defer debounceTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryBoot).Error("config watcher error: %v", err)

		case <-debounceTicker.C:
			w.processPending()
		}
	}
}

// handleEvent records a config file event for debounced processing.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !strings.HasSuffix(event.Name, filepath.Base(w.configPath)) {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return // Ignore chmod, remove, etc.
	}

	logging.BootDebug("config watcher: %s changed", event.Name)

	w.mu.Lock()
	w.pending = time.Now()
	w.mu.Unlock()
}

// processPending reloads the config once edits have settled past the
// debounce window.
func (w *Watcher) processPending() {
	w.mu.Lock()
	if w.pending.IsZero() || time.Since(w.pending) < w.debounceDur {
		w.mu.Unlock()
		return
	}
	w.pending = time.Time{}
	subs := make([]func(*Config), len(w.subscribers))
	copy(subs, w.subscribers)
	w.mu.Unlock()

	cfg, err := Load(w.configPath)
	if err != nil {
		logging.Get(logging.CategoryBoot).Error("config watcher: reload failed: %v", err)
		return
	}
	if err := cfg.Validate(); err != nil {
		logging.Get(logging.CategoryBoot).Warn("config watcher: ignoring invalid config: %v", err)
		return
	}

	logging.Boot("config watcher: reloaded %s", w.configPath)
	if err := logging.ReloadConfig(); err != nil {
		logging.Get(logging.CategoryBoot).Warn("config watcher: logging reload failed: %v", err)
	}

	for _, fn := range subs {
		fn(cfg)
	}
}
