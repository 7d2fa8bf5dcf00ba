package daemon

import (
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/graylag/shelltray/internal/store"
)

const defaultStatePollInterval = 2 * time.Second

// StateWatcher polls the shared state file for external changes, such as
// the CLI toggling do-not-disturb. Polling is used because the file is
// rewritten atomically and may not exist yet when the daemon starts.
type StateWatcher struct {
	log      *slog.Logger
	path     string
	interval time.Duration
	onChange func(*store.SharedState)

	mu      sync.Mutex
	lastMod time.Time
	done    chan struct{}
	running bool
}

// NewStateWatcher creates a watcher for the default state file path.
func NewStateWatcher(log *slog.Logger, onChange func(*store.SharedState)) *StateWatcher {
	if log == nil {
		log = slog.Default()
	}
	return &StateWatcher{
		log:      log,
		path:     store.StateFilePath(),
		interval: defaultStatePollInterval,
		onChange: onChange,
	}
}

// SetPollInterval overrides the poll interval. Only effective before Start.
func (w *StateWatcher) SetPollInterval(interval time.Duration) {
	if interval > 0 {
		w.interval = interval
	}
}

// Start begins polling in a background goroutine.
func (w *StateWatcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	if info, err := os.Stat(w.path); err == nil {
		w.lastMod = info.ModTime()
	}
	w.done = make(chan struct{})
	w.running = true
	go w.poll(w.done)
}

// Stop halts polling. Safe to call twice.
func (w *StateWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	close(w.done)
	w.running = false
}

func (w *StateWatcher) poll(done chan struct{}) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			w.check()
		}
	}
}

func (w *StateWatcher) check() {
	info, err := os.Stat(w.path)
	if err != nil {
		return
	}

	w.mu.Lock()
	changed := info.ModTime().After(w.lastMod)
	if changed {
		w.lastMod = info.ModTime()
	}
	w.mu.Unlock()
	if !changed {
		return
	}

	state, err := store.LoadSharedStateFrom(w.path)
	if err != nil {
		w.log.Warn("failed to reload shared state", "error", err)
		return
	}
	w.log.Debug("shared state changed", "dnd", state.DnDEnabled)
	w.onChange(state)
}
