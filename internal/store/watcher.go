package store

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	// historyDebounce coalesces fsnotify bursts from a single rewrite into
	// one rehydrate.
	historyDebounce = 250 * time.Millisecond

	// selfWriteWindow is how soon after our own write an event is assumed
	// to be ours and skipped.
	selfWriteWindow = time.Second
)

// HistoryWatcher rehydrates the store when another process rewrites the
// history file, so CLI deletions and prunes reach a running daemon without
// a restart. The store's own appends are recognized and skipped.
type HistoryWatcher struct {
	store *Store
	path  string
	log   *slog.Logger
	fsw   *fsnotify.Watcher

	mu      sync.Mutex
	pending *time.Timer
	running bool
	done    chan struct{}
}

// NewHistoryWatcher creates a watcher for the store's history file.
func NewHistoryWatcher(store *Store, path string, log *slog.Logger) (*HistoryWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &HistoryWatcher{
		store: store,
		path:  path,
		log:   log,
		fsw:   fsw,
		done:  make(chan struct{}),
	}, nil
}

// Start begins watching. Watching the parent directory instead of the file
// survives the atomic rename rewrites the persistence layer does.
func (w *HistoryWatcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.fsw.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	go w.run()
	return nil
}

func (w *HistoryWatcher) run() {
	name := filepath.Base(w.path)

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if time.Since(w.store.LastWriteAt()) < selfWriteWindow {
				continue
			}
			w.scheduleRehydrate()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("history watcher error", "error", err)

		case <-w.done:
			return
		}
	}
}

// scheduleRehydrate arms the debounce timer, restarting it when events keep
// arriving.
func (w *HistoryWatcher) scheduleRehydrate() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(historyDebounce, func() {
		w.log.Debug("history file changed externally, rehydrating", "file", w.path)
		if err := w.store.Hydrate(); err != nil {
			w.log.Warn("failed to rehydrate store", "error", err)
		}
	})
}

// Stop stops the watcher. Idempotent.
func (w *HistoryWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}
	w.running = false
	if w.pending != nil {
		w.pending.Stop()
		w.pending = nil
	}
	close(w.done)
	return w.fsw.Close()
}
