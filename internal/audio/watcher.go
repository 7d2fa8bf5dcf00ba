package audio

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"
)

const defaultCachePollInterval = 2 * time.Second

// Watcher invalidates the player's decoded-buffer cache when a configured
// sound file changes on disk. Sound files can live anywhere, so modification
// times are polled rather than watching every parent directory. The watched
// set is replaced wholesale on config reload via SetPaths.
type Watcher struct {
	logger *slog.Logger
	player *Player

	mu       sync.Mutex
	modTimes map[string]time.Time
	interval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewWatcher creates a cache watcher bound to the player.
func NewWatcher(player *Player, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		logger:   logger,
		player:   player,
		modTimes: make(map[string]time.Time),
		interval: defaultCachePollInterval,
	}
}

// SetPollInterval overrides the polling interval. Takes effect on the next
// Start.
func (w *Watcher) SetPollInterval(interval time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.interval = interval
}

// SetPaths replaces the watched set. Paths that drop out have their cache
// entries invalidated; new paths are stamped with their current mtime. Empty
// strings are ignored.
func (w *Watcher) SetPaths(paths []string) {
	next := make(map[string]time.Time, len(paths))
	for _, path := range paths {
		if path == "" {
			continue
		}
		var mod time.Time
		if info, err := os.Stat(path); err == nil {
			mod = info.ModTime()
		}
		next[path] = mod
	}

	w.mu.Lock()
	prev := w.modTimes
	w.modTimes = next
	w.mu.Unlock()

	if w.player == nil {
		return
	}
	for path := range prev {
		if _, still := next[path]; !still {
			w.player.InvalidateCache(path)
		}
	}
}

// Start begins polling. Calling Start on a running watcher is a no-op.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return nil
	}
	ctx, w.cancel = context.WithCancel(ctx)
	done := make(chan struct{})
	w.done = done
	interval := w.interval
	w.mu.Unlock()

	go w.poll(ctx, interval, done)

	w.logger.Debug("sound cache watcher started", "interval", interval)
	return nil
}

// Stop stops polling and waits for the loop to exit. Idempotent.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	w.logger.Debug("sound cache watcher stopped")
}

func (w *Watcher) poll(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep()
		}
	}
}

// sweep invalidates the cache entry of every watched file whose mtime moved
// or that disappeared since the last pass.
func (w *Watcher) sweep() {
	w.mu.Lock()
	paths := make(map[string]time.Time, len(w.modTimes))
	for path, mod := range w.modTimes {
		paths[path] = mod
	}
	w.mu.Unlock()

	for path, last := range paths {
		info, err := os.Stat(path)

		var current time.Time
		if err == nil {
			current = info.ModTime()
		}
		if current.Equal(last) {
			continue
		}
		if err != nil && last.IsZero() {
			continue
		}

		w.logger.Debug("sound file changed, invalidating cache", "path", path)
		w.mu.Lock()
		w.modTimes[path] = current
		w.mu.Unlock()
		if w.player != nil {
			w.player.InvalidateCache(path)
		}
	}
}
