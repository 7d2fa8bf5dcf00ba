package audio

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSoundFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("riff"), 0600))
	return path
}

func seedCache(p *Player, path string) {
	p.cacheMutex.Lock()
	p.cache[path] = &cachedSound{path: path}
	p.cacheMutex.Unlock()
}

func cached(p *Player, path string) bool {
	p.cacheMutex.RLock()
	defer p.cacheMutex.RUnlock()
	_, ok := p.cache[path]
	return ok
}

func TestWatcherSweepInvalidatesChangedFile(t *testing.T) {
	player := NewPlayer(nil)
	w := NewWatcher(player, nil)

	path := writeSoundFile(t, t.TempDir(), "ding.wav")
	w.SetPaths([]string{path})
	seedCache(player, path)

	w.sweep()
	assert.True(t, cached(player, path), "unchanged file stays cached")

	require.NoError(t, os.Chtimes(path, time.Now(), time.Now().Add(time.Minute)))
	w.sweep()
	assert.False(t, cached(player, path))
}

func TestWatcherSweepInvalidatesDeletedFile(t *testing.T) {
	player := NewPlayer(nil)
	w := NewWatcher(player, nil)

	path := writeSoundFile(t, t.TempDir(), "ding.wav")
	w.SetPaths([]string{path})
	seedCache(player, path)

	require.NoError(t, os.Remove(path))
	w.sweep()
	assert.False(t, cached(player, path))
}

func TestWatcherSetPathsInvalidatesDropped(t *testing.T) {
	player := NewPlayer(nil)
	w := NewWatcher(player, nil)

	dir := t.TempDir()
	keep := writeSoundFile(t, dir, "keep.wav")
	drop := writeSoundFile(t, dir, "drop.wav")
	w.SetPaths([]string{keep, drop})
	seedCache(player, keep)
	seedCache(player, drop)

	w.SetPaths([]string{keep})

	assert.True(t, cached(player, keep))
	assert.False(t, cached(player, drop), "dropped path is evicted from the cache")
}

func TestWatcherSetPathsIgnoresEmpty(t *testing.T) {
	w := NewWatcher(NewPlayer(nil), nil)
	w.SetPaths([]string{"", ""})

	w.mu.Lock()
	defer w.mu.Unlock()
	assert.Empty(t, w.modTimes)
}

func TestWatcherStartStopIdempotent(t *testing.T) {
	w := NewWatcher(NewPlayer(nil), nil)
	w.SetPollInterval(10 * time.Millisecond)

	ctx := context.Background()
	require.NoError(t, w.Start(ctx))
	require.NoError(t, w.Start(ctx), "second start is a no-op")

	w.Stop()
	w.Stop()
}
