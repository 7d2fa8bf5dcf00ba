package audio

import (
	"context"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"github.com/adrg/xdg"

	"github.com/graylag/shelltray/internal/config"
)

// Request describes the sound a notification asked for. The zero value
// plays the per-urgency fallback.
type Request struct {
	Urgency   int    // Freedesktop urgency level (0, 1, 2)
	SoundFile string // Explicit file from the sound-file hint
	SoundName string // Themed sound from the sound-name hint
	Suppress  bool   // The suppress-sound hint was set
	Muted     bool   // The application's policy disables sound
}

// Manager manages audio playback for notifications with urgency-based sounds.
type Manager struct {
	mu      sync.RWMutex
	logger  *slog.Logger
	player  *Player
	watcher *Watcher
	config  *config.DaemonConfig

	// Urgency to fallback sound path mapping
	sounds map[int]string
}

// NewManager creates a new audio manager.
func NewManager(cfg *config.DaemonConfig, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	player := NewPlayer(logger)

	m := &Manager{
		logger:  logger,
		player:  player,
		watcher: NewWatcher(player, logger),
		config:  cfg,
		sounds:  make(map[int]string),
	}

	m.loadSoundConfig()

	return m
}

// loadSoundConfig loads sounds from the configuration.
func (m *Manager) loadSoundConfig() {
	if m.config == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Config uses 0-100, player uses 0.0-1.0
	if m.config.Sound.Volume > 0 {
		m.player.SetVolume(float64(m.config.Sound.Volume) / 100.0)
	}

	sounds := map[int]string{
		0: m.config.Sound.Sounds.Low,
		1: m.config.Sound.Sounds.Normal,
		2: m.config.Sound.Sounds.Critical,
	}

	for urgency, path := range sounds {
		if path == "" {
			continue
		}

		expanded := expandPath(path)

		if _, err := os.Stat(expanded); err != nil {
			m.logger.Warn("sound file not found", "urgency", urgency, "path", expanded)
			continue
		}

		m.sounds[urgency] = expanded
		m.logger.Debug("loaded sound", "urgency", urgency, "path", expanded)
	}
}

// Start initializes the audio manager and starts the file watcher.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.RLock()
	sounds := make(map[int]string, len(m.sounds))
	maps.Copy(sounds, m.sounds)
	m.mu.RUnlock()

	// Preload all fallback sounds
	paths := make([]string, 0, len(sounds))
	for _, path := range sounds {
		if err := m.player.Preload(path); err != nil {
			m.logger.Warn("failed to preload sound", "path", path, "error", err)
		}
		paths = append(paths, path)
	}
	m.watcher.SetPaths(paths)

	if err := m.watcher.Start(ctx); err != nil {
		return err
	}

	m.logger.Info("audio manager started", "sounds", len(sounds))
	return nil
}

// Stop shuts down the audio manager.
func (m *Manager) Stop() {
	m.watcher.Stop()
	m.player.Close()
	m.logger.Debug("audio manager stopped")
}

// PlayForNotification plays the sound for a notification. A notification is
// silent when sound is disabled globally, suppressed by a hint, or muted by
// the application's policy. Otherwise the sound-file hint wins, then the
// sound-name hint resolved against the freedesktop sound theme, then the
// per-urgency fallback.
func (m *Manager) PlayForNotification(req Request) error {
	m.mu.RLock()
	enabled := m.config != nil && m.config.Sound.Enabled
	m.mu.RUnlock()

	if !enabled || req.Suppress || req.Muted {
		return nil
	}

	if req.SoundFile != "" {
		return m.player.Play(req.SoundFile)
	}

	if req.SoundName != "" {
		if path := ThemeSoundPath(req.SoundName); path != "" {
			return m.player.Play(path)
		}
		m.logger.Debug("themed sound not found", "name", req.SoundName)
	}

	return m.PlayForUrgency(req.Urgency)
}

// PlayForUrgency plays the fallback sound configured for the given urgency.
func (m *Manager) PlayForUrgency(urgency int) error {
	m.mu.RLock()
	enabled := m.config != nil && m.config.Sound.Enabled
	path, ok := m.sounds[urgency]
	m.mu.RUnlock()

	if !enabled {
		return nil
	}
	if !ok {
		m.logger.Debug("no sound configured for urgency", "urgency", urgency)
		return nil
	}

	return m.player.Play(path)
}

// PlayFile plays a specific sound file.
func (m *Manager) PlayFile(path string) error {
	m.mu.RLock()
	enabled := m.config != nil && m.config.Sound.Enabled
	m.mu.RUnlock()

	if !enabled {
		return nil
	}
	return m.player.Play(path)
}

// SetVolume sets the playback volume (0.0 to 1.0).
func (m *Manager) SetVolume(volume float64) {
	m.player.SetVolume(volume)
}

// GetVolume returns the current volume.
func (m *Manager) GetVolume() float64 {
	return m.player.GetVolume()
}

// Reload reloads the sound configuration.
func (m *Manager) Reload() {
	m.player.ClearCache()
	m.loadSoundConfig()

	// Re-preload and watch sounds
	m.mu.RLock()
	sounds := make(map[int]string, len(m.sounds))
	maps.Copy(sounds, m.sounds)
	m.mu.RUnlock()

	paths := make([]string, 0, len(sounds))
	for _, path := range sounds {
		if err := m.player.Preload(path); err != nil {
			m.logger.Warn("failed to preload sound on reload", "path", path, "error", err)
		}
		paths = append(paths, path)
	}
	m.watcher.SetPaths(paths)

	m.logger.Debug("audio manager reloaded")
}

// UpdateConfig updates the configuration and reloads sounds.
// This is called when the config file is hot-reloaded.
func (m *Manager) UpdateConfig(cfg *config.DaemonConfig) {
	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()

	m.logger.Debug("audio manager config updated")
	m.Reload()
}

// themeSoundExtensions are tried in order when resolving a themed sound.
var themeSoundExtensions = []string{".oga", ".ogg", ".wav"}

// ThemeSoundPath resolves a freedesktop sound theme name like
// "message-new-instant" to a file path, or returns "" when not installed.
func ThemeSoundPath(name string) string {
	if name == "" {
		return ""
	}

	dirs := []string{filepath.Join(xdg.DataHome, "sounds")}
	for _, d := range xdg.DataDirs {
		dirs = append(dirs, filepath.Join(d, "sounds"))
	}

	for _, dir := range dirs {
		for _, ext := range themeSoundExtensions {
			path := filepath.Join(dir, "freedesktop", "stereo", name+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}
