package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/pelletier/go-toml/v2"

	"github.com/graylag/shelltray/internal/notify"
)

// Duration is a time.Duration that can be unmarshaled from human-readable strings.
// Supports formats like "5s", "10s", "1m", "1h30m", or integer milliseconds for backwards compatibility.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML parsing.
func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)

	// Try parsing as integer (milliseconds) for backwards compatibility
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}

	// Parse as duration string (e.g., "5s", "1m", "1h30m")
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: must be like '5s', '1m', '1h30m' or milliseconds: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalText implements encoding.TextMarshaler for TOML output.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Milliseconds returns the duration in milliseconds.
func (d Duration) Milliseconds() int {
	return int(time.Duration(d) / time.Millisecond)
}

// Std returns the duration as a standard time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// DaemonConfig holds the daemon configuration.
type DaemonConfig struct {
	Server  ServerConfig  `toml:"server"`
	Tray    TrayConfig    `toml:"tray"`
	Sound   SoundConfig   `toml:"sound"`
	DND     DNDConfig     `toml:"dnd"`
	History HistoryConfig `toml:"history"`
	Policy  PolicyTable   `toml:"policy"`
	Logging LoggingConfig `toml:"logging"`
}

// ServerConfig identifies the daemon on the bus.
type ServerConfig struct {
	// Name is reported via GetServerInformation.
	Name string `toml:"name"`
	// Vendor is reported via GetServerInformation.
	Vendor string `toml:"vendor"`
}

// TrayConfig controls banner queueing and auto-hide behaviour.
type TrayConfig struct {
	// MaxQueue caps pending banners, counting the one currently shown.
	// Critical notifications bypass the cap. 0 means the built-in default.
	MaxQueue int `toml:"max_queue"`
	// MaxPerSource caps live notifications per application; the oldest is
	// expired when an application exceeds it. 0 means the built-in default.
	MaxPerSource int `toml:"max_per_source"`
	// Timeouts are the per-urgency auto-hide durations. Critical banners
	// never auto-hide.
	Timeouts TimeoutSet `toml:"timeouts"`
}

// TimeoutSet holds per-urgency auto-hide durations. Zero means the built-in
// default.
type TimeoutSet struct {
	Normal Duration `toml:"normal"`
	High   Duration `toml:"high"`
}

// SoundConfig controls audible notification feedback.
type SoundConfig struct {
	// Enabled controls whether any sound is played at all.
	Enabled bool `toml:"enabled"`
	// Volume in percent (0-100).
	Volume int `toml:"volume"`
	// Sounds are the per-urgency fallback sound files, used when a
	// notification carries no sound hint of its own.
	Sounds SoundSet `toml:"sounds"`
}

// SoundSet holds per-urgency sound file paths. Empty means silent.
type SoundSet struct {
	Low      string `toml:"low"`
	Normal   string `toml:"normal"`
	Critical string `toml:"critical"`
}

// DNDConfig controls do-not-disturb behaviour.
type DNDConfig struct {
	// Enabled suppresses banners entirely while set.
	Enabled bool `toml:"enabled"`
	// CriticalBypass lets critical notifications show banners even while
	// do-not-disturb is enabled.
	CriticalBypass bool `toml:"critical_bypass"`
}

// HistoryConfig controls the on-disk notification history.
type HistoryConfig struct {
	Enabled bool `toml:"enabled"`
	// Path to the history file. Empty means the default under XDG data home.
	Path string `toml:"path"`
	// MaxEntries caps how many notifications are retained. 0 means unlimited.
	MaxEntries int `toml:"max_entries"`
}

// LoggingConfig controls daemon logging.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level"`
}

// PolicyTable maps applications to presentation policies.
type PolicyTable struct {
	// Default applies to every application without an explicit entry.
	Default PolicyConfig `toml:"default"`
	// Apps is keyed by desktop entry ID, e.g. "org.example.Mail".
	Apps map[string]PolicyConfig `toml:"apps"`
}

// PolicyConfig is the on-disk shape of a presentation policy.
type PolicyConfig struct {
	Enable              bool `toml:"enable"`
	EnableSound         bool `toml:"enable_sound"`
	ShowBanners         bool `toml:"show_banners"`
	ForceExpanded       bool `toml:"force_expanded"`
	ShowInLockScreen    bool `toml:"show_in_lock_screen"`
	DetailsInLockScreen bool `toml:"details_in_lock_screen"`
}

// ToPolicy converts the on-disk shape into a presentation policy.
func (p PolicyConfig) ToPolicy() *notify.Policy {
	return &notify.Policy{
		Enable:              p.Enable,
		EnableSound:         p.EnableSound,
		ShowBanners:         p.ShowBanners,
		ForceExpanded:       p.ForceExpanded,
		ShowInLockScreen:    p.ShowInLockScreen,
		DetailsInLockScreen: p.DetailsInLockScreen,
	}
}

// DefaultDaemonConfig returns the default daemon configuration.
func DefaultDaemonConfig() *DaemonConfig {
	return &DaemonConfig{
		Server: ServerConfig{
			Name:   "shelltrayd",
			Vendor: "graylag",
		},
		Tray: TrayConfig{
			MaxQueue:     3,
			MaxPerSource: 3,
			Timeouts: TimeoutSet{
				Normal: Duration(4 * time.Second),
				High:   Duration(4 * time.Second),
			},
		},
		Sound: SoundConfig{
			Enabled: true,
			Volume:  80,
		},
		DND: DNDConfig{
			Enabled:        false,
			CriticalBypass: true,
		},
		History: HistoryConfig{
			Enabled:    true,
			MaxEntries: 1000,
		},
		Policy: PolicyTable{
			Default: PolicyConfig{
				Enable:           true,
				EnableSound:      true,
				ShowBanners:      true,
				ShowInLockScreen: true,
			},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// PolicyLookup builds a policy lookup table from the configuration.
func (c *DaemonConfig) PolicyLookup() *notify.StaticPolicyLookup {
	lookup := &notify.StaticPolicyLookup{
		Apps:     make(map[string]*notify.Policy, len(c.Policy.Apps)),
		Fallback: c.Policy.Default.ToPolicy(),
	}
	for app, pc := range c.Policy.Apps {
		lookup.Apps[app] = pc.ToPolicy()
	}
	return lookup
}

// HistoryPath returns the configured history file path, falling back to the
// default under the XDG data home.
func (c *DaemonConfig) HistoryPath() string {
	if c.History.Path != "" {
		return expandPath(c.History.Path)
	}
	return filepath.Join(xdg.DataHome, "shelltray", "history.jsonl")
}

// SoundForUrgency returns the configured fallback sound file for the given
// urgency, with ~ expanded. Empty means no sound.
func (c *DaemonConfig) SoundForUrgency(urgency notify.Urgency) string {
	var path string
	switch urgency {
	case notify.UrgencyLow:
		path = c.Sound.Sounds.Low
	case notify.UrgencyCritical:
		path = c.Sound.Sounds.Critical
	default:
		path = c.Sound.Sounds.Normal
	}
	return expandPath(path)
}

// DaemonConfigPath returns the path to the daemon configuration file.
func DaemonConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "shelltray", "shelltrayd.toml")
}

// LoadDaemonConfig loads the daemon configuration from disk.
// Missing file returns defaults. Values in the file overlay the defaults.
func LoadDaemonConfig() (*DaemonConfig, error) {
	return LoadDaemonConfigFrom(DaemonConfigPath())
}

// LoadDaemonConfigFrom loads the daemon configuration from the given path.
func LoadDaemonConfigFrom(path string) (*DaemonConfig, error) {
	config := DefaultDaemonConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// SaveDaemonConfig saves the daemon configuration to disk.
func SaveDaemonConfig(config *DaemonConfig) error {
	path := DaemonConfigPath()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write atomically via temp file
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return os.Rename(tmpPath, path)
}

// Validate checks if the configuration is valid.
func (c *DaemonConfig) Validate() error {
	if c.Sound.Volume < 0 || c.Sound.Volume > 100 {
		return fmt.Errorf("volume must be between 0 and 100, got %d", c.Sound.Volume)
	}

	if c.Tray.MaxQueue < 0 {
		return fmt.Errorf("tray max_queue must not be negative, got %d", c.Tray.MaxQueue)
	}

	if c.Tray.MaxPerSource < 0 {
		return fmt.Errorf("tray max_per_source must not be negative, got %d", c.Tray.MaxPerSource)
	}

	if c.History.MaxEntries < 0 {
		return fmt.Errorf("max_entries must not be negative, got %d", c.History.MaxEntries)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level %q, must be one of: debug, info, warn, error", c.Logging.Level)
	}

	return nil
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
