// Package config handles configuration file loading and parsing.
package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/pelletier/go-toml/v2"
)

// Default configuration values.
const (
	DefaultSince     = "48h"
	DefaultSortField = "timestamp"
	DefaultSortOrder = "desc"
	DefaultListTmpl  = "{{.Index}} | {{.RelativeTime}} | {{.AppName}} | {{truncate .Summary 60}}"
	DefaultFullTmpl  = "{{.AppName}}: {{.Summary}} ({{.RelativeTime}})\n{{.Body}}\n"
)

// Config represents the shelltray CLI configuration.
type Config struct {
	Filter    FilterConfig    `toml:"filter"`
	Sort      SortConfig      `toml:"sort"`
	Send      SendConfig      `toml:"send"`
	Templates TemplatesConfig `toml:"templates"`
}

// FilterConfig holds default history filtering options.
type FilterConfig struct {
	Since string `toml:"since"` // Default time filter (0 = all time)
	Limit int    `toml:"limit"` // Max notifications (0 = unlimited)
}

// SortConfig holds default history sorting options.
type SortConfig struct {
	Field string `toml:"field"` // timestamp, app, urgency
	Order string `toml:"order"` // asc, desc
}

// SendConfig holds defaults for the send command.
type SendConfig struct {
	AppName string `toml:"app_name"` // App name reported to the daemon
	Urgency string `toml:"urgency"`  // low, normal, critical
}

// TemplatesConfig holds history output templates.
type TemplatesConfig struct {
	List string `toml:"list"`
	Full string `toml:"full"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Filter: FilterConfig{
			Since: DefaultSince,
			Limit: 0,
		},
		Sort: SortConfig{
			Field: DefaultSortField,
			Order: DefaultSortOrder,
		},
		Send: SendConfig{
			AppName: "shelltray",
			Urgency: "normal",
		},
		Templates: TemplatesConfig{
			List: DefaultListTmpl,
			Full: DefaultFullTmpl,
		},
	}
}

// ConfigPath returns the path to the CLI config file.
func ConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "shelltray", "config.toml")
}

// DataPath returns the path to the data directory.
func DataPath() string {
	return filepath.Join(xdg.DataHome, "shelltray")
}

// HistoryPath returns the path to the history JSONL file.
func HistoryPath() string {
	return filepath.Join(DataPath(), "history.jsonl")
}

// TombstonePath returns the path to the tombstone file.
func TombstonePath() string {
	return filepath.Join(DataPath(), "tombstones.json")
}

// LoadConfig loads configuration from the specified path.
// If path is empty, uses the default config path.
// Returns default config if file doesn't exist.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return config, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, config); err != nil {
		return nil, err
	}

	return config, nil
}

// Save writes the configuration to the specified path.
// If path is empty, uses the default config path.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ConfigPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	return os.MkdirAll(DataPath(), 0700)
}
