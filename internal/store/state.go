package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adrg/xdg"
)

// DnDTrigger represents what triggered the do-not-disturb state change.
type DnDTrigger string

const (
	// DnDTriggerUser indicates a user-initiated change (CLI).
	DnDTriggerUser DnDTrigger = "user"
	// DnDTriggerConfig indicates the configuration file set the state.
	DnDTriggerConfig DnDTrigger = "config"
	// DnDTriggerSystem indicates a system event (e.g. session lock).
	DnDTriggerSystem DnDTrigger = "system"
)

// DnDTransition records details about a do-not-disturb state change.
type DnDTransition struct {
	Trigger   DnDTrigger `json:"trigger"`
	Reason    string     `json:"reason"`           // Human-readable reason (e.g. "dnd on")
	Source    string     `json:"source,omitempty"` // Source identifier (e.g. "cli", "shelltrayd")
	Timestamp int64      `json:"timestamp"`
}

// SharedState contains runtime state shared between the CLI and the daemon.
// This is persisted to the state file under the XDG data home.
type SharedState struct {
	// Do Not Disturb
	DnDEnabled bool `json:"dnd_enabled"`

	// Details of the last state change
	DnDLastTransition *DnDTransition `json:"dnd_last_transition,omitempty"`

	// Statistics, for status bars
	LastNotificationAt int64 `json:"last_notification_at,omitempty"`

	// Version for compatibility
	SchemaVersion int `json:"schema_version"`
}

// CurrentSchemaVersion is the current version of the state schema.
const CurrentSchemaVersion = 1

// stateFileMutex protects concurrent access to the state file.
var stateFileMutex sync.RWMutex

// DefaultSharedState returns a new SharedState with default values.
func DefaultSharedState() *SharedState {
	return &SharedState{
		DnDEnabled:    false,
		SchemaVersion: CurrentSchemaVersion,
	}
}

// StateFilePath returns the path to the state file.
func StateFilePath() string {
	return filepath.Join(xdg.DataHome, "shelltray", "state.json")
}

// LoadSharedState loads the shared state from the default path.
// If the file doesn't exist, returns a default state.
func LoadSharedState() (*SharedState, error) {
	return LoadSharedStateFrom(StateFilePath())
}

// LoadSharedStateFrom loads the shared state from an explicit path.
func LoadSharedStateFrom(path string) (*SharedState, error) {
	stateFileMutex.RLock()
	defer stateFileMutex.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSharedState(), nil
		}
		return nil, err
	}

	var state SharedState
	if err := json.Unmarshal(data, &state); err != nil {
		// If the file is corrupted, return default state
		return DefaultSharedState(), nil
	}

	if state.SchemaVersion == 0 {
		state.SchemaVersion = CurrentSchemaVersion
	}

	return &state, nil
}

// SaveSharedState saves the shared state to disk.
func SaveSharedState(state *SharedState) error {
	stateFileMutex.Lock()
	defer stateFileMutex.Unlock()

	path := StateFilePath()

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	if state.SchemaVersion == 0 {
		state.SchemaVersion = CurrentSchemaVersion
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	// Write atomically via temp file
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}

	return os.Rename(tmpPath, path)
}

// SetDnD updates the do-not-disturb state with transition tracking.
func (s *SharedState) SetDnD(enabled bool, trigger DnDTrigger, reason, source string) {
	s.DnDEnabled = enabled
	s.DnDLastTransition = &DnDTransition{
		Trigger:   trigger,
		Reason:    reason,
		Source:    source,
		Timestamp: time.Now().Unix(),
	}
}

// ToggleDnD toggles the do-not-disturb state with transition tracking.
// Returns the new state (true = enabled).
func (s *SharedState) ToggleDnD(trigger DnDTrigger, reason, source string) bool {
	s.SetDnD(!s.DnDEnabled, trigger, reason, source)
	return s.DnDEnabled
}

// UpdateLastNotification updates the last notification timestamp.
func (s *SharedState) UpdateLastNotification() {
	s.LastNotificationAt = time.Now().Unix()
}
