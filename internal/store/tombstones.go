package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// tombstoneMaxAge is how long a deletion marker outlives its record. Once a
// tombstone is older than any history entry could plausibly be, nothing is
// left to resurrect and it is dropped on the next save.
const tombstoneMaxAge = 90 * 24 * time.Hour

// TombstoneFile persists deletion markers so that records deleted via the
// CLI stay deleted when the daemon rehydrates from the history file. Each
// marker carries the content hash of the deleted record and when it was
// deleted.
type TombstoneFile struct {
	path   string
	maxAge time.Duration
}

type tombstoneEntry struct {
	Hash      string    `json:"hash"`
	DeletedAt time.Time `json:"deleted_at"`
}

type tombstoneData struct {
	SchemaVersion int              `json:"schema_version"`
	Entries       []tombstoneEntry `json:"entries"`

	// Hashes is the legacy flat list, read once for migration.
	Hashes []string `json:"hashes,omitempty"`
}

// NewTombstoneFile creates a tombstone file handle.
func NewTombstoneFile(path string) *TombstoneFile {
	return &TombstoneFile{path: path, maxAge: tombstoneMaxAge}
}

// SetMaxAge overrides how long markers are retained. Zero or negative
// disables expiry.
func (t *TombstoneFile) SetMaxAge(age time.Duration) {
	t.maxAge = age
}

// Load reads the deletion markers, returning their content hashes. Expired
// markers are filtered out here and dropped for good on the next Save.
func (t *TombstoneFile) Load() ([]string, error) {
	entries, err := t.load()
	if err != nil {
		return nil, err
	}

	hashes := make([]string, 0, len(entries))
	for _, e := range t.compact(entries) {
		hashes = append(hashes, e.Hash)
	}
	if len(hashes) == 0 {
		return nil, nil
	}
	return hashes, nil
}

func (t *TombstoneFile) load() ([]tombstoneEntry, error) {
	data, err := os.ReadFile(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var td tombstoneData
	if err := json.Unmarshal(data, &td); err != nil {
		return nil, err
	}

	entries := td.Entries
	for _, hash := range td.Hashes {
		// Legacy entries carry no deletion time; stamp them now so they
		// age out from here on.
		entries = append(entries, tombstoneEntry{Hash: hash, DeletedAt: time.Now()})
	}
	return entries, nil
}

// compact drops expired and duplicate markers.
func (t *TombstoneFile) compact(entries []tombstoneEntry) []tombstoneEntry {
	seen := make(map[string]bool, len(entries))
	kept := entries[:0]
	for _, e := range entries {
		if seen[e.Hash] {
			continue
		}
		if t.maxAge > 0 && !e.DeletedAt.IsZero() && time.Since(e.DeletedAt) > t.maxAge {
			continue
		}
		seen[e.Hash] = true
		kept = append(kept, e)
	}
	return kept
}

// Save writes the given content hashes as deletion markers, keeping the
// deletion time of markers already on disk and stamping new ones now.
// The write is atomic.
func (t *TombstoneFile) Save(hashes []string) error {
	existing, err := t.load()
	if err != nil {
		// A corrupt file is replaced rather than kept fatal; the hashes
		// being saved are the authoritative set.
		existing = nil
	}
	deletedAt := make(map[string]time.Time, len(existing))
	for _, e := range existing {
		deletedAt[e.Hash] = e.DeletedAt
	}

	entries := make([]tombstoneEntry, 0, len(hashes))
	for _, hash := range hashes {
		when, ok := deletedAt[hash]
		if !ok || when.IsZero() {
			when = time.Now()
		}
		entries = append(entries, tombstoneEntry{Hash: hash, DeletedAt: when})
	}

	return t.write(t.compact(entries))
}

// Append adds a single deletion marker.
func (t *TombstoneFile) Append(hash string) error {
	entries, err := t.load()
	if err != nil {
		return err
	}

	for _, e := range entries {
		if e.Hash == hash {
			return nil
		}
	}

	entries = append(entries, tombstoneEntry{Hash: hash, DeletedAt: time.Now()})
	return t.write(t.compact(entries))
}

func (t *TombstoneFile) write(entries []tombstoneEntry) error {
	if err := os.MkdirAll(filepath.Dir(t.path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(tombstoneData{
		SchemaVersion: 1,
		Entries:       entries,
	}, "", "  ")
	if err != nil {
		return err
	}

	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, t.path)
}
