package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTombstoneFile(t *testing.T) *TombstoneFile {
	t.Helper()
	return NewTombstoneFile(filepath.Join(t.TempDir(), "tombstones.json"))
}

func TestTombstoneFileRoundTrip(t *testing.T) {
	tf := newTombstoneFile(t)

	require.NoError(t, tf.Save([]string{"aaa", "bbb"}))

	hashes, err := tf.Load()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"aaa", "bbb"}, hashes)
}

func TestTombstoneFileMissingIsEmpty(t *testing.T) {
	tf := newTombstoneFile(t)

	hashes, err := tf.Load()
	require.NoError(t, err)
	assert.Empty(t, hashes)
}

func TestTombstoneFileMigratesLegacyHashList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tombstones.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"hashes":["old1","old2"]}`), 0600))

	tf := NewTombstoneFile(path)
	hashes, err := tf.Load()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"old1", "old2"}, hashes)

	// A save rewrites the file in the current schema.
	require.NoError(t, tf.Save(hashes))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var td tombstoneData
	require.NoError(t, json.Unmarshal(data, &td))
	assert.Equal(t, 1, td.SchemaVersion)
	assert.Len(t, td.Entries, 2)
	assert.Empty(t, td.Hashes)
	for _, e := range td.Entries {
		assert.False(t, e.DeletedAt.IsZero(), "migrated entries are stamped")
	}
}

func TestTombstoneFileExpiresOldMarkers(t *testing.T) {
	tf := newTombstoneFile(t)
	require.NoError(t, tf.Save([]string{"fresh"}))

	// Plant a marker deleted long ago next to the fresh one.
	entries, err := tf.load()
	require.NoError(t, err)
	entries = append(entries, tombstoneEntry{
		Hash:      "ancient",
		DeletedAt: time.Now().Add(-200 * 24 * time.Hour),
	})
	require.NoError(t, tf.write(entries))

	hashes, err := tf.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, hashes)
}

func TestTombstoneFileExpiryDisabled(t *testing.T) {
	tf := newTombstoneFile(t)
	tf.SetMaxAge(0)

	require.NoError(t, tf.write([]tombstoneEntry{
		{Hash: "ancient", DeletedAt: time.Now().Add(-200 * 24 * time.Hour)},
	}))

	hashes, err := tf.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"ancient"}, hashes)
}

func TestTombstoneFileAppendDedupes(t *testing.T) {
	tf := newTombstoneFile(t)

	require.NoError(t, tf.Append("aaa"))
	require.NoError(t, tf.Append("aaa"))
	require.NoError(t, tf.Append("bbb"))

	hashes, err := tf.Load()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"aaa", "bbb"}, hashes)
}

func TestTombstoneFileSaveKeepsDeletionTime(t *testing.T) {
	tf := newTombstoneFile(t)

	require.NoError(t, tf.Save([]string{"aaa"}))
	first, err := tf.load()
	require.NoError(t, err)
	require.Len(t, first, 1)

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, tf.Save([]string{"aaa"}))

	second, err := tf.load()
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.True(t, first[0].DeletedAt.Equal(second[0].DeletedAt),
		"re-saving must not refresh the deletion time")
}
