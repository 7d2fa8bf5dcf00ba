package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graylag/shelltray/internal/model"
)

func newPersistence(t *testing.T) (*JSONLPersistence, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.jsonl")
	p, err := NewJSONLPersistence(path)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p, path
}

func TestJSONLPersistence_NewWritesHeader(t *testing.T) {
	_, path := newPersistence(t)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var header schemaHeader
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &header))
	assert.Equal(t, SchemaVersion, header.SchemaVersion)
	assert.Greater(t, header.CreatedAt, int64(0))
}

func TestJSONLPersistence_AppendLoad(t *testing.T) {
	p, _ := newPersistence(t)

	r := newTestRecord(t, "mail", "hello")
	require.NoError(t, p.Append(r))

	loaded, err := p.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, r.RecordID, loaded[0].RecordID)
	assert.Equal(t, "hello", loaded[0].Summary)

	// Appending after a load still works (file position restored)
	require.NoError(t, p.Append(newTestRecord(t, "mail", "again")))
	loaded, err = p.Load()
	require.NoError(t, err)
	assert.Len(t, loaded, 2)
}

func TestJSONLPersistence_AppendBatch(t *testing.T) {
	p, _ := newPersistence(t)

	rs := []model.Record{
		newTestRecord(t, "a", "one"),
		newTestRecord(t, "b", "two"),
	}
	require.NoError(t, p.AppendBatch(rs))

	loaded, err := p.Load()
	require.NoError(t, err)
	assert.Len(t, loaded, 2)
}

func TestJSONLPersistence_Rewrite(t *testing.T) {
	p, path := newPersistence(t)

	keep := newTestRecord(t, "mail", "keep")
	drop := newTestRecord(t, "mail", "drop")
	require.NoError(t, p.Append(keep))
	require.NoError(t, p.Append(drop))

	require.NoError(t, p.Rewrite([]model.Record{keep}))

	loaded, err := p.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "keep", loaded[0].Summary)

	// Backup was removed on success
	_, err = os.Stat(path + ".bak")
	assert.True(t, os.IsNotExist(err))
}

func TestJSONLPersistence_Clear(t *testing.T) {
	p, _ := newPersistence(t)

	require.NoError(t, p.Append(newTestRecord(t, "mail", "x")))
	require.NoError(t, p.Clear())

	loaded, err := p.Load()
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestJSONLPersistence_LoadSkipsMalformedLines(t *testing.T) {
	p, path := newPersistence(t)
	require.NoError(t, p.Append(newTestRecord(t, "mail", "good")))
	require.NoError(t, p.Close())

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
	require.NoError(t, err)
	_, err = f.WriteString("{not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	p2, err := NewJSONLPersistence(path)
	require.NoError(t, err)
	defer p2.Close()

	loaded, err := p2.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "good", loaded[0].Summary)
}

func TestJSONLPersistence_LoadLegacyHeaderless(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")

	r := newTestRecord(t, "mail", "legacy")
	data, err := json.Marshal(r)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, append(data, '\n'), 0600))

	p, err := NewJSONLPersistence(path)
	require.NoError(t, err)
	defer p.Close()

	loaded, err := p.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "legacy", loaded[0].Summary)
}

func TestJSONLPersistence_ClosedRejectsOperations(t *testing.T) {
	p, _ := newPersistence(t)
	require.NoError(t, p.Close())

	assert.ErrorIs(t, p.Append(newTestRecord(t, "a", "b")), ErrPersistenceClosed)
	_, err := p.Load()
	assert.ErrorIs(t, err, ErrPersistenceClosed)
}

func TestRecoverFromCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")

	good := newTestRecord(t, "mail", "survivor")
	data, err := json.Marshal(good)
	require.NoError(t, err)

	content := `{"shelltray_schema_version":1,"created_at":1}` + "\n" +
		string(data) + "\n" +
		"garbage line\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	require.NoError(t, RecoverFromCorruption(path))

	p, err := NewJSONLPersistence(path)
	require.NoError(t, err)
	defer p.Close()

	loaded, err := p.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "survivor", loaded[0].Summary)
}

func TestStore_WithPersistenceHydrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")

	p1, err := NewJSONLPersistence(path)
	require.NoError(t, err)
	s1 := NewStore(p1)
	require.NoError(t, s1.Add(newTestRecord(t, "mail", "persisted")))
	require.NoError(t, s1.Close())

	p2, err := NewJSONLPersistence(path)
	require.NoError(t, err)
	s2 := NewStore(p2)
	defer s2.Close()

	require.NoError(t, s2.Hydrate())
	assert.Equal(t, 1, s2.Count())
	assert.Equal(t, "persisted", s2.All()[0].Summary)
}
