package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graylag/shelltray/internal/model"
)

func newTestRecord(t *testing.T, app, summary string) model.Record {
	t.Helper()
	r, err := model.NewRecord()
	require.NoError(t, err)
	r.AppName = app
	r.Summary = summary
	return *r
}

func TestStore_AddAndCount(t *testing.T) {
	s := NewStore(nil)
	defer s.Close()

	require.NoError(t, s.Add(newTestRecord(t, "mail", "one")))
	require.NoError(t, s.Add(newTestRecord(t, "mail", "two")))

	assert.Equal(t, 2, s.Count())
}

func TestStore_DeduplicatesByContentHash(t *testing.T) {
	s := NewStore(nil)
	defer s.Close()

	a := newTestRecord(t, "mail", "same")
	b := newTestRecord(t, "mail", "same")
	b.Timestamp = a.Timestamp
	b.Body = a.Body

	require.NoError(t, s.Add(a))
	require.NoError(t, s.Add(b))

	assert.Equal(t, 1, s.Count(), "identical content in the same second is one record")
}

func TestStore_TombstoneBlocksReadd(t *testing.T) {
	s := NewStore(nil)
	defer s.Close()

	r := newTestRecord(t, "mail", "gone")
	require.NoError(t, s.Add(r))
	require.NoError(t, s.DeleteWithTombstone(r.RecordID))
	assert.Equal(t, 0, s.Count())

	require.NoError(t, s.Add(r))
	assert.Equal(t, 0, s.Count(), "tombstoned content is not re-added")
}

func TestStore_GetByID(t *testing.T) {
	s := NewStore(nil)
	defer s.Close()

	r := newTestRecord(t, "chat", "ping")
	require.NoError(t, s.Add(r))

	got := s.GetByID(r.RecordID)
	require.NotNil(t, got)
	assert.Equal(t, "ping", got.Summary)

	assert.Nil(t, s.GetByID("nope"))
}

func TestStore_GetByBusID_PrefersNewest(t *testing.T) {
	s := NewStore(nil)
	defer s.Close()

	old := newTestRecord(t, "mail", "first")
	old.BusID = 7
	old.RecordedAt = 100
	newer := newTestRecord(t, "mail", "second")
	newer.BusID = 7
	newer.RecordedAt = 200

	require.NoError(t, s.Add(old))
	require.NoError(t, s.Add(newer))

	got := s.GetByBusID(7)
	require.NotNil(t, got)
	assert.Equal(t, "second", got.Summary)

	assert.Nil(t, s.GetByBusID(99))
}

func TestStore_MarkClosed(t *testing.T) {
	s := NewStore(nil)
	defer s.Close()

	r := newTestRecord(t, "mail", "open")
	r.BusID = 3
	require.NoError(t, s.Add(r))

	require.NoError(t, s.MarkClosed(3, 2))

	got := s.GetByBusID(3)
	require.NotNil(t, got)
	assert.True(t, got.IsClosed())
	assert.Equal(t, uint32(2), got.CloseReason)

	// Second close keeps the first reason
	require.NoError(t, s.MarkClosed(3, 4))
	assert.Equal(t, uint32(2), s.GetByBusID(3).CloseReason)

	// Unknown bus id is a silent no-op
	require.NoError(t, s.MarkClosed(42, 1))
}

func TestStore_Filter(t *testing.T) {
	s := NewStore(nil)
	defer s.Close()

	a := newTestRecord(t, "mail", "a")
	a.SetUrgency(model.UrgencyLow)
	b := newTestRecord(t, "chat", "b")
	b.SetUrgency(model.UrgencyCritical)
	c := newTestRecord(t, "mail", "c")
	c.Timestamp = time.Now().Add(-72 * time.Hour).Unix()

	require.NoError(t, s.Add(a))
	require.NoError(t, s.Add(b))
	require.NoError(t, s.Add(c))

	byApp := s.Filter(FilterOptions{AppFilter: "mail"})
	assert.Len(t, byApp, 2)

	critical := model.UrgencyCritical
	byUrgency := s.Filter(FilterOptions{Urgency: &critical})
	require.Len(t, byUrgency, 1)
	assert.Equal(t, "b", byUrgency[0].Summary)

	recent := s.Filter(FilterOptions{Since: 48 * time.Hour})
	assert.Len(t, recent, 2, "72h-old record filtered out")

	limited := s.Filter(FilterOptions{Limit: 1})
	assert.Len(t, limited, 1)
}

func TestStore_FilterSortOrder(t *testing.T) {
	s := NewStore(nil)
	defer s.Close()

	a := newTestRecord(t, "aaa", "a")
	a.Timestamp = 100
	b := newTestRecord(t, "zzz", "b")
	b.Timestamp = 200

	require.NoError(t, s.Add(a))
	require.NoError(t, s.Add(b))

	desc := s.Filter(FilterOptions{})
	require.Len(t, desc, 2)
	assert.Equal(t, "b", desc[0].Summary, "default is timestamp desc")

	byApp := s.Filter(FilterOptions{SortField: "app", SortOrder: "asc"})
	assert.Equal(t, "a", byApp[0].Summary)
}

func TestStore_MaxEntriesDropsOldest(t *testing.T) {
	s := NewStore(nil)
	defer s.Close()
	s.SetMaxEntries(2)

	for i, ts := range []int64{100, 200, 300} {
		r := newTestRecord(t, "app", string(rune('a'+i)))
		r.Timestamp = ts
		require.NoError(t, s.Add(r))
	}

	assert.Equal(t, 2, s.Count())
	all := s.All()
	assert.Equal(t, int64(300), all[0].Timestamp)
	assert.Equal(t, int64(200), all[1].Timestamp)
}

func TestStore_Prune(t *testing.T) {
	s := NewStore(nil)
	defer s.Close()

	old := newTestRecord(t, "app", "old")
	old.Timestamp = time.Now().Add(-72 * time.Hour).Unix()
	fresh := newTestRecord(t, "app", "fresh")

	require.NoError(t, s.Add(old))
	require.NoError(t, s.Add(fresh))

	removed, err := s.Prune(48*time.Hour, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, s.Count())
	assert.Equal(t, "fresh", s.All()[0].Summary)
}

func TestStore_PruneKeepCap(t *testing.T) {
	s := NewStore(nil)
	defer s.Close()

	for i := 0; i < 5; i++ {
		r := newTestRecord(t, "app", string(rune('a'+i)))
		r.Timestamp = int64(100 + i)
		require.NoError(t, s.Add(r))
	}

	removed, err := s.Prune(0, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 3, s.Count())
}

func TestStore_Subscribe(t *testing.T) {
	s := NewStore(nil)
	defer s.Close()

	ch := s.Subscribe()

	require.NoError(t, s.Add(newTestRecord(t, "app", "hello")))

	select {
	case ev := <-ch:
		assert.Equal(t, ChangeTypeAdd, ev.Type)
		assert.Equal(t, 1, ev.Count)
	default:
		t.Fatal("expected a change event")
	}
}

func TestStore_ClosedRejectsWrites(t *testing.T) {
	s := NewStore(nil)
	require.NoError(t, s.Close())

	err := s.Add(newTestRecord(t, "app", "late"))
	assert.ErrorIs(t, err, ErrStoreClosed)
}

func TestStore_Clear(t *testing.T) {
	s := NewStore(nil)
	defer s.Close()

	require.NoError(t, s.Add(newTestRecord(t, "app", "x")))
	require.NoError(t, s.Clear())
	assert.Equal(t, 0, s.Count())
}
