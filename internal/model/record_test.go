package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecord(t *testing.T) {
	r, err := NewRecord()
	require.NoError(t, err)

	assert.Len(t, r.RecordID, 26, "ULID is 26 characters")
	assert.Equal(t, UrgencyNormal, r.Urgency)
	assert.Equal(t, "normal", r.UrgencyName)
	assert.Greater(t, r.Timestamp, int64(0))
	assert.NoError(t, r.Validate())
}

func TestNewRecord_UniqueIDs(t *testing.T) {
	a, err := NewRecord()
	require.NoError(t, err)
	b, err := NewRecord()
	require.NoError(t, err)

	assert.NotEqual(t, a.RecordID, b.RecordID)
}

func TestRecord_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Record)
		wantErr error
	}{
		{"missing id", func(r *Record) { r.RecordID = "" }, ErrEmptyRecordID},
		{"urgency too high", func(r *Record) { r.Urgency = 3 }, ErrInvalidUrgency},
		{"urgency negative", func(r *Record) { r.Urgency = -1 }, ErrInvalidUrgency},
		{"zero timestamp", func(r *Record) { r.Timestamp = 0 }, ErrInvalidTimestamp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRecord()
			require.NoError(t, err)
			tt.mutate(r)
			assert.ErrorIs(t, r.Validate(), tt.wantErr)
		})
	}
}

func TestRecord_SetUrgency(t *testing.T) {
	r, err := NewRecord()
	require.NoError(t, err)

	r.SetUrgency(UrgencyCritical)
	assert.Equal(t, UrgencyCritical, r.Urgency)
	assert.Equal(t, "critical", r.UrgencyName)

	// Out of range falls back to normal
	r.SetUrgency(7)
	assert.Equal(t, UrgencyNormal, r.Urgency)
	assert.Equal(t, "normal", r.UrgencyName)
}

func TestRecord_BodyTruncated(t *testing.T) {
	r := &Record{Body: "line one\nline   two with words"}

	assert.Equal(t, "line one line two with words", r.BodyTruncated(100))
	assert.Equal(t, "line on...", r.BodyTruncated(10))
	assert.Equal(t, "li", r.BodyTruncated(2))
	assert.Equal(t, "", r.BodyTruncated(0))
}

func TestRecord_ContentHash(t *testing.T) {
	a := &Record{AppName: "mail", Summary: "hi", Body: "there", Timestamp: 100}
	b := &Record{AppName: "mail", Summary: "hi", Body: "there", Timestamp: 100}
	c := &Record{AppName: "mail", Summary: "hi", Body: "there", Timestamp: 101}

	a.EnsureContentHash()
	b.EnsureContentHash()
	c.EnsureContentHash()

	assert.Equal(t, a.ContentHash, b.ContentHash)
	assert.NotEqual(t, a.ContentHash, c.ContentHash)

	// EnsureContentHash keeps an existing hash
	hash := a.ContentHash
	a.Body = "changed"
	a.EnsureContentHash()
	assert.Equal(t, hash, a.ContentHash)
}

func TestRecord_MarkClosed(t *testing.T) {
	r, err := NewRecord()
	require.NoError(t, err)

	assert.False(t, r.IsClosed())

	r.MarkClosed(2)
	assert.True(t, r.IsClosed())
	assert.Equal(t, uint32(2), r.CloseReason)
	assert.WithinDuration(t, time.Now(), time.Unix(r.ClosedAt, 0), 5*time.Second)

	// First close wins
	r.MarkClosed(3)
	assert.Equal(t, uint32(2), r.CloseReason)
}

func TestRecord_Clone(t *testing.T) {
	r, err := NewRecord()
	require.NoError(t, err)
	r.Summary = "original"

	c := r.Clone()
	c.Summary = "copy"

	assert.Equal(t, "original", r.Summary)
	assert.Equal(t, r.RecordID, c.RecordID)
}
