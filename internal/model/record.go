// Package model defines the core data structures for shelltray.
package model

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/oklog/ulid/v2"
)

// Urgency levels matching the freedesktop notification spec.
const (
	UrgencyLow      = 0
	UrgencyNormal   = 1
	UrgencyCritical = 2
)

// UrgencyNames maps urgency levels to human-readable names.
var UrgencyNames = map[int]string{
	UrgencyLow:      "low",
	UrgencyNormal:   "normal",
	UrgencyCritical: "critical",
}

// Record is one notification as it passed through the daemon. This is the
// normalized format stored in the history file and read by the CLI.
type Record struct {
	// Daemon metadata
	RecordID    string `json:"record_id"`
	RecordedAt  int64  `json:"recorded_at"`
	ContentHash string `json:"content_hash,omitempty"` // SHA256 hash for deduplication

	// Freedesktop standard fields
	BusID     uint32 `json:"bus_id"` // Notification id assigned on the bus
	AppName   string `json:"app_name"`
	Summary   string `json:"summary"`
	Body      string `json:"body"`
	Timestamp int64  `json:"timestamp"`

	// Urgency
	Urgency     int    `json:"urgency"`
	UrgencyName string `json:"urgency_name"`

	// Optional fields
	DesktopEntry string `json:"desktop_entry,omitempty"`
	Resident     bool   `json:"resident,omitempty"`
	Transient    bool   `json:"transient,omitempty"`
	SoundName    string `json:"sound_name,omitempty"`
	SoundFile    string `json:"sound_file,omitempty"`

	// Close tracking, zero while the notification is still live
	ClosedAt    int64  `json:"closed_at,omitempty"`
	CloseReason uint32 `json:"close_reason,omitempty"`
}

// Validation errors.
var (
	ErrEmptyRecordID    = errors.New("record_id cannot be empty")
	ErrInvalidUrgency   = errors.New("urgency must be 0, 1, or 2")
	ErrInvalidTimestamp = errors.New("timestamp must be greater than 0")
)

// NewRecord creates a new Record with a generated ULID and metadata.
func NewRecord() (*Record, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ULID: %w", err)
	}

	now := time.Now().Unix()
	return &Record{
		RecordID:    id.String(),
		RecordedAt:  now,
		Timestamp:   now,
		Urgency:     UrgencyNormal,
		UrgencyName: UrgencyNames[UrgencyNormal],
	}, nil
}

// Validate checks that the record has all required fields.
func (r *Record) Validate() error {
	if r.RecordID == "" {
		return ErrEmptyRecordID
	}
	if r.Urgency < 0 || r.Urgency > 2 {
		return ErrInvalidUrgency
	}
	if r.Timestamp <= 0 {
		return ErrInvalidTimestamp
	}
	return nil
}

// SetUrgency sets the urgency level and its human-readable name.
func (r *Record) SetUrgency(level int) {
	if level < 0 || level > 2 {
		level = UrgencyNormal
	}
	r.Urgency = level
	r.UrgencyName = UrgencyNames[level]
}

// RelativeTime returns a human-readable relative time string, e.g. "5 minutes ago".
func (r *Record) RelativeTime() string {
	return humanize.Time(time.Unix(r.Timestamp, 0))
}

// BodyTruncated returns the body truncated to maxLen characters.
// If the body is longer, it is truncated and "..." is appended.
func (r *Record) BodyTruncated(maxLen int) string {
	if maxLen <= 0 {
		return ""
	}

	// Collapse whitespace and newlines to single spaces
	body := strings.Join(strings.Fields(r.Body), " ")

	if len(body) <= maxLen {
		return body
	}
	if maxLen <= 3 {
		return body[:maxLen]
	}
	return body[:maxLen-3] + "..."
}

// DedupeKey returns a string key for deduplication. Records with the same
// app, summary, body, and timestamp are considered duplicates.
func (r *Record) DedupeKey() string {
	return fmt.Sprintf("%s:%s:%s:%d",
		r.AppName,
		r.Summary,
		r.Body,
		r.Timestamp, // 1-second granularity
	)
}

// ComputeContentHash generates a SHA256 hash of the record content.
func (r *Record) ComputeContentHash() string {
	hash := sha256.Sum256([]byte(r.DedupeKey()))
	return hex.EncodeToString(hash[:])
}

// EnsureContentHash computes and sets the ContentHash if not already set.
func (r *Record) EnsureContentHash() {
	if r.ContentHash == "" {
		r.ContentHash = r.ComputeContentHash()
	}
}

// TimestampTime returns the timestamp as a time.Time.
func (r *Record) TimestampTime() time.Time {
	return time.Unix(r.Timestamp, 0)
}

// Clone creates a copy of the record.
func (r *Record) Clone() *Record {
	clone := *r
	return &clone
}

// IsClosed returns true if the notification has been closed.
func (r *Record) IsClosed() bool {
	return r.ClosedAt > 0
}

// MarkClosed records that the notification was closed with the given
// freedesktop close reason. The first close wins.
func (r *Record) MarkClosed(reason uint32) {
	if r.ClosedAt == 0 {
		r.ClosedAt = time.Now().Unix()
		r.CloseReason = reason
	}
}
