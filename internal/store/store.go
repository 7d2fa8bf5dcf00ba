// Package store provides the on-disk notification history.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/graylag/shelltray/internal/model"
)

// ChangeType indicates the type of store change.
type ChangeType int

const (
	// ChangeTypeAdd indicates records were added.
	ChangeTypeAdd ChangeType = iota
	// ChangeTypeClear indicates all records were cleared.
	ChangeTypeClear
	// ChangeTypePrune indicates records were pruned.
	ChangeTypePrune
	// ChangeTypeDelete indicates a record was deleted.
	ChangeTypeDelete
	// ChangeTypeUpdate indicates a record was modified in place.
	ChangeTypeUpdate
)

// ChangeEvent signals store content changes.
type ChangeEvent struct {
	Type  ChangeType
	Count int
}

// FilterOptions specifies criteria for filtering records.
type FilterOptions struct {
	Since     time.Duration // Filter to records newer than now-since (0=all)
	AppFilter string        // Exact match on app name
	Urgency   *int          // Filter by urgency level (nil=any)
	Limit     int           // Maximum results (0=unlimited)
	SortField string        // Field to sort by: "timestamp", "app", "urgency"
	SortOrder string        // "asc" or "desc" (default: "desc")
}

// Store manages the notification history with thread-safe operations.
type Store struct {
	mu         sync.RWMutex
	records    []model.Record
	index      map[string]int  // record_id -> slice index
	hashIndex  map[string]int  // content_hash -> slice index (for deduplication)
	tombstones map[string]bool // content_hash -> true (for deleted items)

	maxEntries int // 0 = unlimited

	// lastWrite is when this process last wrote the history file. The
	// history watcher uses it to tell its own writes from external ones.
	lastWrite time.Time

	persistence Persistence

	subscribers []chan ChangeEvent
	closed      bool
}

// NewStore creates a new Store.
// If persistence is not nil, it will be used to persist records.
func NewStore(persistence Persistence) *Store {
	return &Store{
		records:     make([]model.Record, 0),
		index:       make(map[string]int),
		hashIndex:   make(map[string]int),
		tombstones:  make(map[string]bool),
		persistence: persistence,
		subscribers: make([]chan ChangeEvent, 0),
	}
}

// SetMaxEntries caps how many records the store retains. When a new record
// pushes the store over the cap the oldest records are dropped. 0 means
// unlimited.
func (s *Store) SetMaxEntries(max int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxEntries = max
}

// Add adds a single record to the store.
func (s *Store) Add(r model.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	// Ensure content hash is computed for deduplication
	r.EnsureContentHash()

	// Check if this was previously deleted (tombstone)
	if s.tombstones[r.ContentHash] {
		return nil // Was deleted, don't reimport
	}

	// Check for duplicates by content hash (primary deduplication)
	if _, exists := s.hashIndex[r.ContentHash]; exists {
		return nil // Duplicate content, skip
	}

	// Also check by ULID (for safety)
	if _, exists := s.index[r.RecordID]; exists {
		return nil // Already exists, skip
	}

	// Add to slice and indices
	idx := len(s.records)
	s.records = append(s.records, r)
	s.index[r.RecordID] = idx
	s.hashIndex[r.ContentHash] = idx

	capped, err := s.enforceCapLocked()
	if err != nil {
		return err
	}

	// The cap path rewrites the whole file, so append only when it didn't run
	if s.persistence != nil && !capped {
		if err := s.persistence.Append(r); err != nil {
			return err
		}
	}
	s.touchLocked()

	s.notifyChange(ChangeEvent{
		Type:  ChangeTypeAdd,
		Count: 1,
	})

	return nil
}

// enforceCapLocked drops the oldest records beyond maxEntries and rewrites
// the persistence file when anything was dropped. Caller holds the lock.
func (s *Store) enforceCapLocked() (bool, error) {
	if s.maxEntries <= 0 || len(s.records) <= s.maxEntries {
		return false, nil
	}

	keep := make([]model.Record, len(s.records))
	copy(keep, s.records)
	sort.Slice(keep, func(i, j int) bool {
		return keep[i].Timestamp > keep[j].Timestamp
	})
	keep = keep[:s.maxEntries]

	s.records = keep
	s.rebuildIndicesLocked()

	if s.persistence != nil {
		return true, s.persistence.Rewrite(s.records)
	}
	return true, nil
}

// AddBatch adds multiple records efficiently.
func (s *Store) AddBatch(rs []model.Record) error {
	if len(rs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	// Filter out duplicates by content hash
	toAdd := make([]model.Record, 0, len(rs))
	seenHashes := make(map[string]bool) // Track hashes within this batch too

	for i := range rs {
		rs[i].EnsureContentHash()
		hash := rs[i].ContentHash

		if s.tombstones[hash] {
			continue
		}
		if _, exists := s.hashIndex[hash]; exists {
			continue
		}
		if seenHashes[hash] {
			continue
		}
		if _, exists := s.index[rs[i].RecordID]; exists {
			continue
		}

		seenHashes[hash] = true
		toAdd = append(toAdd, rs[i])
	}

	if len(toAdd) == 0 {
		return nil
	}

	startIdx := len(s.records)
	s.records = append(s.records, toAdd...)
	for i, r := range toAdd {
		idx := startIdx + i
		s.index[r.RecordID] = idx
		s.hashIndex[r.ContentHash] = idx
	}

	capped, err := s.enforceCapLocked()
	if err != nil {
		return err
	}

	if s.persistence != nil && !capped {
		if err := s.persistence.AppendBatch(toAdd); err != nil {
			return err
		}
	}
	s.touchLocked()

	s.notifyChange(ChangeEvent{
		Type:  ChangeTypeAdd,
		Count: len(toAdd),
	})

	return nil
}

// All returns all records sorted by timestamp (newest first).
func (s *Store) All() []model.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.Record, len(s.records))
	copy(result, s.records)

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp > result[j].Timestamp
	})

	return result
}

// Filter returns records matching the criteria.
func (s *Store) Filter(opts FilterOptions) []model.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	var result []model.Record

	for _, r := range s.records {
		// Time filter
		if opts.Since > 0 {
			cutoff := now.Add(-opts.Since)
			if time.Unix(r.Timestamp, 0).Before(cutoff) {
				continue
			}
		}

		// App filter
		if opts.AppFilter != "" && r.AppName != opts.AppFilter {
			continue
		}

		// Urgency filter
		if opts.Urgency != nil && r.Urgency != *opts.Urgency {
			continue
		}

		result = append(result, r)
	}

	// Sort
	sortField := opts.SortField
	if sortField == "" {
		sortField = "timestamp"
	}
	sortOrder := opts.SortOrder
	if sortOrder == "" {
		sortOrder = "desc"
	}

	sortRecords(result, sortField, sortOrder)

	// Limit
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}

	return result
}

// GetByID returns a record by its ULID.
func (s *Store) GetByID(id string) *model.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if idx, exists := s.index[id]; exists {
		r := s.records[idx]
		return &r
	}
	return nil
}

// GetByBusID returns the most recent record carrying the given bus
// notification id, or nil.
func (s *Store) GetByBusID(busID uint32) *model.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if best := s.findByBusIDLocked(busID); best != nil {
		r := *best
		return &r
	}
	return nil
}

// findByBusIDLocked returns the most recent record with the given bus id.
// Caller holds the lock.
func (s *Store) findByBusIDLocked(busID uint32) *model.Record {
	var best *model.Record
	for i := range s.records {
		r := &s.records[i]
		if r.BusID != busID {
			continue
		}
		if best == nil || r.RecordedAt > best.RecordedAt {
			best = r
		}
	}
	return best
}

// MarkClosed records the close reason on the most recent record with the
// given bus notification id. Unknown ids are ignored.
func (s *Store) MarkClosed(busID uint32, reason uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	best := s.findByBusIDLocked(busID)
	if best == nil || best.IsClosed() {
		return nil
	}

	best.MarkClosed(reason)

	if s.persistence != nil {
		if err := s.persistence.Rewrite(s.records); err != nil {
			return err
		}
	}
	s.touchLocked()

	s.notifyChange(ChangeEvent{
		Type:  ChangeTypeUpdate,
		Count: 1,
	})

	return nil
}

// Delete removes a record by its ULID.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	idx, exists := s.index[id]
	if !exists {
		return nil // Not found, nothing to do
	}

	s.records = append(s.records[:idx], s.records[idx+1:]...)
	s.rebuildIndicesLocked()

	if s.persistence != nil {
		if err := s.persistence.Rewrite(s.records); err != nil {
			return err
		}
	}
	s.touchLocked()

	s.notifyChange(ChangeEvent{
		Type:  ChangeTypeDelete,
		Count: 1,
	})

	return nil
}

// DeleteWithTombstone removes a record and remembers its hash so that a
// rehydrate from the history file does not bring it back.
func (s *Store) DeleteWithTombstone(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	idx, exists := s.index[id]
	if !exists {
		return nil // Not found, nothing to do
	}

	s.records[idx].EnsureContentHash()
	s.tombstones[s.records[idx].ContentHash] = true

	s.records = append(s.records[:idx], s.records[idx+1:]...)
	s.rebuildIndicesLocked()

	if s.persistence != nil {
		if err := s.persistence.Rewrite(s.records); err != nil {
			return err
		}
	}
	s.touchLocked()

	s.notifyChange(ChangeEvent{
		Type:  ChangeTypeDelete,
		Count: 1,
	})

	return nil
}

// Prune removes records older than the given age, additionally keeping at
// most keep newest records when keep > 0. Returns how many were removed.
func (s *Store) Prune(olderThan time.Duration, keep int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	cutoff := time.Now().Add(-olderThan)

	sorted := make([]model.Record, len(s.records))
	copy(sorted, s.records)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp > sorted[j].Timestamp
	})

	var kept []model.Record
	for i, r := range sorted {
		tooOld := olderThan > 0 && time.Unix(r.Timestamp, 0).Before(cutoff)
		overCap := keep > 0 && i >= keep
		if tooOld || overCap {
			continue
		}
		kept = append(kept, r)
	}

	removed := len(s.records) - len(kept)
	if removed == 0 {
		return 0, nil
	}

	s.records = kept
	s.rebuildIndicesLocked()

	if s.persistence != nil {
		if err := s.persistence.Rewrite(s.records); err != nil {
			return removed, err
		}
	}
	s.touchLocked()

	s.notifyChange(ChangeEvent{
		Type:  ChangeTypePrune,
		Count: removed,
	})

	return removed, nil
}

// LastWriteAt returns when this process last wrote the history file. Zero
// when it never has.
func (s *Store) LastWriteAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastWrite
}

// touchLocked stamps the last local write. Caller holds the lock.
func (s *Store) touchLocked() {
	s.lastWrite = time.Now()
}

// Count returns the total number of records.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// AddTombstone adds a content hash to the tombstone set.
func (s *Store) AddTombstone(hash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tombstones[hash] = true
}

// GetTombstones returns all tombstone hashes.
func (s *Store) GetTombstones() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hashes := make([]string, 0, len(s.tombstones))
	for h := range s.tombstones {
		hashes = append(hashes, h)
	}
	return hashes
}

// LoadTombstones adds tombstones from a slice of hashes.
func (s *Store) LoadTombstones(hashes []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, h := range hashes {
		s.tombstones[h] = true
	}
}

// Subscribe returns a channel that receives change events.
func (s *Store) Subscribe() <-chan ChangeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan ChangeEvent, 10)
	s.subscribers = append(s.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscription.
func (s *Store) Unsubscribe(ch <-chan ChangeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, sub := range s.subscribers {
		if sub == ch {
			s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
			close(sub)
			return
		}
	}
}

// Close releases resources and closes all subscriber channels.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	for _, ch := range s.subscribers {
		close(ch)
	}
	s.subscribers = nil

	if s.persistence != nil {
		return s.persistence.Close()
	}

	return nil
}

// Hydrate loads records from persistence into the store.
func (s *Store) Hydrate() error {
	if s.persistence == nil {
		return nil
	}

	records, err := s.persistence.Load()
	if err != nil {
		return err
	}

	s.mu.Lock()
	added := 0
	for i := range records {
		r := &records[i]

		// Ensure content hash exists (for older records without it)
		r.EnsureContentHash()

		if s.tombstones[r.ContentHash] {
			continue
		}
		if _, exists := s.hashIndex[r.ContentHash]; exists {
			continue
		}
		if _, exists := s.index[r.RecordID]; exists {
			continue
		}

		idx := len(s.records)
		s.records = append(s.records, *r)
		s.index[r.RecordID] = idx
		s.hashIndex[r.ContentHash] = idx
		added++
	}
	s.mu.Unlock()

	if added > 0 {
		s.notifyChange(ChangeEvent{
			Type:  ChangeTypeAdd,
			Count: added,
		})
	}

	return nil
}

// Clear removes all records from the store.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	count := len(s.records)
	s.records = make([]model.Record, 0)
	s.index = make(map[string]int)
	s.hashIndex = make(map[string]int)

	if s.persistence != nil {
		if err := s.persistence.Clear(); err != nil {
			return err
		}
	}
	s.touchLocked()

	s.notifyChange(ChangeEvent{
		Type:  ChangeTypeClear,
		Count: count,
	})

	return nil
}

// rebuildIndicesLocked rebuilds the lookup maps. Caller holds the lock.
func (s *Store) rebuildIndicesLocked() {
	s.index = make(map[string]int, len(s.records))
	s.hashIndex = make(map[string]int, len(s.records))
	for i, r := range s.records {
		s.index[r.RecordID] = i
		if r.ContentHash != "" {
			s.hashIndex[r.ContentHash] = i
		}
	}
}

// notifyChange sends a change event to all subscribers (non-blocking).
func (s *Store) notifyChange(event ChangeEvent) {
	for _, ch := range s.subscribers {
		select {
		case ch <- event:
		default:
			// Channel full, skip
		}
	}
}

// sortRecords sorts records in-place.
func sortRecords(rs []model.Record, field, order string) {
	sort.SliceStable(rs, func(i, j int) bool {
		// Swapped operands for descending; negating would break the
		// comparator on equal keys.
		if order == "desc" {
			i, j = j, i
		}
		switch field {
		case "app":
			return rs[i].AppName < rs[j].AppName
		case "urgency":
			return rs[i].Urgency < rs[j].Urgency
		default: // timestamp
			return rs[i].Timestamp < rs[j].Timestamp
		}
	})
}

// Errors
var (
	ErrStoreClosed = storeError("store is closed")
)

type storeError string

func (e storeError) Error() string {
	return string(e)
}
