// Package lockscreen aggregates per-source notification summaries for
// presentation on a locked screen, honoring each source's lock-screen
// visibility policy.
package lockscreen

import (
	"log/slog"

	"github.com/graylag/shelltray/internal/event"
	"github.com/graylag/shelltray/internal/notify"
)

// Detail is one line of a detailed listing, taken from an unacknowledged
// notification.
type Detail struct {
	Title string
	Body  string
}

// Entry is the lock-screen summary of one source. Hidden entries stay
// registered until their source is destroyed.
type Entry struct {
	Source *notify.Source

	// Visible is policy-driven and requires at least one unseen
	// notification.
	Visible bool

	// Detailed selects the multi-line listing over the one-line count
	// summary. It is set when the policy allows lock-screen detail or when
	// every notification in the source is system scoped.
	Detailed bool

	Title       string
	UnseenCount int
	Details     []Detail
}

// Summarizer maintains one Entry per watched source, recomputing whenever a
// source's contents or title change.
type Summarizer struct {
	entries []*entryState
	log     *slog.Logger

	Changed event.Emitter[struct{}]
}

type entryState struct {
	source *notify.Source
	subs   []event.Subscription
}

// New creates an empty summarizer.
func New(log *slog.Logger) *Summarizer {
	if log == nil {
		log = slog.Default()
	}
	return &Summarizer{log: log}
}

// Watch registers a source. Its entry is recomputed on every count or title
// change and dropped when the source is destroyed.
func (sm *Summarizer) Watch(s *notify.Source) {
	for _, st := range sm.entries {
		if st.source == s {
			return
		}
	}
	st := &entryState{source: s}
	st.subs = []event.Subscription{
		s.CountChanged.Connect(func(int) { sm.Changed.Emit(struct{}{}) }),
		s.TitleChanged.Connect(func(string) { sm.Changed.Emit(struct{}{}) }),
		s.Destroyed.Connect(func(notify.DestroyReason) { sm.unwatch(s) }),
	}
	sm.entries = append(sm.entries, st)
	sm.Changed.Emit(struct{}{})
}

func (sm *Summarizer) unwatch(s *notify.Source) {
	for i, st := range sm.entries {
		if st.source != s {
			continue
		}
		for _, sub := range st.subs {
			sub.Disconnect()
		}
		sm.entries = append(sm.entries[:i], sm.entries[i+1:]...)
		sm.Changed.Emit(struct{}{})
		return
	}
}

// Refresh re-emits the changed event. Callers use it after swapping a
// source's policy, since policies themselves are immutable.
func (sm *Summarizer) Refresh() {
	sm.Changed.Emit(struct{}{})
}

// Entries computes the current summaries in source registration order.
func (sm *Summarizer) Entries() []Entry {
	out := make([]Entry, 0, len(sm.entries))
	for _, st := range sm.entries {
		out = append(out, sm.compute(st.source))
	}
	return out
}

func (sm *Summarizer) compute(s *notify.Source) Entry {
	policy := s.Policy()
	e := Entry{
		Source:      s,
		Title:       s.Title(),
		UnseenCount: s.UnseenCount(),
	}
	if policy == nil {
		return e
	}
	e.Visible = policy.ShowInLockScreen && e.UnseenCount > 0
	e.Detailed = policy.DetailsInLockScreen || s.NarrowestPrivacyScope() == notify.ScopeSystem
	if !e.Visible || !e.Detailed {
		return e
	}
	for _, n := range s.Notifications() {
		if n.Acknowledged() {
			continue
		}
		e.Details = append(e.Details, Detail{Title: n.Title(), Body: n.Body()})
	}
	return e
}
