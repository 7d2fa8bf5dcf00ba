package notify

import (
	"log/slog"

	"github.com/graylag/shelltray/internal/event"
)

// MaxNotificationsPerSource is the default cap on how many live
// notifications a source may hold. Adding beyond the cap evicts the oldest
// with an expired reason.
const MaxNotificationsPerSource = 3

// Source groups the notifications of one application identity and carries
// its display policy.
type Source struct {
	title  string
	icon   Icon
	policy *Policy

	// Transient sources disappear with their notifications and are never
	// listed persistently.
	Transient bool

	notifications []*Notification
	subs          map[*Notification][]event.Subscription
	maxLive       int

	countVisible bool

	destroyed     bool
	inDestruction bool

	log *slog.Logger

	TitleChanged        event.Emitter[string]
	IconChanged         event.Emitter[Icon]
	CountChanged        event.Emitter[int]
	NotificationAdded   event.Emitter[*Notification]
	NotificationRemoved event.Emitter[*Notification]
	NotificationRequest event.Emitter[*Notification]
	Destroyed           event.Emitter[DestroyReason]
}

// NewSource creates a source with the given title, icon and policy. A nil
// policy gets the default permissive one.
func NewSource(title string, icon Icon, policy *Policy, log *slog.Logger) *Source {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Source{
		title:  title,
		icon:   icon,
		policy: policy,
		subs:   make(map[*Notification][]event.Subscription),
		log:    log,
	}
}

// Title returns the source's display title.
func (s *Source) Title() string { return s.title }

// Icon returns the source's icon.
func (s *Source) Icon() Icon { return s.icon }

// Policy returns the source's display policy.
func (s *Source) Policy() *Policy { return s.policy }

// IsDestroyed reports whether Destroy has run.
func (s *Source) IsDestroyed() bool { return s.destroyed }

// Notifications returns the live notifications, oldest first.
func (s *Source) Notifications() []*Notification { return s.notifications }

// Count returns the number of live notifications.
func (s *Source) Count() int { return len(s.notifications) }

// UnseenCount returns how many live notifications are not yet acknowledged.
func (s *Source) UnseenCount() int {
	unseen := 0
	for _, n := range s.notifications {
		if !n.Acknowledged() {
			unseen++
		}
	}
	return unseen
}

// CountVisible reports whether the source advertises a nonzero unseen count.
func (s *Source) CountVisible() bool { return s.UnseenCount() > 0 }

// NarrowestPrivacyScope returns SYSTEM only when every live notification is
// SYSTEM scoped; any USER scoped notification narrows the whole source.
func (s *Source) NarrowestPrivacyScope() PrivacyScope {
	for _, n := range s.notifications {
		if n.PrivacyScope() == ScopeUser {
			return ScopeUser
		}
	}
	return ScopeSystem
}

// SetTitle updates the display title and notifies observers.
func (s *Source) SetTitle(title string) {
	if s.title == title {
		return
	}
	s.title = title
	s.TitleChanged.Emit(title)
}

// SetIcon updates the source icon and notifies observers.
func (s *Source) SetIcon(icon Icon) {
	s.icon = icon
	s.IconChanged.Emit(icon)
}

// SetPolicy swaps the display policy. The policy object itself is never
// mutated.
func (s *Source) SetPolicy(policy *Policy) {
	if policy == nil {
		policy = DefaultPolicy()
	}
	s.policy = policy
}

// SetMaxNotifications overrides the live-notification cap. Zero or negative
// restores the default. An existing overflow is not evicted until the next
// add.
func (s *Source) SetMaxNotifications(max int) {
	s.maxLive = max
}

func (s *Source) capacity() int {
	if s.maxLive > 0 {
		return s.maxLive
	}
	return MaxNotificationsPerSource
}

// AddNotification takes ownership of n, evicting the oldest notification
// first when the source is at capacity, then requests banner display.
// Adding a notification the source already owns is a no-op; the re-show
// path is clearing its acknowledged flag.
func (s *Source) AddNotification(n *Notification) {
	if s.destroyed || n.IsDestroyed() || s.owns(n) {
		return
	}

	if len(s.notifications) >= s.capacity() {
		oldest := s.notifications[0]
		oldest.Destroy(ReasonExpired)
	}

	s.notifications = append(s.notifications, n)
	s.subs[n] = []event.Subscription{
		n.Destroyed.Connect(func(reason DestroyReason) {
			s.onNotificationDestroy(n)
		}),
		n.AcknowledgedChanged.Connect(func(ack bool) {
			s.CountChanged.Emit(s.UnseenCount())
			if !ack {
				s.NotificationRequest.Emit(n)
			}
		}),
	}

	s.NotificationAdded.Emit(n)
	s.NotificationRequest.Emit(n)
	s.CountChanged.Emit(s.UnseenCount())
}

func (s *Source) owns(n *Notification) bool {
	_, ok := s.subs[n]
	return ok
}

func (s *Source) onNotificationDestroy(n *Notification) {
	idx := -1
	for i, cur := range s.notifications {
		if cur == n {
			idx = i
			break
		}
	}
	if idx < 0 {
		// Bookkeeping fault: a destroy event arrived for a notification the
		// source no longer tracks.
		s.log.Warn("destroy event for untracked notification", "source", s.title)
		return
	}

	for _, sub := range s.subs[n] {
		sub.Disconnect()
	}
	delete(s.subs, n)
	s.notifications = append(s.notifications[:idx], s.notifications[idx+1:]...)
	s.NotificationRemoved.Emit(n)
	s.CountChanged.Emit(s.UnseenCount())

	if len(s.notifications) == 0 && !s.inDestruction {
		s.Destroy(ReasonExpired)
	}
}

// DestroyNonResidentNotifications expires every non-resident notification,
// newest first.
func (s *Source) DestroyNonResidentNotifications() {
	for i := len(s.notifications) - 1; i >= 0; i-- {
		n := s.notifications[i]
		if !n.Resident {
			n.Destroy(ReasonExpired)
		}
	}
}

// Destroy tears the source down, destroying every remaining notification
// with the given reason. Idempotent; the destroyed event fires exactly once.
func (s *Source) Destroy(reason DestroyReason) {
	if s.destroyed {
		return
	}
	s.destroyed = true
	s.inDestruction = true

	for len(s.notifications) > 0 {
		s.notifications[0].Destroy(reason)
	}

	s.Destroyed.Emit(reason)

	s.policy = nil

	s.TitleChanged.DisconnectAll()
	s.IconChanged.DisconnectAll()
	s.CountChanged.DisconnectAll()
	s.NotificationAdded.DisconnectAll()
	s.NotificationRemoved.DisconnectAll()
	s.NotificationRequest.DisconnectAll()
	s.Destroyed.DisconnectAll()
}
