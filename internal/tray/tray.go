// Package tray implements the banner display state machine: it queues
// pending notifications by urgency, decides which one is showing, and runs
// the auto-hide, hover and idle timers around it.
package tray

import (
	"log/slog"
	"sort"
	"time"

	"github.com/graylag/shelltray/internal/event"
	"github.com/graylag/shelltray/internal/notify"
)

const (
	// MaxNotificationsInQueue is the default cap on the pending queue,
	// counting the banner currently shown. Critical notifications bypass
	// the cap.
	MaxNotificationsInQueue = 3

	// NotificationTimeout is the default time a fully shown banner stays up
	// before auto-hiding.
	NotificationTimeout = 4 * time.Second

	// HideTimeout and LongerHideTimeout run after the pointer leaves the
	// banner. The longer one applies when the banner appeared under the
	// pointer or the pointer barely moved away.
	HideTimeout       = 200 * time.Millisecond
	LongerHideTimeout = 600 * time.Millisecond

	// IdleTime is the idle threshold below which the user counts as active
	// when a banner appears.
	IdleTime = 1 * time.Second

	// MouseLeftThreshold is how far the pointer must travel, in pixels,
	// after leaving the banner before the leave countdown is final.
	MouseLeftThreshold = 20
)

// State is the banner display state.
type State int

const (
	StateHidden State = iota
	StateShowing
	StateShown
	StateHiding
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateHidden:
		return "hidden"
	case StateShowing:
		return "showing"
	case StateShown:
		return "shown"
	case StateHiding:
		return "hiding"
	default:
		return "unknown"
	}
}

// Presence is the session presence reported by the environment.
type Presence int

const (
	PresenceAvailable Presence = iota
	PresenceBusy
	PresenceIdle
)

// Renderer is the banner-drawing collaborator. Show and hide are animated;
// their done callbacks re-enter the state machine when the animation ends.
type Renderer interface {
	ShowBanner(n *notify.Notification, done func())
	HideBanner(animate bool, done func())
	DestroyBanner()
	ExpandBanner(animate bool)
	BannerExpanded() bool
	GrabFocus()
	UngrabFocus()
	ContainsPoint(x, y int) bool
}

// Environment supplies display and input facts the state machine consults.
type Environment interface {
	PrimaryMonitorAvailable() bool
	Fullscreen() bool
	PointerPosition() (x, y int)
	IdleTime() time.Duration
	// AddUserActiveWatch registers a one-shot callback for the next user
	// activity. The returned cancel is safe to call after firing.
	AddUserActiveWatch(fn func()) (cancel func())
}

// Tray is the display state machine. All methods must run on the control
// loop; the scheduler is used for every timer so tests can drive time.
type Tray struct {
	sched    event.Scheduler
	renderer Renderer
	env      Environment
	log      *slog.Logger

	sources    map[*notify.Source]struct{}
	sourceSubs map[*notify.Source][]event.Subscription

	limits Limits

	queue []*notify.Notification

	state        State
	notification *notify.Notification

	updatingState bool

	busy           bool
	locked         bool
	bannerBlocked  bool
	criticalBypass bool

	notificationExpired bool
	notificationRemoved bool

	userActiveWhileShown bool
	cancelActiveWatch    func()

	pointerInBanner      bool
	bannerHovered        bool
	useLongerLeftTimeout bool
	showPointerX         int
	showPointerY         int
	lastSeenPointerX     int
	lastSeenPointerY     int
	leftPointerX         int
	leftPointerY         int
	hideTimer            event.TimerHandle
	leftTimer            event.TimerHandle

	SourceAdded   event.Emitter[*notify.Source]
	SourceRemoved event.Emitter[*notify.Source]
	QueueChanged  event.Emitter[struct{}]
}

// Limits overrides the queue cap and per-urgency auto-hide timeouts. Zero
// fields keep the package defaults. Critical banners never auto-hide.
type Limits struct {
	MaxQueue      int
	NormalTimeout time.Duration
	HighTimeout   time.Duration
}

// New creates a tray bound to a renderer and environment.
func New(sched event.Scheduler, renderer Renderer, env Environment, log *slog.Logger) *Tray {
	if log == nil {
		log = slog.Default()
	}
	return &Tray{
		sched:        sched,
		renderer:     renderer,
		env:          env,
		log:          log,
		sources:      make(map[*notify.Source]struct{}),
		sourceSubs:   make(map[*notify.Source][]event.Subscription),
		showPointerX: -1,
		showPointerY: -1,
		leftPointerX: -1,
		leftPointerY: -1,
	}
}

// State returns the current display state.
func (t *Tray) State() State { return t.state }

// Showing returns the notification currently occupying the banner slot, or
// nil.
func (t *Tray) Showing() *notify.Notification { return t.notification }

// QueueLen returns how many notifications are pending behind the banner.
func (t *Tray) QueueLen() int { return len(t.queue) }

// Queue returns the pending notifications, highest priority first.
func (t *Tray) Queue() []*notify.Notification { return t.queue }

// Sources returns the registered sources.
func (t *Tray) Sources() []*notify.Source {
	out := make([]*notify.Source, 0, len(t.sources))
	for s := range t.sources {
		out = append(out, s)
	}
	return out
}

// Contains reports whether the source is registered.
func (t *Tray) Contains(s *notify.Source) bool {
	_, ok := t.sources[s]
	return ok
}

// Add registers a source if its policy enables it. Re-adding is logged and
// ignored.
func (t *Tray) Add(s *notify.Source) {
	if t.Contains(s) {
		t.log.Warn("re-adding source", "source", s.Title())
		return
	}
	if !s.Policy().Enable {
		return
	}
	t.sources[s] = struct{}{}
	t.sourceSubs[s] = []event.Subscription{
		s.NotificationRequest.Connect(t.onBannerRequest),
		s.NotificationRemoved.Connect(t.onNotificationRemoved),
		s.Destroyed.Connect(func(notify.DestroyReason) { t.Remove(s) }),
	}
	t.SourceAdded.Emit(s)
}

// Remove deregisters a source.
func (t *Tray) Remove(s *notify.Source) {
	if !t.Contains(s) {
		return
	}
	for _, sub := range t.sourceSubs[s] {
		sub.Disconnect()
	}
	delete(t.sourceSubs, s)
	delete(t.sources, s)
	t.SourceRemoved.Emit(s)
}

// SetPresence updates the session presence. Busy cancels the auto-hide
// timer; the busy flag is preserved across a transition to idle so that
// notifications queued while busy do not pop up under a screensaver.
func (t *Tray) SetPresence(p Presence) {
	switch p {
	case PresenceBusy:
		t.setHideTimer(0)
		t.busy = true
	case PresenceIdle:
	default:
		t.busy = false
	}
	t.updateState()
}

// SetBannerBlocked suppresses all banner activity while set.
func (t *Tray) SetBannerBlocked(blocked bool) {
	if t.bannerBlocked == blocked {
		return
	}
	t.bannerBlocked = blocked
	t.updateState()
}

// SetCriticalBypass lets critical notifications punch through a banner
// block. Non-critical notifications stay queued until the block lifts.
func (t *Tray) SetCriticalBypass(bypass bool) {
	if t.criticalBypass == bypass {
		return
	}
	t.criticalBypass = bypass
	t.updateState()
}

// Lock freezes the state machine until Unlock.
func (t *Tray) Lock() { t.locked = true }

// Unlock resumes the state machine and ticks it once.
func (t *Tray) Unlock() {
	if !t.locked {
		return
	}
	t.locked = false
	t.updateState()
}

// SetLimits applies queue and timeout overrides. Safe to call at any time;
// a shorter timeout takes effect from the next banner shown.
func (t *Tray) SetLimits(l Limits) {
	t.limits = l
}

func (t *Tray) maxQueue() int {
	if t.limits.MaxQueue > 0 {
		return t.limits.MaxQueue
	}
	return MaxNotificationsInQueue
}

func (t *Tray) hideTimeoutFor(u notify.Urgency) time.Duration {
	var d time.Duration
	switch u {
	case notify.UrgencyHigh:
		d = t.limits.HighTimeout
	default:
		d = t.limits.NormalTimeout
	}
	if d > 0 {
		return d
	}
	return NotificationTimeout
}

// ExpireShowing forces the shown banner to expire exactly as a timeout
// would, regardless of urgency. Wired to the escape key.
func (t *Tray) ExpireShowing() {
	t.notificationExpired = true
	t.updateState()
}

// onBannerRequest is the entry point for a source asking to display one of
// its notifications.
func (t *Tray) onBannerRequest(n *notify.Notification) {
	// Acknowledged and low-urgency notifications never get a banner, and a
	// policy veto on banners yields only to critical urgency.
	if n.Acknowledged() || n.Urgency() == notify.UrgencyLow {
		return
	}
	if !n.Source().Policy().ShowBanners && n.Urgency() != notify.UrgencyCritical {
		return
	}

	if t.notification == n {
		// An update to the notification already being shown re-runs the
		// showing setup and extends the auto-hide window. If it was mid-hide
		// this pulls it back up.
		t.updateShowingNotification()
	} else if !t.queued(n) {
		bannerCount := 0
		if t.notification != nil {
			bannerCount = 1
		}
		full := len(t.queue)+bannerCount >= t.maxQueue()
		if !full || n.Urgency() == notify.UrgencyCritical {
			t.queue = append(t.queue, n)
			sort.SliceStable(t.queue, func(i, j int) bool {
				return t.queue[i].Urgency() > t.queue[j].Urgency()
			})
			t.QueueChanged.Emit(struct{}{})
		}
	}
	t.updateState()
}

// criticalPending reports whether a critical notification is shown or
// waiting. Consulted only while banners are blocked.
func (t *Tray) criticalPending() bool {
	if t.notification != nil && t.notification.Urgency() == notify.UrgencyCritical {
		return true
	}
	for _, n := range t.queue {
		if n.Urgency() == notify.UrgencyCritical {
			return true
		}
	}
	return false
}

func (t *Tray) queued(n *notify.Notification) bool {
	for _, cur := range t.queue {
		if cur == n {
			return true
		}
	}
	return false
}

func (t *Tray) onNotificationRemoved(n *notify.Notification) {
	if t.notification == n {
		t.notificationRemoved = true
		if t.state == StateShown || t.state == StateShowing {
			t.pointerInBanner = false
			t.setHideTimer(0)
			t.updateState()
		}
		return
	}
	for i, cur := range t.queue {
		if cur == n {
			t.queue = append(t.queue[:i], t.queue[i+1:]...)
			t.QueueChanged.Emit(struct{}{})
			return
		}
	}
}

// updateState is the single step function. A reentrant call from within its
// own side effects is dropped; the outer call observes the updated inputs on
// its next natural tick.
func (t *Tray) updateState() {
	if t.bannerBlocked && !(t.criticalBypass && t.criticalPending()) {
		return
	}
	if t.locked || !t.env.PrimaryMonitorAvailable() {
		return
	}
	if t.updatingState {
		return
	}
	t.updatingState = true

	// Drop entries acknowledged by external means since the last tick.
	filtered := t.queue[:0]
	changed := false
	for _, n := range t.queue {
		if n.Acknowledged() {
			changed = true
			continue
		}
		filtered = append(filtered, n)
	}
	t.queue = filtered
	if changed {
		t.QueueChanged.Emit(struct{}{})
	}

	switch t.state {
	case StateHidden:
		if len(t.queue) > 0 {
			next := t.queue[0]
			limited := t.busy || t.env.Fullscreen()
			if !limited || next.ForFeedback || next.Urgency() == notify.UrgencyCritical {
				t.showNotification()
			}
		}
	case StateShowing, StateShown:
		expired := (t.userActiveWhileShown &&
			t.hideTimer == nil &&
			t.notification.Urgency() != notify.UrgencyCritical &&
			!t.pointerInBanner) || t.notificationExpired
		mustClose := t.notificationRemoved || expired

		if mustClose {
			t.hideNotification(!t.notificationRemoved)
		} else if t.state == StateShown && t.pointerInBanner {
			if !t.renderer.BannerExpanded() {
				t.expandBanner(false)
			} else {
				t.renderer.GrabFocus()
			}
		}
	}

	t.updatingState = false
	t.notificationExpired = false
}

func (t *Tray) showNotification() {
	t.notification = t.queue[0]
	t.queue = t.queue[1:]
	t.QueueChanged.Emit(struct{}{})

	t.userActiveWhileShown = t.env.IdleTime() <= IdleTime
	if !t.userActiveWhileShown {
		t.cancelActiveWatch = t.env.AddUserActiveWatch(t.onIdleBecameActive)
	}

	t.updateShowingNotification()

	// The pointer position at show time tells us later whether the banner
	// popped up under the cursor: that case gets a longer leave countdown
	// instead of an immediate expand on hover.
	x, y := t.env.PointerPosition()
	t.showPointerX, t.showPointerY = x, y
	t.lastSeenPointerX, t.lastSeenPointerY = x, y

	t.resetLeftTimer()
}

func (t *Tray) updateShowingNotification() {
	shown := t.notification
	shown.SetAcknowledged(true)

	if shown.Urgency() == notify.UrgencyCritical || shown.Source().Policy().ForceExpanded {
		t.expandBanner(true)
	}

	t.state = StateShowing
	t.renderer.ShowBanner(shown, func() {
		if t.notification != shown || t.state != StateShowing {
			return
		}
		t.state = StateShown
		if shown.Urgency() != notify.UrgencyCritical {
			t.setHideTimer(t.hideTimeoutFor(shown.Urgency()))
		}
		t.updateState()
	})
}

func (t *Tray) onIdleBecameActive() {
	t.cancelActiveWatch = nil
	t.userActiveWhileShown = true
	t.setHideTimer(2 * time.Second)
	t.updateState()
}

func (t *Tray) setHideTimer(d time.Duration) {
	if t.hideTimer != nil {
		t.hideTimer.Stop()
		t.hideTimer = nil
	}
	if d > 0 {
		t.hideTimer = t.sched.AfterFunc(d, t.onHideTimeout)
	}
}

func (t *Tray) onHideTimeout() {
	x, y := t.env.PointerPosition()
	switch {
	case y < t.lastSeenPointerY-10 && !t.bannerHovered:
		// The pointer is moving up toward the banner; give it another second
		// instead of hiding.
		t.setHideTimer(1 * time.Second)
	case t.useLongerLeftTimeout && t.leftTimer == nil &&
		(x != t.lastSeenPointerX || y != t.lastSeenPointerY):
		// The banner popped up under the pointer and the pointer is still
		// dwelling inside it.
		t.setHideTimer(1 * time.Second)
	default:
		t.hideTimer = nil
		t.updateState()
	}
	t.lastSeenPointerX, t.lastSeenPointerY = x, y
}

// SetBannerHovered is called by the renderer when the pointer enters or
// leaves the banner region.
func (t *Tray) SetBannerHovered(hovered bool) {
	if t.bannerHovered == hovered {
		return
	}
	t.bannerHovered = hovered

	if hovered {
		t.resetLeftTimer()

		if t.showPointerX >= 0 {
			underPointer := t.renderer.ContainsPoint(t.showPointerX, t.showPointerY)
			t.showPointerX, t.showPointerY = -1, -1
			// A banner that happened to pop up over the pointer is not
			// auto-expanded; the user can mouse away and back in. That
			// intent earns a longer leave countdown.
			if underPointer {
				t.useLongerLeftTimeout = true
				return
			}
		}

		t.pointerInBanner = true
		t.updateState()
	} else {
		x, y := t.env.PointerPosition()
		t.leftPointerX, t.leftPointerY = x, y

		timeout := HideTimeout
		if t.useLongerLeftTimeout {
			timeout = LongerHideTimeout
		}
		t.leftTimer = t.sched.AfterFunc(timeout, t.onLeftTimeout)
	}
}

func (t *Tray) resetLeftTimer() {
	t.useLongerLeftTimeout = false
	if t.leftTimer != nil {
		t.leftTimer.Stop()
		t.leftTimer = nil
		t.leftPointerX, t.leftPointerY = -1, -1
	}
}

func (t *Tray) onLeftTimeout() {
	x, y := t.env.PointerPosition()
	if t.leftPointerX > -1 &&
		y < t.leftPointerY+MouseLeftThreshold &&
		y > t.leftPointerY-MouseLeftThreshold &&
		x < t.leftPointerX+MouseLeftThreshold &&
		x > t.leftPointerX-MouseLeftThreshold {
		// The pointer barely moved; extend once before committing to hide.
		t.leftPointerX = -1
		t.leftTimer = t.sched.AfterFunc(LongerHideTimeout, t.onLeftTimeout)
		return
	}
	t.leftTimer = nil
	t.useLongerLeftTimeout = false
	t.pointerInBanner = false
	t.setHideTimer(0)
	t.updateState()
}

func (t *Tray) expandBanner(autoExpanding bool) {
	t.renderer.ExpandBanner(!autoExpanding)
	if !autoExpanding {
		t.renderer.GrabFocus()
	}
}

func (t *Tray) hideNotification(animate bool) {
	t.renderer.UngrabFocus()
	t.resetLeftTimer()
	if t.cancelActiveWatch != nil {
		t.cancelActiveWatch()
		t.cancelActiveWatch = nil
	}

	t.state = StateHiding
	t.renderer.HideBanner(animate, func() {
		if t.state != StateHiding {
			return
		}
		t.state = StateHidden
		t.hideNotificationCompleted()
		t.updateState()
	})
}

func (t *Tray) hideNotificationCompleted() {
	hidden := t.notification
	t.notification = nil
	if !t.notificationRemoved && hidden.Transient {
		hidden.Destroy(notify.ReasonExpired)
	}

	t.pointerInBanner = false
	t.bannerHovered = false
	t.notificationRemoved = false
	t.renderer.DestroyBanner()
}
