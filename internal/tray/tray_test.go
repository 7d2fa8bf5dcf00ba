package tray

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graylag/shelltray/internal/event"
	"github.com/graylag/shelltray/internal/notify"
)

type fakeTimer struct {
	d       time.Duration
	fn      func()
	stopped bool
}

func (ft *fakeTimer) Stop() { ft.stopped = true }

type fakeSched struct {
	timers []*fakeTimer
}

func (s *fakeSched) Post(fn func()) { fn() }

func (s *fakeSched) AfterFunc(d time.Duration, fn func()) event.TimerHandle {
	ft := &fakeTimer{d: d, fn: fn}
	s.timers = append(s.timers, ft)
	return ft
}

// fire runs every pending timer that has not been stopped.
func (s *fakeSched) fire() {
	pending := s.timers
	s.timers = nil
	for _, ft := range pending {
		if !ft.stopped {
			ft.fn()
		}
	}
}

type fakeEnv struct {
	primary    bool
	fullscreen bool
	pointerX   int
	pointerY   int
	idle       time.Duration
	watches    []func()
}

func (e *fakeEnv) PrimaryMonitorAvailable() bool { return e.primary }
func (e *fakeEnv) Fullscreen() bool              { return e.fullscreen }
func (e *fakeEnv) PointerPosition() (int, int)   { return e.pointerX, e.pointerY }
func (e *fakeEnv) IdleTime() time.Duration       { return e.idle }

func (e *fakeEnv) AddUserActiveWatch(fn func()) func() {
	e.watches = append(e.watches, fn)
	return func() {}
}

type fakeRenderer struct {
	showing    *notify.Notification
	showDone   func()
	hideDone   func()
	hides      int
	lastHide   bool
	expanded   bool
	destroys   int
	focusGrabs int
	underShow  bool
}

func (r *fakeRenderer) ShowBanner(n *notify.Notification, done func()) {
	r.showing = n
	r.showDone = done
}

func (r *fakeRenderer) HideBanner(animate bool, done func()) {
	r.hides++
	r.lastHide = animate
	r.hideDone = done
}

func (r *fakeRenderer) DestroyBanner() {
	r.destroys++
	r.showing = nil
	r.expanded = false
}

func (r *fakeRenderer) ExpandBanner(bool)           { r.expanded = true }
func (r *fakeRenderer) BannerExpanded() bool        { return r.expanded }
func (r *fakeRenderer) GrabFocus()                  { r.focusGrabs++ }
func (r *fakeRenderer) UngrabFocus()                {}
func (r *fakeRenderer) ContainsPoint(int, int) bool { return r.underShow }

func newTestTray(primary bool) (*Tray, *fakeSched, *fakeRenderer, *fakeEnv) {
	sched := &fakeSched{}
	renderer := &fakeRenderer{}
	env := &fakeEnv{primary: primary}
	return New(sched, renderer, env, nil), sched, renderer, env
}

func requestNotification(t *testing.T, tr *Tray, s *notify.Source, urgency notify.Urgency) *notify.Notification {
	t.Helper()
	n := notify.NewNotification(s)
	require.NoError(t, n.SetUrgency(urgency))
	s.AddNotification(n)
	return n
}

func TestLowUrgencyNeverQueued(t *testing.T) {
	tr, _, renderer, _ := newTestTray(true)
	s := notify.NewSource("app", notify.Icon{}, nil, nil)
	tr.Add(s)

	requestNotification(t, tr, s, notify.UrgencyLow)

	assert.Equal(t, 1, s.Count(), "source still owns the notification")
	assert.Equal(t, 0, tr.QueueLen())
	assert.Equal(t, StateHidden, tr.State())
	assert.Nil(t, renderer.showing)
}

func TestAcknowledgedNeverQueued(t *testing.T) {
	tr, _, _, env := newTestTray(true)
	env.primary = false
	s := notify.NewSource("app", notify.Icon{}, nil, nil)
	tr.Add(s)

	n := notify.NewNotification(s)
	n.SetAcknowledged(true)
	s.AddNotification(n)

	assert.Equal(t, 0, tr.QueueLen())
}

func TestQueueOrderedByUrgencyStable(t *testing.T) {
	// No primary monitor keeps the state machine from popping the queue.
	// One source per notification so the per-source cap cannot evict any
	// of the queued entries mid-test.
	tr, _, _, _ := newTestTray(false)

	request := func(name string, urgency notify.Urgency) *notify.Notification {
		s := notify.NewSource(name, notify.Icon{}, nil, nil)
		tr.Add(s)
		return requestNotification(t, tr, s, urgency)
	}

	normal := request("mail", notify.UrgencyNormal)
	crit1 := request("battery", notify.UrgencyCritical)
	request("build", notify.UrgencyLow)
	crit2 := request("pager", notify.UrgencyCritical)

	require.Equal(t, 3, tr.QueueLen())
	queue := tr.Queue()
	assert.Same(t, crit1, queue[0])
	assert.Same(t, crit2, queue[1])
	assert.Same(t, normal, queue[2])
}

func TestCriticalBypassesQueueCap(t *testing.T) {
	tr, _, _, _ := newTestTray(false)

	var normals []*notify.Notification
	for i := 0; i < MaxNotificationsInQueue+1; i++ {
		s := notify.NewSource("app", notify.Icon{}, nil, nil)
		tr.Add(s)
		normals = append(normals, requestNotification(t, tr, s, notify.UrgencyNormal))
	}
	require.Equal(t, MaxNotificationsInQueue, tr.QueueLen(), "cap drops the overflow normal")

	s := notify.NewSource("urgent", notify.Icon{}, nil, nil)
	tr.Add(s)
	crit := requestNotification(t, tr, s, notify.UrgencyCritical)

	require.Equal(t, MaxNotificationsInQueue+1, tr.QueueLen())
	assert.Same(t, crit, tr.Queue()[0], "critical jumps ahead of pending normals")
	assert.Same(t, normals[0], tr.Queue()[1])
}

func TestLimitsOverrideQueueCap(t *testing.T) {
	tr, _, _, _ := newTestTray(false)
	tr.SetLimits(Limits{MaxQueue: 1})

	s1 := notify.NewSource("one", notify.Icon{}, nil, nil)
	tr.Add(s1)
	requestNotification(t, tr, s1, notify.UrgencyNormal)

	s2 := notify.NewSource("two", notify.Icon{}, nil, nil)
	tr.Add(s2)
	requestNotification(t, tr, s2, notify.UrgencyNormal)

	assert.Equal(t, 1, tr.QueueLen(), "second normal dropped by the tighter cap")

	tr.SetLimits(Limits{})
	s3 := notify.NewSource("three", notify.Icon{}, nil, nil)
	tr.Add(s3)
	requestNotification(t, tr, s3, notify.UrgencyNormal)
	assert.Equal(t, 2, tr.QueueLen(), "zero restores the default cap")
}

func TestLimitsOverrideHideTimeout(t *testing.T) {
	tr, sched, renderer, env := newTestTray(true)
	env.idle = 0
	tr.SetLimits(Limits{NormalTimeout: 9 * time.Second, HighTimeout: 7 * time.Second})

	s := notify.NewSource("app", notify.Icon{}, nil, nil)
	tr.Add(s)
	requestNotification(t, tr, s, notify.UrgencyNormal)
	renderer.showDone()

	require.NotEmpty(t, sched.timers)
	assert.Equal(t, 9*time.Second, sched.timers[len(sched.timers)-1].d)

	assert.Equal(t, 7*time.Second, tr.hideTimeoutFor(notify.UrgencyHigh))
	tr.SetLimits(Limits{})
	assert.Equal(t, NotificationTimeout, tr.hideTimeoutFor(notify.UrgencyNormal))
}

func TestPolicyBannerVetoOverriddenByCritical(t *testing.T) {
	tr, _, _, _ := newTestTray(false)
	policy := &notify.Policy{Enable: true, ShowBanners: false}
	s := notify.NewSource("app", notify.Icon{}, policy, nil)
	tr.Add(s)

	requestNotification(t, tr, s, notify.UrgencyNormal)
	assert.Equal(t, 0, tr.QueueLen())

	requestNotification(t, tr, s, notify.UrgencyCritical)
	assert.Equal(t, 1, tr.QueueLen())
}

func TestShowHideCycleDestroysTransient(t *testing.T) {
	tr, sched, renderer, env := newTestTray(true)
	env.idle = 0
	s := notify.NewSource("app", notify.Icon{}, nil, nil)
	tr.Add(s)

	n := notify.NewNotification(s)
	n.Transient = true
	s.AddNotification(n)

	require.Same(t, n, renderer.showing)
	assert.Equal(t, StateShowing, tr.State())
	assert.True(t, n.Acknowledged(), "showing acknowledges the notification")

	renderer.showDone()
	assert.Equal(t, StateShown, tr.State())

	// Auto-hide timer elapses with the pointer nowhere near the banner.
	sched.fire()
	require.Equal(t, StateHiding, tr.State())
	assert.True(t, renderer.lastHide, "expiry hides with animation")

	renderer.hideDone()
	assert.Equal(t, StateHidden, tr.State())
	assert.True(t, n.IsDestroyed())
	assert.Equal(t, notify.ReasonExpired, n.DestroyReasonValue())
	assert.Equal(t, 1, renderer.destroys)
}

func TestCriticalNeverAutoHides(t *testing.T) {
	tr, sched, renderer, _ := newTestTray(true)
	s := notify.NewSource("app", notify.Icon{}, nil, nil)
	tr.Add(s)

	requestNotification(t, tr, s, notify.UrgencyCritical)
	renderer.showDone()

	assert.Equal(t, StateShown, tr.State())
	assert.Empty(t, sched.timers, "no auto-hide timer for critical urgency")
	assert.True(t, renderer.expanded, "critical banners auto-expand")
}

func TestEscapeExpiresEvenCritical(t *testing.T) {
	tr, _, renderer, _ := newTestTray(true)
	s := notify.NewSource("app", notify.Icon{}, nil, nil)
	tr.Add(s)

	requestNotification(t, tr, s, notify.UrgencyCritical)
	renderer.showDone()
	require.Equal(t, StateShown, tr.State())

	tr.ExpireShowing()
	assert.Equal(t, StateHiding, tr.State())
}

func TestRemovedWhileShownHidesWithoutAnimation(t *testing.T) {
	tr, _, renderer, _ := newTestTray(true)
	s := notify.NewSource("app", notify.Icon{}, nil, nil)
	tr.Add(s)

	n := requestNotification(t, tr, s, notify.UrgencyNormal)
	renderer.showDone()

	n.Destroy(notify.ReasonDismissed)
	require.Equal(t, StateHiding, tr.State())
	assert.False(t, renderer.lastHide, "removal skips the hide animation")

	renderer.hideDone()
	assert.Equal(t, StateHidden, tr.State())
	assert.Nil(t, tr.Showing())
}

func TestUpdateWhileShownRestartsInsteadOfQueueing(t *testing.T) {
	tr, _, renderer, _ := newTestTray(true)
	s := notify.NewSource("app", notify.Icon{}, nil, nil)
	tr.Add(s)

	n := requestNotification(t, tr, s, notify.UrgencyNormal)
	renderer.showDone()
	require.Equal(t, StateShown, tr.State())

	// An external re-notify clears acknowledged and re-requests the banner.
	n.SetAcknowledged(false)

	assert.Same(t, n, tr.Showing())
	assert.Equal(t, 0, tr.QueueLen(), "shown notification must not be queued again")
	assert.Equal(t, StateShowing, tr.State(), "showing setup re-runs")
}

func TestBusySessionDefersNonCritical(t *testing.T) {
	tr, _, renderer, _ := newTestTray(true)
	tr.SetPresence(PresenceBusy)
	s := notify.NewSource("app", notify.Icon{}, nil, nil)
	tr.Add(s)

	requestNotification(t, tr, s, notify.UrgencyNormal)
	assert.Equal(t, StateHidden, tr.State())
	assert.Equal(t, 1, tr.QueueLen())

	crit := requestNotification(t, tr, s, notify.UrgencyCritical)
	assert.Same(t, crit, tr.Showing(), "critical shows even while busy")

	renderer.showDone()
	tr.ExpireShowing()
	renderer.hideDone()

	// Becoming available releases the deferred normal notification.
	tr.SetPresence(PresenceAvailable)
	assert.NotNil(t, tr.Showing())
}

func TestQueueFilterDropsExternallyAcknowledged(t *testing.T) {
	// A busy session keeps normal notifications queued while the state
	// machine still ticks.
	tr, _, _, _ := newTestTray(true)
	tr.SetPresence(PresenceBusy)
	s := notify.NewSource("app", notify.Icon{}, nil, nil)
	tr.Add(s)

	n1 := requestNotification(t, tr, s, notify.UrgencyNormal)
	requestNotification(t, tr, s, notify.UrgencyNormal)
	require.Equal(t, 2, tr.QueueLen())

	changes := 0
	tr.QueueChanged.Connect(func(struct{}) { changes++ })

	n1.SetAcknowledged(true)
	tr.SetPresence(PresenceBusy)

	assert.Equal(t, 1, tr.QueueLen())
	assert.Equal(t, 1, changes, "filter emits only when it removed something")

	tr.SetPresence(PresenceBusy)
	assert.Equal(t, 1, changes, "no emit when the filter found nothing")
}

func TestPointerTowardBannerDefersHide(t *testing.T) {
	tr, sched, renderer, env := newTestTray(true)
	env.pointerY = 500
	s := notify.NewSource("app", notify.Icon{}, nil, nil)
	tr.Add(s)

	requestNotification(t, tr, s, notify.UrgencyNormal)
	renderer.showDone()
	require.Len(t, sched.timers, 1)
	assert.Equal(t, NotificationTimeout, sched.timers[0].d)

	// The pointer moved up toward the banner since the last sample.
	env.pointerY = 400
	sched.fire()

	require.Equal(t, StateShown, tr.State(), "hide deferred while pointer approaches")
	require.Len(t, sched.timers, 1)
	assert.Equal(t, 1*time.Second, sched.timers[0].d)

	// Pointer stopped; the deferred timer now expires the banner.
	sched.fire()
	assert.Equal(t, StateHiding, tr.State())
}

func TestHoverBlocksExpiryUntilPointerLeaves(t *testing.T) {
	tr, sched, renderer, env := newTestTray(true)
	s := notify.NewSource("app", notify.Icon{}, nil, nil)
	tr.Add(s)

	requestNotification(t, tr, s, notify.UrgencyNormal)
	renderer.showDone()

	tr.SetBannerHovered(true)
	assert.True(t, renderer.expanded, "hover expands the banner")

	sched.fire()
	assert.Equal(t, StateShown, tr.State(), "hovered banner does not expire")

	// Leaving starts the short countdown; the pointer then moves far away.
	env.pointerX, env.pointerY = 100, 100
	tr.SetBannerHovered(false)
	require.Len(t, sched.timers, 1)
	assert.Equal(t, HideTimeout, sched.timers[0].d)

	env.pointerX, env.pointerY = 400, 400
	sched.fire()
	assert.Equal(t, StateHiding, tr.State())
}

func TestLeaveCountdownExtendsOnceForNearbyPointer(t *testing.T) {
	tr, sched, renderer, env := newTestTray(true)
	s := notify.NewSource("app", notify.Icon{}, nil, nil)
	tr.Add(s)

	requestNotification(t, tr, s, notify.UrgencyNormal)
	renderer.showDone()
	tr.SetBannerHovered(true)

	env.pointerX, env.pointerY = 100, 100
	tr.SetBannerHovered(false)

	// Pointer stayed within the threshold: countdown extends with the longer
	// timeout instead of firing.
	env.pointerX, env.pointerY = 105, 105
	sched.fire()
	require.Equal(t, StateShown, tr.State())
	require.Len(t, sched.timers, 1)
	assert.Equal(t, LongerHideTimeout, sched.timers[0].d)

	sched.fire()
	assert.Equal(t, StateHiding, tr.State())
}

func TestBannerUnderPointerGetsLongerLeaveTimeout(t *testing.T) {
	tr, sched, renderer, env := newTestTray(true)
	renderer.underShow = true
	env.pointerX, env.pointerY = 200, 200
	s := notify.NewSource("app", notify.Icon{}, nil, nil)
	tr.Add(s)

	requestNotification(t, tr, s, notify.UrgencyNormal)
	renderer.showDone()

	// Hover over a banner that popped up under the cursor does not expand it.
	wasExpanded := renderer.expanded
	tr.SetBannerHovered(true)
	assert.Equal(t, wasExpanded, renderer.expanded)

	tr.SetBannerHovered(false)
	require.Len(t, sched.timers, 2, "auto-hide plus leave countdown")
	assert.Equal(t, LongerHideTimeout, sched.timers[1].d)
}

func TestSourceDestroyRemovesFromTray(t *testing.T) {
	tr, _, _, _ := newTestTray(false)
	s := notify.NewSource("app", notify.Icon{}, nil, nil)
	tr.Add(s)
	require.True(t, tr.Contains(s))

	removed := 0
	tr.SourceRemoved.Connect(func(*notify.Source) { removed++ })

	s.Destroy(notify.ReasonSourceClosed)
	assert.False(t, tr.Contains(s))
	assert.Equal(t, 1, removed)
}

func TestDisabledPolicySourceNotAdded(t *testing.T) {
	tr, _, _, _ := newTestTray(true)
	s := notify.NewSource("app", notify.Icon{}, &notify.Policy{Enable: false}, nil)
	tr.Add(s)
	assert.False(t, tr.Contains(s))
}

func TestNextQueuedShowsAfterHide(t *testing.T) {
	tr, _, renderer, _ := newTestTray(true)
	s := notify.NewSource("app", notify.Icon{}, nil, nil)
	tr.Add(s)

	first := requestNotification(t, tr, s, notify.UrgencyNormal)
	renderer.showDone()
	require.Same(t, first, tr.Showing())
	require.Equal(t, StateShown, tr.State())

	second := requestNotification(t, tr, s, notify.UrgencyNormal)
	require.Equal(t, 1, tr.QueueLen())

	tr.ExpireShowing()
	renderer.hideDone()

	assert.Same(t, second, tr.Showing())
	assert.Equal(t, StateShowing, tr.State())
}

func TestBannerBlockedHoldsEverything(t *testing.T) {
	tr, _, renderer, _ := newTestTray(true)
	tr.SetBannerBlocked(true)
	s := notify.NewSource("app", notify.Icon{}, nil, nil)
	tr.Add(s)

	requestNotification(t, tr, s, notify.UrgencyCritical)

	assert.Equal(t, StateHidden, tr.State())
	assert.Nil(t, renderer.showing)
	assert.Equal(t, 1, tr.QueueLen())
}

func TestCriticalBypassPunchesThroughBlock(t *testing.T) {
	tr, _, renderer, _ := newTestTray(true)
	tr.SetBannerBlocked(true)
	tr.SetCriticalBypass(true)
	s := notify.NewSource("app", notify.Icon{}, nil, nil)
	tr.Add(s)

	requestNotification(t, tr, s, notify.UrgencyNormal)
	assert.Equal(t, StateHidden, tr.State(), "normal stays queued under the block")
	assert.Equal(t, 1, tr.QueueLen())

	crit := requestNotification(t, tr, s, notify.UrgencyCritical)
	require.Same(t, crit, renderer.showing)
	assert.Equal(t, StateShowing, tr.State())
	assert.Equal(t, 1, tr.QueueLen(), "the normal is still waiting")
}

func TestBlockLiftedReleasesQueue(t *testing.T) {
	tr, _, renderer, _ := newTestTray(true)
	tr.SetBannerBlocked(true)
	s := notify.NewSource("app", notify.Icon{}, nil, nil)
	tr.Add(s)

	n := requestNotification(t, tr, s, notify.UrgencyNormal)
	require.Equal(t, 1, tr.QueueLen())

	tr.SetBannerBlocked(false)
	assert.Same(t, n, renderer.showing)
	assert.Equal(t, StateShowing, tr.State())
}
