package daemon

import (
	"log/slog"
	"time"

	"github.com/graylag/shelltray/internal/event"
	"github.com/graylag/shelltray/internal/notify"
	"github.com/graylag/shelltray/internal/tray"
)

// logRenderer is the headless banner surface. There is no compositor to
// draw into, so show and hide complete on the next loop turn and the
// banner's lifecycle is visible only in the log.
type logRenderer struct {
	sched    event.Scheduler
	log      *slog.Logger
	expanded bool
	showing  bool
}

func newLogRenderer(sched event.Scheduler, log *slog.Logger) *logRenderer {
	return &logRenderer{sched: sched, log: log}
}

func (r *logRenderer) ShowBanner(n *notify.Notification, done func()) {
	r.showing = true
	r.expanded = false
	r.log.Info("banner shown",
		"title", n.Title(),
		"urgency", n.Urgency().String())
	r.sched.Post(done)
}

func (r *logRenderer) HideBanner(animate bool, done func()) {
	if r.showing {
		r.log.Debug("banner hidden")
	}
	r.showing = false
	r.expanded = false
	r.sched.Post(done)
}

func (r *logRenderer) DestroyBanner() {
	r.showing = false
	r.expanded = false
}

func (r *logRenderer) ExpandBanner(animate bool) { r.expanded = true }

func (r *logRenderer) BannerExpanded() bool { return r.expanded }

func (r *logRenderer) GrabFocus()   {}
func (r *logRenderer) UngrabFocus() {}

func (r *logRenderer) ContainsPoint(x, y int) bool { return false }

// staticEnvironment reports a permanently available, never-fullscreen
// display with no pointer and no idle tracking. The state machine then
// shows banners as soon as they queue.
type staticEnvironment struct{}

func (staticEnvironment) PrimaryMonitorAvailable() bool { return true }
func (staticEnvironment) Fullscreen() bool              { return false }
func (staticEnvironment) PointerPosition() (int, int)   { return -1, -1 }
func (staticEnvironment) IdleTime() time.Duration       { return 0 }

func (staticEnvironment) AddUserActiveWatch(fn func()) (cancel func()) {
	return func() {}
}
