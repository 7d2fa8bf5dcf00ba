// Package bridge translates external notify and close requests into Source
// and Notification operations, and internal destroy and action events back
// into wire-level closed and action-invoked signals.
package bridge

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/graylag/shelltray/internal/event"
	"github.com/graylag/shelltray/internal/notify"
)

// Wire-level closed-reason codes.
const (
	ClosedExpired   uint32 = 1
	ClosedDismissed uint32 = 2
	ClosedAppClosed uint32 = 3
	ClosedUndefined uint32 = 4
)

// SpecVersion is the notification protocol revision the server implements.
const SpecVersion = "1.2"

// Capabilities is the fixed capability set advertised to callers.
var Capabilities = []string{
	"actions",
	"body",
	"body-markup",
	"icon-static",
	"persistence",
	"sound",
}

// autoclearBlacklist names applications whose focus must not clear their
// notifications; browsers reuse one process for many logical apps.
var autoclearBlacklist = []string{"chromium", "firefox", "google chrome"}

// AppResolver resolves a request's originating application identity. The
// zero identity means the sender could not be matched to an application.
type AppResolver interface {
	ResolveApp(pid uint32, desktopEntry, appName string) string
	FocusedApp() string
}

// SenderWatcher watches a bus name and fires when it vanishes. The returned
// cancel is idempotent.
type SenderWatcher interface {
	WatchSender(name string, vanished func()) (cancel func())
}

// ServerInfo is the identity reported by GetServerInformation.
type ServerInfo struct {
	Name    string
	Vendor  string
	Version string
}

// NotifyRequest is one inbound notify call, hints already normalized.
type NotifyRequest struct {
	AppName    string
	ReplacesID uint32
	AppIcon    string
	Summary    string
	Body       string
	Actions    []string
	Hints      Hints
	ExpireMs   int32
}

// Posted describes a notification that was just created or updated, for
// history and sound consumers.
type Posted struct {
	ID       uint32
	AppName  string
	Summary  string
	Body     string
	Urgency  notify.Urgency
	Resident bool
	Hints    Hints
}

type sourceRecord struct {
	src         *notify.Source
	appKey      string
	cancelWatch func()
}

type notifRecord struct {
	n            *notify.Notification
	src          *sourceRecord
	activatedSub event.Subscription
	activated    bool
}

// Bridge owns the external-id registry and the source lookup tables. All
// state is mutated on the control loop; the blocking entry points post onto
// it and wait for the result.
type Bridge struct {
	sched    event.Scheduler
	resolver AppResolver
	watcher  SenderWatcher
	policies notify.PolicyLookup
	info     ServerInfo
	log      *slog.Logger

	nextID        uint32
	notifications map[uint32]*notifRecord
	byApp         map[string]*sourceRecord
	byPidName     map[string]*sourceRecord

	// sourceCap overrides the per-source notification cap; zero keeps the
	// notify package default.
	sourceCap int

	onClosed func(id, reason uint32)
	onAction func(id uint32, actionKey string)
	onPosted func(Posted)

	SourceRegistered event.Emitter[*notify.Source]
}

// New creates a bridge. resolver and watcher may be nil; without a resolver
// the desktop-entry hint is the application identity.
func New(sched event.Scheduler, resolver AppResolver, watcher SenderWatcher, policies notify.PolicyLookup, info ServerInfo, log *slog.Logger) *Bridge {
	if policies == nil {
		policies = &notify.StaticPolicyLookup{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Bridge{
		sched:         sched,
		resolver:      resolver,
		watcher:       watcher,
		policies:      policies,
		info:          info,
		log:           log,
		nextID:        1,
		notifications: make(map[uint32]*notifRecord),
		byApp:         make(map[string]*sourceRecord),
		byPidName:     make(map[string]*sourceRecord),
	}
}

// SetClosedHandler registers the outbound closed-signal emitter.
func (b *Bridge) SetClosedHandler(fn func(id, reason uint32)) { b.onClosed = fn }

// SetActionHandler registers the outbound action-invoked emitter.
func (b *Bridge) SetActionHandler(fn func(id uint32, actionKey string)) { b.onAction = fn }

// SetPostedHandler registers the consumer notified after every accepted
// notify request.
func (b *Bridge) SetPostedHandler(fn func(Posted)) { b.onPosted = fn }

// SetPolicyLookup swaps the policy table and re-resolves the policy of
// every live source against it.
func (b *Bridge) SetPolicyLookup(policies notify.PolicyLookup) {
	if policies == nil {
		policies = &notify.StaticPolicyLookup{}
	}
	b.sched.Post(func() {
		b.policies = policies
		for appKey, rec := range b.byApp {
			rec.src.SetPolicy(policies.PolicyForApp(appKey))
		}
		for _, rec := range b.byPidName {
			rec.src.SetPolicy(policies.PolicyForApp(""))
		}
	})
}

// SetSourceCap sets the per-source live-notification cap, applied at source
// creation and re-applied to every keyed live source. Zero restores the
// default.
func (b *Bridge) SetSourceCap(max int) {
	b.sched.Post(func() {
		b.sourceCap = max
		for _, rec := range b.byApp {
			rec.src.SetMaxNotifications(max)
		}
		for _, rec := range b.byPidName {
			rec.src.SetMaxNotifications(max)
		}
	})
}

// Notify services an inbound notify call. It posts onto the control loop
// and returns the allocated id synchronously; identity resolution never
// delays the reply.
func (b *Bridge) Notify(req NotifyRequest) uint32 {
	idCh := make(chan uint32, 1)
	b.sched.Post(func() {
		idCh <- b.handleNotify(req)
	})
	return <-idCh
}

// CloseNotification destroys the notification mapped to id. Unknown ids are
// a silent no-op.
func (b *Bridge) CloseNotification(id uint32) {
	b.sched.Post(func() {
		if rec, ok := b.notifications[id]; ok {
			rec.n.Destroy(notify.ReasonSourceClosed)
		}
	})
}

// GetCapabilities returns the advertised capability set.
func (b *Bridge) GetCapabilities() []string { return Capabilities }

// GetServerInformation returns the server identity tuple.
func (b *Bridge) GetServerInformation() (name, vendor, version, specVersion string) {
	return b.info.Name, b.info.Vendor, b.info.Version, SpecVersion
}

// Live returns how many notifications currently hold an external id.
// Control-loop only.
func (b *Bridge) Live() int { return len(b.notifications) }

func (b *Bridge) handleNotify(req NotifyRequest) uint32 {
	hints := req.Hints

	var id uint32
	var rec *notifRecord

	if existing, ok := b.notifications[req.ReplacesID]; req.ReplacesID != 0 && ok {
		// A replace reuses the notification and its source under the same
		// external id.
		id = req.ReplacesID
		rec = existing
	} else {
		src := b.resolveSource(req.AppName, hints)
		id = b.nextID
		b.nextID++

		n := notify.NewNotification(src.src)
		rec = &notifRecord{n: n, src: src}
		b.notifications[id] = rec

		n.Destroyed.Connect(func(reason notify.DestroyReason) {
			delete(b.notifications, id)
			b.emitClosed(id, reason)
		})
	}

	n := rec.n
	src := rec.src

	title := req.Summary
	body := req.Body
	markup := true
	icon := imageFromHints(hints)
	n.Update(notify.UpdateParams{Title: &title, Body: &body, BodyMarkup: &markup, Icon: &icon})

	n.ClearActions()
	hasDefault := false
	for i := 0; i+1 < len(req.Actions); i += 2 {
		actionID, label := req.Actions[i], req.Actions[i+1]
		if actionID == "default" {
			hasDefault = true
			continue
		}
		key := actionID
		n.AddAction(label, func() {
			b.emitAction(id, key)
		})
	}

	// Replaces re-wire the activated event; the previous subscription must
	// not fire alongside the new one.
	if rec.activated {
		rec.activatedSub.Disconnect()
	}
	if hasDefault {
		rec.activatedSub = n.Activated.Connect(func(struct{}) {
			b.emitAction(id, "default")
		})
	} else {
		rec.activatedSub = n.Activated.Connect(func(struct{}) {
			src.src.DestroyNonResidentNotifications()
		})
	}
	rec.activated = true

	if err := n.SetUrgency(hints.Urgency); err != nil {
		b.log.Warn("rejecting urgency hint", "id", id, "error", err)
	}
	n.Resident = hints.Resident
	n.Transient = hints.Transient
	if err := n.SetPrivacyScope(hints.PrivacyScope); err != nil {
		b.log.Warn("rejecting privacy scope hint", "id", id, "error", err)
	}

	// Clearing acknowledged last: on a replace this is what re-requests the
	// banner, and the request must observe the updated urgency and hints.
	n.SetAcknowledged(false)

	b.processNotification(src, n, req.AppName, req.AppIcon)

	if b.onPosted != nil {
		b.onPosted(Posted{
			ID:       id,
			AppName:  req.AppName,
			Summary:  req.Summary,
			Body:     req.Body,
			Urgency:  n.Urgency(),
			Resident: n.Resident,
			Hints:    hints,
		})
	}

	return id
}

// processNotification backfills the title and icon of anonymous sources
// from the request, acknowledges resident notifications of the focused
// application, and hands the notification to the source.
func (b *Bridge) processNotification(src *sourceRecord, n *notify.Notification, appName, appIcon string) {
	if src.appKey == "" {
		if appName != "" && src.src.Title() != appName {
			src.src.SetTitle(appName)
		}
		if appIcon != "" {
			src.src.SetIcon(iconForRef(appIcon))
		}
	}

	if n.Resident && src.appKey != "" && b.focusedApp() == src.appKey {
		n.SetAcknowledged(true)
	}

	src.src.AddNotification(n)
}

func (b *Bridge) resolveSource(appName string, hints Hints) *sourceRecord {
	appKey := hints.DesktopEntry
	if b.resolver != nil {
		appKey = b.resolver.ResolveApp(hints.SenderPID, hints.DesktopEntry, appName)
	}

	if appKey != "" {
		if rec, ok := b.byApp[appKey]; ok {
			return rec
		}
		rec := b.newSourceRecord(appKey, appKey, hints.Sender)
		b.byApp[appKey] = rec
		rec.src.Destroyed.Connect(func(notify.DestroyReason) {
			delete(b.byApp, appKey)
			rec.release()
		})
		b.SourceRegistered.Emit(rec.src)
		return rec
	}

	// Anonymous sender: key by pid and declared name. A zero pid cannot
	// identify anything, so such sources are never shared.
	pidKey := ""
	if hints.SenderPID != 0 {
		pidKey = pidNameKey(hints.SenderPID, appName)
		if rec, ok := b.byPidName[pidKey]; ok {
			return rec
		}
	}
	rec := b.newSourceRecord("", appName, hints.Sender)
	if pidKey != "" {
		b.byPidName[pidKey] = rec
		rec.src.Destroyed.Connect(func(notify.DestroyReason) {
			delete(b.byPidName, pidKey)
			rec.release()
		})
	} else {
		rec.src.Destroyed.Connect(func(notify.DestroyReason) {
			rec.release()
		})
	}
	b.SourceRegistered.Emit(rec.src)
	return rec
}

func (b *Bridge) newSourceRecord(appKey, title, sender string) *sourceRecord {
	policy := b.policies.PolicyForApp(appKey)
	rec := &sourceRecord{
		appKey: appKey,
		src:    notify.NewSource(title, notify.Icon{}, policy, b.log),
	}
	rec.src.SetMaxNotifications(b.sourceCap)

	if sender != "" && b.watcher != nil {
		rec.cancelWatch = b.watcher.WatchSender(sender, func() {
			b.sched.Post(func() {
				// Anonymous senders vanish from the bus immediately after a
				// one-shot send; only app-identified sources follow their
				// sender down.
				if rec.appKey != "" && !rec.src.IsDestroyed() {
					rec.src.Destroy(notify.ReasonSourceClosed)
				}
			})
		})
	}
	return rec
}

func (r *sourceRecord) release() {
	if r.cancelWatch != nil {
		r.cancelWatch()
		r.cancelWatch = nil
	}
}

// OnFocusChanged clears the non-resident notifications of the application
// that just took focus. Browser processes are exempt because one process
// fronts many logical apps. Control-loop only.
func (b *Bridge) OnFocusChanged(appKey, appName string) {
	if appKey == "" {
		return
	}
	name := strings.ToLower(appName)
	for _, blocked := range autoclearBlacklist {
		if name == blocked {
			return
		}
	}
	if rec, ok := b.byApp[appKey]; ok {
		rec.src.DestroyNonResidentNotifications()
	}
}

func (b *Bridge) focusedApp() string {
	if b.resolver == nil {
		return ""
	}
	return b.resolver.FocusedApp()
}

func (b *Bridge) emitClosed(id uint32, reason notify.DestroyReason) {
	if b.onClosed == nil {
		return
	}
	var wire uint32
	switch reason {
	case notify.ReasonExpired:
		wire = ClosedExpired
	case notify.ReasonDismissed:
		wire = ClosedDismissed
	case notify.ReasonSourceClosed:
		wire = ClosedAppClosed
	default:
		wire = ClosedUndefined
	}
	b.onClosed(id, wire)
}

func (b *Bridge) emitAction(id uint32, actionKey string) {
	if b.onAction != nil {
		b.onAction(id, actionKey)
	}
}

func pidNameKey(pid uint32, appName string) string {
	return strconv.FormatUint(uint64(pid), 10) + "\x00" + appName
}
