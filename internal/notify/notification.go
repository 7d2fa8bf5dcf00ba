// Package notify defines the core notification entities: Notification,
// Source and Policy, together with their lifecycle events.
package notify

import (
	"errors"
	"fmt"

	"github.com/graylag/shelltray/internal/event"
)

// Urgency is the severity tier of a notification. It controls queueing
// priority, banner eligibility and auto-hide exemption.
type Urgency int

const (
	UrgencyLow Urgency = iota
	UrgencyNormal
	UrgencyHigh
	UrgencyCritical
)

// Valid reports whether u is one of the enumerated urgency values.
func (u Urgency) Valid() bool {
	return u >= UrgencyLow && u <= UrgencyCritical
}

// String returns the lowercase name of the urgency level.
func (u Urgency) String() string {
	switch u {
	case UrgencyLow:
		return "low"
	case UrgencyNormal:
		return "normal"
	case UrgencyHigh:
		return "high"
	case UrgencyCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// PrivacyScope determines how much of a notification may be revealed on a
// locked screen.
type PrivacyScope int

const (
	ScopeUser PrivacyScope = iota
	ScopeSystem
)

// Valid reports whether p is one of the enumerated privacy scopes.
func (p PrivacyScope) Valid() bool {
	return p == ScopeUser || p == ScopeSystem
}

// String returns the lowercase name of the privacy scope.
func (p PrivacyScope) String() string {
	switch p {
	case ScopeUser:
		return "user"
	case ScopeSystem:
		return "system"
	default:
		return "unknown"
	}
}

// DestroyReason tags why a notification was destroyed. The daemon bridge
// translates it into the wire-level closed-reason code.
type DestroyReason int

const (
	ReasonExpired DestroyReason = iota + 1
	ReasonDismissed
	ReasonSourceClosed
	ReasonReplaced
)

// String returns the lowercase name of the destroy reason.
func (r DestroyReason) String() string {
	switch r {
	case ReasonExpired:
		return "expired"
	case ReasonDismissed:
		return "dismissed"
	case ReasonSourceClosed:
		return "source-closed"
	case ReasonReplaced:
		return "replaced"
	default:
		return "unknown"
	}
}

// ErrInvalidArgument is the base error for out-of-range enum assignments.
// Such assignments are rejected synchronously, never clamped.
var ErrInvalidArgument = errors.New("invalid argument")

// Icon identifies a notification or source icon. Exactly one of the fields
// is normally set: a themed icon name, a file path, or raw image bytes.
type Icon struct {
	Name string
	Path string
	Data []byte
}

// ThemedIcon returns an Icon referring to a named themed icon.
func ThemedIcon(name string) Icon { return Icon{Name: name} }

// FileIcon returns an Icon referring to an image file on disk.
func FileIcon(path string) Icon { return Icon{Path: path} }

// ImageIcon returns an Icon carrying raw image data.
func ImageIcon(data []byte) Icon { return Icon{Data: data} }

// IsZero reports whether the icon is unset.
func (i Icon) IsZero() bool {
	return i.Name == "" && i.Path == "" && len(i.Data) == 0
}

// Action is one entry of a notification's action list. Activating it runs
// the callback and then dismisses the notification unless it is resident.
type Action struct {
	label        string
	notification *Notification
	callback     func()
}

// Label returns the action's button label.
func (a *Action) Label() string { return a.label }

// Activate runs the action callback. The owning notification is destroyed
// afterwards unless it is resident, because resident notifications commonly
// update themselves in place in response to their own actions.
func (a *Action) Activate() {
	a.callback()
	if a.notification.Resident {
		return
	}
	a.notification.Destroy(ReasonDismissed)
}

// Notification is a single alert belonging to exactly one Source for its
// whole lifetime.
type Notification struct {
	source *Source

	title      string
	body       string
	bodyMarkup bool
	icon       Icon

	urgency Urgency
	privacy PrivacyScope

	// Resident notifications survive action invocation; transient ones are
	// destroyed as soon as their banner is dismissed or expires.
	Resident    bool
	Transient   bool
	ForFeedback bool

	acknowledged bool

	actions []*Action

	destroyed     bool
	destroyReason DestroyReason

	// Lifecycle and presentation events.
	Updated             event.Emitter[struct{}]
	ActionAdded         event.Emitter[*Action]
	ActionRemoved       event.Emitter[*Action]
	Activated           event.Emitter[struct{}]
	AcknowledgedChanged event.Emitter[bool]
	Destroyed           event.Emitter[DestroyReason]
}

// NewNotification creates a notification owned by source with default
// NORMAL urgency and USER privacy scope, not yet added to the source.
func NewNotification(source *Source) *Notification {
	return &Notification{
		source:  source,
		urgency: UrgencyNormal,
		privacy: ScopeUser,
	}
}

// Source returns the owning source.
func (n *Notification) Source() *Source { return n.source }

// Title returns the summary text.
func (n *Notification) Title() string { return n.title }

// Body returns the body text.
func (n *Notification) Body() string { return n.body }

// BodyMarkup reports whether the body may contain limited markup.
func (n *Notification) BodyMarkup() bool { return n.bodyMarkup }

// Icon returns the notification icon.
func (n *Notification) Icon() Icon { return n.icon }

// Urgency returns the urgency level.
func (n *Notification) Urgency() Urgency { return n.urgency }

// PrivacyScope returns the privacy scope.
func (n *Notification) PrivacyScope() PrivacyScope { return n.privacy }

// Acknowledged reports whether the notification has already been shown or
// otherwise seen, making it ineligible for banner display.
func (n *Notification) Acknowledged() bool { return n.acknowledged }

// Actions returns the action list in insertion order.
func (n *Notification) Actions() []*Action { return n.actions }

// IsDestroyed reports whether Destroy has run.
func (n *Notification) IsDestroyed() bool { return n.destroyed }

// DestroyReasonValue returns the reason Destroy was called with, valid only
// after destruction.
func (n *Notification) DestroyReasonValue() DestroyReason { return n.destroyReason }

// SetUrgency assigns the urgency, rejecting values outside the enumeration.
func (n *Notification) SetUrgency(u Urgency) error {
	if !u.Valid() {
		return fmt.Errorf("%w: urgency %d out of range", ErrInvalidArgument, u)
	}
	n.urgency = u
	return nil
}

// SetPrivacyScope assigns the privacy scope, rejecting values outside the
// enumeration.
func (n *Notification) SetPrivacyScope(p PrivacyScope) error {
	if !p.Valid() {
		return fmt.Errorf("%w: privacy scope %d out of range", ErrInvalidArgument, p)
	}
	n.privacy = p
	return nil
}

// UpdateParams carries the display fields an update may overwrite.
// Nil pointer fields leave the current value unchanged.
type UpdateParams struct {
	Title      *string
	Body       *string
	BodyMarkup *bool
	Icon       *Icon
}

// Update overwrites display fields in place and re-fires presentation
// observers. It never touches the acknowledged flag; an external re-notify
// that wants to re-open banner eligibility calls SetAcknowledged(false)
// explicitly.
func (n *Notification) Update(p UpdateParams) {
	if n.destroyed {
		return
	}
	if p.Title != nil {
		n.title = *p.Title
	}
	if p.Body != nil {
		n.body = *p.Body
	}
	if p.BodyMarkup != nil {
		n.bodyMarkup = *p.BodyMarkup
	}
	if p.Icon != nil {
		n.icon = *p.Icon
	}
	n.Updated.Emit(struct{}{})
}

// SetAcknowledged records whether the notification has been seen. Clearing
// it re-opens banner eligibility; the owning source reacts by re-requesting
// a banner.
func (n *Notification) SetAcknowledged(ack bool) {
	if n.destroyed || n.acknowledged == ack {
		return
	}
	n.acknowledged = ack
	n.AcknowledgedChanged.Emit(ack)
}

// AddAction appends an action and announces it to presentation observers.
func (n *Notification) AddAction(label string, callback func()) *Action {
	a := &Action{label: label, notification: n, callback: callback}
	n.actions = append(n.actions, a)
	n.ActionAdded.Emit(a)
	return a
}

// ClearActions empties the action list, emitting one removal event per
// action in insertion order.
func (n *Notification) ClearActions() {
	if len(n.actions) == 0 {
		return
	}
	actions := n.actions
	n.actions = nil
	for _, a := range actions {
		n.ActionRemoved.Emit(a)
	}
}

// Activate fires the activated event and then dismisses the notification
// unless it is resident.
func (n *Notification) Activate() {
	if n.destroyed {
		return
	}
	n.Activated.Emit(struct{}{})
	if n.Resident {
		return
	}
	n.Destroy(ReasonDismissed)
}

// Destroy tears the notification down with the given reason. It is
// idempotent: a destroyed notification is inert to further calls and the
// destroyed event is observed exactly once. All subscriptions are detached
// synchronously before Destroy returns.
func (n *Notification) Destroy(reason DestroyReason) {
	if n.destroyed {
		return
	}
	n.destroyed = true
	n.destroyReason = reason
	n.Destroyed.Emit(reason)

	n.Updated.DisconnectAll()
	n.ActionAdded.DisconnectAll()
	n.ActionRemoved.DisconnectAll()
	n.Activated.DisconnectAll()
	n.AcknowledgedChanged.DisconnectAll()
	n.Destroyed.DisconnectAll()
}
