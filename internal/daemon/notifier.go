package daemon

import (
	"log/slog"
	"sync"
	"time"

	"github.com/graylag/shelltray/internal/bridge"
	"github.com/graylag/shelltray/internal/notify"
)

const internalNotifyInterval = 30 * time.Second

// InternalNotifier lets the daemon surface its own problems as regular
// notifications, rate limited per key so a repeating fault does not
// flood the tray. Notify blocks on the control loop, so it must not be
// called from loop-posted code.
type InternalNotifier struct {
	bridge *bridge.Bridge
	log    *slog.Logger

	mu       sync.Mutex
	lastSent map[string]time.Time
	interval time.Duration
}

// NewInternalNotifier creates a notifier posting through the bridge.
func NewInternalNotifier(b *bridge.Bridge, log *slog.Logger) *InternalNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &InternalNotifier{
		bridge:   b,
		log:      log,
		lastSent: make(map[string]time.Time),
		interval: internalNotifyInterval,
	}
}

// Notify posts a daemon-originated notification unless the same key was
// sent within the rate limit window. Returns true when it was posted.
func (n *InternalNotifier) Notify(key string, urgency notify.Urgency, summary, body string) bool {
	n.mu.Lock()
	last, seen := n.lastSent[key]
	if seen && time.Since(last) < n.interval {
		n.mu.Unlock()
		return false
	}
	n.lastSent[key] = time.Now()
	n.mu.Unlock()

	id := n.bridge.Notify(bridge.NotifyRequest{
		AppName: "shelltrayd",
		Summary: summary,
		Body:    body,
		Hints: bridge.Hints{
			Urgency:      urgency,
			Transient:    true,
			DesktopEntry: "shelltrayd",
			PrivacyScope: notify.ScopeSystem,
		},
		ExpireMs: -1,
	})
	n.log.Debug("internal notification posted", "key", key, "id", id)
	return true
}

// Warn posts a normal-urgency internal notification.
func (n *InternalNotifier) Warn(key, summary, body string) bool {
	return n.Notify(key, notify.UrgencyNormal, summary, body)
}
