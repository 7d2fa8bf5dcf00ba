package dbus

import (
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"
)

// NameWatcher tracks bus names and reports when they vanish. It backs the
// bridge's sender-vanished detection.
type NameWatcher struct {
	conn   *dbus.Conn
	logger *slog.Logger

	mu      sync.Mutex
	nextID  int
	watches map[string]map[int]func()

	signals chan *dbus.Signal
	done    chan struct{}
}

// NewNameWatcher starts watching NameOwnerChanged on the given connection.
func NewNameWatcher(conn *dbus.Conn, logger *slog.Logger) (*NameWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	w := &NameWatcher{
		conn:    conn,
		logger:  logger,
		watches: make(map[string]map[int]func()),
		signals: make(chan *dbus.Signal, 32),
		done:    make(chan struct{}),
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchSender("org.freedesktop.DBus"),
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
	); err != nil {
		return nil, err
	}

	conn.Signal(w.signals)
	go w.dispatch()
	return w, nil
}

// WatchSender registers a callback for when name leaves the bus. The
// returned cancel is idempotent.
func (w *NameWatcher) WatchSender(name string, vanished func()) (cancel func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.nextID
	w.nextID++
	if w.watches[name] == nil {
		w.watches[name] = make(map[int]func())
	}
	w.watches[name][id] = vanished

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			if set, ok := w.watches[name]; ok {
				delete(set, id)
				if len(set) == 0 {
					delete(w.watches, name)
				}
			}
		})
	}
}

// Close stops signal dispatch.
func (w *NameWatcher) Close() {
	close(w.done)
	w.conn.RemoveSignal(w.signals)
}

func (w *NameWatcher) dispatch() {
	for {
		select {
		case <-w.done:
			return
		case sig, ok := <-w.signals:
			if !ok {
				return
			}
			if sig.Name != "org.freedesktop.DBus.NameOwnerChanged" || len(sig.Body) != 3 {
				continue
			}
			name, _ := sig.Body[0].(string)
			newOwner, _ := sig.Body[2].(string)
			if newOwner != "" {
				continue
			}
			w.fire(name)
		}
	}
}

func (w *NameWatcher) fire(name string) {
	w.mu.Lock()
	set := w.watches[name]
	callbacks := make([]func(), 0, len(set))
	for _, fn := range set {
		callbacks = append(callbacks, fn)
	}
	delete(w.watches, name)
	w.mu.Unlock()

	if len(callbacks) > 0 {
		w.logger.Debug("bus name vanished", "name", name, "watches", len(callbacks))
	}
	for _, fn := range callbacks {
		fn()
	}
}
