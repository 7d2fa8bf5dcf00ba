package dbus

import (
	"fmt"
	"log/slog"

	"github.com/godbus/dbus/v5"

	"github.com/graylag/shelltray/internal/bridge"
)

// MonitorHandler receives each observed notify request.
type MonitorHandler func(req bridge.NotifyRequest)

// Monitor passively observes notification traffic without claiming the bus
// name, so it can run alongside another notification daemon.
type Monitor struct {
	conn   *dbus.Conn
	logger *slog.Logger

	onNotify MonitorHandler
}

// NewMonitor creates a monitor.
func NewMonitor(logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{logger: logger}
}

// SetNotifyHandler sets the callback for observed notify calls.
func (m *Monitor) SetNotifyHandler(handler MonitorHandler) {
	m.onNotify = handler
}

// Start begins observing Notify method calls on the session bus.
func (m *Monitor) Start() error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	m.conn = conn

	rules := []string{
		"type='method_call',interface='org.freedesktop.Notifications',member='Notify'",
	}
	err = conn.BusObject().Call(
		"org.freedesktop.DBus.Monitoring.BecomeMonitor",
		0,
		rules,
		uint32(0),
	).Err
	if err != nil {
		// Older buses lack BecomeMonitor; eavesdropping match rules are the
		// fallback.
		m.logger.Warn("BecomeMonitor not available, trying AddMatch", "error", err)
		return m.startWithAddMatch()
	}

	m.logger.Info("started D-Bus monitor using BecomeMonitor")
	go m.processMessages()
	return nil
}

func (m *Monitor) startWithAddMatch() error {
	matchRule := "type='method_call',interface='org.freedesktop.Notifications',member='Notify',eavesdrop='true'"

	err := m.conn.BusObject().Call(
		"org.freedesktop.DBus.AddMatch",
		0,
		matchRule,
	).Err
	if err != nil {
		return fmt.Errorf("failed to add match rule (eavesdrop may require permissions): %w", err)
	}

	m.logger.Info("started D-Bus monitor using AddMatch with eavesdrop")
	go m.processMessages()
	return nil
}

// Stop closes the monitor's connection.
func (m *Monitor) Stop() {
	if m.conn != nil {
		m.conn.Close()
	}
}

func (m *Monitor) processMessages() {
	ch := make(chan *dbus.Message, 100)
	m.conn.Eavesdrop(ch)

	for msg := range ch {
		if msg.Type != dbus.TypeMethodCall {
			continue
		}
		if msg.Headers[dbus.FieldInterface].Value() != DBusInterface {
			continue
		}
		if msg.Headers[dbus.FieldMember].Value() != "Notify" {
			continue
		}
		m.handleNotify(msg)
	}
}

func (m *Monitor) handleNotify(msg *dbus.Message) {
	if len(msg.Body) < 8 {
		m.logger.Warn("malformed Notify call", "body_len", len(msg.Body))
		return
	}

	var req bridge.NotifyRequest
	var ok bool
	if req.AppName, ok = msg.Body[0].(string); !ok {
		m.logger.Warn("invalid app_name type")
		return
	}
	if req.ReplacesID, ok = msg.Body[1].(uint32); !ok {
		m.logger.Warn("invalid replaces_id type")
		return
	}
	if req.AppIcon, ok = msg.Body[2].(string); !ok {
		m.logger.Warn("invalid app_icon type")
		return
	}
	if req.Summary, ok = msg.Body[3].(string); !ok {
		m.logger.Warn("invalid summary type")
		return
	}
	if req.Body, ok = msg.Body[4].(string); !ok {
		m.logger.Warn("invalid body type")
		return
	}
	if actions, ok := msg.Body[5].([]string); ok {
		req.Actions = actions
	}
	if hints, ok := msg.Body[6].(map[string]dbus.Variant); ok {
		req.Hints = bridge.ParseHints(unpackHints(hints))
	} else {
		req.Hints = bridge.ParseHints(nil)
	}
	if timeout, ok := msg.Body[7].(int32); ok {
		req.ExpireMs = timeout
	}
	if sender, ok := msg.Headers[dbus.FieldSender].Value().(string); ok && req.Hints.Sender == "" {
		req.Hints.Sender = sender
	}

	m.logger.Debug("captured notification", "app", req.AppName, "summary", req.Summary)

	if m.onNotify != nil {
		m.onNotify(req)
	}
}
