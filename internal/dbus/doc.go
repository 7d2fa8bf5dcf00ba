// Package dbus implements the org.freedesktop.Notifications D-Bus surface.
// It provides a server that receives Notify and CloseNotification calls and
// forwards them to the daemon bridge, a name watcher that reports vanished
// senders, and a passive monitor that observes notification traffic without
// claiming the bus name.
package dbus
