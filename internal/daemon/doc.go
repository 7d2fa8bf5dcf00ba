// Package daemon wires the notification server together: the D-Bus
// surface, the lifecycle bridge, the tray state machine, history
// persistence, sound playback, and the config and state watchers. It
// owns the control loop everything else posts onto, and it translates
// between the bridge's loop-confined world and the file-backed store.
package daemon
