package main

import (
	"fmt"
	"strconv"

	godbus "github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"

	"github.com/graylag/shelltray/internal/dbus"
)

var closeCmd = &cobra.Command{
	Use:   "close <id>",
	Short: "Close a notification by its bus id",
	Long: `Ask the notification daemon to close a notification.

The daemon emits NotificationClosed with the close-notification reason.
Unknown ids are a silent no-op, per the protocol.`,
	Args: cobra.ExactArgs(1),
	RunE: runClose,
}

func init() {
	rootCmd.AddCommand(closeCmd)
}

func runClose(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid notification id: %s", args[0])
	}

	conn, err := godbus.SessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}

	obj := conn.Object(dbus.DBusInterface, dbus.DBusPath)
	if call := obj.Call(dbus.DBusInterface+".CloseNotification", 0, uint32(id)); call.Err != nil {
		return fmt.Errorf("close call failed: %w", call.Err)
	}
	return nil
}
