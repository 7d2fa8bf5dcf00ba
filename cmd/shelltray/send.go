package main

import (
	"fmt"

	godbus "github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"

	"github.com/graylag/shelltray/internal/core"
	"github.com/graylag/shelltray/internal/dbus"
)

var sendOpts struct {
	appName      string
	urgency      string
	expireMs     int32
	replacesID   uint32
	icon         string
	desktopEntry string
	soundName    string
	soundFile    string
	transient    bool
	resident     bool
	actions      []string
}

var sendCmd = &cobra.Command{
	Use:   "send <summary> [body]",
	Short: "Send a notification",
	Long: `Send a notification to the running notification daemon.

Examples:
  # Simple notification
  shelltray send "Build finished"

  # With body, urgency and a 10s timeout
  shelltray send "Disk almost full" "less than 1GB left" --urgency critical --expire 10000

  # Replace a previous notification
  shelltray send "Progress 80%" --replaces 42

  # With an action the daemon reports back via ActionInvoked
  shelltray send "Update available" --action "install=Install now"`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringVarP(&sendOpts.appName, "app-name", "a", "",
		"Application name (default from config)")
	sendCmd.Flags().StringVarP(&sendOpts.urgency, "urgency", "u", "",
		"Urgency (low, normal, critical; default from config)")
	sendCmd.Flags().Int32VarP(&sendOpts.expireMs, "expire", "t", -1,
		"Expire timeout in milliseconds (-1=server default, 0=never)")
	sendCmd.Flags().Uint32VarP(&sendOpts.replacesID, "replaces", "r", 0,
		"ID of the notification to replace")
	sendCmd.Flags().StringVarP(&sendOpts.icon, "icon", "i", "",
		"Icon name or path")
	sendCmd.Flags().StringVar(&sendOpts.desktopEntry, "desktop-entry", "",
		"Desktop entry id identifying the sending application")
	sendCmd.Flags().StringVar(&sendOpts.soundName, "sound-name", "",
		"Themed sound name to play")
	sendCmd.Flags().StringVar(&sendOpts.soundFile, "sound-file", "",
		"Sound file path to play")
	sendCmd.Flags().BoolVar(&sendOpts.transient, "transient", false,
		"Mark the notification transient (not persisted to history)")
	sendCmd.Flags().BoolVar(&sendOpts.resident, "resident", false,
		"Mark the notification resident (kept after action invocation)")
	sendCmd.Flags().StringArrayVar(&sendOpts.actions, "action", nil,
		"Action as key=label; repeatable")
}

func runSend(cmd *cobra.Command, args []string) error {
	summary := args[0]
	body := ""
	if len(args) > 1 {
		body = args[1]
	}

	appName := sendOpts.appName
	if appName == "" {
		appName = cfg.Send.AppName
	}

	urgencyStr := sendOpts.urgency
	if urgencyStr == "" {
		urgencyStr = cfg.Send.Urgency
	}
	urgency, err := core.ParseUrgency(urgencyStr)
	if err != nil {
		return err
	}

	hints := map[string]godbus.Variant{
		"urgency": godbus.MakeVariant(byte(urgency)),
	}
	if sendOpts.desktopEntry != "" {
		hints["desktop-entry"] = godbus.MakeVariant(sendOpts.desktopEntry)
	}
	if sendOpts.soundName != "" {
		hints["sound-name"] = godbus.MakeVariant(sendOpts.soundName)
	}
	if sendOpts.soundFile != "" {
		hints["sound-file"] = godbus.MakeVariant(sendOpts.soundFile)
	}
	if sendOpts.transient {
		hints["transient"] = godbus.MakeVariant(true)
	}
	if sendOpts.resident {
		hints["resident"] = godbus.MakeVariant(true)
	}

	var actions []string
	for _, a := range sendOpts.actions {
		key, label := splitAction(a)
		actions = append(actions, key, label)
	}

	conn, err := godbus.SessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}

	obj := conn.Object(dbus.DBusInterface, dbus.DBusPath)
	var id uint32
	err = obj.Call(dbus.DBusInterface+".Notify", 0,
		appName, sendOpts.replacesID, sendOpts.icon, summary, body,
		actions, hints, sendOpts.expireMs).Store(&id)
	if err != nil {
		return fmt.Errorf("notify call failed: %w", err)
	}

	fmt.Println(id)
	return nil
}

// splitAction parses "key=label", treating a bare value as both key and
// label.
func splitAction(s string) (key, label string) {
	for i := range s {
		if s[i] == '=' {
			return s[:i], s[i+1:]
		}
	}
	return s, s
}
