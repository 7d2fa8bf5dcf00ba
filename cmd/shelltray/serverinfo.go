package main

import (
	"fmt"
	"strings"

	godbus "github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"

	"github.com/graylag/shelltray/internal/dbus"
)

var serverInfoCmd = &cobra.Command{
	Use:   "server-info",
	Short: "Show the running notification server's identity",
	Long: `Query GetServerInformation and GetCapabilities from whichever
daemon currently owns org.freedesktop.Notifications.`,
	RunE: runServerInfo,
}

func init() {
	rootCmd.AddCommand(serverInfoCmd)
}

func runServerInfo(cmd *cobra.Command, args []string) error {
	conn, err := godbus.SessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}

	obj := conn.Object(dbus.DBusInterface, dbus.DBusPath)

	var name, vendor, version, specVersion string
	err = obj.Call(dbus.DBusInterface+".GetServerInformation", 0).
		Store(&name, &vendor, &version, &specVersion)
	if err != nil {
		return fmt.Errorf("server information call failed: %w", err)
	}

	fmt.Printf("Name:         %s\n", name)
	fmt.Printf("Vendor:       %s\n", vendor)
	fmt.Printf("Version:      %s\n", version)
	fmt.Printf("Spec version: %s\n", specVersion)

	var capabilities []string
	if err := obj.Call(dbus.DBusInterface+".GetCapabilities", 0).Store(&capabilities); err == nil {
		fmt.Printf("Capabilities: %s\n", strings.Join(capabilities, ", "))
	}

	return nil
}
