package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/graylag/shelltray/internal/store"
)

var dndOpts struct {
	quiet bool // Suppress output, return exit code only
}

// dndCmd represents the dnd command group.
var dndCmd = &cobra.Command{
	Use:   "dnd",
	Short: "Manage Do Not Disturb mode",
	Long: `Manage Do Not Disturb (DnD) mode for shelltrayd.

When DnD is enabled, shelltrayd suppresses banners and sounds while
still persisting notifications to the history store. Critical
notifications still break through when critical bypass is configured.

Use 'shelltray dnd status' to check the current state.
Use 'shelltray dnd on' to enable DnD mode.
Use 'shelltray dnd off' to disable DnD mode.
Use 'shelltray dnd toggle' to toggle DnD mode.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return dndStatusRun(cmd, args)
	},
}

var dndOnCmd = &cobra.Command{
	Use:   "on",
	Short: "Enable Do Not Disturb mode",
	RunE:  dndOnRun,
}

var dndOffCmd = &cobra.Command{
	Use:   "off",
	Short: "Disable Do Not Disturb mode",
	RunE:  dndOffRun,
}

var dndToggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Toggle Do Not Disturb mode",
	RunE:  dndToggleRun,
}

var dndStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show Do Not Disturb status",
	RunE:  dndStatusRun,
}

func init() {
	dndCmd.AddCommand(dndOnCmd)
	dndCmd.AddCommand(dndOffCmd)
	dndCmd.AddCommand(dndToggleCmd)
	dndCmd.AddCommand(dndStatusCmd)

	for _, cmd := range []*cobra.Command{dndCmd, dndOnCmd, dndOffCmd, dndToggleCmd, dndStatusCmd} {
		cmd.Flags().BoolVarP(&dndOpts.quiet, "quiet", "q", false,
			"Suppress output, return exit code only (0=off, 1=on)")
	}

	rootCmd.AddCommand(dndCmd)
}

func setDnD(enabled bool, reason string) error {
	state, err := store.LoadSharedState()
	if err != nil {
		if !dndOpts.quiet {
			fmt.Fprintf(os.Stderr, "Failed to load state: %v\n", err)
		}
		return err
	}

	state.SetDnD(enabled, store.DnDTriggerUser, reason, "cli")
	if err := store.SaveSharedState(state); err != nil {
		if !dndOpts.quiet {
			fmt.Fprintf(os.Stderr, "Failed to save state: %v\n", err)
		}
		return err
	}
	return nil
}

func printDnD(enabled bool) {
	if dndOpts.quiet {
		return
	}
	if enabled {
		fmt.Println("Do Not Disturb: enabled")
	} else {
		fmt.Println("Do Not Disturb: disabled")
	}
}

func dndOnRun(cmd *cobra.Command, args []string) error {
	if err := setDnD(true, "dnd on"); err != nil {
		return err
	}
	printDnD(true)

	// Exit code 1 means DnD is now on
	os.Exit(1)
	return nil
}

func dndOffRun(cmd *cobra.Command, args []string) error {
	if err := setDnD(false, "dnd off"); err != nil {
		return err
	}
	printDnD(false)
	return nil
}

func dndToggleRun(cmd *cobra.Command, args []string) error {
	state, err := store.LoadSharedState()
	if err != nil {
		if !dndOpts.quiet {
			fmt.Fprintf(os.Stderr, "Failed to load state: %v\n", err)
		}
		return err
	}

	newEnabled := state.ToggleDnD(store.DnDTriggerUser, "dnd toggle", "cli")
	if err := store.SaveSharedState(state); err != nil {
		if !dndOpts.quiet {
			fmt.Fprintf(os.Stderr, "Failed to save state: %v\n", err)
		}
		return err
	}

	printDnD(newEnabled)
	if newEnabled {
		os.Exit(1)
	}
	return nil
}

func dndStatusRun(cmd *cobra.Command, args []string) error {
	state, err := store.LoadSharedState()
	if err != nil {
		if !dndOpts.quiet {
			fmt.Fprintf(os.Stderr, "Failed to load state: %v\n", err)
		}
		return err
	}

	if !dndOpts.quiet {
		printDnD(state.DnDEnabled)
		if t := state.DnDLastTransition; t != nil {
			fmt.Printf("  Last change: %s\n", humanize.Time(time.Unix(t.Timestamp, 0)))
			fmt.Printf("  Trigger: %s\n", t.Trigger)
			if t.Reason != "" {
				fmt.Printf("  Reason: %s\n", t.Reason)
			}
			if t.Source != "" {
				fmt.Printf("  Source: %s\n", t.Source)
			}
		}
	}

	// Exit code: 0=off, 1=on
	if state.DnDEnabled {
		os.Exit(1)
	}
	return nil
}
