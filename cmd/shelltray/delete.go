package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete records from history",
	Long: `Delete records from the persistent history by record id.

Deleted records are tombstoned by content hash, so a running daemon
will not resurrect them when it rehydrates the history file.

Pairs with the ids output format:
  shelltray history --app slack --format ids | xargs shelltray delete`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDelete,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear all history",
	Long:  `Remove every record from the persistent history.`,
	RunE:  runClear,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(clearCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	deleted := 0
	for _, id := range args {
		if err := historyStore.DeleteWithTombstone(id); err != nil {
			logger.Warn("failed to delete record", "id", id, "error", err)
			continue
		}
		deleted++
	}
	fmt.Printf("Deleted %d record(s)\n", deleted)
	return nil
}

func runClear(cmd *cobra.Command, args []string) error {
	count := historyStore.Count()
	if err := historyStore.Clear(); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	fmt.Printf("Cleared %d record(s)\n", count)
	return nil
}
