package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/graylag/shelltray/internal/core"
	"github.com/graylag/shelltray/internal/model"
)

var pruneOpts struct {
	olderThan string
	keep      int
	dryRun    bool
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove old records from history",
	Long: `Remove old records from the persistent history.

Examples:
  # Remove records older than 7 days
  shelltray prune --older-than 7d

  # Keep only the 100 most recent records
  shelltray prune --keep 100

  # Preview what would be removed (dry run)
  shelltray prune --older-than 48h --dry-run`,
	RunE: runPrune,
}

func init() {
	rootCmd.AddCommand(pruneCmd)

	pruneCmd.Flags().StringVar(&pruneOpts.olderThan, "older-than", "",
		"Remove records older than this duration (e.g., 48h, 7d, 1w)")
	pruneCmd.Flags().IntVar(&pruneOpts.keep, "keep", 0,
		"Keep only the N most recent records (0=unlimited)")
	pruneCmd.Flags().BoolVar(&pruneOpts.dryRun, "dry-run", false,
		"Show what would be removed without actually removing")
}

func runPrune(cmd *cobra.Command, args []string) error {
	if pruneOpts.olderThan == "" && pruneOpts.keep == 0 {
		return fmt.Errorf("specify --older-than or --keep")
	}

	var olderThan time.Duration
	if pruneOpts.olderThan != "" {
		d, err := core.ParseDuration(pruneOpts.olderThan)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		olderThan = d
	}

	if pruneOpts.dryRun {
		toRemove := pruneCandidates(historyStore.All(), olderThan, pruneOpts.keep)
		if len(toRemove) == 0 {
			fmt.Println("No records to remove")
			return nil
		}
		fmt.Printf("Would remove %d record(s):\n", len(toRemove))
		for i, r := range toRemove {
			if i >= 10 {
				fmt.Printf("  ... and %d more\n", len(toRemove)-10)
				break
			}
			fmt.Printf("  - [%s] %s (%s)\n", r.AppName, r.Summary, r.RelativeTime())
		}
		return nil
	}

	removed, err := historyStore.Prune(olderThan, pruneOpts.keep)
	if err != nil {
		return fmt.Errorf("prune failed: %w", err)
	}
	fmt.Printf("Removed %d record(s)\n", removed)
	return nil
}

// pruneCandidates computes which records a prune with these options
// would drop, newest first.
func pruneCandidates(records []model.Record, olderThan time.Duration, keep int) []model.Record {
	core.Sort(records, core.DefaultSortOptions())

	drop := make(map[string]bool)
	if olderThan > 0 {
		cutoff := time.Now().Add(-olderThan)
		for _, r := range records {
			if time.Unix(r.Timestamp, 0).Before(cutoff) {
				drop[r.RecordID] = true
			}
		}
	}
	if keep > 0 {
		for i := keep; i < len(records); i++ {
			drop[records[i].RecordID] = true
		}
	}

	var out []model.Record
	for _, r := range records {
		if drop[r.RecordID] {
			out = append(out, r)
		}
	}
	return out
}
