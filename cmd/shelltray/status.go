package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/graylag/shelltray/internal/core"
	"github.com/graylag/shelltray/internal/model"
	"github.com/graylag/shelltray/internal/store"
)

var statusOpts struct {
	since string
	all   bool // Count closed records too
}

// WaybarStatus is the Waybar custom module JSON format.
type WaybarStatus struct {
	Text       string `json:"text"`
	Alt        string `json:"alt,omitempty"`
	Tooltip    string `json:"tooltip,omitempty"`
	Class      string `json:"class,omitempty"`
	Percentage int    `json:"percentage,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Output Waybar-compatible JSON status",
	Long: `Output notification status in Waybar's custom module JSON format.

By default, counts open (not yet closed) notifications from the last
48 hours. Use --all to count closed ones too.

Designed for Waybar's custom module:

  "custom/notifications": {
    "exec": "shelltray status",
    "interval": 5,
    "return-type": "json",
    "on-click": "shelltray dnd toggle"
  }

The output includes:
  - text: Number of notifications counted
  - alt: Urgency class (dnd, critical, normal, low, empty)
  - tooltip: Breakdown by urgency
  - class: CSS class, same values as alt`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusOpts.since, "since", "48h",
		"Count notifications from the last duration")
	statusCmd.Flags().BoolVar(&statusOpts.all, "all", false,
		"Count closed notifications too")
}

func runStatus(cmd *cobra.Command, args []string) error {
	state, err := store.LoadSharedState()
	if err != nil {
		state = store.DefaultSharedState()
	}

	since, err := core.ParseDuration(statusOpts.since)
	if err != nil {
		return fmt.Errorf("invalid since duration: %w", err)
	}

	records := core.Filter(historyStore.All(), core.FilterOptions{Since: since})
	return outputStatus(buildStatus(records, state.DnDEnabled, statusOpts.all))
}

// buildStatus summarizes records into a Waybar status entry.
func buildStatus(records []model.Record, dndEnabled, includeClosed bool) WaybarStatus {
	var total int
	byUrgency := make(map[int]int)
	for _, r := range records {
		if !includeClosed && r.IsClosed() {
			continue
		}
		total++
		byUrgency[r.Urgency]++
	}

	class := "empty"
	switch {
	case dndEnabled:
		class = "dnd"
	case byUrgency[model.UrgencyCritical] > 0:
		class = "critical"
	case byUrgency[model.UrgencyNormal] > 0:
		class = "normal"
	case byUrgency[model.UrgencyLow] > 0:
		class = "low"
	}

	text := ""
	if total > 0 {
		text = fmt.Sprintf("%d", total)
	}

	return WaybarStatus{
		Text:       text,
		Alt:        class,
		Tooltip:    buildTooltip(byUrgency, dndEnabled),
		Class:      class,
		Percentage: min(total, 100),
	}
}

func buildTooltip(byUrgency map[int]int, dndEnabled bool) string {
	var lines []string
	if dndEnabled {
		lines = append(lines, "Do Not Disturb on")
	}
	for _, u := range []int{model.UrgencyCritical, model.UrgencyNormal, model.UrgencyLow} {
		if n := byUrgency[u]; n > 0 {
			lines = append(lines, fmt.Sprintf("%s: %d", capitalize(model.UrgencyNames[u]), n))
		}
	}
	if len(lines) == 0 {
		return "No notifications"
	}
	return strings.Join(lines, "\n")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func outputStatus(status WaybarStatus) error {
	encoder := json.NewEncoder(os.Stdout)
	return encoder.Encode(status)
}
