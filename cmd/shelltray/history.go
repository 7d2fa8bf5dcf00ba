package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/graylag/shelltray/internal/core"
	"github.com/graylag/shelltray/internal/model"
	"github.com/graylag/shelltray/internal/output"
)

var historyOpts struct {
	// Filter options
	since   string
	app     string
	urgency string
	limit   int
	search  string
	filter  string

	// Sort options
	sortBy    string
	sortOrder string

	// Output options
	format   string
	field    string
	template string
}

var historyCmd = &cobra.Command{
	Use:   "history [index|id]",
	Short: "Query notification history",
	Long: `Query the persistent notification history and output in various
formats.

Without arguments, outputs matching records in dmenu format (suitable
for fuzzel, walker, rofi, etc.). With an index (1-based) or record id
argument, outputs that specific record.

Examples:
  # List recent notifications
  shelltray history --since 48h

  # Filter by app and search the text
  shelltray history --app firefox --search download

  # Compound filter expression
  shelltray history --filter "urgency>=normal,body~=(?i)meeting"

  # Get a record's body by index
  shelltray history 3 --field body

  # Output as JSON
  shelltray history --format json

  # Use with fuzzel for clipboard workflow
  shelltray history | fuzzel -d | shelltray history --field body | wl-copy`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&historyOpts.since, "since", "",
		"Show records from the last duration (e.g., 1h, 7d, 1w)")
	historyCmd.Flags().StringVar(&historyOpts.app, "app", "",
		"Filter by application name (exact match)")
	historyCmd.Flags().StringVar(&historyOpts.urgency, "urgency", "",
		"Filter by urgency (low, normal, critical)")
	historyCmd.Flags().IntVarP(&historyOpts.limit, "limit", "n", 0,
		"Maximum number of records to show (0=unlimited)")
	historyCmd.Flags().StringVarP(&historyOpts.search, "search", "s", "",
		"Search in summary and body")
	historyCmd.Flags().StringVar(&historyOpts.filter, "filter", "",
		"Filter expression (e.g. \"app=slack,urgency=critical\")")

	historyCmd.Flags().StringVar(&historyOpts.sortBy, "sort", "timestamp",
		"Sort by field (timestamp, app, urgency)")
	historyCmd.Flags().StringVar(&historyOpts.sortOrder, "order", "desc",
		"Sort order (asc, desc)")

	historyCmd.Flags().StringVarP(&historyOpts.format, "format", "f", "dmenu",
		"Output format (dmenu, json, plain, ids)")
	historyCmd.Flags().StringVar(&historyOpts.field, "field", "",
		"Output single field from record (id, app, summary, body, all)")
	historyCmd.Flags().StringVar(&historyOpts.template, "template", "",
		"Custom Go template for output formatting")
}

func runHistory(cmd *cobra.Command, args []string) error {
	records := historyStore.All()
	logger.Debug("loaded history", "count", len(records))

	if len(args) > 0 {
		return handleLookup(records, args[0])
	}

	records, err := applyHistoryFilters(records)
	if err != nil {
		return err
	}
	applyHistorySort(records)

	if len(records) == 0 {
		logger.Debug("no records to output")
		return nil
	}
	return createFormatter().Format(os.Stdout, records)
}

// applyHistoryFilters applies the flag-driven filters and, when given,
// the compound filter expression and text search.
func applyHistoryFilters(records []model.Record) ([]model.Record, error) {
	opts := core.FilterOptions{
		AppFilter: historyOpts.app,
		Limit:     historyOpts.limit,
	}

	since := historyOpts.since
	if since == "" {
		since = cfg.Filter.Since
	}
	if since != "" {
		d, err := core.ParseDuration(since)
		if err != nil {
			return nil, fmt.Errorf("invalid since duration: %w", err)
		}
		opts.Since = d
	}

	if historyOpts.urgency != "" {
		u, err := core.ParseUrgency(historyOpts.urgency)
		if err != nil {
			return nil, err
		}
		opts.Urgency = &u
	}

	if historyOpts.filter != "" {
		expr, err := core.ParseFilter(historyOpts.filter)
		if err != nil {
			return nil, err
		}
		records = core.FilterWithExpr(records, expr)
	}

	records = core.Filter(records, opts)

	if historyOpts.search != "" {
		records = core.Search(records, historyOpts.search)
	}

	return records, nil
}

func applyHistorySort(records []model.Record) {
	core.Sort(records, core.SortOptions{
		Field: core.ParseSortField(historyOpts.sortBy),
		Order: core.ParseSortOrder(historyOpts.sortOrder),
	})
}

// handleLookup resolves a positional argument as a 1-based index into
// the filtered listing, or as a record id, and outputs that record.
func handleLookup(records []model.Record, arg string) error {
	records, err := applyHistoryFilters(records)
	if err != nil {
		return err
	}
	applyHistorySort(records)

	var r *model.Record
	if idx, err := strconv.Atoi(parseDmenuSelection(arg)); err == nil && idx > 0 {
		r = core.LookupByIndex(records, idx)
		if r == nil {
			return fmt.Errorf("record at index %d not found", idx)
		}
	} else {
		r = core.LookupByID(records, arg)
		if r == nil {
			return fmt.Errorf("record with id %s not found", arg)
		}
	}

	if historyOpts.field != "" {
		fmt.Println(output.FormatField(r, historyOpts.field))
		return nil
	}

	// Single-record output defaults to JSON.
	formatter := output.NewJSONFormatter(output.DefaultFormatterOptions())
	return formatter.FormatSingle(os.Stdout, r)
}

// parseDmenuSelection extracts the leading index from a dmenu selection
// line like "3 | 5m | firefox | Download complete".
func parseDmenuSelection(selection string) string {
	selection = strings.TrimSpace(selection)
	if !strings.Contains(selection, "|") {
		return selection
	}
	parts := strings.SplitN(selection, "|", 2)
	return strings.TrimSpace(parts[0])
}

// createFormatter creates the list formatter based on options and config.
func createFormatter() output.Formatter {
	var format output.FormatType
	switch strings.ToLower(historyOpts.format) {
	case "json":
		format = output.FormatJSON
	case "plain":
		format = output.FormatPlain
	case "ids":
		format = output.FormatIDs
	default:
		format = output.FormatDmenu
	}

	opts := output.DefaultFormatterOptions()
	opts.Template = historyOpts.template
	if opts.Template == "" && cfg != nil {
		if format == output.FormatPlain {
			opts.Template = cfg.Templates.Full
		} else if format == output.FormatDmenu {
			opts.Template = cfg.Templates.List
		}
	}

	return output.NewFormatter(format, opts)
}
