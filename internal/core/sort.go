package core

import (
	"sort"
	"strings"

	"github.com/graylag/shelltray/internal/model"
)

// SortField represents a field to sort by.
type SortField string

const (
	SortByTimestamp SortField = "timestamp"
	SortByApp       SortField = "app"
	SortByUrgency   SortField = "urgency"
)

// SortOrder represents ascending or descending order.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// SortOptions specifies sorting criteria.
type SortOptions struct {
	Field SortField
	Order SortOrder
}

// DefaultSortOptions returns the newest-first default.
func DefaultSortOptions() SortOptions {
	return SortOptions{Field: SortByTimestamp, Order: SortDesc}
}

// Sort sorts records in place. The sort is stable so records that
// compare equal keep their recorded order.
func Sort(records []model.Record, opts SortOptions) {
	if len(records) == 0 {
		return
	}

	sort.SliceStable(records, func(i, j int) bool {
		// Equal keys must compare false in both directions or the sort
		// loses stability, so descending swaps operands instead of
		// negating the result.
		if opts.Order == SortDesc {
			i, j = j, i
		}
		switch opts.Field {
		case SortByApp:
			return strings.ToLower(records[i].AppName) < strings.ToLower(records[j].AppName)
		case SortByUrgency:
			return records[i].Urgency < records[j].Urgency
		default:
			return records[i].Timestamp < records[j].Timestamp
		}
	})
}

// ParseSortField parses a sort field string, defaulting to timestamp.
func ParseSortField(s string) SortField {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "app", "appname", "a":
		return SortByApp
	case "urgency", "u":
		return SortByUrgency
	default:
		return SortByTimestamp
	}
}

// ParseSortOrder parses a sort order string, defaulting to descending.
func ParseSortOrder(s string) SortOrder {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asc", "ascending", "a":
		return SortAsc
	default:
		return SortDesc
	}
}
