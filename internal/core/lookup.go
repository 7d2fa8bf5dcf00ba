package core

import (
	"sort"
	"strings"

	"github.com/graylag/shelltray/internal/model"
)

// LookupByID finds a record by its record id. Returns nil if not found.
func LookupByID(records []model.Record, id string) *model.Record {
	for i := range records {
		if records[i].RecordID == id {
			return &records[i]
		}
	}
	return nil
}

// LookupByIndex finds a record by 1-based index. Returns nil when the
// index is out of bounds.
func LookupByIndex(records []model.Record, index int) *model.Record {
	idx := index - 1
	if idx < 0 || idx >= len(records) {
		return nil
	}
	return &records[idx]
}

// Search returns records whose summary or body contains the term,
// case-insensitively.
func Search(records []model.Record, term string) []model.Record {
	if term == "" {
		return records
	}

	term = strings.ToLower(term)
	var result []model.Record
	for _, r := range records {
		if strings.Contains(strings.ToLower(r.Summary), term) ||
			strings.Contains(strings.ToLower(r.Body), term) {
			result = append(result, r)
		}
	}
	return result
}

// UniqueApps returns the distinct app names, sorted case-insensitively.
func UniqueApps(records []model.Record) []string {
	seen := make(map[string]bool)
	var apps []string
	for _, r := range records {
		if r.AppName != "" && !seen[r.AppName] {
			seen[r.AppName] = true
			apps = append(apps, r.AppName)
		}
	}
	sort.Slice(apps, func(i, j int) bool {
		return strings.ToLower(apps[i]) < strings.ToLower(apps[j])
	})
	return apps
}
