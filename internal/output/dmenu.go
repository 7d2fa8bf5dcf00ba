package output

import (
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"github.com/graylag/shelltray/internal/model"
)

// DmenuFormatter formats records one per line for dmenu, rofi, or
// fuzzel pipelines.
type DmenuFormatter struct {
	opts     FormatterOptions
	template *template.Template
}

// NewDmenuFormatter creates a new dmenu formatter. An unparsable custom
// template falls back to the default line format.
func NewDmenuFormatter(opts FormatterOptions) *DmenuFormatter {
	f := &DmenuFormatter{opts: opts}
	if opts.Template != "" {
		tmpl, err := template.New("dmenu").Funcs(templateFuncs()).Parse(opts.Template)
		if err == nil {
			f.template = tmpl
		}
	}
	return f
}

// Format writes records in dmenu format, one per line.
func (f *DmenuFormatter) Format(w io.Writer, records []model.Record) error {
	for i := range records {
		line := f.formatLine(i+1, &records[i])
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func (f *DmenuFormatter) formatLine(index int, r *model.Record) string {
	if f.template != nil {
		var buf strings.Builder
		if err := f.template.Execute(&buf, newTemplateData(index, r)); err == nil {
			return buf.String()
		}
	}

	// Default format: index | time | app | summary: body
	sep := f.opts.Separator
	if sep == "" {
		sep = " | "
	}

	var parts []string
	if f.opts.ShowIndex {
		parts = append(parts, fmt.Sprintf("%d", index))
	}
	if f.opts.ShowTime {
		parts = append(parts, shortRelativeTime(r.Timestamp))
	}
	if f.opts.ShowApp && r.AppName != "" {
		parts = append(parts, r.AppName)
	}

	content := r.Summary
	if body := r.BodyTruncated(f.opts.BodyMaxLen); body != "" {
		content += ": " + body
	}
	parts = append(parts, content)

	return strings.Join(parts, sep)
}

// templateData is the value custom templates execute against.
type templateData struct {
	Index        int
	Record       *model.Record
	AppName      string
	Summary      string
	Body         string
	RelativeTime string
}

func newTemplateData(index int, r *model.Record) templateData {
	return templateData{
		Index:        index,
		Record:       r,
		AppName:      r.AppName,
		Summary:      r.Summary,
		Body:         r.Body,
		RelativeTime: shortRelativeTime(r.Timestamp),
	}
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"truncate": func(s string, maxLen int) string {
			if maxLen <= 0 || len(s) <= maxLen {
				return s
			}
			if maxLen <= 3 {
				return s[:maxLen]
			}
			return s[:maxLen-3] + "..."
		},
		"reltime": shortRelativeTime,
		"urgencyIcon": func(urgency int) string {
			switch urgency {
			case model.UrgencyLow:
				return "L"
			case model.UrgencyCritical:
				return "!"
			default:
				return "-"
			}
		},
	}
}

// shortRelativeTime renders a compact age suitable for menu lines,
// where humanize.Time output would be too wide.
func shortRelativeTime(timestamp int64) string {
	if timestamp == 0 {
		return "unknown"
	}

	d := time.Since(time.Unix(timestamp, 0))
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	default:
		return fmt.Sprintf("%dw", int(d.Hours()/24/7))
	}
}
