package output

import (
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/graylag/shelltray/internal/model"
)

// PlainFormatter formats records as multi-line plain text.
type PlainFormatter struct {
	opts     FormatterOptions
	template *template.Template
}

// NewPlainFormatter creates a new plain text formatter.
func NewPlainFormatter(opts FormatterOptions) *PlainFormatter {
	f := &PlainFormatter{opts: opts}
	if opts.Template != "" {
		tmpl, err := template.New("plain").Funcs(templateFuncs()).Parse(opts.Template)
		if err == nil {
			f.template = tmpl
		}
	}
	return f
}

// Format writes records as plain text.
func (f *PlainFormatter) Format(w io.Writer, records []model.Record) error {
	for i := range records {
		if err := f.formatRecord(w, i+1, &records[i]); err != nil {
			return err
		}
	}
	return nil
}

func (f *PlainFormatter) formatRecord(w io.Writer, index int, r *model.Record) error {
	if f.template != nil {
		return f.template.Execute(w, newTemplateData(index, r))
	}

	var sb strings.Builder
	if f.opts.ShowIndex {
		fmt.Fprintf(&sb, "[%d] ", index)
	}
	if f.opts.ShowApp && r.AppName != "" {
		fmt.Fprintf(&sb, "<%s> ", r.AppName)
	}
	sb.WriteString(r.Summary)
	if f.opts.ShowTime {
		fmt.Fprintf(&sb, " (%s)", r.RelativeTime())
	}
	sb.WriteString("\n")

	if r.Body != "" {
		body := r.Body
		if !f.opts.IncludeNewline {
			body = r.BodyTruncated(f.opts.BodyMaxLen)
		}
		sb.WriteString("    " + body + "\n")
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// FormatField outputs a single named field from a record.
func FormatField(r *model.Record, field string) string {
	switch strings.ToLower(field) {
	case "id", "record_id":
		return r.RecordID
	case "app", "app_name", "appname":
		return r.AppName
	case "summary":
		return r.Summary
	case "body":
		return r.Body
	case "urgency":
		return r.UrgencyName
	case "desktop", "desktop_entry":
		return r.DesktopEntry
	case "hash", "content_hash":
		return r.ContentHash
	case "all", "full":
		return fmt.Sprintf("%s\n%s", r.Summary, r.Body)
	default:
		return r.Summary
	}
}
