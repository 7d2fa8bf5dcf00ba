package output

import (
	"fmt"
	"io"

	"github.com/graylag/shelltray/internal/model"
)

// IDsFormatter outputs just the record ids, one per line, for piping
// into other commands.
type IDsFormatter struct{}

// NewIDsFormatter creates a new IDs formatter.
func NewIDsFormatter() *IDsFormatter {
	return &IDsFormatter{}
}

// Format writes record ids to the writer, one per line.
func (f *IDsFormatter) Format(w io.Writer, records []model.Record) error {
	for _, r := range records {
		if _, err := fmt.Fprintln(w, r.RecordID); err != nil {
			return err
		}
	}
	return nil
}
