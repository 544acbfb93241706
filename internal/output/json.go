package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dshills/ctk/internal/review"
)

// JSONWriter outputs the full report as a single line of JSON.
type JSONWriter struct{}

func (j *JSONWriter) Write(w io.Writer, report *review.Report) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("writing JSON: %w", err)
	}
	return nil
}
