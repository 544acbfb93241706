package output

import (
	"fmt"
	"io"
	"os"

	"github.com/dshills/ctk/internal/analysis"
	"github.com/dshills/ctk/internal/review"
)

// DefaultMaxLocations is how many evidence lines are shown per check.
const DefaultMaxLocations = 5

// Formats lists the supported output formats.
var Formats = []string{"text", "json", "markdown", "sarif", "yaml"}

// Options tunes the human-readable writers.
type Options struct {
	// MaxLocations caps the evidence shown per check; zero selects the default.
	MaxLocations int
	// Color enables terminal styling in the text writer.
	Color bool
}

func (o Options) maxLocations() int {
	if o.MaxLocations <= 0 {
		return DefaultMaxLocations
	}
	return o.MaxLocations
}

// Writer writes a report in a specific format.
type Writer interface {
	Write(w io.Writer, report *review.Report) error
}

// GetWriter returns a writer for the specified format.
func GetWriter(format string, opts Options) (Writer, error) {
	switch format {
	case "text", "":
		return &TextWriter{Options: opts}, nil
	case "json":
		return &JSONWriter{}, nil
	case "markdown", "md":
		return &MarkdownWriter{Options: opts}, nil
	case "sarif":
		return &SARIFWriter{}, nil
	case "yaml", "yml":
		return &YAMLWriter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// WriteReport writes the report to the specified output (file path or stdout).
// Styling is never written to files.
func WriteReport(report *review.Report, format, outPath string, opts Options) error {
	var w io.Writer
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		w = f
		opts.Color = false
	} else {
		w = os.Stdout
	}

	writer, err := GetWriter(format, opts)
	if err != nil {
		return err
	}
	return writer.Write(w, report)
}

// Glyph returns the status marker shown next to a check.
func Glyph(s analysis.Status) string {
	switch s {
	case analysis.StatusFail:
		return "❌"
	case analysis.StatusWarning:
		return "⚠️"
	default:
		return "✅"
	}
}

// Evidence returns the printable evidence lines of a check result.
func Evidence(res *analysis.CheckResult) []string {
	if len(res.Details) == 0 {
		return res.Locations
	}
	out := make([]string, 0, len(res.Details))
	for _, d := range res.Details {
		out = append(out, DescribeDetail(d))
	}
	return out
}

// DescribeDetail renders a structured detail as one line.
func DescribeDetail(d analysis.Detail) string {
	var loc string
	switch {
	case d.File != "" && d.Line > 0:
		loc = fmt.Sprintf("%s:line %d", d.File, d.Line)
	case d.File != "":
		loc = d.File
	case d.Line > 0:
		loc = fmt.Sprintf("line %d", d.Line)
	}

	var what string
	switch {
	case d.Function != "" && d.Complexity > 0:
		what = fmt.Sprintf("%s (complexity %d)", d.Function, d.Complexity)
	case d.Function != "" && d.Lines > 0:
		what = fmt.Sprintf("%s (%d lines)", d.Function, d.Lines)
	case d.Rule != "" && d.Message != "":
		what = fmt.Sprintf("[%s] %s", d.Rule, d.Message)
	default:
		what = d.Message
	}

	switch {
	case loc == "":
		return what
	case what == "":
		return loc
	default:
		return loc + " - " + what
	}
}

// truncate returns at most n items and the number left out.
func truncate(items []string, n int) ([]string, int) {
	if len(items) <= n {
		return items, 0
	}
	return items[:n], len(items) - n
}
