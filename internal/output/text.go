package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dshills/ctk/internal/analysis"
	"github.com/dshills/ctk/internal/review"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8BC34A"))
	sectionStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Faint(true)
)

// TextWriter outputs a human-readable text report. Every check is listed
// with its glyph, including those that passed.
type TextWriter struct {
	Options Options
}

func (t *TextWriter) Write(w io.Writer, report *review.Report) error {
	ew := &errWriter{w: w}
	limit := t.Options.maxLocations()

	ew.println(t.style(headingStyle, "Code Review Report"))
	ew.println(subject(report))
	if report.Repo != nil && report.Repo.Root != "" {
		ew.printf("Repository: %s (branch: %s)\n", report.Repo.Root, report.Repo.Branch)
	}
	ew.println(strings.Repeat("─", 60))

	for _, sec := range report.Sections() {
		ew.printf("\n%s\n", t.style(sectionStyle, sec.Title))
		for _, id := range analysis.CheckIDs(sec.Category) {
			res := sec.Checks[id]
			if res == nil {
				continue
			}
			ew.printf("  %s %s: %s\n", Glyph(res.Status), id, res.Message)
			if res.Status == analysis.StatusPass {
				continue
			}
			shown, more := truncate(Evidence(res), limit)
			for _, e := range shown {
				ew.printf("     - %s\n", e)
			}
			if more > 0 {
				ew.printf("     %s\n", t.style(mutedStyle, fmt.Sprintf("... and %d more", more)))
			}
		}
	}

	s := report.Summary
	ew.printf("\n%s\n", strings.Repeat("─", 60))
	ew.printf("Summary: %d issues (%d blocking, %d fixable)\n", s.TotalIssues, s.BlockingIssues, s.FixableIssues)
	status, verdict := review.Recommendation(s)
	ew.printf("\n%s %s\n", Glyph(status), verdict)

	if len(report.Fixes) > 0 {
		ew.println("\nSuggested fixes (not applied):")
		for _, f := range report.Fixes {
			ew.printf("  %s\n", f.Command)
		}
	}
	return ew.err
}

func (t *TextWriter) style(s lipgloss.Style, text string) string {
	if !t.Options.Color {
		return text
	}
	return s.Render(text)
}

func subject(report *review.Report) string {
	var head string
	switch {
	case report.PRNumber > 0:
		head = fmt.Sprintf("PR #%d", report.PRNumber)
	case report.Mode != "":
		head = report.Mode + " changes"
	default:
		head = "Files"
	}
	if report.Range != "" {
		head += " (" + report.Range + ")"
	}
	return fmt.Sprintf("%s · %d files changed", head, report.FilesChanged)
}

// errWriter wraps an io.Writer and captures the first error.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func (ew *errWriter) println(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintln(ew.w, s)
}
