package output

import (
	"io"
	"strings"

	"github.com/dshills/ctk/internal/analysis"
	"github.com/dshills/ctk/internal/review"
)

// MarkdownWriter outputs a PR-comment-friendly markdown report.
type MarkdownWriter struct {
	Options Options
}

func (m *MarkdownWriter) Write(w io.Writer, report *review.Report) error {
	ew := &errWriter{w: w}
	limit := m.Options.maxLocations()
	s := report.Summary

	ew.printf("## Code Review Report\n\n")
	ew.printf("%s\n\n", subject(report))

	ew.printf("| Total issues | Blocking | Fixable |\n")
	ew.printf("|--------------|----------|---------|\n")
	ew.printf("| %d | %d | %d |\n\n", s.TotalIssues, s.BlockingIssues, s.FixableIssues)

	for _, sec := range report.Sections() {
		ew.printf("### %s\n\n", sec.Title)
		ew.printf("| | Check | Result |\n|---|-------|--------|\n")
		for _, id := range analysis.CheckIDs(sec.Category) {
			if res := sec.Checks[id]; res != nil {
				ew.printf("| %s | `%s` | %s |\n", Glyph(res.Status), id, escapeCell(res.Message))
			}
		}
		ew.printf("\n")

		for _, id := range analysis.CheckIDs(sec.Category) {
			res := sec.Checks[id]
			if res == nil || res.Status == analysis.StatusPass {
				continue
			}
			shown, more := truncate(Evidence(res), limit)
			ew.printf("<details>\n<summary>%s %s (%d)</summary>\n\n", Glyph(res.Status), id, res.IssueCount)
			for _, e := range shown {
				ew.printf("- `%s`\n", e)
			}
			if more > 0 {
				ew.printf("- ... and %d more\n", more)
			}
			ew.printf("\n</details>\n\n")
		}
	}

	status, verdict := review.Recommendation(s)
	ew.printf("**%s %s**\n", Glyph(status), verdict)

	if len(report.Fixes) > 0 {
		ew.printf("\n#### Suggested fixes\n\n```sh\n")
		for _, f := range report.Fixes {
			ew.printf("%s\n", f.Command)
		}
		ew.printf("```\n")
	}
	return ew.err
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
