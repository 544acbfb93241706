package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/dshills/ctk/internal/analysis"
)

func TestTextWriter_Clean(t *testing.T) {
	var buf bytes.Buffer
	w := &TextWriter{}
	if err := w.Write(&buf, cleanReport()); err != nil {
		t.Fatalf("Write error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "staged changes · 0 files changed") {
		t.Errorf("Output should describe the input:\n%s", out)
	}
	for _, id := range analysis.CheckIDs(analysis.CategoryQuality) {
		if !strings.Contains(out, "✅ "+string(id)+":") {
			t.Errorf("passing check %s should still be listed", id)
		}
	}
	if !strings.Contains(out, "✅ All checks passed. Ready to merge!") {
		t.Error("Output should say ready to merge")
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("Output should not be styled when color is off")
	}
}

func TestTextWriter_WithIssues(t *testing.T) {
	var buf bytes.Buffer
	w := &TextWriter{}
	if err := w.Write(&buf, fixtureReport()); err != nil {
		t.Fatalf("Write error: %v", err)
	}

	out := buf.String()
	checks := []string{
		"PR #42 · 3 files changed",
		"Code Quality",
		"Security",
		"❌ console_logs: Found 7 console.log statements",
		"- src/app.ts:line 10",
		"- src/app.ts:line 50",
		"... and 2 more",
		"⚠️ complexity: Found 1 complex functions",
		"- src/logic.ts:line 3 - decide (complexity 14)",
		"Summary: 9 issues (7 blocking, 1 fixable)",
		"❌ Found 7 blocking issues that must be fixed before merging.",
		"npx prettier --write src/app.ts",
	}
	for _, want := range checks {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
	if strings.Contains(out, "src/app.ts:line 60") {
		t.Error("locations beyond the limit should be elided")
	}
	if strings.Index(out, "Code Quality") > strings.Index(out, "Security") {
		t.Error("quality should be listed before security")
	}
}

func TestTextWriter_MaxLocations(t *testing.T) {
	var buf bytes.Buffer
	w := &TextWriter{Options: Options{MaxLocations: 2}}
	if err := w.Write(&buf, fixtureReport()); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if !strings.Contains(buf.String(), "... and 5 more") {
		t.Errorf("expected elision after 2 locations:\n%s", buf.String())
	}
}

func TestTextWriter_WarningsOnly(t *testing.T) {
	report := cleanReport()
	report.Checks[analysis.Todos] = &analysis.CheckResult{
		Status:     analysis.StatusWarning,
		IssueCount: 2,
		Locations:  []string{"a.ts:line 1", "a.ts:line 2"},
		Message:    analysis.Todos.Message(2),
	}
	report.Summary.TotalIssues = 2

	var buf bytes.Buffer
	if err := (&TextWriter{}).Write(&buf, report); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if !strings.Contains(buf.String(), "⚠️ No blocking issues.") {
		t.Errorf("expected warning recommendation:\n%s", buf.String())
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, bytes.ErrTooLarge }

func TestTextWriter_PropagatesWriteError(t *testing.T) {
	if err := (&TextWriter{}).Write(failingWriter{}, cleanReport()); err == nil {
		t.Error("expected write error")
	}
}
