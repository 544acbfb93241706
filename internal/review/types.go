package review

import (
	"fmt"

	"github.com/dshills/ctk/internal/analysis"
)

// FailOn thresholds accepted by MeetsThreshold.
const (
	FailOnNone     = "none"
	FailOnWarning  = "warning"
	FailOnBlocking = "blocking"
)

// Summary totals issues across every check of every included category.
type Summary struct {
	TotalIssues    int `json:"total_issues" yaml:"total_issues"`
	FixableIssues  int `json:"fixable_issues" yaml:"fixable_issues"`
	BlockingIssues int `json:"blocking_issues" yaml:"blocking_issues"`
}

// RepoInfo contains repository metadata.
type RepoInfo struct {
	Root   string `json:"root,omitempty" yaml:"root,omitempty"`
	Head   string `json:"head,omitempty" yaml:"head,omitempty"`
	Branch string `json:"branch,omitempty" yaml:"branch,omitempty"`
	Name   string `json:"name,omitempty" yaml:"name,omitempty"`
}

// Fix is a command that would repair the issues of a fixable check.
type Fix struct {
	Check   analysis.CheckID `json:"check" yaml:"check"`
	Command string           `json:"command" yaml:"command"`
	Files   []string         `json:"files,omitempty" yaml:"files,omitempty"`
}

// Report is the merged result of one review.
type Report struct {
	Tool          string          `json:"tool" yaml:"tool"`
	Version       string          `json:"version" yaml:"version"`
	RunID         string          `json:"run_id" yaml:"run_id"`
	Mode          string          `json:"mode,omitempty" yaml:"mode,omitempty"`
	Range         string          `json:"range,omitempty" yaml:"range,omitempty"`
	Repo          *RepoInfo       `json:"repo,omitempty" yaml:"repo,omitempty"`
	PRNumber      int             `json:"pr_number" yaml:"pr_number"`
	FilesChanged  int             `json:"files_changed" yaml:"files_changed"`
	Checks        analysis.Report `json:"checks" yaml:"checks"`
	Security      analysis.Report `json:"security,omitempty" yaml:"security,omitempty"`
	Performance   analysis.Report `json:"performance,omitempty" yaml:"performance,omitempty"`
	Accessibility analysis.Report `json:"accessibility,omitempty" yaml:"accessibility,omitempty"`
	Summary       Summary         `json:"summary" yaml:"summary"`
	Fixes         []Fix           `json:"fixes,omitempty" yaml:"fixes,omitempty"`
	DurationMs    int64           `json:"duration_ms" yaml:"duration_ms"`
}

// Section is one category of a report in display order.
type Section struct {
	Category analysis.Category
	Key      string
	Title    string
	Checks   analysis.Report
}

var sectionMeta = map[analysis.Category]struct{ key, title string }{
	analysis.CategoryQuality:       {"checks", "Code Quality"},
	analysis.CategorySecurity:      {"security", "Security"},
	analysis.CategoryPerformance:   {"performance", "Performance"},
	analysis.CategoryAccessibility: {"accessibility", "Accessibility"},
}

// Sections returns the categories present in the report in display order.
func (r *Report) Sections() []Section {
	var out []Section
	for _, c := range analysis.Categories() {
		checks := r.category(c)
		if checks == nil {
			continue
		}
		m := sectionMeta[c]
		out = append(out, Section{Category: c, Key: m.key, Title: m.title, Checks: checks})
	}
	return out
}

func (r *Report) category(c analysis.Category) analysis.Report {
	switch c {
	case analysis.CategoryQuality:
		return r.Checks
	case analysis.CategorySecurity:
		return r.Security
	case analysis.CategoryPerformance:
		return r.Performance
	case analysis.CategoryAccessibility:
		return r.Accessibility
	}
	return nil
}

func (r *Report) setCategory(c analysis.Category, checks analysis.Report) {
	switch c {
	case analysis.CategoryQuality:
		r.Checks = checks
	case analysis.CategorySecurity:
		r.Security = checks
	case analysis.CategoryPerformance:
		r.Performance = checks
	case analysis.CategoryAccessibility:
		r.Accessibility = checks
	}
}

// ComputeSummary totals the checks of every section.
func ComputeSummary(sections []Section) Summary {
	var s Summary
	for _, sec := range sections {
		for _, res := range sec.Checks {
			s.TotalIssues += res.IssueCount
			if res.Fixable {
				s.FixableIssues += res.IssueCount
			}
			if res.Status == analysis.StatusFail {
				s.BlockingIssues += res.IssueCount
			}
		}
	}
	return s
}

// MeetsThreshold reports whether the summary should fail a run under the
// given fail-on policy.
func MeetsThreshold(s Summary, failOn string) bool {
	switch failOn {
	case FailOnBlocking:
		return s.BlockingIssues > 0
	case FailOnWarning:
		return s.TotalIssues > 0
	default:
		return false
	}
}

// Recommendation returns the closing verdict for a summary and the status
// whose glyph should precede it.
func Recommendation(s Summary) (analysis.Status, string) {
	switch {
	case s.BlockingIssues > 0:
		return analysis.StatusFail, fmt.Sprintf(
			"Found %d blocking issues that must be fixed before merging.", s.BlockingIssues)
	case s.TotalIssues > 0:
		return analysis.StatusWarning, fmt.Sprintf(
			"No blocking issues. Consider addressing %d warnings before merging.", s.TotalIssues)
	default:
		return analysis.StatusPass, "All checks passed. Ready to merge!"
	}
}
