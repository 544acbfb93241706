package review

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/dshills/ctk/internal/analysis"
)

// Severity classes accepted in a rules pack.
const (
	ClassBlocking = "blocking"
	ClassWarning  = "warning"
)

// Rules represents a rules pack loaded from --rules.
type Rules struct {
	// SeverityOverrides moves checks between severity classes, keyed by
	// check name.
	SeverityOverrides map[string]string `json:"severityOverrides,omitempty" yaml:"severityOverrides,omitempty"`
}

// LoadRules loads a YAML or JSON rules file from disk. Returns nil Rules and
// nil error if path is empty.
func LoadRules(path string) (*Rules, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}
	var rules Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parsing rules file: %w", err)
	}
	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rules file %s: %w", path, err)
	}
	return &rules, nil
}

// Validate checks that every override names a known check and class.
func (r *Rules) Validate() error {
	if r == nil {
		return nil
	}
	for name, class := range r.SeverityOverrides {
		if _, err := analysis.ParseCheckID(name); err != nil {
			return err
		}
		if class != ClassBlocking && class != ClassWarning {
			return fmt.Errorf("check %s: severity must be %q or %q, got %q", name, ClassBlocking, ClassWarning, class)
		}
	}
	return nil
}

// ApplySeverityOverrides re-resolves the status of overridden checks. Checks
// absent from the sections are ignored.
func ApplySeverityOverrides(sections []Section, rules *Rules) {
	if rules == nil || len(rules.SeverityOverrides) == 0 {
		return
	}
	names := make([]string, 0, len(rules.SeverityOverrides))
	for name := range rules.SeverityOverrides {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		id, err := analysis.ParseCheckID(name)
		if err != nil {
			continue
		}
		blocking := rules.SeverityOverrides[name] == ClassBlocking
		for _, sec := range sections {
			if res, ok := sec.Checks[id]; ok {
				res.Status = analysis.StatusFor(res.IssueCount, blocking)
			}
		}
	}
}
