package analysis

import (
	"regexp"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

// Input is the read-only view of one file handed to every rule.
type Input struct {
	Path    string
	Content string
	Lines   []string
	UI      bool // file imports a UI component framework
}

var uiImportRe = regexp.MustCompile(`import React|from\s+['"]react['"]`)

func newInput(path, content string) *Input {
	return &Input{
		Path:    path,
		Content: content,
		Lines:   strings.Split(content, "\n"),
		UI:      uiImportRe.MatchString(content),
	}
}

// Rule produces findings for exactly one check.
type Rule interface {
	Check() CheckID
	Match(in *Input) []Finding
}

// Pattern matches a single line of source text.
type Pattern interface {
	MatchString(s string) bool
}

// matchFunc adapts a predicate to Pattern.
type matchFunc func(string) bool

func (f matchFunc) MatchString(s string) bool { return f(s) }

// re compiles an RE2 expression.
func re(expr string) Pattern { return regexp.MustCompile(expr) }

// lookaroundTimeout bounds backtracking in lookaround expressions.
const lookaroundTimeout = 250 * time.Millisecond

type lookaround struct{ re *regexp2.Regexp }

func (l lookaround) MatchString(s string) bool {
	ok, err := l.re.MatchString(s)
	return err == nil && ok
}

// la compiles a backtracking expression for the few rules that need
// lookahead or lookbehind.
func la(expr string, opts regexp2.RegexOptions) Pattern {
	r := regexp2.MustCompile(expr, opts)
	r.MatchTimeout = lookaroundTimeout
	return lookaround{re: r}
}

func contains(subs ...string) Pattern {
	return matchFunc(func(s string) bool {
		for _, sub := range subs {
			if strings.Contains(s, sub) {
				return true
			}
		}
		return false
	})
}

func anyOf(ps ...Pattern) Pattern {
	return matchFunc(func(s string) bool {
		for _, p := range ps {
			if p.MatchString(s) {
				return true
			}
		}
		return false
	})
}

func allOf(ps ...Pattern) Pattern {
	return matchFunc(func(s string) bool {
		for _, p := range ps {
			if !p.MatchString(s) {
				return false
			}
		}
		return true
	})
}

func not(p Pattern) Pattern {
	return matchFunc(func(s string) bool { return !p.MatchString(s) })
}

func isCommentLine(line string) bool {
	t := strings.TrimSpace(line)
	return strings.HasPrefix(t, "//") || strings.HasPrefix(t, "*")
}

// PatternRule flags each line matched by any of its patterns, once per line.
type PatternRule struct {
	ID           CheckID
	Patterns     []Pattern
	Require      Pattern  // line must also match, if set
	Exempt       []string // substrings that exempt a line
	SkipComments bool
	Note         string
}

func (r PatternRule) Check() CheckID { return r.ID }

func (r PatternRule) Match(in *Input) []Finding {
	var out []Finding
	for i, line := range in.Lines {
		if r.SkipComments && isCommentLine(line) {
			continue
		}
		if r.exempt(line) {
			continue
		}
		if r.Require != nil && !r.Require.MatchString(line) {
			continue
		}
		for _, p := range r.Patterns {
			if p.MatchString(line) {
				out = append(out, Finding{Line: i + 1, Note: r.Note})
				break
			}
		}
	}
	return out
}

func (r PatternRule) exempt(line string) bool {
	for _, e := range r.Exempt {
		if strings.Contains(line, e) {
			return true
		}
	}
	return false
}

// WindowedRule looks for a corroborating pattern in a bounded window of
// lines around each trigger line. The window spans Before lines above and
// After lines below the trigger, the trigger line included.
type WindowedRule struct {
	ID          CheckID
	Trigger     Pattern
	Exempt      Pattern // trigger lines matching this are skipped
	Before      int
	After       int
	Corroborate Pattern
	FlagIfFound bool // flag when the corroborating pattern is present rather than absent
	Note        string
}

func (r WindowedRule) Check() CheckID { return r.ID }

func (r WindowedRule) Match(in *Input) []Finding {
	var out []Finding
	for i, line := range in.Lines {
		if !r.Trigger.MatchString(line) {
			continue
		}
		if r.Exempt != nil && r.Exempt.MatchString(line) {
			continue
		}
		found := windowHas(in.Lines, i-r.Before, i+r.After, r.Corroborate)
		if found == r.FlagIfFound {
			out = append(out, Finding{Line: i + 1, Note: r.Note})
		}
	}
	return out
}

// windowHas reports whether any line in [from, to] matches p. Bounds are clamped.
func windowHas(lines []string, from, to int, p Pattern) bool {
	if from < 0 {
		from = 0
	}
	if to > len(lines)-1 {
		to = len(lines) - 1
	}
	for j := from; j <= to; j++ {
		if p.MatchString(lines[j]) {
			return true
		}
	}
	return false
}

// StructuralRule runs an arbitrary scan over the whole input.
type StructuralRule struct {
	ID   CheckID
	Scan func(in *Input) []Finding
}

func (r StructuralRule) Check() CheckID { return r.ID }

func (r StructuralRule) Match(in *Input) []Finding { return r.Scan(in) }

type uiRule struct{ Rule }

// uiOnly restricts a rule to files that import a UI component framework.
func uiOnly(r Rule) Rule { return uiRule{r} }

func (r uiRule) Match(in *Input) []Finding {
	if !in.UI {
		return nil
	}
	return r.Rule.Match(in)
}

// lineOf returns the 1-based line number of byte offset off in content.
func lineOf(content string, off int) int {
	return strings.Count(content[:off], "\n") + 1
}
