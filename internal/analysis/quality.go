package analysis

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Limits holds the numeric thresholds of the code quality checks.
type Limits struct {
	MaxComplexity    int
	MaxFunctionLines int
	MaxLineLength    int
}

// DefaultLimits returns the standard thresholds.
func DefaultLimits() Limits {
	return Limits{MaxComplexity: 10, MaxFunctionLines: 50, MaxLineLength: 120}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxComplexity <= 0 {
		l.MaxComplexity = d.MaxComplexity
	}
	if l.MaxFunctionLines <= 0 {
		l.MaxFunctionLines = d.MaxFunctionLines
	}
	if l.MaxLineLength <= 0 {
		l.MaxLineLength = d.MaxLineLength
	}
	return l
}

var (
	funcDeclRe = regexp.MustCompile(`(?:function\s+(\w+)|(?:const|let|var)\s+(\w+)\s*=\s*(?:async\s*)?\([^)]*\)\s*=>)`)

	decisionRes = []*regexp.Regexp{
		regexp.MustCompile(`\bif\b`),
		regexp.MustCompile(`\belse\b`),
		regexp.MustCompile(`\bfor\b`),
		regexp.MustCompile(`\bwhile\b`),
		regexp.MustCompile(`\bcase\b`),
		regexp.MustCompile(`\bcatch\b`),
		regexp.MustCompile(`\?\s*[^:]+\s*:`),
	}

	funcStartRes = []*regexp.Regexp{
		regexp.MustCompile(`^(?:export\s+)?(?:async\s+)?function\s+\w+`),
		regexp.MustCompile(`^(?:const|let|var)\s+\w+\s*=\s*(?:async\s*)?\([^)]*\)\s*=>`),
		regexp.MustCompile(`^\w+\s*\([^)]*\)\s*{`),
	}
	funcNameRes = []*regexp.Regexp{
		regexp.MustCompile(`function\s+(\w+)`),
		regexp.MustCompile(`^(?:const|let|var)\s+(\w+)`),
		regexp.MustCompile(`^(\w+)`),
	}
	controlKeywords = map[string]bool{
		"if": true, "for": true, "while": true, "switch": true, "catch": true,
		"with": true, "return": true, "else": true,
	}
)

func qualityRules(l Limits, blocks BlockFinder) []Rule {
	l = l.withDefaults()
	return []Rule{
		PatternRule{
			ID:           ConsoleLogs,
			Patterns:     []Pattern{re(`console\.(log|error|warn|info|debug)\s*\(`)},
			SkipComments: true,
		},
		StructuralRule{ID: Complexity, Scan: func(in *Input) []Finding {
			return scanComplexity(in, blocks, l.MaxComplexity)
		}},
		PatternRule{
			ID:       Todos,
			Patterns: []Pattern{re(`(?i)(TODO|FIXME|HACK|XXX|BUG):`)},
		},
		StructuralRule{ID: LongLines, Scan: func(in *Input) []Finding {
			return scanLongLines(in, l.MaxLineLength)
		}},
		StructuralRule{ID: LargeFunctions, Scan: func(in *Input) []Finding {
			return scanFunctionSize(in, l.MaxFunctionLines)
		}},
	}
}

// scanComplexity scores each declared function by counting decision points
// in the span between its declaration and the end of its first block.
func scanComplexity(in *Input, blocks BlockFinder, limit int) []Finding {
	var out []Finding
	for _, m := range funcDeclRe.FindAllStringSubmatchIndex(in.Content, -1) {
		start := m[0]
		end, ok := blocks.FindEnclosingBlock(in.Content, start)
		if !ok || end <= start {
			continue
		}
		body := in.Content[start:end]
		score := 1
		for _, r := range decisionRes {
			score += len(r.FindAllStringIndex(body, -1))
		}
		if score <= limit {
			continue
		}
		name := submatch(in.Content, m, 1)
		if name == "" {
			name = submatch(in.Content, m, 2)
		}
		line := lineOf(in.Content, start)
		out = append(out, Finding{
			Line:   line,
			Detail: &Detail{Function: name, Complexity: score, Line: line},
		})
	}
	return out
}

func submatch(s string, m []int, group int) string {
	if 2*group+1 >= len(m) || m[2*group] < 0 {
		return ""
	}
	return s[m[2*group]:m[2*group+1]]
}

func scanLongLines(in *Input, limit int) []Finding {
	var out []Finding
	for i, line := range in.Lines {
		n := utf8.RuneCountInString(strings.TrimRightFunc(line, unicode.IsSpace))
		if n > limit {
			out = append(out, Finding{Line: i + 1, Aside: strconv.Itoa(n) + " chars"})
		}
	}
	return out
}

// scanFunctionSize walks declaration lines and counts braces line by line
// until the running depth returns to zero.
func scanFunctionSize(in *Input, limit int) []Finding {
	var out []Finding
	lines := in.Lines
	for i := 0; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if !isFunctionStart(trimmed) {
			continue
		}
		depth := 0
		j := i
		for ; j < len(lines); j++ {
			depth += strings.Count(lines[j], "{") - strings.Count(lines[j], "}")
			if depth == 0 && j > i {
				span := j - i + 1
				if span > limit {
					out = append(out, Finding{
						Line:   i + 1,
						Detail: &Detail{Function: functionName(trimmed), Lines: span, Line: i + 1},
					})
				}
				break
			}
		}
		i = j
	}
	return out
}

func isFunctionStart(line string) bool {
	for _, r := range funcStartRes {
		if !r.MatchString(line) {
			continue
		}
		word := line
		if k := strings.IndexFunc(line, func(c rune) bool { return !isWordRune(c) }); k >= 0 {
			word = line[:k]
		}
		return !controlKeywords[word]
	}
	return false
}

func functionName(line string) string {
	for _, r := range funcNameRes {
		if m := r.FindStringSubmatch(line); m != nil {
			return m[1]
		}
	}
	return "anonymous"
}

func isWordRune(c rune) bool {
	return c == '_' || unicode.IsLetter(c) || unicode.IsDigit(c)
}
