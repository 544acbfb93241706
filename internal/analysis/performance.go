package analysis

import (
	"regexp"
	"strings"

	"github.com/dlclark/regexp2"
)

var loopKeywordRe = regexp.MustCompile(`\b(for|while)\b`)

const (
	loopLookahead   = 10
	effectLookahead = 20
)

func performanceRules() []Rule {
	return []Rule{
		uiOnly(PatternRule{
			ID: UnnecessaryRerenders,
			Patterns: []Pattern{
				re(`style\s*=\s*\{\{`),
				re(`onClick\s*=\s*\{\s*\(\)\s*=>`),
				la(`(?<!use)(?<!set)\w+\s*=\s*\[\]`, regexp2.None),
				la(`(?<!use)(?<!set)\w+\s*=\s*\{\}`, regexp2.None),
			},
			Exempt: []string{"useEffect", "useMemo", "useCallback"},
		}),
		uiOnly(WindowedRule{
			ID: MissingMemoization,
			Trigger: anyOf(
				re(`\.filter\s*\(.*\)\.map\s*\(`),
				la(`\.sort\s*\(.*\)(?!.*useMemo)`, regexp2.None),
				la(`\.reduce\s*\(.*\)(?!.*useMemo)`, regexp2.None),
				la(`new Date\s*\(.*\)(?!.*useMemo)`, regexp2.None),
			),
			Before:      9,
			Corroborate: contains("function", "const", "=>"),
			FlagIfFound: true,
		}),
		PatternRule{
			ID: LargeBundleImports,
			Patterns: []Pattern{
				re(`import\s+\*\s+as`),
				re(`from\s+['"]lodash['"]`),
				re(`from\s+['"]moment['"]`),
				re(`import\s+\{[^}]{100,}\}`),
			},
		},
		StructuralRule{ID: InefficientLoops, Scan: scanInefficientLoops},
		uiOnly(StructuralRule{ID: MissingKeys, Scan: scanMissingKeys}),
		PatternRule{
			ID: SyncOperations,
			Patterns: []Pattern{
				re(`fs\.readFileSync`),
				re(`fs\.writeFileSync`),
				re(`localStorage\.(getItem|setItem)\s*\([^)]*JSON\.parse`),
				re(`while\s*\(.*Date\.now\(\)`),
			},
		},
		StructuralRule{ID: MemoryLeaks, Scan: scanMemoryLeaks},
		PatternRule{
			ID: UnoptimizedImages,
			Patterns: []Pattern{
				la(`<img\s+.*src=.*\.(?:png|jpg|jpeg).*(?!loading)`, regexp2.IgnoreCase),
				re(`(?i)require\s*\(['"][^'"]*(png|jpg|jpeg)`),
			},
			Exempt: []string{"loading=", "Image"},
		},
	}
}

var arrayMutation = contains(".push(", ".unshift(", ".splice(")

// scanInefficientLoops flags deeply nested array method chains and array
// mutations inside loop bodies. A mutation line is reported once even when
// several enclosing loops reach it.
func scanInefficientLoops(in *Input) []Finding {
	var out []Finding
	reported := make(map[int]bool)
	for i, line := range in.Lines {
		if strings.Contains(line, ".map(") &&
			contains(".filter(", ".find(", ".forEach(").MatchString(line) &&
			strings.Count(line, "(")-strings.Count(line, ")") > 2 {
			out = append(out, Finding{Line: i + 1, Note: "nested array methods"})
		}
		if !loopKeywordRe.MatchString(line) {
			continue
		}
		end := min(i+loopLookahead, len(in.Lines)-1)
		for j := i; j <= end; j++ {
			if !arrayMutation.MatchString(in.Lines[j]) {
				continue
			}
			if !reported[j] {
				reported[j] = true
				out = append(out, Finding{Line: j + 1, Note: "array mutation in loop"})
			}
			break
		}
	}
	return out
}

var jsxNonElement = contains("</", "< ", "<=", ">=", "=>")

// scanMissingKeys tracks whether the scan is inside a .map( callback and flags
// JSX opening tags there that carry no key attribute.
func scanMissingKeys(in *Input) []Finding {
	var out []Finding
	inMap := false
	for i, line := range in.Lines {
		if strings.Contains(line, ".map(") {
			inMap = true
		}
		if !inMap {
			continue
		}
		if strings.Contains(line, "<") && strings.Contains(line, ">") &&
			!strings.Contains(line, "key=") && !jsxNonElement.MatchString(line) {
			out = append(out, Finding{Line: i + 1, Note: "missing key in list"})
		}
		if strings.Count(line, ")") > strings.Count(line, "(") {
			inMap = false
		}
	}
	return out
}

var (
	listenerAdd    = contains("addEventListener")
	listenerRemove = contains("removeEventListener")
	timerSet       = contains("setInterval", "setTimeout")
	timerClear     = contains("clearInterval", "clearTimeout")
	effectCleanup  = allOf(contains("return"), contains("=>"))
)

// scanMemoryLeaks flags effects that acquire listeners or timers, either
// before the effect line without a later release or within the effect
// window, when no cleanup function is returned in that window.
func scanMemoryLeaks(in *Input) []Finding {
	var out []Finding
	pendingListener, pendingTimer := false, false
	for i, line := range in.Lines {
		if listenerAdd.MatchString(line) {
			pendingListener = true
		} else if listenerRemove.MatchString(line) {
			pendingListener = false
		}
		if timerSet.MatchString(line) {
			pendingTimer = true
		} else if timerClear.MatchString(line) {
			pendingTimer = false
		}

		if !strings.Contains(line, "useEffect") {
			continue
		}
		end := i + effectLookahead
		if windowHas(in.Lines, i, end, effectCleanup) {
			continue
		}
		acquires := pendingListener || pendingTimer ||
			windowHas(in.Lines, i, end, anyOf(listenerAdd, timerSet))
		if acquires {
			out = append(out, Finding{Line: i + 1, Note: "useEffect without cleanup"})
		}
	}
	return out
}
