package analysis

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"
)

var (
	headingRe    = regexp.MustCompile(`<h([1-6])[^>]*>`)
	buttonRe     = regexp.MustCompile(`(?i)<button([^>]*)>(.*?)</button>`)
	tagRe        = regexp.MustCompile(`<[^>]*>`)
	ariaLabelRe  = regexp.MustCompile(`(?i)aria-label|aria-labelledby`)
	textElements = contains("<p", "<span", "<div", "<h", "<a")
)

func accessibilityRules() []Rule {
	rules := []Rule{
		PatternRule{
			ID: MissingAltText,
			Patterns: []Pattern{allOf(
				contains("<img"), not(contains("alt=")), contains(">"),
			)},
		},
		PatternRule{
			ID: MissingAltText,
			Patterns: []Pattern{allOf(
				contains("<Image"), not(contains("alt=")), contains("/>"),
			)},
		},
		PatternRule{
			ID: MissingARIALabels,
			Patterns: []Pattern{matchFunc(func(line string) bool {
				lower := strings.ToLower(line)
				return strings.Contains(lower, "button") && strings.Contains(lower, "icon") &&
					!strings.Contains(line, "aria-label") && !strings.Contains(line, "title=")
			})},
			Note: "icon button needs aria-label",
		},
		PatternRule{
			ID: MissingARIALabels,
			Patterns: []Pattern{
				matchFunc(hasEmptyButton),
				re(`(?i)<a[^>]*></a>`),
				la(`role="button"(?!.*aria-label)`, regexp2.IgnoreCase),
				la(`<IconButton(?!.*aria-label)`, regexp2.IgnoreCase),
			},
		},
	}

	for _, el := range []string{"input", "select", "textarea"} {
		rules = append(rules, WindowedRule{
			ID:          MissingFormLabels,
			Trigger:     contains("<" + el),
			Exempt:      contains("aria-label=", "aria-labelledby=", "id=", `type="hidden"`, `type='hidden'`),
			Before:      5,
			After:       5,
			Corroborate: contains("<label"),
			Note:        el + " without label",
		})
	}

	return append(rules,
		PatternRule{
			ID: ColorContrast,
			Patterns: []Pattern{
				re(`color:\s*['"]?#[cdefCDEF][0-9a-fA-F]{5}`),
				re(`color:\s*['"]?#[0-3][0-9a-fA-F]{5}`),
				re(`text-(gray|grey)-(300|400)`),
				re(`opacity-[0-5]0`),
			},
			Require: textElements,
			Note:    "potential low contrast",
		},
		PatternRule{
			ID:       InteractiveElements,
			Patterns: []Pattern{allOf(contains("<div"), contains("onClick"), not(contains("role=", "tabIndex")))},
			Note:     "div with onClick needs role and tabIndex",
		},
		PatternRule{
			ID:       InteractiveElements,
			Patterns: []Pattern{allOf(contains("<span"), contains("onClick"))},
			Note:     "use button instead of span with onClick",
		},
		PatternRule{
			ID:       InteractiveElements,
			Patterns: []Pattern{allOf(contains("onMouseDown"), not(contains("onKeyDown")))},
			Note:     "mouse event without keyboard equivalent",
		},
		StructuralRule{ID: HeadingHierarchy, Scan: scanHeadings},
		WindowedRule{
			ID:          FocusManagement,
			Trigger:     contains("outline-none", "outline: none"),
			Exempt:      contains("focus:"),
			Before:      3,
			After:       3,
			Corroborate: contains(":focus"),
			Note:        "outline removed without focus indicator",
		},
		PatternRule{
			ID:       FocusManagement,
			Patterns: []Pattern{allOf(contains("autoFocus"), not(contains("Modal", "Dialog")))},
			Note:     "avoid autoFocus on page load",
		},
		PatternRule{
			ID: SemanticHTML,
			Patterns: []Pattern{allOf(
				contains("<div"),
				matchFunc(func(line string) bool {
					return strings.Contains(strings.ToLower(line), "navigation") || strings.Contains(line, "nav-")
				}),
				not(contains("<nav")),
			)},
			Note: "use <nav> for navigation",
		},
		PatternRule{
			ID:       SemanticHTML,
			Patterns: []Pattern{allOf(contains("<div"), contains("main-content", `id="main"`), not(contains("<main")))},
			Note:     "use <main> for main content",
		},
		PatternRule{
			ID:       SemanticHTML,
			Patterns: []Pattern{allOf(contains(`className="list"`, `class="list"`), not(contains("<ul", "<ol")))},
			Note:     "use <ul> or <ol> for lists",
		},
	)
}

// hasEmptyButton reports a button on the line whose visible content is empty
// and which carries no accessible name attribute.
func hasEmptyButton(line string) bool {
	for _, m := range buttonRe.FindAllStringSubmatch(line, -1) {
		if ariaLabelRe.MatchString(m[1]) {
			continue
		}
		if strings.TrimSpace(tagRe.ReplaceAllString(m[2], "")) == "" {
			return true
		}
	}
	return false
}

// scanHeadings checks heading levels in document order: the first heading
// must be h1 and no heading may skip a level below its predecessor.
func scanHeadings(in *Input) []Finding {
	var out []Finding
	prev := 0
	for i, m := range headingRe.FindAllStringSubmatchIndex(in.Content, -1) {
		level, _ := strconv.Atoi(in.Content[m[2]:m[3]])
		line := lineOf(in.Content, m[0])
		if i == 0 && level != 1 {
			out = append(out, Finding{Line: line, Note: "page should start with h1"})
		}
		if i > 0 && level > prev+1 {
			out = append(out, Finding{Line: line, Note: "skipped heading level"})
		}
		prev = level
	}
	return out
}
