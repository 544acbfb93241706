package analysis

import (
	"fmt"
	"strings"
)

// Category groups checks that run together over one set of file extensions.
type Category string

const (
	CategoryQuality       Category = "quality"
	CategorySecurity      Category = "security"
	CategoryPerformance   Category = "performance"
	CategoryAccessibility Category = "accessibility"
)

// Categories lists every category in report order.
func Categories() []Category {
	return []Category{CategoryQuality, CategorySecurity, CategoryPerformance, CategoryAccessibility}
}

// ParseCategory converts a user supplied name into a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case CategoryQuality, CategorySecurity, CategoryPerformance, CategoryAccessibility:
		return c, nil
	case "checks", "code":
		return CategoryQuality, nil
	}
	return "", fmt.Errorf("unknown category: %s", s)
}

// Status is the resolved state of a check after aggregation.
type Status string

const (
	StatusPass    Status = "pass"
	StatusWarning Status = "warning"
	StatusFail    Status = "fail"
)

// CheckID names one of the fixed checks. The set is closed.
type CheckID string

// Code quality checks.
const (
	ConsoleLogs    CheckID = "console_logs"
	Complexity     CheckID = "complexity"
	Todos          CheckID = "todos"
	Formatting     CheckID = "formatting"
	Linting        CheckID = "linting"
	TypeChecking   CheckID = "type_checking"
	LongLines      CheckID = "long_lines"
	LargeFunctions CheckID = "large_functions"
)

// Security checks.
const (
	HardcodedSecrets   CheckID = "hardcoded_secrets"
	SQLInjection       CheckID = "sql_injection"
	XSSVulnerabilities CheckID = "xss_vulnerabilities"
	UnsafeRegex        CheckID = "unsafe_regex"
	ExposedAPIKeys     CheckID = "exposed_api_keys"
	InsecureRandom     CheckID = "insecure_random"
	EvalUsage          CheckID = "eval_usage"
	CORSIssues         CheckID = "cors_issues"
)

// Performance checks.
const (
	UnnecessaryRerenders CheckID = "unnecessary_rerenders"
	MissingMemoization   CheckID = "missing_memoization"
	LargeBundleImports   CheckID = "large_bundle_imports"
	InefficientLoops     CheckID = "inefficient_loops"
	MissingKeys          CheckID = "missing_keys"
	SyncOperations       CheckID = "sync_operations"
	MemoryLeaks          CheckID = "memory_leaks"
	UnoptimizedImages    CheckID = "unoptimized_images"
)

// Accessibility checks.
const (
	MissingAltText      CheckID = "missing_alt_text"
	MissingARIALabels   CheckID = "missing_aria_labels"
	MissingFormLabels   CheckID = "missing_form_labels"
	ColorContrast       CheckID = "color_contrast"
	InteractiveElements CheckID = "interactive_elements"
	HeadingHierarchy    CheckID = "heading_hierarchy"
	FocusManagement     CheckID = "focus_management"
	SemanticHTML        CheckID = "semantic_html"
)

type checkSpec struct {
	category Category
	blocking bool // resolves to fail instead of warning
	fixable  bool
	detailed bool // evidence is recorded as details, not locations
	issue    string
	pass     string
}

var checkOrder = map[Category][]CheckID{
	CategoryQuality: {
		ConsoleLogs, Complexity, Todos, Formatting, Linting, TypeChecking, LongLines, LargeFunctions,
	},
	CategorySecurity: {
		HardcodedSecrets, SQLInjection, XSSVulnerabilities, UnsafeRegex,
		ExposedAPIKeys, InsecureRandom, EvalUsage, CORSIssues,
	},
	CategoryPerformance: {
		UnnecessaryRerenders, MissingMemoization, LargeBundleImports, InefficientLoops,
		MissingKeys, SyncOperations, MemoryLeaks, UnoptimizedImages,
	},
	CategoryAccessibility: {
		MissingAltText, MissingARIALabels, MissingFormLabels, ColorContrast,
		InteractiveElements, HeadingHierarchy, FocusManagement, SemanticHTML,
	},
}

var checkSpecs = map[CheckID]checkSpec{
	ConsoleLogs:    {category: CategoryQuality, blocking: true, issue: "Found %d console.log statements", pass: "No console.log statements"},
	Complexity:     {category: CategoryQuality, detailed: true, issue: "Found %d complex functions", pass: "All functions have acceptable complexity"},
	Todos:          {category: CategoryQuality, issue: "Found %d TODO comments", pass: "No TODO comments"},
	Formatting:     {category: CategoryQuality, fixable: true, issue: "Found %d formatting issues", pass: "Code is properly formatted"},
	Linting:        {category: CategoryQuality, detailed: true, issue: "Found %d linting errors", pass: "No linting errors"},
	TypeChecking:   {category: CategoryQuality, blocking: true, detailed: true, issue: "Found %d TypeScript errors", pass: "No TypeScript errors"},
	LongLines:      {category: CategoryQuality, issue: "Found %d lines over 120 characters", pass: "All lines within length limit"},
	LargeFunctions: {category: CategoryQuality, detailed: true, issue: "Found %d functions over 50 lines", pass: "All functions are reasonably sized"},

	HardcodedSecrets:   {category: CategorySecurity, blocking: true, issue: "Found %d hardcoded secrets or passwords", pass: "No hardcoded secrets found"},
	SQLInjection:       {category: CategorySecurity, blocking: true, issue: "Found %d potential SQL injection vulnerabilities", pass: "No SQL injection risks detected"},
	XSSVulnerabilities: {category: CategorySecurity, issue: "Found %d potential XSS vulnerabilities", pass: "No XSS vulnerabilities found"},
	UnsafeRegex:        {category: CategorySecurity, issue: "Found %d potentially unsafe regular expressions", pass: "All regular expressions appear safe"},
	ExposedAPIKeys:     {category: CategorySecurity, issue: "Found %d exposed API keys", pass: "No exposed API keys found"},
	InsecureRandom:     {category: CategorySecurity, issue: "Found %d uses of insecure random generation", pass: "Secure random generation used"},
	EvalUsage:          {category: CategorySecurity, blocking: true, issue: "Found %d uses of eval() or similar functions", pass: "No dangerous eval() usage found"},
	CORSIssues:         {category: CategorySecurity, issue: "Found %d insecure CORS configurations", pass: "CORS configuration appears secure"},

	UnnecessaryRerenders: {category: CategoryPerformance, issue: "Found %d patterns causing unnecessary re-renders", pass: "No unnecessary re-render patterns found"},
	MissingMemoization:   {category: CategoryPerformance, issue: "Found %d expensive operations without memoization", pass: "Expensive operations are properly memoized"},
	LargeBundleImports:   {category: CategoryPerformance, issue: "Found %d imports that increase bundle size", pass: "All imports are optimized"},
	InefficientLoops:     {category: CategoryPerformance, issue: "Found %d inefficient loop patterns", pass: "Loop patterns are efficient"},
	MissingKeys:          {category: CategoryPerformance, issue: "Found %d list items missing keys", pass: "All list items have proper keys"},
	SyncOperations:       {category: CategoryPerformance, issue: "Found %d synchronous operations that could block", pass: "No blocking synchronous operations"},
	MemoryLeaks:          {category: CategoryPerformance, issue: "Found %d potential memory leaks", pass: "No memory leak patterns detected"},
	UnoptimizedImages:    {category: CategoryPerformance, issue: "Found %d unoptimized images", pass: "Images are properly optimized"},

	MissingAltText:      {category: CategoryAccessibility, issue: "Found %d images missing alt text", pass: "All images have alt text"},
	MissingARIALabels:   {category: CategoryAccessibility, issue: "Found %d elements missing ARIA labels", pass: "Interactive elements have proper labels"},
	MissingFormLabels:   {category: CategoryAccessibility, issue: "Found %d form inputs without labels", pass: "All form inputs have labels"},
	ColorContrast:       {category: CategoryAccessibility, issue: "Found %d potential color contrast issues", pass: "No obvious color contrast issues"},
	InteractiveElements: {category: CategoryAccessibility, issue: "Found %d non-accessible interactive elements", pass: "Interactive elements are accessible"},
	HeadingHierarchy:    {category: CategoryAccessibility, issue: "Found %d heading hierarchy issues", pass: "Heading hierarchy is correct"},
	FocusManagement:     {category: CategoryAccessibility, issue: "Found %d focus management issues", pass: "Focus indicators are preserved"},
	SemanticHTML:        {category: CategoryAccessibility, issue: "Found %d non-semantic HTML elements", pass: "Semantic HTML is used appropriately"},
}

// CheckIDs returns the checks of a category in report order.
func CheckIDs(c Category) []CheckID {
	return append([]CheckID(nil), checkOrder[c]...)
}

// Category returns the category the check belongs to.
func (id CheckID) Category() Category { return checkSpecs[id].category }

// Blocking reports whether issues of this check fail the review.
func (id CheckID) Blocking() bool { return checkSpecs[id].blocking }

// Fixable reports whether issues of this check can be repaired automatically.
func (id CheckID) Fixable() bool { return checkSpecs[id].fixable }

// Detailed reports whether the check records structured details instead of locations.
func (id CheckID) Detailed() bool { return checkSpecs[id].detailed }

// Message returns the human readable summary for count issues.
func (id CheckID) Message(count int) string {
	spec, ok := checkSpecs[id]
	if !ok {
		return fmt.Sprintf("Found %d issues", count)
	}
	if count == 0 {
		return spec.pass
	}
	return fmt.Sprintf(spec.issue, count)
}

// Status resolves the status of the check for count issues.
func (id CheckID) Status(count int) Status {
	return StatusFor(count, id.Blocking())
}

// ParseCheckID converts a check name such as "console_logs" into a CheckID.
func ParseCheckID(s string) (CheckID, error) {
	id := CheckID(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := checkSpecs[id]; !ok {
		return "", fmt.Errorf("unknown check: %s", s)
	}
	return id, nil
}

// StatusFor resolves the status of count issues for a check in the given
// severity class.
func StatusFor(count int, blocking bool) Status {
	switch {
	case count <= 0:
		return StatusPass
	case blocking:
		return StatusFail
	default:
		return StatusWarning
	}
}
