// Package review runs the requested analysis categories over a change and
// merges their reports.
//
// Code quality always runs; security, performance and accessibility are
// opt-in. Each category is analyzed by its own analysis.Analyzer, and the
// categories run concurrently since no state is shared between them. The
// merged Report carries one check map per category (quality under the
// "checks" key) and a Summary computed in a single pass over every check.
//
// A rules pack (rules.go) can move checks between the blocking and warning
// severity classes before the summary is computed. With auto-fix enabled the
// report lists the commands that would repair fixable issues; nothing is
// executed.
package review
