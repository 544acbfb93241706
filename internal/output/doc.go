// Package output formats review reports for display or machine consumption.
//
// Five formats are supported:
//   - text     — human-readable terminal output (default)
//   - json     — the full report as one JSON document per line
//   - markdown — PR-comment-friendly tables with collapsible evidence
//   - sarif    — SARIF v2.1.0 for upload to GitHub code scanning and other CI tools
//   - yaml     — the full report as YAML
//
// Use [GetWriter] to obtain a [Writer] for a given format string, then call
// [Writer.Write] with an [io.Writer] and a [*review.Report]. [WriteReport]
// handles destination selection.
package output
