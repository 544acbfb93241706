// Package analysis implements the static pattern checks run over the files
// of a change.
//
// Four categories (quality, security, performance, accessibility) each own a
// fixed set of eight checks. Rules are plain data: PatternRule matches lines,
// WindowedRule looks for corroborating text near a trigger line, and
// StructuralRule scans whole files for block-level shapes such as function
// size or heading order. An Analyzer folds the findings of every rule into a
// Report whose statuses are a pure function of issue counts.
//
// Matching is textual. There is no parser, so results are heuristics.
package analysis
