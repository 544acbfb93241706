package analysis

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/dshills/ctk/internal/execx"
)

// toolCheck is a repository-wide check backed by an external program.
type toolCheck struct {
	id    CheckID
	name  string
	args  []string
	parse func(root string, out execx.Output) ([]Finding, error)
}

var toolChecks = []toolCheck{
	{
		id:    Formatting,
		name:  "npx",
		args:  []string{"prettier", "--check", "src/**/*.{ts,tsx,js,jsx}"},
		parse: parsePrettier,
	},
	{
		id:    Linting,
		name:  "npx",
		args:  []string{"eslint", "src", "--format", "json"},
		parse: parseESLint,
	},
	{
		id:    TypeChecking,
		name:  "npx",
		args:  []string{"tsc", "--noEmit"},
		parse: parseTSC,
	},
}

func (t toolCheck) run(ctx context.Context, r execx.Runner, root string) ([]Finding, error) {
	out, err := r.Run(ctx, root, t.name, t.args...)
	if err != nil {
		return nil, err
	}
	return t.parse(root, out)
}

// parsePrettier collects "[warn] <path>" lines printed by prettier --check.
// Exit code 1 means unformatted files; anything else is treated as clean.
func parsePrettier(_ string, out execx.Output) ([]Finding, error) {
	if out.ExitCode != 1 {
		return nil, nil
	}
	var findings []Finding
	for _, stream := range [][]byte{out.Stdout, out.Stderr} {
		sc := bufio.NewScanner(bytes.NewReader(stream))
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			path, ok := strings.CutPrefix(line, "[warn] ")
			if !ok || strings.HasPrefix(path, "Code style issues") {
				continue
			}
			findings = append(findings, Finding{File: filepath.ToSlash(path), Note: "not formatted"})
		}
	}
	return findings, nil
}

type eslintFile struct {
	FilePath     string `json:"filePath"`
	ErrorCount   int    `json:"errorCount"`
	WarningCount int    `json:"warningCount"`
	Messages     []struct {
		RuleID   string `json:"ruleId"`
		Severity int    `json:"severity"`
		Message  string `json:"message"`
		Line     int    `json:"line"`
	} `json:"messages"`
}

// parseESLint records one detail per error message, or one per warning
// message when the run produced no errors.
func parseESLint(root string, out execx.Output) ([]Finding, error) {
	data := bytes.TrimSpace(out.Stdout)
	if len(data) == 0 {
		return nil, nil
	}
	var files []eslintFile
	if err := json.Unmarshal(data, &files); err != nil {
		return nil, fmt.Errorf("parsing eslint output: %w", err)
	}

	severity := 1
	for _, f := range files {
		if f.ErrorCount > 0 {
			severity = 2
			break
		}
	}

	var findings []Finding
	for _, f := range files {
		rel := relativeTo(root, f.FilePath)
		for _, m := range f.Messages {
			if m.Severity != severity {
				continue
			}
			d := &Detail{File: rel, Line: m.Line, Rule: m.RuleID, Message: m.Message}
			if severity == 2 {
				d.Errors = f.ErrorCount
			} else {
				d.Warnings = f.WarningCount
			}
			findings = append(findings, Finding{File: rel, Line: m.Line, Detail: d})
		}
	}
	return findings, nil
}

var tscErrorRe = regexp.MustCompile(`^(.+?)\((\d+),(\d+)\): error (TS\d+): (.*)$`)

// parseTSC records each "file(line,col): error TSxxxx: message" line.
func parseTSC(root string, out execx.Output) ([]Finding, error) {
	if out.ExitCode == 0 {
		return nil, nil
	}
	var findings []Finding
	sc := bufio.NewScanner(bytes.NewReader(out.Stdout))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.Contains(line, ": error TS") {
			continue
		}
		m := tscErrorRe.FindStringSubmatch(line)
		if m == nil {
			findings = append(findings, Finding{Detail: &Detail{Message: line}})
			continue
		}
		n, _ := strconv.Atoi(m[2])
		rel := relativeTo(root, m[1])
		findings = append(findings, Finding{
			File:   rel,
			Line:   n,
			Detail: &Detail{File: rel, Line: n, Rule: m[4], Message: m[5]},
		})
	}
	return findings, nil
}

func relativeTo(root, path string) string {
	if filepath.IsAbs(path) && root != "" {
		if abs, err := filepath.Abs(root); err == nil {
			if rel, err := filepath.Rel(abs, path); err == nil && !strings.HasPrefix(rel, "..") {
				return filepath.ToSlash(rel)
			}
		}
	}
	return filepath.ToSlash(path)
}
