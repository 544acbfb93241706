package review

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/ctk/internal/analysis"
	"github.com/dshills/ctk/internal/execx"
	"github.com/dshills/ctk/internal/logging"
)

const (
	toolName      = "ctk"
	schemaVersion = "1.0"
)

// Options configures a review run.
type Options struct {
	// Root is the repository root the file list is relative to.
	Root string

	Security      bool
	Performance   bool
	Accessibility bool

	// AutoFix lists the repair commands for fixable issues in the report.
	AutoFix bool

	PRNumber int
	Mode     string
	Range    string
	Repo     *RepoInfo

	Runner execx.Runner
	Limits analysis.Limits
	Rules  *Rules
	Logger *zap.Logger
	// OnFile is called after each analyzed file. Categories run
	// concurrently, so it must be safe for concurrent use.
	OnFile func(category analysis.Category, path string)
}

// Categories returns the categories the options select, quality first.
func (o Options) Categories() []analysis.Category {
	cats := []analysis.Category{analysis.CategoryQuality}
	if o.Security {
		cats = append(cats, analysis.CategorySecurity)
	}
	if o.Performance {
		cats = append(cats, analysis.CategoryPerformance)
	}
	if o.Accessibility {
		cats = append(cats, analysis.CategoryAccessibility)
	}
	return cats
}

// Run analyzes files with every selected category and merges the results.
// It fails only when ctx is cancelled; per-file problems are absorbed by the
// analyzers.
func Run(ctx context.Context, files []string, opts Options) (*Report, error) {
	start := time.Now()
	log := logging.OrNop(opts.Logger)
	cats := opts.Categories()

	analyzers := make([]*analysis.Analyzer, len(cats))
	for i, c := range cats {
		a, err := analysis.New(c, analysis.Options{
			Root:   opts.Root,
			Runner: opts.Runner,
			Logger: log,
			Limits: opts.Limits,
			OnFile: opts.OnFile,
		})
		if err != nil {
			return nil, fmt.Errorf("creating %s analyzer: %w", c, err)
		}
		analyzers[i] = a
	}

	results := make([]analysis.Report, len(cats))
	g, gctx := errgroup.WithContext(ctx)
	for i, a := range analyzers {
		g.Go(func() error {
			results[i] = a.Analyze(gctx, files)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("review cancelled: %w", err)
	}

	report := &Report{
		Tool:         toolName,
		Version:      schemaVersion,
		RunID:        uuid.NewString(),
		Mode:         opts.Mode,
		Range:        opts.Range,
		Repo:         opts.Repo,
		PRNumber:     opts.PRNumber,
		FilesChanged: len(files),
	}
	for i, c := range cats {
		report.setCategory(c, results[i])
	}

	sections := report.Sections()
	ApplySeverityOverrides(sections, opts.Rules)
	report.Summary = ComputeSummary(sections)
	if opts.AutoFix {
		report.Fixes = planFixes(sections)
	}
	report.DurationMs = time.Since(start).Milliseconds()

	log.Debug("review complete",
		zap.String("run_id", report.RunID),
		zap.Int("files", len(files)),
		zap.Int("total_issues", report.Summary.TotalIssues),
		zap.Int("blocking_issues", report.Summary.BlockingIssues))
	return report, nil
}

// planFixes returns the commands that would repair fixable checks.
func planFixes(sections []Section) []Fix {
	var fixes []Fix
	for _, sec := range sections {
		for _, id := range analysis.CheckIDs(sec.Category) {
			res := sec.Checks[id]
			if res == nil || !res.Fixable || res.IssueCount == 0 {
				continue
			}
			fix := Fix{Check: id, Files: fixFiles(res)}
			switch id {
			case analysis.Formatting:
				fix.Command = "npx prettier --write " + strings.Join(fix.Files, " ")
			default:
				continue
			}
			fixes = append(fixes, fix)
		}
	}
	return fixes
}

func fixFiles(res *analysis.CheckResult) []string {
	seen := make(map[string]bool)
	var files []string
	for _, loc := range res.Locations {
		file, _, _ := strings.Cut(loc, ":")
		if file != "" && !seen[file] {
			seen[file] = true
			files = append(files, file)
		}
	}
	return files
}
