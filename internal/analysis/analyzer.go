package analysis

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/ctk/internal/execx"
)

var extensions = map[Category][]string{
	CategoryQuality:       {".ts", ".tsx", ".js", ".jsx"},
	CategorySecurity:      {".ts", ".tsx", ".js", ".jsx", ".json", ".env", ".yml", ".yaml"},
	CategoryPerformance:   {".ts", ".tsx", ".js", ".jsx"},
	CategoryAccessibility: {".tsx", ".jsx"},
}

// Options configures an Analyzer.
type Options struct {
	// Root is the repository root that file paths are relative to.
	Root string
	// Runner executes the repository-wide quality tools. Nil disables them.
	Runner execx.Runner
	Logger *zap.Logger
	Blocks BlockFinder
	Limits Limits
	// OnFile is called after each accepted file has been analyzed.
	OnFile func(category Category, path string)
}

// Analyzer runs the rules of one category over a list of files.
type Analyzer struct {
	category Category
	root     string
	rules    []Rule
	runner   execx.Runner
	log      *zap.Logger
	onFile   func(Category, string)
}

// New builds the analyzer for category c.
func New(c Category, opts Options) (*Analyzer, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Blocks == nil {
		opts.Blocks = BraceScanner{}
	}
	if opts.Runner == nil {
		opts.Runner = execx.Unavailable{}
	}
	if opts.Root == "" {
		opts.Root = "."
	}

	var rules []Rule
	switch c {
	case CategoryQuality:
		rules = qualityRules(opts.Limits, opts.Blocks)
	case CategorySecurity:
		rules = securityRules()
	case CategoryPerformance:
		rules = performanceRules()
	case CategoryAccessibility:
		rules = accessibilityRules()
	default:
		return nil, fmt.Errorf("unknown category: %s", c)
	}

	return &Analyzer{
		category: c,
		root:     opts.Root,
		rules:    rules,
		runner:   opts.Runner,
		log:      opts.Logger.With(zap.String("category", string(c))),
		onFile:   opts.OnFile,
	}, nil
}

// Category returns the analyzer's category.
func (a *Analyzer) Category() Category { return a.category }

// Accepts reports whether path has one of the category's extensions.
func (a *Analyzer) Accepts(path string) bool { return Accepts(a.category, path) }

// Accepts reports whether a category analyzes files like path.
func Accepts(c Category, path string) bool {
	for _, ext := range extensions[c] {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// Analyze runs every rule over each accepted file and returns the finalized
// report. Unreadable files and failing rules contribute nothing.
func (a *Analyzer) Analyze(ctx context.Context, files []string) Report {
	report := newReport(a.category)
	analyzed := 0

	for _, file := range files {
		if ctx.Err() != nil {
			a.log.Warn("analysis cancelled", zap.Error(ctx.Err()))
			break
		}
		if !a.Accepts(file) {
			continue
		}
		content, ok := a.read(file)
		if !ok {
			continue
		}
		analyzed++
		a.analyzeFile(report, file, content)
		if a.onFile != nil {
			a.onFile(a.category, file)
		}
	}

	if a.category == CategoryQuality && analyzed > 0 && ctx.Err() == nil {
		a.runTools(ctx, report)
	}

	report.finalize()
	return report
}

func (a *Analyzer) analyzeFile(report Report, file, content string) {
	in := newInput(file, content)
	perCheck := make(map[CheckID][]Finding)
	for _, r := range a.rules {
		perCheck[r.Check()] = append(perCheck[r.Check()], a.apply(r, in)...)
	}
	for _, id := range checkOrder[a.category] {
		findings := perCheck[id]
		sort.SliceStable(findings, func(i, j int) bool { return findings[i].Line < findings[j].Line })
		report.add(id, file, findings)
	}
}

func (a *Analyzer) apply(r Rule, in *Input) (findings []Finding) {
	defer func() {
		if p := recover(); p != nil {
			a.log.Warn("rule failed",
				zap.String("check", string(r.Check())),
				zap.String("file", in.Path),
				zap.Any("panic", p))
			findings = nil
		}
	}()
	return r.Match(in)
}

// read loads a file relative to the root. Paths escaping the root, missing
// files and non UTF-8 content are skipped.
func (a *Analyzer) read(file string) (string, bool) {
	full := filepath.Join(a.root, filepath.FromSlash(file))
	rel, err := filepath.Rel(a.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		a.log.Debug("skipping path outside repository", zap.String("file", file))
		return "", false
	}
	data, err := os.ReadFile(full)
	if err != nil {
		a.log.Debug("skipping unreadable file", zap.String("file", file), zap.Error(err))
		return "", false
	}
	if !utf8.Valid(data) {
		a.log.Warn("skipping file with invalid UTF-8", zap.String("file", file))
		return "", false
	}
	return string(data), true
}

// runTools executes the repository-wide checks concurrently. A tool that is
// unavailable, times out or fails contributes zero issues. Only cancellation
// of ctx is reported back through the group.
func (a *Analyzer) runTools(ctx context.Context, report Report) {
	results := make([][]Finding, len(toolChecks))
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range toolChecks {
		g.Go(func() error {
			findings, err := t.run(gctx, a.runner, a.root)
			if err != nil {
				a.log.Debug("tool check skipped",
					zap.String("check", string(t.id)),
					zap.Error(err))
				return gctx.Err()
			}
			results[i] = findings
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		a.log.Warn("tool checks cancelled", zap.Error(err))
	}

	for i, t := range toolChecks {
		report.add(t.id, "", results[i])
	}
}
