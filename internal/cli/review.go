package cli

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/ctk/internal/analysis"
	"github.com/dshills/ctk/internal/config"
	"github.com/dshills/ctk/internal/execx"
	"github.com/dshills/ctk/internal/gitctx"
	"github.com/dshills/ctk/internal/output"
	"github.com/dshills/ctk/internal/review"
)

// Shared review flags
var (
	flagPaths         string
	flagExclude       string
	flagSecurity      bool
	flagPerformance   bool
	flagAccessibility bool
	flagAll           bool
	flagFix           bool
	flagFormat        string
	flagOut           string
	flagRepoPath      string
	flagFailOn        string
	flagMaxLocations  int
	flagRules         string
)

// newRunner builds the external tool runner for a review.
var newRunner = func(cfg config.Config) execx.Runner {
	return execx.OSRunner{Timeout: cfg.ToolTimeout()}
}

func addReviewFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagPaths, "paths", "", "Include file path globs (comma-separated)")
	cmd.Flags().StringVar(&flagExclude, "exclude", "", "Exclude file path globs (comma-separated)")
	cmd.Flags().BoolVar(&flagSecurity, "security", false, "Run security checks")
	cmd.Flags().BoolVar(&flagPerformance, "performance", false, "Run performance checks")
	cmd.Flags().BoolVar(&flagAccessibility, "accessibility", false, "Run accessibility checks")
	cmd.Flags().BoolVar(&flagAll, "all", false, "Run every check category")
	cmd.Flags().BoolVar(&flagFix, "fix", false, "List the commands that would repair fixable issues")
	cmd.Flags().StringVar(&flagFormat, "format", "", "Output format (text, json, markdown, sarif, yaml)")
	cmd.Flags().StringVar(&flagOut, "out", "", "Output file path (default: stdout)")
	cmd.Flags().StringVar(&flagRepoPath, "repo-path", "", "Repository to review (default: current directory)")
	cmd.Flags().StringVar(&flagFailOn, "fail-on", "", "Fail on issue threshold (none, warning, blocking)")
	cmd.Flags().IntVar(&flagMaxLocations, "max-locations", 0, "Maximum locations shown per check")
	cmd.Flags().StringVar(&flagRules, "rules", "", "Rules file with severity overrides")
}

func buildOverrides() map[string]string {
	m := make(map[string]string)
	if flagFormat != "" {
		m["format"] = flagFormat
	}
	if flagFailOn != "" {
		m["failOn"] = flagFailOn
	}
	if flagMaxLocations > 0 {
		m["maxLocations"] = strconv.Itoa(flagMaxLocations)
	}
	if flagRepoPath != "" {
		m["repoPath"] = flagRepoPath
	}
	if flagGHRepo != "" {
		m["github.repo"] = flagGHRepo
	}
	return m
}

func buildGitOpts(cfg config.Config) gitctx.Options {
	opts := gitctx.Options{
		Dir:     cfg.RepoPath,
		Include: cfg.Analysis.Include,
		Exclude: cfg.Analysis.Exclude,
	}
	if flagPaths != "" {
		opts.Include = splitComma(flagPaths)
	}
	if flagExclude != "" {
		opts.Exclude = append(opts.Exclude, splitComma(flagExclude)...)
	}
	return opts
}

func splitComma(s string) []string {
	parts := strings.Split(s, ",")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// target describes what a review covers.
type target struct {
	root     string
	mode     string
	rng      string
	prNumber int
	repo     *review.RepoInfo
}

func localTarget(cfg config.Config, res gitctx.Result) target {
	t := target{root: cfg.RepoPath, mode: res.Mode, rng: res.Range}
	if res.Repo.Root != "" {
		// Diff output is relative to the top level, ls-files and explicit
		// paths to the working directory.
		if res.Mode != "files" && res.Mode != "codebase" {
			t.root = res.Repo.Root
		}
		t.repo = &review.RepoInfo{
			Root:   res.Repo.Root,
			Head:   res.Repo.Head,
			Branch: res.Repo.Branch,
			Name:   filepath.Base(res.Repo.Root),
		}
	}
	return t
}

func reviewOptions(cfg config.Config, t target) (review.Options, error) {
	opts := review.Options{
		Root:          t.root,
		Security:      flagAll || flagSecurity || cfg.Analysis.Security,
		Performance:   flagAll || flagPerformance || cfg.Analysis.Performance,
		Accessibility: flagAll || flagAccessibility || cfg.Analysis.Accessibility,
		AutoFix:       flagFix,
		PRNumber:      t.prNumber,
		Mode:          t.mode,
		Range:         t.rng,
		Repo:          t.repo,
		Runner:        newRunner(cfg),
		Limits:        analysis.DefaultLimits(),
		Logger:        logger,
	}
	if flagRules != "" {
		rules, err := review.LoadRules(flagRules)
		if err != nil {
			return review.Options{}, err
		}
		opts.Rules = rules
	}
	return opts, nil
}

// analyze runs the review engine. On failure it records the exit code and
// returns nil.
func analyze(cmd *cobra.Command, cfg config.Config, files []string, t target) *review.Report {
	opts, err := reviewOptions(cfg, t)
	if err != nil {
		exitWith(cmd, ExitUsageError, err)
		return nil
	}

	bar := newProgress(cmd.ErrOrStderr(), files, opts.Categories())
	if bar != nil {
		opts.OnFile = func(analysis.Category, string) { _ = bar.Add(1) }
	}

	log().Debug("starting review",
		zap.String("mode", t.mode),
		zap.Int("files", len(files)),
		zap.Int("categories", len(opts.Categories())))

	report, err := review.Run(cmd.Context(), files, opts)
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		fail(cmd, err)
		return nil
	}
	return report
}

// newProgress returns a progress bar over the files each selected category
// analyzes, or nil when stderr is not a terminal or there is nothing to do.
func newProgress(w io.Writer, files []string, cats []analysis.Category) *progressbar.ProgressBar {
	if !isTerminal(w) {
		return nil
	}
	total := 0
	for _, c := range cats {
		for _, f := range files {
			if analysis.Accepts(c, f) {
				total++
			}
		}
	}
	if total == 0 {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(18),
		progressbar.OptionSetDescription("Analyzing"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

// emit writes the report in the configured format.
func emit(cmd *cobra.Command, cfg config.Config, report *review.Report) bool {
	opts := output.Options{MaxLocations: cfg.MaxLocations}
	var err error
	if flagOut != "" {
		err = output.WriteReport(report, cfg.Format, flagOut, opts)
	} else {
		opts.Color = isTerminal(cmd.OutOrStdout())
		var w output.Writer
		if w, err = output.GetWriter(cfg.Format, opts); err == nil {
			err = w.Write(cmd.OutOrStdout(), report)
		}
	}
	if err != nil {
		exitWith(cmd, ExitRuntimeError, fmt.Errorf("writing output: %w", err))
		return false
	}
	return true
}

// gate sets the findings exit code when the summary meets the fail-on policy.
func gate(cfg config.Config, report *review.Report) {
	if review.MeetsThreshold(report.Summary, cfg.FailOn) {
		exitCode = ExitFindings
	}
}

func runReview(cmd *cobra.Command, cfg config.Config, files []string, t target) {
	report := analyze(cmd, cfg, files, t)
	if report == nil || !emit(cmd, cfg, report) {
		return
	}
	gate(cfg, report)
}

// localReview loads config, lists files with list and reviews them.
func localReview(list func(cmd *cobra.Command, args []string, opts gitctx.Options) (gitctx.Result, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfig, buildOverrides())
		if err != nil {
			return err
		}
		res, err := list(cmd, args, buildGitOpts(cfg))
		if err != nil {
			exitWith(cmd, ExitRuntimeError, err)
			return nil
		}
		runReview(cmd, cfg, res.Files, localTarget(cfg, res))
		return nil
	}
}

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Run static checks over changed files",
	Long:  "Run the code quality checks, plus any selected security, performance and accessibility checks. Use subcommands to choose the files.",
}

var flagPost bool

var reviewPRCmd = &cobra.Command{
	Use:   "pr <number>",
	Short: "Review the files changed by a GitHub pull request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prNumber, err := strconv.Atoi(args[0])
		if err != nil || prNumber <= 0 {
			exitWith(cmd, ExitUsageError, fmt.Errorf("invalid PR number %q", args[0]))
			return nil
		}

		gt, err := githubContext(cmd)
		if gt == nil {
			return err
		}
		cfg := gt.cfg

		ctx := cmd.Context()
		files, err := gt.client.GetPRFiles(ctx, gt.owner, gt.repo, prNumber)
		if err != nil {
			fail(cmd, err)
			return nil
		}
		opts := buildGitOpts(cfg)
		files = gitctx.Filter(files, opts.Include, opts.Exclude)

		// PR paths are relative to the repository top level.
		t := target{
			root:     cfg.RepoPath,
			mode:     "pr",
			prNumber: prNumber,
			repo:     &review.RepoInfo{Name: gt.fullName()},
		}
		if meta, err := gitctx.GetRepoMeta(cfg.RepoPath); err == nil {
			t.root = meta.Root
			t.repo.Root, t.repo.Head, t.repo.Branch = meta.Root, meta.Head, meta.Branch
		}

		report := analyze(cmd, cfg, files, t)
		if report == nil || !emit(cmd, cfg, report) {
			return nil
		}

		if flagPost {
			var body bytes.Buffer
			md := &output.MarkdownWriter{Options: output.Options{MaxLocations: cfg.MaxLocations}}
			if err := md.Write(&body, report); err != nil {
				exitWith(cmd, ExitRuntimeError, err)
				return nil
			}
			if err := gt.client.PostReview(ctx, gt.owner, gt.repo, prNumber, body.String()); err != nil {
				fail(cmd, err)
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Review posted to PR #%d.\n", prNumber)
		}

		gate(cfg, report)
		return nil
	},
}

var reviewFilesCmd = &cobra.Command{
	Use:   "files <path>...",
	Short: "Review explicit file paths",
	Args:  cobra.MinimumNArgs(1),
	RunE: localReview(func(_ *cobra.Command, args []string, opts gitctx.Options) (gitctx.Result, error) {
		res := gitctx.Result{
			Files: gitctx.Filter(args, opts.Include, opts.Exclude),
			Mode:  "files",
		}
		if meta, err := gitctx.GetRepoMeta(opts.Dir); err == nil {
			res.Repo = meta
		}
		return res, nil
	}),
}

var reviewUnstagedCmd = &cobra.Command{
	Use:   "unstaged",
	Short: "Review unstaged changes (working tree vs index)",
	RunE: localReview(func(_ *cobra.Command, _ []string, opts gitctx.Options) (gitctx.Result, error) {
		return gitctx.Unstaged(opts)
	}),
}

var reviewStagedCmd = &cobra.Command{
	Use:   "staged",
	Short: "Review staged changes (index vs HEAD)",
	RunE: localReview(func(_ *cobra.Command, _ []string, opts gitctx.Options) (gitctx.Result, error) {
		return gitctx.Staged(opts)
	}),
}

var (
	flagParent string
)

var reviewCommitCmd = &cobra.Command{
	Use:   "commit <sha>",
	Short: "Review the files changed by a commit",
	Args:  cobra.ExactArgs(1),
	RunE: localReview(func(_ *cobra.Command, args []string, opts gitctx.Options) (gitctx.Result, error) {
		return gitctx.Commit(args[0], flagParent, opts)
	}),
}

var (
	flagMergeBase bool
)

var reviewRangeCmd = &cobra.Command{
	Use:   "range <revRange>",
	Short: "Review a revision range (e.g., origin/main..HEAD)",
	Args:  cobra.ExactArgs(1),
	RunE: localReview(func(_ *cobra.Command, args []string, opts gitctx.Options) (gitctx.Result, error) {
		return gitctx.Range(args[0], flagMergeBase, opts)
	}),
}

var reviewCodebaseCmd = &cobra.Command{
	Use:   "codebase",
	Short: "Review every tracked file in the repository",
	RunE: localReview(func(_ *cobra.Command, _ []string, opts gitctx.Options) (gitctx.Result, error) {
		return gitctx.Codebase(opts)
	}),
}

func init() {
	reviewCmd.AddCommand(reviewPRCmd)
	reviewCmd.AddCommand(reviewFilesCmd)
	reviewCmd.AddCommand(reviewUnstagedCmd)
	reviewCmd.AddCommand(reviewStagedCmd)
	reviewCmd.AddCommand(reviewCommitCmd)
	reviewCmd.AddCommand(reviewRangeCmd)
	reviewCmd.AddCommand(reviewCodebaseCmd)

	// Add shared flags to all review subcommands
	for _, cmd := range []*cobra.Command{
		reviewPRCmd,
		reviewFilesCmd,
		reviewUnstagedCmd,
		reviewStagedCmd,
		reviewCommitCmd,
		reviewRangeCmd,
		reviewCodebaseCmd,
	} {
		addReviewFlags(cmd)
	}

	// PR-specific flags
	reviewPRCmd.Flags().BoolVar(&flagPost, "post", false, "Post the report to the pull request as a review comment")
	reviewPRCmd.Flags().StringVar(&flagGHRepo, "repo", "", "GitHub repository as owner/name (auto-detected if omitted)")

	// Commit-specific flags
	reviewCommitCmd.Flags().StringVar(&flagParent, "parent", "", "Override parent SHA (for merge commits)")

	// Range-specific flags
	reviewRangeCmd.Flags().BoolVar(&flagMergeBase, "merge-base", true, "Use merge base for branch comparisons")
}
