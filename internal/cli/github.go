package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/ctk/internal/config"
	"github.com/dshills/ctk/internal/gitctx"
	"github.com/dshills/ctk/internal/github"
)

var (
	flagGHRepo string
)

func newGitHubClient(cfg config.Config) (*github.Client, error) {
	return github.NewClient(cfg.GitHub.Token, cfg.GitHub.APIURL, logger)
}

// resolveRepo returns the configured repository, or the one the local
// checkout's origin remote points at.
func resolveRepo(cfg config.Config) (owner, repo string, err error) {
	if cfg.GitHub.Repo != "" {
		return github.SplitRepo(cfg.GitHub.Repo)
	}
	owner, repo, err = github.DetectRepo(cfg.RepoPath)
	if err != nil {
		return "", "", fmt.Errorf("%w; use --repo or GITHUB_REPO to specify owner/name", err)
	}
	return owner, repo, nil
}

// ghTarget is a client bound to the repository a command acts on.
type ghTarget struct {
	cfg    config.Config
	client *github.Client
	owner  string
	repo   string
}

// githubContext loads config and prepares a client for the target
// repository. A nil target with a nil error means the exit code is set.
func githubContext(cmd *cobra.Command) (*ghTarget, error) {
	cfg, err := config.Load(flagConfig, buildOverrides())
	if err != nil {
		return nil, err
	}
	client, err := newGitHubClient(cfg)
	if err != nil {
		exitWith(cmd, ExitAuthError, err)
		return nil, nil
	}
	owner, repo, err := resolveRepo(cfg)
	if err != nil {
		exitWith(cmd, ExitUsageError, err)
		return nil, nil
	}
	return &ghTarget{cfg: cfg, client: client, owner: owner, repo: repo}, nil
}

func (t *ghTarget) fullName() string { return t.owner + "/" + t.repo }

var githubCmd = &cobra.Command{
	Use:   "github",
	Short: "Manage branches, pull requests and files on GitHub",
}

var flagBranchBase string

var githubBranchCmd = &cobra.Command{
	Use:   "branch <name>",
	Short: "Create a branch from the base branch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := githubContext(cmd)
		if t == nil {
			return err
		}
		base := flagBranchBase
		if base == "" {
			base = t.cfg.GitHub.BaseBranch
		}
		if err := t.client.CreateBranch(cmd.Context(), t.owner, t.repo, args[0], base); err != nil {
			fail(cmd, err)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Branch %s ready in %s (from %s)\n", args[0], t.fullName(), base)
		return nil
	},
}

var githubPRCmd = &cobra.Command{
	Use:   "pr",
	Short: "Create and list pull requests",
}

var (
	flagPRTitle string
	flagPRBody  string
	flagPRHead  string
	flagPRBase  string
	flagPRDraft bool
)

var githubPRCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Open a pull request",
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagPRTitle == "" {
			exitWith(cmd, ExitUsageError, errors.New("--title is required"))
			return nil
		}
		t, err := githubContext(cmd)
		if t == nil {
			return err
		}

		head := flagPRHead
		if head == "" {
			meta, err := gitctx.GetRepoMeta(t.cfg.RepoPath)
			if err != nil || meta.Branch == "" || meta.Branch == "HEAD" {
				exitWith(cmd, ExitUsageError, errors.New("cannot determine the current branch; use --head"))
				return nil
			}
			head = meta.Branch
		}
		base := flagPRBase
		if base == "" {
			base = t.cfg.GitHub.BaseBranch
		}

		pr, err := t.client.CreatePullRequest(cmd.Context(), t.owner, t.repo, github.NewPullRequest{
			Title: flagPRTitle,
			Body:  flagPRBody,
			Head:  head,
			Base:  base,
			Draft: flagPRDraft,
		})
		if err != nil {
			fail(cmd, err)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created PR #%d: %s\n", pr.Number, pr.HTMLURL)
		return nil
	},
}

var (
	flagPRState string
	flagPRLimit int
)

var githubPRListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pull requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := githubContext(cmd)
		if t == nil {
			return err
		}
		prs, err := t.client.ListPullRequests(cmd.Context(), t.owner, t.repo, flagPRState, flagPRLimit)
		if err != nil {
			fail(cmd, err)
			return nil
		}
		if len(prs) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No %s pull requests in %s.\n", flagPRState, t.fullName())
			return nil
		}
		for _, pr := range prs {
			draft := ""
			if pr.Draft {
				draft = " [draft]"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "#%-5d %s%s (%s -> %s) @%s\n",
				pr.Number, pr.Title, draft, pr.Head.Ref, pr.Base.Ref, pr.User.Login)
		}
		return nil
	},
}

var githubFileCmd = &cobra.Command{
	Use:   "file",
	Short: "Manage repository files",
}

var (
	flagFileFrom    string
	flagFileMessage string
	flagFileBranch  string
)

var githubFilePutCmd = &cobra.Command{
	Use:   "put <path>",
	Short: "Create or update a file on a branch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagFileFrom == "" {
			exitWith(cmd, ExitUsageError, errors.New("--from is required"))
			return nil
		}
		content, err := os.ReadFile(flagFileFrom)
		if err != nil {
			exitWith(cmd, ExitRuntimeError, fmt.Errorf("reading %s: %w", flagFileFrom, err))
			return nil
		}

		t, err := githubContext(cmd)
		if t == nil {
			return err
		}
		branch := flagFileBranch
		if branch == "" {
			branch = t.cfg.GitHub.BaseBranch
		}
		message := flagFileMessage
		if message == "" {
			message = "Update " + args[0]
		}

		if err := t.client.CreateOrUpdateFile(cmd.Context(), t.owner, t.repo, args[0], string(content), message, branch); err != nil {
			fail(cmd, err)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s on %s in %s\n", args[0], branch, t.fullName())
		return nil
	},
}

func init() {
	githubCmd.AddCommand(githubBranchCmd)
	githubCmd.AddCommand(githubPRCmd)
	githubCmd.AddCommand(githubFileCmd)
	githubPRCmd.AddCommand(githubPRCreateCmd)
	githubPRCmd.AddCommand(githubPRListCmd)
	githubFileCmd.AddCommand(githubFilePutCmd)

	githubCmd.PersistentFlags().StringVar(&flagGHRepo, "repo", "", "GitHub repository as owner/name (auto-detected if omitted)")

	githubBranchCmd.Flags().StringVar(&flagBranchBase, "base", "", "Base branch (default: github.baseBranch)")

	githubPRCreateCmd.Flags().StringVar(&flagPRTitle, "title", "", "Pull request title")
	githubPRCreateCmd.Flags().StringVar(&flagPRBody, "body", "", "Pull request body")
	githubPRCreateCmd.Flags().StringVar(&flagPRHead, "head", "", "Head branch (default: current branch)")
	githubPRCreateCmd.Flags().StringVar(&flagPRBase, "base", "", "Base branch (default: github.baseBranch)")
	githubPRCreateCmd.Flags().BoolVar(&flagPRDraft, "draft", false, "Open as a draft")

	githubPRListCmd.Flags().StringVar(&flagPRState, "state", "open", "Pull request state (open, closed, all)")
	githubPRListCmd.Flags().IntVar(&flagPRLimit, "limit", 30, "Maximum pull requests to list")

	githubFilePutCmd.Flags().StringVar(&flagFileFrom, "from", "", "Local file whose content is uploaded")
	githubFilePutCmd.Flags().StringVar(&flagFileMessage, "message", "", "Commit message")
	githubFilePutCmd.Flags().StringVar(&flagFileBranch, "branch", "", "Target branch (default: github.baseBranch)")
}
