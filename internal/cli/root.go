package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/dshills/ctk/internal/logging"
	"github.com/dshills/ctk/internal/redact"
	"github.com/dshills/ctk/internal/remote"
)

const version = "1.0.0"

// Exit codes
const (
	ExitSuccess      = 0
	ExitFindings     = 1
	ExitUsageError   = 2
	ExitAuthError    = 3
	ExitRuntimeError = 4
)

var (
	flagDebug  bool
	flagConfig string
)

// logger is built in the root pre-run hook and synced after execution.
var logger *zap.Logger

var rootCmd = &cobra.Command{
	Use:   "ctk",
	Short: "Pull-request toolkit",
	Long: "Ctk links issue-tracker tasks to GitHub pull requests and runs static " +
		"quality, security, performance and accessibility checks over changed files.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.New(flagDebug)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
}

// Run executes the root command and returns an exit code.
func Run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	exitCode = ExitSuccess
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(ctx)
	if logger != nil {
		_ = logger.Sync()
	}
	if err != nil {
		// Cobra already prints the error
		return ExitUsageError
	}
	return exitCode
}

// exitCode is set by command handlers to control the process exit code.
var exitCode = ExitSuccess

// exitWith reports err on stderr and records code as the exit code.
func exitWith(cmd *cobra.Command, code int, err error) {
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", redact.Secrets(err.Error()))
	exitCode = code
}

// fail reports a collaborator or runtime error. Rejected credentials map to
// the auth exit code.
func fail(cmd *cobra.Command, err error) {
	if remote.IsAuthError(err) {
		exitWith(cmd, ExitAuthError, err)
		return
	}
	exitWith(cmd, ExitRuntimeError, err)
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func log() *zap.Logger { return logging.OrNop(logger) }

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print ctk version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "ctk version %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file path (default: user config dir)")

	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(githubCmd)
	rootCmd.AddCommand(linearCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(projectsCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(hookCmd)
	rootCmd.AddCommand(versionCmd)
}
