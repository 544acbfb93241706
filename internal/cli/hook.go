package cli

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

const (
	hookMarkerStart = "# >>> ctk pre-commit hook >>>"
	hookMarkerEnd   = "# <<< ctk pre-commit hook <<<"
)

var (
	hookFailOn string
	hookFormat string
	hookAll    bool
)

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Manage git pre-commit hook",
}

var hookInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install ctk as a git pre-commit hook",
	RunE: func(cmd *cobra.Command, args []string) error {
		hookPath, err := getHookPath()
		if err != nil {
			exitWith(cmd, ExitRuntimeError, err)
			return nil
		}

		section := generateHookScript(hookFailOn, hookFormat, hookAll)

		existing, err := os.ReadFile(hookPath)
		if err != nil && !os.IsNotExist(err) {
			exitWith(cmd, ExitRuntimeError, fmt.Errorf("reading hook file: %w", err))
			return nil
		}

		var content string
		if os.IsNotExist(err) || len(existing) == 0 {
			// No existing hook, create a new file
			content = "#!/bin/sh\n" + section
		} else {
			content = replaceHookSection(string(existing), section)
		}

		if err := os.MkdirAll(filepath.Dir(hookPath), 0o755); err != nil {
			exitWith(cmd, ExitRuntimeError, fmt.Errorf("creating hooks directory: %w", err))
			return nil
		}

		if err := os.WriteFile(hookPath, []byte(content), 0o755); err != nil {
			exitWith(cmd, ExitRuntimeError, fmt.Errorf("writing hook file: %w", err))
			return nil
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Installed ctk pre-commit hook at %s\n", hookPath)
		return nil
	},
}

var hookUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the ctk pre-commit hook",
	RunE: func(cmd *cobra.Command, args []string) error {
		hookPath, err := getHookPath()
		if err != nil {
			exitWith(cmd, ExitRuntimeError, err)
			return nil
		}

		existing, err := os.ReadFile(hookPath)
		if err != nil {
			if os.IsNotExist(err) {
				fmt.Fprintln(cmd.OutOrStdout(), "No pre-commit hook found.")
				return nil
			}
			exitWith(cmd, ExitRuntimeError, fmt.Errorf("reading hook file: %w", err))
			return nil
		}

		content := removeHookSection(string(existing))

		// If only shebang (and whitespace) remains, delete the file entirely
		trimmed := strings.TrimSpace(content)
		if trimmed == "" || trimmed == "#!/bin/sh" || trimmed == "#!/bin/bash" {
			if err := os.Remove(hookPath); err != nil {
				exitWith(cmd, ExitRuntimeError, fmt.Errorf("removing hook file: %w", err))
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed ctk pre-commit hook at %s\n", hookPath)
			return nil
		}

		if err := os.WriteFile(hookPath, []byte(content), 0o755); err != nil {
			exitWith(cmd, ExitRuntimeError, fmt.Errorf("writing hook file: %w", err))
			return nil
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Removed ctk section from %s\n", hookPath)
		return nil
	},
}

func getHookPath() (string, error) {
	out, err := exec.Command("git", "rev-parse", "--git-path", "hooks").Output()
	if err != nil {
		return "", fmt.Errorf("not a git repository (git rev-parse --git-path failed)")
	}
	hooksDir := strings.TrimSpace(string(out))
	return filepath.Join(hooksDir, "pre-commit"), nil
}

func generateHookScript(failOn, format string, all bool) string {
	args := fmt.Sprintf("--fail-on %s --format %s", failOn, format)
	if all {
		args += " --all"
	}
	var b strings.Builder
	b.WriteString(hookMarkerStart + "\n")
	b.WriteString("ctk review staged " + args + "\n")
	b.WriteString("CTK_EXIT=$?\n")
	b.WriteString("if [ $CTK_EXIT -eq 1 ]; then\n")
	b.WriteString("  echo \"ctk: blocking issues found, commit blocked\"\n")
	b.WriteString("  exit 1\n")
	b.WriteString("elif [ $CTK_EXIT -ge 2 ]; then\n")
	b.WriteString("  echo \"ctk: review failed (exit $CTK_EXIT), allowing commit\"\n")
	b.WriteString("fi\n")
	b.WriteString(hookMarkerEnd + "\n")
	return b.String()
}

func replaceHookSection(existing, section string) string {
	startIdx := strings.Index(existing, hookMarkerStart)
	endIdx := strings.Index(existing, hookMarkerEnd)

	if startIdx == -1 || endIdx == -1 {
		// No existing ctk section, append
		if !strings.HasSuffix(existing, "\n") {
			existing += "\n"
		}
		return existing + section
	}

	// Replace existing section
	before := existing[:startIdx]
	after := existing[endIdx+len(hookMarkerEnd):]
	// Trim leading newline from after to avoid double newlines
	after = strings.TrimPrefix(after, "\n")
	return before + section + after
}

func removeHookSection(existing string) string {
	startIdx := strings.Index(existing, hookMarkerStart)
	endIdx := strings.Index(existing, hookMarkerEnd)

	if startIdx == -1 || endIdx == -1 {
		return existing
	}

	before := existing[:startIdx]
	after := existing[endIdx+len(hookMarkerEnd):]
	after = strings.TrimPrefix(after, "\n")

	return before + after
}

func init() {
	hookCmd.AddCommand(hookInstallCmd)
	hookCmd.AddCommand(hookUninstallCmd)
	hookInstallCmd.Flags().StringVar(&hookFailOn, "fail-on", "blocking", "Fail on issue threshold (none, warning, blocking)")
	hookInstallCmd.Flags().StringVar(&hookFormat, "format", "text", "Output format (text, json, markdown, sarif, yaml)")
	hookInstallCmd.Flags().BoolVar(&hookAll, "all", false, "Run every check category")
}
