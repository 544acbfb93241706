package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/ctk/internal/cache"
	"github.com/dshills/ctk/internal/config"
	"github.com/dshills/ctk/internal/linear"
)

// linearContext loads config and prepares a client. A nil client with a nil
// error means the exit code is set.
func linearContext(cmd *cobra.Command) (config.Config, *linear.Client, error) {
	cfg, err := config.Load(flagConfig, nil)
	if err != nil {
		return cfg, nil, err
	}
	c, err := cache.New(cfg.Cache.Enabled, cfg.Cache.Dir, cfg.Cache.TTLSeconds)
	if err != nil {
		log().Warn("cache unavailable, continuing without it", zap.Error(err))
	}
	client, err := linear.NewClient(cfg.Linear.APIKey, cfg.Linear.TeamID, cfg.Linear.APIURL, c, logger)
	if err != nil {
		exitWith(cmd, ExitAuthError, err)
		return cfg, nil, nil
	}
	return cfg, client, nil
}

var linearCmd = &cobra.Command{
	Use:   "linear",
	Short: "List, create and update Linear tasks",
}

var (
	flagLinearState string
	flagLinearJSON  bool
)

var linearListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks in a workflow state",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, client, err := linearContext(cmd)
		if client == nil {
			return err
		}
		state := flagLinearState
		if state == "" {
			state = cfg.Linear.ReadyState
		}
		tasks, err := client.Tasks(cmd.Context(), state)
		if err != nil {
			fail(cmd, err)
			return nil
		}

		out := cmd.OutOrStdout()
		if flagLinearJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if tasks == nil {
				tasks = []linear.Task{}
			}
			return enc.Encode(tasks)
		}
		if len(tasks) == 0 {
			fmt.Fprintf(out, "No tasks in %q.\n", state)
			return nil
		}
		for _, t := range tasks {
			labels := ""
			if len(t.Labels) > 0 {
				labels = " [" + strings.Join(t.Labels, ", ") + "]"
			}
			fmt.Fprintf(out, "%-10s %s%s\n", t.Identifier, t.Title, labels)
		}
		return nil
	},
}

var (
	flagTaskTitle       string
	flagTaskDescription string
	flagTaskState       string
	flagTaskLabels      string
)

var linearCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a task",
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(flagTaskTitle) == "" {
			exitWith(cmd, ExitUsageError, errors.New("--title is required"))
			return nil
		}
		_, client, err := linearContext(cmd)
		if client == nil {
			return err
		}
		task, err := client.CreateTask(cmd.Context(), linear.NewTask{
			Title:       flagTaskTitle,
			Description: flagTaskDescription,
			State:       flagTaskState,
			Labels:      splitComma(flagTaskLabels),
		})
		if err != nil {
			fail(cmd, err)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s: %s\n", task.Identifier, task.URL)
		return nil
	},
}

var (
	flagUpdateState   string
	flagUpdateComment string
)

var linearUpdateCmd = &cobra.Command{
	Use:   "update <task-id>",
	Short: "Move a task to another state and/or comment on it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagUpdateState == "" && flagUpdateComment == "" {
			exitWith(cmd, ExitUsageError, errors.New("--state or --comment is required"))
			return nil
		}
		_, client, err := linearContext(cmd)
		if client == nil {
			return err
		}
		comment := updateComment(flagUpdateState, flagUpdateComment)
		if err := client.UpdateTask(cmd.Context(), args[0], flagUpdateState, comment); err != nil {
			fail(cmd, err)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", args[0])
		return nil
	},
}

// updateComment returns the comment posted with an update. A state change
// without a comment is recorded on the task.
func updateComment(state, comment string) string {
	if comment == "" && state != "" {
		return "Updated to " + state
	}
	return comment
}

func init() {
	linearCmd.AddCommand(linearListCmd)
	linearCmd.AddCommand(linearCreateCmd)
	linearCmd.AddCommand(linearUpdateCmd)

	linearListCmd.Flags().StringVar(&flagLinearState, "state", "", "Workflow state (default: linear.readyState)")
	linearListCmd.Flags().BoolVar(&flagLinearJSON, "json", false, "Print tasks as JSON")

	linearCreateCmd.Flags().StringVar(&flagTaskTitle, "title", "", "Task title")
	linearCreateCmd.Flags().StringVar(&flagTaskDescription, "description", "", "Task description (markdown)")
	linearCreateCmd.Flags().StringVar(&flagTaskState, "state", "", "Initial workflow state (default: team default)")
	linearCreateCmd.Flags().StringVar(&flagTaskLabels, "labels", "", "Label names (comma-separated)")

	linearUpdateCmd.Flags().StringVar(&flagUpdateState, "state", "", "New workflow state")
	linearUpdateCmd.Flags().StringVar(&flagUpdateComment, "comment", "", "Comment to add")
}
