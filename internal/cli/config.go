package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/ctk/internal/config"
	"github.com/dshills/ctk/internal/redact"
)

// configFile returns the config path in effect.
func configFile() (string, error) {
	if flagConfig != "" {
		return flagConfig, nil
	}
	return config.ConfigPath()
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage ctk configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configFile()
		if err != nil {
			return err
		}

		if _, err := os.Stat(path); err == nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Config file already exists at %s\n", path)
			return nil
		}

		if err := config.Save(config.Default(), path); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Config file created at %s\n", path)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value. Keys: " + strings.Join(config.Keys(), ", ") + ", projects.<name>.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configFile()
		if err != nil {
			return err
		}
		cfg, err := config.LoadFile(path)
		if err != nil {
			return err
		}

		if err := config.SetField(&cfg, args[0], args[1]); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		if err := config.Save(cfg, path); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}

		value := args[1]
		if isSecretKey(args[0]) {
			value = redact.Mask(value)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", args[0], value)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfig, nil)
		if err != nil {
			return err
		}

		data, err := json.MarshalIndent(masked(cfg), "", "  ")
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

func isSecretKey(key string) bool {
	return key == "github.token" || key == "linear.apiKey"
}

// masked returns cfg with credentials hidden.
func masked(cfg config.Config) config.Config {
	cfg.GitHub.Token = redact.Mask(cfg.GitHub.Token)
	cfg.Linear.APIKey = redact.Mask(cfg.Linear.APIKey)
	return cfg
}

var flagProjectSet string

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List configured projects or select the active one",
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagProjectSet != "" {
			return setActiveProject(cmd, flagProjectSet)
		}

		cfg, err := config.Load(flagConfig, nil)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(cfg.Projects) == 0 {
			fmt.Fprintln(out, "No projects configured. Add one with: ctk config set projects.<name> owner/repo")
			return nil
		}
		names := make([]string, 0, len(cfg.Projects))
		for name := range cfg.Projects {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			marker := " "
			if strings.EqualFold(name, cfg.ActiveProject) {
				marker = "*"
			}
			fmt.Fprintf(out, "%s %-20s %s\n", marker, name, cfg.Projects[name])
		}
		return nil
	},
}

func setActiveProject(cmd *cobra.Command, name string) error {
	path, err := configFile()
	if err != nil {
		return err
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return err
	}
	name = strings.ToLower(name)
	if _, ok := cfg.Projects[name]; !ok {
		exitWith(cmd, ExitUsageError, errors.New("unknown project: "+name))
		return nil
	}
	cfg.ActiveProject = name
	if err := config.Save(cfg, path); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Active project: %s (%s)\n", name, cfg.Projects[name])
	return nil
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configShowCmd)

	projectsCmd.Flags().StringVar(&flagProjectSet, "set", "", "Make the named project active")
}
