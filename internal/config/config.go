package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the ctk configuration.
type Config struct {
	RepoPath      string            `mapstructure:"repoPath" yaml:"repoPath" json:"repoPath"`
	Format        string            `mapstructure:"format" yaml:"format" json:"format"`
	FailOn        string            `mapstructure:"failOn" yaml:"failOn" json:"failOn"`
	MaxLocations  int               `mapstructure:"maxLocations" yaml:"maxLocations" json:"maxLocations"`
	GitHub        GitHubConfig      `mapstructure:"github" yaml:"github" json:"github"`
	Linear        LinearConfig      `mapstructure:"linear" yaml:"linear" json:"linear"`
	Analysis      AnalysisConfig    `mapstructure:"analysis" yaml:"analysis" json:"analysis"`
	Cache         CacheConfig       `mapstructure:"cache" yaml:"cache" json:"cache"`
	Projects      map[string]string `mapstructure:"projects" yaml:"projects,omitempty" json:"projects,omitempty"`
	ActiveProject string            `mapstructure:"activeProject" yaml:"activeProject,omitempty" json:"activeProject,omitempty"`
}

// GitHubConfig holds source-host settings.
type GitHubConfig struct {
	Token      string `mapstructure:"token" yaml:"token,omitempty" json:"token,omitempty"`
	Repo       string `mapstructure:"repo" yaml:"repo,omitempty" json:"repo,omitempty"`
	APIURL     string `mapstructure:"apiUrl" yaml:"apiUrl" json:"apiUrl"`
	BaseBranch string `mapstructure:"baseBranch" yaml:"baseBranch" json:"baseBranch"`
}

// LinearConfig holds issue-tracker settings.
type LinearConfig struct {
	APIKey     string `mapstructure:"apiKey" yaml:"apiKey,omitempty" json:"apiKey,omitempty"`
	TeamID     string `mapstructure:"teamId" yaml:"teamId,omitempty" json:"teamId,omitempty"`
	APIURL     string `mapstructure:"apiUrl" yaml:"apiUrl" json:"apiUrl"`
	ReadyState string `mapstructure:"readyState" yaml:"readyState" json:"readyState"`
}

// AnalysisConfig selects optional categories and bounds external tools.
type AnalysisConfig struct {
	Security           bool     `mapstructure:"security" yaml:"security" json:"security"`
	Performance        bool     `mapstructure:"performance" yaml:"performance" json:"performance"`
	Accessibility      bool     `mapstructure:"accessibility" yaml:"accessibility" json:"accessibility"`
	ToolTimeoutSeconds int      `mapstructure:"toolTimeoutSeconds" yaml:"toolTimeoutSeconds" json:"toolTimeoutSeconds"`
	Include            []string `mapstructure:"include" yaml:"include,omitempty" json:"include,omitempty"`
	Exclude            []string `mapstructure:"exclude" yaml:"exclude,omitempty" json:"exclude,omitempty"`
}

// CacheConfig controls caching of collaborator metadata.
type CacheConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Dir        string `mapstructure:"dir" yaml:"dir,omitempty" json:"dir,omitempty"`
	TTLSeconds int    `mapstructure:"ttlSeconds" yaml:"ttlSeconds" json:"ttlSeconds"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		RepoPath:     ".",
		Format:       "text",
		FailOn:       "none",
		MaxLocations: 5,
		GitHub: GitHubConfig{
			APIURL:     "https://api.github.com",
			BaseBranch: "main",
		},
		Linear: LinearConfig{
			APIURL:     "https://api.linear.app/graphql",
			ReadyState: "Todo",
		},
		Analysis: AnalysisConfig{
			ToolTimeoutSeconds: 30,
			Exclude:            []string{"node_modules/**", "dist/**", "build/**", "coverage/**"},
		},
		Cache: CacheConfig{
			Enabled:    true,
			TTLSeconds: 86400,
		},
	}
}

// ToolTimeout returns the external tool timeout as a duration.
func (c Config) ToolTimeout() time.Duration {
	return time.Duration(c.Analysis.ToolTimeoutSeconds) * time.Second
}

// ConfigDir returns the platform-appropriate config directory for ctk.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "ctk"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "ctk"), nil
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "ctk"), nil
		}
		return filepath.Join(home, "AppData", "Roaming", "ctk"), nil
	default:
		return filepath.Join(home, ".config", "ctk"), nil
	}
}

// ConfigPath returns the full path to the config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// envBindings maps environment variables to config keys.
var envBindings = []struct {
	env string
	key string
}{
	{"GITHUB_TOKEN", "github.token"},
	{"GITHUB_REPO", "github.repo"},
	{"GITHUB_API_URL", "github.apiUrl"},
	{"LINEAR_API_KEY", "linear.apiKey"},
	{"LINEAR_TEAM_ID", "linear.teamId"},
	{"LINEAR_API_URL", "linear.apiUrl"},
	{"TARGET_PROJECT", "activeProject"},
	{"CTK_FORMAT", "format"},
	{"CTK_FAIL_ON", "failOn"},
	{"CTK_REPO_PATH", "repoPath"},
	{"CTK_TOOL_TIMEOUT", "analysis.toolTimeoutSeconds"},
}

// Load builds the effective config by merging:
// defaults <- file <- .env <- env <- overrides. An empty path selects
// [ConfigPath]. The overrides map comes from CLI flags; keys are the ones
// accepted by [SetField] and empty values are ignored.
func Load(path string, overrides map[string]string) (Config, error) {
	v, err := readFile(path)
	if err != nil {
		return Config{}, err
	}

	dotenv, err := readDotEnv(".env")
	if err != nil {
		return Config{}, err
	}
	lookup := func(name string) string {
		if val := os.Getenv(name); val != "" {
			return val
		}
		return dotenv[strings.ToLower(name)]
	}
	mergeEnv(v, lookup)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := mergeOverrides(&cfg, overrides); err != nil {
		return Config{}, err
	}
	if overrides["github.repo"] == "" {
		cfg.resolveProject(lookup)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadFile returns defaults merged with the config file only, without
// environment or flag overrides. It is the starting point for edits that
// are written back with [Save].
func LoadFile(path string) (Config, error) {
	v, err := readFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// Save writes the config to path as YAML, or to [ConfigPath] when path is
// empty. The file holds credentials, so it is readable by the owner only.
func Save(cfg Config, path string) error {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// Create a new viper instance to avoid race conditions
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.Set("repoPath", cfg.RepoPath)
	v.Set("format", cfg.Format)
	v.Set("failOn", cfg.FailOn)
	v.Set("maxLocations", cfg.MaxLocations)
	v.Set("github", cfg.GitHub)
	v.Set("linear", cfg.Linear)
	v.Set("analysis", cfg.Analysis)
	v.Set("cache", cfg.Cache)
	if len(cfg.Projects) > 0 {
		v.Set("projects", cfg.Projects)
	}
	if cfg.ActiveProject != "" {
		v.Set("activeProject", cfg.ActiveProject)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return os.Chmod(path, 0o600)
}

// newViper returns a viper instance seeded with the defaults.
func newViper() *viper.Viper {
	// Create a new viper instance to avoid race conditions
	v := viper.New()
	d := Default()
	v.SetDefault("repoPath", d.RepoPath)
	v.SetDefault("format", d.Format)
	v.SetDefault("failOn", d.FailOn)
	v.SetDefault("maxLocations", d.MaxLocations)
	v.SetDefault("github.apiUrl", d.GitHub.APIURL)
	v.SetDefault("github.baseBranch", d.GitHub.BaseBranch)
	v.SetDefault("linear.apiUrl", d.Linear.APIURL)
	v.SetDefault("linear.readyState", d.Linear.ReadyState)
	v.SetDefault("analysis.toolTimeoutSeconds", d.Analysis.ToolTimeoutSeconds)
	v.SetDefault("analysis.exclude", d.Analysis.Exclude)
	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.ttlSeconds", d.Cache.TTLSeconds)
	return v
}

// readFile loads the YAML config file on top of the defaults. A missing
// file is not an error.
func readFile(path string) (*viper.Viper, error) {
	v := newViper()
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return v, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return v, nil
}

// readDotEnv parses a KEY=value file. Keys are returned lowercased.
func readDotEnv(path string) (map[string]string, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	values := make(map[string]string, len(v.AllKeys()))
	for _, k := range v.AllKeys() {
		values[strings.ToLower(k)] = v.GetString(k)
	}
	return values, nil
}

func mergeEnv(v *viper.Viper, lookup func(string) string) {
	for _, b := range envBindings {
		val := lookup(b.env)
		if val == "" {
			continue
		}
		if b.key == "analysis.toolTimeoutSeconds" {
			if _, err := strconv.Atoi(val); err != nil {
				continue
			}
		}
		v.Set(b.key, val)
	}
}

func mergeOverrides(cfg *Config, overrides map[string]string) error {
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if overrides[k] == "" {
			continue
		}
		if err := SetField(cfg, k, overrides[k]); err != nil {
			return err
		}
	}
	return nil
}

// resolveProject points GitHub at the active project's repository, taken
// from <PROJECT>_GITHUB_REPO or the projects map.
func (c *Config) resolveProject(lookup func(string) string) {
	if c.ActiveProject == "" {
		return
	}
	name := strings.ToUpper(strings.ReplaceAll(c.ActiveProject, "-", "_"))
	if repo := lookup(name + "_GITHUB_REPO"); repo != "" {
		c.GitHub.Repo = repo
		return
	}
	if repo, ok := c.Projects[strings.ToLower(c.ActiveProject)]; ok && repo != "" {
		c.GitHub.Repo = repo
	}
}

var (
	validFormats = []string{"text", "json", "markdown", "sarif", "yaml"}
	validFailOn  = []string{"none", "warning", "blocking"}
)

// Validate validates the configuration values.
func (c Config) Validate() error {
	if !contains(validFormats, c.Format) {
		return fmt.Errorf("invalid format '%s', must be one of: %s", c.Format, strings.Join(validFormats, ", "))
	}
	if !contains(validFailOn, c.FailOn) {
		return fmt.Errorf("invalid failOn '%s', must be one of: %s", c.FailOn, strings.Join(validFailOn, ", "))
	}
	if c.MaxLocations < 0 {
		return fmt.Errorf("maxLocations must be >= 0, got %d", c.MaxLocations)
	}
	if c.Analysis.ToolTimeoutSeconds < 1 {
		return fmt.Errorf("analysis.toolTimeoutSeconds must be >= 1, got %d", c.Analysis.ToolTimeoutSeconds)
	}
	if c.Cache.TTLSeconds < 0 {
		return fmt.Errorf("cache.ttlSeconds must be >= 0, got %d", c.Cache.TTLSeconds)
	}
	if c.ActiveProject != "" && c.GitHub.Repo != "" && strings.Count(c.GitHub.Repo, "/") != 1 {
		return fmt.Errorf("repository for project %s must be owner/name, got %q", c.ActiveProject, c.GitHub.Repo)
	}
	return nil
}

// Keys lists every key accepted by SetField, excluding per-project entries.
func Keys() []string {
	return []string{
		"repoPath", "format", "failOn", "maxLocations",
		"github.token", "github.repo", "github.apiUrl", "github.baseBranch",
		"linear.apiKey", "linear.teamId", "linear.apiUrl", "linear.readyState",
		"analysis.security", "analysis.performance", "analysis.accessibility",
		"analysis.toolTimeoutSeconds", "analysis.include", "analysis.exclude",
		"cache.enabled", "cache.dir", "cache.ttlSeconds",
		"activeProject",
	}
}

// SetField sets a single config field by key name. Returns error if key is
// unknown. projects.<name> adds a project; an empty value removes it.
func SetField(cfg *Config, key, value string) error {
	if name, ok := strings.CutPrefix(key, "projects."); ok && name != "" {
		name = strings.ToLower(name)
		if value == "" {
			delete(cfg.Projects, name)
			return nil
		}
		if cfg.Projects == nil {
			cfg.Projects = make(map[string]string)
		}
		cfg.Projects[name] = value
		return nil
	}

	switch key {
	case "repoPath":
		cfg.RepoPath = value
	case "format":
		cfg.Format = value
	case "failOn":
		cfg.FailOn = value
	case "maxLocations":
		return setInt(&cfg.MaxLocations, key, value)
	case "github.token":
		cfg.GitHub.Token = value
	case "github.repo":
		cfg.GitHub.Repo = value
	case "github.apiUrl":
		cfg.GitHub.APIURL = value
	case "github.baseBranch":
		cfg.GitHub.BaseBranch = value
	case "linear.apiKey":
		cfg.Linear.APIKey = value
	case "linear.teamId":
		cfg.Linear.TeamID = value
	case "linear.apiUrl":
		cfg.Linear.APIURL = value
	case "linear.readyState":
		cfg.Linear.ReadyState = value
	case "analysis.security":
		return setBool(&cfg.Analysis.Security, key, value)
	case "analysis.performance":
		return setBool(&cfg.Analysis.Performance, key, value)
	case "analysis.accessibility":
		return setBool(&cfg.Analysis.Accessibility, key, value)
	case "analysis.toolTimeoutSeconds":
		return setInt(&cfg.Analysis.ToolTimeoutSeconds, key, value)
	case "analysis.include":
		cfg.Analysis.Include = splitList(value)
	case "analysis.exclude":
		cfg.Analysis.Exclude = splitList(value)
	case "cache.enabled":
		return setBool(&cfg.Cache.Enabled, key, value)
	case "cache.dir":
		cfg.Cache.Dir = value
	case "cache.ttlSeconds":
		return setInt(&cfg.Cache.TTLSeconds, key, value)
	case "activeProject":
		cfg.ActiveProject = value
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

func setInt(dst *int, key, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%s must be an integer: %w", key, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key, value string) error {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("%s must be true or false: %w", key, err)
	}
	*dst = b
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
