package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/dshills/ctk/internal/config"
	"github.com/dshills/ctk/internal/execx"
)

// resetFlags resets all package-level flag variables to their defaults.
func resetFlags() {
	flagDebug = false
	flagConfig = ""
	flagPaths = ""
	flagExclude = ""
	flagSecurity = false
	flagPerformance = false
	flagAccessibility = false
	flagAll = false
	flagFix = false
	flagFormat = ""
	flagOut = ""
	flagRepoPath = ""
	flagFailOn = ""
	flagMaxLocations = 0
	flagRules = ""
	flagPost = false
	flagParent = ""
	flagMergeBase = true
	flagGHRepo = ""
	flagBranchBase = ""
	flagPRTitle = ""
	flagPRBody = ""
	flagPRHead = ""
	flagPRBase = ""
	flagPRDraft = false
	flagPRState = "open"
	flagPRLimit = 30
	flagFileFrom = ""
	flagFileMessage = ""
	flagFileBranch = ""
	flagLinearState = ""
	flagLinearJSON = false
	flagTaskTitle = ""
	flagTaskDescription = ""
	flagTaskState = ""
	flagTaskLabels = ""
	flagUpdateState = ""
	flagUpdateComment = ""
	flagProjectSet = ""
}

// isolate points config, cache and credentials at empty test locations and
// disables external tools.
func isolate(t *testing.T) {
	t.Helper()
	resetFlags()
	t.Cleanup(resetFlags)
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	for _, name := range []string{
		"GITHUB_TOKEN", "GITHUB_REPO", "GITHUB_API_URL",
		"LINEAR_API_KEY", "LINEAR_TEAM_ID", "LINEAR_API_URL", "TARGET_PROJECT",
		"CTK_FORMAT", "CTK_FAIL_ON", "CTK_REPO_PATH", "CTK_TOOL_TIMEOUT",
	} {
		t.Setenv(name, "")
	}

	orig := newRunner
	newRunner = func(config.Config) execx.Runner { return execx.Unavailable{} }
	t.Cleanup(func() { newRunner = orig })
}

func run(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = execute(context.Background(), args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// --- splitComma tests ---

func TestSplitComma(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty string", "", nil},
		{"single value", "foo", []string{"foo"}},
		{"multiple values", "a,b,c", []string{"a", "b", "c"}},
		{"whitespace trimmed", " a , b , c ", []string{"a", "b", "c"}},
		{"empty parts skipped", "a,,b", []string{"a", "b"}},
		{"all empty", ",,,", nil},
		{"glob patterns", "*.tsx,src/**/*.ts", []string{"*.tsx", "src/**/*.ts"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitComma(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("splitComma(%q) = %v, want %v", tt.input, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("splitComma(%q)[%d] = %q, want %q", tt.input, i, got[i], tt.want[i])
				}
			}
		})
	}
}

// --- buildOverrides tests ---

func TestBuildOverrides_NoFlags(t *testing.T) {
	resetFlags()
	if m := buildOverrides(); len(m) != 0 {
		t.Errorf("buildOverrides() with no flags = %v, want empty map", m)
	}
}

func TestBuildOverrides_AllFlags(t *testing.T) {
	resetFlags()
	defer resetFlags()
	flagFormat = "sarif"
	flagFailOn = "blocking"
	flagMaxLocations = 3
	flagRepoPath = "/work/app"
	flagGHRepo = "acme/app"

	m := buildOverrides()

	expected := map[string]string{
		"format":       "sarif",
		"failOn":       "blocking",
		"maxLocations": "3",
		"repoPath":     "/work/app",
		"github.repo":  "acme/app",
	}
	if len(m) != len(expected) {
		t.Fatalf("buildOverrides() returned %d entries, want %d", len(m), len(expected))
	}
	for k, v := range expected {
		if m[k] != v {
			t.Errorf("buildOverrides()[%q] = %q, want %q", k, m[k], v)
		}
	}
}

// --- buildGitOpts tests ---

func TestBuildGitOpts(t *testing.T) {
	resetFlags()
	defer resetFlags()
	cfg := config.Default()
	cfg.RepoPath = "/repo"
	cfg.Analysis.Include = []string{"src/**"}

	opts := buildGitOpts(cfg)
	if opts.Dir != "/repo" || len(opts.Include) != 1 || opts.Include[0] != "src/**" {
		t.Errorf("opts from config = %+v", opts)
	}

	flagPaths = "web/**, *.tsx"
	flagExclude = "**/*.test.ts"
	opts = buildGitOpts(cfg)
	if len(opts.Include) != 2 || opts.Include[0] != "web/**" {
		t.Errorf("--paths should replace include, got %v", opts.Include)
	}
	if got := opts.Exclude[len(opts.Exclude)-1]; got != "**/*.test.ts" {
		t.Errorf("--exclude should append, got %v", opts.Exclude)
	}
	if len(opts.Exclude) != len(cfg.Analysis.Exclude)+1 {
		t.Errorf("exclude = %v, want config excludes plus flag", opts.Exclude)
	}
}

func TestUpdateComment(t *testing.T) {
	tests := []struct {
		state, comment, want string
	}{
		{"Done", "", "Updated to Done"},
		{"Done", "Shipped", "Shipped"},
		{"", "Looks good", "Looks good"},
		{"", "", ""},
	}
	for _, tt := range tests {
		if got := updateComment(tt.state, tt.comment); got != tt.want {
			t.Errorf("updateComment(%q, %q) = %q, want %q", tt.state, tt.comment, got, tt.want)
		}
	}
}

func TestVersionCmd_Execute(t *testing.T) {
	isolate(t)
	code, out, _ := run(t, "version")
	if code != ExitSuccess {
		t.Fatalf("exit = %d", code)
	}
	if out != "ctk version "+version+"\n" {
		t.Errorf("output = %q", out)
	}
}

func TestUnknownCommand_IsUsageError(t *testing.T) {
	isolate(t)
	if code, _, _ := run(t, "frobnicate"); code != ExitUsageError {
		t.Errorf("exit = %d, want %d", code, ExitUsageError)
	}
}

// --- review tests ---

func TestReviewFiles_BlockingIssueFails(t *testing.T) {
	isolate(t)
	repo := t.TempDir()
	writeFile(t, repo, "src/app.ts", "export function f() {\n  console.log(\"debug\");\n}\n")

	code, out, errOut := run(t, "review", "files", "src/app.ts",
		"--repo-path", repo, "--format", "json", "--fail-on", "blocking")
	if code != ExitFindings {
		t.Fatalf("exit = %d, want %d; stderr: %s", code, ExitFindings, errOut)
	}

	var report struct {
		FilesChanged int `json:"files_changed"`
		Checks       map[string]struct {
			Status     string   `json:"status"`
			IssueCount int      `json:"issue_count"`
			Locations  []string `json:"locations"`
		} `json:"checks"`
		Summary struct {
			BlockingIssues int `json:"blocking_issues"`
		} `json:"summary"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	if report.FilesChanged != 1 {
		t.Errorf("files_changed = %d, want 1", report.FilesChanged)
	}
	logs := report.Checks["console_logs"]
	if logs.Status != "fail" || logs.IssueCount != 1 {
		t.Errorf("console_logs = %+v, want one failing issue", logs)
	}
	if len(logs.Locations) != 1 || logs.Locations[0] != "src/app.ts:line 2" {
		t.Errorf("locations = %v", logs.Locations)
	}
	if report.Summary.BlockingIssues != 1 {
		t.Errorf("blocking_issues = %d, want 1", report.Summary.BlockingIssues)
	}
}

func TestReviewFiles_FailOnNoneSucceeds(t *testing.T) {
	isolate(t)
	repo := t.TempDir()
	writeFile(t, repo, "src/app.ts", "console.log(1);\n")

	code, out, _ := run(t, "review", "files", "src/app.ts", "--repo-path", repo)
	if code != ExitSuccess {
		t.Fatalf("exit = %d, want %d", code, ExitSuccess)
	}
	if !strings.Contains(out, "Code Review Report") {
		t.Errorf("text report missing heading:\n%s", out)
	}
	if !strings.Contains(out, "Found 1 blocking issues that must be fixed before merging.") {
		t.Errorf("text report missing recommendation:\n%s", out)
	}
}

func TestReviewFiles_CleanPasses(t *testing.T) {
	isolate(t)
	repo := t.TempDir()
	writeFile(t, repo, "src/sum.ts", "export const sum = (a: number, b: number) => a + b;\n")

	code, out, _ := run(t, "review", "files", "src/sum.ts", "--repo-path", repo, "--fail-on", "warning", "--all")
	if code != ExitSuccess {
		t.Fatalf("exit = %d, want %d\n%s", code, ExitSuccess, out)
	}
	if !strings.Contains(out, "All checks passed. Ready to merge!") {
		t.Errorf("missing pass verdict:\n%s", out)
	}
	for _, title := range []string{"Security", "Performance", "Accessibility"} {
		if !strings.Contains(out, title) {
			t.Errorf("--all should include %s section", title)
		}
	}
}

func TestReviewFiles_WritesOutFile(t *testing.T) {
	isolate(t)
	repo := t.TempDir()
	writeFile(t, repo, "app.js", "const x = 1;\n")
	outPath := filepath.Join(t.TempDir(), "report.md")

	code, out, _ := run(t, "review", "files", "app.js", "--repo-path", repo, "--format", "markdown", "--out", outPath)
	if code != ExitSuccess {
		t.Fatalf("exit = %d", code)
	}
	if out != "" {
		t.Errorf("stdout should be empty with --out, got %q", out)
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "## Code Review Report") {
		t.Errorf("markdown report = %q", data)
	}
}

func TestReviewFiles_InvalidFormatIsUsageError(t *testing.T) {
	isolate(t)
	code, _, _ := run(t, "review", "files", "a.ts", "--format", "xml")
	if code != ExitUsageError {
		t.Errorf("exit = %d, want %d", code, ExitUsageError)
	}
}

func TestReviewFiles_MissingRulesFileIsUsageError(t *testing.T) {
	isolate(t)
	repo := t.TempDir()
	writeFile(t, repo, "a.ts", "const a = 1;\n")
	code, _, errOut := run(t, "review", "files", "a.ts", "--repo-path", repo,
		"--rules", filepath.Join(repo, "missing.yaml"))
	if code != ExitUsageError {
		t.Errorf("exit = %d, want %d (%s)", code, ExitUsageError, errOut)
	}
}

func TestReviewFiles_RulesDowngradeBlocking(t *testing.T) {
	isolate(t)
	repo := t.TempDir()
	writeFile(t, repo, "src/app.ts", "console.log(1);\n")
	writeFile(t, repo, "rules.yaml", "severityOverrides:\n  console_logs: warning\n")

	code, _, errOut := run(t, "review", "files", "src/app.ts", "--repo-path", repo,
		"--fail-on", "blocking", "--rules", filepath.Join(repo, "rules.yaml"))
	if code != ExitSuccess {
		t.Errorf("exit = %d, want %d (%s)", code, ExitSuccess, errOut)
	}
}

func TestReviewPR_InvalidNumber(t *testing.T) {
	isolate(t)
	if code, _, _ := run(t, "review", "pr", "abc"); code != ExitUsageError {
		t.Errorf("exit = %d, want %d", code, ExitUsageError)
	}
}

func TestReviewPR_MissingTokenIsAuthError(t *testing.T) {
	isolate(t)
	t.Setenv("GITHUB_REPO", "acme/app")
	code, _, errOut := run(t, "review", "pr", "7")
	if code != ExitAuthError {
		t.Errorf("exit = %d, want %d (%s)", code, ExitAuthError, errOut)
	}
}

// fakeGitHub serves the endpoints the review and github commands use.
type fakeGitHub struct {
	mu      sync.Mutex
	reviews []string
	status  int
}

func (f *fakeGitHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if f.status != 0 {
		w.WriteHeader(f.status)
		_, _ = io.WriteString(w, `{"message":"Bad credentials"}`)
		return
	}
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/repos/acme/app/pulls/7/files":
		_, _ = io.WriteString(w, `[{"filename":"src/app.ts","status":"modified"},{"filename":"old.ts","status":"removed"}]`)
	case r.Method == http.MethodPost && r.URL.Path == "/repos/acme/app/pulls/7/reviews":
		var req struct {
			Body  string `json:"body"`
			Event string `json:"event"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.reviews = append(f.reviews, req.Body)
		f.mu.Unlock()
		_, _ = io.WriteString(w, `{"id":1}`)
	case r.Method == http.MethodGet && r.URL.Path == "/repos/acme/app/pulls":
		_, _ = io.WriteString(w, `[{"number":12,"title":"Add login","draft":true,"head":{"ref":"feat/login"},"base":{"ref":"main"},"user":{"login":"dev"}}]`)
	default:
		http.NotFound(w, r)
	}
}

func githubEnv(t *testing.T, h http.Handler) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	t.Setenv("GITHUB_TOKEN", "test-token")
	t.Setenv("GITHUB_API_URL", srv.URL)
	t.Setenv("GITHUB_REPO", "acme/app")
}

func TestReviewPR_PostsMarkdownReview(t *testing.T) {
	isolate(t)
	gh := &fakeGitHub{}
	githubEnv(t, gh)
	repo := t.TempDir()
	writeFile(t, repo, "src/app.ts", "console.log(1);\n")

	code, out, errOut := run(t, "review", "pr", "7", "--repo-path", repo, "--post", "--fail-on", "blocking")
	if code != ExitFindings {
		t.Fatalf("exit = %d, want %d (%s)", code, ExitFindings, errOut)
	}
	if !strings.Contains(out, "PR #7") {
		t.Errorf("report should name the PR:\n%s", out)
	}
	if len(gh.reviews) != 1 {
		t.Fatalf("reviews posted = %d, want 1", len(gh.reviews))
	}
	if !strings.Contains(gh.reviews[0], "## Code Review Report") || !strings.Contains(gh.reviews[0], "console_logs") {
		t.Errorf("posted body = %q", gh.reviews[0])
	}
	if !strings.Contains(errOut, "Review posted to PR #7.") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestReviewPR_NoPostByDefault(t *testing.T) {
	isolate(t)
	gh := &fakeGitHub{}
	githubEnv(t, gh)

	code, _, errOut := run(t, "review", "pr", "7", "--repo-path", t.TempDir())
	if code != ExitSuccess {
		t.Fatalf("exit = %d (%s)", code, errOut)
	}
	if len(gh.reviews) != 0 {
		t.Errorf("review should not be posted without --post")
	}
}

// --- github tests ---

func TestGitHubPRList(t *testing.T) {
	isolate(t)
	githubEnv(t, &fakeGitHub{})

	code, out, errOut := run(t, "github", "pr", "list")
	if code != ExitSuccess {
		t.Fatalf("exit = %d (%s)", code, errOut)
	}
	want := "#12    Add login [draft] (feat/login -> main) @dev\n"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestGitHubRejectedTokenIsAuthError(t *testing.T) {
	isolate(t)
	githubEnv(t, &fakeGitHub{status: http.StatusUnauthorized})

	code, _, errOut := run(t, "github", "pr", "list")
	if code != ExitAuthError {
		t.Errorf("exit = %d, want %d (%s)", code, ExitAuthError, errOut)
	}
}

func TestGitHubPRCreate_RequiresTitle(t *testing.T) {
	isolate(t)
	if code, _, _ := run(t, "github", "pr", "create"); code != ExitUsageError {
		t.Errorf("exit = %d, want %d", code, ExitUsageError)
	}
}

func TestGitHubFilePut_RequiresFrom(t *testing.T) {
	isolate(t)
	if code, _, _ := run(t, "github", "file", "put", "docs/a.md"); code != ExitUsageError {
		t.Errorf("exit = %d, want %d", code, ExitUsageError)
	}
}

// --- linear tests ---

func TestLinearUpdate_RequiresStateOrComment(t *testing.T) {
	isolate(t)
	if code, _, _ := run(t, "linear", "update", "ENG-1"); code != ExitUsageError {
		t.Errorf("exit = %d, want %d", code, ExitUsageError)
	}
}

func TestLinear_MissingKeyIsAuthError(t *testing.T) {
	isolate(t)
	if code, _, _ := run(t, "linear", "list"); code != ExitAuthError {
		t.Errorf("exit = %d, want %d", code, ExitAuthError)
	}
}

func TestLinearUpdate_StateOnlyAddsComment(t *testing.T) {
	isolate(t)
	var mu sync.Mutex
	var comments []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		switch {
		case strings.Contains(req.Query, "workflowStates("):
			_, _ = io.WriteString(w, `{"data":{"workflowStates":{"nodes":[{"id":"st-done","name":"Done"}]}}}`)
		case strings.Contains(req.Query, "issueUpdate("):
			_, _ = io.WriteString(w, `{"data":{"issueUpdate":{"success":true}}}`)
		case strings.Contains(req.Query, "commentCreate("):
			mu.Lock()
			comments = append(comments, req.Variables["body"].(string))
			mu.Unlock()
			_, _ = io.WriteString(w, `{"data":{"commentCreate":{"success":true}}}`)
		default:
			_, _ = io.WriteString(w, `{"errors":[{"message":"unexpected query"}]}`)
		}
	}))
	defer srv.Close()
	t.Setenv("LINEAR_API_KEY", "lin_test")
	t.Setenv("LINEAR_TEAM_ID", "team-1")
	t.Setenv("LINEAR_API_URL", srv.URL)

	code, out, errOut := run(t, "linear", "update", "ENG-1", "--state", "Done")
	if code != ExitSuccess {
		t.Fatalf("exit = %d (%s)", code, errOut)
	}
	if out != "Updated ENG-1\n" {
		t.Errorf("output = %q", out)
	}
	if len(comments) != 1 || comments[0] != "🤖 Updated to Done" {
		t.Errorf("comments = %q", comments)
	}
}

// --- config tests ---

func TestConfigInit_CreatesFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.yaml")

	code, out, _ := run(t, "config", "init", "--config", path)
	if code != ExitSuccess {
		t.Fatalf("exit = %d", code)
	}
	if !strings.Contains(out, path) {
		t.Errorf("output = %q", out)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not created: %v", err)
	}

	_, _, errOut := run(t, "config", "init", "--config", path)
	if !strings.Contains(errOut, "already exists") {
		t.Errorf("second init should report existing file, got %q", errOut)
	}
}

func TestConfigSetAndShow_MasksSecrets(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.yaml")

	code, out, _ := run(t, "config", "set", "github.token", "ghp_abcdefghijklmnop1234", "--config", path)
	if code != ExitSuccess {
		t.Fatalf("exit = %d", code)
	}
	if strings.Contains(out, "ghp_abcdefghijklmnop1234") {
		t.Errorf("set echoed the secret: %q", out)
	}

	if code, _, _ := run(t, "config", "set", "format", "yaml", "--config", path); code != ExitSuccess {
		t.Fatalf("exit = %d", code)
	}

	code, out, _ = run(t, "config", "show", "--config", path)
	if code != ExitSuccess {
		t.Fatalf("exit = %d", code)
	}
	var shown config.Config
	if err := json.Unmarshal([]byte(out), &shown); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if shown.GitHub.Token != "********1234" {
		t.Errorf("token = %q, want masked", shown.GitHub.Token)
	}
	if shown.Format != "yaml" {
		t.Errorf("format = %q, want yaml", shown.Format)
	}
}

func TestConfigSet_InvalidKey(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if code, _, _ := run(t, "config", "set", "nonexistent", "x", "--config", path); code != ExitUsageError {
		t.Errorf("exit = %d, want %d", code, ExitUsageError)
	}
}

func TestConfigSet_InvalidValue(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if code, _, _ := run(t, "config", "set", "failOn", "sometimes", "--config", path); code != ExitUsageError {
		t.Errorf("exit = %d, want %d", code, ExitUsageError)
	}
	if _, err := os.Stat(path); err == nil {
		t.Error("invalid value should not be saved")
	}
}

func TestProjects(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.yaml")

	_, out, _ := run(t, "projects", "--config", path)
	if !strings.Contains(out, "No projects configured") {
		t.Errorf("output = %q", out)
	}

	for _, kv := range [][2]string{{"projects.web", "acme/web"}, {"projects.api", "acme/api"}} {
		if code, _, _ := run(t, "config", "set", kv[0], kv[1], "--config", path); code != ExitSuccess {
			t.Fatalf("set %s: exit = %d", kv[0], code)
		}
	}

	code, out, _ := run(t, "projects", "--set", "web", "--config", path)
	if code != ExitSuccess || !strings.Contains(out, "Active project: web (acme/web)") {
		t.Fatalf("exit = %d, output = %q", code, out)
	}

	resetFlags()
	_, out, _ = run(t, "projects", "--config", path)
	want := "  api                  acme/api\n* web                  acme/web\n"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}

	resetFlags()
	if code, _, _ := run(t, "projects", "--set", "mobile", "--config", path); code != ExitUsageError {
		t.Errorf("unknown project exit = %d, want %d", code, ExitUsageError)
	}
}

// --- cache tests ---

func TestCacheShowAndClear(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", dir)
	writeFile(t, dir, "ctk/abc.json", `{"key":"k","kind":"linear-states","value":{},"createdAt":"2026-01-01T00:00:00Z","ttl":0}`)

	code, out, _ := run(t, "cache", "show")
	if code != ExitSuccess {
		t.Fatalf("exit = %d", code)
	}
	if !strings.Contains(out, `"entries": 1`) {
		t.Errorf("stats = %s", out)
	}

	code, out, _ = run(t, "cache", "clear")
	if code != ExitSuccess || out != "Cache cleared (1 entries removed).\n" {
		t.Errorf("exit = %d, output = %q", code, out)
	}
}
