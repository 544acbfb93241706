package gitctx

import (
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestMatchesAny(t *testing.T) {
	tests := []struct {
		path     string
		patterns []string
		want     bool
	}{
		{"vendor/lib.ts", []string{"vendor/**"}, true},
		{"main.ts", []string{"vendor/**"}, false},
		{"foo.gen.ts", []string{"**/*.gen.ts"}, true},
		{"pkg/foo.gen.ts", []string{"**/*.gen.ts"}, true},
		{"dist/bundle.js", []string{"**/dist/**"}, true},
		{"web/dist/bundle.js", []string{"**/dist/**"}, true},
		{"src/app.tsx", []string{"*.tsx"}, true},
		{"src/app.tsx", []string{"src/*.ts"}, false},
		{"node_modules/react/index.js", []string{"node_modules"}, false},
		{"node_modules", []string{"node_modules"}, true},
		{"main.ts", nil, false},
	}
	for _, tt := range tests {
		got := MatchesAny(tt.path, tt.patterns)
		if got != tt.want {
			t.Errorf("MatchesAny(%q, %v) = %v, want %v", tt.path, tt.patterns, got, tt.want)
		}
	}
}

func TestFilter(t *testing.T) {
	files := []string{"src/b.ts", "", "vendor/lib.ts", "src/a.ts", "src/b.ts", "dist/bundle.js", "README.md"}

	got := Filter(files, nil, []string{"vendor/**", "**/dist/**"})
	want := []string{"README.md", "src/a.ts", "src/b.ts"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Filter exclude = %v, want %v", got, want)
	}

	got = Filter(files, []string{"src/**"}, nil)
	want = []string{"src/a.ts", "src/b.ts"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Filter include = %v, want %v", got, want)
	}
}

func TestFilter_Empty(t *testing.T) {
	if got := Filter(nil, nil, []string{"vendor/**"}); len(got) != 0 {
		t.Errorf("Filter nil input got %d, want 0", len(got))
	}
}

// setupTestRepo creates a temp git repo with some tracked files and returns
// the path.
func setupTestRepo(t *testing.T) (string, func(args ...string)) {
	t.Helper()
	dir := t.TempDir()

	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command(args[0], args[1:]...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test",
			"GIT_AUTHOR_EMAIL=test@test.com",
			"GIT_COMMITTER_NAME=test",
			"GIT_COMMITTER_EMAIL=test@test.com",
		)
		out, err := cmd.CombinedOutput()
		if err != nil {
			t.Fatalf("command %v failed: %v\n%s", args, err, out)
		}
	}

	run("git", "init")
	run("git", "checkout", "-b", "main")

	writeFile(t, dir, "src/app.ts", "export const app = 1;\n")
	writeFile(t, dir, "src/util.ts", "export const util = 2;\n")
	writeFile(t, dir, "vendor/lib.js", "module.exports = {};\n")

	run("git", "add", "-A")
	run("git", "commit", "-m", "init")

	return dir, run
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestUnstaged(t *testing.T) {
	dir, _ := setupTestRepo(t)
	writeFile(t, dir, "src/app.ts", "export const app = 3;\n")
	writeFile(t, dir, "src/new.ts", "export const fresh = true;\n")
	if err := os.Remove(filepath.Join(dir, "src", "util.ts")); err != nil {
		t.Fatal(err)
	}

	res, err := Unstaged(Options{Dir: dir})
	if err != nil {
		t.Fatalf("Unstaged error: %v", err)
	}
	want := []string{"src/app.ts", "src/new.ts"}
	if !reflect.DeepEqual(res.Files, want) {
		t.Errorf("Files = %v, want %v", res.Files, want)
	}
	if res.Mode != "unstaged" {
		t.Errorf("Mode = %q, want %q", res.Mode, "unstaged")
	}
	if res.Repo.Branch != "main" {
		t.Errorf("Branch = %q, want %q", res.Repo.Branch, "main")
	}
}

func TestStaged(t *testing.T) {
	dir, run := setupTestRepo(t)
	writeFile(t, dir, "src/app.ts", "export const app = 3;\n")
	writeFile(t, dir, "src/util.ts", "export const util = 4;\n")
	run("git", "add", "src/app.ts")

	res, err := Staged(Options{Dir: dir})
	if err != nil {
		t.Fatalf("Staged error: %v", err)
	}
	if !reflect.DeepEqual(res.Files, []string{"src/app.ts"}) {
		t.Errorf("Files = %v, want [src/app.ts]", res.Files)
	}
}

func TestCommit(t *testing.T) {
	dir, run := setupTestRepo(t)
	writeFile(t, dir, "src/util.ts", "export const util = 5;\n")
	run("git", "commit", "-am", "second")

	res, err := Commit("HEAD", "", Options{Dir: dir})
	if err != nil {
		t.Fatalf("Commit error: %v", err)
	}
	if !reflect.DeepEqual(res.Files, []string{"src/util.ts"}) {
		t.Errorf("Files = %v, want [src/util.ts]", res.Files)
	}
	if res.Range != "HEAD" {
		t.Errorf("Range = %q, want HEAD", res.Range)
	}
}

func TestCommit_Root(t *testing.T) {
	dir, _ := setupTestRepo(t)

	res, err := Commit("HEAD", "", Options{Dir: dir, Exclude: []string{"vendor/**"}})
	if err != nil {
		t.Fatalf("Commit error: %v", err)
	}
	want := []string{"src/app.ts", "src/util.ts"}
	if !reflect.DeepEqual(res.Files, want) {
		t.Errorf("Files = %v, want %v", res.Files, want)
	}
}

func TestRange(t *testing.T) {
	dir, run := setupTestRepo(t)
	run("git", "checkout", "-b", "feature")
	writeFile(t, dir, "src/feature.ts", "export const f = 1;\n")
	run("git", "add", "-A")
	run("git", "commit", "-m", "feature")

	for _, mergeBase := range []bool{false, true} {
		res, err := Range("main..feature", mergeBase, Options{Dir: dir})
		if err != nil {
			t.Fatalf("Range(mergeBase=%v) error: %v", mergeBase, err)
		}
		if !reflect.DeepEqual(res.Files, []string{"src/feature.ts"}) {
			t.Errorf("Range(mergeBase=%v) Files = %v", mergeBase, res.Files)
		}
	}
}

func TestRange_BadRevision(t *testing.T) {
	dir, _ := setupTestRepo(t)
	if _, err := Range("nope..alsonope", false, Options{Dir: dir}); err == nil {
		t.Error("expected error for unknown revisions")
	}
}

func TestCodebase(t *testing.T) {
	dir, _ := setupTestRepo(t)
	writeFile(t, dir, "src/untracked.ts", "x\n")

	res, err := Codebase(Options{Dir: dir, Exclude: []string{"vendor/**"}})
	if err != nil {
		t.Fatalf("Codebase error: %v", err)
	}
	want := []string{"src/app.ts", "src/util.ts"}
	if !reflect.DeepEqual(res.Files, want) {
		t.Errorf("Files = %v, want %v", res.Files, want)
	}
}

func TestCodebase_WithInclude(t *testing.T) {
	dir, _ := setupTestRepo(t)

	res, err := Codebase(Options{Dir: dir, Include: []string{"*.js"}})
	if err != nil {
		t.Fatalf("Codebase error: %v", err)
	}
	for _, f := range res.Files {
		if !strings.HasSuffix(f, ".js") {
			t.Errorf("include filter failed: got %q", f)
		}
	}
	if len(res.Files) != 1 {
		t.Errorf("got %v, want only vendor/lib.js", res.Files)
	}
}

func TestWalk_HonorsGitignore(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".gitignore", "node_modules/\n*.log\n")
	writeFile(t, dir, "src/app.tsx", "x\n")
	writeFile(t, dir, "src/debug.log", "x\n")
	writeFile(t, dir, "node_modules/react/index.js", "x\n")
	writeFile(t, dir, "web/.gitignore", "generated.ts\n")
	writeFile(t, dir, "web/generated.ts", "x\n")
	writeFile(t, dir, "web/page.tsx", "x\n")
	writeFile(t, dir, ".git/HEAD", "ref: refs/heads/main\n")

	files, err := Walk(dir, Options{})
	if err != nil {
		t.Fatalf("Walk error: %v", err)
	}
	want := []string{".gitignore", "src/app.tsx", "web/.gitignore", "web/page.tsx"}
	if !reflect.DeepEqual(files, want) {
		t.Errorf("Walk = %v, want %v", files, want)
	}
}

func TestWalk_SkipsLargeFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "small.ts", "x\n")
	writeFile(t, dir, "huge.js", strings.Repeat("a", maxFileBytes+1))

	files, err := Walk(dir, Options{})
	if err != nil {
		t.Fatalf("Walk error: %v", err)
	}
	if !reflect.DeepEqual(files, []string{"small.ts"}) {
		t.Errorf("Walk = %v, want [small.ts]", files)
	}
}

func TestWalk_MissingRoot(t *testing.T) {
	if _, err := Walk(filepath.Join(t.TempDir(), "missing"), Options{}); err == nil {
		t.Error("expected error for missing root")
	}
}

func TestGetRepoMeta_NotARepo(t *testing.T) {
	if _, err := GetRepoMeta(t.TempDir()); err == nil {
		t.Error("expected error outside a git repository")
	}
}
