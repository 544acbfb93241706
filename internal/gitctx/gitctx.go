package gitctx

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// maxFileBytes is the per-file size limit for codebase review.
const maxFileBytes = 1 << 20 // 1MB

// Options controls where files are listed and how they are filtered.
type Options struct {
	// Dir is the working directory for git; empty means the process cwd.
	Dir     string
	Include []string
	Exclude []string
}

// Result holds the listed files and how they were gathered.
type Result struct {
	Files []string
	Mode  string
	Range string
	Repo  RepoMeta
}

// RepoMeta contains git repository metadata.
type RepoMeta struct {
	Root   string
	Head   string
	Branch string
}

// GetRepoMeta collects repository metadata from git.
func GetRepoMeta(dir string) (RepoMeta, error) {
	root, err := gitOutput(dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return RepoMeta{}, fmt.Errorf("not a git repository: %w", err)
	}
	head, err := gitOutput(dir, "rev-parse", "HEAD")
	if err != nil {
		head = "" // new repo with no commits
	}
	branch, err := gitOutput(dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		branch = ""
	}
	return RepoMeta{
		Root:   strings.TrimSpace(root),
		Head:   strings.TrimSpace(head),
		Branch: strings.TrimSpace(branch),
	}, nil
}

// Unstaged returns files modified in the working tree but not staged,
// plus untracked files that are not ignored.
func Unstaged(opts Options) (Result, error) {
	out, err := gitOutput(opts.Dir, "diff", "--name-only", "--diff-filter=d")
	if err != nil {
		return Result{}, fmt.Errorf("git diff: %w", err)
	}
	untracked, err := gitOutput(opts.Dir, "ls-files", "--others", "--exclude-standard")
	if err != nil {
		return Result{}, fmt.Errorf("git ls-files --others: %w", err)
	}
	return buildResult(out+"\n"+untracked, "unstaged", "", opts), nil
}

// Staged returns files changed in the index relative to HEAD.
func Staged(opts Options) (Result, error) {
	out, err := gitOutput(opts.Dir, "diff", "--cached", "--name-only", "--diff-filter=d")
	if err != nil {
		return Result{}, fmt.Errorf("git diff --cached: %w", err)
	}
	return buildResult(out, "staged", "", opts), nil
}

// Commit returns files changed by a commit relative to parent, or to its
// first parent when parent is empty.
func Commit(sha, parent string, opts Options) (Result, error) {
	if parent != "" {
		out, err := gitOutput(opts.Dir, "diff", "--name-only", "--diff-filter=d", parent, sha)
		if err != nil {
			return Result{}, fmt.Errorf("git diff %s %s: %w", parent, sha, err)
		}
		return buildResult(out, "commit", sha, opts), nil
	}
	out, err := gitOutput(opts.Dir, "diff", "--name-only", "--diff-filter=d", sha+"~1", sha)
	if err != nil {
		// Might be initial commit, list its tree instead
		out, err = gitOutput(opts.Dir, "diff-tree", "--root", "--no-commit-id", "--name-only", "-r", "--diff-filter=d", sha)
		if err != nil {
			return Result{}, fmt.Errorf("git diff-tree %s: %w", sha, err)
		}
	}
	return buildResult(out, "commit", sha, opts), nil
}

// Range returns files changed across a revision range. With mergeBase, a
// two-dot range is compared from the merge base.
func Range(revRange string, mergeBase bool, opts Options) (Result, error) {
	diffRange := revRange
	if mergeBase && strings.Contains(revRange, "..") && !strings.Contains(revRange, "...") {
		diffRange = strings.Replace(revRange, "..", "...", 1)
	}
	out, err := gitOutput(opts.Dir, "diff", "--name-only", "--diff-filter=d", diffRange)
	if err != nil {
		return Result{}, fmt.Errorf("git diff %s: %w", revRange, err)
	}
	return buildResult(out, "range", revRange, opts), nil
}

// Codebase returns every tracked file. Outside a git repository the
// directory is walked instead.
func Codebase(opts Options) (Result, error) {
	out, err := gitOutput(opts.Dir, "ls-files")
	if err != nil {
		root := opts.Dir
		if root == "" {
			root = "."
		}
		files, werr := Walk(root, opts)
		if werr != nil {
			return Result{}, werr
		}
		return Result{Files: files, Mode: "codebase"}, nil
	}
	res := buildResult(out, "codebase", "", opts)
	res.Files = dropOversized(opts.Dir, res.Files)
	return res, nil
}

// Filter applies include and exclude globs, drops duplicates and sorts.
// An empty include list keeps every file.
func Filter(files, include, exclude []string) []string {
	seen := make(map[string]bool, len(files))
	var result []string
	for _, f := range files {
		f = filepath.ToSlash(strings.TrimSpace(f))
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		if len(include) > 0 && !MatchesAny(f, include) {
			continue
		}
		if MatchesAny(f, exclude) {
			continue
		}
		result = append(result, f)
	}
	sort.Strings(result)
	return result
}

// MatchesAny returns true if the path matches any of the given glob
// patterns. "**" matches any number of directories, and a pattern without
// a slash is also tried against the base name.
func MatchesAny(p string, patterns []string) bool {
	p = filepath.ToSlash(p)
	for _, pattern := range patterns {
		if matchGlob(pattern, p) {
			return true
		}
		if !strings.Contains(pattern, "/") {
			if ok, _ := path.Match(pattern, path.Base(p)); ok {
				return true
			}
		}
	}
	return false
}

func matchGlob(pattern, name string) bool {
	pp := strings.Split(pattern, "/")
	np := strings.Split(name, "/")
	return matchParts(pp, np)
}

func matchParts(pp, np []string) bool {
	for len(pp) > 0 {
		if pp[0] == "**" {
			rest := pp[1:]
			if len(rest) == 0 {
				return true
			}
			for i := 0; i <= len(np); i++ {
				if matchParts(rest, np[i:]) {
					return true
				}
			}
			return false
		}
		if len(np) == 0 {
			return false
		}
		if ok, err := path.Match(pp[0], np[0]); err != nil || !ok {
			return false
		}
		pp, np = pp[1:], np[1:]
	}
	return len(np) == 0
}

type ignoreScope struct {
	dir     string
	matcher *ignore.GitIgnore
}

// Walk lists the regular files below root, relative to root, skipping the
// .git directory, anything matched by a .gitignore in root or one of its
// subdirectories, and files over 1MB.
func Walk(root string, opts Options) ([]string, error) {
	var scopes []ignoreScope
	var files []string

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root {
				return err
			}
			return nil
		}
		rel, rerr := filepath.Rel(root, p)
		if rerr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			if rel != "." && ignored(scopes, rel, true) {
				return filepath.SkipDir
			}
			if gi, gerr := ignore.CompileIgnoreFile(filepath.Join(p, ".gitignore")); gerr == nil {
				scopes = append(scopes, ignoreScope{dir: rel, matcher: gi})
			}
			return nil
		}

		if !d.Type().IsRegular() || ignored(scopes, rel, false) {
			return nil
		}
		if info, ierr := d.Info(); ierr != nil || info.Size() > maxFileBytes {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	return Filter(files, opts.Include, opts.Exclude), nil
}

// ignored reports whether rel is matched by a .gitignore whose directory
// contains it.
func ignored(scopes []ignoreScope, rel string, dir bool) bool {
	for _, s := range scopes {
		sub := rel
		if s.dir != "." {
			var ok bool
			sub, ok = strings.CutPrefix(rel, s.dir+"/")
			if !ok {
				continue
			}
		}
		if s.matcher.MatchesPath(sub) || (dir && s.matcher.MatchesPath(sub+"/")) {
			return true
		}
	}
	return false
}

func buildResult(out, mode, rangeStr string, opts Options) Result {
	meta, err := GetRepoMeta(opts.Dir)
	if err != nil {
		meta = RepoMeta{}
	}
	return Result{
		Files: Filter(strings.Split(out, "\n"), opts.Include, opts.Exclude),
		Mode:  mode,
		Range: rangeStr,
		Repo:  meta,
	}
}

func dropOversized(dir string, files []string) []string {
	var kept []string
	for _, f := range files {
		info, err := os.Stat(filepath.Join(dir, filepath.FromSlash(f)))
		if err != nil || info.Size() > maxFileBytes {
			continue
		}
		kept = append(kept, f)
	}
	return kept
}

func gitOutput(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return string(out), fmt.Errorf("%s: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", err
	}
	return string(out), nil
}
