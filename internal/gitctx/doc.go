// Package gitctx lists the files a review should analyze.
//
// It supports the local review modes (unstaged, staged, commit, range and
// codebase) by shelling out to git for the names of changed or tracked
// files. Deleted files are never listed. Directories that are not git
// repositories are walked directly, honoring any .gitignore files found on
// the way. Every mode filters its result through include/exclude globs.
package gitctx
