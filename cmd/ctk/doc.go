// Ctk is a pull-request toolkit that bridges an issue tracker and a source
// host and runs static pattern checks over the files a change touches.
//
// The checks cover four categories: code quality, security, performance and
// accessibility. Results are emitted as text, JSON, markdown, SARIF or YAML
// with deterministic exit codes suitable for CI gating and git hooks.
//
// Usage:
//
//	ctk review pr 42 --all             # review a GitHub pull request
//	ctk review staged --security       # review staged changes
//	ctk review files src/App.tsx       # review explicit paths
//	ctk linear list                    # list tasks ready for development
//	ctk github pr create --title ...   # open a pull request
package main
