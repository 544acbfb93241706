// Package cli wires together the Cobra command tree for the ctk binary.
//
// It defines the root command and all subcommands (review, github, linear,
// config, projects, cache, hook, version), binds flags, reads configuration,
// invokes the review engine and the GitHub and Linear clients, and returns
// deterministic exit codes for CI gating.
package cli
