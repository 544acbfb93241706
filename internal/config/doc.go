// Package config loads and merges ctk configuration from multiple sources.
//
// Precedence (highest to lowest):
//  1. CLI flags (the overrides map passed to [Load])
//  2. Environment variables (GITHUB_TOKEN, LINEAR_API_KEY, CTK_FORMAT, etc.)
//  3. A .env file in the working directory
//  4. Config file ($XDG_CONFIG_HOME/ctk/config.yaml, or --config)
//  5. Built-in defaults
//
// TARGET_PROJECT (or activeProject) selects a named project whose GitHub
// repository is read from <PROJECT>_GITHUB_REPO or the projects map.
//
// Use [Load] to obtain a merged [Config], [LoadFile] plus [SetField] and
// [Save] to update a single key in the config file.
package config
