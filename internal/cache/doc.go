// Package cache provides a file-based cache for issue-tracker metadata.
//
// The Linear client resolves workflow-state and label names to IDs before
// it can create or move an issue. Those lookups change rarely, so the
// resolved maps are stored here keyed by a SHA-256 hash of the lookup kind,
// team and API endpoint. Each entry stores the JSON-encoded value with a
// creation timestamp and a TTL (in seconds). Expired entries are skipped on
// read and removed during cache-clear operations.
//
// The default cache directory is $XDG_CACHE_HOME/ctk (or the OS-appropriate
// equivalent). No credentials are ever written to the cache.
package cache
