// Package github is a small GitHub REST API client for pull-request review.
//
// It fetches the files changed by a pull request, creates branches, pull
// requests and file commits, and posts a rendered review report as a PR
// review comment. Requests are retried with a fixed delay through
// internal/remote; rejected credentials and client errors are not retried.
// The repository can be detected from the local git remote.
package github
