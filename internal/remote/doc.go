// Package remote holds the retry loop and error types shared by the GitHub
// and Linear clients.
//
// [Do] retries a call with a fixed delay between attempts. Errors wrapped
// with [Permanent] stop the loop immediately; [CheckResponse] classifies an
// HTTP response so that authentication failures and client errors are
// permanent while rate limits and server errors are retried.
package remote
