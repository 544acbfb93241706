// Package redact scrubs credentials from text that leaves the process.
//
// Error bodies returned by the GitHub and Linear APIs are passed through
// [Secrets] before they are wrapped into errors or logged, and [Mask] hides
// configured tokens when the effective configuration is printed.
//
// Detection uses regex heuristics covering common credential shapes: GitHub
// and Linear tokens, bearer authorization values, JWTs, AWS access keys,
// Slack tokens, private key blocks and generic secret assignments.
package redact
