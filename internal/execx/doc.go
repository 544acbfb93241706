// Package execx runs external developer tools (formatters, linters, type
// checkers) as bounded subprocesses behind a small Runner interface.
package execx
