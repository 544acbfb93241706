package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dshills/ctk/internal/redact"
)

// maxBodyInError bounds how much of a response body is copied into an error.
const maxBodyInError = 512

// Policy controls the retry loop.
type Policy struct {
	Attempts int
	Delay    time.Duration
}

// DefaultPolicy retries three times with one second between attempts.
func DefaultPolicy() Policy {
	return Policy{Attempts: 3, Delay: time.Second}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err so that Do returns it without retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// AuthError reports rejected credentials.
type AuthError struct {
	Service string
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s authentication failed (status %d): %s", e.Service, e.Status, e.Message)
}

// StatusError reports an unexpected HTTP status.
type StatusError struct {
	Service string
	Status  int
	Body    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Service, e.Status, e.Body)
}

// IsAuthError checks if an error is an authentication error.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// StatusCode returns the HTTP status carried by err, or zero.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Status
	}
	return 0
}

// Do calls fn until it succeeds, returns a permanent error, the attempts
// are exhausted or ctx is done.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	if p.Attempts < 1 {
		p.Attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(lastErr, &perm) {
			return perm.err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if attempt < p.Attempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.Delay):
			}
		}
	}
	return lastErr
}

// CheckResponse maps a completed response to an error. 2xx is success.
// 401 and 403 become permanent AuthErrors; 408, 429 and 5xx are retryable
// StatusErrors; any other status is a permanent StatusError. The body is
// scrubbed of credentials and truncated before it is embedded.
func CheckResponse(service string, resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	msg := Snippet(body)
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Permanent(&AuthError{Service: service, Status: resp.StatusCode, Message: msg})
	case resp.StatusCode == http.StatusRequestTimeout ||
		resp.StatusCode == http.StatusTooManyRequests ||
		resp.StatusCode >= 500:
		return &StatusError{Service: service, Status: resp.StatusCode, Body: msg}
	default:
		return Permanent(&StatusError{Service: service, Status: resp.StatusCode, Body: msg})
	}
}

// Snippet returns a redacted, single-line prefix of body.
func Snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxBodyInError {
		s = s[:maxBodyInError] + "..."
	}
	return redact.Secrets(strings.Join(strings.Fields(s), " "))
}
