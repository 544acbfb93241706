package execx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"
)

// DefaultTimeout bounds a single external tool invocation.
const DefaultTimeout = 30 * time.Second

// ErrUnavailable is returned when the requested executable cannot be run.
var ErrUnavailable = errors.New("tool unavailable")

// Output is the captured result of a finished process. A non-zero ExitCode
// is not an error: linters report findings through it.
type Output struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Runner executes external programs in a working directory.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) (Output, error)
	LookPath(file string) (string, error)
}

// OSRunner runs real subprocesses with a per-call timeout.
type OSRunner struct {
	Timeout time.Duration
}

func (r OSRunner) Run(ctx context.Context, dir, name string, args ...string) (Output, error) {
	if _, err := exec.LookPath(name); err != nil {
		return Output{}, fmt.Errorf("%s: %w", name, ErrUnavailable)
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.WaitDelay = time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if ctx.Err() != nil {
		return out, fmt.Errorf("%s %v: %w", name, args, ctx.Err())
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
			return out, nil
		}
		return out, fmt.Errorf("%s %v failed: %w", name, args, err)
	}
	return out, nil
}

func (OSRunner) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

// Unavailable is a Runner for environments without external tooling.
type Unavailable struct{}

func (Unavailable) Run(_ context.Context, _, name string, _ ...string) (Output, error) {
	return Output{}, fmt.Errorf("%s: %w", name, ErrUnavailable)
}

func (Unavailable) LookPath(file string) (string, error) {
	return "", fmt.Errorf("%s: %w", file, ErrUnavailable)
}

// Available reports whether name resolves through the runner's PATH lookup.
func Available(r Runner, name string) bool {
	_, err := r.LookPath(name)
	return err == nil
}

// Fake is a scripted Runner for tests. Responses are keyed by program name
// followed by its first argument, e.g. "npx prettier".
type Fake struct {
	Responses map[string]Output
	Errors    map[string]error

	mu    sync.Mutex
	calls [][]string
}

func (f *Fake) Run(_ context.Context, _, name string, args ...string) (Output, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{name}, args...))
	f.mu.Unlock()
	key := name
	if len(args) > 0 {
		key = name + " " + args[0]
	}
	if err, ok := f.Errors[key]; ok {
		return Output{}, err
	}
	return f.Responses[key], nil
}

func (f *Fake) LookPath(file string) (string, error) {
	return "/usr/bin/" + file, nil
}

// Calls returns the recorded invocations.
func (f *Fake) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.calls...)
}
