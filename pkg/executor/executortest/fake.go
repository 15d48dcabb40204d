// Package executortest provides a scripted executor.Runner for tests.
package executortest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/denysvitali/megacmd-runtime-go/internal/models"
	"github.com/denysvitali/megacmd-runtime-go/pkg/executor"
)

// Call is one recorded invocation
type Call struct {
	Command string
	Args    []string
}

// String renders the call as "command arg1 arg2"
func (c Call) String() string {
	return strings.TrimSpace(c.Command + " " + strings.Join(c.Args, " "))
}

// HandlerFunc produces the outcome of a call
type HandlerFunc func(ctx context.Context, call Call) (*executor.Result, error)

// Runner records calls and delegates to a handler
type Runner struct {
	mu      sync.Mutex
	calls   []Call
	handler HandlerFunc
}

// New returns a Runner driven by h
func New(h HandlerFunc) *Runner {
	return &Runner{handler: h}
}

// Run implements executor.Runner
func (r *Runner) Run(ctx context.Context, command string, args []string, _ time.Duration) (*executor.Result, error) {
	if ctx.Err() != nil {
		return nil, &models.OpError{Kind: models.ErrCancelled, Op: command, Err: ctx.Err()}
	}
	call := Call{Command: command, Args: append([]string(nil), args...)}
	r.mu.Lock()
	r.calls = append(r.calls, call)
	h := r.handler
	r.mu.Unlock()
	if h == nil {
		return OK("")
	}
	return h(ctx, call)
}

// SetHandler swaps the handler
func (r *Runner) SetHandler(h HandlerFunc) {
	r.mu.Lock()
	r.handler = h
	r.mu.Unlock()
}

// Calls returns a copy of every recorded call
func (r *Runner) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Count returns how many calls used command
func (r *Runner) Count(command string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.Command == command {
			n++
		}
	}
	return n
}

// OK is a successful result with stdout
func OK(stdout string) (*executor.Result, error) {
	return &executor.Result{Stdout: stdout}, nil
}

// Fail is a non-zero exit with stderr
func Fail(code int, stderr string) (*executor.Result, error) {
	return &executor.Result{ExitCode: code, Stderr: stderr}, nil
}

// Block waits for release or ctx, mimicking a process killed on cancellation
func Block(ctx context.Context, release <-chan struct{}, command string) (*executor.Result, error) {
	select {
	case <-release:
		return OK("")
	case <-ctx.Done():
		return nil, &models.OpError{Kind: models.ErrCancelled, Op: command, Err: ctx.Err()}
	}
}
