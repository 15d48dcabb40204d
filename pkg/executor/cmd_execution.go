package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/denysvitali/megacmd-runtime-go/internal/models"
	"github.com/denysvitali/megacmd-runtime-go/pkg/metrics"
)

// Run executes prefix+command with args. A zero timeout uses the configured default.
//
// A process that exits non-zero is not an error here: the Result carries the
// exit code and stderr for the caller to classify. Errors are returned only
// when no complete result exists: the executable is missing, the deadline
// fired, or ctx was cancelled.
func (e *Executor) Run(ctx context.Context, command string, args []string, timeout time.Duration) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "megacmd."+command)
	defer span.End()

	span.SetAttributes(
		attribute.String("command", command),
		attribute.StringSlice("args", args),
	)

	if timeout <= 0 {
		timeout = e.cfg.Timeout
	}

	binary, err := e.resolve(command)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "tool not found")
		metrics.RecordInvocation(command, string(models.ErrToolNotFound), 0)
		return nil, err
	}

	if ctx.Err() != nil {
		return nil, &models.OpError{Kind: models.ErrCancelled, Op: command, Err: ctx.Err()}
	}

	e.mu.Lock()
	e.lastRun = time.Now()
	e.mu.Unlock()

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, binary, args...)
	// Kill may leave grandchildren holding the pipes open
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.logger.WithFields(logrus.Fields{
		"command": command,
		"args":    strings.Join(args, " "),
	}).Debug("Running tool command")

	start := time.Now()
	err = cmd.Run()
	elapsed := time.Since(start)

	if err != nil && execCtx.Err() != nil {
		opErr := e.classifyAbort(ctx, command, args, timeout, stderr.String())
		span.RecordError(opErr)
		span.SetStatus(codes.Error, string(opErr.Kind))
		metrics.RecordInvocation(command, string(opErr.Kind), elapsed)
		return nil, opErr
	}

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			opErr := &models.OpError{Kind: models.ErrToolNotFound, Op: command, Err: err}
			if errors.Is(err, os.ErrPermission) {
				opErr.Diagnostic = "tool is not executable"
			}
			span.RecordError(opErr)
			metrics.RecordInvocation(command, string(opErr.Kind), elapsed)
			return nil, opErr
		}
		exitCode = exitErr.ExitCode()
	}

	span.SetAttributes(attribute.Int("exit_code", exitCode))
	result := "ok"
	if exitCode != 0 {
		result = "exit_nonzero"
	}
	metrics.RecordInvocation(command, result, elapsed)

	e.logger.WithFields(logrus.Fields{
		"command":   command,
		"exit_code": exitCode,
		"duration":  elapsed,
	}).Debug("Tool command finished")

	return &Result{
		ExitCode: exitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: elapsed,
	}, nil
}

// classifyAbort decides between Cancelled, Timeout and NetworkUnavailable for a
// process that was killed before it exited on its own.
func (e *Executor) classifyAbort(ctx context.Context, command string, args []string, timeout time.Duration, stderr string) *models.OpError {
	if ctx.Err() != nil {
		e.logger.WithField("command", command).Info("Tool command cancelled")
		return &models.OpError{Kind: models.ErrCancelled, Op: command, Paths: args, Err: ctx.Err()}
	}

	opErr := &models.OpError{
		Kind:       models.ErrTimeout,
		Op:         command,
		Paths:      args,
		Diagnostic: strings.TrimSpace(stderr),
		Err:        fmt.Errorf("killed after %s", timeout),
	}

	probeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	running, err := e.DaemonRunning(probeCtx)
	if err != nil {
		e.logger.WithError(err).Debug("Daemon probe failed")
	} else if !running {
		opErr.Kind = models.ErrNetworkUnavailable
		opErr.Diagnostic = "daemon is not running"
	}

	e.logger.WithFields(logrus.Fields{
		"command": command,
		"kind":    opErr.Kind,
	}).Warn("Tool command did not finish in time")
	return opErr
}

// resolve finds the executable for a subcommand. A missing tool is
// remembered so it is reported once and never looked up again.
func (e *Executor) resolve(command string) (string, error) {
	e.mu.RLock()
	cached, seen := e.missing[command]
	e.mu.RUnlock()
	if seen {
		return "", cached
	}

	name := e.cfg.Prefix + command
	var (
		binary string
		err    error
	)
	if e.cfg.BinDir != "" {
		binary = filepath.Join(e.cfg.BinDir, name)
		var info os.FileInfo
		info, err = os.Stat(binary)
		if err == nil && (info.IsDir() || info.Mode()&0o111 == 0) {
			err = fmt.Errorf("%s is not executable", binary)
		}
	} else {
		binary, err = exec.LookPath(name)
	}
	if err == nil {
		return binary, nil
	}

	opErr := &models.OpError{
		Kind:       models.ErrToolNotFound,
		Op:         command,
		Diagnostic: fmt.Sprintf("%s not found; is MEGAcmd installed?", name),
		Err:        err,
	}
	e.mu.Lock()
	e.missing[command] = opErr
	e.mu.Unlock()
	e.logger.WithError(err).Errorf("External tool %s is unavailable", name)
	return "", opErr
}
