// Package dispatcher turns operation requests into tool invocations while
// keeping mutations on overlapping paths strictly ordered.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/denysvitali/megacmd-runtime-go/internal/models"
	"github.com/denysvitali/megacmd-runtime-go/pkg/config"
	"github.com/denysvitali/megacmd-runtime-go/pkg/executor"
	"github.com/denysvitali/megacmd-runtime-go/pkg/megacmd"
	"github.com/denysvitali/megacmd-runtime-go/pkg/metrics"
)

// CacheView is the part of the directory cache the dispatcher needs
type CacheView interface {
	Lookup(path string) (models.RemoteNode, bool)
	NodeRemoved(path string)
	NodeAdded(path string)
}

// Readiness is satisfied by session.Gate
type Readiness interface {
	Err() error
}

// Dispatcher executes OperationRequests
type Dispatcher struct {
	runner  executor.Runner
	cache   CacheView
	ready   Readiness
	locks   *LockTable
	policy  string
	timeout time.Duration
	logger  *logrus.Logger
	tracer  trace.Tracer
}

// New creates a dispatcher using the given concurrency policy
func New(runner executor.Runner, cache CacheView, ready Readiness, policy string, timeout time.Duration, logger *logrus.Logger) (*Dispatcher, error) {
	var serial bool
	switch policy {
	case config.PolicySerial:
		serial = true
	case config.PolicyParallelSubtrees:
	default:
		return nil, fmt.Errorf("unknown dispatcher policy %q", policy)
	}
	return &Dispatcher{
		runner:  runner,
		cache:   cache,
		ready:   ready,
		locks:   NewLockTable(serial),
		policy:  policy,
		timeout: timeout,
		logger:  logger,
		tracer:  otel.Tracer("megacmd-runtime"),
	}, nil
}

// Policy returns the configured concurrency policy
func (d *Dispatcher) Policy() string {
	return d.policy
}

// step is one tool invocation covering one or more request paths
type step struct {
	inv   megacmd.Invocation
	paths []string
	// apply records the cache effects of the step
	apply func() []string
	// mediaPath is set for media-info steps
	mediaPath string
}

// Submit validates req, waits for its path locks and runs it. The outcome is
// always returned; err is non-nil whenever any path did not succeed.
// Paths run in input order and the first failure aborts the rest.
func (d *Dispatcher) Submit(ctx context.Context, req models.OperationRequest) (*models.OperationOutcome, error) {
	ctx, span := d.tracer.Start(ctx, "dispatcher.submit")
	defer span.End()

	req = normalize(req)
	outcome := &models.OperationOutcome{
		ID:           uuid.NewString(),
		Kind:         req.Kind,
		Succeeded:    []string{},
		NotAttempted: append([]string(nil), req.Sources...),
	}
	span.SetAttributes(
		attribute.String("op.id", outcome.ID),
		attribute.String("op.kind", string(req.Kind)),
		attribute.StringSlice("op.sources", req.Sources),
	)
	log := d.logger.WithFields(logrus.Fields{"op_id": outcome.ID, "kind": req.Kind})

	if d.ready != nil {
		if err := d.ready.Err(); err != nil {
			return outcome, err
		}
	}
	if err := validate(req); err != nil {
		metrics.RecordOperation(string(req.Kind), string(models.ErrInvalidRequest))
		return outcome, err
	}

	if paths := lockPaths(req); len(paths) > 0 {
		waitStart := time.Now()
		release, err := d.locks.Acquire(ctx, paths)
		metrics.RecordLockWait(time.Since(waitStart))
		if err != nil {
			log.Info("Operation cancelled while waiting for path locks")
			metrics.RecordOperation(string(req.Kind), string(models.ErrCancelled))
			return outcome, &models.OpError{Kind: models.ErrCancelled, Op: string(req.Kind), Paths: req.Sources, Err: err}
		}
		defer release()
	}

	if err := d.preflight(req); err != nil {
		metrics.RecordOperation(string(req.Kind), string(models.KindOf(err)))
		return outcome, err
	}

	steps, err := d.plan(req)
	if err != nil {
		return outcome, err
	}

	log.WithField("steps", len(steps)).Info("Dispatching operation")
	runErr := d.execute(ctx, steps, outcome, log)
	err = summarize(req, outcome, runErr)

	if err != nil {
		span.RecordError(err)
		metrics.RecordOperation(string(req.Kind), string(models.KindOf(err)))
		log.WithError(err).Warn("Operation failed")
	} else {
		metrics.RecordOperation(string(req.Kind), "ok")
		log.Info("Operation succeeded")
	}
	return outcome, err
}

func (d *Dispatcher) execute(ctx context.Context, steps []step, outcome *models.OperationOutcome, log *logrus.Entry) *models.OpError {
	for _, st := range steps {
		if ctx.Err() != nil {
			return &models.OpError{Kind: models.ErrCancelled, Op: st.inv.Command, Err: ctx.Err()}
		}

		res, err := d.runner.Run(ctx, st.inv.Command, st.inv.Args, d.timeout)
		var opErr *models.OpError
		if err != nil {
			var runErr *models.OpError
			if errors.As(err, &runErr) {
				cp := *runErr
				opErr = &cp
			} else {
				opErr = &models.OpError{Kind: models.ErrUnknown, Op: st.inv.Command, Err: err}
			}
			opErr.Paths = st.paths
			if opErr.Kind == models.ErrTimeout || opErr.Kind == models.ErrCancelled {
				// the process may have done its work before being killed
				outcome.Invalidated = appendUnique(outcome.Invalidated, st.apply()...)
			}
		} else if opErr = megacmd.ResultError(st.inv, res, st.paths...); opErr != nil {
			if st.inv.Command == "mkdir" && megacmd.IsAlreadyExists(opErr) {
				log.WithField("path", st.paths[0]).Info("Directory already exists")
				opErr = nil
			}
		}

		if opErr == nil && st.mediaPath != "" {
			info, perr := megacmd.ParseMediaInfo(st.mediaPath, res.Stdout)
			if perr != nil {
				opErr = &models.OpError{Kind: models.ErrParse, Op: st.inv.Command, Paths: st.paths, Diagnostic: res.Stdout}
			} else {
				outcome.Media = append(outcome.Media, info)
			}
		}

		if opErr != nil {
			for _, p := range st.paths {
				outcome.Failed = append(outcome.Failed, models.PathFailure{Path: p, Kind: opErr.Kind, Diagnostic: opErr.Diagnostic})
			}
			outcome.NotAttempted = without(outcome.NotAttempted, st.paths)
			return opErr
		}

		outcome.Succeeded = append(outcome.Succeeded, st.paths...)
		outcome.NotAttempted = without(outcome.NotAttempted, st.paths)
		outcome.Invalidated = appendUnique(outcome.Invalidated, st.apply()...)
	}
	return nil
}

// summarize derives the error returned to the caller from the outcome
func summarize(req models.OperationRequest, outcome *models.OperationOutcome, runErr *models.OpError) error {
	if runErr == nil {
		return nil
	}
	if len(outcome.Succeeded) == 0 {
		return runErr
	}
	var remaining []string
	for _, f := range outcome.Failed {
		remaining = append(remaining, f.Path)
	}
	remaining = append(remaining, outcome.NotAttempted...)
	return &models.OpError{
		Kind:       models.ErrPartialBatchFailure,
		Op:         string(req.Kind),
		Paths:      remaining,
		Diagnostic: fmt.Sprintf("%d of %d paths succeeded", len(outcome.Succeeded), len(req.Sources)),
		Err:        runErr,
	}
}

// preflight rejects requests the cached tree already shows would collide
func (d *Dispatcher) preflight(req models.OperationRequest) error {
	if d.cache == nil {
		return nil
	}
	switch req.Kind {
	case models.OpRename:
		target := models.JoinPath(models.ParentPath(req.Sources[0]), req.NewName)
		if target == req.Sources[0] {
			return nil
		}
		if _, exists := d.cache.Lookup(target); exists {
			return &models.OpError{Kind: models.ErrConflict, Op: "rename", Paths: req.Sources,
				Diagnostic: fmt.Sprintf("%s already exists", target)}
		}
	case models.OpMove:
		if node, ok := d.cache.Lookup(req.Destination); ok && !node.IsDir() {
			return &models.OpError{Kind: models.ErrInvalidRequest, Op: "move", Paths: []string{req.Destination},
				Diagnostic: "destination is not a directory"}
		}
	}
	return nil
}

func (d *Dispatcher) plan(req models.OperationRequest) ([]step, error) {
	var steps []step
	switch req.Kind {
	case models.OpDelete:
		for _, p := range req.Sources {
			dir := true
			if d.cache != nil {
				if node, ok := d.cache.Lookup(p); ok {
					dir = node.IsDir()
				}
			}
			p := p
			steps = append(steps, step{inv: megacmd.Remove(p, dir), paths: []string{p}, apply: d.removed(p)})
		}
	case models.OpRename:
		src := req.Sources[0]
		dst := models.JoinPath(models.ParentPath(src), req.NewName)
		steps = append(steps, step{inv: megacmd.Rename(src, req.NewName), paths: []string{src}, apply: d.moved(src, dst)})
	case models.OpMove:
		for _, p := range req.Sources {
			p := p
			dst := models.JoinPath(req.Destination, models.BaseName(p))
			steps = append(steps, step{inv: megacmd.Move(p, req.Destination), paths: []string{p}, apply: d.moved(p, dst)})
		}
	case models.OpMkdir:
		for _, p := range req.Sources {
			p := p
			steps = append(steps, step{inv: megacmd.Mkdir(p), paths: []string{p}, apply: d.added(p)})
		}
	case models.OpUpload:
		for _, locals := range batches(req.Kind, req.Sources) {
			added := []string{req.Destination}
			for _, local := range locals {
				added = append(added, models.JoinPath(req.Destination, filepath.Base(local)))
			}
			steps = append(steps, step{
				inv:   megacmd.Put(locals, req.Destination),
				paths: locals,
				apply: d.added(added...),
			})
		}
	case models.OpDownload:
		if err := os.MkdirAll(req.LocalPath, 0o755); err != nil {
			return nil, &models.OpError{Kind: models.ErrPermissionDenied, Op: "download", Paths: []string{req.LocalPath}, Err: err}
		}
		for _, p := range req.Sources {
			steps = append(steps, step{inv: megacmd.Get(p, req.LocalPath, req.Merge), paths: []string{p}, apply: noEffect})
		}
	case models.OpMediaInfo:
		for _, p := range req.Sources {
			steps = append(steps, step{inv: megacmd.MediaInfo(p), paths: []string{p}, apply: noEffect, mediaPath: p})
		}
	}
	return steps, nil
}

// batches groups paths into invocations: all together when the tool accepts
// several at once for kind, otherwise one each
func batches(kind models.OperationKind, paths []string) [][]string {
	if megacmd.Batchable(kind) {
		return [][]string{paths}
	}
	out := make([][]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, []string{p})
	}
	return out
}

func noEffect() []string { return nil }

func (d *Dispatcher) removed(p string) func() []string {
	return func() []string {
		if d.cache != nil {
			d.cache.NodeRemoved(p)
		}
		return []string{models.ParentPath(p)}
	}
}

func (d *Dispatcher) added(paths ...string) func() []string {
	return func() []string {
		var parents []string
		for _, p := range paths {
			if d.cache != nil {
				d.cache.NodeAdded(p)
			}
			parents = appendUnique(parents, models.ParentPath(p))
		}
		return parents
	}
}

func (d *Dispatcher) moved(src, dst string) func() []string {
	return func() []string {
		return appendUnique(d.removed(src)(), d.added(dst)()...)
	}
}

func normalize(req models.OperationRequest) models.OperationRequest {
	seen := make(map[string]bool, len(req.Sources))
	var sources []string
	for _, s := range req.Sources {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if req.Kind != models.OpUpload {
			s = models.CleanPath(s)
		}
		if seen[s] {
			continue
		}
		seen[s] = true
		sources = append(sources, s)
	}
	req.Sources = sources
	req.NewName = strings.TrimSpace(req.NewName)
	if req.Destination != "" {
		req.Destination = models.CleanPath(req.Destination)
	}
	return req
}

func invalid(req models.OperationRequest, format string, args ...interface{}) error {
	return &models.OpError{Kind: models.ErrInvalidRequest, Op: string(req.Kind), Paths: req.Sources,
		Diagnostic: fmt.Sprintf(format, args...)}
}

func validate(req models.OperationRequest) error {
	if _, err := models.ParseOperationKind(string(req.Kind)); err != nil {
		return invalid(req, "%v", err)
	}
	if len(req.Sources) == 0 {
		return invalid(req, "at least one source path is required")
	}
	if req.Kind.Mutating() && req.Kind != models.OpUpload && req.Kind != models.OpMkdir {
		for _, s := range req.Sources {
			if s == "/" {
				return invalid(req, "the root directory cannot be the source of %s", req.Kind)
			}
		}
	}

	switch req.Kind {
	case models.OpRename:
		if len(req.Sources) != 1 {
			return invalid(req, "rename takes exactly one source, got %d", len(req.Sources))
		}
		if req.NewName == "" || req.NewName == "." || req.NewName == ".." || strings.Contains(req.NewName, "/") {
			return invalid(req, "new name %q must be a single path segment", req.NewName)
		}
	case models.OpMove:
		if req.Destination == "" {
			return invalid(req, "move requires a destination directory")
		}
		for _, s := range req.Sources {
			if s == req.Destination || models.IsAncestor(s, req.Destination) {
				return invalid(req, "cannot move %s into itself", s)
			}
		}
	case models.OpMkdir:
		for _, s := range req.Sources {
			if s == "/" {
				return invalid(req, "the root directory already exists")
			}
		}
	case models.OpUpload:
		if req.Destination == "" {
			return invalid(req, "upload requires a remote destination directory")
		}
	case models.OpDownload:
		if strings.TrimSpace(req.LocalPath) == "" {
			return invalid(req, "download requires a local directory")
		}
	}
	return nil
}

// lockPaths lists the remote paths an operation touches. Media info is a
// pure read and takes no lock.
func lockPaths(req models.OperationRequest) []string {
	switch req.Kind {
	case models.OpMediaInfo:
		return nil
	case models.OpUpload:
		return []string{req.Destination}
	case models.OpRename:
		return []string{req.Sources[0], models.JoinPath(models.ParentPath(req.Sources[0]), req.NewName)}
	case models.OpMove:
		return append(append([]string(nil), req.Sources...), req.Destination)
	default:
		return req.Sources
	}
}

func without(list, remove []string) []string {
	drop := make(map[string]bool, len(remove))
	for _, r := range remove {
		drop[r] = true
	}
	out := list[:0]
	for _, p := range list {
		if !drop[p] {
			out = append(out, p)
		}
	}
	return out
}

func appendUnique(list []string, items ...string) []string {
	for _, it := range items {
		found := false
		for _, l := range list {
			if l == it {
				found = true
				break
			}
		}
		if !found {
			list = append(list, it)
		}
	}
	return list
}
