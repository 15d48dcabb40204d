// Package cache keeps directory listings of the remote tree and refreshes
// them through the external tool on demand.
//
// Entries follow stale-while-revalidate: invalidation only flags an entry,
// the old nodes stay visible until a refresh succeeds, and a failed refresh
// never discards what was there before.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/denysvitali/megacmd-runtime-go/internal/models"
	"github.com/denysvitali/megacmd-runtime-go/pkg/executor"
	"github.com/denysvitali/megacmd-runtime-go/pkg/megacmd"
	"github.com/denysvitali/megacmd-runtime-go/pkg/metrics"
)

// Readiness is satisfied by session.Gate
type Readiness interface {
	Err() error
}

// Cache maps remote directory paths to their last known listing
type Cache struct {
	runner  executor.Runner
	ready   Readiness
	timeout time.Duration
	logger  *logrus.Logger
	tracer  trace.Tracer
	group   singleflight.Group

	mu      sync.RWMutex
	entries map[string]models.DirectoryListing
	// gens is bumped on every invalidation so a refresh that started
	// earlier cannot clear the stale flag on commit
	gens map[string]uint64
	// fetched is the generation the cached entry was listed at
	fetched map[string]uint64
	// gone holds paths known to be deleted or moved away whose parent
	// listing has not been refreshed yet
	gone map[string]struct{}
}

// New creates an empty cache
func New(runner executor.Runner, ready Readiness, timeout time.Duration, logger *logrus.Logger) *Cache {
	return &Cache{
		runner:  runner,
		ready:   ready,
		timeout: timeout,
		logger:  logger,
		tracer:  otel.Tracer("megacmd-runtime"),
		entries: make(map[string]models.DirectoryListing),
		gens:    make(map[string]uint64),
		fetched: make(map[string]uint64),
		gone:    make(map[string]struct{}),
	}
}

// List returns the listing of path, refreshing it when missing, stale or
// when force is set. If the refresh fails, the previously cached listing (if
// any) is returned together with the error.
func (c *Cache) List(ctx context.Context, path string, force bool) (models.DirectoryListing, error) {
	if c.ready != nil {
		if err := c.ready.Err(); err != nil {
			return models.DirectoryListing{}, err
		}
	}
	path = models.CleanPath(path)

	c.mu.RLock()
	cached, ok := c.entries[path]
	gen := c.gens[path]
	c.mu.RUnlock()

	switch {
	case ok && !cached.Stale && !force:
		metrics.RecordCacheLookup("hit")
		return cached.Clone(), nil
	case force:
		metrics.RecordCacheLookup("forced")
	case ok:
		metrics.RecordCacheLookup("stale")
	default:
		metrics.RecordCacheLookup("miss")
	}

	// The refresh outlives callers that give up waiting so other waiters
	// still get its result; it stays bounded by the invocation timeout.
	// Callers only join a refresh started at the same generation, so a list
	// issued after an invalidation always runs its own command.
	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(fmt.Sprintf("%s@%d", path, gen), func() (interface{}, error) {
		return c.refresh(flightCtx, path, gen)
	})

	select {
	case res := <-ch:
		listing := res.Val.(models.DirectoryListing)
		return listing.Clone(), res.Err
	case <-ctx.Done():
		prev, _ := c.Peek(path)
		return prev, &models.OpError{Kind: models.ErrCancelled, Op: "ls", Paths: []string{path}, Err: ctx.Err()}
	}
}

func (c *Cache) refresh(ctx context.Context, path string, gen uint64) (models.DirectoryListing, error) {
	ctx, span := c.tracer.Start(ctx, "cache.refresh")
	defer span.End()
	span.SetAttributes(attribute.String("path", path), attribute.Int64("generation", int64(gen)))

	inv := megacmd.List(path)
	res, err := c.runner.Run(ctx, inv.Command, inv.Args, c.timeout)
	if err == nil {
		if opErr := megacmd.ResultError(inv, res, path); opErr != nil {
			err = opErr
		}
	}
	var parsed megacmd.ListingParse
	if err == nil {
		parsed, err = megacmd.ParseListing(path, res.Stdout)
		metrics.RecordSkippedLines("ls", parsed.Skipped)
	}

	if err != nil {
		span.RecordError(err)
		c.logger.WithError(err).WithField("path", path).Warn("Directory refresh failed, keeping cached listing")
		prev, _ := c.Peek(path)
		return prev, err
	}

	if parsed.Skipped > 0 {
		c.logger.WithFields(logrus.Fields{
			"path":    path,
			"skipped": parsed.Skipped,
			"lines":   parsed.SkippedLines,
		}).Warn("Skipped unparsable listing lines")
	}

	listing := models.DirectoryListing{
		Path:      path,
		Nodes:     parsed.Nodes,
		FetchedAt: time.Now(),
		Skipped:   parsed.Skipped,
	}

	c.mu.Lock()
	current := c.gens[path] == gen
	if !current {
		// invalidated while the command ran
		listing.Stale = true
	} else {
		for p := range c.gone {
			if models.ParentPath(p) == path {
				delete(c.gone, p)
			}
		}
	}
	// an older refresh finishing late must not replace a newer listing
	if _, cachedOK := c.entries[path]; !cachedOK || current || c.fetched[path] <= gen {
		c.entries[path] = listing
		c.fetched[path] = gen
	}
	n := len(c.entries)
	c.mu.Unlock()

	metrics.SetCacheEntries(n)
	span.SetAttributes(attribute.Int("nodes", len(listing.Nodes)))
	return listing.Clone(), nil
}

// Peek returns the cached listing without any I/O
func (c *Cache) Peek(path string) (models.DirectoryListing, bool) {
	path = models.CleanPath(path)
	c.mu.RLock()
	defer c.mu.RUnlock()
	l, ok := c.entries[path]
	if !ok {
		return models.DirectoryListing{}, false
	}
	return l.Clone(), true
}

// Lookup finds the node at path in its parent's cached listing
func (c *Cache) Lookup(path string) (models.RemoteNode, bool) {
	path = models.CleanPath(path)
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, gone := c.gone[path]; gone {
		return models.RemoteNode{}, false
	}
	parent, ok := c.entries[models.ParentPath(path)]
	if !ok {
		return models.RemoteNode{}, false
	}
	return parent.Lookup(models.BaseName(path))
}

// Known reports whether path is a node the cache currently believes exists.
// The parent listing is authoritative when cached; otherwise a cached
// listing of path itself counts.
func (c *Cache) Known(path string) bool {
	path = models.CleanPath(path)
	if path == "/" {
		return true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, gone := c.gone[path]; gone {
		return false
	}
	if parent, ok := c.entries[models.ParentPath(path)]; ok {
		_, found := parent.Lookup(models.BaseName(path))
		return found
	}
	_, listed := c.entries[path]
	return listed
}

// Invalidate marks the listing of path stale. Cached nodes stay readable.
func (c *Cache) Invalidate(path string) {
	path = models.CleanPath(path)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateLocked(path)
}

func (c *Cache) invalidateLocked(path string) {
	c.gens[path]++
	if l, ok := c.entries[path]; ok {
		l.Stale = true
		c.entries[path] = l
	}
}

// NodeRemoved records that the node at path was deleted or moved away. Its
// parent listing and every cached listing at or below path become stale.
func (c *Cache) NodeRemoved(path string) {
	path = models.CleanPath(path)
	c.mu.Lock()
	defer c.mu.Unlock()

	c.invalidateLocked(models.ParentPath(path))
	c.invalidateLocked(path)
	c.gone[path] = struct{}{}
	for p := range c.entries {
		if models.IsAncestor(path, p) {
			c.invalidateLocked(p)
		}
	}
	c.logger.WithField("path", path).Debug("Node removed from cache view")
}

// NodeAdded records that a node appeared at path, staling its parent
func (c *Cache) NodeAdded(path string) {
	path = models.CleanPath(path)
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.gone, path)
	c.invalidateLocked(models.ParentPath(path))
}

// Len returns the number of cached listings
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// IsStale reports whether a cached listing exists and is flagged stale
func (c *Cache) IsStale(path string) bool {
	l, ok := c.Peek(path)
	return ok && l.Stale
}
