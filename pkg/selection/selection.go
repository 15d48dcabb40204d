// Package selection tracks the remote paths a user has marked for a bulk
// operation. The Coordinator is an in-memory set and performs no I/O.
package selection

import (
	"sort"
	"sync"

	"github.com/denysvitali/megacmd-runtime-go/internal/models"
)

// Resolver reports whether a remote path is currently known to exist.
// cache.Cache satisfies it.
type Resolver interface {
	Known(path string) bool
}

// Coordinator is a session-scoped set of marked remote paths
type Coordinator struct {
	mu     sync.RWMutex
	marked map[string]struct{}
}

// New returns an empty Coordinator
func New() *Coordinator {
	return &Coordinator{marked: make(map[string]struct{})}
}

// Mark adds paths to the selection. Marking a marked path is a no-op.
func (c *Coordinator) Mark(paths ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range paths {
		c.marked[models.CleanPath(p)] = struct{}{}
	}
}

// Unmark removes paths from the selection
func (c *Coordinator) Unmark(paths ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range paths {
		delete(c.marked, models.CleanPath(p))
	}
}

// Toggle flips membership of path and reports whether it is now marked
func (c *Coordinator) Toggle(path string) bool {
	path = models.CleanPath(path)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.marked[path]; ok {
		delete(c.marked, path)
		return false
	}
	c.marked[path] = struct{}{}
	return true
}

// Clear empties the selection
func (c *Coordinator) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.marked = make(map[string]struct{})
}

// Contains reports whether path is marked
func (c *Coordinator) Contains(path string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.marked[models.CleanPath(path)]
	return ok
}

// Count returns the number of marked paths
func (c *Coordinator) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.marked)
}

// Active returns the marked paths, sorted
func (c *Coordinator) Active() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.activeLocked()
}

func (c *Coordinator) activeLocked() []string {
	out := make([]string, 0, len(c.marked))
	for p := range c.marked {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Resolve returns the marked paths the resolver still knows about and
// silently drops the rest from the selection. The dropped paths are returned
// for logging.
func (c *Coordinator) Resolve(r Resolver) (kept, dropped []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.activeLocked() {
		if r.Known(p) {
			kept = append(kept, p)
			continue
		}
		delete(c.marked, p)
		dropped = append(dropped, p)
	}
	return kept, dropped
}
