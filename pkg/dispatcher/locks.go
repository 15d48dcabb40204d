package dispatcher

import (
	"context"
	"sync"

	"github.com/denysvitali/megacmd-runtime-go/internal/models"
)

// LockTable grants path-prefix locks in submission order. A ticket is granted
// once no held ticket and no earlier waiting ticket overlaps it, so two
// overlapping operations always run in the order they were submitted.
// In serial mode every ticket overlaps every other.
type LockTable struct {
	serial bool

	mu      sync.Mutex
	seq     uint64
	waiting []*ticket
	held    map[uint64]*ticket
}

type ticket struct {
	id    uint64
	paths []string
	ready chan struct{}
}

// NewLockTable returns an empty table
func NewLockTable(serial bool) *LockTable {
	return &LockTable{serial: serial, held: make(map[uint64]*ticket)}
}

// Acquire blocks until every path can be locked or ctx is done.
// The returned release func must be called exactly once.
func (t *LockTable) Acquire(ctx context.Context, paths []string) (func(), error) {
	tk := &ticket{paths: make([]string, 0, len(paths)), ready: make(chan struct{})}
	for _, p := range paths {
		tk.paths = append(tk.paths, models.CleanPath(p))
	}

	t.mu.Lock()
	t.seq++
	tk.id = t.seq
	t.waiting = append(t.waiting, tk)
	t.promoteLocked()
	t.mu.Unlock()

	select {
	case <-tk.ready:
		return t.releaseFunc(tk), nil
	case <-ctx.Done():
		t.mu.Lock()
		if _, granted := t.held[tk.id]; granted {
			delete(t.held, tk.id)
		} else {
			t.removeWaitingLocked(tk.id)
		}
		t.promoteLocked()
		t.mu.Unlock()
		return nil, ctx.Err()
	}
}

func (t *LockTable) releaseFunc(tk *ticket) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.held, tk.id)
			t.promoteLocked()
			t.mu.Unlock()
		})
	}
}

func (t *LockTable) promoteLocked() {
	remaining := t.waiting[:0]
	var blocked []*ticket
	for _, tk := range t.waiting {
		if t.conflictsLocked(tk, blocked) {
			blocked = append(blocked, tk)
			remaining = append(remaining, tk)
			continue
		}
		t.held[tk.id] = tk
		close(tk.ready)
	}
	for i := len(remaining); i < len(t.waiting); i++ {
		t.waiting[i] = nil
	}
	t.waiting = remaining
}

func (t *LockTable) conflictsLocked(tk *ticket, earlier []*ticket) bool {
	for _, h := range t.held {
		if t.overlaps(tk, h) {
			return true
		}
	}
	for _, e := range earlier {
		if t.overlaps(tk, e) {
			return true
		}
	}
	return false
}

func (t *LockTable) overlaps(a, b *ticket) bool {
	if t.serial {
		return true
	}
	for _, pa := range a.paths {
		for _, pb := range b.paths {
			if models.Overlaps(pa, pb) {
				return true
			}
		}
	}
	return false
}

func (t *LockTable) removeWaitingLocked(id uint64) {
	for i, tk := range t.waiting {
		if tk.id == id {
			t.waiting = append(t.waiting[:i], t.waiting[i+1:]...)
			return
		}
	}
}

// Stats returns the number of held and waiting tickets
func (t *LockTable) Stats() (held, waiting int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.held), len(t.waiting)
}
