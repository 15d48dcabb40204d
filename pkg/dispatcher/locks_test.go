package dispatcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func granted(ch <-chan func()) (func(), bool) {
	select {
	case r := <-ch:
		return r, true
	case <-time.After(50 * time.Millisecond):
		return nil, false
	}
}

func acquireAsync(t *testing.T, lt *LockTable, paths ...string) <-chan func() {
	t.Helper()
	ch := make(chan func(), 1)
	go func() {
		release, err := lt.Acquire(context.Background(), paths)
		if assert.NoError(t, err) {
			ch <- release
		}
	}()
	return ch
}

func TestLockTableParallelSubtrees(t *testing.T) {
	lt := NewLockTable(false)

	relA, err := lt.Acquire(context.Background(), []string{"/a/x"})
	require.NoError(t, err)
	relB, err := lt.Acquire(context.Background(), []string{"/b/y"})
	require.NoError(t, err, "disjoint subtrees are granted together")

	held, waiting := lt.Stats()
	assert.Equal(t, 2, held)
	assert.Equal(t, 0, waiting)

	relA()
	relB()
	relB() // idempotent
	held, _ = lt.Stats()
	assert.Equal(t, 0, held)
}

func TestLockTableOverlapWaits(t *testing.T) {
	lt := NewLockTable(false)

	relParent, err := lt.Acquire(context.Background(), []string{"/a"})
	require.NoError(t, err)

	child := acquireAsync(t, lt, "/a/x")
	_, ok := granted(child)
	assert.False(t, ok, "descendant must wait for ancestor")

	relParent()
	relChild, ok := granted(child)
	require.True(t, ok)
	relChild()
}

func TestLockTableKeepsSubmissionOrder(t *testing.T) {
	lt := NewLockTable(false)

	relChild, err := lt.Acquire(context.Background(), []string{"/a/x"})
	require.NoError(t, err)

	parent := acquireAsync(t, lt, "/a")
	require.Eventually(t, func() bool { _, w := lt.Stats(); return w == 1 }, time.Second, time.Millisecond)

	// /a/y does not overlap the held /a/x but overlaps the earlier waiting /a
	sibling := acquireAsync(t, lt, "/a/y")
	_, ok := granted(sibling)
	assert.False(t, ok, "later overlapping request must not overtake an earlier one")

	// unrelated work still proceeds
	relOther, err := lt.Acquire(context.Background(), []string{"/b"})
	require.NoError(t, err)
	relOther()

	relChild()
	relParent, ok := granted(parent)
	require.True(t, ok)
	_, ok = granted(sibling)
	assert.False(t, ok)

	relParent()
	relSibling, ok := granted(sibling)
	require.True(t, ok)
	relSibling()
}

func TestLockTableSerial(t *testing.T) {
	lt := NewLockTable(true)

	rel, err := lt.Acquire(context.Background(), []string{"/a/x"})
	require.NoError(t, err)

	other := acquireAsync(t, lt, "/b/y")
	_, ok := granted(other)
	assert.False(t, ok, "serial policy serializes disjoint paths")

	rel()
	relOther, ok := granted(other)
	require.True(t, ok)
	relOther()
}

func TestLockTableCancelWhileWaiting(t *testing.T) {
	lt := NewLockTable(false)

	rel, err := lt.Acquire(context.Background(), []string{"/a"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = lt.Acquire(ctx, []string{"/a/x"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, waiting := lt.Stats()
	assert.Equal(t, 0, waiting)
	rel()
}
