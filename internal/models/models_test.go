package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPathHelpers(t *testing.T) {
	assert.Equal(t, "/", CleanPath(""))
	assert.Equal(t, "/a/b", CleanPath("a/b/"))
	assert.Equal(t, "/a", ParentPath("/a/b"))
	assert.Equal(t, "/", ParentPath("/a"))
	assert.Equal(t, "b", BaseName("/a/b"))
	assert.Equal(t, "/a/b", JoinPath("/a", "b"))

	assert.True(t, Overlaps("/a", "/a/x"))
	assert.True(t, Overlaps("/a/x", "/a"))
	assert.True(t, Overlaps("/a", "/a"))
	assert.False(t, Overlaps("/a/x", "/b/y"))
	assert.False(t, Overlaps("/a", "/ab"))
	assert.True(t, IsAncestor("/", "/a"))
	assert.False(t, IsAncestor("/a", "/a"))
}

func TestTransferStateTransitions(t *testing.T) {
	tests := []struct {
		from, to TransferState
		want     bool
	}{
		{TransferQueued, TransferActive, true},
		{TransferActive, TransferPaused, true},
		{TransferPaused, TransferActive, true},
		{TransferActive, TransferCompleted, true},
		{TransferQueued, TransferCancelled, true},
		{TransferCompleted, TransferActive, false},
		{TransferFailed, TransferCompleted, false},
		{TransferActive, TransferQueued, false},
		{TransferActive, TransferActive, true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s->%s", tt.from, tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestOpErrorMatching(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewOpError(ErrTimeout, "ls", "took too long", "/a"))

	assert.True(t, errors.Is(err, ErrTimeout))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, ErrTimeout, KindOf(err))
	assert.Equal(t, "took too long", DiagnosticOf(err))
	assert.True(t, IsRetryable(err))
	assert.False(t, IsRetryable(NewOpError(ErrConflict, "mv", "")))
	assert.Equal(t, ErrUnknown, KindOf(errors.New("boom")))
	assert.Contains(t, err.Error(), "ls: timeout [/a]: took too long")
}

func TestTransferPercent(t *testing.T) {
	assert.Equal(t, 50.0, TransferRecord{BytesTotal: 200, BytesDone: 100}.Percent())
	assert.Equal(t, 100.0, TransferRecord{State: TransferCompleted}.Percent())
	assert.Equal(t, 0.0, TransferRecord{}.Percent())
}
