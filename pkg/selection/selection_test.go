package selection

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denysvitali/megacmd-runtime-go/internal/models"
)

type knownSet map[string]bool

func (k knownSet) Known(p string) bool { return k[p] }

type recordingSubmitter struct {
	got     []models.OperationRequest
	outcome *models.OperationOutcome
	err     error
}

func (s *recordingSubmitter) Submit(_ context.Context, req models.OperationRequest) (*models.OperationOutcome, error) {
	s.got = append(s.got, req)
	return s.outcome, s.err
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestMarkIsIdempotent(t *testing.T) {
	c := New()
	c.Mark("/a.txt")
	c.Mark("/a.txt", "a.txt", "/a.txt/")
	assert.Equal(t, 1, c.Count())
	assert.Equal(t, []string{"/a.txt"}, c.Active())
}

func TestUnmarkToggleClear(t *testing.T) {
	c := New()
	c.Mark("/b", "/a", "/c")
	assert.Equal(t, []string{"/a", "/b", "/c"}, c.Active())

	c.Unmark("/b", "/missing")
	assert.False(t, c.Contains("/b"))

	assert.False(t, c.Toggle("/a"))
	assert.True(t, c.Toggle("/d"))
	assert.Equal(t, []string{"/c", "/d"}, c.Active())

	c.Clear()
	assert.Zero(t, c.Count())
	assert.Empty(t, c.Active())
}

func TestResolveDropsUnknownPaths(t *testing.T) {
	c := New()
	c.Mark("/a", "/gone", "/b")

	kept, dropped := c.Resolve(knownSet{"/a": true, "/b": true})
	assert.Equal(t, []string{"/a", "/b"}, kept)
	assert.Equal(t, []string{"/gone"}, dropped)
	assert.False(t, c.Contains("/gone"))
}

func TestBuildRequest(t *testing.T) {
	c := New()
	c.Mark("/a", "/b", "/stale")

	req, dropped, err := c.BuildRequest(knownSet{"/a": true, "/b": true}, models.ApplySelectionRequest{
		Kind:        models.OpMove,
		Destination: "/archive",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/stale"}, dropped)
	assert.Equal(t, models.OperationRequest{
		Kind:        models.OpMove,
		Sources:     []string{"/a", "/b"},
		Destination: "/archive",
	}, req)
}

func TestBuildRequestRejects(t *testing.T) {
	tests := []struct {
		name  string
		kind  models.OperationKind
		known knownSet
	}{
		{"unknown kind", "explode", knownSet{"/a": true}},
		{"upload", models.OpUpload, knownSet{"/a": true}},
		{"rename", models.OpRename, knownSet{"/a": true}},
		{"mkdir", models.OpMkdir, knownSet{"/a": true}},
		{"nothing known", models.OpDelete, knownSet{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New()
			c.Mark("/a")
			_, _, err := c.BuildRequest(tt.known, models.ApplySelectionRequest{Kind: tt.kind})
			assert.ErrorIs(t, err, models.ErrInvalidRequest)
		})
	}
}

func TestApplyClearsSucceededPaths(t *testing.T) {
	c := New()
	c.Mark("/a", "/b", "/c")

	sub := &recordingSubmitter{
		outcome: &models.OperationOutcome{
			Kind:      models.OpDelete,
			Succeeded: []string{"/a"},
			Failed:    []models.PathFailure{{Path: "/b", Kind: models.ErrPermissionDenied}},
		},
		err: models.NewOpError(models.ErrPartialBatchFailure, "delete", "1 of 3 failed"),
	}
	outcome, err := c.Apply(context.Background(), knownSet{"/a": true, "/b": true, "/c": true}, sub,
		models.ApplySelectionRequest{Kind: models.OpDelete, Clear: true}, quietLogger())
	assert.ErrorIs(t, err, models.ErrPartialBatchFailure)
	require.NotNil(t, outcome)

	require.Len(t, sub.got, 1)
	assert.Equal(t, []string{"/a", "/b", "/c"}, sub.got[0].Sources)
	assert.Equal(t, []string{"/b", "/c"}, c.Active())
}

func TestApplyWithoutClearKeepsSelection(t *testing.T) {
	c := New()
	c.Mark("/a")
	sub := &recordingSubmitter{outcome: &models.OperationOutcome{Succeeded: []string{"/a"}}}

	_, err := c.Apply(context.Background(), knownSet{"/a": true}, sub,
		models.ApplySelectionRequest{Kind: models.OpDownload, LocalPath: "/tmp"}, quietLogger())
	require.NoError(t, err)
	assert.True(t, c.Contains("/a"))
	assert.Equal(t, "/tmp", sub.got[0].LocalPath)
}

func TestApplyDoesNotSubmitWhenEverythingIsStale(t *testing.T) {
	c := New()
	c.Mark("/gone")
	sub := &recordingSubmitter{}

	_, err := c.Apply(context.Background(), knownSet{}, sub,
		models.ApplySelectionRequest{Kind: models.OpDelete}, quietLogger())
	assert.ErrorIs(t, err, models.ErrInvalidRequest)
	assert.Empty(t, sub.got)
	assert.Zero(t, c.Count())
}
