package mcp

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denysvitali/megacmd-runtime-go/internal/models"
	"github.com/denysvitali/megacmd-runtime-go/pkg/app"
	"github.com/denysvitali/megacmd-runtime-go/pkg/config"
	"github.com/denysvitali/megacmd-runtime-go/pkg/executor"
	"github.com/denysvitali/megacmd-runtime-go/pkg/executor/executortest"
	"github.com/denysvitali/megacmd-runtime-go/pkg/session"
)

const listing = `FLAGS VERS SIZE DATE HANDLE NAME
d---    -      -   2024-01-01T09:00:00  H:aaaa  docs
-rw-    1    100   2024-01-02T10:00:00  H:bbbb  a.txt
`

func newTestServer(t *testing.T) (*Server, *executortest.Runner) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	runner := executortest.New(func(_ context.Context, call executortest.Call) (*executor.Result, error) {
		switch call.Command {
		case "ls":
			return executortest.OK(listing)
		case "mv":
			if call.Args[len(call.Args)-1] == "/taken.txt" {
				return executortest.Fail(192, "Destination already exists")
			}
		}
		return executortest.OK("")
	})
	rt, err := app.NewWithRunner(config.Default(), logger, runner, session.ReadyGate("me@example.com"))
	require.NoError(t, err)
	return NewServer(rt, "test"), runner
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestRemoteList(t *testing.T) {
	s, runner := newTestServer(t)

	res, err := s.handleList(context.Background(), call(map[string]any{"path": "/"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	var got models.DirectoryListing
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &got))
	require.Len(t, got.Nodes, 2)
	assert.Equal(t, "/docs", got.Nodes[0].Path)

	_, err = s.handleList(context.Background(), call(map[string]any{"path": "/", "refresh": true}))
	require.NoError(t, err)
	assert.Equal(t, 2, runner.Count("ls"))
}

func TestRemoteListMissingPath(t *testing.T) {
	s, _ := newTestServer(t)
	res, err := s.handleList(context.Background(), call(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestRemoteDelete(t *testing.T) {
	s, runner := newTestServer(t)
	res, err := s.handleDelete(context.Background(), call(map[string]any{"paths": []any{"/a.txt", "/docs"}}))
	require.NoError(t, err)
	assert.False(t, res.IsError, text(t, res))

	var outcome models.OperationOutcome
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &outcome))
	assert.Equal(t, []string{"/a.txt", "/docs"}, outcome.Succeeded)
	assert.Equal(t, 2, runner.Count("rm"))
}

func TestRemoteRenameConflict(t *testing.T) {
	s, _ := newTestServer(t)
	res, err := s.handleRename(context.Background(), call(map[string]any{"path": "/a.txt", "new_name": "taken.txt"}))
	require.NoError(t, err)
	require.True(t, res.IsError)

	var resp models.OperationResponse
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &resp))
	assert.Equal(t, models.ErrConflict, resp.Error.Kind)
	require.Len(t, resp.Outcome.Failed, 1)
	assert.Equal(t, "/a.txt", resp.Outcome.Failed[0].Path)
}

func TestRemoteMoveAndMkdir(t *testing.T) {
	s, runner := newTestServer(t)

	res, err := s.handleMkdir(context.Background(), call(map[string]any{"paths": []any{"/docs/new"}}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	res, err = s.handleMove(context.Background(), call(map[string]any{"paths": []any{"/a.txt"}, "destination": "/docs"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, 1, runner.Count("mkdir"))
	assert.Equal(t, 1, runner.Count("mv"))

	res, err = s.handleMove(context.Background(), call(map[string]any{"paths": []any{"/a.txt"}}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestTransfersList(t *testing.T) {
	s, _ := newTestServer(t)
	res, err := s.handleTransfers(context.Background(), call(nil))
	require.NoError(t, err)

	var resp models.TransfersResponse
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &resp))
	assert.Empty(t, resp.Transfers)
}
