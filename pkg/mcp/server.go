// Package mcp exposes the remote tree and transfer queue as MCP tools
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/denysvitali/megacmd-runtime-go/internal/models"
	"github.com/denysvitali/megacmd-runtime-go/pkg/app"
)

// Server wraps the mcp-go server around one runtime
type Server struct {
	logger    *logrus.Logger
	app       *app.App
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server using the mcp-go library
func NewServer(rt *app.App, version string) *Server {
	mcpServer := server.NewMCPServer(
		"megacmd-runtime",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s := &Server{
		logger:    rt.Logger,
		app:       rt,
		mcpServer: mcpServer,
	}
	s.registerTools()

	return s
}

// ServeStdio serves MCP over stdin/stdout until the client disconnects
func (s *Server) ServeStdio() error {
	s.logger.Info("Serving MCP over stdio")
	return server.ServeStdio(s.mcpServer)
}

func pathsArg(desc string) mcp.ToolOption {
	return mcp.WithArray("paths",
		mcp.Required(),
		mcp.Description(desc),
		mcp.Items(map[string]any{"type": "string"}),
	)
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("remote_list",
		mcp.WithDescription("List a remote directory"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Remote directory path, e.g. /Documents"),
		),
		mcp.WithBoolean("refresh",
			mcp.Description("Bypass the directory cache"),
		),
	), s.handleList)

	s.mcpServer.AddTool(mcp.NewTool("remote_mkdir",
		mcp.WithDescription("Create remote directories, including missing parents"),
		pathsArg("Remote directories to create"),
	), s.handleMkdir)

	s.mcpServer.AddTool(mcp.NewTool("remote_rename",
		mcp.WithDescription("Rename a remote file or directory in place"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Remote path to rename"),
		),
		mcp.WithString("new_name",
			mcp.Required(),
			mcp.Description("New leaf name"),
		),
	), s.handleRename)

	s.mcpServer.AddTool(mcp.NewTool("remote_move",
		mcp.WithDescription("Move remote paths into a remote directory"),
		pathsArg("Remote paths to move"),
		mcp.WithString("destination",
			mcp.Required(),
			mcp.Description("Remote destination directory"),
		),
	), s.handleMove)

	s.mcpServer.AddTool(mcp.NewTool("remote_delete",
		mcp.WithDescription("Delete remote files or directories"),
		pathsArg("Remote paths to delete"),
	), s.handleDelete)

	s.mcpServer.AddTool(mcp.NewTool("remote_mediainfo",
		mcp.WithDescription("Report width, height, fps and playtime of remote media files"),
		pathsArg("Remote media files"),
	), s.handleMediaInfo)

	s.mcpServer.AddTool(mcp.NewTool("transfers_list",
		mcp.WithDescription("List queued, active and recently finished transfers"),
	), s.handleTransfers)
}

func (s *Server) handleList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("path parameter error: %v", err)), nil
	}
	refresh := request.GetBool("refresh", false)

	listing, err := s.app.Cache.List(ctx, path, refresh)
	if err != nil && listing.FetchedAt.IsZero() {
		return errorResult(err), nil
	}
	if err != nil {
		s.logger.WithError(err).WithField("path", path).Warn("Serving retained listing")
	}
	return jsonResult(listing)
}

func (s *Server) handleMkdir(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	paths, err := request.RequireStringSlice("paths")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("paths parameter error: %v", err)), nil
	}
	return s.submit(ctx, models.OperationRequest{Kind: models.OpMkdir, Sources: paths})
}

func (s *Server) handleRename(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("path parameter error: %v", err)), nil
	}
	newName, err := request.RequireString("new_name")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("new_name parameter error: %v", err)), nil
	}
	return s.submit(ctx, models.OperationRequest{Kind: models.OpRename, Sources: []string{path}, NewName: newName})
}

func (s *Server) handleMove(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	paths, err := request.RequireStringSlice("paths")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("paths parameter error: %v", err)), nil
	}
	dest, err := request.RequireString("destination")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("destination parameter error: %v", err)), nil
	}
	return s.submit(ctx, models.OperationRequest{Kind: models.OpMove, Sources: paths, Destination: dest})
}

func (s *Server) handleDelete(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	paths, err := request.RequireStringSlice("paths")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("paths parameter error: %v", err)), nil
	}
	return s.submit(ctx, models.OperationRequest{Kind: models.OpDelete, Sources: paths})
}

func (s *Server) handleMediaInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	paths, err := request.RequireStringSlice("paths")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("paths parameter error: %v", err)), nil
	}
	return s.submit(ctx, models.OperationRequest{Kind: models.OpMediaInfo, Sources: paths})
}

func (s *Server) handleTransfers(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(models.TransfersResponse{Transfers: s.app.Monitor.Snapshot()})
}

// submit runs req and returns the outcome as JSON. Failures are reported as
// tool errors carrying the outcome so partial results stay visible.
func (s *Server) submit(ctx context.Context, req models.OperationRequest) (*mcp.CallToolResult, error) {
	outcome, err := s.app.Dispatcher.Submit(ctx, req)
	if err == nil {
		return jsonResult(outcome)
	}

	data, merr := json.MarshalIndent(models.OperationResponse{
		Outcome: outcome,
		Error: &models.ErrorResponse{
			Error:      err.Error(),
			Kind:       models.KindOf(err),
			Diagnostic: models.DiagnosticOf(err),
		},
	}, "", "  ")
	if merr != nil {
		return nil, merr
	}
	return mcp.NewToolResultError(string(data)), nil
}

func errorResult(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", models.KindOf(err), err))
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
