package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/denysvitali/megacmd-runtime-go/internal/models"
	"github.com/denysvitali/megacmd-runtime-go/pkg/telemetry"
)

func (s *Server) handleAlive(c *gin.Context) {
	if !s.app.Gate.IsReady() {
		c.JSON(http.StatusOK, gin.H{"status": "not ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleServerInfo(c *gin.Context) {
	info := s.app.ServerInfo(c.Request.Context())
	s.logger.Debugf("Server info endpoint response: uptime=%.2fs, idle_time=%.2fs", info.Uptime, info.IdleTime)
	c.JSON(http.StatusOK, info)
}

func (s *Server) handleList(c *gin.Context) {
	tracer := otel.Tracer("megacmd-runtime")
	ctx, span := tracer.Start(c.Request.Context(), "handle_list")
	defer span.End()

	path := c.DefaultQuery("path", "/")
	refresh, _ := strconv.ParseBool(c.Query("refresh"))
	span.SetAttributes(attribute.String("path", path), attribute.Bool("refresh", refresh))

	listing, err := s.app.Cache.List(ctx, path, refresh)
	if err != nil {
		span.RecordError(err)
		if listing.FetchedAt.IsZero() {
			s.respondError(c, err)
			return
		}
		// serve the retained listing and report why it could not be refreshed
		c.JSON(http.StatusOK, models.ListResponse{Listing: listing, Error: errorResponse(err)})
		return
	}
	c.JSON(http.StatusOK, models.ListResponse{Listing: listing})
}

func (s *Server) handleSubmit(c *gin.Context) {
	tracer := otel.Tracer("megacmd-runtime")
	ctx, span := tracer.Start(c.Request.Context(), "handle_submit")
	defer span.End()

	var req models.OperationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		c.JSON(http.StatusBadRequest, models.OperationResponse{Error: &models.ErrorResponse{
			Error:     err.Error(),
			Kind:      models.ErrInvalidRequest,
			Timestamp: time.Now(),
		}})
		return
	}
	span.SetAttributes(attribute.String("operation.kind", string(req.Kind)))

	if s.config.Telemetry.Enabled {
		telemetry.ReportJSON(ctx, s.logger, "operation_request", req)
	}

	outcome, err := s.app.Dispatcher.Submit(ctx, req)
	s.respondOutcome(c, outcome, err)
}

func (s *Server) handleSelection(c *gin.Context) {
	c.JSON(http.StatusOK, s.selectionResponse())
}

func (s *Server) handleClearSelection(c *gin.Context) {
	s.app.Selection.Clear()
	c.JSON(http.StatusOK, s.selectionResponse())
}

func (s *Server) handleMark(c *gin.Context) {
	req, ok := bindSelection(c)
	if !ok {
		return
	}
	s.app.Selection.Mark(req.Paths...)
	c.JSON(http.StatusOK, s.selectionResponse())
}

func (s *Server) handleUnmark(c *gin.Context) {
	req, ok := bindSelection(c)
	if !ok {
		return
	}
	s.app.Selection.Unmark(req.Paths...)
	c.JSON(http.StatusOK, s.selectionResponse())
}

func (s *Server) handleToggle(c *gin.Context) {
	req, ok := bindSelection(c)
	if !ok {
		return
	}
	for _, p := range req.Paths {
		s.app.Selection.Toggle(p)
	}
	c.JSON(http.StatusOK, s.selectionResponse())
}

func (s *Server) handleApplySelection(c *gin.Context) {
	tracer := otel.Tracer("megacmd-runtime")
	ctx, span := tracer.Start(c.Request.Context(), "handle_apply_selection")
	defer span.End()

	var req models.ApplySelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		c.JSON(http.StatusBadRequest, models.OperationResponse{Error: &models.ErrorResponse{
			Error:     err.Error(),
			Kind:      models.ErrInvalidRequest,
			Timestamp: time.Now(),
		}})
		return
	}

	outcome, err := s.app.Selection.Apply(ctx, s.app.Cache, s.app.Dispatcher, req, s.logger)
	s.respondOutcome(c, outcome, err)
}

func (s *Server) handleTransfers(c *gin.Context) {
	c.JSON(http.StatusOK, models.TransfersResponse{Transfers: s.app.Monitor.Snapshot()})
}

// handleTransferStream pushes the full transfer set after every poll as
// server-sent events until the client goes away.
func (s *Server) handleTransferStream(c *gin.Context) {
	ch, unsubscribe := s.app.Monitor.Subscribe(8)
	defer unsubscribe()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	c.SSEvent("transfers", s.app.Monitor.Snapshot())
	c.Writer.Flush()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case snapshot, ok := <-ch:
			if !ok {
				return
			}
			c.SSEvent("transfers", snapshot)
			c.Writer.Flush()
		}
	}
}

func (s *Server) handleTransferControl(action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		ctx := c.Request.Context()

		var err error
		switch action {
		case "cancel":
			err = s.app.Monitor.Cancel(ctx, id)
		case "pause":
			err = s.app.Monitor.Pause(ctx, id)
		case "resume":
			err = s.app.Monitor.Resume(ctx, id)
		}
		if err != nil {
			s.respondError(c, err)
			return
		}

		rec, _ := s.app.Monitor.Get(id)
		c.JSON(http.StatusOK, gin.H{"id": id, "action": action, "transfer": rec})
	}
}

func (s *Server) handleUsage(c *gin.Context) {
	usage, err := s.app.Usage(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, usage)
}

func (s *Server) selectionResponse() models.SelectionResponse {
	paths := s.app.Selection.Active()
	return models.SelectionResponse{Paths: paths, Count: len(paths)}
}

func bindSelection(c *gin.Context) (models.SelectionRequest, bool) {
	var req models.SelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return req, false
	}
	if len(req.Paths) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "paths must not be empty"})
		return req, false
	}
	return req, true
}

// respondOutcome writes the outcome together with the error, if any, so a
// partial failure still reports which paths succeeded.
func (s *Server) respondOutcome(c *gin.Context, outcome *models.OperationOutcome, err error) {
	if err != nil {
		s.logger.WithError(err).Warn("Operation failed")
		c.JSON(statusFor(err), models.OperationResponse{Outcome: outcome, Error: errorResponse(err)})
		return
	}
	c.JSON(http.StatusOK, models.OperationResponse{Outcome: outcome})
}

func (s *Server) respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), errorResponse(err))
}

func errorResponse(err error) *models.ErrorResponse {
	return &models.ErrorResponse{
		Error:      err.Error(),
		Kind:       models.KindOf(err),
		Diagnostic: models.DiagnosticOf(err),
		Timestamp:  time.Now(),
	}
}

// statusFor maps an error kind onto an HTTP status
func statusFor(err error) int {
	switch models.KindOf(err) {
	case models.ErrInvalidRequest:
		return http.StatusBadRequest
	case models.ErrNotFound:
		return http.StatusNotFound
	case models.ErrConflict:
		return http.StatusConflict
	case models.ErrPermissionDenied:
		return http.StatusForbidden
	case models.ErrPartialBatchFailure:
		return http.StatusMultiStatus
	case models.ErrNotReady, models.ErrNetworkUnavailable:
		return http.StatusServiceUnavailable
	case models.ErrTimeout:
		return http.StatusGatewayTimeout
	case models.ErrCancelled:
		return http.StatusRequestTimeout
	case models.ErrParse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
