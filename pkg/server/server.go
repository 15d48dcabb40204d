package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/denysvitali/megacmd-runtime-go/pkg/app"
	"github.com/denysvitali/megacmd-runtime-go/pkg/config"
	"github.com/denysvitali/megacmd-runtime-go/pkg/metrics"
)

// Server represents the HTTP server
type Server struct {
	config *config.Config
	logger *logrus.Logger
	app    *app.App
	engine *gin.Engine
	server *http.Server
}

// New creates a new server instance around an assembled runtime
func New(rt *app.App) (*Server, error) {
	if rt == nil {
		return nil, fmt.Errorf("runtime is required")
	}
	cfg, logger := rt.Config, rt.Logger

	// Set gin mode based on log level
	if logger.Level == logrus.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(ginLogger(logger))

	if cfg.Telemetry.Enabled {
		engine.Use(otelgin.Middleware("megacmd-runtime"))
	}

	engine.Use(corsMiddleware())

	if cfg.Server.SessionAPIKey != "" {
		engine.Use(authMiddleware(cfg.Server.SessionAPIKey))
	}

	server := &Server{
		config: cfg,
		logger: logger,
		app:    rt,
		engine: engine,
	}
	server.setupRoutes()

	return server, nil
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Infof("Starting server on port %d", s.config.Server.Port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Engine returns the gin engine for testing purposes
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) setupRoutes() {
	s.engine.GET("/alive", s.handleAlive)
	s.engine.GET("/server_info", s.handleServerInfo)

	s.engine.GET("/ls", s.handleList)
	s.engine.POST("/operations", s.handleSubmit)

	sel := s.engine.Group("/selection")
	sel.GET("", s.handleSelection)
	sel.DELETE("", s.handleClearSelection)
	sel.POST("/mark", s.handleMark)
	sel.POST("/unmark", s.handleUnmark)
	sel.POST("/toggle", s.handleToggle)
	sel.POST("/apply", s.handleApplySelection)

	tr := s.engine.Group("/transfers")
	tr.GET("", s.handleTransfers)
	tr.GET("/stream", s.handleTransferStream)
	tr.POST("/:id/cancel", s.handleTransferControl("cancel"))
	tr.POST("/:id/pause", s.handleTransferControl("pause"))
	tr.POST("/:id/resume", s.handleTransferControl("resume"))

	s.engine.GET("/usage", s.handleUsage)

	if s.config.Metrics.Enabled {
		s.engine.GET("/metrics", gin.WrapH(metrics.Handler()))
	}
}

// ginLogger creates a gin logger middleware using logrus
func ginLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Request.Method, route, statusCode)

		entry := logger.WithFields(logrus.Fields{
			"status":     statusCode,
			"method":     c.Request.Method,
			"path":       path,
			"ip":         c.ClientIP(),
			"latency":    latency,
			"user_agent": c.Request.UserAgent(),
		})

		if raw != "" {
			entry = entry.WithField("query", raw)
		}

		if statusCode >= 500 {
			entry.Error("Server error")
		} else if statusCode >= 400 {
			entry.Warn("Client error")
		} else {
			entry.Info("Request completed")
		}
	}
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, X-Session-API-Key")
		c.Header("Access-Control-Allow-Credentials", "true")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// authMiddleware validates API key
func authMiddleware(expectedAPIKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader("X-Session-API-Key")
		if apiKey != expectedAPIKey {
			c.JSON(http.StatusForbidden, gin.H{"error": "Invalid API Key"})
			c.Abort()
			return
		}
		c.Next()
	}
}
