package executor

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/denysvitali/megacmd-runtime-go/pkg/config"
)

// Result is the captured outcome of one finished tool process
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Runner launches one external tool process per call
type Runner interface {
	Run(ctx context.Context, command string, args []string, timeout time.Duration) (*Result, error)
}

// DaemonProbe reports whether the tool's background server is alive
type DaemonProbe interface {
	DaemonRunning(ctx context.Context) (bool, error)
}

// Executor runs MEGAcmd subcommands as subprocesses.
// It shares no state between calls apart from remembering executables
// that could not be resolved.
type Executor struct {
	cfg       config.ToolConfig
	logger    *logrus.Logger
	tracer    trace.Tracer
	probe     DaemonProbe
	startTime time.Time

	mu      sync.RWMutex
	missing map[string]error
	lastRun time.Time
}

// New creates a new executor
func New(cfg config.ToolConfig, logger *logrus.Logger) *Executor {
	e := &Executor{
		cfg:       cfg,
		logger:    logger,
		tracer:    otel.Tracer("megacmd-runtime"),
		startTime: time.Now(),
		lastRun:   time.Now(),
		missing:   make(map[string]error),
	}
	e.probe = &processProbe{name: cfg.DaemonProcess}
	return e
}

// WithProbe replaces the daemon probe
func (e *Executor) WithProbe(p DaemonProbe) *Executor {
	e.probe = p
	return e
}

// DaemonRunning proxies the configured probe
func (e *Executor) DaemonRunning(ctx context.Context) (bool, error) {
	if e.probe == nil {
		return true, nil
	}
	return e.probe.DaemonRunning(ctx)
}

// Timeout returns the default invocation timeout
func (e *Executor) Timeout() time.Duration {
	return e.cfg.Timeout
}

// Uptime returns how long the executor has existed and how long it has been idle
func (e *Executor) Uptime() (uptime, idle time.Duration) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	now := time.Now()
	return now.Sub(e.startTime), now.Sub(e.lastRun)
}
