// Package app wires the runner, directory cache, dispatcher, transfer
// monitor and selection into one session-scoped runtime shared by the HTTP
// server, the MCP server and the CLI.
package app

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/denysvitali/megacmd-runtime-go/internal/models"
	"github.com/denysvitali/megacmd-runtime-go/pkg/cache"
	"github.com/denysvitali/megacmd-runtime-go/pkg/config"
	"github.com/denysvitali/megacmd-runtime-go/pkg/dispatcher"
	"github.com/denysvitali/megacmd-runtime-go/pkg/executor"
	"github.com/denysvitali/megacmd-runtime-go/pkg/megacmd"
	"github.com/denysvitali/megacmd-runtime-go/pkg/selection"
	"github.com/denysvitali/megacmd-runtime-go/pkg/session"
	"github.com/denysvitali/megacmd-runtime-go/pkg/transfers"
)

// App holds every component of one session
type App struct {
	Config     *config.Config
	Logger     *logrus.Logger
	Runner     executor.Runner
	Executor   *executor.Executor
	Gate       *session.Gate
	Cache      *cache.Cache
	Dispatcher *dispatcher.Dispatcher
	Monitor    *transfers.Monitor
	Selection  *selection.Coordinator
}

// New builds an App around the real subprocess executor
func New(cfg *config.Config, logger *logrus.Logger) (*App, error) {
	exec := executor.New(cfg.Tool, logger)
	a, err := NewWithRunner(cfg, logger, exec, session.NewGate())
	if err != nil {
		return nil, err
	}
	a.Executor = exec
	return a, nil
}

// NewWithRunner builds an App around any Runner. The gate may already be
// open, which is how tests skip the login check.
func NewWithRunner(cfg *config.Config, logger *logrus.Logger, runner executor.Runner, gate *session.Gate) (*App, error) {
	c := cache.New(runner, gate, cfg.Tool.ListTimeout, logger)
	d, err := dispatcher.New(runner, c, gate, cfg.Dispatcher.Policy, cfg.Tool.Timeout, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}
	return &App{
		Config:     cfg,
		Logger:     logger,
		Runner:     runner,
		Gate:       gate,
		Cache:      c,
		Dispatcher: d,
		Monitor:    transfers.New(runner, gate, cfg.Monitor.PollInterval, cfg.Tool.Timeout, logger),
		Selection:  selection.New(),
	}, nil
}

// Open performs the login check and opens the gate. It is a no-op when the
// gate is already open.
func (a *App) Open(ctx context.Context) error {
	if a.Gate.IsReady() {
		return nil
	}
	return session.Open(ctx, a.Gate, a.Runner, a.Config.Tool.Timeout, a.Logger)
}

// Start opens the session and, when enabled, starts transfer polling
func (a *App) Start(ctx context.Context) error {
	if err := a.Open(ctx); err != nil {
		return err
	}
	if a.Config.Monitor.Enabled {
		a.Monitor.Start(ctx)
	}
	return nil
}

// Close stops background work
func (a *App) Close() {
	a.Monitor.Stop()
}

// DaemonRunning reports the daemon state, or true when no probe is wired
func (a *App) DaemonRunning(ctx context.Context) bool {
	if a.Executor == nil {
		return true
	}
	ok, err := a.Executor.DaemonRunning(ctx)
	if err != nil {
		a.Logger.WithError(err).Debug("Daemon probe failed")
		return false
	}
	return ok
}

// Usage runs df and parses the storage overview
func (a *App) Usage(ctx context.Context) (models.StorageOverview, error) {
	if err := a.Gate.Err(); err != nil {
		return models.StorageOverview{}, err
	}
	inv := megacmd.DiskFree()
	res, err := a.Runner.Run(ctx, inv.Command, inv.Args, a.Config.Tool.Timeout)
	if err != nil {
		return models.StorageOverview{}, err
	}
	if opErr := megacmd.ResultError(inv, res); opErr != nil {
		return models.StorageOverview{}, opErr
	}
	return megacmd.ParseDiskFree(res.Stdout)
}

// ServerInfo summarises runtime state for the HTTP surface
func (a *App) ServerInfo(ctx context.Context) models.ServerInfo {
	info := models.ServerInfo{
		Account: a.Gate.Account(),
		Ready:   a.Gate.IsReady(),
		Policy:  a.Dispatcher.Policy(),
	}
	info.DaemonRunning = a.DaemonRunning(ctx)
	if a.Executor != nil {
		uptime, idle := a.Executor.Uptime()
		info.Uptime = uptime.Seconds()
		info.IdleTime = idle.Seconds()
		info.Resources = a.Executor.GetSystemResources(ctx)
	}
	return info
}
