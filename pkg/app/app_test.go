package app

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denysvitali/megacmd-runtime-go/internal/models"
	"github.com/denysvitali/megacmd-runtime-go/pkg/config"
	"github.com/denysvitali/megacmd-runtime-go/pkg/executor"
	"github.com/denysvitali/megacmd-runtime-go/pkg/executor/executortest"
	"github.com/denysvitali/megacmd-runtime-go/pkg/session"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func fakeTool(_ context.Context, call executortest.Call) (*executor.Result, error) {
	switch call.Command {
	case "whoami":
		return executortest.OK("Account e-mail: me@example.com\n")
	case "df":
		return executortest.OK("Cloud drive: 10 in 1 file(s) and 0 folder(s)\nUSED STORAGE: 10 1.00% of 1000\n")
	}
	return executortest.OK("")
}

func TestOpenPerformsLoginOnce(t *testing.T) {
	cfg := config.Default()
	cfg.Monitor.Enabled = false
	runner := executortest.New(fakeTool)

	rt, err := NewWithRunner(cfg, quietLogger(), runner, session.NewGate())
	require.NoError(t, err)

	require.NoError(t, rt.Start(context.Background()))
	require.NoError(t, rt.Open(context.Background()))
	defer rt.Close()

	assert.Equal(t, 1, runner.Count("whoami"))
	assert.Equal(t, "me@example.com", rt.Gate.Account())
}

func TestNewRejectsUnknownPolicy(t *testing.T) {
	cfg := config.Default()
	cfg.Dispatcher.Policy = "yolo"
	_, err := NewWithRunner(cfg, quietLogger(), executortest.New(fakeTool), session.NewGate())
	assert.Error(t, err)
}

func TestUsage(t *testing.T) {
	rt, err := NewWithRunner(config.Default(), quietLogger(), executortest.New(fakeTool), session.ReadyGate("me@example.com"))
	require.NoError(t, err)

	usage, err := rt.Usage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1000), usage.TotalBytes)

	rt, err = NewWithRunner(config.Default(), quietLogger(), executortest.New(fakeTool), session.NewGate())
	require.NoError(t, err)
	_, err = rt.Usage(context.Background())
	assert.ErrorIs(t, err, models.ErrNotReady)
}

func TestServerInfoWithoutExecutor(t *testing.T) {
	rt, err := NewWithRunner(config.Default(), quietLogger(), executortest.New(fakeTool), session.ReadyGate("me@example.com"))
	require.NoError(t, err)

	info := rt.ServerInfo(context.Background())
	assert.True(t, info.Ready)
	assert.True(t, info.DaemonRunning)
	assert.Equal(t, config.PolicySerial, info.Policy)
}
