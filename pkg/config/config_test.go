package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "mega-", cfg.Tool.Prefix)
	assert.Equal(t, 30*time.Second, cfg.Tool.Timeout)
	assert.Equal(t, PolicySerial, cfg.Dispatcher.Policy)
	assert.Equal(t, 2*time.Second, cfg.Monitor.PollInterval)
	assert.NotEmpty(t, cfg.Server.LocalDir)
}

func TestLoadOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("dispatcher.policy", " Parallel-Subtrees ")
	viper.Set("tool.timeout", "5s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, PolicyParallelSubtrees, cfg.Dispatcher.Policy)
	assert.Equal(t, 5*time.Second, cfg.Tool.Timeout)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Dispatcher.Policy = "yolo"
	assert.ErrorContains(t, cfg.Validate(), "invalid dispatcher policy")

	cfg = Default()
	cfg.Tool.Timeout = 0
	assert.Error(t, cfg.Validate())
}
