package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Dispatcher policies
const (
	PolicySerial           = "serial"
	PolicyParallelSubtrees = "parallel-subtrees"
)

// Config represents the application configuration
type Config struct {
	Tool       ToolConfig       `mapstructure:"tool"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher"`
	Monitor    MonitorConfig    `mapstructure:"monitor"`
	Server     ServerConfig     `mapstructure:"server"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Log        LogConfig        `mapstructure:"log"`
}

// ToolConfig describes how the external MEGAcmd executables are invoked
type ToolConfig struct {
	Prefix        string        `mapstructure:"prefix"`
	BinDir        string        `mapstructure:"bin_dir"`
	Timeout       time.Duration `mapstructure:"timeout"`
	ListTimeout   time.Duration `mapstructure:"list_timeout"`
	DaemonProcess string        `mapstructure:"daemon_process"`
}

// DispatcherConfig contains the mutation concurrency policy
type DispatcherConfig struct {
	Policy string `mapstructure:"policy"`
}

// MonitorConfig contains transfer polling configuration
type MonitorConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// ServerConfig contains server-specific configuration
type ServerConfig struct {
	Port          int    `mapstructure:"port"`
	SessionAPIKey string `mapstructure:"session_api_key"`
	LocalDir      string `mapstructure:"local_dir"`
}

// TelemetryConfig contains telemetry configuration
type TelemetryConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// MetricsConfig toggles the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// Default returns a configuration populated with defaults only
func Default() *Config {
	return &Config{
		Tool: ToolConfig{
			Prefix:        "mega-",
			Timeout:       30 * time.Second,
			ListTimeout:   20 * time.Second,
			DaemonProcess: "mega-cmd-server",
		},
		Dispatcher: DispatcherConfig{Policy: PolicySerial},
		Monitor:    MonitorConfig{Enabled: true, PollInterval: 2 * time.Second},
		Server:     ServerConfig{Port: 8000},
		Metrics:    MetricsConfig{Enabled: true},
		Log:        LogConfig{Level: "info"},
	}
}

// Load loads the configuration from viper
func Load() (*Config, error) {
	cfg := &Config{}

	setDefaults()

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	if err := postProcess(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults() {
	d := Default()

	viper.SetDefault("tool.prefix", d.Tool.Prefix)
	viper.SetDefault("tool.timeout", d.Tool.Timeout)
	viper.SetDefault("tool.list_timeout", d.Tool.ListTimeout)
	viper.SetDefault("tool.daemon_process", d.Tool.DaemonProcess)

	viper.SetDefault("dispatcher.policy", d.Dispatcher.Policy)

	viper.SetDefault("monitor.enabled", d.Monitor.Enabled)
	viper.SetDefault("monitor.poll_interval", d.Monitor.PollInterval)

	viper.SetDefault("server.port", d.Server.Port)

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("metrics.enabled", d.Metrics.Enabled)

	viper.SetDefault("log.level", d.Log.Level)
	viper.SetDefault("log.json", false)

	_ = viper.BindEnv("server.session_api_key", "SESSION_API_KEY")
	_ = viper.BindEnv("tool.bin_dir", "MEGACMD_BIN_DIR")
	_ = viper.BindEnv("telemetry.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func postProcess(cfg *Config) error {
	if cfg.Server.LocalDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		cfg.Server.LocalDir = wd
	}

	if !filepath.IsAbs(cfg.Server.LocalDir) {
		abs, err := filepath.Abs(cfg.Server.LocalDir)
		if err != nil {
			return err
		}
		cfg.Server.LocalDir = abs
	}

	cfg.Dispatcher.Policy = strings.ToLower(strings.TrimSpace(cfg.Dispatcher.Policy))

	if cfg.Server.SessionAPIKey == "" {
		cfg.Server.SessionAPIKey = os.Getenv("SESSION_API_KEY")
	}

	return nil
}

// Validate rejects configurations the runtime cannot honour
func (c *Config) Validate() error {
	switch c.Dispatcher.Policy {
	case PolicySerial, PolicyParallelSubtrees:
	default:
		return fmt.Errorf("invalid dispatcher policy %q (want %q or %q)",
			c.Dispatcher.Policy, PolicySerial, PolicyParallelSubtrees)
	}
	if c.Tool.Timeout <= 0 {
		return fmt.Errorf("tool.timeout must be positive, got %s", c.Tool.Timeout)
	}
	if c.Tool.ListTimeout <= 0 {
		return fmt.Errorf("tool.list_timeout must be positive, got %s", c.Tool.ListTimeout)
	}
	if c.Monitor.Enabled && c.Monitor.PollInterval <= 0 {
		return fmt.Errorf("monitor.poll_interval must be positive, got %s", c.Monitor.PollInterval)
	}
	return nil
}
