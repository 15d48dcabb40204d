package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/denysvitali/megacmd-runtime-go/pkg/app"
	"github.com/denysvitali/megacmd-runtime-go/pkg/config"
	"github.com/denysvitali/megacmd-runtime-go/pkg/server"
	"github.com/denysvitali/megacmd-runtime-go/pkg/telemetry"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the HTTP server",
	Long: `Start the HTTP server exposing directory listings, operations, the selection
and the transfer queue of the logged in MEGA account.`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().IntP("port", "p", 8000, "Port to listen on")
	serverCmd.Flags().String("session-api-key", "", "API key for session authentication")
	serverCmd.Flags().String("local-dir", "", "Default local directory for downloads")
	serverCmd.Flags().Bool("enable-telemetry", false, "Enable OpenTelemetry tracing")
	serverCmd.Flags().String("otel-endpoint", "", "OpenTelemetry endpoint (if empty, uses auto-export)")
	serverCmd.Flags().Bool("enable-metrics", true, "Expose Prometheus metrics on /metrics")
	serverCmd.Flags().Duration("poll-interval", 2*time.Second, "Transfer poll interval")

	_ = viper.BindPFlag("server.port", serverCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.session_api_key", serverCmd.Flags().Lookup("session-api-key"))
	_ = viper.BindPFlag("server.local_dir", serverCmd.Flags().Lookup("local-dir"))
	_ = viper.BindPFlag("telemetry.enabled", serverCmd.Flags().Lookup("enable-telemetry"))
	_ = viper.BindPFlag("telemetry.endpoint", serverCmd.Flags().Lookup("otel-endpoint"))
	_ = viper.BindPFlag("metrics.enabled", serverCmd.Flags().Lookup("enable-metrics"))
	_ = viper.BindPFlag("monitor.poll_interval", serverCmd.Flags().Lookup("poll-interval"))
}

func runServer(cmd *cobra.Command, args []string) error {
	logger := GetLogger()
	logger.Info("Starting megacmd runtime server")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if cfg.Telemetry.Enabled {
		logger.Info("Initializing OpenTelemetry")
		cleanup, err := telemetry.Initialize(cfg.Telemetry, Version, logger)
		if err != nil {
			logger.Warnf("Failed to initialize telemetry: %v", err)
		} else {
			defer cleanup()
		}
	}

	rt, err := app.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create runtime: %w", err)
	}

	ctx := cmd.Context()

	// The login check runs in the background; until it passes every
	// endpoint that needs the tool reports not_ready.
	go func() {
		if err := rt.Start(ctx); err != nil {
			logger.WithError(err).Error("Session not ready, MEGAcmd operations are disabled")
		}
	}()
	defer rt.Close()

	srv, err := server.New(rt)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("Server shutdown error: %v", err)
			return err
		}

		logger.Info("Server stopped gracefully")
		return nil
	}
}
