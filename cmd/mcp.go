package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/denysvitali/megacmd-runtime-go/pkg/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve MEGA tools to an MCP client over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		// stdout carries the protocol
		GetLogger().SetOutput(os.Stderr)

		ctx := cmd.Context()
		rt, err := openRuntime(ctx)
		if err != nil {
			return err
		}
		if rt.Config.Monitor.Enabled {
			rt.Monitor.Start(ctx)
		}
		defer rt.Close()

		if err := mcp.NewServer(rt, Version).ServeStdio(); err != nil {
			return fmt.Errorf("mcp server: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
