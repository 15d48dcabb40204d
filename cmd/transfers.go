package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/denysvitali/megacmd-runtime-go/internal/models"
	"github.com/denysvitali/megacmd-runtime-go/pkg/transfers"
)

var transfersCmd = &cobra.Command{
	Use:   "transfers",
	Short: "Inspect and control the transfer queue",
}

var transfersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queued and active transfers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := rt.Monitor.Poll(cmd.Context()); err != nil {
			return err
		}
		records := rt.Monitor.Snapshot()
		if jsonOutput(cmd) {
			return printJSON(models.TransfersResponse{Transfers: records})
		}
		if len(records) == 0 {
			fmt.Println("No transfers")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tDIR\tSTATE\tPROGRESS\tSOURCE\tDESTINATION")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%5.1f%% of %s\t%s\t%s\n",
				r.ID, r.Direction, r.State, r.Percent(), humanBytes(r.BytesTotal), r.SourcePath, r.DestPath)
		}
		return w.Flush()
	},
}

var transfersWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Show live progress bars until the queue drains",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		interval, _ := cmd.Flags().GetDuration("interval")
		follow, _ := cmd.Flags().GetBool("follow")

		rt, err := openRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		return watchTransfers(cmd.Context(), rt, interval, follow)
	},
}

func transferControlCmd(use, short string, run func(*transfers.Monitor, context.Context, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			var failed int
			for _, id := range args {
				if err := run(rt.Monitor, cmd.Context(), id); err != nil {
					failed++
					fmt.Printf("✗ %s: %v\n", id, err)
					continue
				}
				fmt.Printf("✓ %s\n", id)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d transfer(s) failed", failed, len(args))
			}
			return nil
		},
	}
}

func init() {
	transfersWatchCmd.Flags().Duration("interval", time.Second, "Poll interval")
	transfersWatchCmd.Flags().BoolP("follow", "f", false, "Keep watching after the queue drains")

	transfersCmd.AddCommand(
		transfersListCmd,
		transfersWatchCmd,
		transferControlCmd("cancel", "Cancel transfers", (*transfers.Monitor).Cancel),
		transferControlCmd("pause", "Pause transfers", (*transfers.Monitor).Pause),
		transferControlCmd("resume", "Resume paused transfers", (*transfers.Monitor).Resume),
	)
	rootCmd.AddCommand(transfersCmd)
}
