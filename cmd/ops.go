package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/denysvitali/megacmd-runtime-go/internal/models"
	"github.com/denysvitali/megacmd-runtime-go/pkg/app"
)

var lsCmd = &cobra.Command{
	Use:   "ls [remote-path]",
	Short: "List a remote directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "/"
		if len(args) == 1 {
			path = args[0]
		}
		rt, err := openRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		listing, err := rt.Cache.List(cmd.Context(), path, true)
		if err != nil {
			return err
		}
		if jsonOutput(cmd) {
			return printJSON(listing)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		for _, n := range listing.Nodes {
			kind, size := "-", humanBytes(n.Size)
			if n.IsDir() {
				kind, size = "d", ""
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", kind, size, n.ModifiedAt.Local().Format(time.DateTime), n.Name)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if listing.Skipped > 0 {
			GetLogger().Warnf("%d line(s) of tool output could not be parsed", listing.Skipped)
		}
		return nil
	},
}

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <remote-path>...",
	Short: "Create remote directories, including parents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return submit(cmd, models.OperationRequest{Kind: models.OpMkdir, Sources: args})
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <remote-path>...",
	Short: "Delete remote files or directories",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return submitWith(cmd, models.OperationRequest{Kind: models.OpDelete, Sources: args}, warmParents)
	},
}

var mvCmd = &cobra.Command{
	Use:   "mv <remote-path>... <remote-dir>",
	Short: "Move remote paths into a remote directory",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := models.OperationRequest{
			Kind:        models.OpMove,
			Sources:     args[:len(args)-1],
			Destination: args[len(args)-1],
		}
		return submitWith(cmd, req, func(ctx context.Context, rt *app.App, req models.OperationRequest) {
			warmParents(ctx, rt, models.OperationRequest{Sources: []string{req.Destination}})
		})
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename <remote-path> <new-name>",
	Short: "Rename a remote file or directory in place",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := models.OperationRequest{Kind: models.OpRename, Sources: args[:1], NewName: args[1]}
		return submitWith(cmd, req, warmParents)
	},
}

var getCmd = &cobra.Command{
	Use:   "get <remote-path>... <local-dir>",
	Short: "Download remote paths into a local directory",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		merge, _ := cmd.Flags().GetBool("merge")
		return submit(cmd, models.OperationRequest{
			Kind:      models.OpDownload,
			Sources:   args[:len(args)-1],
			LocalPath: args[len(args)-1],
			Merge:     merge,
		})
	},
}

var putCmd = &cobra.Command{
	Use:   "put <local-path>... <remote-dir>",
	Short: "Queue local files for upload into a remote directory",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return submit(cmd, models.OperationRequest{
			Kind:        models.OpUpload,
			Sources:     args[:len(args)-1],
			Destination: args[len(args)-1],
		})
	},
}

var mediainfoCmd = &cobra.Command{
	Use:   "mediainfo <remote-path>...",
	Short: "Show resolution, frame rate and duration of remote media",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return submit(cmd, models.OperationRequest{Kind: models.OpMediaInfo, Sources: args})
	},
}

func init() {
	getCmd.Flags().BoolP("merge", "m", false, "Merge downloaded folders into existing local folders")
	rootCmd.AddCommand(lsCmd, mkdirCmd, rmCmd, mvCmd, renameCmd, getCmd, putCmd, mediainfoCmd)
}

func submit(cmd *cobra.Command, req models.OperationRequest) error {
	return submitWith(cmd, req, nil)
}

// submitWith runs prepare against the fresh runtime before submitting,
// which lets commands seed the directory cache.
func submitWith(cmd *cobra.Command, req models.OperationRequest, prepare func(context.Context, *app.App, models.OperationRequest)) error {
	rt, err := openRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	if prepare != nil {
		prepare(cmd.Context(), rt, req)
	}
	outcome, err := rt.Dispatcher.Submit(cmd.Context(), req)
	return printOutcome(cmd, outcome, err)
}

// warmParents lists the parent of every source so the dispatcher knows node
// kinds and can detect name collisions before spawning anything.
func warmParents(ctx context.Context, rt *app.App, req models.OperationRequest) {
	seen := make(map[string]bool)
	for _, src := range req.Sources {
		parent := models.ParentPath(src)
		if seen[parent] {
			continue
		}
		seen[parent] = true
		if _, err := rt.Cache.List(ctx, parent, false); err != nil {
			GetLogger().WithError(err).WithField("path", parent).Debug("Could not list parent")
		}
	}
}
