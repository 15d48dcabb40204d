package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var dfCmd = &cobra.Command{
	Use:   "df",
	Short: "Show storage usage of the account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		usage, err := rt.Usage(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput(cmd) {
			return printJSON(usage)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		for _, l := range usage.Locations {
			fmt.Fprintf(w, "%s\t%s\t%d files\t%d folders\n", l.Name, humanBytes(l.Bytes), l.Files, l.Folders)
		}
		fmt.Fprintf(w, "Used\t%s of %s\t%.2f%%\t\n", humanBytes(usage.UsedBytes), humanBytes(usage.TotalBytes), usage.UsedPercent)
		if usage.VersionBytes > 0 {
			fmt.Fprintf(w, "Versions\t%s\t\t\n", humanBytes(usage.VersionBytes))
		}
		return w.Flush()
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Print the logged in account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		if jsonOutput(cmd) {
			return printJSON(map[string]string{"account": rt.Gate.Account()})
		}
		fmt.Println(rt.Gate.Account())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dfCmd, whoamiCmd)
}
