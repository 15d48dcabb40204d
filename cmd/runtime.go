package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/denysvitali/megacmd-runtime-go/internal/models"
	"github.com/denysvitali/megacmd-runtime-go/pkg/app"
	"github.com/denysvitali/megacmd-runtime-go/pkg/config"
)

// openRuntime loads configuration, builds the runtime and performs the
// login check. Callers must Close the returned App.
func openRuntime(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	rt, err := app.New(cfg, GetLogger())
	if err != nil {
		return nil, err
	}
	if err := rt.Open(ctx); err != nil {
		return nil, fmt.Errorf("login check failed: %w", err)
	}
	return rt, nil
}

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printOutcome renders an operation outcome and passes err through so the
// command exits non-zero on any failure.
func printOutcome(cmd *cobra.Command, outcome *models.OperationOutcome, err error) error {
	if jsonOutput(cmd) {
		resp := models.OperationResponse{Outcome: outcome}
		if err != nil {
			resp.Error = &models.ErrorResponse{Error: err.Error(), Kind: models.KindOf(err), Diagnostic: models.DiagnosticOf(err)}
		}
		if perr := printJSON(resp); perr != nil {
			return perr
		}
		return err
	}
	if outcome == nil {
		return err
	}

	for _, p := range outcome.Succeeded {
		fmt.Printf("✓ %s\n", p)
	}
	for _, f := range outcome.Failed {
		line := fmt.Sprintf("✗ %s: %s", f.Path, f.Kind)
		if d := strings.TrimSpace(f.Diagnostic); d != "" {
			line += ": " + d
		}
		fmt.Println(line)
	}
	for _, p := range outcome.NotAttempted {
		fmt.Printf("- %s (not attempted)\n", p)
	}
	for _, m := range outcome.Media {
		fmt.Printf("%s\t%dx%d\t%.2f fps\t%s\n", m.Path, m.Width, m.Height, m.FPS, m.Playtime)
	}
	return err
}

// humanBytes formats n using binary units
func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
