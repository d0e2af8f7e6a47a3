package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittowopi/pkg/config"
	"github.com/marmos91/dittowopi/pkg/gc"
)

// NewGCCommand creates the gc command.
func NewGCCommand(rootOpts *RootOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Remove stored content no file references",
		Long: `Run one garbage collection over the content store.

Objects are deleted on first sight, so avoid running this while documents
are being added. A running server collects on its own when gc.enabled is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}

			stats, err := runGC(cmd.Context(), cfg, dryRun)
			if err != nil {
				return err
			}

			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), stats)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), stats.Summary())
			return err
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report orphans without deleting them")

	return cmd
}

func runGC(ctx context.Context, cfg *config.Config, dryRun bool) (*gc.Stats, error) {
	st, err := openStores(ctx, cfg, &config.MetricsResult{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = st.Close() }()

	collector, err := config.CreateCollector(cfg.GC, st.files, st.content, dryRun)
	if err != nil {
		return nil, err
	}
	return collector.RunNow(ctx)
}
