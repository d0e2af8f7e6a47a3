package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions, info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), map[string]string{
					"version": info.Version,
					"commit":  info.Commit,
					"date":    info.Date,
					"go":      runtime.Version(),
				})
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "dittowopi %s (commit %s, built %s, %s)\n",
				info.Version, info.Commit, info.Date, runtime.Version())
			return err
		},
	}
}
