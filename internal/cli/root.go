// Package cli implements the dittowopi command line.
package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittowopi/pkg/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	// ConfigPath overrides the default config location.
	ConfigPath string

	// Format selects command output: "text" or "json".
	Format string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// BuildInfo is stamped by the linker in cmd/dittowopi.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// NewRootCommand creates the root command for the dittowopi CLI.
func NewRootCommand(info BuildInfo) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "dittowopi",
		Short: "DittoWOPI - a WOPI host for Office Online",
		Long: `DittoWOPI serves documents to WOPI clients such as Office Online.

Documents live in a pluggable content store (filesystem, memory or S3) and
their metadata in a pluggable metadata store (memory, BadgerDB or PostgreSQL).`,
		SilenceUsage:  true,
		SilenceErrors: true, // main prints the error
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "",
		fmt.Sprintf("config file (default %s)", config.GetDefaultConfigPath()))
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	// Add subcommands
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewFileCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))
	cmd.AddCommand(NewGCCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts, info))

	return cmd
}

// loadConfig loads the configuration selected by the global flags.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}
