package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittowopi/internal/logger"
	"github.com/marmos91/dittowopi/pkg/config"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the WOPI host",
		Long: `Run the WOPI host until interrupted.

SIGINT or SIGTERM triggers a graceful shutdown bounded by server.shutdown_timeout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, cfg)
		},
	}
}

// runServe blocks until ctx is cancelled or an adapter fails.
func runServe(ctx context.Context, cfg *config.Config) error {
	if err := configureLogging(cfg.Logging); err != nil {
		return err
	}

	logger.Info("DittoWOPI starting")
	logger.Info("Content store: %s, metadata store: %s", cfg.Content.Type, cfg.Metadata.Type)
	if cfg.Discovery.URL == "" {
		logger.Warn("No discovery URL configured: files have no actions and proofs are not checked")
	}

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("Failed to close stores: %v", err)
		}
	}()

	for _, ad := range a.server.Adapters() {
		logger.Info("%s adapter on port %d", ad.Protocol(), ad.Port())
	}

	if cfg.GC.Enabled {
		collector, err := config.CreateCollector(cfg.GC, a.stores.files, a.stores.content, false)
		if err != nil {
			return err
		}
		collector.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			_ = collector.Stop(stopCtx)
		}()
	}

	err = a.server.Serve(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Info("DittoWOPI stopped")
		return nil
	}
	return err
}

func configureLogging(cfg config.LoggingConfig) error {
	logger.SetLevel(cfg.Level)
	return logger.Configure(cfg.Format, cfg.Output)
}
