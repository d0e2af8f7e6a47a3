package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/marmos91/dittowopi/internal/logger"
	"github.com/marmos91/dittowopi/internal/protocol/wopi"
	"github.com/marmos91/dittowopi/internal/protocol/wopi/engine"
	"github.com/marmos91/dittowopi/pkg/auth"
	"github.com/marmos91/dittowopi/pkg/config"
	"github.com/marmos91/dittowopi/pkg/server"
	"github.com/marmos91/dittowopi/pkg/store/content"
	"github.com/marmos91/dittowopi/pkg/store/metadata"
)

// stores bundles the two backends every command opens.
type stores struct {
	files   metadata.MetadataStore
	content content.ContentStore
}

// Close releases the metadata backend. Content stores hold no resources.
func (s *stores) Close() error {
	return s.files.Close()
}

// openStores creates the configured metadata and content stores. m may be
// a zero MetricsResult for uninstrumented stores.
func openStores(ctx context.Context, cfg *config.Config, m *config.MetricsResult) (*stores, error) {
	files, err := config.CreateMetadataStore(ctx, cfg.Metadata, m.Metadata)
	if err != nil {
		return nil, err
	}

	blobs, err := config.CreateContentStore(ctx, cfg.Content, m.S3)
	if err != nil {
		return nil, errors.Join(err, files.Close())
	}

	return &stores{files: files, content: blobs}, nil
}

// app is a fully wired WOPI host.
type app struct {
	server *server.DittoServer
	stores *stores
	issuer *auth.Issuer
}

// Close releases the stores.
func (a *app) Close() error {
	return a.stores.Close()
}

// buildApp wires stores, discovery, tokens, the engine and the adapters
// from cfg.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	m := config.InitializeMetrics(cfg)

	st, err := openStores(ctx, cfg, m)
	if err != nil {
		return nil, err
	}

	a, err := wireApp(ctx, cfg, m, st)
	if err != nil {
		return nil, errors.Join(err, st.Close())
	}
	return a, nil
}

func wireApp(ctx context.Context, cfg *config.Config, m *config.MetricsResult, st *stores) (*app, error) {
	issuer, err := config.CreateIssuer(cfg.Auth)
	if err != nil {
		return nil, err
	}

	disc, err := config.CreateDiscovery(cfg.Discovery, m.Cache)
	if err != nil {
		return nil, err
	}
	if disc != nil && cfg.Discovery.WarmOnStart {
		// Not fatal: the caches retry on first use
		if err := disc.Warm(ctx); err != nil {
			logger.Warn("Discovery warm-up failed: %v", err)
		} else {
			logger.Info("Discovery document loaded from %s", cfg.Discovery.URL)
		}
	}

	engineCfg := engine.Config{
		Files:                  st.files,
		Content:                st.content,
		Tokens:                 issuer,
		LockDuration:           cfg.Host.LockDuration,
		ConflictRetries:        cfg.Host.ConflictRetries,
		HostViewURLTemplate:    cfg.Host.ViewURLTemplate,
		HostEditURLTemplate:    cfg.Host.EditURLTemplate,
		BreadcrumbBrandName:    cfg.Host.BreadcrumbBrandName,
		BreadcrumbBrandURL:     cfg.Host.BreadcrumbBrandURL,
		AllowErrorReportPrompt: cfg.Host.AllowErrorReportPrompt,
		DefaultUserID:          cfg.Host.DefaultUserID,
		DefaultUserName:        cfg.Host.DefaultUserName,
		Metrics:                m.WOPI,
	}
	// A nil *discovery.Service must not end up inside the interface
	if disc != nil {
		engineCfg.Actions = disc
	}

	eng, err := engine.New(engineCfg)
	if err != nil {
		return nil, err
	}

	handlerCfg := wopi.HandlerConfig{
		Engine:                eng,
		Tokens:                issuer,
		RequireToken:          cfg.Auth.RequireToken,
		ServerVersion:         cfg.Server.Version,
		MachineName:           cfg.Server.MachineName,
		MaxBodySize:           cfg.Host.MaxBodySize,
		Scheme:                cfg.Host.Scheme,
		TrustForwardedHeaders: cfg.Host.TrustForwardedHeaders,
		Metrics:               m.WOPI,
	}

	validator, err := config.CreateProofValidator(cfg.Proof, disc)
	if err != nil {
		return nil, err
	}
	if validator != nil {
		handlerCfg.Proof = validator
	}

	handler, err := wopi.NewHandler(handlerCfg)
	if err != nil {
		return nil, err
	}

	adapters, err := config.CreateAdapters(cfg, handler, st.files, m.Server)
	if err != nil {
		return nil, err
	}

	srv := server.New(server.WithStopTimeout(cfg.Server.ShutdownTimeout))
	for _, a := range adapters {
		if err := srv.AddAdapter(a); err != nil {
			return nil, fmt.Errorf("failed to add %s adapter: %w", a.Protocol(), err)
		}
	}

	return &app{server: srv, stores: st, issuer: issuer}, nil
}
