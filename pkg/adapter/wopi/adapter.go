// Package wopi exposes the WOPI handler over HTTP.
//
// The adapter owns the listener, the chi router and its middleware chain
// (request ids, optional forwarded-address rewriting, request logging,
// per-client rate limiting) and the /healthz probe. Every other path is
// handed to the WOPI handler, which classifies it itself so hosts can mount
// the API under any base path.
package wopi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/net/netutil"

	"github.com/marmos91/dittowopi/internal/logger"
	"github.com/marmos91/dittowopi/internal/ratelimiter"
)

// HealthChecker reports backend reachability. Metadata stores implement it.
type HealthChecker interface {
	Healthcheck(ctx context.Context) error
}

// Options carries the collaborators the adapter serves.
type Options struct {
	// Handler serves WOPI requests. Required.
	Handler http.Handler

	// Health backs /healthz. Optional; nil always reports healthy.
	Health HealthChecker

	// TrustForwardedHeaders rewrites RemoteAddr from X-Forwarded-For /
	// X-Real-IP so rate limiting and logs see the real client.
	TrustForwardedHeaders bool
}

// WOPIAdapter implements adapter.Adapter for the WOPI REST endpoint.
//
// Shutdown flow:
//  1. Context cancelled or Stop() called
//  2. http.Server.Shutdown closes the listener and waits for in-flight
//     requests (up to ShutdownTimeout)
//  3. Remaining connections are closed
//
// Thread safety:
// All methods are safe for concurrent use.
type WOPIAdapter struct {
	config  WOPIConfig
	router  chi.Router
	server  *http.Server
	limiter *ratelimiter.Limiter

	mu       sync.Mutex
	listener net.Listener

	shutdownOnce sync.Once
	shutdownErr  error
}

// New creates a WOPIAdapter. Zero values in config are replaced with
// defaults.
func New(config WOPIConfig, opts Options) (*WOPIAdapter, error) {
	if opts.Handler == nil {
		return nil, errors.New("wopi adapter: handler is required")
	}

	config.applyDefaults()
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid WOPI config: %w", err)
	}

	limiter, err := ratelimiter.New(ratelimiter.Config{
		RequestsPerSecond: config.RateLimit.RequestsPerSecond,
		Burst:             config.RateLimit.Burst,
		MaxKeys:           config.RateLimit.MaxClients,
	})
	if err != nil {
		return nil, fmt.Errorf("create rate limiter: %w", err)
	}

	a := &WOPIAdapter{config: config, limiter: limiter}
	a.router = a.routes(opts)
	a.server = &http.Server{
		Addr:              net.JoinHostPort(config.BindAddress, strconv.Itoa(config.Port)),
		Handler:           a.router,
		ReadHeaderTimeout: config.ReadHeaderTimeout,
		ReadTimeout:       config.ReadTimeout,
		WriteTimeout:      config.WriteTimeout,
		IdleTimeout:       config.IdleTimeout,
	}

	if limiter.Enabled() {
		logger.Debug("WOPI rate limit: %.2f req/s per client", config.RateLimit.RequestsPerSecond)
	}
	return a, nil
}

func (a *WOPIAdapter) routes(opts Options) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if opts.TrustForwardedHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(requestLogger)

	r.Get("/healthz", healthHandler(opts.Health))

	r.Group(func(r chi.Router) {
		r.Use(rateLimit(a.limiter))
		r.Handle("/*", opts.Handler)
	})

	return r
}

func healthHandler(health HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			if err := health.Healthcheck(ctx); err != nil {
				logger.Warn("Healthcheck failed: %v", err)
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("unhealthy\n"))
				return
			}
		}
		_, _ = w.Write([]byte("ok\n"))
	}
}

// Handler returns the fully wired router.
func (a *WOPIAdapter) Handler() http.Handler {
	return a.router
}

// Serve listens on the configured port and blocks until ctx is cancelled or
// the server fails.
func (a *WOPIAdapter) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to create WOPI listener on %s: %w", a.server.Addr, err)
	}
	if a.config.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, a.config.MaxConnections)
	}

	a.mu.Lock()
	a.listener = ln
	a.mu.Unlock()

	logger.Info("WOPI server listening on %s (tls=%t)", ln.Addr(), a.config.TLSEnabled())
	logger.Debug("WOPI config: max_connections=%d read_timeout=%v write_timeout=%v idle_timeout=%v",
		a.config.MaxConnections, a.config.ReadTimeout, a.config.WriteTimeout, a.config.IdleTimeout)

	errChan := make(chan error, 1)
	go func() {
		var err error
		if a.config.TLSEnabled() {
			err = a.server.ServeTLS(ln, a.config.TLSCertFile, a.config.TLSKeyFile)
		} else {
			err = a.server.Serve(ln)
		}
		errChan <- err
	}()

	select {
	case <-ctx.Done():
		logger.Info("WOPI shutdown signal received: %v", ctx.Err())
		stopCtx, cancel := context.WithTimeout(context.Background(), a.config.ShutdownTimeout)
		defer cancel()
		if err := a.Stop(stopCtx); err != nil {
			return err
		}
		<-errChan
		return ctx.Err()

	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("WOPI server failed: %w", err)
	}
}

// Stop gracefully shuts the server down. Safe to call more than once.
func (a *WOPIAdapter) Stop(ctx context.Context) error {
	a.shutdownOnce.Do(func() {
		logger.Debug("WOPI shutdown initiated")
		if err := a.server.Shutdown(ctx); err != nil {
			logger.Warn("WOPI graceful shutdown incomplete, closing connections: %v", err)
			_ = a.server.Close()
			a.shutdownErr = fmt.Errorf("WOPI shutdown: %w", err)
			return
		}
		logger.Info("WOPI server stopped gracefully")
	})
	return a.shutdownErr
}

// Addr returns the bound listener address, or nil before Serve.
func (a *WOPIAdapter) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return nil
	}
	return a.listener.Addr()
}

// Protocol implements adapter.Adapter.
func (a *WOPIAdapter) Protocol() string {
	return "WOPI"
}

// Port implements adapter.Adapter.
func (a *WOPIAdapter) Port() int {
	return a.config.Port
}
