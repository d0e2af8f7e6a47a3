package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/dittowopi/internal/logger"
	"github.com/marmos91/dittowopi/pkg/adapter"
)

// DefaultStopTimeout bounds each adapter's graceful shutdown.
const DefaultStopTimeout = 30 * time.Second

// DittoServer manages the lifecycle of the adapters that make up a WOPI
// host: the WOPI REST adapter and, when enabled, the metrics endpoint.
//
// Lifecycle:
//  1. Creation: New()
//  2. Registration: AddAdapter() for each adapter
//  3. Startup: Serve() starts all adapters concurrently
//  4. Shutdown: Context cancellation or an adapter failure stops all
//     adapters in reverse registration order
//
// Thread safety:
// DittoServer is safe for concurrent use. Serve() may only be called once.
//
// Example usage:
//
//	srv := server.New()
//	_ = srv.AddAdapter(wopiAdapter)
//
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//
//	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
//	    log.Fatal(err)
//	}
type DittoServer struct {
	// mu protects adapters and served
	mu       sync.Mutex
	adapters []adapter.Adapter
	served   bool

	stopTimeout time.Duration
}

// Option configures a DittoServer.
type Option func(*DittoServer)

// WithStopTimeout overrides DefaultStopTimeout.
func WithStopTimeout(d time.Duration) Option {
	return func(s *DittoServer) {
		if d > 0 {
			s.stopTimeout = d
		}
	}
}

// New creates a DittoServer with no adapters.
func New(opts ...Option) *DittoServer {
	s := &DittoServer{
		adapters:    make([]adapter.Adapter, 0, 2),
		stopTimeout: DefaultStopTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddAdapter registers an adapter.
//
// Returns an error if the adapter is nil, Serve() already ran, or another
// adapter already uses the same protocol or port.
func (s *DittoServer) AddAdapter(a adapter.Adapter) error {
	if a == nil {
		return errors.New("adapter cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.served {
		return errors.New("cannot add adapter after Serve() has been called")
	}

	protocol := a.Protocol()
	port := a.Port()

	for _, existing := range s.adapters {
		if existing.Protocol() == protocol {
			return fmt.Errorf("adapter for protocol %s already registered", protocol)
		}
		if port != 0 && existing.Port() == port {
			return fmt.Errorf("port %d already in use by %s adapter", port, existing.Protocol())
		}
	}

	s.adapters = append(s.adapters, a)
	logger.Info("Registered %s adapter on port %d", protocol, port)
	return nil
}

// Serve starts all registered adapters and blocks until the context is
// cancelled or an adapter fails.
//
// Returns:
//   - ctx.Err() after a graceful shutdown triggered by cancellation
//   - the failing adapter's error (wrapped) if one stops unexpectedly
//   - an error if no adapters are registered or Serve was already called
func (s *DittoServer) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.served {
		s.mu.Unlock()
		return errors.New("Serve() has already been called on this server instance")
	}
	s.served = true
	if len(s.adapters) == 0 {
		s.mu.Unlock()
		return errors.New("no adapters registered; call AddAdapter() before Serve()")
	}
	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	s.mu.Unlock()

	logger.Info("Starting DittoWOPI with %d adapter(s)", len(adapters))

	// Buffered so failing adapters never block.
	errChan := make(chan adapterError, len(adapters))
	var wg sync.WaitGroup

	for _, adp := range adapters {
		wg.Add(1)
		go func(a adapter.Adapter) {
			defer wg.Done()

			protocol := a.Protocol()
			logger.Info("Starting %s adapter on port %d", protocol, a.Port())

			err := a.Serve(ctx)
			switch {
			case err == nil && ctx.Err() == nil:
				// An adapter that returns on its own takes the host down with it.
				errChan <- adapterError{protocol: protocol, err: errors.New("stopped unexpectedly")}
			case err != nil && !errors.Is(err, context.Canceled) && ctx.Err() == nil:
				logger.Error("%s adapter failed: %v", protocol, err)
				errChan <- adapterError{protocol: protocol, err: err}
			default:
				logger.Debug("%s adapter stopped", protocol)
			}
		}(adp)
	}

	var shutdownErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received (reason: %v)", ctx.Err())
		s.stopAllAdapters(adapters)
		shutdownErr = ctx.Err()

	case adapterErr := <-errChan:
		logger.Error("Adapter %s failed: %v - initiating shutdown of all adapters",
			adapterErr.protocol, adapterErr.err)
		s.stopAllAdapters(adapters)
		shutdownErr = fmt.Errorf("%s adapter error: %w", adapterErr.protocol, adapterErr.err)
	}

	wg.Wait()
	logger.Info("DittoWOPI stopped")

	return shutdownErr
}

// adapterError pairs an adapter protocol name with its error.
type adapterError struct {
	protocol string
	err      error
}

// stopAllAdapters calls Stop on every adapter in reverse registration order,
// sharing one stop timeout. Errors are logged and do not stop the sweep.
func (s *DittoServer) stopAllAdapters(adapters []adapter.Adapter) {
	ctx, cancel := context.WithTimeout(context.Background(), s.stopTimeout)
	defer cancel()

	logger.Info("Initiating graceful shutdown of %d adapter(s)", len(adapters))

	for i := len(adapters) - 1; i >= 0; i-- {
		adp := adapters[i]
		protocol := adp.Protocol()

		logger.Debug("Stopping %s adapter (port %d)", protocol, adp.Port())
		if err := adp.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Error stopping %s adapter: %v", protocol, err)
		}
	}
}

// Adapters returns a snapshot of the registered adapters.
func (s *DittoServer) Adapters() []adapter.Adapter {
	s.mu.Lock()
	defer s.mu.Unlock()

	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	return adapters
}
