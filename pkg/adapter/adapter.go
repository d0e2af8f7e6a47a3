package adapter

import (
	"context"
)

// Adapter represents a protocol-specific server that can be managed by
// server.DittoServer.
//
// Each adapter exposes one network surface (the WOPI REST endpoint today)
// and provides a unified interface for lifecycle management. Adapters are
// fully wired at construction: the stores and engine they serve are passed
// to their constructors, so the orchestrator only starts and stops them.
//
// Lifecycle:
//  1. Creation: Adapter is created with protocol-specific configuration
//  2. Startup: Serve() starts the server and blocks until shutdown
//  3. Shutdown: Stop() initiates graceful shutdown with timeout
//
// Thread safety:
// Implementations must be safe for concurrent use. Stop() may be called
// concurrently with Serve().
type Adapter interface {
	// Serve starts the server and blocks until the context is cancelled
	// or an unrecoverable error occurs.
	//
	// When the context is cancelled, Serve must initiate graceful shutdown:
	//   - Stop accepting new connections
	//   - Wait for active requests to complete (with timeout)
	//   - Return context.Canceled or nil
	//
	// If Serve returns before context cancellation, DittoServer treats it as
	// a fatal error and stops all other adapters.
	Serve(ctx context.Context) error

	// Stop initiates graceful shutdown.
	//
	// Implementations must:
	//   - Be safe to call multiple times (idempotent)
	//   - Be safe to call concurrently with Serve()
	//   - Respect the context timeout for shutdown operations
	Stop(ctx context.Context) error

	// Protocol returns the human-readable protocol name for logging and metrics.
	//
	// Examples: "WOPI", "Metrics"
	Protocol() string

	// Port returns the TCP port the adapter listens on.
	//
	// Returns 0 if the adapter uses dynamic port allocation.
	Port() int
}
