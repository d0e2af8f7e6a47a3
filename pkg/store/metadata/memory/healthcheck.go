package memory

import (
	"context"
)

// Healthcheck verifies the store is operational.
//
// For the in-memory implementation there are no external dependencies, so
// this only reports context cancellation.
func (store *MemoryMetadataStore) Healthcheck(ctx context.Context) error {
	return ctx.Err()
}
