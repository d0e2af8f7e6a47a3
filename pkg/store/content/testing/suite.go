// Package testing provides a conformance suite for content.ContentStore
// implementations.
package testing

import (
	"context"
	"testing"

	"github.com/marmos91/dittowopi/pkg/store/content"
)

// StoreTestSuite is a suite of tests for content.ContentStore implementations.
type StoreTestSuite struct {
	// NewStore is a factory function that creates a fresh ContentStore instance
	// for each test. This ensures test isolation.
	NewStore func(t *testing.T) content.ContentStore
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("BasicOperations", suite.RunBasicTests)
	t.Run("WriteOperations", suite.RunWriteTests)
	t.Run("Listing", suite.RunListTests)
}

func (suite *StoreTestSuite) newStore(t *testing.T) content.ContentStore {
	t.Helper()
	store := suite.NewStore(t)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// testContext returns a standard test context.
func testContext() context.Context {
	return context.Background()
}
