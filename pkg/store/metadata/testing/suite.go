// Package testing provides a conformance suite every metadata.MetadataStore
// implementation runs from its own tests.
package testing

import (
	"context"
	"testing"
	"time"

	"github.com/marmos91/dittowopi/pkg/store/metadata"
)

// StoreTestSuite is a suite of tests for metadata.MetadataStore implementations.
type StoreTestSuite struct {
	// NewStore is a factory function that creates a fresh MetadataStore instance
	// for each test. This ensures test isolation.
	NewStore func(t *testing.T) metadata.MetadataStore
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("File", suite.RunFileTests)
	t.Run("Concurrency", suite.RunConcurrencyTests)
	t.Run("Healthcheck", suite.RunHealthcheckTests)
}

// newStore creates a store and closes it when the test ends.
func (suite *StoreTestSuite) newStore(t *testing.T) metadata.MetadataStore {
	t.Helper()
	store := suite.NewStore(t)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testContext() context.Context {
	return context.Background()
}

// sampleFile returns an unlocked record ready for CreateFile.
func sampleFile(id string) *metadata.FileRecord {
	return &metadata.FileRecord{
		ID:               id,
		Container:        "docs",
		BaseFileName:     "report.docx",
		Size:             11,
		Version:          1,
		OwnerID:          "alice",
		LastModifiedTime: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}
