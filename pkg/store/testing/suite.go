// Package testing provides a reusable test suite for MetadataStore
// implementations. It tests the interface contract, not implementation
// details, so the same suite runs against the memory and badger backends.
package testing

import (
	"testing"

	"github.com/skyvault/skyvault/pkg/store"
)

// StoreTestSuite is a comprehensive test suite for MetadataStore
// implementations.
type StoreTestSuite struct {
	// NewStore is a factory function that creates a fresh MetadataStore
	// instance for each test. This ensures test isolation.
	NewStore func() store.MetadataStore
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(test *testing.T) {
	test.Run("User", suite.RunUserTests)
	test.Run("Folder", suite.RunFolderTests)
	test.Run("File", suite.RunFileTests)
	test.Run("Trash", suite.RunTrashTests)
	test.Run("Version", suite.RunVersionTests)
	test.Run("Share", suite.RunShareTests)
	test.Run("Link", suite.RunLinkTests)
}
