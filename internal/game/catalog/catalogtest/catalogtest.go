// Package catalogtest loads the repository card dataset for tests.
package catalogtest

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/catalog"
)

// DatasetPath returns the absolute path of data/cards.yaml.
func DatasetPath() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "..", "..", "data", "cards.yaml")
}

// Catalog loads the card dataset or fails the test.
func Catalog(tb testing.TB) *catalog.MemoryCatalog {
	tb.Helper()
	c, err := catalog.LoadYAML(DatasetPath())
	if err != nil {
		tb.Fatalf("failed to load card dataset: %v", err)
	}
	return c
}
