// Package testutil holds skip helpers shared by backend integration tests.
package testutil

import (
	"os"
	"testing"

	"github.com/testcontainers/testcontainers-go"
)

// SkipIfShort skips the test if running in short mode
func SkipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
}

// RequireContainers skips the test in short mode, when INJURY_SKIP_CONTAINERS
// is set, or when no container provider is reachable.
func RequireContainers(t *testing.T) {
	t.Helper()
	SkipIfShort(t)
	if os.Getenv("INJURY_SKIP_CONTAINERS") != "" {
		t.Skip("skipping container test (INJURY_SKIP_CONTAINERS set)")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
}
