// Package testutil holds helpers shared by package tests.
package testutil

import (
	"os"
	"testing"
)

// SkipIfNoNetwork skips the test if TRIBE_TEST_SKIP_NETWORK is set.
// Use this for tests that listen on or dial TCP, which may not be
// available in sandboxed environments.
func SkipIfNoNetwork(t testing.TB) {
	t.Helper()
	if os.Getenv("TRIBE_TEST_SKIP_NETWORK") != "" {
		t.Skip("skipping network test: TRIBE_TEST_SKIP_NETWORK is set")
	}
}
