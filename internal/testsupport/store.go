package testsupport

import (
	"testing"

	"blackbox/internal/config"
	"blackbox/internal/events"
)

// MustOpenLedger opens an events.Store for tests and registers cleanup.
func MustOpenLedger(t testing.TB, cfg *config.Config) *events.Store {
	t.Helper()

	store, err := events.Open(cfg)
	if err != nil {
		t.Fatalf("events.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
