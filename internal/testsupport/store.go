package testsupport

import (
	"testing"

	"setlist/internal/checkpoint"
	"setlist/internal/config"
	"setlist/internal/logging"
)

// MustOpenStore opens a checkpoint.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *checkpoint.Store {
	t.Helper()

	store, err := checkpoint.Open(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("checkpoint.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// Identity stats path and fails the test on error.
func Identity(t testing.TB, path string) checkpoint.SourceIdentity {
	t.Helper()

	id, err := checkpoint.IdentityOf(path)
	if err != nil {
		t.Fatalf("checkpoint.IdentityOf: %v", err)
	}
	return id
}
