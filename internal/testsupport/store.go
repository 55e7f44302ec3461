package testsupport

import (
	"testing"

	"stagehand/internal/config"
	"stagehand/internal/replicant"
)

// MustOpenStore opens the replicant SQLite store for cfg and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *replicant.SQLiteStore {
	t.Helper()

	store, err := replicant.OpenSQLite(cfg.ReplicantDBPath())
	if err != nil {
		t.Fatalf("replicant.OpenSQLite: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
