package testsupport

import (
	"testing"

	"tierwatch/internal/config"
	"tierwatch/internal/events"
	"tierwatch/internal/jobstore"
	"tierwatch/internal/logging"
)

// MustOpenStore opens a job ledger for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *jobstore.Store {
	t.Helper()

	store, err := jobstore.Open(cfg)
	if err != nil {
		t.Fatalf("jobstore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenEventLog opens the configured event log for tests and registers
// cleanup.
func MustOpenEventLog(t testing.TB, cfg *config.Config) *events.Log {
	t.Helper()

	log, err := events.Open(cfg.Paths.EventLog, logging.NewNop())
	if err != nil {
		t.Fatalf("events.Open: %v", err)
	}
	t.Cleanup(func() {
		log.Close()
	})
	return log
}
