// Package testsupport provides shared helpers for package tests: temp
// configs, ledger stores, fake service backends, and file fixtures.
package testsupport

import (
	"path/filepath"
	"testing"

	"tierwatch/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.HubRoot = filepath.Join(base, "hub")
	cfg.Paths.WatchRoots = []string{cfg.Paths.HubRoot}
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.EventLog = filepath.Join(base, "logs", "events.jsonl")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Ingest.FolderRetryDelay = 0
	cfg.Ingest.PollInterval = 0

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithWatchRoots overrides the watched roots on the test config.
func WithWatchRoots(roots ...string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Paths.WatchRoots = roots
	}
}

// WithIngestDisabled turns off the ingestion pipeline for monitor-only
// tests.
func WithIngestDisabled() ConfigOption {
	return func(cfg *config.Config) {
		cfg.Ingest.Enabled = false
	}
}
