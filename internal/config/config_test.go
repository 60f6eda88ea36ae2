package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Paths.HubRoot == "" {
		t.Error("default hub root empty")
	}
	if len(cfg.Paths.WatchRoots) == 0 {
		t.Error("default watch roots empty")
	}
	if !cfg.Ingest.Enabled {
		t.Error("ingest should be enabled by default")
	}
}

func TestNormalizeExtensions(t *testing.T) {
	cfg := Default()
	cfg.Ingest.Extensions = []string{"PDF", " .TXT ", "md", ""}
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	want := []string{".pdf", ".txt", ".md"}
	if len(cfg.Ingest.Extensions) != len(want) {
		t.Fatalf("extensions = %v, want %v", cfg.Ingest.Extensions, want)
	}
	for i, ext := range want {
		if cfg.Ingest.Extensions[i] != ext {
			t.Errorf("extensions[%d] = %q, want %q", i, cfg.Ingest.Extensions[i], ext)
		}
	}
}

func TestNormalizeWatchRootsDedupesAndFallsBackToHub(t *testing.T) {
	cfg := Default()
	cfg.Paths.HubRoot = "/srv/hub"
	cfg.Paths.WatchRoots = []string{"/srv/hub", "/srv/hub/", "  ", "/srv/other"}
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(cfg.Paths.WatchRoots) != 2 {
		t.Fatalf("watch roots = %v, want 2 entries", cfg.Paths.WatchRoots)
	}

	cfg = Default()
	cfg.Paths.HubRoot = "/srv/hub"
	cfg.Paths.WatchRoots = nil
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(cfg.Paths.WatchRoots) != 1 || cfg.Paths.WatchRoots[0] != "/srv/hub" {
		t.Errorf("watch roots = %v, want [/srv/hub]", cfg.Paths.WatchRoots)
	}
}

func TestNormalizeEventLogDefaultsUnderLogDir(t *testing.T) {
	cfg := Default()
	cfg.Paths.LogDir = "/var/log/tierwatch"
	cfg.Paths.EventLog = ""
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Paths.EventLog != filepath.Join("/var/log/tierwatch", "events.jsonl") {
		t.Errorf("event log = %q", cfg.Paths.EventLog)
	}
}

func TestNormalizeIngestorURLTrimsTrailingSlash(t *testing.T) {
	cfg := Default()
	cfg.Ingest.IngestorURL = "http://ingestor:8082/"
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Ingest.IngestorURL != "http://ingestor:8082" {
		t.Errorf("ingestor url = %q", cfg.Ingest.IngestorURL)
	}
}

func TestValidateRejectsFastPollSlowerThanPoll(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	cfg.Monitor.PollInterval = 1
	cfg.Monitor.FastPollInterval = 5
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for fast_poll_interval > poll_interval")
	}
}

func TestValidateRejectsBadTimezone(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	cfg.Retroactive.Timezone = "Mars/Olympus_Mons"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for unknown timezone")
	}
}

func TestValidateRejectsBadWindowHours(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	cfg.Retroactive.WindowStartHour = 24
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for window_start_hour out of range")
	}
}

func TestValidateRejectsBadLogFormat(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	cfg.Logging.Format = "logfmt"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for unsupported log format")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tierwatch.toml")
	content := `
[paths]
hub_root = "` + dir + `/hub"
log_dir = "` + dir + `/logs"

[monitor]
batch_interval = 30
low_traffic_limit = 2

[ingest]
extensions = ["pdf", "txt"]
namespace = "ingest-jobs"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("config file should have been found")
	}
	if resolved != path {
		t.Errorf("resolved = %q, want %q", resolved, path)
	}
	if cfg.Paths.HubRoot != filepath.Join(dir, "hub") {
		t.Errorf("hub root = %q", cfg.Paths.HubRoot)
	}
	if cfg.Monitor.BatchInterval != 30 {
		t.Errorf("batch interval = %d, want 30", cfg.Monitor.BatchInterval)
	}
	if cfg.Monitor.LowTrafficLimit != 2 {
		t.Errorf("low traffic limit = %d, want 2", cfg.Monitor.LowTrafficLimit)
	}
	if cfg.Ingest.Namespace != "ingest-jobs" {
		t.Errorf("namespace = %q", cfg.Ingest.Namespace)
	}
	if len(cfg.Ingest.Extensions) != 2 || cfg.Ingest.Extensions[0] != ".pdf" {
		t.Errorf("extensions = %v", cfg.Ingest.Extensions)
	}
	// Unset sections keep their defaults.
	if cfg.Storage.Binary != "hs" {
		t.Errorf("storage binary = %q, want hs", cfg.Storage.Binary)
	}
	if cfg.Tags.Embedding != "embedding" {
		t.Errorf("embedding tag = %q", cfg.Tags.Embedding)
	}
}

func TestLoadMissingExplicitPathUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.toml")
	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("nonexistent config reported as found")
	}
	if cfg.Storage.CommandTimeout != 10 {
		t.Errorf("command timeout = %d, want default 10", cfg.Storage.CommandTimeout)
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := Default()
	if got := cfg.CommandTimeout().Seconds(); got != 10 {
		t.Errorf("CommandTimeout = %vs, want 10s", got)
	}
	if got := cfg.BatchInterval().Seconds(); got != 15 {
		t.Errorf("BatchInterval = %vs, want 15s", got)
	}
	if got := cfg.SettleDelay().Milliseconds(); got != 100 {
		t.Errorf("SettleDelay = %vms, want 100ms", got)
	}
}

func TestMountRefreshArgs(t *testing.T) {
	cfg := Default()
	if args := cfg.MountRefreshArgs(); len(args) != 0 {
		t.Errorf("args = %v, want none", args)
	}
	cfg.Storage.MountRefreshCommand = "sudo systemctl restart hub-mount"
	args := cfg.MountRefreshArgs()
	if len(args) != 4 || args[0] != "sudo" || args[3] != "hub-mount" {
		t.Errorf("args = %v", args)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[paths]") {
		t.Error("sample config missing [paths] section")
	}

	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("sample config not found after CreateSample")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("sample config invalid: %v", err)
	}
}
