package monitor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tierwatch/internal/batcher"
	"tierwatch/internal/config"
	"tierwatch/internal/logging"
	"tierwatch/internal/pathset"
	"tierwatch/internal/retroactive"
	"tierwatch/internal/scanner"
	"tierwatch/internal/tagging"
	"tierwatch/internal/testsupport"
)

type noopRouter struct{}

func (noopRouter) EligibleFile(string) bool                 { return false }
func (noopRouter) EligibleFolder(string) bool               { return false }
func (noopRouter) SubmitFile(context.Context, string) error { return nil }
func (noopRouter) SubmitFolder(context.Context, string) error {
	return nil
}

type serviceHarness struct {
	cfg     *config.Config
	backend *testsupport.FakeTagBackend
	service *Service
}

func newService(t *testing.T, opts ...testsupport.ConfigOption) *serviceHarness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	cfg.Monitor.SettleDelayMS = 1
	if err := os.MkdirAll(cfg.Paths.HubRoot, 0o755); err != nil {
		t.Fatalf("mkdir hub: %v", err)
	}

	logger := logging.NewNop()
	known := pathset.New()
	backend := testsupport.NewFakeTagBackend()
	pipeline := tagging.New(pathset.New(), backend, noopRouter{}, cfg.Placement.FastTierObjective,
		cfg.Tags.IngestID, cfg.Tags.MediaType, nil, logger)
	sweeper := retroactive.New(cfg, pipeline, logger)
	bt := batcher.New(batcher.Options{
		FlushInterval:   cfg.BatchInterval(),
		LowTrafficLimit: cfg.Monitor.LowTrafficLimit,
		SettleDelay:     cfg.SettleDelay(),
	}, logger)

	return &serviceHarness{
		cfg:     cfg,
		backend: backend,
		service: New(cfg, known, scanner.New(known, logger), bt, pipeline, sweeper, logger),
	}
}

func TestStartIsIdempotent(t *testing.T) {
	h := newService(t)
	ctx := context.Background()

	if err := h.service.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := h.service.Start(ctx); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start = %v, want ErrAlreadyRunning", err)
	}
	h.service.Stop()

	// A stopped service can be started again.
	if err := h.service.Start(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}
	h.service.Stop()
}

func TestStopWithoutStartIsNoop(t *testing.T) {
	h := newService(t)
	h.service.Stop()
}

func TestPollDiscoversAndFlushes(t *testing.T) {
	h := newService(t)
	h.service.ctx = context.Background()

	path := filepath.Join(h.cfg.Paths.HubRoot, "briefing.pdf")
	testsupport.WriteFile(t, path, 64)

	// Small pending sets flush on the low-traffic fast path, so a single
	// poll discovers, settles, and tags the file.
	h.service.poll()

	if got := h.backend.TagValue(path, h.cfg.Tags.IngestID); got == "" {
		t.Error("discovered file was not tagged")
	}
	status := h.service.Status()
	if status.KnownPathsCount != 1 {
		t.Errorf("known paths = %d, want 1", status.KnownPathsCount)
	}
	if status.TaggedPathsCount != 1 {
		t.Errorf("tagged paths = %d, want 1", status.TaggedPathsCount)
	}
	if status.PendingPaths != 0 {
		t.Errorf("pending paths = %d, want 0 after flush", status.PendingPaths)
	}
	if status.LastBatchTime.IsZero() {
		t.Error("last batch time not recorded")
	}
}

func TestPollDoesNotReprocessKnownPaths(t *testing.T) {
	h := newService(t)
	h.service.ctx = context.Background()

	path := filepath.Join(h.cfg.Paths.HubRoot, "briefing.pdf")
	testsupport.WriteFile(t, path, 64)

	h.service.poll()
	h.service.poll()

	if got := h.service.Status().TaggedPathsCount; got != 1 {
		t.Errorf("tagged paths = %d, want 1 after repeat polls", got)
	}
}

func TestStopFlushesPendingBatch(t *testing.T) {
	h := newService(t, func(cfg *config.Config) {
		// Keep the loop from flushing on its own before Stop runs.
		cfg.Monitor.BatchInterval = 3600
		cfg.Monitor.LowTrafficLimit = 0
	})

	path := filepath.Join(h.cfg.Paths.HubRoot, "briefing.pdf")
	testsupport.WriteFile(t, path, 64)

	if err := h.service.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// Give the loop a poll cycle to discover the file.
	deadline := time.Now().Add(5 * time.Second)
	for h.service.Status().PendingPaths == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	h.service.Stop()

	if got := h.backend.TagValue(path, h.cfg.Tags.IngestID); got == "" {
		t.Error("pending path was not flushed on shutdown")
	}
}

func TestStatusReportsConfiguredIntervals(t *testing.T) {
	h := newService(t)
	status := h.service.Status()
	if status.Running {
		t.Error("running = true before Start")
	}
	if status.PollInterval != h.service.pollInterval.String() {
		t.Errorf("poll interval = %q", status.PollInterval)
	}
	if len(status.WatchedRoots) != 1 || status.WatchedRoots[0] != h.cfg.Paths.HubRoot {
		t.Errorf("watched roots = %v", status.WatchedRoots)
	}
}
