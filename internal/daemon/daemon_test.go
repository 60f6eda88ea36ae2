package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"testing"

	"tierwatch/internal/batcher"
	"tierwatch/internal/config"
	"tierwatch/internal/events"
	"tierwatch/internal/ingest"
	"tierwatch/internal/jobstore"
	"tierwatch/internal/logging"
	"tierwatch/internal/monitor"
	"tierwatch/internal/pathset"
	"tierwatch/internal/placement"
	"tierwatch/internal/retroactive"
	"tierwatch/internal/scanner"
	"tierwatch/internal/services/indexverify"
	"tierwatch/internal/tagging"
	"tierwatch/internal/testsupport"
)

type daemonHarness struct {
	cfg    *config.Config
	store  *jobstore.Store
	daemon *Daemon
}

// newDaemon wires a full daemon over fake external services, mirroring the
// production assembly.
func newDaemon(t *testing.T) *daemonHarness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	if err := os.MkdirAll(cfg.Paths.HubRoot, 0o755); err != nil {
		t.Fatalf("mkdir hub: %v", err)
	}

	logger := logging.NewNop()
	store := testsupport.MustOpenStore(t, cfg)
	eventLog := testsupport.MustOpenEventLog(t, cfg)
	backend := testsupport.NewFakeTagBackend()
	runner := testsupport.NewFakeJobRunner()
	verifier := &testsupport.FakeVerifier{Outcome: indexverify.OutcomeConfirmed}

	tiers := placement.New(backend, cfg.Placement.FastTierObjective, cfg.Paths.WatchRoots,
		eventLog, logger)
	ingestCtrl := ingest.New(cfg, backend, runner, verifier, tiers, store, eventLog, logger)

	known := pathset.New()
	pipeline := tagging.New(pathset.New(), backend, ingestCtrl, cfg.Placement.FastTierObjective,
		cfg.Tags.IngestID, cfg.Tags.MediaType, eventLog, logger)
	sweeper := retroactive.New(cfg, pipeline, logger)
	bt := batcher.New(batcher.Options{
		FlushInterval:   cfg.BatchInterval(),
		LowTrafficLimit: cfg.Monitor.LowTrafficLimit,
		SettleDelay:     cfg.SettleDelay(),
	}, logger)
	mon := monitor.New(cfg, known, scanner.New(known, logger), bt, pipeline, sweeper, logger)

	d, err := New(cfg, store, mon, ingestCtrl, eventLog, logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(d.Stop)
	return &daemonHarness{cfg: cfg, store: store, daemon: d}
}

func (h *daemonHarness) apiURL(t *testing.T, path string) string {
	t.Helper()
	if h.daemon.api == nil || h.daemon.api.listener == nil {
		t.Fatal("api server not listening")
	}
	return fmt.Sprintf("http://%s%s", h.daemon.api.listener.Addr(), path)
}

func getJSON(t *testing.T, url string, out any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := New(nil, nil, nil, nil, nil, logging.NewNop()); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}

func TestStartStopLifecycle(t *testing.T) {
	h := newDaemon(t)
	ctx := context.Background()

	if err := h.daemon.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := h.daemon.Start(ctx); err == nil {
		t.Error("second Start should fail while running")
	}

	status := h.daemon.Status()
	if !status.Running {
		t.Error("status running = false after Start")
	}
	if status.LedgerDBPath != h.store.Path() {
		t.Errorf("ledger path = %q", status.LedgerDBPath)
	}
	if status.LockFilePath == "" || status.EventLogPath == "" {
		t.Errorf("status paths incomplete: %+v", status)
	}

	h.daemon.Stop()
	if h.daemon.Status().Running {
		t.Error("status running = true after Stop")
	}

	// Stop released the lock, so a restart succeeds.
	if err := h.daemon.Start(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}
}

func TestSecondInstanceIsRejected(t *testing.T) {
	h := newDaemon(t)
	if err := h.daemon.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	second, err := New(h.cfg, h.store, monitor.New(h.cfg, pathset.New(),
		scanner.New(pathset.New(), logging.NewNop()),
		batcher.New(batcher.Options{}, logging.NewNop()),
		tagging.New(pathset.New(), testsupport.NewFakeTagBackend(), nil, "", "", "", nil, logging.NewNop()),
		retroactive.New(h.cfg, nil, logging.NewNop()),
		logging.NewNop()), nil, nil, logging.NewNop())
	if err != nil {
		t.Fatalf("New second daemon: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("second instance acquired the lock")
	}
}

func TestAPIStatusEndpoint(t *testing.T) {
	h := newDaemon(t)
	if err := h.daemon.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var status Status
	getJSON(t, h.apiURL(t, "/api/status"), &status)
	if !status.Running {
		t.Error("api reported running = false")
	}
	if status.Monitor.PollInterval == "" {
		t.Error("monitor status missing from payload")
	}
}

func TestAPIJobsEndpoint(t *testing.T) {
	h := newDaemon(t)
	ctx := context.Background()
	if _, err := h.store.NewJob(ctx, jobstore.KindFile, "/hub/doc.pdf", "intel_1", 1, "intel-1-ingest-1", 1); err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	if err := h.daemon.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var payload struct {
		Jobs []*jobstore.Job `json:"jobs"`
	}
	getJSON(t, h.apiURL(t, "/api/jobs"), &payload)
	if len(payload.Jobs) != 1 || payload.Jobs[0].Collection != "intel_1" {
		t.Errorf("jobs = %v", payload.Jobs)
	}
}

func TestAPIEventsEndpoint(t *testing.T) {
	h := newDaemon(t)
	if err := h.daemon.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.daemon.api.eventLog.Emit(events.NewFiles([]string{"/hub/a.pdf"}))

	var payload struct {
		Events []events.Record `json:"events"`
	}
	getJSON(t, h.apiURL(t, "/api/events"), &payload)
	if len(payload.Events) != 1 || payload.Events[0].EventType != events.TypeNewFiles {
		t.Errorf("events = %v", payload.Events)
	}
}

func TestAPIRejectsNonGET(t *testing.T) {
	h := newDaemon(t)
	if err := h.daemon.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	resp, err := http.Post(h.apiURL(t, "/api/status"), "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}
