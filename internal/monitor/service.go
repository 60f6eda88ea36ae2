// Package monitor owns the scheduling loop: it polls the watched roots,
// batches discoveries, drives the tagging pipeline, and runs the
// retroactive sweeper on its own cadence.
package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"log/slog"

	"tierwatch/internal/batcher"
	"tierwatch/internal/config"
	"tierwatch/internal/logging"
	"tierwatch/internal/pathset"
	"tierwatch/internal/retroactive"
	"tierwatch/internal/scanner"
	"tierwatch/internal/tagging"
)

// ErrAlreadyRunning reports a second Start on a running service.
var ErrAlreadyRunning = errors.New("monitor already running")

// Status is the monitor's externally visible state snapshot.
type Status struct {
	Running                  bool      `json:"running"`
	WatchedRoots             []string  `json:"watched_roots"`
	BatchInterval            string    `json:"batch_interval"`
	PollInterval             string    `json:"poll_interval"`
	PendingEvents            int       `json:"pending_events"`
	PendingPaths             int       `json:"pending_paths"`
	KnownPathsCount          int       `json:"known_paths_count"`
	TaggedPathsCount         int       `json:"tagged_paths_count"`
	LastBatchTime            time.Time `json:"last_batch_time"`
	LastRetroactiveScan      time.Time `json:"last_retroactive_scan"`
	FilesTaggedRetroactively int       `json:"files_tagged_retroactively"`
	CPU                      CPUStats  `json:"cpu"`
}

// Service runs the main discovery loop. Path sets are mutated only from
// the loop goroutine; status reads cross goroutines through the small
// locked structures they reference.
type Service struct {
	cfg      *config.Config
	scanner  *scanner.Scanner
	batcher  *batcher.Batcher
	pipeline *tagging.Pipeline
	sweeper  *retroactive.Sweeper
	known    *pathset.Set
	cpu      *cpuSampler
	logger   *slog.Logger

	pollInterval     time.Duration
	fastPollInterval time.Duration
	sweepInterval    time.Duration

	mu        sync.Mutex
	running   bool
	lastBatch time.Time

	lastSweep time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	now func() time.Time
}

// New assembles the service around the shared known-path set.
func New(cfg *config.Config, known *pathset.Set, sc *scanner.Scanner, bt *batcher.Batcher, pipeline *tagging.Pipeline, sweeper *retroactive.Sweeper, logger *slog.Logger) *Service {
	return &Service{
		cfg:              cfg,
		scanner:          sc,
		batcher:          bt,
		pipeline:         pipeline,
		sweeper:          sweeper,
		known:            known,
		cpu:              newCPUSampler(),
		logger:           logging.NewComponentLogger(logger, "monitor"),
		pollInterval:     time.Duration(cfg.Monitor.PollInterval) * time.Second,
		fastPollInterval: time.Duration(cfg.Monitor.FastPollInterval) * time.Second,
		sweepInterval:    time.Duration(cfg.Retroactive.ScanInterval) * time.Second,
		now:              time.Now,
	}
}

// Start launches the discovery loop. Idempotent: starting a running
// service reports ErrAlreadyRunning rather than spawning a second loop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.ctx = runCtx
	s.cancel = cancel
	s.running = true

	s.wg.Add(1)
	go s.loop()

	s.logger.Info("monitor started",
		logging.Any("watched_roots", s.cfg.Paths.WatchRoots))
	return nil
}

// Stop halts the loop, flushing any pending batch first so discovered
// paths are not lost across a restart's known-set reset.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	s.logger.Info("monitor stopped")
}

func (s *Service) loop() {
	defer s.wg.Done()

	for {
		s.poll()

		interval := s.fastPollInterval
		if s.sweeper.InWindow(s.now()) {
			// Off-hours: the sweeper owns the disk, back off discovery.
			interval = s.pollInterval
		}

		timer := time.NewTimer(interval)
		select {
		case <-s.ctx.Done():
			timer.Stop()
			s.flush()
			return
		case <-timer.C:
		}
	}
}

// poll runs one discovery pass across the watch roots, flushes the batch
// when due, and gives the retroactive sweeper its turn on a slower
// cadence. Everything here runs on the loop goroutine, so the path sets
// need no locking.
func (s *Service) poll() {
	for _, root := range s.cfg.Paths.WatchRoots {
		for _, path := range s.scanner.ScanTopLevel(root) {
			s.batcher.Record(path)
		}
	}

	if s.batcher.Due(s.now()) {
		s.flush()
	}

	if s.now().Sub(s.lastSweep) >= s.sweepInterval {
		s.lastSweep = s.now()
		s.sweeper.Sweep(s.ctx)
	}

	s.cpu.Sample()
}

func (s *Service) flush() {
	now := s.now()
	batch := s.batcher.Flush(now)
	if len(batch) == 0 {
		return
	}
	tagged := s.pipeline.ProcessBatch(s.ctx, batch)
	s.mu.Lock()
	s.lastBatch = now
	s.mu.Unlock()
	s.logger.Info("batch processed",
		logging.Int("batch_size", len(batch)),
		logging.Int("tagged", tagged),
	)
}

// Status snapshots the monitor for the API and CLI.
func (s *Service) Status() Status {
	s.mu.Lock()
	running := s.running
	lastBatch := s.lastBatch
	s.mu.Unlock()

	return Status{
		Running:                  running,
		WatchedRoots:             s.cfg.Paths.WatchRoots,
		BatchInterval:            (time.Duration(s.cfg.Monitor.BatchInterval) * time.Second).String(),
		PollInterval:             s.pollInterval.String(),
		PendingEvents:            s.batcher.PendingEvents(),
		PendingPaths:             s.batcher.PendingCount(),
		KnownPathsCount:          s.known.Len(),
		TaggedPathsCount:         s.pipeline.TaggedCount(),
		LastBatchTime:            lastBatch,
		LastRetroactiveScan:      s.sweeper.LastScan(),
		FilesTaggedRetroactively: s.pipeline.RetroactiveCount(),
		CPU:                      s.cpu.Stats(),
	}
}
