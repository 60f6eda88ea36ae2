// Package daemon binds the monitor, job ledger, and HTTP API into a single
// lifecycle with flock-based locking to prevent multiple instances from
// double-tagging the same tree.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"log/slog"

	"github.com/gofrs/flock"

	"tierwatch/internal/config"
	"tierwatch/internal/events"
	"tierwatch/internal/ingest"
	"tierwatch/internal/jobstore"
	"tierwatch/internal/logging"
	"tierwatch/internal/monitor"
)

// Daemon coordinates the background services and enforces single-instance
// execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *jobstore.Store
	monitor *monitor.Service
	ingest  *ingest.Controller
	logPath string

	lockPath string
	lock     *flock.Flock

	api *apiServer

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool           `json:"running"`
	Monitor      monitor.Status `json:"monitor"`
	LedgerDBPath string         `json:"ledger_db_path"`
	EventLogPath string         `json:"event_log_path"`
	LockFilePath string         `json:"lock_file_path"`
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *jobstore.Store, mon *monitor.Service, ing *ingest.Controller, eventLog *events.Log, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || mon == nil || logger == nil {
		return nil, errors.New("daemon requires config, store, monitor, and logger")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "tierwatchd.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		monitor:  mon,
		ingest:   ing,
		logPath:  filepath.Join(cfg.Paths.LogDir, "tierwatch.log"),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}

	api, err := newAPIServer(cfg, d, eventLog, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the daemon lock, launches the monitor, and serves the API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another tierwatch daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.monitor.Start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start monitor: %w", err)
	}

	if d.api != nil {
		if err := d.api.start(d.ctx); err != nil {
			d.monitor.Stop()
			_ = d.lock.Unlock()
			d.cancel()
			d.ctx = nil
			d.cancel = nil
			return err
		}
	}

	d.running.Store(true)
	d.logger.Info("tierwatch daemon started",
		logging.String("lock", d.lockPath))
	return nil
}

// Stop halts background processing, waits for in-flight completion
// pollers, and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.api != nil {
		d.api.stop()
	}
	d.monitor.Stop()
	if d.ingest != nil {
		d.ingest.Wait()
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("tierwatch daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// ListJobs returns recent ledger rows for the API and CLI.
func (d *Daemon) ListJobs(ctx context.Context, limit int) ([]*jobstore.Job, error) {
	if d.store == nil {
		return nil, errors.New("job ledger unavailable")
	}
	return d.store.List(ctx, limit)
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		Monitor:      d.monitor.Status(),
		LedgerDBPath: d.store.Path(),
		EventLogPath: d.cfg.Paths.EventLog,
		LockFilePath: d.lockPath,
	}
}
