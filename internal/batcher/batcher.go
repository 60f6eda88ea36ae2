// Package batcher coalesces discovery events per path and releases them in
// batches. A path seen multiple times between flushes produces one unit of
// work. Batches flush on a fixed interval, with a fast path when traffic is
// low so a single drop does not wait out the full interval.
package batcher

import (
	"log/slog"
	"os"
	"sync"
	"time"

	"tierwatch/internal/logging"
)

// Options configures batch release and settle behavior.
type Options struct {
	// FlushInterval is the regular cadence at which pending paths release.
	FlushInterval time.Duration
	// LowTrafficLimit releases early when pending paths number strictly
	// fewer than it. Zero disables the fast path.
	LowTrafficLimit int
	// SettleDelay is how long a file's size must hold steady before the
	// path releases. Guards against tagging mid-copy.
	SettleDelay time.Duration
}

// Batcher accumulates paths and flushes them once due. Safe for a single
// recording goroutine; the mutex exists because status reporting reads
// pending counts from the API goroutine.
type Batcher struct {
	mu        sync.Mutex
	pending   map[string]struct{}
	order     []string
	events    int
	lastFlush time.Time
	opts      Options
	logger    *slog.Logger

	sleep func(time.Duration)
	stat  func(string) (int64, bool)
}

// New constructs a batcher. The first flush window opens immediately.
func New(opts Options, logger *slog.Logger) *Batcher {
	return &Batcher{
		pending:   make(map[string]struct{}),
		lastFlush: time.Now(),
		opts:      opts,
		logger:    logging.NewComponentLogger(logger, "batcher"),
		sleep:     time.Sleep,
		stat:      fileSize,
	}
}

// Record notes a discovery event for path. Repeat events coalesce into the
// path's existing entry but still count as events.
func (b *Batcher) Record(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, seen := b.pending[path]; !seen {
		b.pending[path] = struct{}{}
		b.order = append(b.order, path)
	}
	b.events++
}

// PendingCount reports how many distinct paths await flush.
func (b *Batcher) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// PendingEvents reports raw events recorded since the last flush, before
// coalescing.
func (b *Batcher) PendingEvents() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.events
}

// Due reports whether a flush should happen now: either the flush interval
// has elapsed, or a small batch is waiting and the fast path applies.
func (b *Batcher) Due(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pending) == 0 {
		return false
	}
	if now.Sub(b.lastFlush) >= b.opts.FlushInterval {
		return true
	}
	return b.opts.LowTrafficLimit > 0 && len(b.pending) < b.opts.LowTrafficLimit
}

// Flush releases the settled subset of pending paths in discovery order,
// which the scanner feeds most-recently-accessed first. Paths that vanished
// or are still growing are dropped rather than requeued: retrying a large
// in-progress copy every poll tick would probe it continuously, and the
// retroactive sweep picks the finished file up later. The flush clock
// resets regardless of how many paths released.
func (b *Batcher) Flush(now time.Time) []string {
	b.mu.Lock()
	batch := make([]string, 0, len(b.order))
	batch = append(batch, b.order...)
	b.lastFlush = now
	b.events = 0
	b.mu.Unlock()

	var released []string
	for _, path := range batch {
		switch b.settle(path) {
		case settleReady:
			released = append(released, path)
			b.forget(path)
		case settleGone:
			b.logger.Debug("pending path vanished before flush",
				logging.String(logging.FieldPath, path))
			b.forget(path)
		case settleGrowing:
			b.logger.Debug("pending path still growing, leaving to retroactive sweep",
				logging.String(logging.FieldPath, path))
			b.forget(path)
		}
	}
	return released
}

type settleState int

const (
	settleReady settleState = iota
	settleGone
	settleGrowing
)

// settle verifies path still exists and its size held steady across the
// settle delay. Directories always settle.
func (b *Batcher) settle(path string) settleState {
	first, ok := b.stat(path)
	if !ok {
		return settleGone
	}
	if first < 0 { // directory
		return settleReady
	}
	b.sleep(b.opts.SettleDelay)
	second, ok := b.stat(path)
	if !ok {
		return settleGone
	}
	if first != second {
		return settleGrowing
	}
	return settleReady
}

func (b *Batcher) forget(path string) {
	b.mu.Lock()
	delete(b.pending, path)
	for i, p := range b.order {
		if p == path {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	b.mu.Unlock()
}

// fileSize returns the size of path, -1 for directories, ok=false when the
// path is gone or unreadable.
func fileSize(path string) (int64, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, false
	}
	if info.IsDir() {
		return -1, true
	}
	return info.Size(), true
}
