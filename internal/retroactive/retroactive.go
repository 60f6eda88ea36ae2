// Package retroactive sweeps the watched tree for files that predate the
// daemon or slipped past live discovery. Sweeps only run inside a
// configured off-hours window so the catch-up work never competes with
// interactive traffic.
package retroactive

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tierwatch/internal/config"
	"tierwatch/internal/logging"
	"tierwatch/internal/scanner"
)

// pausedStampInterval is how often the attempt timestamp advances while the
// window is closed. The sweep is invoked every few seconds from the poll
// loop; stamping each invocation would make "idle by schedule" and "actively
// sweeping" indistinguishable in status output.
const pausedStampInterval = 5 * time.Minute

// Tagger applies catch-up tagging to one path.
type Tagger interface {
	ProcessRetroactive(ctx context.Context, path string) bool
}

// Sweeper scans for untagged files owned by non-system accounts.
type Sweeper struct {
	enabled   bool
	root      string
	depth     int
	startHour int
	endHour   int
	location  *time.Location
	minUID    uint32

	tagger Tagger
	logger *slog.Logger

	mu          sync.Mutex
	lastAttempt time.Time
	lastScan    time.Time

	now       func() time.Time
	listFiles func(root string, depth int) []string
	ownerUID  func(path string) (uint32, error)
}

// New constructs a sweeper over the hub root. The configured timezone has
// already been validated.
func New(cfg *config.Config, tagger Tagger, logger *slog.Logger) *Sweeper {
	loc, err := time.LoadLocation(cfg.Retroactive.Timezone)
	if err != nil {
		loc = time.Local
	}
	return &Sweeper{
		enabled:   cfg.Retroactive.Enabled,
		root:      cfg.Paths.HubRoot,
		depth:     cfg.Monitor.ScanDepth,
		startHour: cfg.Retroactive.WindowStartHour,
		endHour:   cfg.Retroactive.WindowEndHour,
		location:  loc,
		minUID:    uint32(cfg.Retroactive.MinUID),
		tagger:    tagger,
		logger:    logging.NewComponentLogger(logger, "retroactive"),
		now:       time.Now,
		listFiles: scanner.ListFiles,
		ownerUID:  scanner.OwnerUID,
	}
}

// InWindow reports whether t falls inside the sweep window. The start hour
// is inclusive and the end hour exclusive, evaluated in the configured
// zone; a window wrapping midnight (start > end) is honored.
func (s *Sweeper) InWindow(t time.Time) bool {
	hour := t.In(s.location).Hour()
	if s.startHour <= s.endHour {
		return hour >= s.startHour && hour < s.endHour
	}
	return hour >= s.startHour || hour < s.endHour
}

// Sweep runs one pass if the window is open, returning how many paths were
// tagged. Outside the window the attempt timestamp still advances, but only
// on the slow paused cadence, so a status query can distinguish "idle by
// schedule" from "stuck" without the stamp churning every poll tick.
func (s *Sweeper) Sweep(ctx context.Context) int {
	now := s.now()
	if !s.enabled || !s.InWindow(now) {
		s.mu.Lock()
		if now.Sub(s.lastAttempt) >= pausedStampInterval {
			s.lastAttempt = now
			s.logger.Debug("retroactive sweep paused outside window")
		}
		s.mu.Unlock()
		return 0
	}

	s.mu.Lock()
	s.lastAttempt = now
	s.mu.Unlock()

	tagged := 0
	for _, path := range s.listFiles(s.root, s.depth) {
		if ctx.Err() != nil {
			break
		}
		uid, err := s.ownerUID(path)
		if err != nil || uid < s.minUID {
			continue
		}
		if s.tagger.ProcessRetroactive(ctx, path) {
			tagged++
		}
	}

	s.mu.Lock()
	s.lastScan = now
	s.mu.Unlock()

	if tagged > 0 {
		s.logger.Info("retroactive sweep tagged files",
			logging.Int("tagged", tagged))
	}
	return tagged
}

// LastAttempt reports when the sweeper last woke, window open or not.
func (s *Sweeper) LastAttempt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAttempt
}

// LastScan reports when a sweep last actually ran.
func (s *Sweeper) LastScan() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastScan
}
