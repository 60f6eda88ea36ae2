// Package placement moves data between storage tiers by tag: every file
// carrying a given tag value gets a placement objective applied or removed.
// Sweeps resolve their path list through the tag backend at run time, so
// each sweep covers whatever matches the tag right now; callers run them on
// demand, not on a timer.
package placement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"tierwatch/internal/events"
	"tierwatch/internal/logging"
)

// ErrDemotionInFlight reports a demotion sweep already running for the same
// tag pair. The caller should drop the request; queueing a second sweep
// behind the first would demote files the first sweep just finished with.
var ErrDemotionInFlight = errors.New("demotion already in flight for tag")

// TagBackend is the subset of the storage CLI the controller needs.
type TagBackend interface {
	ListTagMatches(ctx context.Context, root, name, value string) ([]string, error)
	AddObjective(ctx context.Context, objective, path string) error
	RemoveObjective(ctx context.Context, objective, path string) error
}

// Controller runs tag-scoped placement sweeps over the watched roots.
type Controller struct {
	backend   TagBackend
	objective string
	roots     []string
	eventLog  *events.Log
	logger    *slog.Logger

	mu        sync.Mutex
	demotions map[string]struct{}
}

// New constructs a controller applying the given fast-tier objective.
func New(backend TagBackend, objective string, roots []string, eventLog *events.Log, logger *slog.Logger) *Controller {
	return &Controller{
		backend:   backend,
		objective: objective,
		roots:     roots,
		eventLog:  eventLog,
		logger:    logging.NewComponentLogger(logger, "placement"),
		demotions: make(map[string]struct{}),
	}
}

// PromoteByTag applies the fast-tier objective to every file tagged
// name=value. The sweep succeeds when at least one file promotes; per-file
// failures are logged and skipped.
func (c *Controller) PromoteByTag(ctx context.Context, name, value string) ([]string, error) {
	matches, err := c.findTagged(ctx, name, value)
	if err != nil {
		return nil, err
	}

	var promoted []string
	for _, path := range matches {
		if err := c.backend.AddObjective(ctx, c.objective, path); err != nil {
			c.logger.Warn("promotion failed for path",
				logging.String(logging.FieldPath, path),
				logging.Error(err))
			continue
		}
		promoted = append(promoted, path)
	}

	if len(matches) > 0 && len(promoted) == 0 {
		return nil, fmt.Errorf("promote %s=%s: all %d candidates failed", name, value, len(matches))
	}
	if len(promoted) > 0 {
		c.eventLog.Emit(events.Promotion(name, value, c.objective, promoted))
	}
	c.logger.Info("promotion sweep complete",
		logging.String(logging.FieldTag, name+"="+value),
		logging.Int("matched", len(matches)),
		logging.Int("promoted", len(promoted)),
	)
	return promoted, nil
}

// DemoteByTag removes the fast-tier objective from every file tagged
// name=value. At most one demotion runs per tag pair at a time; a
// concurrent request for the same pair returns ErrDemotionInFlight.
func (c *Controller) DemoteByTag(ctx context.Context, name, value string) ([]string, error) {
	key := name + "=" + value
	c.mu.Lock()
	if _, busy := c.demotions[key]; busy {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDemotionInFlight, key)
	}
	c.demotions[key] = struct{}{}
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.demotions, key)
		c.mu.Unlock()
	}()

	matches, err := c.findTagged(ctx, name, value)
	if err != nil {
		return nil, err
	}

	var demoted []string
	for _, path := range matches {
		if err := c.backend.RemoveObjective(ctx, c.objective, path); err != nil {
			c.logger.Warn("demotion failed for path",
				logging.String(logging.FieldPath, path),
				logging.Error(err))
			continue
		}
		demoted = append(demoted, path)
	}

	if len(matches) > 0 && len(demoted) == 0 {
		return nil, fmt.Errorf("demote %s=%s: all %d candidates failed", name, value, len(matches))
	}
	if len(demoted) > 0 {
		c.eventLog.Emit(events.Demotion(name, value, c.objective, demoted))
	}
	c.logger.Info("demotion sweep complete",
		logging.String(logging.FieldTag, key),
		logging.Int("matched", len(matches)),
		logging.Int("demoted", len(demoted)),
	)
	return demoted, nil
}

// findTagged resolves the tagged paths under every watched root. An empty
// value matches any value, so sweeps can target a tag name without knowing
// what each file was stamped with.
func (c *Controller) findTagged(ctx context.Context, name, value string) ([]string, error) {
	var matches []string
	for _, root := range c.roots {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		paths, err := c.backend.ListTagMatches(ctx, root, name, value)
		if err != nil {
			return nil, fmt.Errorf("resolve %s=%s under %s: %w", name, value, root, err)
		}
		matches = append(matches, paths...)
	}
	return matches, nil
}
