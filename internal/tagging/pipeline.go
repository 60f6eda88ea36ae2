// Package tagging stamps newly observed paths with identity metadata and
// routes them onward. Each path is processed at most once per daemon
// lifetime: a failed tag attempt still marks the path processed, bounding
// total work when the tag backend is persistently broken.
package tagging

import (
	"context"
	"log/slog"

	"tierwatch/internal/events"
	"tierwatch/internal/identity"
	"tierwatch/internal/logging"
	"tierwatch/internal/pathset"
)

// TagBackend is the subset of the storage CLI the pipeline needs.
type TagBackend interface {
	SetTag(ctx context.Context, path, name, value string) error
	AddObjective(ctx context.Context, objective, path string) error
}

// Router decides and performs ingestion submission for tagged paths.
type Router interface {
	EligibleFile(path string) bool
	EligibleFolder(path string) bool
	SubmitFile(ctx context.Context, path string) error
	SubmitFolder(ctx context.Context, folder string) error
}

// Pipeline applies identity tags and the fast-tier objective to settled
// paths, then hands eligible ones to the ingestion router.
type Pipeline struct {
	tagged    *pathset.Set
	backend   TagBackend
	router    Router
	eventLog  *events.Log
	logger    *slog.Logger
	objective string

	ingestIDTag  string
	mediaTypeTag string

	retroactiveCount int

	compute func(path string) identity.Identity
}

// New constructs a pipeline over the shared tagged-path set.
func New(tagged *pathset.Set, backend TagBackend, router Router, objective, ingestIDTag, mediaTypeTag string, eventLog *events.Log, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		tagged:       tagged,
		backend:      backend,
		router:       router,
		eventLog:     eventLog,
		logger:       logging.NewComponentLogger(logger, "tagging"),
		objective:    objective,
		ingestIDTag:  ingestIDTag,
		mediaTypeTag: mediaTypeTag,
		compute:      identity.Compute,
	}
}

// ProcessBatch runs the full pipeline over a flushed batch and reports how
// many paths were newly tagged. One NEW_FILES record covers the whole
// batch, listing only paths that actually got tags.
func (p *Pipeline) ProcessBatch(ctx context.Context, paths []string) int {
	var tagged []string
	for _, path := range paths {
		if !p.tagged.Add(path) {
			p.logger.Debug("skipping already processed path",
				logging.String(logging.FieldPath, path))
			continue
		}
		if _, ok := p.applyTags(ctx, path); !ok {
			continue
		}
		tagged = append(tagged, path)

		if err := p.backend.AddObjective(ctx, p.objective, path); err != nil {
			// Tagged but not promoted is self-healing: the next sweep by
			// tag covers it.
			p.logger.Warn("fast-tier objective failed",
				logging.String(logging.FieldPath, path),
				logging.Error(err))
		}

		p.route(ctx, path)
	}

	if len(tagged) > 0 {
		p.eventLog.Emit(events.NewFiles(tagged))
	}
	return len(tagged)
}

// ProcessRetroactive tags one path found by the retroactive sweep. Only the
// identity tags are applied: placement and ingestion are live-traffic
// concerns, not catch-up ones.
func (p *Pipeline) ProcessRetroactive(ctx context.Context, path string) bool {
	if !p.tagged.Add(path) {
		return false
	}
	id, ok := p.applyTags(ctx, path)
	if !ok {
		return false
	}
	p.eventLog.Emit(events.RetroactiveTag(path, p.ingestIDTag, id.Signature))
	p.retroactiveCount++
	return true
}

// RetroactiveCount reports how many paths the retroactive sweeps tagged.
func (p *Pipeline) RetroactiveCount() int {
	return p.retroactiveCount
}

// TaggedCount reports the tagged-path set size.
func (p *Pipeline) TaggedCount() int {
	return p.tagged.Len()
}

// applyTags computes identity once and stamps both tags, returning the
// identity so callers never hash the file a second time. The path counts as
// processed either way; the ok result only governs event emission.
func (p *Pipeline) applyTags(ctx context.Context, path string) (identity.Identity, bool) {
	id := p.compute(path)

	idErr := p.backend.SetTag(ctx, path, p.ingestIDTag, id.Signature)
	typeErr := p.backend.SetTag(ctx, path, p.mediaTypeTag, id.MediaType)
	if idErr != nil || typeErr != nil {
		p.logger.Error("tagging failed",
			logging.String(logging.FieldPath, path),
			logging.Error(firstError(idErr, typeErr)))
		return id, false
	}

	p.logger.Info("path tagged",
		logging.String(logging.FieldPath, path),
		logging.String(logging.FieldTag, p.ingestIDTag+"="+id.Signature),
		logging.String("media_type", id.MediaType),
	)
	return id, true
}

func (p *Pipeline) route(ctx context.Context, path string) {
	switch {
	case p.router.EligibleFolder(path):
		if err := p.router.SubmitFolder(ctx, path); err != nil {
			p.logger.Error("folder ingestion failed",
				logging.String(logging.FieldPath, path),
				logging.Error(err))
		}
	case p.router.EligibleFile(path):
		if err := p.router.SubmitFile(ctx, path); err != nil {
			p.logger.Error("file ingestion failed",
				logging.String(logging.FieldPath, path),
				logging.Error(err))
		}
	}
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
