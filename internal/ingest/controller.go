// Package ingest drives the downstream embedding pipeline: it decides which
// files and folders qualify, submits cluster jobs, tracks each job to
// completion, verifies the result against the index, and releases fast-tier
// placement when a job is done.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"tierwatch/internal/config"
	"tierwatch/internal/events"
	"tierwatch/internal/jobstore"
	"tierwatch/internal/logging"
	"tierwatch/internal/placement"
	"tierwatch/internal/scanner"
	"tierwatch/internal/services/indexverify"
	"tierwatch/internal/services/kubejob"
)

// TagClient is the subset of the storage CLI the controller needs.
type TagClient interface {
	SetTag(ctx context.Context, path, name, value string) error
}

// JobRunner submits batch jobs and reports their completion.
type JobRunner interface {
	Submit(ctx context.Context, spec kubejob.Spec) error
	Succeeded(ctx context.Context, jobName string) (bool, error)
}

// Verifier checks the downstream index for a document's embeddings.
type Verifier interface {
	Confirm(ctx context.Context, path, collection string) indexverify.Outcome
}

// TierController runs tag-scoped placement sweeps.
type TierController interface {
	PromoteByTag(ctx context.Context, name, value string) ([]string, error)
	DemoteByTag(ctx context.Context, name, value string) ([]string, error)
}

// Controller owns the ingestion job lifecycle. File submissions run on the
// caller's goroutine; folder submissions and completion polling run on
// background goroutines tracked by Wait.
type Controller struct {
	enabled         bool
	extensions      []string
	hubRoot         string
	dataMountPrefix string
	maxAge          time.Duration
	scanDepth       int

	pollAttempts     int
	pollInterval     time.Duration
	folderRetries    int
	folderRetryDelay time.Duration

	namespace        string
	image            string
	pvcName          string
	ingestorURL      string
	collectionPrefix string

	embeddingTag string
	stateTag     string

	tags     TagClient
	runner   JobRunner
	verifier Verifier
	tiers    TierController
	ledger   *jobstore.Store
	eventLog *events.Log
	logger   *slog.Logger

	wg    sync.WaitGroup
	now   func() time.Time
	sleep func(context.Context, time.Duration) bool

	listFiles func(root string, depth int) []string
}

// New constructs a controller from configuration and its collaborators.
func New(cfg *config.Config, tags TagClient, runner JobRunner, verifier Verifier, tiers TierController, ledger *jobstore.Store, eventLog *events.Log, logger *slog.Logger) *Controller {
	return &Controller{
		enabled:          cfg.Ingest.Enabled,
		extensions:       cfg.Ingest.Extensions,
		hubRoot:          cfg.Paths.HubRoot,
		dataMountPrefix:  cfg.Ingest.DataMountPrefix,
		maxAge:           time.Duration(cfg.Ingest.MaxAgeHours) * time.Hour,
		scanDepth:        cfg.Monitor.ScanDepth,
		pollAttempts:     cfg.Ingest.PollAttempts,
		pollInterval:     time.Duration(cfg.Ingest.PollInterval) * time.Second,
		folderRetries:    cfg.Ingest.FolderRetries,
		folderRetryDelay: time.Duration(cfg.Ingest.FolderRetryDelay) * time.Second,
		namespace:        cfg.Ingest.Namespace,
		image:            cfg.Ingest.ContainerImage,
		pvcName:          cfg.Ingest.PVCName,
		ingestorURL:      cfg.Ingest.IngestorURL,
		collectionPrefix: cfg.Ingest.CollectionPrefix,
		embeddingTag:     cfg.Tags.Embedding,
		stateTag:         cfg.Tags.State,
		tags:             tags,
		runner:           runner,
		verifier:         verifier,
		tiers:            tiers,
		ledger:           ledger,
		eventLog:         eventLog,
		logger:           logging.NewComponentLogger(logger, "ingest"),
		now:              time.Now,
		sleep:            sleepCtx,
		listFiles:        scanner.ListFiles,
	}
}

// SubmitFile submits a single-file ingestion job into a fresh counter-named
// collection.
func (c *Controller) SubmitFile(ctx context.Context, path string) error {
	seq, err := c.ledger.NextCollectionSeq(ctx)
	if err != nil {
		return fmt.Errorf("next collection seq: %w", err)
	}
	collection := CollectionFromSeq(c.collectionPrefix, seq)

	err = c.submit(ctx, jobstore.KindFile, path, collection, seq, []string{path})
	if err != nil {
		c.eventLog.Emit(events.IngestFailure(path, err.Error()))
		return err
	}
	return nil
}

// SubmitFolder schedules one job covering a folder's eligible files into a
// collection named after the folder. The work runs on its own goroutine:
// an empty first listing sleeps between retries to absorb replication lag,
// and holding the scheduling loop for those delays would stall discovery.
// Failures surface through the event log rather than the return value.
func (c *Controller) SubmitFolder(ctx context.Context, folder string) error {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.submitFolderJob(ctx, folder)
	}()
	return nil
}

// submitFolderJob lists the folder, retrying while empty, then submits. A
// folder event can land before the backend finishes replicating the
// folder's contents, so an empty listing is retried a bounded number of
// times before it counts as a failure.
func (c *Controller) submitFolderJob(ctx context.Context, folder string) {
	files := c.eligibleListing(folder)
	for attempt := 0; len(files) == 0 && attempt < c.folderRetries; attempt++ {
		c.logger.Info("folder listing empty, waiting for replication",
			logging.String(logging.FieldPath, folder),
			logging.Int("attempt", attempt+1),
		)
		if !c.sleep(ctx, c.folderRetryDelay) {
			return
		}
		files = c.eligibleListing(folder)
	}
	if len(files) == 0 {
		err := fmt.Errorf("no eligible files under %s after %d attempts", folder, c.folderRetries+1)
		c.logger.Error("folder ingestion failed",
			logging.String(logging.FieldPath, folder),
			logging.Error(err))
		c.eventLog.Emit(events.FolderIngestFailure(folder, err.Error()))
		return
	}

	collection := CollectionFromFolder(filepath.Base(folder))
	if err := c.submit(ctx, jobstore.KindFolder, folder, collection, 0, files); err != nil {
		c.logger.Error("folder ingestion failed",
			logging.String(logging.FieldPath, folder),
			logging.Error(err))
		c.eventLog.Emit(events.FolderIngestFailure(folder, err.Error()))
	}
}

// submit stamps the embedding tag, promotes by that tag, applies the
// cluster job, records the ledger row, and starts the completion poller.
// Tagging precedes promotion so the sweep resolves the new paths.
func (c *Controller) submit(ctx context.Context, kind jobstore.Kind, sourcePath, collection string, seq int, files []string) error {
	for _, file := range files {
		if err := c.tags.SetTag(ctx, file, c.embeddingTag, collection); err != nil {
			c.logger.Warn("embedding tag failed",
				logging.String(logging.FieldPath, file),
				logging.Error(err))
		}
	}

	if _, err := c.tiers.PromoteByTag(ctx, c.embeddingTag, ""); err != nil {
		c.logger.Warn("promotion sweep failed before submission",
			logging.String(logging.FieldCollection, collection),
			logging.Error(err))
	}

	row, err := c.ledger.NewJob(ctx, kind, sourcePath, collection, seq, "", len(files))
	if err != nil {
		return fmt.Errorf("record job: %w", err)
	}
	jobName := jobNameFor(collection, row.ID)
	if err := c.ledger.SetJobName(ctx, row.ID, jobName); err != nil {
		return fmt.Errorf("record job name: %w", err)
	}

	containerFiles := make([]string, 0, len(files))
	for _, file := range files {
		containerFiles = append(containerFiles, c.containerPath(file))
	}

	spec := kubejob.Spec{
		JobName:     jobName,
		Namespace:   c.namespace,
		Collection:  collection,
		Image:       c.image,
		PVCName:     c.pvcName,
		IngestorURL: c.ingestorURL,
		Files:       containerFiles,
	}
	if err := c.runner.Submit(ctx, spec); err != nil {
		if stateErr := c.ledger.SetState(ctx, row.ID, jobstore.StateFailed, err.Error()); stateErr != nil {
			c.logger.Error("ledger update failed", logging.Error(stateErr))
		}
		return fmt.Errorf("submit job %s: %w", jobName, err)
	}

	c.logger.Info("ingestion job running",
		logging.String(logging.FieldJobName, jobName),
		logging.String(logging.FieldCollection, collection),
		logging.Int("file_count", len(files)),
	)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.pollCompletion(ctx, row.ID, kind, sourcePath, jobName, collection, files)
	}()
	return nil
}

// pollCompletion watches one job until it succeeds or the attempt ceiling
// is reached. A timeout deliberately leaves the embedding tag and fast-tier
// placement intact: demoting a possibly-still-processing file would starve
// the job, and the lingering tag makes the condition operator-visible.
func (c *Controller) pollCompletion(ctx context.Context, jobID int64, kind jobstore.Kind, sourcePath, jobName, collection string, files []string) {
	for attempt := 0; attempt < c.pollAttempts; attempt++ {
		if !c.sleep(ctx, c.pollInterval) {
			return
		}
		done, err := c.runner.Succeeded(ctx, jobName)
		if err != nil {
			c.logger.Debug("job status poll failed",
				logging.String(logging.FieldJobName, jobName),
				logging.Error(err))
			continue
		}
		if !done {
			continue
		}
		if c.finishJob(ctx, jobID, kind, sourcePath, jobName, collection, files) {
			return
		}
		// Job finished but the index has no trace yet; keep polling.
	}

	c.logger.Warn("ingestion job timed out",
		logging.String(logging.FieldJobName, jobName),
		logging.String(logging.FieldCollection, collection),
	)
	if err := c.ledger.SetState(ctx, jobID, jobstore.StateTimedOut, "completion poll ceiling reached"); err != nil {
		c.logger.Error("ledger update failed", logging.Error(err))
	}
	c.eventLog.Emit(events.EmbeddingFailure(sourcePath, fmt.Sprintf("job %s timed out after %d polls", jobName, c.pollAttempts)))
}

// finishJob runs verification and, unless the index affirmatively reports
// the content absent, marks the job verified, tags files embedded, and
// demotes the batch off the fast tier.
func (c *Controller) finishJob(ctx context.Context, jobID int64, kind jobstore.Kind, sourcePath, jobName, collection string, files []string) bool {
	confirmed := 0
	for _, file := range files {
		switch c.verifier.Confirm(ctx, file, collection) {
		case indexverify.OutcomeConfirmed:
			confirmed++
			c.eventLog.Emit(events.EmbeddingsConfirmed(file, collection))
		case indexverify.OutcomeUnreachable:
			// Runner completion stands on its own; blocking on a down
			// verification service would hold the batch hostage.
			c.logger.Warn("verification unreachable, accepting runner completion",
				logging.String(logging.FieldPath, file),
				logging.String(logging.FieldCollection, collection))
		case indexverify.OutcomeAbsent:
			if len(files) == 1 {
				return false
			}
		}
	}

	for _, file := range files {
		if err := c.tags.SetTag(ctx, file, c.stateTag, "embedded"); err != nil {
			c.logger.Warn("state tag failed",
				logging.String(logging.FieldPath, file),
				logging.Error(err))
		}
		c.eventLog.Emit(events.EmbeddingSuccess(file, collection))
	}

	detail := fmt.Sprintf("%d/%d files confirmed in index", confirmed, len(files))
	if err := c.ledger.SetState(ctx, jobID, jobstore.StateVerified, detail); err != nil {
		c.logger.Error("ledger update failed", logging.Error(err))
	}

	switch kind {
	case jobstore.KindFolder:
		c.eventLog.Emit(events.FolderIngestSuccess(sourcePath, collection, jobName, len(files)))
	default:
		c.eventLog.Emit(events.IngestSuccess(sourcePath, collection, jobName))
	}

	if _, err := c.tiers.DemoteByTag(ctx, c.embeddingTag, ""); err != nil && !errors.Is(err, placement.ErrDemotionInFlight) {
		c.logger.Warn("demotion sweep failed after completion",
			logging.String(logging.FieldCollection, collection),
			logging.Error(err))
	}

	c.logger.Info("ingestion job verified",
		logging.String(logging.FieldJobName, jobName),
		logging.String(logging.FieldCollection, collection),
		logging.String("verification", detail),
	)
	return true
}

// Wait blocks until all in-flight completion pollers exit.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// sleepCtx sleeps for d or until ctx cancels, reporting whether the full
// duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
