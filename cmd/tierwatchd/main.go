package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"tierwatch/internal/batcher"
	"tierwatch/internal/config"
	"tierwatch/internal/daemon"
	"tierwatch/internal/events"
	"tierwatch/internal/ingest"
	"tierwatch/internal/jobstore"
	"tierwatch/internal/logging"
	"tierwatch/internal/monitor"
	"tierwatch/internal/pathset"
	"tierwatch/internal/placement"
	"tierwatch/internal/retroactive"
	"tierwatch/internal/scanner"
	"tierwatch/internal/services/hstk"
	"tierwatch/internal/services/indexverify"
	"tierwatch/internal/services/kubejob"
	"tierwatch/internal/tagging"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	eventLog, err := events.Open(cfg.Paths.EventLog, logger)
	if err != nil {
		logger.Error("open event log", logging.Error(err))
		os.Exit(1)
	}
	defer eventLog.Close()

	store, err := jobstore.Open(cfg)
	if err != nil {
		logger.Error("open job ledger", logging.Error(err))
		os.Exit(1)
	}

	tagClient, err := hstk.New(cfg.Storage.Binary, cfg.MountRefreshArgs(), cfg.Storage.CommandTimeout, logger)
	if err != nil {
		logger.Error("init storage client", logging.Error(err))
		os.Exit(1)
	}

	jobRunner, err := kubejob.New(cfg.Ingest.KubectlBinary, cfg.Ingest.Namespace, logger)
	if err != nil {
		logger.Error("init job runner", logging.Error(err))
		os.Exit(1)
	}

	verifier := indexverify.New(cfg.Ingest.IngestorURL, cfg.Ingest.VerifyTimeout, logger)
	tiers := placement.New(tagClient, cfg.Placement.FastTierObjective, cfg.Paths.WatchRoots, eventLog, logger)
	ingestCtrl := ingest.New(cfg, tagClient, jobRunner, verifier, tiers, store, eventLog, logger)

	known := pathset.New()
	tagged := pathset.New()
	pipeline := tagging.New(tagged, tagClient, ingestCtrl,
		cfg.Placement.FastTierObjective, cfg.Tags.IngestID, cfg.Tags.MediaType,
		eventLog, logger)
	sweeper := retroactive.New(cfg, pipeline, logger)

	batch := batcher.New(batcher.Options{
		FlushInterval:   cfg.BatchInterval(),
		LowTrafficLimit: cfg.Monitor.LowTrafficLimit,
		SettleDelay:     cfg.SettleDelay(),
	}, logger)

	mon := monitor.New(cfg, known, scanner.New(known, logger), batch, pipeline, sweeper, logger)

	d, err := daemon.New(cfg, store, mon, ingestCtrl, eventLog, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		os.Exit(1)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("tierwatchd shutting down")
}
