package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeStorage()
	c.normalizeMonitor()
	c.normalizeRetroactive()
	c.normalizeTags()
	c.normalizeIngest()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.HubRoot, err = expandPath(c.Paths.HubRoot); err != nil {
		return fmt.Errorf("paths.hub_root: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}

	roots := make([]string, 0, len(c.Paths.WatchRoots))
	seen := map[string]struct{}{}
	for _, root := range c.Paths.WatchRoots {
		if strings.TrimSpace(root) == "" {
			continue
		}
		expanded, err := expandPath(root)
		if err != nil {
			return fmt.Errorf("paths.watch_roots: %w", err)
		}
		if _, ok := seen[expanded]; ok {
			continue
		}
		seen[expanded] = struct{}{}
		roots = append(roots, expanded)
	}
	if len(roots) == 0 && c.Paths.HubRoot != "" {
		roots = append(roots, c.Paths.HubRoot)
	}
	c.Paths.WatchRoots = roots

	if strings.TrimSpace(c.Paths.EventLog) == "" {
		c.Paths.EventLog = filepath.Join(c.Paths.LogDir, "events.jsonl")
	} else if c.Paths.EventLog, err = expandPath(c.Paths.EventLog); err != nil {
		return fmt.Errorf("paths.event_log: %w", err)
	}

	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeStorage() {
	c.Storage.Binary = strings.TrimSpace(c.Storage.Binary)
	if c.Storage.Binary == "" {
		c.Storage.Binary = defaultStorageBinary
	}
	c.Storage.MountRefreshCommand = strings.TrimSpace(c.Storage.MountRefreshCommand)
	if c.Storage.CommandTimeout <= 0 {
		c.Storage.CommandTimeout = defaultCommandTimeout
	}
}

func (c *Config) normalizeMonitor() {
	if c.Monitor.BatchInterval <= 0 {
		c.Monitor.BatchInterval = defaultBatchInterval
	}
	if c.Monitor.PollInterval <= 0 {
		c.Monitor.PollInterval = defaultPollInterval
	}
	if c.Monitor.FastPollInterval <= 0 {
		c.Monitor.FastPollInterval = defaultFastPollInterval
	}
	if c.Monitor.SettleDelayMS <= 0 {
		c.Monitor.SettleDelayMS = defaultSettleDelayMS
	}
	if c.Monitor.LowTrafficLimit <= 0 {
		c.Monitor.LowTrafficLimit = defaultLowTrafficLimit
	}
	if c.Monitor.ScanDepth <= 0 {
		c.Monitor.ScanDepth = defaultScanDepth
	}
}

func (c *Config) normalizeRetroactive() {
	if c.Retroactive.ScanInterval <= 0 {
		c.Retroactive.ScanInterval = defaultRetroScanInterval
	}
	if c.Retroactive.MinUID <= 0 {
		c.Retroactive.MinUID = defaultRetroMinUID
	}
	c.Retroactive.Timezone = strings.TrimSpace(c.Retroactive.Timezone)
}

func (c *Config) normalizeTags() {
	if strings.TrimSpace(c.Tags.IngestID) == "" {
		c.Tags.IngestID = defaultIngestIDTag
	}
	if strings.TrimSpace(c.Tags.MediaType) == "" {
		c.Tags.MediaType = defaultMediaTypeTag
	}
	if strings.TrimSpace(c.Tags.State) == "" {
		c.Tags.State = defaultStateTag
	}
	if strings.TrimSpace(c.Tags.Embedding) == "" {
		c.Tags.Embedding = defaultEmbeddingTag
	}
}

func (c *Config) normalizeIngest() {
	exts := make([]string, 0, len(c.Ingest.Extensions))
	for _, ext := range c.Ingest.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	if len(exts) == 0 {
		exts = append([]string(nil), defaultIngestExtensions...)
	}
	c.Ingest.Extensions = exts

	if c.Ingest.MaxAgeHours <= 0 {
		c.Ingest.MaxAgeHours = defaultMaxAgeHours
	}
	if c.Ingest.PollAttempts <= 0 {
		c.Ingest.PollAttempts = defaultPollAttempts
	}
	if c.Ingest.PollInterval <= 0 {
		c.Ingest.PollInterval = defaultIngestPollInterval
	}
	if c.Ingest.FolderRetries < 0 {
		c.Ingest.FolderRetries = defaultFolderRetries
	}
	if c.Ingest.FolderRetryDelay <= 0 {
		c.Ingest.FolderRetryDelay = defaultFolderRetryDelay
	}
	if strings.TrimSpace(c.Ingest.KubectlBinary) == "" {
		c.Ingest.KubectlBinary = defaultKubectlBinary
	}
	if strings.TrimSpace(c.Ingest.Namespace) == "" {
		c.Ingest.Namespace = defaultIngestNamespace
	}
	if strings.TrimSpace(c.Ingest.ContainerImage) == "" {
		c.Ingest.ContainerImage = defaultContainerImage
	}
	if strings.TrimSpace(c.Ingest.PVCName) == "" {
		c.Ingest.PVCName = defaultPVCName
	}
	if strings.TrimSpace(c.Ingest.DataMountPrefix) == "" {
		c.Ingest.DataMountPrefix = defaultDataMountPrefix
	}
	c.Ingest.IngestorURL = strings.TrimRight(strings.TrimSpace(c.Ingest.IngestorURL), "/")
	if c.Ingest.IngestorURL == "" {
		c.Ingest.IngestorURL = defaultIngestorURL
	}
	if c.Ingest.VerifyTimeout <= 0 {
		c.Ingest.VerifyTimeout = defaultVerifyTimeout
	}
	if strings.TrimSpace(c.Ingest.CollectionPrefix) == "" {
		c.Ingest.CollectionPrefix = defaultCollectionPrefix
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
