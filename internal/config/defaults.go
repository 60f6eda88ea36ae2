package config

const (
	defaultHubRoot             = "/mnt/anvil/hub"
	defaultLogDir              = "~/.local/share/tierwatch/logs"
	defaultAPIBind             = "127.0.0.1:7491"
	defaultStorageBinary       = "hs"
	defaultCommandTimeout      = 10
	defaultBatchInterval       = 15
	defaultPollInterval        = 2
	defaultFastPollInterval    = 1
	defaultSettleDelayMS       = 100
	defaultLowTrafficLimit     = 5
	defaultScanDepth           = 2
	defaultRetroScanInterval   = 5
	defaultRetroWindowStart    = 1
	defaultRetroWindowEnd      = 8
	defaultRetroMinUID         = 1000
	defaultIngestIDTag         = "ingest-id"
	defaultMediaTypeTag        = "media-type"
	defaultStateTag            = "state"
	defaultEmbeddingTag        = "embedding"
	defaultFastTierObjective   = "place-on-tier0"
	defaultMaxAgeHours         = 12
	defaultPollAttempts        = 20
	defaultIngestPollInterval  = 15
	defaultFolderRetries       = 3
	defaultFolderRetryDelay    = 30
	defaultKubectlBinary       = "kubectl"
	defaultIngestNamespace     = "default"
	defaultContainerImage      = "alpine:3.19"
	defaultPVCName             = "hub-pvc"
	defaultDataMountPrefix     = "/data"
	defaultIngestorURL         = "http://ingestor-server:8082"
	defaultVerifyTimeout       = 30
	defaultCollectionPrefix    = "intel"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// defaultIngestExtensions is the allow-list of document/image/audio types that
// qualify for downstream embedding jobs.
var defaultIngestExtensions = []string{
	".pdf", ".doc", ".docx", ".txt", ".md",
	".png", ".jpg", ".jpeg", ".tif", ".tiff",
	".mp3", ".wav",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WatchRoots: []string{defaultHubRoot},
			HubRoot:    defaultHubRoot,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		Storage: Storage{
			Binary:         defaultStorageBinary,
			CommandTimeout: defaultCommandTimeout,
		},
		Monitor: Monitor{
			BatchInterval:    defaultBatchInterval,
			PollInterval:     defaultPollInterval,
			FastPollInterval: defaultFastPollInterval,
			SettleDelayMS:    defaultSettleDelayMS,
			LowTrafficLimit:  defaultLowTrafficLimit,
			ScanDepth:        defaultScanDepth,
		},
		Retroactive: Retroactive{
			Enabled:         true,
			ScanInterval:    defaultRetroScanInterval,
			WindowStartHour: defaultRetroWindowStart,
			WindowEndHour:   defaultRetroWindowEnd,
			MinUID:          defaultRetroMinUID,
		},
		Tags: Tags{
			IngestID:  defaultIngestIDTag,
			MediaType: defaultMediaTypeTag,
			State:     defaultStateTag,
			Embedding: defaultEmbeddingTag,
		},
		Placement: Placement{
			FastTierObjective: defaultFastTierObjective,
		},
		Ingest: Ingest{
			Enabled:          true,
			Extensions:       append([]string(nil), defaultIngestExtensions...),
			MaxAgeHours:      defaultMaxAgeHours,
			PollAttempts:     defaultPollAttempts,
			PollInterval:     defaultIngestPollInterval,
			FolderRetries:    defaultFolderRetries,
			FolderRetryDelay: defaultFolderRetryDelay,
			KubectlBinary:    defaultKubectlBinary,
			Namespace:        defaultIngestNamespace,
			ContainerImage:   defaultContainerImage,
			PVCName:          defaultPVCName,
			DataMountPrefix:  defaultDataMountPrefix,
			IngestorURL:      defaultIngestorURL,
			VerifyTimeout:    defaultVerifyTimeout,
			CollectionPrefix: defaultCollectionPrefix,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
