package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	WatchRoots []string `toml:"watch_roots"`
	HubRoot    string   `toml:"hub_root"`
	LogDir     string   `toml:"log_dir"`
	EventLog   string   `toml:"event_log"`
	APIBind    string   `toml:"api_bind"`
}

// Storage contains configuration for the tag-capable storage backend CLI.
type Storage struct {
	Binary              string `toml:"binary"`
	MountRefreshCommand string `toml:"mount_refresh_command"`
	CommandTimeout      int    `toml:"command_timeout"`
}

// Monitor contains configuration for the polling/batching loop.
type Monitor struct {
	BatchInterval    int `toml:"batch_interval"`
	PollInterval     int `toml:"poll_interval"`
	FastPollInterval int `toml:"fast_poll_interval"`
	SettleDelayMS    int `toml:"settle_delay_ms"`
	LowTrafficLimit  int `toml:"low_traffic_limit"`
	ScanDepth        int `toml:"scan_depth"`
}

// Retroactive contains configuration for the off-hours untagged-file sweep.
type Retroactive struct {
	Enabled         bool   `toml:"enabled"`
	ScanInterval    int    `toml:"scan_interval"`
	WindowStartHour int    `toml:"window_start_hour"`
	WindowEndHour   int    `toml:"window_end_hour"`
	Timezone        string `toml:"timezone"`
	MinUID          int    `toml:"min_uid"`
}

// Tags contains the tag names written to the storage backend.
type Tags struct {
	IngestID  string `toml:"ingest_id"`
	MediaType string `toml:"media_type"`
	State     string `toml:"state"`
	Embedding string `toml:"embedding"`
}

// Placement contains configuration for tier objectives.
type Placement struct {
	FastTierObjective string `toml:"fast_tier_objective"`
}

// Ingest contains configuration for downstream embedding jobs.
type Ingest struct {
	Enabled          bool     `toml:"enabled"`
	Extensions       []string `toml:"extensions"`
	MaxAgeHours      int      `toml:"max_age_hours"`
	PollAttempts     int      `toml:"poll_attempts"`
	PollInterval     int      `toml:"poll_interval"`
	FolderRetries    int      `toml:"folder_retries"`
	FolderRetryDelay int      `toml:"folder_retry_delay"`
	KubectlBinary    string   `toml:"kubectl_binary"`
	Namespace        string   `toml:"namespace"`
	ContainerImage   string   `toml:"container_image"`
	PVCName          string   `toml:"pvc_name"`
	DataMountPrefix  string   `toml:"data_mount_prefix"`
	IngestorURL      string   `toml:"ingestor_url"`
	VerifyTimeout    int      `toml:"verify_timeout"`
	CollectionPrefix string   `toml:"collection_prefix"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for tierwatch.
//
// Configuration sections by subsystem:
//   - Paths: watched roots, hub root, log directory, event log, API bind
//   - Storage: hs CLI binary, mount refresh command, per-call timeout
//   - Monitor: poll/batch cadence and settle checks
//   - Retroactive: off-hours untagged sweep window and filters
//   - Tags: tag names written to the backend
//   - Placement: fast-tier objective name
//   - Ingest: embedding job eligibility, submission, and verification
//   - Logging: log format and level
type Config struct {
	Paths       Paths       `toml:"paths"`
	Storage     Storage     `toml:"storage"`
	Monitor     Monitor     `toml:"monitor"`
	Retroactive Retroactive `toml:"retroactive"`
	Tags        Tags        `toml:"tags"`
	Placement   Placement   `toml:"placement"`
	Ingest      Ingest      `toml:"ingest"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/tierwatch/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("tierwatch.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Paths.LogDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.LogDir, err)
	}
	return nil
}

// CommandTimeout returns the bounded timeout applied to every backend CLI call.
func (c *Config) CommandTimeout() time.Duration {
	secs := c.Storage.CommandTimeout
	if secs <= 0 {
		secs = defaultCommandTimeout
	}
	return time.Duration(secs) * time.Second
}

// BatchInterval returns the cadence at which pending discovery batches
// flush.
func (c *Config) BatchInterval() time.Duration {
	secs := c.Monitor.BatchInterval
	if secs <= 0 {
		secs = defaultBatchInterval
	}
	return time.Duration(secs) * time.Second
}

// MountRefreshArgs splits the configured mount refresh command into argv
// form. Empty when no refresh command is configured.
func (c *Config) MountRefreshArgs() []string {
	return strings.Fields(c.Storage.MountRefreshCommand)
}

// SettleDelay returns the pause used to detect files still being written.
func (c *Config) SettleDelay() time.Duration {
	ms := c.Monitor.SettleDelayMS
	if ms <= 0 {
		ms = defaultSettleDelayMS
	}
	return time.Duration(ms) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
