package config

import (
	"errors"
	"fmt"
	"time"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateMonitor(); err != nil {
		return err
	}
	if err := c.validateRetroactive(); err != nil {
		return err
	}
	if err := c.validateIngest(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if len(c.Paths.WatchRoots) == 0 {
		return errors.New("paths.watch_roots must list at least one directory")
	}
	if c.Paths.HubRoot == "" {
		return errors.New("paths.hub_root must be set")
	}
	return nil
}

func (c *Config) validateMonitor() error {
	if c.Monitor.FastPollInterval > c.Monitor.PollInterval {
		return errors.New("monitor.fast_poll_interval must not exceed monitor.poll_interval")
	}
	return nil
}

func (c *Config) validateRetroactive() error {
	if c.Retroactive.WindowStartHour < 0 || c.Retroactive.WindowStartHour > 23 {
		return errors.New("retroactive.window_start_hour must be between 0 and 23")
	}
	if c.Retroactive.WindowEndHour < 0 || c.Retroactive.WindowEndHour > 24 {
		return errors.New("retroactive.window_end_hour must be between 0 and 24")
	}
	if c.Retroactive.Timezone != "" {
		if _, err := time.LoadLocation(c.Retroactive.Timezone); err != nil {
			return fmt.Errorf("retroactive.timezone: %w", err)
		}
	}
	return nil
}

func (c *Config) validateIngest() error {
	if !c.Ingest.Enabled {
		return nil
	}
	if len(c.Ingest.Extensions) == 0 {
		return errors.New("ingest.extensions must list at least one extension when ingest.enabled is true")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
		return nil
	default:
		return fmt.Errorf("logging.format must be \"console\" or \"json\", got %q", c.Logging.Format)
	}
}
