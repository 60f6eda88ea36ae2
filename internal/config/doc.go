// Package config loads, normalizes, and validates tierwatch configuration
// from TOML, providing repository defaults for every setting.
package config
