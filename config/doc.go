// Package config handles loading and parsing of configuration from YAML files
// and environment variables. It defines the application configuration structure
// including breaker thresholds, latch storage paths, thermal pricing tiers,
// and watchdog cadence.
package config
