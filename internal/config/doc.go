// Package config loads and validates the YAML configuration: the monitored
// entities with their thresholds, the data and input file paths, the
// telemetry endpoint, and the webhook targets. Watch provides optional
// hot-reload for daemon mode; a failed reload keeps the previous
// configuration active.
package config
