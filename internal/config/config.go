package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/livefeeds/feedwatch/internal/timewin"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultRetryCount           = 5
	DefaultTimeout              = 5 * time.Second
	DefaultUpdateIntervalFactor = 2
	DefaultFeedIntervalFactor   = 2
	DefaultElapsedTimeFactor    = 2
	DefaultConsecutiveFailures  = 3
	DefaultMaxEvents            = 20
	DefaultRetentionDays        = 7
	DefaultUsageDateRange       = "24H"
	DefaultRSSExtension         = "rss"
	DefaultUsageLowerBound      = -25
	DefaultUsageUpperBound      = 25
)

// Config is the top-level configuration for a feedwatch run.
type Config struct {
	// DataDir roots all persisted state: status.json, ResponseTimeData/,
	// event_history/, rss/, and the lock file.
	DataDir string `yaml:"data_dir"`

	// StatusCodesFile is the read-only status-code catalog. Required.
	StatusCodesFile string `yaml:"status_codes_file"`

	// CommentsFile is the read-only admin comments file. Required.
	CommentsFile string `yaml:"comments_file"`

	// Platform configures the content-platform client.
	Platform PlatformConfig `yaml:"platform"`

	// Telemetry configures the feed-processor snapshot endpoint.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// RSS configures feed rendering.
	RSS RSSConfig `yaml:"rss"`

	// Metrics configures the optional Prometheus textfile export.
	Metrics MetricsConfig `yaml:"metrics"`

	// Webhooks are notification targets hit when an entity's public status
	// message changes.
	Webhooks []WebhookConfig `yaml:"webhooks"`

	// Entities is the monitored fleet. At least one entry is required.
	Entities []Entity `yaml:"entities"`
}

// PlatformConfig points the platform client at its portal.
type PlatformConfig struct {
	// BaseURL is the portal root, e.g. "https://www.arcgis.com".
	BaseURL string `yaml:"base_url"`

	// TokenEnv names the environment variable holding the access token used
	// for subscription-gated content. Empty disables token auth.
	TokenEnv string `yaml:"token_env"`
}

// Token returns the platform token resolved from the environment.
func (p PlatformConfig) Token() string {
	if p.TokenEnv == "" {
		return ""
	}
	return os.Getenv(p.TokenEnv)
}

// TelemetryConfig locates the feed processor's per-entity snapshots.
type TelemetryConfig struct {
	// BaseURL is the snapshot root; entity snapshots live at
	// <base_url>/<id>.json.
	BaseURL string `yaml:"base_url"`

	Retries int           `yaml:"retries"`
	Timeout time.Duration `yaml:"timeout"`
}

// RSSConfig configures feed rendering.
type RSSConfig struct {
	// Dir is the output directory. Defaults to <data_dir>/rss.
	Dir string `yaml:"dir"`

	// TemplateFile and ItemTemplateFile override the built-in channel and
	// item templates when non-empty.
	TemplateFile     string `yaml:"template_file"`
	ItemTemplateFile string `yaml:"item_template_file"`
}

// MetricsConfig configures the Prometheus textfile export. An empty File
// disables the export.
type MetricsConfig struct {
	File string `yaml:"file"`
}

// WebhookConfig defines one notification target.
type WebhookConfig struct {
	// Type is one of: slack | teams | http.
	Type string `yaml:"type"`

	// URLEnv names the environment variable holding the webhook URL.
	URLEnv string `yaml:"url_env"`

	// Cooldown suppresses repeat notifications per entity for this duration.
	Cooldown time.Duration `yaml:"cooldown"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// Entity is one monitored feed service. Config values seed the first tick;
// the platform is authoritative for title, snippet, and service URL whenever
// the item is reachable.
type Entity struct {
	// ID is the platform item ID, unique across the fleet.
	ID string `yaml:"id"`

	// Title and Snippet are fallback display values used until the platform
	// supplies live ones.
	Title   string `yaml:"title"`
	Snippet string `yaml:"snippet"`

	// ServiceURL is the configured service endpoint, used when the item
	// cannot be resolved.
	ServiceURL string `yaml:"service_url"`

	// UpdateIntervalFactor scales the processor's average update interval
	// into the staleness threshold (rule 001).
	UpdateIntervalFactor float64 `yaml:"update_interval_factor"`

	// FeedIntervalFactor scales the processor's average feed interval into
	// the run-recency threshold (rule 002).
	FeedIntervalFactor float64 `yaml:"feed_interval_factor"`

	// ElapsedTimeFactor scales the rolling elapsed-time average into the
	// latency-outlier threshold (rule 101).
	ElapsedTimeFactor float64 `yaml:"elapsed_time_factor"`

	// ConsecutiveFailuresThreshold gates rules 003-005.
	ConsecutiveFailuresThreshold int `yaml:"consecutive_failures_threshold"`

	// RetryCount is the probe retry budget; exceeding it trips rule 100.
	RetryCount int `yaml:"default_retry_count"`

	// Timeout bounds each probe attempt.
	Timeout time.Duration `yaml:"default_timeout"`

	// ExcludedLayers are layer IDs skipped from the feature-count sum.
	ExcludedLayers []int `yaml:"excluded_layers"`

	// Exclude suppresses response-time persistence inside these windows.
	Exclude timewin.Config `yaml:"exclude"`

	// UsageLowerBound and UsageUpperBound classify the usage percent change.
	UsageLowerBound float64 `yaml:"percent_lower_bound"`
	UsageUpperBound float64 `yaml:"percent_upper_bound"`

	// UsageDateRange is the platform usage query range.
	UsageDateRange string `yaml:"usage_date_range"`

	// MaxEvents caps the entity's event history length.
	MaxEvents int `yaml:"max_events"`

	// RetentionDays bounds the age of retained history events.
	RetentionDays int `yaml:"rss_time_range_days"`

	// RSSExtension is the rendered feed's file extension.
	RSSExtension string `yaml:"rss_file_extension"`

	// RSSCommentsHeader titles the admin comments block in the feed.
	RSSCommentsHeader string `yaml:"rss_comments_header"`
}

// Load reads and parses the YAML config file at path. Missing optional
// fields are filled with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if cfg.RSS.Dir == "" {
		cfg.RSS.Dir = filepath.Join(cfg.DataDir, "rss")
	}
	if cfg.Telemetry.Retries <= 0 {
		cfg.Telemetry.Retries = DefaultRetryCount
	}
	if cfg.Telemetry.Timeout <= 0 {
		cfg.Telemetry.Timeout = DefaultTimeout
	}
	for i := range cfg.Entities {
		e := &cfg.Entities[i]
		if e.UpdateIntervalFactor <= 0 {
			e.UpdateIntervalFactor = DefaultUpdateIntervalFactor
		}
		if e.FeedIntervalFactor <= 0 {
			e.FeedIntervalFactor = DefaultFeedIntervalFactor
		}
		if e.ElapsedTimeFactor <= 0 {
			e.ElapsedTimeFactor = DefaultElapsedTimeFactor
		}
		if e.ConsecutiveFailuresThreshold <= 0 {
			e.ConsecutiveFailuresThreshold = DefaultConsecutiveFailures
		}
		if e.RetryCount <= 0 {
			e.RetryCount = DefaultRetryCount
		}
		if e.Timeout <= 0 {
			e.Timeout = DefaultTimeout
		}
		if e.MaxEvents <= 0 {
			e.MaxEvents = DefaultMaxEvents
		}
		if e.RetentionDays <= 0 {
			e.RetentionDays = DefaultRetentionDays
		}
		if e.UsageDateRange == "" {
			e.UsageDateRange = DefaultUsageDateRange
		}
		if e.RSSExtension == "" {
			e.RSSExtension = DefaultRSSExtension
		}
		if e.UsageLowerBound == 0 && e.UsageUpperBound == 0 {
			e.UsageLowerBound = DefaultUsageLowerBound
			e.UsageUpperBound = DefaultUsageUpperBound
		}
	}
}

// validate checks required fields and structural constraints. A fleet with
// zero entities is a fatal configuration, not an empty run.
func validate(cfg *Config) error {
	if cfg.StatusCodesFile == "" {
		return fmt.Errorf("status_codes_file is required")
	}
	if cfg.CommentsFile == "" {
		return fmt.Errorf("comments_file is required")
	}
	if cfg.Telemetry.BaseURL == "" {
		return fmt.Errorf("telemetry.base_url is required")
	}
	if len(cfg.Entities) == 0 {
		return fmt.Errorf("no entities configured")
	}

	seen := make(map[string]bool, len(cfg.Entities))
	for i, e := range cfg.Entities {
		if e.ID == "" {
			return fmt.Errorf("entities[%d]: id is required", i)
		}
		if seen[e.ID] {
			return fmt.Errorf("entities[%d]: duplicate id %q", i, e.ID)
		}
		seen[e.ID] = true
		if e.ServiceURL == "" {
			return fmt.Errorf("entities[%d] %q: service_url is required", i, e.ID)
		}
		if e.UsageLowerBound > e.UsageUpperBound {
			return fmt.Errorf("entities[%d] %q: percent_lower_bound exceeds percent_upper_bound", i, e.ID)
		}
		if _, err := timewin.Parse(e.Exclude); err != nil {
			return fmt.Errorf("entities[%d] %q: %w", i, e.ID, err)
		}
	}

	for i, w := range cfg.Webhooks {
		switch w.Type {
		case "slack", "teams", "http":
		default:
			return fmt.Errorf("webhooks[%d]: unknown type %q", i, w.Type)
		}
		if w.URLEnv == "" {
			return fmt.Errorf("webhooks[%d]: url_env is required", i)
		}
	}

	return nil
}
