// Package config provides configuration loading for briefd.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the briefd daemon.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Logging     LoggingConfig     `koanf:"logging"`
	Compression CompressionConfig `koanf:"compression"`
	Model       ModelConfig       `koanf:"model"`
	Briefing    BriefingConfig    `koanf:"briefing"`
	Providers   ProvidersConfig   `koanf:"providers"`
	Telemetry   TelemetryConfig   `koanf:"telemetry"`
}

// TelemetryConfig holds trace export settings. Metrics always export
// through the Prometheus registry behind /metrics.
type TelemetryConfig struct {
	// TraceEndpoint is the OTLP gRPC collector address. Empty disables
	// trace export.
	TraceEndpoint string `koanf:"trace_endpoint"`
	Insecure      bool   `koanf:"insecure"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// CompressionConfig holds settings for the token-compression vendor client.
type CompressionConfig struct {
	BaseURL        string   `koanf:"base_url"`
	APIKey         Secret   `koanf:"api_key"`
	Model          string   `koanf:"model"`
	Aggressiveness float64  `koanf:"aggressiveness"`
	Timeout        Duration `koanf:"timeout"`
	MaxConcurrency int      `koanf:"max_concurrency"`
	CacheTTL       Duration `koanf:"cache_ttl"`
}

// ModelConfig holds settings for the generative model client.
type ModelConfig struct {
	BaseURL string `koanf:"base_url"`
	APIKey  Secret `koanf:"api_key"`
	Model   string `koanf:"model"`
	// RateLimit is requests per second allowed against the model API.
	RateLimit float64  `koanf:"rate_limit"`
	Timeout   Duration `koanf:"timeout"`
}

// BriefingConfig holds pipeline-level settings.
type BriefingConfig struct {
	CacheTTL Duration `koanf:"cache_ttl"`
	// RequestDeadline bounds one full pipeline run end to end.
	RequestDeadline Duration `koanf:"request_deadline"`
}

// ProvidersConfig holds credentials and endpoints for upstream sources.
type ProvidersConfig struct {
	GitHubToken Secret `koanf:"github_token"`
	GmailURL    string `koanf:"gmail_url"`
	CalendarURL string `koanf:"calendar_url"`
	// QuerySources maps a source name (github, slack, linear, ...) to the
	// base URL of its event feed, consumed by the query engine.
	QuerySources map[string]string `koanf:"query_sources"`
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Compression.Aggressiveness < 0 || c.Compression.Aggressiveness > 1 {
		return fmt.Errorf("compression aggressiveness must be in [0,1], got %v", c.Compression.Aggressiveness)
	}
	if c.Compression.MaxConcurrency < 1 {
		return fmt.Errorf("compression max_concurrency must be >= 1, got %d", c.Compression.MaxConcurrency)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging format must be 'json' or 'console', got %q", c.Logging.Format)
	}
	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8090
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Compression.BaseURL == "" {
		cfg.Compression.BaseURL = "https://api.thetokencompany.com"
	}
	if cfg.Compression.Model == "" {
		cfg.Compression.Model = "bear-1"
	}
	if cfg.Compression.Aggressiveness == 0 {
		cfg.Compression.Aggressiveness = 0.5
	}
	if cfg.Compression.Timeout == 0 {
		cfg.Compression.Timeout = Duration(4 * time.Second)
	}
	if cfg.Compression.MaxConcurrency == 0 {
		cfg.Compression.MaxConcurrency = 3
	}
	if cfg.Compression.CacheTTL == 0 {
		cfg.Compression.CacheTTL = Duration(12 * time.Hour)
	}

	if cfg.Model.BaseURL == "" {
		cfg.Model.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if cfg.Model.Model == "" {
		cfg.Model.Model = "gemini-2.5-flash"
	}
	if cfg.Model.RateLimit == 0 {
		cfg.Model.RateLimit = 2
	}
	if cfg.Model.Timeout == 0 {
		cfg.Model.Timeout = Duration(60 * time.Second)
	}

	if cfg.Briefing.CacheTTL == 0 {
		cfg.Briefing.CacheTTL = Duration(15 * time.Minute)
	}
	if cfg.Briefing.RequestDeadline == 0 {
		cfg.Briefing.RequestDeadline = Duration(30 * time.Second)
	}
}
