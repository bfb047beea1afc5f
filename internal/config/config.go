package config

import (
	"fmt"
	"time"

	config_pkg "github.com/kumarabd/gokit/config"
	"github.com/sentinel-ops/log-sentinel/internal/metrics"
	"github.com/sentinel-ops/log-sentinel/pkg/aggregator"
	"github.com/sentinel-ops/log-sentinel/pkg/analyzer"
	"github.com/sentinel-ops/log-sentinel/pkg/batcher"
	"github.com/sentinel-ops/log-sentinel/pkg/dispatcher"
	"github.com/sentinel-ops/log-sentinel/pkg/ratelimit"
	"github.com/sentinel-ops/log-sentinel/pkg/server"
	"github.com/sentinel-ops/log-sentinel/pkg/watcher"
)

var (
	ApplicationName    = "log-sentinel"
	ApplicationVersion = "dev"
)

type Config struct {
	// Source is the kind of server the watched log belongs to
	// (tomcat, nginx, dotnet, generic).
	Source string `json:"source" yaml:"source"`
	// SignatureFile points to the signature set; empty uses the built-ins.
	SignatureFile string `json:"signature_file" yaml:"signature_file"`

	Server     *server.Config     `json:"server,omitempty" yaml:"server,omitempty"`
	Watcher    *watcher.Config    `json:"watcher" yaml:"watcher"`
	Aggregator *aggregator.Config `json:"aggregator" yaml:"aggregator"`
	Analyzer   *analyzer.Config   `json:"analyzer" yaml:"analyzer"`
	Batch      *batcher.Config    `json:"batch" yaml:"batch"`
	RateLimit  *ratelimit.Config  `json:"rate_limit" yaml:"rate_limit"`
	Dispatch   *dispatcher.Config `json:"dispatch" yaml:"dispatch"`
	Metrics    *metrics.Options   `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

// New creates a new config instance
func New() (*Config, error) {
	// Create default config object
	configObject := &Config{
		Source: "generic",
		Server: &server.Config{
			Host:         "0.0.0.0",
			Port:         "9090",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Watcher: &watcher.Config{
			Path:           "/var/log/app.log",
			FromStart:      true,
			PollInterval:   500 * time.Millisecond,
			QueueSize:      100,
			MaxRetries:     5,
			RetryBaseDelay: time.Second,
			MaxRetryDelay:  30 * time.Second,
		},
		Aggregator: &aggregator.Config{
			MultilinePattern: "",              // every line is its own entry
			IdleTimeout:      2 * time.Second, // flush a stalled multiline buffer
		},
		Analyzer: &analyzer.Config{
			Provider:           "ollama",
			Model:              "llama3",
			Timeout:            30 * time.Second,
			MaxRetries:         2,
			RetryBaseDelay:     200 * time.Millisecond,
			BreakerMaxFailures: 5,
			BreakerResetAfter:  30 * time.Second,
			CacheTTL:           5 * time.Minute,
		},
		Batch: &batcher.Config{
			MaxSize: 10,              // entries per classification batch
			MaxWait: 5 * time.Second, // flush latency bound
		},
		RateLimit: &ratelimit.Config{
			Burst:  3,                // alerts per attack type
			Period: 30 * time.Second, // full bucket refill
		},
		Dispatch: &dispatcher.Config{
			MaxAttempts:    3,
			RetryDelay:     time.Second,
			RequestTimeout: 10 * time.Second,
			RedactPII:      true,
			Console:        &dispatcher.ConsoleConfig{Enabled: true},
			BFF:            &dispatcher.BFFConfig{Enabled: false},
			Chat:           &dispatcher.ChatConfig{Enabled: false},
			Email:          &dispatcher.EmailConfig{Enabled: false},
			File:           &dispatcher.FileConfig{Enabled: false, Path: "alerts.log"},
		},
		Metrics: &metrics.Options{},
	}

	// Load config using gokit config package
	finalConfig, err := config_pkg.New(configObject)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Safe type assertion
	if finalConfig == nil {
		return nil, fmt.Errorf("config is nil")
	}

	cfg, ok := finalConfig.(*Config)
	if !ok {
		return nil, fmt.Errorf("config type assertion failed: expected *Config, got %T", finalConfig)
	}

	return cfg, nil
}
