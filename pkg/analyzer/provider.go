package analyzer

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sentinel-ops/log-sentinel/pkg/model"
)

// Provider is the classifier backend boundary. Implementations wrap
// differing wire protocols; the pipeline only depends on this shape.
// Analyze and AnalyzeBatch return either the literal string "NULL" (benign)
// or a JSON document with the verdict(s).
type Provider interface {
	Analyze(ctx context.Context, line string, source model.LogSource) (string, error)
	AnalyzeBatch(ctx context.Context, lines []string, source model.LogSource) (string, error)
	Name() string
}

// Config contains configuration for the classifier and its agent.
type Config struct {
	Provider       string        `json:"provider" yaml:"provider" default:"ollama"` // ollama, openai, gemini
	Model          string        `json:"model" yaml:"model" default:"llama3"`
	APIURL         string        `json:"api_url" yaml:"api_url" default:""`
	APIKey         string        `json:"api_key" yaml:"api_key" default:""`
	APIKeyFile     string        `json:"api_key_file" yaml:"api_key_file" default:""` // Read the key from a file instead
	Timeout        time.Duration `json:"timeout" yaml:"timeout" default:"30s"`        // Per-call timeout
	MaxRetries     int           `json:"max_retries" yaml:"max_retries" default:"2"`
	RetryBaseDelay time.Duration `json:"retry_base_delay" yaml:"retry_base_delay" default:"200ms"`

	BreakerMaxFailures int           `json:"breaker_max_failures" yaml:"breaker_max_failures" default:"5"`
	BreakerResetAfter  time.Duration `json:"breaker_reset_after" yaml:"breaker_reset_after" default:"30s"`

	CacheTTL time.Duration `json:"cache_ttl" yaml:"cache_ttl" default:"5m"` // Benign-verdict cache TTL
}

// NewProvider builds the configured classifier backend. A missing API key
// for a backend that requires one is a startup error.
func NewProvider(cfg *Config) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "ollama":
		apiURL := cfg.APIURL
		if apiURL == "" {
			apiURL = "http://localhost:11434/api/generate"
		}
		return NewOllamaProvider(cfg.Model, apiURL, cfg.Timeout), nil
	case "openai":
		key, err := resolveAPIKey(cfg)
		if err != nil {
			return nil, err
		}
		return NewOpenAIProvider(key, cfg.Model, cfg.APIURL, cfg.Timeout), nil
	case "gemini":
		key, err := resolveAPIKey(cfg)
		if err != nil {
			return nil, err
		}
		return NewGeminiProvider(key, cfg.Model, cfg.APIURL, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown classifier provider: %q", cfg.Provider)
	}
}

func resolveAPIKey(cfg *Config) (string, error) {
	if cfg.APIKey != "" {
		return cfg.APIKey, nil
	}
	if cfg.APIKeyFile != "" {
		data, err := os.ReadFile(cfg.APIKeyFile)
		if err != nil {
			return "", fmt.Errorf("failed to read API key file %s: %w", cfg.APIKeyFile, err)
		}
		key := strings.TrimSpace(string(data))
		if key == "" {
			return "", fmt.Errorf("API key file %s is empty", cfg.APIKeyFile)
		}
		return key, nil
	}
	return "", fmt.Errorf("missing API key for provider %q", cfg.Provider)
}

// linePrompt asks the backend for a verdict on one entry.
func linePrompt(line string, source model.LogSource) string {
	return fmt.Sprintf(
		"Analyze this log of %s: %q. If it is a threat, respond ONLY with a JSON object containing these fields: "+
			"'severity' (LOW, MEDIUM, HIGH, CRITICAL), 'attack_type', and 'description'. "+
			"If it is NOT a threat, respond with the word 'NULL'.",
		source.Context(), line)
}

// batchPrompt asks the backend for index-correlated verdicts on a batch.
func batchPrompt(lines []string, source model.LogSource) string {
	var sb strings.Builder
	fmt.Fprintf(&sb,
		"Analyze these %d logs of %s. Respond ONLY with a JSON array containing one object per log: "+
			"{\"index\": <log number>, \"status\": \"NULL\"} if the log is NOT a threat, or "+
			"{\"index\": <log number>, \"severity\": \"LOW|MEDIUM|HIGH|CRITICAL\", \"attack_type\": \"...\", \"description\": \"...\"} if it is.\n",
		len(lines), source.Context())
	for i, line := range lines {
		fmt.Fprintf(&sb, "Log %d: %q\n", i, line)
	}
	return sb.String()
}

// cleanResponse strips markdown code fences some backends wrap around JSON.
func cleanResponse(content string) string {
	cleaned := strings.TrimSpace(content)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	return strings.TrimSpace(cleaned)
}
