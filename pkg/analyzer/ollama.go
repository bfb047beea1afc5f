package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sentinel-ops/log-sentinel/pkg/model"
)

// OllamaProvider classifies entries through a local Ollama model server.
type OllamaProvider struct {
	client *http.Client
	model  string
	apiURL string
}

// NewOllamaProvider creates a provider for the given model and endpoint.
func NewOllamaProvider(modelName, apiURL string, timeout time.Duration) *OllamaProvider {
	return &OllamaProvider{
		client: &http.Client{Timeout: timeout},
		model:  modelName,
		apiURL: apiURL,
	}
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

func (p *OllamaProvider) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(ollamaRequest{
		Model:  p.model,
		Prompt: prompt,
		Stream: false,
		Format: "json",
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("ollama returned error status: %d", resp.StatusCode)
	}

	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode ollama response: %w", err)
	}
	if out.Response == "" {
		return "", fmt.Errorf("no response field in ollama reply")
	}

	return out.Response, nil
}

// Analyze classifies a single entry.
func (p *OllamaProvider) Analyze(ctx context.Context, line string, source model.LogSource) (string, error) {
	content, err := p.generate(ctx, linePrompt(line, source))
	if err != nil {
		return "", err
	}
	return normalizeContent(content), nil
}

// AnalyzeBatch classifies a batch of entries in one round-trip.
func (p *OllamaProvider) AnalyzeBatch(ctx context.Context, lines []string, source model.LogSource) (string, error) {
	content, err := p.generate(ctx, batchPrompt(lines, source))
	if err != nil {
		return "", err
	}
	return normalizeBatchContent(content), nil
}

func (p *OllamaProvider) Name() string {
	return "ollama"
}

// normalizeContent maps a single-entry reply to either "NULL" or a JSON
// verdict object. Anything malformed is benign, never an error.
func normalizeContent(content string) string {
	if strings.Contains(content, "NULL") {
		return "NULL"
	}
	cleaned := cleanResponse(content)
	if json.Valid([]byte(cleaned)) {
		return cleaned
	}
	return "NULL"
}

// normalizeBatchContent maps a batch reply to either "NULL" or the JSON
// result array. Batch replies carry per-item NULL statuses inside the
// array, so only structurally invalid responses collapse to "NULL".
func normalizeBatchContent(content string) string {
	cleaned := cleanResponse(content)
	if json.Valid([]byte(cleaned)) {
		return cleaned
	}
	return "NULL"
}
