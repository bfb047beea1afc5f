package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sentinel-ops/log-sentinel/pkg/model"
)

const defaultOpenAIURL = "https://api.openai.com/v1/chat/completions"

// OpenAIProvider classifies entries through the OpenAI chat completions API
// or any compatible endpoint.
type OpenAIProvider struct {
	client *http.Client
	apiKey string
	model  string
	apiURL string
}

// NewOpenAIProvider creates a provider. An empty apiURL falls back to the
// hosted endpoint.
func NewOpenAIProvider(apiKey, modelName, apiURL string, timeout time.Duration) *OpenAIProvider {
	if apiURL == "" {
		apiURL = defaultOpenAIURL
	}
	return &OpenAIProvider{
		client: &http.Client{Timeout: timeout},
		apiKey: apiKey,
		model:  modelName,
		apiURL: apiURL,
	}
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
}

func (p *OpenAIProvider) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(openAIRequest{
		Model: p.model,
		Messages: []openAIMessage{
			{Role: "system", Content: "You are a cybersecurity expert. Respond in JSON format only."},
			{Role: "user", Content: prompt},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal openai request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create openai request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call openai: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("openai returned error status: %d", resp.StatusCode)
	}

	var out openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode openai response: %w", err)
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("no content in openai response")
	}

	return out.Choices[0].Message.Content, nil
}

// Analyze classifies a single entry.
func (p *OpenAIProvider) Analyze(ctx context.Context, line string, source model.LogSource) (string, error) {
	content, err := p.complete(ctx, linePrompt(line, source))
	if err != nil {
		return "", err
	}
	return normalizeContent(content), nil
}

// AnalyzeBatch classifies a batch of entries in one round-trip.
func (p *OpenAIProvider) AnalyzeBatch(ctx context.Context, lines []string, source model.LogSource) (string, error) {
	content, err := p.complete(ctx, batchPrompt(lines, source))
	if err != nil {
		return "", err
	}
	return normalizeBatchContent(content), nil
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}
