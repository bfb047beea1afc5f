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

const defaultGeminiURL = "https://generativelanguage.googleapis.com/v1beta/models"

// GeminiProvider classifies entries through the Gemini generateContent API.
type GeminiProvider struct {
	client *http.Client
	apiKey string
	model  string
	apiURL string
}

// NewGeminiProvider creates a provider. An empty apiURL falls back to the
// hosted endpoint.
func NewGeminiProvider(apiKey, modelName, apiURL string, timeout time.Duration) *GeminiProvider {
	if apiURL == "" {
		apiURL = defaultGeminiURL
	}
	return &GeminiProvider{
		client: &http.Client{Timeout: timeout},
		apiKey: apiKey,
		model:  modelName,
		apiURL: apiURL,
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (p *GeminiProvider) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal gemini request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", p.apiURL, p.model, p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call gemini: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("gemini returned error status: %d", resp.StatusCode)
	}

	var out geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode gemini response: %w", err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content in gemini response")
	}

	return out.Candidates[0].Content.Parts[0].Text, nil
}

// Analyze classifies a single entry.
func (p *GeminiProvider) Analyze(ctx context.Context, line string, source model.LogSource) (string, error) {
	content, err := p.generate(ctx, linePrompt(line, source))
	if err != nil {
		return "", err
	}
	return normalizeContent(content), nil
}

// AnalyzeBatch classifies a batch of entries in one round-trip.
func (p *GeminiProvider) AnalyzeBatch(ctx context.Context, lines []string, source model.LogSource) (string, error) {
	content, err := p.generate(ctx, batchPrompt(lines, source))
	if err != nil {
		return "", err
	}
	return normalizeBatchContent(content), nil
}

func (p *GeminiProvider) Name() string {
	return "gemini"
}
