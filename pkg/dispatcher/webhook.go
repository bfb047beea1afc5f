package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sentinel-ops/log-sentinel/pkg/model"
)

// BFFConfig contains configuration for the authenticated backend webhook.
type BFFConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled" default:"false"`
	URL     string `json:"url" yaml:"url" default:""`
	Token   string `json:"token" yaml:"token" default:""`
}

// BFFSink posts the full alert as JSON to an authenticated backend
// endpoint, carrying the agent token in a custom header.
type BFFSink struct {
	client *http.Client
	url    string
	token  string
}

// NewBFFSink creates the authenticated webhook sink.
func NewBFFSink(cfg *BFFConfig, timeout time.Duration) *BFFSink {
	return &BFFSink{
		client: &http.Client{Timeout: timeout},
		url:    cfg.URL,
		token:  cfg.Token,
	}
}

func (s *BFFSink) Name() string   { return "bff" }
func (s *BFFSink) External() bool { return true }

func (s *BFFSink) Send(ctx context.Context, alert *model.SecurityAlert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create bff request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Agent-Token", s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send alert to bff: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("bff returned error status: %d", resp.StatusCode)
	}
	return nil
}

// ChatConfig contains configuration for the chat webhook sink.
type ChatConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled" default:"false"`
	WebhookURL string `json:"webhook_url" yaml:"webhook_url" default:""`
}

// ChatSink posts a human-readable summary to a generic chat webhook
// (Slack-compatible payload, no auth beyond the webhook URL itself).
type ChatSink struct {
	client     *http.Client
	webhookURL string
}

// NewChatSink creates the chat webhook sink.
func NewChatSink(cfg *ChatConfig, timeout time.Duration) *ChatSink {
	return &ChatSink{
		client:     &http.Client{Timeout: timeout},
		webhookURL: cfg.WebhookURL,
	}
}

func (s *ChatSink) Name() string   { return "chat" }
func (s *ChatSink) External() bool { return true }

func (s *ChatSink) Send(ctx context.Context, alert *model.SecurityAlert) error {
	payload := map[string]string{
		"text": alert.String(),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal chat payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send alert to chat webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("chat webhook returned error status: %d", resp.StatusCode)
	}
	return nil
}
