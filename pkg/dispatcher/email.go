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

// EmailConfig contains configuration for the email relay sink.
type EmailConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled" default:"false"`
	Recipient string `json:"recipient" yaml:"recipient" default:""`
	From      string `json:"from" yaml:"from" default:""`
	APIURL    string `json:"api_url" yaml:"api_url" default:""`
}

// EmailSink delivers alerts through an outbound email relay API.
type EmailSink struct {
	client    *http.Client
	recipient string
	from      string
	apiURL    string
}

// NewEmailSink creates the email relay sink.
func NewEmailSink(cfg *EmailConfig, timeout time.Duration) *EmailSink {
	return &EmailSink{
		client:    &http.Client{Timeout: timeout},
		recipient: cfg.Recipient,
		from:      cfg.From,
		apiURL:    cfg.APIURL,
	}
}

func (s *EmailSink) Name() string   { return "email" }
func (s *EmailSink) External() bool { return true }

func (s *EmailSink) Send(ctx context.Context, alert *model.SecurityAlert) error {
	payload := map[string]string{
		"to":      s.recipient,
		"from":    s.from,
		"subject": fmt.Sprintf("Security Alert: %s", alert.Severity),
		"text": fmt.Sprintf(
			"Detected threat type: %s\nSource: %s\nDescription: %s\nOriginal log: %s",
			alert.AttackType, alert.SourceType, alert.Description, alert.OriginalLog),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send alert email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("email relay returned error status: %d", resp.StatusCode)
	}
	return nil
}
