package dispatcher

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/kumarabd/gokit/logger"
	"github.com/sentinel-ops/log-sentinel/pkg/model"
)

// Sink is a delivery destination for confirmed alerts. Implementations must
// be safe for concurrent Send calls.
type Sink interface {
	Name() string
	// External reports whether delivery leaves the host. External sinks
	// receive the PII-redacted copy of an alert when redaction is enabled.
	External() bool
	Send(ctx context.Context, alert *model.SecurityAlert) error
}

// Config contains configuration for the dispatcher and its sinks.
type Config struct {
	MaxAttempts    int           `json:"max_attempts" yaml:"max_attempts" default:"3"`          // Delivery attempts per sink
	RetryDelay     time.Duration `json:"retry_delay" yaml:"retry_delay" default:"1s"`           // Base delay, grows linearly per attempt
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout" default:"10s"`  // HTTP sink timeout
	RedactPII      bool          `json:"redact_pii" yaml:"redact_pii" default:"true"`           // Redact alerts sent to external sinks

	Console *ConsoleConfig `json:"console" yaml:"console"`
	BFF     *BFFConfig     `json:"bff" yaml:"bff"`
	Chat    *ChatConfig    `json:"chat" yaml:"chat"`
	Email   *EmailConfig   `json:"email" yaml:"email"`
	File    *FileConfig    `json:"file" yaml:"file"`
}

// ConsoleConfig enables the console sink.
type ConsoleConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled" default:"true"`
}

// FileConfig contains configuration for the append-only file sink.
type FileConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled" default:"false"`
	Path    string `json:"path" yaml:"path" default:"alerts.log"`
}

// ConsoleSink logs confirmed alerts through the process logger.
type ConsoleSink struct {
	log *logger.Handler
}

// NewConsoleSink creates the console sink.
func NewConsoleSink(log *logger.Handler) *ConsoleSink {
	return &ConsoleSink{log: log}
}

func (s *ConsoleSink) Name() string   { return "console" }
func (s *ConsoleSink) External() bool { return false }

func (s *ConsoleSink) Send(_ context.Context, alert *model.SecurityAlert) error {
	s.log.Info().
		Str("severity", alert.Severity).
		Str("attack_type", alert.AttackType).
		Str("source", alert.SourceType).
		Str("description", alert.Description).
		Str("original_log", alert.OriginalLog).
		Msg("CONFIRMED THREAT")
	return nil
}

// FileSink appends one formatted line per alert to a local file.
type FileSink struct {
	path string
	mu   sync.Mutex
}

// NewFileSink creates the file sink.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

func (s *FileSink) Name() string   { return "file" }
func (s *FileSink) External() bool { return false }

func (s *FileSink) Send(_ context.Context, alert *model.SecurityAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open alert file %s: %w", s.path, err)
	}
	defer f.Close()

	line := fmt.Sprintf("[%s] %s - %s\n", alert.Timestamp, alert.Severity, alert.Description)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("failed to append alert to %s: %w", s.path, err)
	}
	return nil
}
