package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Severity levels assigned by the classifier.
const (
	SeverityLow      = "LOW"
	SeverityMedium   = "MEDIUM"
	SeverityHigh     = "HIGH"
	SeverityCritical = "CRITICAL"
)

// RawLine is a single log line as produced by the watcher.
type RawLine struct {
	Text       string    `json:"text"`
	ReceivedAt time.Time `json:"received_at"`
}

// Verdict is the classifier's judgment for a single entry. A nil Verdict
// means the entry is benign.
type Verdict struct {
	Severity    string `json:"severity"`
	AttackType  string `json:"attack_type"`
	Description string `json:"description"`
}

// SecurityAlert is a confirmed threat. It is immutable once built and flows
// through the dispatcher to the configured sinks.
type SecurityAlert struct {
	ID          string `json:"id"`
	Timestamp   string `json:"timestamp"`
	SourceType  string `json:"source_type"`
	Severity    string `json:"severity"`
	AttackType  string `json:"attack_type"`
	Description string `json:"description"`
	OriginalLog string `json:"original_log"`
}

// NewAlert builds an alert from a verdict and the originating log entry.
func NewAlert(v Verdict, source LogSource, originalLog string) *SecurityAlert {
	severity := v.Severity
	if severity == "" {
		severity = SeverityLow
	}
	attackType := v.AttackType
	if attackType == "" {
		attackType = "Unknown"
	}
	return &SecurityAlert{
		ID:          uuid.NewString(),
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		SourceType:  source.String(),
		Severity:    severity,
		AttackType:  attackType,
		Description: v.Description,
		OriginalLog: originalLog,
	}
}

// String renders the alert in the compact form used by the console sink and
// the file logger.
func (a *SecurityAlert) String() string {
	return fmt.Sprintf("ALERT - Severity: %s, Type: %s, Description: %s",
		a.Severity, a.AttackType, a.Description)
}

// BatchResultItem is one element of a batch classification response. Status
// "NULL" marks the referenced entry as benign.
type BatchResultItem struct {
	Index       int    `json:"index"`
	Status      string `json:"status,omitempty"`
	Severity    string `json:"severity,omitempty"`
	AttackType  string `json:"attack_type,omitempty"`
	Description string `json:"description,omitempty"`
}
