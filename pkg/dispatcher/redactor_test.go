package dispatcher

import (
	"testing"

	"github.com/sentinel-ops/log-sentinel/pkg/model"
)

func TestRedactMessage(t *testing.T) {
	redactor := NewRedactor()

	tests := []struct {
		name     string
		input    string
		expected string
		rules    []string
	}{
		{
			name:     "IPv4 address",
			input:    "client 192.168.1.1 requested /admin",
			expected: "client <ipv4> requested /admin",
			rules:    []string{"ipv4"},
		},
		{
			name:     "Email address",
			input:    "login attempt for user@example.com",
			expected: "login attempt for <email>",
			rules:    []string{"email"},
		},
		{
			name:     "UUID",
			input:    "session 123e4567-e89b-42d3-a456-426614174000 hijacked",
			expected: "session <uuid> hijacked",
			rules:    []string{"uuid"},
		},
		{
			name:     "Credit card",
			input:    "card 4111-1111-1111-1111 in query string",
			expected: "card <cc> in query string",
			rules:    []string{"cc"},
		},
		{
			name:     "Sixteen digits failing Luhn stay readable",
			input:    "request 1234-5678-9012-3456 completed",
			expected: "request 1234-5678-9012-3456 completed",
			rules:    nil,
		},
		{
			name:     "Phone number",
			input:    "contact +15551234567 in payload",
			expected: "contact <phone> in payload",
			rules:    []string{"phone"},
		},
		{
			name:     "Multiple PII types",
			input:    "user john@example.com from 10.0.0.8",
			expected: "user <email> from <ipv4>",
			rules:    []string{"ipv4", "email"},
		},
		{
			name:     "No PII",
			input:    "ordinary log entry",
			expected: "ordinary log entry",
			rules:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			redacted, applied := redactor.RedactMessage(tt.input)
			if redacted != tt.expected {
				t.Errorf("RedactMessage(%q) = %q, want %q", tt.input, redacted, tt.expected)
			}
			if len(applied) != len(tt.rules) {
				t.Fatalf("applied rules = %v, want %v", applied, tt.rules)
			}
			seen := make(map[string]bool, len(applied))
			for _, r := range applied {
				seen[r] = true
			}
			for _, r := range tt.rules {
				if !seen[r] {
					t.Errorf("rule %q did not fire (applied: %v)", r, applied)
				}
			}
		})
	}
}

func TestRedactAlertCopies(t *testing.T) {
	redactor := NewRedactor()

	alert := &model.SecurityAlert{
		Severity:    model.SeverityHigh,
		AttackType:  "Credential Stuffing",
		Description: "repeated logins from 203.0.113.9",
		OriginalLog: "POST /login user=admin@corp.example ip=203.0.113.9",
	}

	clean := redactor.RedactAlert(alert)
	if clean == alert {
		t.Fatal("expected a redacted copy, got the original pointer")
	}
	if clean.OriginalLog != "POST /login user=<email> ip=<ipv4>" {
		t.Errorf("original log not redacted: %q", clean.OriginalLog)
	}
	if clean.Description != "repeated logins from <ipv4>" {
		t.Errorf("description not redacted: %q", clean.Description)
	}

	// The source alert is untouched.
	if alert.OriginalLog != "POST /login user=admin@corp.example ip=203.0.113.9" {
		t.Errorf("input alert was mutated: %q", alert.OriginalLog)
	}
}

func TestRedactAlertNoPII(t *testing.T) {
	redactor := NewRedactor()
	alert := &model.SecurityAlert{Description: "plain description", OriginalLog: "plain line"}

	if got := redactor.RedactAlert(alert); got != alert {
		t.Error("alert without PII should pass through unchanged")
	}
}
