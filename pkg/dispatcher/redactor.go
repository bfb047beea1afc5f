package dispatcher

import (
	"regexp"
	"strings"

	"github.com/sentinel-ops/log-sentinel/pkg/model"
)

// Redactor masks PII in alerts before they leave the host. The original log
// line frequently contains client addresses, session IDs and credentials
// that external alert channels should not see.
type Redactor struct {
	rules map[string]*regexp.Regexp
	order []string
}

// NewRedactor creates a redactor with compiled rules.
func NewRedactor() *Redactor {
	return &Redactor{
		rules: map[string]*regexp.Regexp{
			// IPv4 addresses (including private ranges)
			"ipv4": regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\b`),

			// IPv6 addresses
			"ipv6": regexp.MustCompile(`\b(?:[0-9a-fA-F]{1,4}:){7}[0-9a-fA-F]{1,4}\b`),

			// Email addresses
			"email": regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Z|a-z]{2,}\b`),

			// UUIDs (v4 format)
			"uuid": regexp.MustCompile(`\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-4[0-9a-fA-F]{3}-[89abAB][0-9a-fA-F]{3}-[0-9a-fA-F]{12}\b`),

			// Credit card numbers
			"cc": regexp.MustCompile(`\b(?:\d{4}[-\s]?){3}\d{4}\b`),

			// Phone numbers (E.164 format)
			"phone": regexp.MustCompile(`\+[1-9]\d{6,14}\b`),
		},
		// Most specific first.
		order: []string{"uuid", "ipv6", "ipv4", "email", "cc", "phone"},
	}
}

// RedactMessage masks all rule matches in the message and returns the
// redacted text plus the names of the rules that fired. Credit-card
// candidates must pass the Luhn checksum; arbitrary 16-digit groups
// (request IDs, trace IDs) stay readable.
func (r *Redactor) RedactMessage(message string) (string, []string) {
	redacted := message
	var applied []string

	for _, name := range r.order {
		matches := r.rules[name].FindAllString(redacted, -1)
		if name == "cc" {
			valid := matches[:0]
			for _, m := range matches {
				if luhnValid(m) {
					valid = append(valid, m)
				}
			}
			matches = valid
		}
		if len(matches) == 0 {
			continue
		}
		for _, m := range matches {
			redacted = strings.ReplaceAll(redacted, m, "<"+name+">")
		}
		applied = append(applied, name)
	}
	return redacted, applied
}

// luhnValid reports whether a candidate card number passes the Luhn
// checksum once separators are stripped.
func luhnValid(cc string) bool {
	digits := strings.Map(func(r rune) rune {
		if r == '-' || r == ' ' {
			return -1
		}
		return r
	}, cc)
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}

	sum, double := 0, false
	for i := len(digits) - 1; i >= 0; i-- {
		d := digits[i]
		if d < '0' || d > '9' {
			return false
		}
		n := int(d - '0')
		if double {
			n *= 2
			if n > 9 {
				n -= 9
			}
		}
		sum += n
		double = !double
	}
	return sum%10 == 0
}

// RedactAlert returns a copy of the alert with PII masked in the fields that
// carry raw log content. The input alert is never mutated.
func (r *Redactor) RedactAlert(alert *model.SecurityAlert) *model.SecurityAlert {
	redactedLog, logRules := r.RedactMessage(alert.OriginalLog)
	redactedDesc, descRules := r.RedactMessage(alert.Description)
	if len(logRules) == 0 && len(descRules) == 0 {
		return alert
	}

	clean := *alert
	clean.OriginalLog = redactedLog
	clean.Description = redactedDesc
	return &clean
}
