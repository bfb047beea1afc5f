package aggregator

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
)

// Config contains configuration for multiline aggregation.
type Config struct {
	// MultilinePattern marks the start of a new logical entry. Empty means
	// every line is its own entry.
	MultilinePattern string        `json:"multiline_pattern" yaml:"multiline_pattern" default:""`
	IdleTimeout      time.Duration `json:"idle_timeout" yaml:"idle_timeout" default:"2s"` // Flush a stalled buffer after this long
}

// Aggregator collapses a stream of raw lines into logical log entries. A
// line matching the boundary pattern ends the buffered entry and starts a
// new one; continuation lines are appended with newline separators. A
// non-empty buffer is flushed when the idle timeout elapses and once more
// when the input stream closes, so entries are never silently dropped.
type Aggregator struct {
	boundary    *regexp.Regexp
	idleTimeout time.Duration
}

// New creates an aggregator. An invalid boundary pattern is a construction
// error and fails startup.
func New(cfg *Config) (*Aggregator, error) {
	a := &Aggregator{idleTimeout: cfg.IdleTimeout}
	if a.idleTimeout <= 0 {
		a.idleTimeout = 2 * time.Second
	}
	if cfg.MultilinePattern != "" {
		re, err := regexp.Compile(cfg.MultilinePattern)
		if err != nil {
			return nil, fmt.Errorf("invalid multiline pattern %q: %w", cfg.MultilinePattern, err)
		}
		a.boundary = re
	}
	return a, nil
}

// Run consumes lines until the channel closes, calling emit for every
// completed entry in arrival order. It is the caller's event loop and does
// not spawn goroutines of its own.
func (a *Aggregator) Run(lines <-chan string, emit func(entry string)) {
	var buf []string

	timer := time.NewTimer(a.idleTimeout)
	defer timer.Stop()
	timerArmed := true

	flush := func() {
		if len(buf) == 0 {
			return
		}
		emit(strings.Join(buf, "\n"))
		buf = buf[:0]
	}

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				// Stream closed: flush whatever is buffered and terminate.
				flush()
				return
			}

			line = strings.TrimRightFunc(line, unicode.IsSpace)

			if a.boundary == nil || a.boundary.MatchString(line) {
				flush()
			}
			buf = append(buf, line)

			// Every received line rearms the idle timer.
			if timerArmed && !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(a.idleTimeout)
			timerArmed = true

		case <-timer.C:
			timerArmed = false
			flush()
		}
	}
}
