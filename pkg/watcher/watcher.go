package watcher

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/kumarabd/gokit/logger"
	"github.com/sentinel-ops/log-sentinel/internal/metrics"
	"golang.org/x/text/unicode/norm"
)

// Config contains configuration for the log file watcher.
type Config struct {
	Path           string        `json:"path" yaml:"path" default:"/var/log/app.log"`
	FromStart      bool          `json:"from_start" yaml:"from_start" default:"true"`              // Read existing content on startup
	PollInterval   time.Duration `json:"poll_interval" yaml:"poll_interval" default:"500ms"`       // Fallback poll when fsnotify is quiet
	QueueSize      int           `json:"queue_size" yaml:"queue_size" default:"100"`               // Line channel buffer
	MaxRetries     int           `json:"max_retries" yaml:"max_retries" default:"5"`               // Restarts before giving up
	RetryBaseDelay time.Duration `json:"retry_base_delay" yaml:"retry_base_delay" default:"1s"`    // Initial restart backoff
	MaxRetryDelay  time.Duration `json:"max_retry_delay" yaml:"max_retry_delay" default:"30s"`  // Backoff cap
}

// Watcher tails a log file and emits complete lines on a channel. Appends
// are picked up through fsnotify events with a poll-ticker fallback;
// truncation (logrotate copytruncate) reseeks to the start of the file.
type Watcher struct {
	cfg    *Config
	log    *logger.Handler
	metric *metrics.Handler

	// offset survives restarts so a recovered watcher resumes close to
	// where it failed. Duplicate tail lines after a crash are acceptable.
	offset  int64
	partial strings.Builder
}

// New creates a watcher for the configured path.
func New(cfg *Config, log *logger.Handler, metric *metrics.Handler) *Watcher {
	return &Watcher{
		cfg:    cfg,
		log:    log,
		metric: metric,
	}
}

// Run tails the file until ctx is cancelled, restarting the underlying
// watch with exponential backoff on failure. The output channel is closed
// on return; that close is the pipeline's termination signal. Exceeding the
// retry budget returns an error, the one collaborator failure that
// escalates to a fatal condition.
func (w *Watcher) Run(ctx context.Context, out chan<- string) error {
	defer close(out)

	delay := w.cfg.RetryBaseDelay
	if delay <= 0 {
		delay = time.Second
	}
	retries := 0

	for {
		err := w.watch(ctx, out)
		if err == nil || errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return nil
		}

		retries++
		if retries > w.cfg.MaxRetries {
			return fmt.Errorf("watcher for %s gave up after %d restarts: %w", w.cfg.Path, w.cfg.MaxRetries, err)
		}

		w.metric.IncWatcherRestarts(w.cfg.Path)
		w.log.Warn().Err(err).
			Str("path", w.cfg.Path).
			Int("attempt", retries).
			Dur("backoff", delay).
			Msg("watcher failed, restarting")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil
		}

		delay *= 2
		if w.cfg.MaxRetryDelay > 0 && delay > w.cfg.MaxRetryDelay {
			delay = w.cfg.MaxRetryDelay
		}
	}
}

// watch performs a single tail session. It returns on context cancellation
// or on an unrecoverable file/notify error.
func (w *Watcher) watch(ctx context.Context, out chan<- string) error {
	f, err := os.Open(w.cfg.Path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", w.cfg.Path, err)
	}
	// f is swapped on rotation, close whichever handle is current.
	defer func() { f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", w.cfg.Path, err)
	}

	switch {
	case w.offset > 0 && w.offset <= info.Size():
		// Resume after a restart.
	case !w.cfg.FromStart:
		w.offset = info.Size()
	default:
		w.offset = 0
	}
	if _, err := f.Seek(w.offset, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek %s: %w", w.cfg.Path, err)
	}

	notifier, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fs watcher: %w", err)
	}
	defer notifier.Close()

	// Watch the directory so rotation/recreate of the file is still seen.
	if err := notifier.Add(filepath.Dir(w.cfg.Path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.cfg.Path, err)
	}

	pollInterval := w.cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	reader := bufio.NewReader(f)
	if err := w.drain(ctx, f, reader, out); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-notifier.Events:
			if !ok {
				return fmt.Errorf("fs watcher event channel closed")
			}
			if event.Name != w.cfg.Path {
				continue
			}
			if event.Has(fsnotify.Create) {
				// Rotation by rename+create: a fresh file now lives at the
				// watched path and the handle we hold points at the renamed
				// one. Reopen and read the new file from the start.
				f, err = w.reopen(f)
				if err != nil {
					return err
				}
				reader.Reset(f)
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if err := w.drain(ctx, f, reader, out); err != nil {
					return err
				}
			}

		case nerr, ok := <-notifier.Errors:
			if !ok {
				return fmt.Errorf("fs watcher error channel closed")
			}
			return fmt.Errorf("fs watcher error: %w", nerr)

		case <-ticker.C:
			// Catch a rename+create rotation even when fsnotify was quiet.
			if rotated(f, w.cfg.Path) {
				f, err = w.reopen(f)
				if err != nil {
					return err
				}
				reader.Reset(f)
			}
			if err := w.drain(ctx, f, reader, out); err != nil {
				return err
			}
		}
	}
}

// reopen swaps the tail onto the file currently at the watched path,
// discarding the offset and any partial fragment from the rotated-away one.
func (w *Watcher) reopen(old *os.File) (*os.File, error) {
	f, err := os.Open(w.cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to reopen %s after rotation: %w", w.cfg.Path, err)
	}
	old.Close()
	w.offset = 0
	w.partial.Reset()
	return f, nil
}

// rotated reports whether the watched path no longer refers to the open
// handle. A stat failure is not rotation; a vanished file surfaces as a
// read error on the next drain instead.
func rotated(f *os.File, path string) bool {
	cur, err := os.Stat(path)
	if err != nil {
		return false
	}
	old, err := f.Stat()
	if err != nil {
		return false
	}
	return !os.SameFile(cur, old)
}

// drain reads everything appended since the last read and emits complete
// lines. A trailing fragment without a newline is carried until completed.
func (w *Watcher) drain(ctx context.Context, f *os.File, reader *bufio.Reader, out chan<- string) error {
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", w.cfg.Path, err)
	}

	// Truncation: the file shrank below our offset, start over.
	if info.Size() < w.offset {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("failed to reseek %s: %w", w.cfg.Path, err)
		}
		w.offset = 0
		w.partial.Reset()
		reader.Reset(f)
	}

	for {
		chunk, err := reader.ReadString('\n')
		w.offset += int64(len(chunk))

		if err == nil {
			w.partial.WriteString(strings.TrimRight(chunk, "\n"))
			line := norm.NFC.String(w.partial.String())
			w.partial.Reset()
			select {
			case out <- line:
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		if errors.Is(err, io.EOF) {
			w.partial.WriteString(chunk)
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", w.cfg.Path, err)
	}
}
