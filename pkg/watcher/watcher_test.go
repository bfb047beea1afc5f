package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kumarabd/gokit/logger"
	"github.com/sentinel-ops/log-sentinel/internal/metrics"
)

// Shared across the package's tests: prometheus collectors register once
// per process.
var testMetrics, _ = metrics.New("test")

func newTestWatcher(t *testing.T, path string, fromStart bool) *Watcher {
	t.Helper()
	log, err := logger.New("test", logger.Options{Format: logger.JSONLogFormat})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	return New(&Config{
		Path:           path,
		FromStart:      fromStart,
		PollInterval:   20 * time.Millisecond,
		QueueSize:      100,
		MaxRetries:     2,
		RetryBaseDelay: 10 * time.Millisecond,
		MaxRetryDelay:  50 * time.Millisecond,
	}, log, testMetrics)
}

func readLine(t *testing.T, out <-chan string, timeout time.Duration) string {
	t.Helper()
	select {
	case line, ok := <-out:
		if !ok {
			t.Fatal("output channel closed unexpectedly")
		}
		return line
	case <-time.After(timeout):
		t.Fatal("timed out waiting for a line")
		return ""
	}
}

func TestWatcherReadsExistingAndAppended(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	if err := os.WriteFile(path, []byte("first\nsecond\n"), 0o644); err != nil {
		t.Fatalf("Failed to seed log file: %v", err)
	}

	w := newTestWatcher(t, path, true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan string, 100)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, out) }()

	if got := readLine(t, out, 2*time.Second); got != "first" {
		t.Errorf("line 1 = %q, want %q", got, "first")
	}
	if got := readLine(t, out, 2*time.Second); got != "second" {
		t.Errorf("line 2 = %q, want %q", got, "second")
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("Failed to open for append: %v", err)
	}
	if _, err := f.WriteString("third\n"); err != nil {
		t.Fatalf("Failed to append: %v", err)
	}
	f.Close()

	if got := readLine(t, out, 2*time.Second); got != "third" {
		t.Errorf("appended line = %q, want %q", got, "third")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run returned %v after cancellation", err)
	}
}

func TestWatcherCarriesPartialLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	if err := os.WriteFile(path, []byte("incomple"), 0o644); err != nil {
		t.Fatalf("Failed to seed log file: %v", err)
	}

	w := newTestWatcher(t, path, true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan string, 100)
	go func() { _ = w.Run(ctx, out) }()

	// Nothing emitted for a fragment without a newline.
	select {
	case line := <-out:
		t.Fatalf("fragment emitted prematurely: %q", line)
	case <-time.After(100 * time.Millisecond):
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("Failed to open for append: %v", err)
	}
	if _, err := f.WriteString("te line\n"); err != nil {
		t.Fatalf("Failed to append: %v", err)
	}
	f.Close()

	if got := readLine(t, out, 2*time.Second); got != "incomplete line" {
		t.Errorf("joined line = %q, want %q", got, "incomplete line")
	}
}

func TestWatcherHandlesTruncation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	if err := os.WriteFile(path, []byte("old entry\n"), 0o644); err != nil {
		t.Fatalf("Failed to seed log file: %v", err)
	}

	w := newTestWatcher(t, path, true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan string, 100)
	go func() { _ = w.Run(ctx, out) }()

	if got := readLine(t, out, 2*time.Second); got != "old entry" {
		t.Fatalf("pre-truncation line = %q", got)
	}

	// Simulate logrotate copytruncate: shrink then write fresh content.
	if err := os.WriteFile(path, []byte("new\n"), 0o644); err != nil {
		t.Fatalf("Failed to truncate: %v", err)
	}

	if got := readLine(t, out, 2*time.Second); got != "new" {
		t.Errorf("post-truncation line = %q, want %q", got, "new")
	}
}

func TestWatcherHandlesRenameRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	if err := os.WriteFile(path, []byte("before rotate\n"), 0o644); err != nil {
		t.Fatalf("Failed to seed log file: %v", err)
	}

	w := newTestWatcher(t, path, true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan string, 100)
	go func() { _ = w.Run(ctx, out) }()

	if got := readLine(t, out, 2*time.Second); got != "before rotate" {
		t.Fatalf("pre-rotation line = %q", got)
	}

	// Logrotate default: rename the file away, then a fresh one appears at
	// the watched path.
	if err := os.Rename(path, filepath.Join(dir, "app.log.1")); err != nil {
		t.Fatalf("Failed to rename: %v", err)
	}
	if err := os.WriteFile(path, []byte("after rotate\n"), 0o644); err != nil {
		t.Fatalf("Failed to create rotated file: %v", err)
	}

	if got := readLine(t, out, 3*time.Second); got != "after rotate" {
		t.Errorf("post-rotation line = %q, want %q", got, "after rotate")
	}

	// The new file keeps being tailed.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("Failed to open for append: %v", err)
	}
	if _, err := f.WriteString("appended after rotate\n"); err != nil {
		t.Fatalf("Failed to append: %v", err)
	}
	f.Close()

	if got := readLine(t, out, 3*time.Second); got != "appended after rotate" {
		t.Errorf("appended line = %q, want %q", got, "appended after rotate")
	}
}

func TestWatcherFromEndSkipsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	if err := os.WriteFile(path, []byte("ancient history\n"), 0o644); err != nil {
		t.Fatalf("Failed to seed log file: %v", err)
	}

	w := newTestWatcher(t, path, false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan string, 100)
	go func() { _ = w.Run(ctx, out) }()

	// Give the watcher time to start, then append.
	time.Sleep(100 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("Failed to open for append: %v", err)
	}
	if _, err := f.WriteString("fresh\n"); err != nil {
		t.Fatalf("Failed to append: %v", err)
	}
	f.Close()

	if got := readLine(t, out, 2*time.Second); got != "fresh" {
		t.Errorf("line = %q, want %q (existing content must be skipped)", got, "fresh")
	}
}

func TestWatcherGivesUpOnMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "never-created.log")
	w := newTestWatcher(t, path, true)

	out := make(chan string, 1)
	err := w.Run(context.Background(), out)
	if err == nil {
		t.Fatal("expected an error after the retry budget is exhausted")
	}

	// The closed channel is the termination signal downstream.
	if _, ok := <-out; ok {
		t.Error("output channel not closed on failure")
	}
}
