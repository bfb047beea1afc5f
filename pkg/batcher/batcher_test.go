package batcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kumarabd/gokit/logger"
	"github.com/sentinel-ops/log-sentinel/pkg/model"
)

type mockClassifier struct {
	mu      sync.Mutex
	batches [][]string
	verdict func(line string) *model.SecurityAlert
}

func (m *mockClassifier) AnalyzeBatch(_ context.Context, lines []string, source model.LogSource) []*model.SecurityAlert {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, append([]string(nil), lines...))

	var alerts []*model.SecurityAlert
	if m.verdict != nil {
		for _, line := range lines {
			if alert := m.verdict(line); alert != nil {
				alerts = append(alerts, alert)
			}
		}
	}
	return alerts
}

func (m *mockClassifier) batchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.batches)
}

type mockDispatcher struct {
	mu     sync.Mutex
	alerts []*model.SecurityAlert
}

func (m *mockDispatcher) Dispatch(_ context.Context, alert *model.SecurityAlert) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, alert)
}

func (m *mockDispatcher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.alerts)
}

func testLogger(t *testing.T) *logger.Handler {
	t.Helper()
	log, err := logger.New("test", logger.Options{Format: logger.JSONLogFormat})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	return log
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestBatcherFlushOnSize(t *testing.T) {
	classifier := &mockClassifier{}
	dispatcher := &mockDispatcher{}
	// MaxWait far beyond the test duration: only the size trigger can fire.
	b := New(&Config{MaxSize: 3, MaxWait: time.Hour}, classifier, dispatcher, model.SourceGeneric, testLogger(t))
	defer b.Close(context.Background())

	b.Add("one")
	b.Add("two")
	b.Add("three")

	waitFor(t, 2*time.Second, func() bool { return classifier.batchCount() == 1 })

	classifier.mu.Lock()
	got := classifier.batches[0]
	classifier.mu.Unlock()
	if len(got) != 3 || got[0] != "one" || got[2] != "three" {
		t.Errorf("unexpected batch contents: %v", got)
	}
}

func TestBatcherFlushOnTimeout(t *testing.T) {
	classifier := &mockClassifier{}
	dispatcher := &mockDispatcher{}
	b := New(&Config{MaxSize: 100, MaxWait: 50 * time.Millisecond}, classifier, dispatcher, model.SourceGeneric, testLogger(t))
	defer b.Close(context.Background())

	b.Add("lonely entry")

	waitFor(t, 2*time.Second, func() bool { return classifier.batchCount() == 1 })

	classifier.mu.Lock()
	got := classifier.batches[0]
	classifier.mu.Unlock()
	if len(got) != 1 || got[0] != "lonely entry" {
		t.Errorf("unexpected batch contents: %v", got)
	}
}

func TestBatcherFinalFlushOnClose(t *testing.T) {
	classifier := &mockClassifier{}
	dispatcher := &mockDispatcher{}
	b := New(&Config{MaxSize: 100, MaxWait: time.Hour}, classifier, dispatcher, model.SourceGeneric, testLogger(t))

	b.Add("pending")

	if err := b.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if classifier.batchCount() != 1 {
		t.Fatalf("pending entry not flushed on close: %d batches", classifier.batchCount())
	}
}

func TestBatcherDispatchesConfirmedThreats(t *testing.T) {
	classifier := &mockClassifier{
		verdict: func(line string) *model.SecurityAlert {
			if line == "evil" {
				return model.NewAlert(model.Verdict{Severity: model.SeverityHigh, AttackType: "XSS"}, model.SourceGeneric, line)
			}
			return nil
		},
	}
	dispatcher := &mockDispatcher{}
	b := New(&Config{MaxSize: 2, MaxWait: time.Hour}, classifier, dispatcher, model.SourceGeneric, testLogger(t))
	defer b.Close(context.Background())

	b.Add("benign")
	b.Add("evil")

	waitFor(t, 2*time.Second, func() bool { return dispatcher.count() == 1 })

	dispatcher.mu.Lock()
	alert := dispatcher.alerts[0]
	dispatcher.mu.Unlock()
	if alert.OriginalLog != "evil" {
		t.Errorf("wrong alert dispatched: %+v", alert)
	}
}

func TestBatcherEmptyFlushIsNoop(t *testing.T) {
	classifier := &mockClassifier{}
	dispatcher := &mockDispatcher{}
	b := New(&Config{MaxSize: 10, MaxWait: 20 * time.Millisecond}, classifier, dispatcher, model.SourceGeneric, testLogger(t))

	// Several ticker fires with nothing buffered.
	time.Sleep(100 * time.Millisecond)
	if err := b.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if classifier.batchCount() != 0 {
		t.Errorf("empty flushes reached the classifier: %d", classifier.batchCount())
	}
}
