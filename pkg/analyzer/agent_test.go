package analyzer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kumarabd/gokit/logger"
	"github.com/sentinel-ops/log-sentinel/internal/metrics"
	"github.com/sentinel-ops/log-sentinel/pkg/cache"
	"github.com/sentinel-ops/log-sentinel/pkg/model"
)

// Shared across the package's tests: prometheus collectors register once
// per process.
var testMetrics, _ = metrics.New("test")

type mockProvider struct {
	response string
	err      error
	calls    int
	batches  [][]string
}

func (m *mockProvider) Analyze(_ context.Context, _ string, _ model.LogSource) (string, error) {
	m.calls++
	return m.response, m.err
}

func (m *mockProvider) AnalyzeBatch(_ context.Context, lines []string, _ model.LogSource) (string, error) {
	m.calls++
	m.batches = append(m.batches, append([]string(nil), lines...))
	return m.response, m.err
}

func (m *mockProvider) Name() string { return "mock" }

func newTestAgent(t *testing.T, provider Provider, verdicts *cache.Handler) *Agent {
	t.Helper()
	log, err := logger.New("test", logger.Options{Format: logger.JSONLogFormat})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	cfg := &Config{
		Timeout:            time.Second,
		MaxRetries:         1,
		RetryBaseDelay:     time.Millisecond,
		BreakerMaxFailures: 3,
		BreakerResetAfter:  time.Minute,
	}
	return NewAgent(cfg, provider, verdicts, log, testMetrics)
}

func TestAnalyzeThreatVerdict(t *testing.T) {
	provider := &mockProvider{
		response: `{"severity":"HIGH","attack_type":"SQL Injection","description":"union select probe"}`,
	}
	agent := newTestAgent(t, provider, nil)

	alert := agent.Analyze(context.Background(), "id=1 UNION SELECT", model.SourceNginx)
	if alert == nil {
		t.Fatal("expected an alert for a threat verdict")
	}
	if alert.Severity != "HIGH" || alert.AttackType != "SQL Injection" {
		t.Errorf("verdict not carried into alert: %+v", alert)
	}
	if alert.OriginalLog != "id=1 UNION SELECT" {
		t.Errorf("original log not bound: %q", alert.OriginalLog)
	}
}

func TestAnalyzeBenignAndMalformed(t *testing.T) {
	agent := newTestAgent(t, &mockProvider{response: "NULL"}, nil)
	if alert := agent.Analyze(context.Background(), "GET /", model.SourceGeneric); alert != nil {
		t.Errorf("benign verdict produced an alert: %+v", alert)
	}

	agent = newTestAgent(t, &mockProvider{response: "{not json"}, nil)
	if alert := agent.Analyze(context.Background(), "GET /", model.SourceGeneric); alert != nil {
		t.Errorf("malformed response produced an alert: %+v", alert)
	}
}

func TestAnalyzeBenignCacheSkipsProvider(t *testing.T) {
	verdicts, _ := cache.New(time.Minute)
	provider := &mockProvider{response: "NULL"}
	agent := newTestAgent(t, provider, verdicts)

	agent.Analyze(context.Background(), "repeat line", model.SourceGeneric)
	if provider.calls != 1 {
		t.Fatalf("expected one provider call, got %d", provider.calls)
	}

	// The benign verdict is cached; the second call never reaches the backend.
	agent.Analyze(context.Background(), "repeat line", model.SourceGeneric)
	if provider.calls != 1 {
		t.Errorf("cached benign entry hit the provider again (%d calls)", provider.calls)
	}
}

func TestAnalyzeBatchCorrelation(t *testing.T) {
	verdicts, _ := cache.New(time.Minute)
	provider := &mockProvider{
		response: `[
			{"index":0,"severity":"CRITICAL","attack_type":"RCE","description":"shell payload"},
			{"index":1,"status":"NULL"},
			{"index":2,"severity":"LOW","attack_type":"Recon","description":"scanner probe"},
			{"index":9,"severity":"HIGH","attack_type":"Ghost","description":"out of range"}
		]`,
	}
	agent := newTestAgent(t, provider, verdicts)

	lines := []string{"line-a", "line-b", "line-c"}
	alerts := agent.AnalyzeBatch(context.Background(), lines, model.SourceTomcat)

	if len(alerts) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(alerts))
	}
	if alerts[0].OriginalLog != "line-a" || alerts[0].AttackType != "RCE" {
		t.Errorf("first alert bound wrong: %+v", alerts[0])
	}
	if alerts[1].OriginalLog != "line-c" || alerts[1].AttackType != "Recon" {
		t.Errorf("second alert bound wrong: %+v", alerts[1])
	}

	// The NULL item landed in the benign cache.
	if !verdicts.IsBenign("line-b") {
		t.Error("NULL batch item not cached as benign")
	}
	if verdicts.IsBenign("line-a") {
		t.Error("threat item wrongly cached as benign")
	}
}

func TestAnalyzeBatchAllBenign(t *testing.T) {
	provider := &mockProvider{response: "NULL"}
	agent := newTestAgent(t, provider, nil)

	alerts := agent.AnalyzeBatch(context.Background(), []string{"a", "b"}, model.SourceGeneric)
	if alerts != nil {
		t.Errorf("NULL batch produced alerts: %v", alerts)
	}
}

func TestAnalyzeBatchSkipsCachedEntries(t *testing.T) {
	verdicts, _ := cache.New(time.Minute)
	verdicts.MarkBenign("seen before")

	provider := &mockProvider{response: "NULL"}
	agent := newTestAgent(t, provider, verdicts)

	agent.AnalyzeBatch(context.Background(), []string{"seen before", "fresh"}, model.SourceGeneric)
	if len(provider.batches) != 1 {
		t.Fatalf("expected one batch call, got %d", len(provider.batches))
	}
	if len(provider.batches[0]) != 1 || provider.batches[0][0] != "fresh" {
		t.Errorf("cached entry submitted to provider: %v", provider.batches[0])
	}

	// A fully cached batch never reaches the backend.
	provider.batches = nil
	agent.AnalyzeBatch(context.Background(), []string{"seen before"}, model.SourceGeneric)
	if len(provider.batches) != 0 {
		t.Error("fully cached batch hit the provider")
	}
}

func TestAnalyzeBatchRetriesThenFails(t *testing.T) {
	provider := &mockProvider{err: errors.New("connection refused")}
	agent := newTestAgent(t, provider, nil)

	alerts := agent.AnalyzeBatch(context.Background(), []string{"x"}, model.SourceGeneric)
	if alerts != nil {
		t.Errorf("failed batch produced alerts: %v", alerts)
	}
	// MaxRetries 1 means two attempts total.
	if provider.calls != 2 {
		t.Errorf("expected 2 attempts, got %d", provider.calls)
	}
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	provider := &mockProvider{err: errors.New("unreachable")}
	agent := newTestAgent(t, provider, nil)

	// BreakerMaxFailures is 3; each batch failure counts once.
	for i := 0; i < 3; i++ {
		agent.AnalyzeBatch(context.Background(), []string{"x"}, model.SourceGeneric)
	}
	callsBefore := provider.calls

	agent.AnalyzeBatch(context.Background(), []string{"x"}, model.SourceGeneric)
	if provider.calls != callsBefore {
		t.Error("open breaker still let a batch through")
	}
}

func TestNewProviderValidation(t *testing.T) {
	if _, err := NewProvider(&Config{Provider: "openai"}); err == nil {
		t.Error("openai without an API key must fail")
	}
	if _, err := NewProvider(&Config{Provider: "gemini"}); err == nil {
		t.Error("gemini without an API key must fail")
	}
	if _, err := NewProvider(&Config{Provider: "carrier-pigeon"}); err == nil {
		t.Error("unknown provider must fail")
	}
	if _, err := NewProvider(&Config{Provider: "ollama", Model: "llama3"}); err != nil {
		t.Errorf("ollama needs no key: %v", err)
	}
}

func TestNormalizeContent(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain null", "NULL", "NULL"},
		{"null with noise", "The answer is NULL.", "NULL"},
		{"valid json", `{"severity":"LOW"}`, `{"severity":"LOW"}`},
		{"fenced json", "```json\n{\"severity\":\"LOW\"}\n```", `{"severity":"LOW"}`},
		{"garbage", "I think this looks fine", "NULL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeContent(tt.in); got != tt.want {
				t.Errorf("normalizeContent(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeBatchContent(t *testing.T) {
	// Batch arrays legitimately contain the word NULL in per-item statuses;
	// only JSON validity decides.
	in := `[{"index":0,"status":"NULL"},{"index":1,"severity":"HIGH"}]`
	if got := normalizeBatchContent(in); got != in {
		t.Errorf("valid batch array was rewritten: %q", got)
	}
	if got := normalizeBatchContent("no structured data here"); got != "NULL" {
		t.Errorf("garbage batch response: got %q, want NULL", got)
	}
}
