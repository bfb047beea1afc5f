package analyzer

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/kumarabd/gokit/logger"
	"github.com/sentinel-ops/log-sentinel/internal/metrics"
	"github.com/sentinel-ops/log-sentinel/pkg/cache"
	"github.com/sentinel-ops/log-sentinel/pkg/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Agent converts suspicious log entries into security alerts by consulting
// a classifier backend. Classifier failures and malformed responses are
// never errors to the caller; they yield zero alerts.
type Agent struct {
	provider Provider
	breaker  *Breaker
	verdicts *cache.Handler
	log      *logger.Handler
	metric   *metrics.Handler
	tracer   trace.Tracer

	timeout    time.Duration
	maxRetries int
	baseDelay  time.Duration
}

// NewAgent wraps a provider with a circuit breaker and a benign-verdict
// cache. The cache handler may be nil to disable deduplication.
func NewAgent(cfg *Config, provider Provider, verdicts *cache.Handler, log *logger.Handler, metric *metrics.Handler) *Agent {
	maxFailures := cfg.BreakerMaxFailures
	if maxFailures <= 0 {
		maxFailures = 5
	}
	resetAfter := cfg.BreakerResetAfter
	if resetAfter <= 0 {
		resetAfter = 30 * time.Second
	}
	return &Agent{
		provider:   provider,
		breaker:    NewBreaker(maxFailures, resetAfter),
		verdicts:   verdicts,
		log:        log,
		metric:     metric,
		tracer:     otel.Tracer("log-sentinel/analyzer"),
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.RetryBaseDelay,
	}
}

// Analyze classifies a single entry. It returns nil for benign entries,
// classifier failures, open breaker and malformed responses.
func (a *Agent) Analyze(ctx context.Context, line string, source model.LogSource) *model.SecurityAlert {
	if a.verdicts != nil && a.verdicts.IsBenign(line) {
		return nil
	}
	if a.breaker.Open() {
		a.log.Debug().Str("provider", a.provider.Name()).Msg("classifier breaker open, skipping entry")
		return nil
	}

	tctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	result, err := a.provider.Analyze(tctx, line, source)
	a.metric.ObserveAnalysisLatency(time.Since(start), a.provider.Name(), err == nil)

	if err != nil {
		a.breaker.Fail()
		a.log.Error().Err(err).Str("provider", a.provider.Name()).Msg("classifier call failed")
		return nil
	}
	a.breaker.Success()

	if result == "NULL" {
		if a.verdicts != nil {
			a.verdicts.MarkBenign(line)
		}
		return nil
	}

	var verdict model.Verdict
	if err := json.Unmarshal([]byte(result), &verdict); err != nil {
		return nil
	}

	alert := model.NewAlert(verdict, source, line)
	a.metric.IncConfirmedThreats(alert.Severity)
	return alert
}

// AnalyzeBatch classifies a batch of entries in one provider round-trip and
// returns the confirmed threats, bound to their originating entries by
// index. Out-of-range indices and entries without a result item are
// dropped.
func (a *Agent) AnalyzeBatch(ctx context.Context, lines []string, source model.LogSource) []*model.SecurityAlert {
	// Skip entries the classifier recently judged benign; indices in the
	// provider response refer to the submitted slice.
	candidates := lines
	if a.verdicts != nil {
		candidates = make([]string, 0, len(lines))
		for _, line := range lines {
			if !a.verdicts.IsBenign(line) {
				candidates = append(candidates, line)
			}
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	if a.breaker.Open() {
		a.log.Debug().Str("provider", a.provider.Name()).Int("batch_size", len(candidates)).
			Msg("classifier breaker open, skipping batch")
		return nil
	}

	ctx, span := a.tracer.Start(ctx, "analyzer.AnalyzeBatch")
	defer span.End()
	span.SetAttributes(
		attribute.String("classifier.provider", a.provider.Name()),
		attribute.Int("batch.size", len(candidates)),
	)

	a.metric.IncAnalysisBatches(a.provider.Name())

	start := time.Now()
	result, err := a.callWithRetry(ctx, candidates, source)
	a.metric.ObserveAnalysisLatency(time.Since(start), a.provider.Name(), err == nil)

	if err != nil {
		a.breaker.Fail()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.log.Error().Err(err).
			Str("provider", a.provider.Name()).
			Int("batch_size", len(candidates)).
			Msg("batch classification failed")
		return nil
	}
	a.breaker.Success()

	if result == "NULL" {
		return nil
	}

	var items []model.BatchResultItem
	if err := json.Unmarshal([]byte(result), &items); err != nil {
		return nil
	}

	var alerts []*model.SecurityAlert
	for _, item := range items {
		if item.Index < 0 || item.Index >= len(candidates) {
			continue
		}
		if item.Status == "NULL" {
			if a.verdicts != nil {
				a.verdicts.MarkBenign(candidates[item.Index])
			}
			continue
		}

		alert := model.NewAlert(model.Verdict{
			Severity:    item.Severity,
			AttackType:  item.AttackType,
			Description: item.Description,
		}, source, candidates[item.Index])
		a.metric.IncConfirmedThreats(alert.Severity)
		alerts = append(alerts, alert)
	}

	span.SetAttributes(attribute.Int("batch.threats", len(alerts)))
	return alerts
}

// callWithRetry performs the provider round-trip with per-attempt timeouts
// and jittered backoff between attempts.
func (a *Agent) callWithRetry(ctx context.Context, lines []string, source model.LogSource) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		tctx, cancel := context.WithTimeout(ctx, a.timeout)
		result, err := a.provider.AnalyzeBatch(tctx, lines, source)
		cancel()

		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt < a.maxRetries {
			d := a.baseDelay + time.Duration(rand.Intn(25))*time.Millisecond
			timer := time.NewTimer(d)
			select {
			case <-ctx.Done():
				timer.Stop()
				return "", ctx.Err()
			case <-timer.C:
			}
		}
	}

	return "", lastErr
}

// ProviderName exposes the backend name for logging and metrics.
func (a *Agent) ProviderName() string {
	return a.provider.Name()
}
