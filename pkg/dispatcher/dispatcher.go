package dispatcher

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/kumarabd/gokit/logger"
	"github.com/sentinel-ops/log-sentinel/internal/metrics"
	"github.com/sentinel-ops/log-sentinel/pkg/model"
	"github.com/sentinel-ops/log-sentinel/pkg/ratelimit"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DispatcherMetrics contains dispatcher-local metrics.
type DispatcherMetrics struct {
	AlertsDispatched *metrics.Counter
	AlertsDropped    *metrics.Counter
	RetriesTotal     *metrics.Counter
	SendLatency      *metrics.Histogram
}

// Dispatcher fans confirmed alerts out to every configured sink. Alerts are
// gated through the rate limiter keyed by attack type; sink failures are
// retried with growing backoff and isolated per sink. Dispatch never fails:
// exhausted sinks are reported and counted.
type Dispatcher struct {
	sinks    []Sink
	limiter  *ratelimit.Limiter
	redactor *Redactor
	log      *logger.Handler
	metric   *metrics.Handler
	tracer   trace.Tracer

	maxAttempts int
	retryDelay  time.Duration

	metrics *DispatcherMetrics
}

// New creates a dispatcher over the given sinks.
func New(cfg *Config, sinks []Sink, limiter *ratelimit.Limiter, log *logger.Handler, metric *metrics.Handler) *Dispatcher {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = time.Second
	}

	d := &Dispatcher{
		sinks:       sinks,
		limiter:     limiter,
		log:         log,
		metric:      metric,
		tracer:      otel.Tracer("log-sentinel/dispatcher"),
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
	}
	if cfg.RedactPII {
		d.redactor = NewRedactor()
	}
	d.initMetrics()
	return d
}

// BuildSinks constructs the sink set from per-sink enable flags.
func BuildSinks(cfg *Config, log *logger.Handler) []Sink {
	var sinks []Sink
	if cfg.Console != nil && cfg.Console.Enabled {
		sinks = append(sinks, NewConsoleSink(log))
	}
	if cfg.BFF != nil && cfg.BFF.Enabled {
		sinks = append(sinks, NewBFFSink(cfg.BFF, cfg.RequestTimeout))
	}
	if cfg.Chat != nil && cfg.Chat.Enabled {
		sinks = append(sinks, NewChatSink(cfg.Chat, cfg.RequestTimeout))
	}
	if cfg.Email != nil && cfg.Email.Enabled {
		sinks = append(sinks, NewEmailSink(cfg.Email, cfg.RequestTimeout))
	}
	if cfg.File != nil && cfg.File.Enabled {
		sinks = append(sinks, NewFileSink(cfg.File.Path))
	}
	return sinks
}

// initMetrics initializes dispatcher metrics
func (d *Dispatcher) initMetrics() {
	d.metrics = &DispatcherMetrics{
		AlertsDispatched: d.metric.NewCounter("dispatcher_alerts_dispatched_total", "Total number of alerts fanned out to sinks"),
		AlertsDropped:    d.metric.NewCounter("dispatcher_alerts_dropped_total", "Total number of alerts dropped before dispatch"),
		RetriesTotal:     d.metric.NewCounter("dispatcher_retries_total", "Total number of sink delivery retries"),
		SendLatency:      d.metric.NewHistogram("dispatcher_send_latency_seconds", "Per-sink delivery latency in seconds"),
	}
}

// Dispatch delivers one alert to every sink. It returns once all sinks have
// been attempted.
func (d *Dispatcher) Dispatch(ctx context.Context, alert *model.SecurityAlert) {
	ctx, span := d.tracer.Start(ctx, "dispatcher.Dispatch")
	defer span.End()
	span.SetAttributes(
		attribute.String("alert.attack_type", alert.AttackType),
		attribute.String("alert.severity", alert.Severity),
	)

	// Rate limiting is keyed on the attack type alone: alerts of the same
	// type share one bucket regardless of source.
	if !d.limiter.Check(alert.AttackType) {
		d.metric.IncRateLimitedDrops(alert.AttackType)
		d.metrics.AlertsDropped.Inc()
		span.SetAttributes(attribute.Bool("alert.rate_limited", true))
		d.log.Warn().
			Str("attack_type", alert.AttackType).
			Str("severity", alert.Severity).
			Msg("alert dropped by rate limiter")
		return
	}

	external := alert
	if d.redactor != nil {
		external = d.redactor.RedactAlert(alert)
	}

	var wg sync.WaitGroup
	for _, sink := range d.sinks {
		outbound := alert
		if sink.External() {
			outbound = external
		}
		wg.Add(1)
		go func(s Sink, a *model.SecurityAlert) {
			defer wg.Done()
			d.deliver(ctx, s, a)
		}(sink, outbound)
	}
	wg.Wait()

	d.metrics.AlertsDispatched.Inc()
}

// deliver attempts one sink with bounded retries. Failures never propagate;
// exhaustion is logged and counted.
func (d *Dispatcher) deliver(ctx context.Context, sink Sink, alert *model.SecurityAlert) {
	var lastErr error

	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		start := time.Now()
		err := sink.Send(ctx, alert)
		d.metrics.SendLatency.Observe(time.Since(start).Seconds())

		if err == nil {
			d.log.Debug().
				Str("sink", sink.Name()).
				Str("attack_type", alert.AttackType).
				Int("attempt", attempt).
				Msg("alert delivered")
			return
		}
		lastErr = err

		if attempt < d.maxAttempts {
			d.metrics.RetriesTotal.Inc()
			// Linear backoff proportional to the attempt number, plus jitter.
			delay := time.Duration(attempt)*d.retryDelay + time.Duration(rand.Intn(100))*time.Millisecond
			d.log.Warn().Err(err).
				Str("sink", sink.Name()).
				Int("attempt", attempt).
				Dur("backoff", delay).
				Msg("sink delivery failed, retrying")

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				d.metric.IncDispatchFailures(sink.Name())
				return
			case <-timer.C:
			}
		}
	}

	d.metric.IncDispatchFailures(sink.Name())
	d.log.Error().Err(lastErr).
		Str("sink", sink.Name()).
		Int("attempts", d.maxAttempts).
		Msg("sink delivery abandoned after retries")
}
