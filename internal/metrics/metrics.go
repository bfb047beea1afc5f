package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Handler holds the pipeline-wide metrics. Components record through it;
// the HTTP server exposes it at /metrics.
type Handler struct {
	LinesProcessed   *prometheus.CounterVec
	SuspiciousLogs   *prometheus.CounterVec
	AnalysisBatches  *prometheus.CounterVec
	ConfirmedThreats *prometheus.CounterVec
	DispatchFailures *prometheus.CounterVec
	RateLimitedDrops *prometheus.CounterVec
	WatcherRestarts  *prometheus.CounterVec
	AnalysisLatency  *prometheus.HistogramVec
}

type Options struct {
	// Additional labels necessary
}

func New(name string) (*Handler, error) {
	return &Handler{
		LinesProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "log_sentinel_lines_processed_total",
			Help: "The total number of log lines read and processed",
		}, []string{"source"}),
		SuspiciousLogs: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "log_sentinel_suspicious_logs_total",
			Help: "The total number of logs that matched suspicious patterns",
		}, []string{"source"}),
		AnalysisBatches: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "log_sentinel_analysis_batches_total",
			Help: "The total number of batches sent for classification",
		}, []string{"provider"}),
		ConfirmedThreats: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "log_sentinel_confirmed_threats_total",
			Help: "The total number of security threats confirmed by the classifier",
		}, []string{"severity"}),
		DispatchFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "log_sentinel_dispatch_failures_total",
			Help: "The total number of errors when sending alerts to sinks",
		}, []string{"sink"}),
		RateLimitedDrops: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "log_sentinel_rate_limited_drops_total",
			Help: "The total number of alerts dropped by the rate limiter",
		}, []string{"attack_type"}),
		WatcherRestarts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "log_sentinel_watcher_restarts_total",
			Help: "The total number of watcher restarts after failure",
		}, []string{"path"}),
		AnalysisLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "log_sentinel_analysis_latency_seconds",
			Help:    "Classifier call latency in seconds",
			Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
		}, []string{"provider", "success"}),
	}, nil
}

// IncLinesProcessed increments the processed lines counter
func (h *Handler) IncLinesProcessed(source string) {
	h.LinesProcessed.WithLabelValues(source).Inc()
}

// IncSuspiciousLogs increments the suspicious logs counter
func (h *Handler) IncSuspiciousLogs(source string) {
	h.SuspiciousLogs.WithLabelValues(source).Inc()
}

// IncAnalysisBatches increments the classification batches counter
func (h *Handler) IncAnalysisBatches(provider string) {
	h.AnalysisBatches.WithLabelValues(provider).Inc()
}

// IncConfirmedThreats increments the confirmed threats counter
func (h *Handler) IncConfirmedThreats(severity string) {
	h.ConfirmedThreats.WithLabelValues(severity).Inc()
}

// IncDispatchFailures increments the dispatch failures counter
func (h *Handler) IncDispatchFailures(sink string) {
	h.DispatchFailures.WithLabelValues(sink).Inc()
}

// IncRateLimitedDrops increments the rate-limited drops counter
func (h *Handler) IncRateLimitedDrops(attackType string) {
	h.RateLimitedDrops.WithLabelValues(attackType).Inc()
}

// IncWatcherRestarts increments the watcher restarts counter
func (h *Handler) IncWatcherRestarts(path string) {
	h.WatcherRestarts.WithLabelValues(path).Inc()
}

// ObserveAnalysisLatency records the latency of a classifier call
func (h *Handler) ObserveAnalysisLatency(duration time.Duration, provider string, success bool) {
	successStr := "true"
	if !success {
		successStr = "false"
	}
	h.AnalysisLatency.WithLabelValues(provider, successStr).Observe(duration.Seconds())
}

// Counter represents a Prometheus counter
type Counter struct {
	*prometheus.CounterVec
}

// Histogram represents a Prometheus histogram
type Histogram struct {
	*prometheus.HistogramVec
}

// Gauge represents a Prometheus gauge
type Gauge struct {
	*prometheus.GaugeVec
}

// NewCounter creates a new counter metric. An already registered collector
// with the same name is reused.
func (h *Handler) NewCounter(name, help string) *Counter {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: name,
		Help: help,
	}, []string{})
	if err := prometheus.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			counter = are.ExistingCollector.(*prometheus.CounterVec)
		}
	}
	return &Counter{counter}
}

// NewHistogram creates a new histogram metric. An already registered
// collector with the same name is reused.
func (h *Handler) NewHistogram(name, help string) *Histogram {
	histogram := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    name,
		Help:    help,
		Buckets: prometheus.DefBuckets,
	}, []string{})
	if err := prometheus.Register(histogram); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			histogram = are.ExistingCollector.(*prometheus.HistogramVec)
		}
	}
	return &Histogram{histogram}
}

// NewGauge creates a new gauge metric. An already registered collector with
// the same name is reused.
func (h *Handler) NewGauge(name, help string) *Gauge {
	gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: name,
		Help: help,
	}, []string{})
	if err := prometheus.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			gauge = are.ExistingCollector.(*prometheus.GaugeVec)
		}
	}
	return &Gauge{gauge}
}

// Inc increments the counter
func (c *Counter) Inc() {
	c.CounterVec.WithLabelValues().Inc()
}

// Add adds the given value to the counter
func (c *Counter) Add(delta float64) {
	c.CounterVec.WithLabelValues().Add(delta)
}

// Observe adds a single observation to the histogram
func (h *Histogram) Observe(value float64) {
	h.HistogramVec.WithLabelValues().Observe(value)
}

// Set sets the gauge value
func (g *Gauge) Set(value float64) {
	g.GaugeVec.WithLabelValues().Set(value)
}
