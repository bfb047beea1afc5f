package pipeline

import (
	"context"

	"github.com/kumarabd/gokit/logger"
	"github.com/sentinel-ops/log-sentinel/internal/metrics"
	"github.com/sentinel-ops/log-sentinel/pkg/aggregator"
	"github.com/sentinel-ops/log-sentinel/pkg/batcher"
	"github.com/sentinel-ops/log-sentinel/pkg/filter"
	"github.com/sentinel-ops/log-sentinel/pkg/model"
)

// LineSource produces raw log lines on a channel until the context is
// cancelled or the source cannot be sustained.
type LineSource interface {
	Run(ctx context.Context, out chan<- string) error
}

// Pipeline connects the watcher, aggregator, filter and batch scheduler.
// Each stage boundary is a bounded channel; closing the watcher's output is
// the sole termination signal and drains the downstream stages in order.
type Pipeline struct {
	source    LineSource
	agg       *aggregator.Aggregator
	filter    *filter.Filter
	batcher   *batcher.Batcher
	logSource model.LogSource
	log       *logger.Handler
	metric    *metrics.Handler
	queueSize int
}

// New creates a pipeline over already-constructed stages.
func New(source LineSource, agg *aggregator.Aggregator, filt *filter.Filter, b *batcher.Batcher,
	logSource model.LogSource, queueSize int, log *logger.Handler, metric *metrics.Handler) *Pipeline {
	if queueSize <= 0 {
		queueSize = 100
	}
	return &Pipeline{
		source:    source,
		agg:       agg,
		filter:    filt,
		batcher:   b,
		logSource: logSource,
		log:       log,
		metric:    metric,
		queueSize: queueSize,
	}
}

// Run processes the stream until the line source terminates. It returns
// the source's error, if any, after the aggregator has drained.
func (p *Pipeline) Run(ctx context.Context) error {
	raw := make(chan string, p.queueSize)
	aggIn := make(chan string, p.queueSize)

	errCh := make(chan error, 1)
	go func() {
		errCh <- p.source.Run(ctx, raw)
	}()

	go func() {
		defer close(aggIn)
		for line := range raw {
			p.metric.IncLinesProcessed(p.logSource.String())
			aggIn <- line
		}
	}()

	// The aggregator owns the event loop; it returns once aggIn closes and
	// the trailing buffer has been flushed.
	p.agg.Run(aggIn, p.process)

	return <-errCh
}

// process filters one aggregated entry and enqueues it for classification
// when suspicious.
func (p *Pipeline) process(entry string) {
	if !p.filter.IsSuspicious(entry) {
		return
	}
	p.metric.IncSuspiciousLogs(p.logSource.String())
	p.log.Debug().Str("source", p.logSource.String()).Msg("suspicious log detected, queued for classification")
	p.batcher.Add(entry)
}

// Close flushes the batch scheduler.
func (p *Pipeline) Close(ctx context.Context) error {
	return p.batcher.Close(ctx)
}
