package batcher

import (
	"context"
	"sync"
	"time"

	"github.com/kumarabd/gokit/logger"
	"github.com/sentinel-ops/log-sentinel/pkg/model"
)

// Config contains configuration for the batch scheduler.
type Config struct {
	MaxSize int           `json:"max_size" yaml:"max_size" default:"10"` // Entries per classification batch
	MaxWait time.Duration `json:"max_wait" yaml:"max_wait" default:"5s"` // Flush latency bound
}

// Classifier is the batch classification boundary (the analyzer agent).
type Classifier interface {
	AnalyzeBatch(ctx context.Context, lines []string, source model.LogSource) []*model.SecurityAlert
}

// AlertDispatcher receives confirmed alerts.
type AlertDispatcher interface {
	Dispatch(ctx context.Context, alert *model.SecurityAlert)
}

// Batcher groups suspicious entries into classification batches. A batch is
// flushed when it reaches MaxSize or when MaxWait elapses since the last
// flush, whichever comes first; Close flushes whatever remains. Entries are
// never dropped between Add and classification or shutdown.
type Batcher struct {
	classifier Classifier
	dispatcher AlertDispatcher
	source     model.LogSource
	log        *logger.Handler

	maxSize int
	maxWait time.Duration

	batch   []string
	mu      sync.Mutex
	flushCh chan struct{}
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New creates a batcher and starts its background flush loop.
func New(cfg *Config, classifier Classifier, dispatcher AlertDispatcher, source model.LogSource, log *logger.Handler) *Batcher {
	maxSize := cfg.MaxSize
	if maxSize <= 0 {
		maxSize = 10
	}
	maxWait := cfg.MaxWait
	if maxWait <= 0 {
		maxWait = 5 * time.Second
	}

	b := &Batcher{
		classifier: classifier,
		dispatcher: dispatcher,
		source:     source,
		log:        log,
		maxSize:    maxSize,
		maxWait:    maxWait,
		batch:      make([]string, 0, maxSize),
		flushCh:    make(chan struct{}, 1),
		stopCh:     make(chan struct{}),
	}

	// Start background processing
	b.wg.Add(1)
	go b.run()

	return b
}

// Add accepts a suspicious entry into the accumulator.
func (b *Batcher) Add(entry string) {
	b.mu.Lock()
	b.batch = append(b.batch, entry)
	shouldFlush := len(b.batch) >= b.maxSize
	b.mu.Unlock()

	if shouldFlush {
		select {
		case b.flushCh <- struct{}{}:
		default:
		}
	}
}

// run processes batches in the background.
func (b *Batcher) run() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.maxWait)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.flush()
		case <-b.flushCh:
			b.flush()
			// The wait timer restarts after every flush.
			ticker.Reset(b.maxWait)
		case <-b.stopCh:
			b.flush() // Final flush
			return
		}
	}
}

// flush classifies the accumulated entries and hands confirmed threats to
// the dispatcher. A failed classifier call yields zero alerts for the batch
// and is not retried here.
func (b *Batcher) flush() {
	b.mu.Lock()
	if len(b.batch) == 0 {
		b.mu.Unlock()
		return
	}

	// Copy batch and clear
	batch := make([]string, len(b.batch))
	copy(batch, b.batch)
	b.batch = b.batch[:0]
	b.mu.Unlock()

	ctx := context.Background()
	alerts := b.classifier.AnalyzeBatch(ctx, batch, b.source)

	b.log.Debug().
		Int("batch_size", len(batch)).
		Int("threats", len(alerts)).
		Msg("classification batch flushed")

	for _, alert := range alerts {
		b.dispatcher.Dispatch(ctx, alert)
	}
}

// Close gracefully shuts down the batcher, flushing any remaining entries.
func (b *Batcher) Close(ctx context.Context) error {
	close(b.stopCh)

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
