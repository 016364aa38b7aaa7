package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/crime-map/internal/domain"
	"github.com/couchcryptid/crime-map/internal/observability"
	"github.com/jonboulle/clockwork"
)

// BatchExtractor reads up to batchSize raw records from the source. It returns
// io.EOF once the source is exhausted.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawRecord, error)
}

// Transformer converts a raw record into a classified incident.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawRecord) (domain.Incident, error)
}

// BatchLoader writes classified incidents to a destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, incidents []domain.Incident) error
}

// Flusher is implemented by loaders that buffer until the run completes.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Stats summarises a completed run.
type Stats struct {
	Extracted  int
	Classified int
	Skipped    int
	Elapsed    time.Duration
}

// Pipeline classifies a whole record source once, fanning each batch out to
// every loader.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loaders     []BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	clock       clockwork.Clock
	ready       atomic.Bool
	batchSize   int
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, t Transformer, loaders []BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loaders:     loaders,
		logger:      logger,
		metrics:     metrics,
		clock:       clockwork.NewRealClock(),
		batchSize:   batchSize,
	}
}

// SetClock swaps the time source used for progress reporting. Pass nil to reset
// to real time.
func (p *Pipeline) SetClock(c clockwork.Clock) {
	if c == nil {
		c = clockwork.NewRealClock()
	}
	p.clock = c
}

// CheckReadiness returns nil once a run has completed.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("classification has not completed yet")
	}
	return nil
}

// Run extracts, classifies, and loads until the source is exhausted, then flushes
// loaders that buffer. Records that fail to parse are skipped and counted.
func (p *Pipeline) Run(ctx context.Context) (Stats, error) {
	p.logger.Info("classification started", "batch_size", p.batchSize, "loaders", len(p.loaders))
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	var stats Stats
	start := p.clock.Now()

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		batchStart := p.clock.Now()
		rawBatch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
		if err != nil && !errors.Is(err, io.EOF) {
			return stats, fmt.Errorf("extract batch: %w", err)
		}
		done := errors.Is(err, io.EOF)

		if len(rawBatch) > 0 {
			if err := p.processBatch(ctx, rawBatch, &stats); err != nil {
				return stats, err
			}
			p.metrics.BatchDuration.Observe(p.clock.Since(batchStart).Seconds())
			p.logger.Info("classification progress",
				"classified", stats.Classified,
				"skipped", stats.Skipped,
				"elapsed", p.clock.Since(start).String(),
			)
		}

		if done {
			break
		}
	}

	for _, l := range p.loaders {
		if f, ok := l.(Flusher); ok {
			if err := f.Flush(ctx); err != nil {
				return stats, fmt.Errorf("flush: %w", err)
			}
		}
	}

	stats.Elapsed = p.clock.Since(start)
	p.ready.Store(true)
	p.logger.Info("classification complete",
		"extracted", stats.Extracted,
		"classified", stats.Classified,
		"skipped", stats.Skipped,
		"elapsed", stats.Elapsed.String(),
	)
	return stats, nil
}

// processBatch classifies one batch and hands the successes to every loader.
func (p *Pipeline) processBatch(ctx context.Context, rawBatch []domain.RawRecord, stats *Stats) error {
	stats.Extracted += len(rawBatch)
	p.metrics.RecordsExtracted.Add(float64(len(rawBatch)))

	out := make([]domain.Incident, 0, len(rawBatch))
	for _, raw := range rawBatch {
		inc, err := p.transformer.Transform(ctx, raw)
		if err != nil {
			p.logger.Warn("classify failed, skipping record",
				"error", err,
				"source", raw.Ref.Source,
				"row", raw.Ref.Row,
			)
			p.metrics.ClassifyErrors.Inc()
			stats.Skipped++
			continue
		}
		out = append(out, inc)
	}

	if len(out) == 0 {
		return nil
	}

	for _, l := range p.loaders {
		if err := l.LoadBatch(ctx, out); err != nil {
			return fmt.Errorf("load batch: %w", err)
		}
	}

	stats.Classified += len(out)
	p.metrics.IncidentsClassified.Add(float64(len(out)))
	return nil
}
