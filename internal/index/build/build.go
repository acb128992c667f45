// Package build implements the index build pipeline of spec §5: a producer
// goroutine streams cells from a Parquet source over a bounded channel,
// sized by source file size, into a single consumer goroutine that is the
// keyword map's only writer, after which internal/index/serialize emits the
// four on-disk artifacts.
package build

import (
	"context"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"

	"github.com/grafana/parquet-keyword-index/internal/columnpool"
	"github.com/grafana/parquet-keyword-index/internal/index/serialize"
	"github.com/grafana/parquet-keyword-index/internal/keywordmap"
	"github.com/grafana/parquet-keyword-index/internal/parquetsource"
)

// Pipeline runs index builds against a configured queue depth and error
// rate, reporting through the given logger and Prometheus registerer.
type Pipeline struct {
	cfg     Config
	logger  log.Logger
	metrics *metrics
}

// New creates a Pipeline. A nil logger defaults to a no-op logger; a nil
// registerer registers metrics with nothing (safe for tests).
func New(cfg Config, logger log.Logger, reg prometheus.Registerer) *Pipeline {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Pipeline{cfg: cfg, logger: logger, metrics: newMetrics(reg)}
}

// Input describes one build's source.
type Input struct {
	Source          serialize.SourceInfo
	SourceSizeBytes int64
	EstimatedRows   int
}

// Build drains every cell from src, merges it into a fresh keyword map, and
// serializes the result.
func (p *Pipeline) Build(ctx context.Context, src *parquetsource.Reader, in Input) (*serialize.Artifacts, error) {
	buildID := uuid.New().String()
	logger := log.With(p.logger, "component", "build", "build_id", buildID)
	level.Info(logger).Log("msg", "starting index build", "source_size_bytes", in.SourceSizeBytes)

	pool := columnpool.New()
	kmBuilder := keywordmap.New(pool)
	columns := src.Columns()
	if in.EstimatedRows > 0 {
		kmBuilder.Reserve(in.EstimatedRows, len(columns))
	}

	depth := p.cfg.queueDepth(in.SourceSizeBytes)
	cells := make(chan parquetsource.Cell, depth)
	p.metrics.queueLength.Set(float64(depth))

	var producerErr atomic.Error
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(cells)

		err := src.ForEachCell(ctx, func(c parquetsource.Cell) error {
			select {
			case cells <- c:
				p.metrics.cellsProduced.Inc()
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil {
			producerErr.Store(err)
		}
	}()

	// The keyword map has exactly one writer: this loop. Spec §5 forbids
	// concurrent mutation, so tokenizing and inserting happens here and
	// nowhere else.
	columnIDs := make(map[string]uint32, len(columns))
	for c := range cells {
		colID, ok := columnIDs[c.Column]
		if !ok {
			var err error
			colID, err = kmBuilder.InternColumn(c.Column)
			if err != nil {
				p.metrics.buildFailures.Inc()
				return nil, errors.Wrapf(err, "build: intern column %q", c.Column)
			}
			columnIDs[c.Column] = colID
		}
		kmBuilder.AddCell(c.Value, colID, c.RowGroup, c.Row)
		p.metrics.cellsConsumed.Inc()
	}

	wg.Wait()
	if err := producerErr.Load(); err != nil {
		p.metrics.buildFailures.Inc()
		return nil, errors.Wrap(err, "build: read source cells")
	}

	level.Info(logger).Log("msg", "keyword map built", "keywords", kmBuilder.Len())
	p.metrics.keywordsTotal.Set(float64(kmBuilder.Len()))

	artifacts, err := serialize.Build(kmBuilder, serialize.Options{
		ErrorRate: p.cfg.ErrorRate,
		Source:    in.Source,
	})
	if err != nil {
		p.metrics.buildFailures.Inc()
		return nil, errors.Wrap(err, "build: serialize artifacts")
	}

	p.metrics.buildsTotal.Inc()
	level.Info(logger).Log("msg", "index build complete",
		"filters_bytes", len(artifacts.Filters),
		"metadata_bytes", len(artifacts.Metadata),
		"data_bytes", len(artifacts.Data),
		"column_keywords_bytes", len(artifacts.ColumnKeywords),
	)
	return artifacts, nil
}
