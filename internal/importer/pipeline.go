// Package importer runs the ingestion pipeline: rows are read from the
// source, validated, accumulated into fixed-size batches, and committed
// concurrently under a bounded limiter. A failed atomic batch is replayed
// record by record so one bad row costs one record, not five hundred.
package importer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/contactflow/importer/internal/contact"
	"github.com/contactflow/importer/internal/jobs"
	"github.com/contactflow/importer/internal/mapping"
	"github.com/contactflow/importer/internal/observability/metrics"
	"github.com/contactflow/importer/internal/source"
)

// DefaultBatchSize is how many valid records accumulate before a batch is
// dispatched for commit.
const DefaultBatchSize = 500

// progressEvery is the row interval between OnProgress callbacks while a
// run is in flight. A final callback always fires at run end.
const progressEvery = 1000

// Defaults applied when the request leaves profile or status blank.
const (
	DefaultProfile = "imported"
	DefaultStatus  = "active"
)

// Options carries the per-run inputs supplied by the caller.
type Options struct {
	Mapping mapping.Mapping
	Policy  contact.Policy

	// Fallbacks for rows whose mapped profile/status cell is empty.
	// Blank values take DefaultProfile / DefaultStatus.
	Profile string
	Status  string

	// OnProgress, when set, receives periodic counter snapshots and one
	// final snapshot. Called from the reader goroutine only.
	OnProgress func(contact.Result)
}

// Config sizes the pipeline. Zero values take the defaults.
type Config struct {
	BatchSize            int
	MaxConcurrentBatches int
}

// Importer orchestrates import runs. It is stateless across runs and safe
// for concurrent use.
type Importer struct {
	committer BatchCommitter
	fallback  FallbackStrategy
	jobs      jobs.Store
	metrics   *metrics.ImportMetrics
	log       *slog.Logger

	batchSize     int
	maxConcurrent int
}

func New(committer BatchCommitter, fallback FallbackStrategy, jobStore jobs.Store, m *metrics.ImportMetrics, cfg Config, log *slog.Logger) *Importer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxConcurrentBatches <= 0 {
		cfg.MaxConcurrentBatches = DefaultMaxConcurrentBatches
	}
	if log == nil {
		log = slog.Default()
	}
	return &Importer{
		committer:     committer,
		fallback:      fallback,
		jobs:          jobStore,
		metrics:       m,
		log:           log,
		batchSize:     cfg.BatchSize,
		maxConcurrent: cfg.MaxConcurrentBatches,
	}
}

// Run executes one import synchronously and returns the final counters.
// The mapping is validated and the source opened before any row work, so
// malformed requests fail fast with ErrMissingMapping or ErrInvalidFormat.
func (imp *Importer) Run(ctx context.Context, filename, contentType string, r io.Reader, opts Options) (contact.Result, error) {
	start := time.Now()
	imp.metrics.RunStarted()
	defer func() { imp.metrics.RunFinished(time.Since(start).Seconds()) }()

	if opts.Profile == "" {
		opts.Profile = DefaultProfile
	}
	if opts.Status == "" {
		opts.Status = DefaultStatus
	}

	if err := opts.Mapping.Validate(opts.Policy.StrictMode); err != nil {
		return contact.Result{}, err
	}
	src, err := source.Open(filename, contentType, r)
	if err != nil {
		return contact.Result{}, err
	}
	defer src.Close()

	validator := contact.NewValidator(opts.Mapping.Resolve(src.Headers()), opts.Policy, opts.Profile, opts.Status)
	agg := contact.NewAggregator()
	limiter := NewLimiter(imp.maxConcurrent)

	var wg sync.WaitGroup
	dispatch := func(batch []contact.Candidate) error {
		if err := limiter.Acquire(ctx); err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer limiter.Release()
			imp.commit(ctx, batch, agg)
		}()
		return nil
	}

	batch := make([]contact.Candidate, 0, imp.batchSize)
	rows := 0
	for {
		row, readErr := src.Next()
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			agg.CountRow()
			agg.AddRejection(contact.ReasonOther, fmt.Sprintf("read row: %v", readErr))
			break
		}
		if emptyRow(row) {
			continue
		}

		agg.CountRow()
		rows++

		cand, reason, ok := validator.Validate(row)
		if !ok {
			agg.AddRejection(reason, "")
			imp.metrics.ObserveRows("rejected", 1)
		} else {
			batch = append(batch, cand)
			if len(batch) == imp.batchSize {
				if err := dispatch(batch); err != nil {
					wg.Wait()
					return agg.Snapshot(), err
				}
				batch = make([]contact.Candidate, 0, imp.batchSize)
			}
		}

		if opts.OnProgress != nil && rows%progressEvery == 0 {
			opts.OnProgress(agg.Snapshot())
		}
	}

	if len(batch) > 0 {
		if err := dispatch(batch); err != nil {
			wg.Wait()
			return agg.Snapshot(), err
		}
	}
	wg.Wait()

	result := agg.Snapshot()
	if opts.OnProgress != nil {
		opts.OnProgress(result)
	}

	imp.log.Info("import run finished",
		"file", filename,
		"total", result.TotalRecords,
		"imported", result.SuccessfulImports,
		"failed", result.FailedImports,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return result, nil
}

// commit persists one batch atomically, falling back to per-record replay
// when the transaction fails. Runs on a limiter-bounded goroutine.
func (imp *Importer) commit(ctx context.Context, batch []contact.Candidate, agg *contact.Aggregator) {
	if err := imp.committer.CommitBatch(ctx, batch); err != nil {
		imp.log.Warn("batch commit failed, replaying per record",
			"size", len(batch),
			"error", err,
		)
		imp.metrics.ObserveBatch("fallback")
		succeeded := imp.fallback.Replay(ctx, batch, agg)
		imp.metrics.ObserveRows("imported", succeeded)
		imp.metrics.ObserveRows("rejected", len(batch)-succeeded)
		return
	}
	imp.metrics.ObserveBatch("committed")
	imp.metrics.ObserveRows("imported", len(batch))
	agg.AddSuccess(len(batch))
}

// emptyRow reports whether every cell is blank. Trailing blank lines in
// exported files are noise, not records.
func emptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
