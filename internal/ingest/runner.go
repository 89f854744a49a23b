// Package ingest runs bulk dataset ingestion into the item store.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/buonappetort/rex/internal/dataset"
	"github.com/buonappetort/rex/internal/model"
	"github.com/buonappetort/rex/internal/storage"
)

// BatchAppender persists normalized items in one write.
type BatchAppender interface {
	AppendBatch(ctx context.Context, items []model.Item) (added, total int, err error)
}

// Ledger records finished runs.
type Ledger interface {
	SaveIngestRun(r storage.IngestRun) error
}

// Result summarises a run.
type Result struct {
	Added int      `json:"added"`
	Total int      `json:"total"`
	Files []string `json:"files"`
}

// Runner discovers dataset files in a directory and appends their rows.
type Runner struct {
	dataDir string
	store   BatchAppender
	ledger  Ledger
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithLedger records each run.
func WithLedger(l Ledger) Option {
	return func(r *Runner) { r.ledger = l }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a Runner reading from dataDir.
func NewRunner(dataDir string, store BatchAppender, opts ...Option) *Runner {
	r := &Runner{
		dataDir: dataDir,
		store:   store,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run normalizes every discovered source and appends the rows in a single
// write. Finding no sources or no rows is not an error.
func (r *Runner) Run(ctx context.Context, opts dataset.Options) (Result, error) {
	started := r.now()

	sources, err := dataset.Discover(r.dataDir, opts.Categories)
	if err != nil {
		return Result{}, fmt.Errorf("discovering dataset files: %w", err)
	}
	if len(sources) == 0 {
		r.logger.Warn("no dataset files found", "dir", r.dataDir)
	}

	norm := dataset.NewNormalizer(opts, r.logger)
	perSource := make([][]model.Item, len(sources))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, src := range sources {
		g.Go(func() error {
			for it := range norm.Items(gCtx, src) {
				perSource[i] = append(perSource[i], it)
			}
			return gCtx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("reading dataset: %w", err)
	}

	var batch []model.Item
	files := make([]string, 0, len(sources))
	for i, src := range sources {
		batch = append(batch, perSource[i]...)
		files = append(files, src.Name())
	}

	added, total, err := r.store.AppendBatch(ctx, batch)
	if err != nil {
		return Result{}, fmt.Errorf("appending dataset rows: %w", err)
	}
	res := Result{Added: added, Total: total, Files: files}
	r.logger.Info("dataset ingested", "added", added, "total", total, "files", len(files))

	if r.ledger != nil {
		r.record(started, opts, res)
	}
	return res, nil
}

type runOptions struct {
	Categories   []string `json:"categories"`
	Limit        int      `json:"limit"`
	FiveStarOnly bool     `json:"fiveStarOnly"`
	Streaming    bool     `json:"streaming"`
}

// record writes the run to the ledger. Failures are logged only; the rows
// are already persisted.
func (r *Runner) record(started time.Time, opts dataset.Options, res Result) {
	files, _ := json.Marshal(res.Files)
	options, _ := json.Marshal(runOptions{
		Categories:   opts.Categories,
		Limit:        opts.Limit,
		FiveStarOnly: opts.FiveStarOnly,
		Streaming:    opts.Streaming,
	})
	run := storage.IngestRun{
		ID:         uuid.New().String(),
		StartedAt:  started,
		FinishedAt: r.now(),
		Files:      string(files),
		Options:    string(options),
		Added:      res.Added,
		Total:      res.Total,
	}
	if err := r.ledger.SaveIngestRun(run); err != nil {
		r.logger.Warn("recording ingest run", "error", err)
	}
}
