// Package service exposes the transport-facing operations shared by the HTTP
// API, the MCP server and the CLI.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/buonappetort/rex/internal/dataset"
	"github.com/buonappetort/rex/internal/ingest"
	"github.com/buonappetort/rex/internal/model"
	"github.com/buonappetort/rex/internal/query"
	"github.com/buonappetort/rex/internal/search"
	"github.com/buonappetort/rex/internal/storage"
	"github.com/buonappetort/rex/internal/store"
)

// ErrIngestDisabled is returned when no ingestion runner is configured.
var ErrIngestDisabled = errors.New("dataset ingestion is not configured")

// RunHistory lists recorded ingestion runs, newest first.
type RunHistory interface {
	RecentIngestRuns(limit int) ([]storage.IngestRun, error)
}

// Service wires the store, search engine and ingestion runner together.
type Service struct {
	store   *store.Store
	engine  *search.Engine
	runner  *ingest.Runner
	history RunHistory
}

// Option configures a Service.
type Option func(*Service)

// WithIngest enables bulk ingestion.
func WithIngest(r *ingest.Runner) Option {
	return func(s *Service) { s.runner = r }
}

// WithRunHistory enables listing past ingestion runs.
func WithRunHistory(h RunHistory) Option {
	return func(s *Service) { s.history = h }
}

// New creates a Service. A nil engine searches by whitespace split only.
func New(st *store.Store, engine *search.Engine, opts ...Option) *Service {
	if engine == nil {
		engine = search.NewEngine(nil, nil)
	}
	s := &Service{store: st, engine: engine}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create validates, enriches and persists a new item.
func (s *Service) Create(ctx context.Context, c model.Candidate) (model.Item, error) {
	return s.store.Append(ctx, c)
}

// Seed adds the starter catalog for ownerID and returns how many were added.
func (s *Service) Seed(ctx context.Context, ownerID string) (int, error) {
	return s.store.SeedDefaults(ctx, ownerID)
}

// Get returns one item by id.
func (s *Service) Get(ctx context.Context, id string) (model.Item, error) {
	return s.store.FindByID(ctx, id)
}

// List returns the filtered, ordered and optionally paginated collection.
func (s *Service) List(ctx context.Context, p query.Params) (query.Page, error) {
	items, err := s.store.Load(ctx)
	if err != nil {
		return query.Page{}, err
	}
	return query.List(items, p), nil
}

// SearchRequest is a keyword search over one owner's items or all items.
type SearchRequest struct {
	Query       string
	OwnerID     string
	UseExternal bool
}

// Search filters by owner first, then matches keywords.
func (s *Service) Search(ctx context.Context, req SearchRequest) (search.Result, error) {
	items, err := s.store.Load(ctx)
	if err != nil {
		return search.Result{}, err
	}
	items = query.FilterOwner(items, req.OwnerID)
	return s.engine.Search(ctx, items, req.Query, req.UseExternal), nil
}

// Ingest loads dataset rows from the configured data directory.
func (s *Service) Ingest(ctx context.Context, opts dataset.Options) (ingest.Result, error) {
	if s.runner == nil {
		return ingest.Result{}, ErrIngestDisabled
	}
	return s.runner.Run(ctx, opts)
}

// IngestHistory returns up to limit recorded runs. Without a ledger the
// history is empty.
func (s *Service) IngestHistory(ctx context.Context, limit int) ([]storage.IngestRun, error) {
	if s.history == nil {
		return []storage.IngestRun{}, nil
	}
	runs, err := s.history.RecentIngestRuns(limit)
	if err != nil {
		return nil, fmt.Errorf("listing ingest runs: %w", err)
	}
	if runs == nil {
		runs = []storage.IngestRun{}
	}
	return runs, nil
}
