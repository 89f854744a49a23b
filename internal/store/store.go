// Package store owns the item collection: loading and saving the snapshot,
// validating and enriching new items, and seeding starter items.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/buonappetort/rex/internal/metrics"
	"github.com/buonappetort/rex/internal/model"
	"github.com/buonappetort/rex/internal/storage"
)

// Enricher looks up metadata for media URLs it recognises. Lookup never
// fails; an empty result means nothing was discovered.
type Enricher interface {
	Recognized(url string) bool
	Lookup(ctx context.Context, url string) model.SourceMeta
}

// CorruptionError describes a snapshot that could not be parsed.
type CorruptionError struct {
	Backup string
	Err    error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("snapshot corrupted (backup at %s): %v", e.Backup, e.Err)
}

func (e *CorruptionError) Unwrap() error { return e.Err }

// Store serializes every read-modify-write of the snapshot behind one mutex.
type Store struct {
	mu       sync.Mutex
	backend  storage.Backend
	enricher Enricher
	now      func() time.Time
	newID    func() string
	last     time.Time
	logger   *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithEnricher enables page-metadata enrichment on Append.
func WithEnricher(e Enricher) Option {
	return func(s *Store) { s.enricher = e }
}

// WithClock overrides the time source used for createdAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDFunc overrides item id generation.
func WithIDFunc(f func() string) Option {
	return func(s *Store) { s.newID = f }
}

// WithLogger sets the logger used for recovered failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates a Store over the given snapshot backend.
func New(backend storage.Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Load returns the full collection. A missing snapshot is initialised empty;
// a corrupt one is backed up, reset, and reported in the log.
func (s *Store) Load(ctx context.Context) ([]model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Save replaces the whole collection.
func (s *Store) Save(ctx context.Context, items []model.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(items)
}

// Append validates c, enriches it when its media URL is recognised, stamps
// id and createdAt, and persists it.
func (s *Store) Append(ctx context.Context, c model.Candidate) (model.Item, error) {
	if err := Validate(c); err != nil {
		return model.Item{}, err
	}

	item := model.Item{
		OwnerID:     c.OwnerID,
		Title:       c.Title,
		Category:    c.Category,
		Description: c.Description,
		MediaURL:    c.MediaURL,
		Tags:        cloneTags(c.Tags),
	}

	// Network I/O stays outside the lock.
	if s.enricher != nil && c.MediaURL != "" && s.enricher.Recognized(c.MediaURL) {
		applyEnrichment(&item, s.enricher.Lookup(ctx, c.MediaURL))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load()
	if err != nil {
		return model.Item{}, err
	}
	item.ID = s.newID()
	item.CreatedAt = model.FormatTime(s.stamp())
	items = append(items, item)
	if err := s.save(items); err != nil {
		return model.Item{}, err
	}
	metrics.ItemsCreated.WithLabelValues("api").Inc()
	return item, nil
}

// applyEnrichment merges discovered fields without overriding caller input.
func applyEnrichment(item *model.Item, meta model.SourceMeta) {
	if meta.Empty() {
		return
	}
	m := meta
	item.SourceURL = item.MediaURL
	item.SourceMeta = &m
	if item.Title == "" && meta.Title != "" {
		item.Title = meta.Title
	}
	if item.Description == "" && meta.Description != "" {
		item.Description = meta.Description
	}
}

// AppendBatch appends pre-normalized items in a single write. Items without
// an id or createdAt get one; nothing else is validated.
func (s *Store) AppendBatch(ctx context.Context, batch []model.Item) (added, total int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load()
	if err != nil {
		return 0, 0, err
	}
	if len(batch) == 0 {
		return 0, len(items), nil
	}

	createdAt := model.FormatTime(s.stamp())
	for _, it := range batch {
		if it.ID == "" {
			it.ID = s.newID()
		}
		if it.CreatedAt == "" {
			it.CreatedAt = createdAt
		}
		it.Tags = cloneTags(it.Tags)
		items = append(items, it)
	}
	if err := s.save(items); err != nil {
		return 0, 0, err
	}
	metrics.ItemsCreated.WithLabelValues("dataset").Add(float64(len(batch)))
	return len(batch), len(items), nil
}

// FindByID returns the item with the given id or model.ErrNotFound.
func (s *Store) FindByID(ctx context.Context, id string) (model.Item, error) {
	items, err := s.Load(ctx)
	if err != nil {
		return model.Item{}, err
	}
	for _, it := range items {
		if it.ID == id {
			return it, nil
		}
	}
	return model.Item{}, fmt.Errorf("item %s: %w", id, model.ErrNotFound)
}

// SeedDefaults adds the starter catalog for ownerID, skipping templates whose
// (owner, title) pair already exists. It returns how many items were added.
func (s *Store) SeedDefaults(ctx context.Context, ownerID string) (int, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return 0, &model.ValidationError{Field: "ownerId"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load()
	if err != nil {
		return 0, err
	}

	existing := make(map[string]bool, len(items))
	for _, it := range items {
		if it.OwnerID == ownerID {
			existing[it.Title] = true
		}
	}

	createdAt := model.FormatTime(s.stamp())
	added := 0
	for _, tpl := range defaultTemplates {
		if existing[tpl.title] {
			continue
		}
		existing[tpl.title] = true
		items = append(items, model.Item{
			ID:          s.newID(),
			OwnerID:     ownerID,
			Title:       tpl.title,
			Category:    tpl.category,
			Description: tpl.description,
			Tags:        cloneTags(tpl.tags),
			CreatedAt:   createdAt,
		})
		added++
	}
	if added == 0 {
		return 0, nil
	}
	if err := s.save(items); err != nil {
		return 0, err
	}
	metrics.ItemsCreated.WithLabelValues("seed").Add(float64(added))
	return added, nil
}

// load must be called with s.mu held.
func (s *Store) load() ([]model.Item, error) {
	data, found, err := s.backend.Read()
	if err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}
	if !found {
		if err := s.save(nil); err != nil {
			return nil, fmt.Errorf("initialising snapshot: %w", err)
		}
		return []model.Item{}, nil
	}

	items, decodeErr := decode(data)
	if decodeErr == nil {
		return items, nil
	}

	// Never reset without a copy of the original bytes.
	loc, err := s.backend.Backup(data)
	if err != nil {
		return nil, fmt.Errorf("backing up corrupt snapshot: %w", err)
	}
	if err := s.save(nil); err != nil {
		return nil, fmt.Errorf("resetting corrupt snapshot: %w", err)
	}
	metrics.SnapshotCorruptions.Inc()
	s.logger.Warn("snapshot corrupted, backed up and reset",
		"error", &CorruptionError{Backup: loc, Err: decodeErr},
		"backup", loc,
		"bytes", len(data),
	)
	return []model.Item{}, nil
}

// save must be called with s.mu held.
func (s *Store) save(items []model.Item) error {
	if items == nil {
		items = []model.Item{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := s.backend.Write(data); err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	return nil
}

func decode(data []byte) ([]model.Item, error) {
	var items []model.Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.Item{}
	}
	return items, nil
}

// stamp returns a creation time that never goes backwards. Must be called
// with s.mu held.
func (s *Store) stamp() time.Time {
	t := s.now().UTC().Truncate(time.Microsecond)
	if t.Before(s.last) {
		t = s.last
	}
	s.last = t
	return t
}

func cloneTags(tags []string) []string {
	if len(tags) == 0 {
		return []string{}
	}
	out := make([]string, len(tags))
	copy(out, tags)
	return out
}
