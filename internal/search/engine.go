// Package search filters a collection by keywords derived from a free-text
// query. Matching is a conjunction of literal substring tests; there is no
// ranking.
package search

import (
	"context"
	"log/slog"
	"strings"

	"github.com/buonappetort/rex/internal/metrics"
	"github.com/buonappetort/rex/internal/model"
)

// Result is the outcome of a search. Keywords is never nil.
type Result struct {
	Query    string       `json:"query"`
	Keywords []string     `json:"keywords"`
	Results  []model.Item `json:"results"`
}

// Engine runs searches. External may be nil, in which case every query uses
// Fallback. Fallback is the whitespace split unless replaced.
type Engine struct {
	External KeywordStrategy
	Fallback KeywordStrategy
	Logger   *slog.Logger
}

// NewEngine creates an Engine with an optional external keyword strategy.
func NewEngine(external KeywordStrategy, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{External: external, Fallback: Split{}, Logger: logger}
}

// Search derives keywords from query and returns the items whose haystack
// contains every keyword. Input order is preserved.
func (e *Engine) Search(ctx context.Context, items []model.Item, query string, useExternal bool) Result {
	query = strings.TrimSpace(query)
	keywords := e.keywords(ctx, query, useExternal)

	results := make([]model.Item, 0, len(items))
	for _, it := range items {
		if Matches(it, keywords) {
			results = append(results, it)
		}
	}
	return Result{Query: query, Keywords: keywords, Results: results}
}

func (e *Engine) keywords(ctx context.Context, query string, useExternal bool) []string {
	if useExternal && e.External != nil && query != "" {
		kw, err := e.External.Keywords(ctx, query)
		switch {
		case err != nil:
			e.Logger.Warn("keyword extraction failed, using split", "error", err)
		case len(kw) > 0:
			metrics.KeywordStrategy.WithLabelValues("llm").Inc()
			return kw
		}
		metrics.KeywordStrategy.WithLabelValues("llm_fallback").Inc()
		return e.fallback(ctx, query)
	}
	metrics.KeywordStrategy.WithLabelValues("split").Inc()
	return e.fallback(ctx, query)
}

// fallback runs the Fallback strategy, dropping to a plain split if it is
// unset or fails.
func (e *Engine) fallback(ctx context.Context, query string) []string {
	if e.Fallback == nil {
		return splitKeywords(query)
	}
	kw, err := e.Fallback.Keywords(ctx, query)
	if err != nil {
		e.Logger.Warn("fallback keyword strategy failed, using split", "error", err)
		return splitKeywords(query)
	}
	if kw == nil {
		return []string{}
	}
	return kw
}

// Haystack is the lowercase text an item is matched against.
func Haystack(it model.Item) string {
	return strings.ToLower(strings.Join([]string{
		it.Title,
		it.Description,
		it.Category,
		strings.Join(it.Tags, " "),
	}, " "))
}

// Matches reports whether every keyword is a substring of the item's
// haystack. No keywords matches everything.
func Matches(it model.Item, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	h := Haystack(it)
	for _, k := range keywords {
		if !strings.Contains(h, k) {
			return false
		}
	}
	return true
}
