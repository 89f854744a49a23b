package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	unifiedFile    = "amazon_reviews_2023.jsonl"
	exportFile     = "amazon_reviews_2023.parquet_export.jsonl"
	categoryPrefix = "amazon_reviews_2023_"
	sourceExt      = ".jsonl"
	// parquetGlob matches the raw dataset shards, e.g.
	// full-00000-of-00002.parquet.
	parquetGlob = "full-*.parquet"
	parquetExt  = ".parquet"
)

// Source is one dataset file to ingest.
type Source struct {
	Path string
	// Category is set for per-category files. Unified files leave it empty
	// and are filtered row by row instead.
	Category string
}

// Name returns the file name of the source.
func (s Source) Name() string { return filepath.Base(s.Path) }

// Unified reports whether the file mixes categories.
func (s Source) Unified() bool { return s.Category == "" }

// Parquet reports whether the source is a raw parquet shard.
func (s Source) Parquet() bool { return strings.EqualFold(filepath.Ext(s.Path), parquetExt) }

// Discover lists the dataset files in dir. The unified export comes first,
// then the raw parquet shards, or their JSONL export when no shard is
// present. Per-category files are used only when none of these exist,
// restricted to categories when that list is non-empty. A missing dir yields
// no sources.
func Discover(dir string, categories []string) ([]Source, error) {
	var sources []Source
	if src, ok, err := regularFile(dir, unifiedFile); err != nil {
		return nil, err
	} else if ok {
		sources = append(sources, src)
	}

	shards, err := filepath.Glob(filepath.Join(dir, parquetGlob))
	if err != nil {
		return nil, fmt.Errorf("listing parquet files: %w", err)
	}
	found := 0
	for _, p := range shards {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			sources = append(sources, Source{Path: p})
			found++
		}
	}
	if found == 0 {
		if src, ok, err := regularFile(dir, exportFile); err != nil {
			return nil, err
		} else if ok {
			sources = append(sources, src)
		}
	}
	if len(sources) > 0 {
		return sources, nil
	}

	matches, err := filepath.Glob(filepath.Join(dir, categoryPrefix+"*"+sourceExt))
	if err != nil {
		return nil, fmt.Errorf("listing category files: %w", err)
	}
	for _, p := range matches {
		cat := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(p), categoryPrefix), sourceExt)
		if cat == "" || !allowed(categories, cat) {
			continue
		}
		sources = append(sources, Source{Path: p, Category: cat})
	}
	return sources, nil
}

func regularFile(dir, name string) (Source, bool, error) {
	p := filepath.Join(dir, name)
	info, err := os.Stat(p)
	if os.IsNotExist(err) {
		return Source{}, false, nil
	}
	if err != nil {
		return Source{}, false, fmt.Errorf("checking %s: %w", name, err)
	}
	return Source{Path: p}, !info.IsDir(), nil
}

// allowed reports whether category passes the allow-list. An empty list
// allows everything.
func allowed(categories []string, category string) bool {
	if len(categories) == 0 {
		return true
	}
	for _, c := range categories {
		if strings.EqualFold(strings.TrimSpace(c), category) {
			return true
		}
	}
	return false
}
