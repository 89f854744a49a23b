// Package dataset turns bulk review exports into Items.
package dataset

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"os"

	"github.com/buonappetort/rex/internal/metrics"
	"github.com/buonappetort/rex/internal/model"
)

// DefaultLimit is the per-source cap applied when the caller gives none.
const DefaultLimit = 200

const maxLineBytes = 16 << 20

// Options controls filtering and read mode.
type Options struct {
	Categories   []string
	Limit        int // per source; <= 0 means no cap
	FiveStarOnly bool
	Streaming    bool
}

// DefaultOptions returns the options used when a request leaves them out.
func DefaultOptions() Options {
	return Options{Limit: DefaultLimit, FiveStarOnly: true, Streaming: true}
}

// Normalizer reads dataset sources and yields normalized Items.
type Normalizer struct {
	opts   Options
	logger *slog.Logger
}

// NewNormalizer creates a Normalizer. A nil logger uses slog.Default().
func NewNormalizer(opts Options, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{opts: opts, logger: logger}
}

// Items returns a single-pass sequence over src. Each call re-opens the
// file. A missing or unreadable file yields nothing and is logged.
func (n *Normalizer) Items(ctx context.Context, src Source) iter.Seq[model.Item] {
	return func(yield func(model.Item) bool) {
		lines, closeFn, ok := n.open(ctx, src)
		if !ok {
			return
		}
		defer closeFn()

		kept := 0
		for line := range lines {
			if ctx.Err() != nil {
				return
			}
			if n.opts.Limit > 0 && kept >= n.opts.Limit {
				return
			}
			line = bytes.TrimSpace(line)
			if len(line) == 0 {
				continue
			}
			row, ok := decodeRow(line)
			if !ok {
				metrics.IngestRows.WithLabelValues("malformed").Inc()
				continue
			}
			if !n.keep(src, row) {
				metrics.IngestRows.WithLabelValues("filtered").Inc()
				continue
			}
			kept++
			metrics.IngestRows.WithLabelValues("kept").Inc()
			if !yield(Normalize(row)) {
				return
			}
		}
	}
}

// open returns the raw records of src, one JSON object per element.
func (n *Normalizer) open(ctx context.Context, src Source) (iter.Seq[[]byte], func(), bool) {
	onErr := func(err error) {
		n.logger.Warn("reading dataset source", "path", src.Path, "error", err)
	}

	if src.Parquet() {
		if _, err := os.Stat(src.Path); err != nil {
			n.warnOpen(src, err)
			return nil, nil, false
		}
		return parquetLines(ctx, src.Path, n.opts.Streaming, onErr), func() {}, true
	}

	f, err := os.Open(src.Path)
	if err != nil {
		n.warnOpen(src, err)
		return nil, nil, false
	}
	if n.opts.Streaming {
		return scanLines(f, onErr), func() { f.Close() }, true
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		onErr(err)
		return nil, nil, false
	}
	return splitLines(data), func() {}, true
}

func (n *Normalizer) warnOpen(src Source, err error) {
	if errors.Is(err, os.ErrNotExist) {
		n.logger.Warn("dataset source missing", "path", src.Path)
		return
	}
	n.logger.Warn("opening dataset source", "path", src.Path, "error", err)
}

// keep applies the five-star and per-row category filters.
func (n *Normalizer) keep(src Source, row Row) bool {
	if n.opts.FiveStarOnly {
		if rating, ok := row.Rating(); ok && rating != 5 {
			return false
		}
	}
	if src.Unified() && len(n.opts.Categories) > 0 {
		for _, key := range []string{"main_category", "category"} {
			if cat := row.String(key); cat != "" {
				return allowed(n.opts.Categories, cat)
			}
		}
	}
	return true
}

func scanLines(r io.Reader, onErr func(error)) iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		for sc.Scan() {
			if !yield(sc.Bytes()) {
				return
			}
		}
		if err := sc.Err(); err != nil {
			onErr(err)
		}
	}
}

func splitLines(data []byte) iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		for line := range bytes.Lines(data) {
			if !yield(line) {
				return
			}
		}
	}
}
