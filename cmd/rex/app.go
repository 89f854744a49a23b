package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/buonappetort/rex/internal/config"
	"github.com/buonappetort/rex/internal/ingest"
	"github.com/buonappetort/rex/internal/llm"
	"github.com/buonappetort/rex/internal/pagemeta"
	"github.com/buonappetort/rex/internal/search"
	"github.com/buonappetort/rex/internal/service"
	"github.com/buonappetort/rex/internal/storage"
	"github.com/buonappetort/rex/internal/store"
)

// app is the wired set of components behind every command.
type app struct {
	cfg     config.Config
	svc     *service.Service
	backups storage.BackupReader
	logger  *slog.Logger
	closers []io.Closer
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
}

// loadApp reads configuration and wires the service for cmd.
var loadApp = func(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg, newLogger(cfg))
}

func newLogger(cfg config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	// The SQLite database always backs the ingestion ledger; it also holds
	// the snapshot when storage.backend is sqlite.
	db, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	a.closers = append(a.closers, db)

	var backend storage.Backend = db
	a.backups = db
	if cfg.Storage.Backend == "file" {
		fb, err := storage.NewFileBackend(cfg.Storage.DataDir)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("opening storage: %w", err)
		}
		backend = fb
		a.backups = fb
	}

	st := store.New(backend,
		store.WithEnricher(a.newScraper(ctx)),
		store.WithLogger(logger),
	)
	runner := ingest.NewRunner(cfg.Storage.DataDir, st,
		ingest.WithLedger(db),
		ingest.WithLogger(logger),
	)
	a.svc = service.New(st, search.NewEngine(a.newKeywordStrategy(ctx), logger),
		service.WithIngest(runner),
		service.WithRunHistory(db),
	)
	return a, nil
}

func (a *app) newScraper(ctx context.Context) *pagemeta.Scraper {
	cfg := a.cfg.Enrichment
	opts := []pagemeta.Option{pagemeta.WithLogger(a.logger)}
	if cfg.RedisAddr != "" {
		dialCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		client, err := pagemeta.DialRedis(dialCtx, cfg.RedisAddr)
		cancel()
		if err != nil {
			a.logger.Warn("page metadata cache disabled", "error", err)
		} else {
			a.closers = append(a.closers, client)
			opts = append(opts, pagemeta.WithCache(pagemeta.NewRedisCache(client, cfg.CacheTTL)))
		}
	}
	return pagemeta.New(pagemeta.Config{
		Domains:       cfg.DomainList(),
		Timeout:       cfg.Timeout,
		RatePerSecond: cfg.RatePerSecond,
	}, opts...)
}

// newKeywordStrategy returns nil when no language model is usable, which
// leaves search on whitespace splitting.
func (a *app) newKeywordStrategy(ctx context.Context) search.KeywordStrategy {
	kw := a.cfg.Keywords
	var client llm.Chatter
	switch kw.Provider {
	case "openai":
		if kw.APIKey == "" {
			a.logger.Debug("no OpenAI API key, keyword extraction disabled")
			return nil
		}
		client = llm.NewOpenAI(kw.APIKey, kw.BaseURL)
	case "ollama":
		ol := llm.NewOllama(a.cfg.Ollama.BaseURL)
		if !ol.IsRunning(ctx) {
			a.logger.Warn("ollama not reachable, searches will fall back to whitespace split", "url", a.cfg.Ollama.BaseURL)
		}
		client = ol
	default:
		return nil
	}
	return &search.LLM{Client: client, Model: kw.Model, Timeout: kw.Timeout}
}
