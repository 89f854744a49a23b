// Package pagemeta enriches items whose media URL points at a recognised
// marketplace page by scraping the page's title, description and image.
package pagemeta

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/buonappetort/rex/internal/metrics"
	"github.com/buonappetort/rex/internal/model"
)

const (
	// DefaultTimeout bounds a single page fetch.
	DefaultTimeout = 12 * time.Second

	maxBodyBytes = 5 << 20
	userAgent    = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	acceptHeader = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"
)

// Config controls which URLs are scraped and how aggressively.
type Config struct {
	Domains       []string
	Timeout       time.Duration
	RatePerSecond float64
}

// Cache stores non-empty lookup results by URL.
type Cache interface {
	Get(ctx context.Context, url string) (model.SourceMeta, bool, error)
	Set(ctx context.Context, url string, meta model.SourceMeta) error
}

// Scraper fetches marketplace pages and extracts their metadata. Lookups
// never fail: every problem degrades to an empty result.
type Scraper struct {
	domains []string
	timeout time.Duration
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[model.SourceMeta]
	cache   Cache
	logger  *slog.Logger
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithHTTPClient replaces the HTTP client used for fetches.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Scraper) { s.client = c }
}

// WithCache enables result caching.
func WithCache(c Cache) Option {
	return func(s *Scraper) { s.cache = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scraper) { s.logger = l }
}

// New creates a Scraper. A zero Timeout uses DefaultTimeout; a zero
// RatePerSecond disables throttling.
func New(cfg Config, opts ...Option) *Scraper {
	s := &Scraper{
		timeout: cfg.Timeout,
		client:  &http.Client{},
		logger:  slog.Default(),
	}
	if s.timeout <= 0 {
		s.timeout = DefaultTimeout
	}
	for _, d := range cfg.Domains {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			s.domains = append(s.domains, d)
		}
	}
	if cfg.RatePerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}
	for _, o := range opts {
		o(s)
	}

	s.breaker = gobreaker.NewCircuitBreaker[model.SourceMeta](gobreaker.Settings{
		Name:        "pagemeta",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.Info("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return s
}

// Recognized reports whether url belongs to one of the configured domains.
func (s *Scraper) Recognized(url string) bool {
	lower := strings.ToLower(url)
	for _, d := range s.domains {
		if strings.Contains(lower, d) {
			return true
		}
	}
	return false
}

// Lookup returns the metadata discovered at url. An empty result means
// nothing was found or the page could not be fetched.
func (s *Scraper) Lookup(ctx context.Context, url string) model.SourceMeta {
	if s.cache != nil {
		meta, ok, err := s.cache.Get(ctx, url)
		if err != nil {
			s.logger.Warn("page metadata cache read failed", "url", url, "error", err)
		} else if ok {
			metrics.Enrichment.WithLabelValues("cached").Inc()
			return meta
		}
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			metrics.Enrichment.WithLabelValues("failed").Inc()
			s.logger.Warn("page metadata fetch throttled", "url", url, "error", err)
			return model.SourceMeta{}
		}
	}

	meta, err := s.breaker.Execute(func() (model.SourceMeta, error) {
		return s.fetch(ctx, url)
	})
	if err != nil {
		metrics.Enrichment.WithLabelValues("failed").Inc()
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			s.logger.Warn("page metadata fetch rejected", "url", url, "error", err)
		} else {
			s.logger.Warn("page metadata fetch failed", "url", url, "error", err)
		}
		return model.SourceMeta{}
	}
	if meta.Empty() {
		metrics.Enrichment.WithLabelValues("empty").Inc()
		return meta
	}

	metrics.Enrichment.WithLabelValues("hit").Inc()
	if s.cache != nil {
		if err := s.cache.Set(ctx, url, meta); err != nil {
			s.logger.Warn("page metadata cache write failed", "url", url, "error", err)
		}
	}
	return meta
}

func (s *Scraper) fetch(ctx context.Context, url string) (model.SourceMeta, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return model.SourceMeta{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Referer", "https://www.amazon.com/")

	resp, err := s.client.Do(req)
	if err != nil {
		return model.SourceMeta{}, fmt.Errorf("requesting page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return model.SourceMeta{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return Extract(io.LimitReader(resp.Body, maxBodyBytes)), nil
}
