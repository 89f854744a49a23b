package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kFloat
	kDuration
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.host", typ: kString, env: "REX_SERVER_HOST",
		apply:   func(cfg *Config, v any) { cfg.Server.Host = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Host },
	},
	{
		key: "server.port", typ: kInt, env: "REX_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "storage.backend", typ: kString, env: "REX_STORAGE_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Storage.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.Backend },
	},
	{
		key: "storage.data_dir", typ: kString, env: "REX_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "REX_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "enrichment.domains", typ: kString, env: "REX_ENRICHMENT_DOMAINS",
		apply:   func(cfg *Config, v any) { cfg.Enrichment.Domains = v.(string) },
		extract: func(cfg Config) any { return cfg.Enrichment.Domains },
	},
	{
		key: "enrichment.timeout", typ: kDuration, env: "REX_ENRICHMENT_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Enrichment.Timeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Enrichment.Timeout },
	},
	{
		key: "enrichment.rate_per_second", typ: kFloat, env: "REX_ENRICHMENT_RATE_PER_SECOND",
		apply:   func(cfg *Config, v any) { cfg.Enrichment.RatePerSecond = v.(float64) },
		extract: func(cfg Config) any { return cfg.Enrichment.RatePerSecond },
	},
	{
		key: "enrichment.redis_addr", typ: kString, env: "REX_ENRICHMENT_REDIS_ADDR",
		apply:   func(cfg *Config, v any) { cfg.Enrichment.RedisAddr = v.(string) },
		extract: func(cfg Config) any { return cfg.Enrichment.RedisAddr },
	},
	{
		key: "enrichment.cache_ttl", typ: kDuration, env: "REX_ENRICHMENT_CACHE_TTL",
		apply:   func(cfg *Config, v any) { cfg.Enrichment.CacheTTL = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Enrichment.CacheTTL },
	},
	{
		key: "keywords.provider", typ: kString, env: "REX_KEYWORDS_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.Keywords.Provider = v.(string) },
		extract: func(cfg Config) any { return cfg.Keywords.Provider },
	},
	{
		key: "keywords.model", typ: kString, env: "REX_KEYWORDS_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Keywords.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Keywords.Model },
	},
	{
		key: "keywords.base_url", typ: kString, env: "REX_KEYWORDS_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Keywords.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Keywords.BaseURL },
	},
	{
		key: "keywords.timeout", typ: kDuration, env: "REX_KEYWORDS_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Keywords.Timeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Keywords.Timeout },
	},
	{
		key: "keywords.api_key", typ: kString, env: "REX_OPENAI_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Keywords.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Keywords.APIKey },
	},
	{
		key: "ollama.base_url", typ: kString, env: "REX_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
}

// parseValue converts raw into the Go type of t.
func parseValue(t keyType, raw string) (any, error) {
	var (
		v   any
		err error
	)
	switch t {
	case kInt:
		v, err = strconv.Atoi(raw)
	case kFloat:
		v, err = strconv.ParseFloat(raw, 64)
	case kDuration:
		v, err = time.ParseDuration(raw)
	default:
		v = raw
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kFloat, kDuration:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if pv, err := parseValue(s.typ, v); err == nil {
					s.apply(cfg, pv)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		v, err := parseValue(s.typ, raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
}
