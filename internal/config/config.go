package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	Log        LogConfig
	Enrichment EnrichmentConfig
	Keywords   KeywordsConfig
	Ollama     OllamaConfig
}

type ServerConfig struct {
	Host string `validate:"required"`
	Port int    `validate:"min=1,max=65535"`
}

type StorageConfig struct {
	Backend string `validate:"oneof=file sqlite"`
	DataDir string `validate:"required"`
}

type LogConfig struct {
	Level string
}

type EnrichmentConfig struct {
	Domains       string // comma-separated
	Timeout       time.Duration `validate:"gt=0"`
	RatePerSecond float64       `validate:"gte=0"`
	RedisAddr     string
	CacheTTL      time.Duration `validate:"gte=0"`
}

type KeywordsConfig struct {
	Provider string `validate:"oneof=openai ollama none"`
	Model    string
	BaseURL  string
	Timeout  time.Duration `validate:"gt=0"`
	APIKey   string
}

type OllamaConfig struct {
	BaseURL string
}

// DomainList returns the configured marketplace domains.
func (c EnrichmentConfig) DomainList() []string {
	var out []string
	for _, d := range strings.Split(c.Domains, ",") {
		if d = strings.TrimSpace(d); d != "" {
			out = append(out, d)
		}
	}
	return out
}

// SlogLevel maps log.level to a slog level. Only "debug" lowers the
// threshold below info.
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 5000,
		},
		Storage: StorageConfig{
			Backend: "file",
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
		Enrichment: EnrichmentConfig{
			Domains:       "amazon.com",
			Timeout:       12 * time.Second,
			RatePerSecond: 2,
			CacheTTL:      24 * time.Hour,
		},
		Keywords: KeywordsConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
			BaseURL:  "https://api.openai.com/v1",
			Timeout:  5 * time.Second,
		},
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
		},
	}
}

// Load reads configuration from the JSON file at
// $XDG_CONFIG_HOME/rex/config.json, then applies REX_* environment
// overrides. The keyword provider API key is secret: it comes from
// REX_OPENAI_API_KEY, then OPENAI_API_KEY, then the secrets file.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()), secretsFile{path: secretsFilePath()})
}

// secretStore abstracts secret lookup for testing.
type secretStore interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, secrets secretStore) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.Keywords.APIKey == "" {
		cfg.Keywords.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Keywords.APIKey == "" {
		if key, err := secrets.Get("rex", "openai_api_key"); err == nil && key != "" {
			cfg.Keywords.APIKey = key
		}
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	err := validator.New().Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("invalid config: %s fails %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
	}
	return fmt.Errorf("invalid config: %w", err)
}
