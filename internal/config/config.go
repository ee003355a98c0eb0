package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ErrMissingCredential is returned when the selected completion provider has
// no API key configured.
var ErrMissingCredential = errors.New("missing completion credential")

// Config contains all runtime settings for the guessing-game service.
type Config struct {
	BindAddr                 string        `env:"APP_BIND_ADDR" envDefault:":5001"`
	ShutdownTimeout          time.Duration `env:"APP_SHUTDOWN_TIMEOUT" envDefault:"15s"`
	SessionInactivityTimeout time.Duration `env:"APP_SESSION_INACTIVITY_TIMEOUT" envDefault:"30m"`
	MetricsNamespace         string        `env:"APP_METRICS_NAMESPACE" envDefault:"guesser"`

	CORSOrigins    []string `env:"APP_CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	AllowAnyOrigin bool     `env:"APP_ALLOW_ANY_ORIGIN" envDefault:"false"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`

	CompletionProvider string        `env:"COMPLETION_PROVIDER" envDefault:"openai"`
	CompletionTimeout  time.Duration `env:"COMPLETION_TIMEOUT" envDefault:"60s"`
	CompletionHTTPURL  string        `env:"COMPLETION_HTTP_URL"`

	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIModel   string `env:"OPENAI_MODEL" envDefault:"gpt-4o"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`

	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	GeminiModel  string `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`

	BedrockRegion  string `env:"AWS_REGION" envDefault:"us-east-1"`
	BedrockModelID string `env:"BEDROCK_MODEL_ID" envDefault:"anthropic.claude-3-haiku-20240307-v1:0"`

	GameLocale    string `env:"GAME_LOCALE" envDefault:"en"`
	GameTurnLimit int    `env:"GAME_TURN_LIMIT" envDefault:"25"`

	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`
}

// LoadDotEnv loads variables from the given files (".env" when none) without
// overriding values already present in the environment. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads environment variables, applies defaults and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.normalize()

	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.CompletionTimeout <= 0 {
		return Config{}, fmt.Errorf("COMPLETION_TIMEOUT must be positive")
	}
	if cfg.GameTurnLimit <= 0 {
		return Config{}, fmt.Errorf("GAME_TURN_LIMIT must be positive")
	}
	switch cfg.GameLocale {
	case "en", "ja":
	default:
		return Config{}, fmt.Errorf("invalid GAME_LOCALE: %q (expected en|ja)", cfg.GameLocale)
	}
	if err := cfg.validateProvider(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// CredentialEnv names the variable holding the selected provider's credential,
// or "" when the provider needs none.
func (c Config) CredentialEnv() string {
	switch c.CompletionProvider {
	case "openai":
		return "OPENAI_API_KEY"
	case "gemini":
		return "GEMINI_API_KEY"
	default:
		return ""
	}
}

func (c *Config) normalize() {
	c.CompletionProvider = strings.ToLower(strings.TrimSpace(c.CompletionProvider))
	c.GameLocale = strings.ToLower(strings.TrimSpace(c.GameLocale))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.OpenAIAPIKey = strings.TrimSpace(c.OpenAIAPIKey)
	c.GeminiAPIKey = strings.TrimSpace(c.GeminiAPIKey)
	c.CompletionHTTPURL = strings.TrimSpace(c.CompletionHTTPURL)
	c.DatabaseURL = strings.TrimSpace(c.DatabaseURL)
	c.RedisURL = strings.TrimSpace(c.RedisURL)

	origins := c.CORSOrigins[:0]
	for _, o := range c.CORSOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.CORSOrigins = origins
}

func (c Config) validateProvider() error {
	switch c.CompletionProvider {
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY is not set", ErrMissingCredential)
		}
	case "gemini":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY is not set", ErrMissingCredential)
		}
	case "bedrock":
		if strings.TrimSpace(c.BedrockModelID) == "" {
			return fmt.Errorf("BEDROCK_MODEL_ID is required for the bedrock provider")
		}
	case "http":
		if c.CompletionHTTPURL == "" {
			return fmt.Errorf("COMPLETION_HTTP_URL is required for the http provider")
		}
	case "mock":
	default:
		return fmt.Errorf("invalid COMPLETION_PROVIDER: %q (expected openai|gemini|bedrock|http|mock)", c.CompletionProvider)
	}
	return nil
}
