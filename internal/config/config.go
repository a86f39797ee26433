// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/ds-tutor/internal/domain"
)

// Model providers understood by the llm package.
const (
	ProviderGoogle    = "google"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGrpc      = "grpc"
)

var errMissingAPIKey = errors.New("missing API key")

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string
	Model       ModelConfig
	Tutor       TutorConfig
	RateLimit   RateLimitConfig
	// MaxRequestBodySize bounds JSON request bodies on the tutor API.
	MaxRequestBodySize int64
}

// ModelConfig selects and parameterizes the hosted model.
type ModelConfig struct {
	Provider        string
	Name            string
	Temperature     float64
	GoogleAPIKey    string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	GatewayAddr     string
	RequestTimeout  time.Duration
}

// TutorConfig controls conversation behavior.
type TutorConfig struct {
	DefaultLevel     domain.Level
	StructuredPrompt bool
	SessionIdleTTL   time.Duration
}

// RateLimitConfig bounds chat requests per user.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	level, err := domain.ParseLevel(getEnv("TUTOR_DEFAULT_LEVEL", string(domain.DefaultLevel)))
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: TUTOR_DEFAULT_LEVEL: %w", err)
	}

	provider := strings.ToLower(strings.TrimSpace(getEnv("MODEL_PROVIDER", ProviderGoogle)))

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DBPath:      getEnv("DB_PATH", "./data/tutor.db"),
		Model: ModelConfig{
			Provider:        provider,
			Name:            getEnv("MODEL_NAME", DefaultModelName(provider)),
			Temperature:     getEnvFloat("MODEL_TEMPERATURE", 0.7),
			GoogleAPIKey:    getEnv("GOOGLE_API_KEY", ""),
			OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
			AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
			GatewayAddr:     getEnv("MODEL_GATEWAY_ADDR", "localhost:50051"),
			RequestTimeout:  getEnvDuration("MODEL_REQUEST_TIMEOUT", 60*time.Second),
		},
		Tutor: TutorConfig{
			DefaultLevel:     level,
			StructuredPrompt: getEnvBool("TUTOR_STRUCTURED_PROMPT", false),
			SessionIdleTTL:   getEnvDuration("SESSION_IDLE_TTL", 60*time.Minute),
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: getEnvInt("RATE_LIMIT_REQUESTS", 10),
			WindowDuration:    getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_SIZE", 1<<20)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// DefaultModelName returns the model used when MODEL_NAME is unset.
func DefaultModelName(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return "gpt-4o-mini"
	case ProviderAnthropic:
		return "claude-sonnet-4-20250514"
	case ProviderGrpc:
		return "default"
	default:
		return "gemini-1.5-pro"
	}
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if err := c.Model.Validate(); err != nil {
		return err
	}
	if !c.Tutor.DefaultLevel.Valid() {
		return fmt.Errorf("TUTOR_DEFAULT_LEVEL: %w", domain.ErrInvalidLevel)
	}
	if c.Tutor.SessionIdleTTL <= 0 {
		return fmt.Errorf("SESSION_IDLE_TTL must be > 0")
	}
	if c.RateLimit.RequestsPerWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be > 0")
	}
	if c.RateLimit.WindowDuration <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be > 0")
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0")
	}
	return nil
}

// Validate checks the provider selection and its credentials.
func (m *ModelConfig) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("MODEL_NAME cannot be empty")
	}
	if m.Temperature < 0 || m.Temperature > 2 {
		return fmt.Errorf("MODEL_TEMPERATURE must be within [0, 2], got %v", m.Temperature)
	}
	switch m.Provider {
	case ProviderGoogle:
		if m.GoogleAPIKey == "" {
			return fmt.Errorf("GOOGLE_API_KEY: %w", errMissingAPIKey)
		}
	case ProviderOpenAI:
		if m.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY: %w", errMissingAPIKey)
		}
	case ProviderAnthropic:
		if m.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY: %w", errMissingAPIKey)
		}
	case ProviderGrpc:
		if m.GatewayAddr == "" {
			return fmt.Errorf("MODEL_GATEWAY_ADDR cannot be empty")
		}
	default:
		return fmt.Errorf("MODEL_PROVIDER %q is not supported", m.Provider)
	}
	return nil
}

// APIKey returns the credential for the selected provider.
func (m *ModelConfig) APIKey() string {
	switch m.Provider {
	case ProviderGoogle:
		return m.GoogleAPIKey
	case ProviderOpenAI:
		return m.OpenAIAPIKey
	case ProviderAnthropic:
		return m.AnthropicAPIKey
	default:
		return ""
	}
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
