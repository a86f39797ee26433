// Package llm adapts hosted language-model providers to the tutor's
// single-call model interface.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ashureev/ds-tutor/internal/config"
	"github.com/ashureev/ds-tutor/internal/domain"
)

var (
	// ErrEmptyResponse is returned when a provider answers without any text.
	ErrEmptyResponse = errors.New("model returned empty response")
	// ErrUnknownProvider is returned by New for an unsupported provider name.
	ErrUnknownProvider = errors.New("unknown model provider")
	// ErrMissingAPIKey is returned when a hosted provider has no credential.
	ErrMissingAPIKey = errors.New("missing API key")
)

// Model sends an ordered list of role-tagged turns (system instruction,
// history, new user message) to a provider and returns its full reply.
type Model interface {
	Invoke(ctx context.Context, turns []domain.Turn) (string, error)
}

// HealthChecker is implemented by models that can probe their backend.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Closer is implemented by models holding connections.
type Closer interface {
	Close()
}

// ModelFunc adapts a function to the Model interface.
type ModelFunc func(ctx context.Context, turns []domain.Turn) (string, error)

// Invoke calls f.
func (f ModelFunc) Invoke(ctx context.Context, turns []domain.Turn) (string, error) {
	return f(ctx, turns)
}

// New builds the Model selected by cfg.Provider.
func New(ctx context.Context, cfg config.ModelConfig, logger *slog.Logger) (Model, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Provider {
	case config.ProviderGoogle:
		m, err := NewGoogleAIModel(ctx, cfg.APIKey(), cfg.Name, cfg.Temperature)
		if err != nil {
			return nil, err
		}
		return m, nil
	case config.ProviderOpenAI:
		m, err := NewOpenAIModel(cfg.APIKey(), cfg.Name, cfg.Temperature)
		if err != nil {
			return nil, err
		}
		return m, nil
	case config.ProviderAnthropic:
		apiKey := cfg.APIKey()
		if apiKey == "" {
			return nil, fmt.Errorf("anthropic: %w", ErrMissingAPIKey)
		}
		return NewAnthropicModel(apiKey, cfg.Name, cfg.Temperature), nil
	case config.ProviderGrpc:
		gc := DefaultGrpcConfig()
		gc.Address = cfg.GatewayAddr
		gc.Model = cfg.Name
		gc.Temperature = cfg.Temperature
		if cfg.RequestTimeout > 0 {
			gc.RequestTimeout = cfg.RequestTimeout
		}
		m, err := NewGrpcModel(gc, logger)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}
