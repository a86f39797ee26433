package llm

import (
	"context"
	"fmt"

	"github.com/ashureev/ds-tutor/internal/domain"
	"github.com/samber/lo"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/openai"
)

// LangChainModel invokes any langchaingo chat model.
type LangChainModel struct {
	llm         llms.Model
	temperature float64
}

// NewLangChainModel wraps an existing langchaingo model.
func NewLangChainModel(model llms.Model, temperature float64) *LangChainModel {
	return &LangChainModel{llm: model, temperature: temperature}
}

// NewGoogleAIModel creates a Gemini-backed model.
func NewGoogleAIModel(ctx context.Context, apiKey, name string, temperature float64) (*LangChainModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("googleai: %w", ErrMissingAPIKey)
	}
	client, err := googleai.New(ctx,
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultModel(name),
		googleai.WithDefaultTemperature(temperature),
	)
	if err != nil {
		return nil, fmt.Errorf("create googleai client: %w", err)
	}
	return NewLangChainModel(client, temperature), nil
}

// NewOpenAIModel creates an OpenAI-backed model.
func NewOpenAIModel(apiKey, name string, temperature float64) (*LangChainModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: %w", ErrMissingAPIKey)
	}
	client, err := openai.New(
		openai.WithModel(name),
		openai.WithToken(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}
	return NewLangChainModel(client, temperature), nil
}

// Invoke implements Model.
func (m *LangChainModel) Invoke(ctx context.Context, turns []domain.Turn) (string, error) {
	messages := lo.Map(turns, func(t domain.Turn, _ int) llms.MessageContent {
		return llms.TextParts(chatMessageType(t.Role), t.Content)
	})

	resp, err := m.llm.GenerateContent(ctx, messages, llms.WithTemperature(m.temperature))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Content, nil
}

func chatMessageType(role domain.Role) llms.ChatMessageType {
	switch role {
	case domain.RoleSystem:
		return llms.ChatMessageTypeSystem
	case domain.RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}
