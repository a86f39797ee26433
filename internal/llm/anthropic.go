package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ashureev/ds-tutor/internal/domain"
)

const defaultAnthropicMaxTokens = 4096

// AnthropicModel invokes the Anthropic Messages API.
type AnthropicModel struct {
	client      anthropic.Client
	model       anthropic.Model
	maxTokens   int64
	temperature float64
}

// NewAnthropicModel creates an Anthropic-backed model. Extra request options
// are applied after the API key.
func NewAnthropicModel(apiKey, name string, temperature float64, opts ...option.RequestOption) *AnthropicModel {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &AnthropicModel{
		client:      anthropic.NewClient(opts...),
		model:       anthropic.Model(name),
		maxTokens:   defaultAnthropicMaxTokens,
		temperature: temperature,
	}
}

// Invoke implements Model. System turns are sent as the system prompt.
func (m *AnthropicModel) Invoke(ctx context.Context, turns []domain.Turn) (string, error) {
	var system []anthropic.TextBlockParam
	var messages []anthropic.MessageParam

	for _, t := range turns {
		switch t.Role {
		case domain.RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: t.Content})
		case domain.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(t.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(t.Content)))
		}
	}

	resp, err := m.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       m.model,
		MaxTokens:   m.maxTokens,
		System:      system,
		Messages:    messages,
		Temperature: anthropic.Float(m.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("call anthropic messages API: %w", err)
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			content.WriteString(text.Text)
		}
	}
	if content.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return content.String(), nil
}
