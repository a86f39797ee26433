package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ashureev/ds-tutor/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	System      []struct {
		Text string `json:"text"`
	} `json:"system"`
	Messages []struct {
		Role string `json:"role"`
	} `json:"messages"`
}

func newAnthropicServer(t *testing.T, status int, body string, captured *capturedRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			http.NotFound(w, r)
			return
		}
		if captured != nil {
			if err := json.NewDecoder(r.Body).Decode(captured); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAnthropicModelInvoke(t *testing.T) {
	var captured capturedRequest
	srv := newAnthropicServer(t, http.StatusOK, `{
		"id": "msg_01",
		"type": "message",
		"role": "assistant",
		"model": "claude-sonnet-4-20250514",
		"content": [
			{"type": "text", "text": "🔰 Beginner: A mean is "},
			{"type": "text", "text": "an average."}
		],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 10, "output_tokens": 8}
	}`, &captured)

	m := NewAnthropicModel("test-key", "claude-sonnet-4-20250514", 0.5,
		option.WithBaseURL(srv.URL), option.WithMaxRetries(0))

	got, err := m.Invoke(context.Background(), []domain.Turn{
		domain.NewTurn(domain.RoleSystem, "tutor instruction"),
		domain.NewTurn(domain.RoleUser, "what is a mean?"),
	})
	require.NoError(t, err)
	assert.Equal(t, "🔰 Beginner: A mean is an average.", got)

	assert.Equal(t, "claude-sonnet-4-20250514", captured.Model)
	assert.InDelta(t, 0.5, captured.Temperature, 1e-9)
	require.Len(t, captured.System, 1)
	assert.Equal(t, "tutor instruction", captured.System[0].Text)
	require.Len(t, captured.Messages, 1)
	assert.Equal(t, "user", captured.Messages[0].Role)
}

func TestAnthropicModelEmptyContent(t *testing.T) {
	srv := newAnthropicServer(t, http.StatusOK, `{
		"id": "msg_02", "type": "message", "role": "assistant",
		"model": "claude-sonnet-4-20250514", "content": [],
		"stop_reason": "end_turn", "usage": {"input_tokens": 1, "output_tokens": 0}
	}`, nil)

	m := NewAnthropicModel("test-key", "claude-sonnet-4-20250514", 0.7,
		option.WithBaseURL(srv.URL), option.WithMaxRetries(0))

	_, err := m.Invoke(context.Background(), []domain.Turn{domain.NewTurn(domain.RoleUser, "q")})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestAnthropicModelAPIError(t *testing.T) {
	srv := newAnthropicServer(t, http.StatusBadRequest,
		`{"type": "error", "error": {"type": "invalid_request_error", "message": "bad"}}`, nil)

	m := NewAnthropicModel("test-key", "claude-sonnet-4-20250514", 0.7,
		option.WithBaseURL(srv.URL), option.WithMaxRetries(0))

	_, err := m.Invoke(context.Background(), []domain.Turn{domain.NewTurn(domain.RoleUser, "q")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic")
}
