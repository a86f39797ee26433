// Package tutor runs Data Science tutoring conversations against a hosted
// model and exposes them over HTTP and websockets.
package tutor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/ds-tutor/internal/domain"
	"github.com/ashureev/ds-tutor/internal/llm"
	"github.com/ashureev/ds-tutor/internal/sectioner"
)

// ErrModelFailure wraps any error returned by the model provider.
var ErrModelFailure = errors.New("model invocation failed")

var errNilModel = errors.New("tutor: model is required")

// Answer is the result of one turn.
type Answer struct {
	Query string `json:"query"`
	// Answer is the slice of the reply for the learner's level. It is what
	// the conversation stores and exports.
	Answer string `json:"answer"`
	// Full is the unmodified model reply.
	Full      string       `json:"full"`
	Level     domain.Level `json:"level"`
	Sectioned bool         `json:"sectioned"`
}

// Service processes turns for conversations.
type Service struct {
	model            llm.Model
	structuredPrompt bool
	logger           *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithStructuredPrompt asks the model to label level sections.
func WithStructuredPrompt(enabled bool) Option {
	return func(s *Service) {
		s.structuredPrompt = enabled
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a Service backed by model.
func NewService(model llm.Model, opts ...Option) (*Service, error) {
	if model == nil {
		return nil, errNilModel
	}
	s := &Service{
		model:  model,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Ask runs one turn: it sends the instruction, history and query to the
// model, slices the reply for the conversation's level and records the
// exchange. On model failure the conversation is left unchanged.
func (s *Service) Ask(ctx context.Context, conv *Conversation, query string) (*Answer, error) {
	conv.turnMu.Lock()
	defer conv.turnMu.Unlock()

	level := conv.Level()
	msgs := BuildMessages(level, conv.Turns(), query, WithSectionMarkers(s.structuredPrompt))

	start := time.Now()
	full, err := s.model.Invoke(ctx, msgs)
	if err != nil {
		s.logger.Error("Model invocation failed",
			"user_id", conv.UserID(),
			"session_id", conv.SessionID(),
			"level", level,
			"error", err)
		conv.touch()
		return nil, fmt.Errorf("%w: %w", ErrModelFailure, err)
	}

	answer, err := sectioner.Extract(full, level)
	if err != nil {
		return nil, fmt.Errorf("extract %s section: %w", level, err)
	}

	conv.record(query, answer)

	sectioned := sectioner.HasSections(full)
	s.logger.Info("Tutor turn completed",
		"user_id", conv.UserID(),
		"session_id", conv.SessionID(),
		"level", level,
		"sectioned", sectioned,
		"reply_length", len(full),
		"answer_length", len(answer),
		"duration_ms", time.Since(start).Milliseconds())

	return &Answer{
		Query:     query,
		Answer:    answer,
		Full:      full,
		Level:     level,
		Sectioned: sectioned,
	}, nil
}

// Reset clears the conversation history and its exchanges. It waits for an
// in-flight Ask on the same conversation to finish.
func (s *Service) Reset(conv *Conversation) {
	conv.turnMu.Lock()
	defer conv.turnMu.Unlock()

	conv.clear()
	s.logger.Info("Conversation reset", "user_id", conv.UserID(), "session_id", conv.SessionID())
}

// Health probes the model provider when it supports it.
func (s *Service) Health(ctx context.Context) error {
	if hc, ok := s.model.(llm.HealthChecker); ok {
		return hc.Health(ctx)
	}
	return nil
}

// Close releases model connections.
func (s *Service) Close() {
	if c, ok := s.model.(llm.Closer); ok {
		c.Close()
	}
}
