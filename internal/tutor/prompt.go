package tutor

import (
	"fmt"
	"strings"

	"github.com/ashureev/ds-tutor/internal/domain"
)

const systemInstructionFormat = "You are an AI tutor specialized in answering only Data Science-related questions. " +
	"If asked anything outside Data Science, politely refuse. " +
	"Provide responses based on the user's learning level: %s."

// SystemInstruction renders the tutor instruction for level.
func SystemInstruction(level domain.Level) string {
	return fmt.Sprintf(systemInstructionFormat, level)
}

// sectionMarkerHint asks the model to label its sections so the sectioner
// can slice the reply.
func sectionMarkerHint() string {
	markers := make([]string, 0, len(domain.Levels()))
	for _, l := range domain.Levels() {
		markers = append(markers, `"`+l.Marker()+`"`)
	}
	return " Structure your answer in sections for each learning level, starting each section with its marker: " +
		strings.Join(markers, ", ") + "."
}

// PromptOption customizes BuildMessages.
type PromptOption func(*promptOptions)

type promptOptions struct {
	sectionMarkers bool
}

// WithSectionMarkers appends an instruction asking for labeled sections.
func WithSectionMarkers(enabled bool) PromptOption {
	return func(o *promptOptions) {
		o.sectionMarkers = enabled
	}
}

// BuildMessages assembles the prompt for one turn: the system instruction for
// level, then history in order, then the new query. history is not modified.
func BuildMessages(level domain.Level, history []domain.Turn, query string, opts ...PromptOption) []domain.Turn {
	var o promptOptions
	for _, opt := range opts {
		opt(&o)
	}

	instruction := SystemInstruction(level)
	if o.sectionMarkers {
		instruction += sectionMarkerHint()
	}

	msgs := make([]domain.Turn, 0, len(history)+2)
	msgs = append(msgs, domain.NewTurn(domain.RoleSystem, instruction))
	msgs = append(msgs, history...)
	msgs = append(msgs, domain.NewTurn(domain.RoleUser, query))
	return msgs
}
