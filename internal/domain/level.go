package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidLevel is returned when a value outside the known learning levels
// is supplied.
var ErrInvalidLevel = errors.New("invalid level")

// Level is the learner's selected proficiency tier.
type Level string

const (
	LevelBeginner     Level = "Beginner"
	LevelIntermediate Level = "Intermediate"
	LevelAdvanced     Level = "Advanced"
)

// DefaultLevel is used when neither the request nor the user preference
// names a level.
const DefaultLevel = LevelBeginner

var levels = []Level{LevelBeginner, LevelIntermediate, LevelAdvanced}

// sectionMarkers maps each level to the heading the model is expected to emit
// in a structured multi-level reply.
var sectionMarkers = map[Level]string{
	LevelBeginner:     "🔰 Beginner:",
	LevelIntermediate: "📚 Intermediate:",
	LevelAdvanced:     "🚀 Advanced:",
}

// Levels returns all levels in ascending order.
func Levels() []Level {
	out := make([]Level, len(levels))
	copy(out, levels)
	return out
}

// ParseLevel converts s into a Level. Matching is case-insensitive and
// ignores surrounding whitespace.
func ParseLevel(s string) (Level, error) {
	trimmed := strings.TrimSpace(s)
	for _, l := range levels {
		if strings.EqualFold(trimmed, string(l)) {
			return l, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidLevel, s)
}

// Valid reports whether l is one of the known levels.
func (l Level) Valid() bool {
	_, ok := sectionMarkers[l]
	return ok
}

// Marker returns the section marker for l, or "" for an unknown level.
func (l Level) Marker() string {
	return sectionMarkers[l]
}

func (l Level) String() string {
	return string(l)
}
