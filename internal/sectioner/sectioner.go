// Package sectioner slices a multi-level model reply down to the section
// written for a single learning level.
//
// The model is asked to label each level's part of its answer with a fixed
// marker (see domain.Level.Marker). Extract locates the requested level's
// marker and returns the text up to the next marker of any level. Matching is
// plain substring search: a marker quoted inside unrelated prose still counts
// as a section boundary.
package sectioner

import (
	"fmt"
	"strings"

	"github.com/ashureev/ds-tutor/internal/domain"
	"github.com/samber/lo"
)

// Extract returns the trimmed section of fullText that belongs to level.
// When the level's marker does not occur, fullText is returned unchanged.
// The only error is domain.ErrInvalidLevel for a level outside the known set.
func Extract(fullText string, level domain.Level) (string, error) {
	if !level.Valid() {
		return "", fmt.Errorf("extract section: %w: %q", domain.ErrInvalidLevel, string(level))
	}

	start := strings.Index(fullText, level.Marker())
	if start < 0 {
		return fullText, nil
	}

	return strings.TrimSpace(fullText[start:sectionEnd(fullText, start)]), nil
}

// sectionEnd returns the first-occurrence index of the nearest marker after
// start, or len(fullText) when no marker follows.
func sectionEnd(fullText string, start int) int {
	following := lo.FilterMap(domain.Levels(), func(l domain.Level, _ int) (int, bool) {
		idx := strings.Index(fullText, l.Marker())
		return idx, idx > start
	})
	if len(following) == 0 {
		return len(fullText)
	}
	return lo.Min(following)
}

// HasSections reports whether fullText contains any level marker.
func HasSections(fullText string) bool {
	return lo.SomeBy(domain.Levels(), func(l domain.Level) bool {
		return strings.Contains(fullText, l.Marker())
	})
}

// Markers returns the level to marker mapping.
func Markers() map[domain.Level]string {
	return lo.SliceToMap(domain.Levels(), func(l domain.Level) (domain.Level, string) {
		return l, l.Marker()
	})
}
