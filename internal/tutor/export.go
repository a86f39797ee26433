package tutor

import (
	"strings"

	"github.com/ashureev/ds-tutor/internal/domain"
)

// TranscriptFilename is the download name for exported transcripts.
const TranscriptFilename = "chat_history.txt"

// FormatTranscript renders exchanges as alternating "**You:**" and "**AI:**"
// lines joined by newlines.
func FormatTranscript(exchanges []domain.Exchange) string {
	lines := make([]string, 0, 2*len(exchanges))
	for _, e := range exchanges {
		lines = append(lines, "**You:** "+e.Query, "**AI:** "+e.Answer)
	}
	return strings.Join(lines, "\n")
}
