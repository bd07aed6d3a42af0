package corpus

import (
	"fmt"
	"strings"

	"github.com/jdvalen/recuerdo/internal/domain"
)

// DefaultChunkSize groups five consecutive messages per retrievable
// unit, enough context for one exchange without diluting the embedding.
const DefaultChunkSize = 5

// Chunk partitions messages into contiguous, non-overlapping groups of
// chunkSize (the last group may be smaller). Messages must already be
// sorted ascending by timestamp. The output is deterministic for a
// given input; cached embeddings depend on that.
//
// Each chunk's text is newline-joined "[YYYY-MM-DD] sender: content"
// lines. Messages with empty content are skipped in the text but still
// counted in MessageCount.
func Chunk(messages []domain.Message, chunkSize int) []domain.Chunk {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	var chunks []domain.Chunk
	for start := 0; start < len(messages); start += chunkSize {
		end := start + chunkSize
		if end > len(messages) {
			end = len(messages)
		}
		group := messages[start:end]

		var lines []string
		for _, m := range group {
			if m.Content == "" {
				continue
			}
			lines = append(lines, fmt.Sprintf("[%s] %s: %s", m.Date(), m.Sender, m.Content))
		}

		chunks = append(chunks, domain.Chunk{
			ID:           start / chunkSize,
			Text:         strings.Join(lines, "\n"),
			Messages:     group,
			StartDate:    group[0].Date(),
			EndDate:      group[len(group)-1].Date(),
			MessageCount: len(group),
		})
	}
	return chunks
}
