package domain

// Chunk is a fixed-size contiguous group of messages treated as one
// retrievable unit. Chunks are created once at index-build time and
// never mutated; identical input always yields identical chunk text so
// cached embeddings stay valid.
type Chunk struct {
	ID           int       `json:"chunk_id"`
	Text         string    `json:"text"`
	Messages     []Message `json:"messages"`
	StartDate    string    `json:"start_date"`
	EndDate      string    `json:"end_date"`
	MessageCount int       `json:"message_count"`
}

// OverlapsDateRange reports whether the chunk's date range intersects
// [start, end]. Dates are YYYY-MM-DD strings, which compare correctly
// lexicographically.
func (c Chunk) OverlapsDateRange(start, end string) bool {
	return c.EndDate >= start && c.StartDate <= end
}

// HasSender reports whether any message in the chunk was written by the
// given sender.
func (c Chunk) HasSender(sender string) bool {
	for _, m := range c.Messages {
		if m.Sender == sender {
			return true
		}
	}
	return false
}

// SearchResult is one ranked hit from a nearest-neighbor query.
// Results are ephemeral and never persisted.
type SearchResult struct {
	Chunk    Chunk   `json:"chunk"`
	Distance float32 `json:"distance"`
	Rank     int     `json:"rank"`
}
