// Package domain contains core domain types for the recuerdo quiz server.
package domain

import (
	"time"
)

// Message is a single entry from the exported conversation archive.
// Messages are read-only source data; they are never mutated after load.
type Message struct {
	Sender      string `json:"sender_name"`
	Content     string `json:"content"`
	TimestampMS int64  `json:"timestamp_ms"`
}

// Time returns the message timestamp in UTC.
func (m Message) Time() time.Time {
	return time.UnixMilli(m.TimestampMS).UTC()
}

// Date returns the message date formatted as YYYY-MM-DD, or "unknown"
// for messages without a timestamp.
func (m Message) Date() string {
	if m.TimestampMS == 0 {
		return "unknown"
	}
	return m.Time().Format("2006-01-02")
}
