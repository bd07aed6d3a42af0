// Package history archives answer events as per-session NDJSON files.
package history

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Event is one answer event in a quiz session.
type Event struct {
	SessionID string    `json:"session_id"`
	UserName  string    `json:"user_name,omitempty"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Correct   bool      `json:"correct"`
	Attempts  int       `json:"attempts"`
	Skipped   bool      `json:"skipped,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Logger records answer events.
type Logger interface {
	// Log enqueues an event. It never blocks the quiz flow; events are
	// dropped with a warning when the queue is full.
	Log(event Event)

	// Close flushes pending events and releases resources.
	Close() error
}

// Config controls NDJSON answer logging.
type Config struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// NewLogger creates a logger per the config. Disabled logging returns a
// noop implementation.
func NewLogger(cfg Config, logger *slog.Logger) (Logger, error) {
	if !cfg.Enabled {
		return NoopLogger{}, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create answer log directory: %w", err)
	}

	l := &fileLogger{
		dir:    cfg.Dir,
		queue:  make(chan Event, cfg.QueueSize),
		done:   make(chan struct{}),
		logger: logger,
	}
	go l.run()
	return l, nil
}

// NoopLogger discards all events.
type NoopLogger struct{}

func (NoopLogger) Log(Event) {}

func (NoopLogger) Close() error { return nil }

type fileLogger struct {
	dir    string
	queue  chan Event
	done   chan struct{}
	logger *slog.Logger

	closeOnce sync.Once
}

func (l *fileLogger) Log(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case l.queue <- event:
	default:
		l.logger.Warn("answer log queue full, dropping event", "session_id", event.SessionID)
	}
}

func (l *fileLogger) Close() error {
	l.closeOnce.Do(func() {
		close(l.queue)
		<-l.done
	})
	return nil
}

func (l *fileLogger) run() {
	defer close(l.done)
	for event := range l.queue {
		if err := l.write(event); err != nil {
			l.logger.Warn("failed to write answer log event",
				"session_id", event.SessionID, "error", err)
		}
	}
}

func (l *fileLogger) write(event Event) error {
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	path := filepath.Join(l.dir, event.SessionID+".ndjson")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open session log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}
