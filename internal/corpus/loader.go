// Package corpus loads the exported message archive and groups it into
// retrievable chunks.
package corpus

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/jdvalen/recuerdo/internal/domain"
)

// messageFile mirrors one message_*.json export file.
type messageFile struct {
	Messages []domain.Message `json:"messages"`
}

// Load reads every message_*.json file under dir and returns the merged
// messages sorted ascending by timestamp. Unreadable files are logged
// and skipped; an empty aggregate is an error because the quiz cannot
// run without source data.
func Load(dir string) ([]domain.Message, error) {
	pattern := filepath.Join(dir, "message_*.json")
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob corpus files: %w", err)
	}
	sort.Strings(files)

	var messages []domain.Message
	for _, path := range files {
		fileMessages, err := loadFile(path)
		if err != nil {
			slog.Warn("Skipping unreadable corpus file", "file", filepath.Base(path), "error", err)
			continue
		}
		messages = append(messages, fileMessages...)
	}

	if len(messages) == 0 {
		return nil, fmt.Errorf("no messages loaded from %s", dir)
	}

	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].TimestampMS < messages[j].TimestampMS
	})

	slog.Info("Corpus loaded", "files", len(files), "messages", len(messages))
	return messages, nil
}

func loadFile(path string) ([]domain.Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var file messageFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse file: %w", err)
	}
	return file.Messages, nil
}
