package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jdvalen/recuerdo/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	path    string
	writeMu sync.Mutex // serializes bulk writes to avoid SQLITE_BUSY
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db, path: dbPath}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS index_meta (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		model TEXT NOT NULL,
		dimension INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chunks (
		chunk_id INTEGER PRIMARY KEY,
		text TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		message_count INTEGER NOT NULL,
		messages_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS vectors (
		chunk_id INTEGER PRIMARY KEY REFERENCES chunks(chunk_id),
		embedding BLOB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS answers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		question TEXT NOT NULL,
		answer TEXT NOT NULL,
		correct INTEGER NOT NULL,
		attempts INTEGER NOT NULL,
		skipped INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_answers_session ON answers(session_id);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// LoadIndex returns the cached chunks and vectors for the given model.
func (s *SQLiteStore) LoadIndex(ctx context.Context, model string, dim int) ([]domain.Chunk, [][]float32, error) {
	var cachedModel string
	var cachedDim int
	err := s.db.QueryRowContext(ctx, `SELECT model, dimension FROM index_meta WHERE id = 1`).
		Scan(&cachedModel, &cachedDim)
	if err == sql.ErrNoRows {
		return nil, nil, ErrNoCache
	}
	if err != nil {
		return nil, nil, fmt.Errorf("scan index meta: %w", err)
	}
	if cachedModel != model || cachedDim != dim {
		slog.Warn("Cached index does not match configured model, ignoring cache",
			"cached_model", cachedModel, "cached_dim", cachedDim,
			"model", model, "dim", dim)
		return nil, nil, ErrNoCache
	}

	query := `
		SELECT c.chunk_id, c.text, c.start_date, c.end_date, c.message_count,
		       c.messages_json, v.embedding
		FROM chunks c JOIN vectors v ON v.chunk_id = c.chunk_id
		ORDER BY c.chunk_id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("query cached index: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close index rows", "error", closeErr)
		}
	}()

	var chunks []domain.Chunk
	var vectors [][]float32
	for rows.Next() {
		var chunk domain.Chunk
		var messagesJSON string
		var blob []byte

		if err := rows.Scan(
			&chunk.ID, &chunk.Text, &chunk.StartDate, &chunk.EndDate,
			&chunk.MessageCount, &messagesJSON, &blob,
		); err != nil {
			return nil, nil, fmt.Errorf("scan chunk row: %w", err)
		}
		if err := json.Unmarshal([]byte(messagesJSON), &chunk.Messages); err != nil {
			return nil, nil, fmt.Errorf("decode chunk %d messages: %w", chunk.ID, err)
		}

		vector, err := decodeVector(blob, dim)
		if err != nil {
			return nil, nil, fmt.Errorf("decode chunk %d vector: %w", chunk.ID, err)
		}

		chunks = append(chunks, chunk)
		vectors = append(vectors, vector)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate cached index: %w", err)
	}

	if len(chunks) == 0 {
		return nil, nil, ErrNoCache
	}
	return chunks, vectors, nil
}

// SaveIndex atomically replaces the cached index.
func (s *SQLiteStore) SaveIndex(ctx context.Context, model string, dim int, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector count mismatch: %d chunks, %d vectors", len(chunks), len(vectors))
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin index save: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, table := range []string{"vectors", "chunks", "index_meta"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO index_meta (id, model, dimension, created_at) VALUES (1, ?, ?, ?)`,
		model, dim, time.Now().Unix(),
	); err != nil {
		return fmt.Errorf("insert index meta: %w", err)
	}

	chunkStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (chunk_id, text, start_date, end_date, message_count, messages_json)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer chunkStmt.Close()

	vectorStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO vectors (chunk_id, embedding) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare vector insert: %w", err)
	}
	defer vectorStmt.Close()

	for i, chunk := range chunks {
		messagesJSON, err := json.Marshal(chunk.Messages)
		if err != nil {
			return fmt.Errorf("encode chunk %d messages: %w", chunk.ID, err)
		}
		if _, err := chunkStmt.ExecContext(ctx,
			chunk.ID, chunk.Text, chunk.StartDate, chunk.EndDate,
			chunk.MessageCount, string(messagesJSON),
		); err != nil {
			return fmt.Errorf("insert chunk %d: %w", chunk.ID, err)
		}
		if _, err := vectorStmt.ExecContext(ctx, chunk.ID, encodeVector(vectors[i])); err != nil {
			return fmt.Errorf("insert vector %d: %w", chunk.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit index save: %w", err)
	}
	return nil
}

// AppendAnswer archives one answer event.
func (s *SQLiteStore) AppendAnswer(ctx context.Context, rec *domain.AnswerRecord) error {
	query := `
		INSERT INTO answers (session_id, question, answer, correct, attempts, skipped, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		rec.SessionID, rec.Question, rec.Answer,
		rec.Correct, rec.Attempts, rec.Skipped,
		rec.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("append answer: %w", err)
	}
	return nil
}

// IndexSizeBytes returns the on-disk size of the cache database.
func (s *SQLiteStore) IndexSizeBytes() int64 {
	info, err := os.Stat(s.path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// encodeVector packs a float32 vector as little-endian bytes.
func encodeVector(vector []float32) []byte {
	buf := make([]byte, 4*len(vector))
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(blob []byte, dim int) ([]float32, error) {
	if len(blob) != 4*dim {
		return nil, fmt.Errorf("embedding blob is %d bytes, expected %d", len(blob), 4*dim)
	}
	vector := make([]float32, dim)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vector, nil
}
