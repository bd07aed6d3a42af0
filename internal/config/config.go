// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port           string
	AllowedOrigins []string

	CorpusDir   string
	CacheDBPath string

	OpenAIAPIKey   string
	EmbeddingModel string
	EmbeddingDim   int
	ChatModel      string
	RequestTimeout time.Duration

	ChunkSize      int
	ForceRebuild   bool
	TotalQuestions int
	MaxAttempts    int
	SessionTTL     time.Duration

	Final     FinalLocation
	AnswerLog AnswerLogConfig
}

// FinalLocation is the place revealed when the quiz is won.
type FinalLocation struct {
	Latitude  float64
	Longitude float64
	Address   string
}

// AnswerLogConfig controls NDJSON answer logging.
type AnswerLogConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("ANSWER_LOG_QUEUE_SIZE", 256)
	if queueSize <= 0 {
		queueSize = 256
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "*")),

		CorpusDir:   getEnv("CORPUS_DIR", "./data/corpus"),
		CacheDBPath: getEnv("CACHE_DB_PATH", "./data/index.db"),

		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingDim:   getEnvInt("EMBEDDING_DIM", 1536),
		ChatModel:      getEnv("CHAT_MODEL", "gpt-4o-mini"),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 60*time.Second),

		ChunkSize:      getEnvInt("CHUNK_SIZE", 5),
		ForceRebuild:   getEnvBool("FORCE_REBUILD", false),
		TotalQuestions: getEnvInt("TOTAL_QUESTIONS", 7),
		MaxAttempts:    getEnvInt("MAX_ATTEMPTS", 3),
		SessionTTL:     getEnvDuration("SESSION_TTL", 24*time.Hour),

		Final: FinalLocation{
			Latitude:  getEnvFloat("FINAL_LATITUDE", 0),
			Longitude: getEnvFloat("FINAL_LONGITUDE", 0),
			Address:   getEnv("FINAL_ADDRESS", ""),
		},
		AnswerLog: AnswerLogConfig{
			Enabled:   getEnvBool("ANSWER_LOG_ENABLED", true),
			Dir:       getEnv("ANSWER_LOG_DIR", "./data/logs/answers"),
			QueueSize: queueSize,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.CorpusDir == "" {
		return fmt.Errorf("CORPUS_DIR cannot be empty")
	}
	if c.CacheDBPath == "" {
		return fmt.Errorf("CACHE_DB_PATH cannot be empty")
	}
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY cannot be empty")
	}
	if c.EmbeddingDim <= 0 {
		return fmt.Errorf("EMBEDDING_DIM must be > 0")
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be > 0")
	}
	if c.TotalQuestions <= 0 {
		return fmt.Errorf("TOTAL_QUESTIONS must be > 0")
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("MAX_ATTEMPTS must be > 0")
	}
	if c.AnswerLog.Enabled && c.AnswerLog.Dir == "" {
		return fmt.Errorf("ANSWER_LOG_DIR cannot be empty when answer logging is enabled")
	}
	return nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
