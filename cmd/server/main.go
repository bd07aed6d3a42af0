// Recuerdo - personalized quiz server over a shared message archive.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	openai "github.com/sashabaranov/go-openai"

	"github.com/jdvalen/recuerdo/internal/api"
	"github.com/jdvalen/recuerdo/internal/config"
	"github.com/jdvalen/recuerdo/internal/corpus"
	"github.com/jdvalen/recuerdo/internal/history"
	"github.com/jdvalen/recuerdo/internal/middleware"
	"github.com/jdvalen/recuerdo/internal/quiz"
	"github.com/jdvalen/recuerdo/internal/rag"
	"github.com/jdvalen/recuerdo/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port,
		"embedding_model", cfg.EmbeddingModel, "chat_model", cfg.ChatModel)

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.CacheDBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	messages, err := corpus.Load(cfg.CorpusDir)
	if err != nil {
		slog.Error("Failed to load message corpus", "error", err, "dir", cfg.CorpusDir)
		os.Exit(1)
	}
	slog.Info("Corpus loaded", "messages", len(messages))

	openaiConfig := openai.DefaultConfig(cfg.OpenAIAPIKey)
	openaiConfig.HTTPClient = &http.Client{Timeout: cfg.RequestTimeout}
	client := openai.NewClientWithConfig(openaiConfig)

	embedder := rag.NewOpenAIEmbedder(client, cfg.EmbeddingModel, cfg.EmbeddingDim)
	index := rag.NewIndex(embedder, repo, cfg.ChunkSize)
	retriever := rag.NewRetriever(index)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The index builds in the background so health checks answer
	// immediately; quiz starts return 503 until it is ready.
	go func() {
		start := time.Now()
		if err := index.Build(ctx, messages, cfg.ForceRebuild); err != nil {
			slog.Error("Index build failed", "error", err)
			return
		}
		slog.Info("Index ready", "elapsed", time.Since(start))
	}()

	answerLogger, err := history.NewLogger(history.Config{
		Enabled:   cfg.AnswerLog.Enabled,
		Dir:       cfg.AnswerLog.Dir,
		QueueSize: cfg.AnswerLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize answer logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := answerLogger.Close(); closeErr != nil {
			slog.Error("Failed to close answer logger", "error", closeErr)
		}
	}()

	generator := quiz.NewGenerator(client, retriever, cfg.ChatModel)
	quizService := quiz.NewService(quiz.NewMemoryStore(), generator, repo, answerLogger, quiz.Options{
		DefaultTotalQuestions: cfg.TotalQuestions,
		MaxAttempts:           cfg.MaxAttempts,
		Reveal: quiz.Reveal{
			Latitude:  cfg.Final.Latitude,
			Longitude: cfg.Final.Longitude,
			Address:   cfg.Final.Address,
		},
	})

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	api.NewHandler(quizService, index, api.HealthInfo{
		APIKeySet:      cfg.OpenAIAPIKey != "",
		CorpusMessages: len(messages),
	}).RegisterRoutes(r)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * cfg.RequestTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Expire abandoned sessions periodically.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				quizService.CleanupExpired(cfg.SessionTTL)
			}
		}
	}()

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
