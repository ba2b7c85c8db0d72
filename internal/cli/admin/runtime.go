// Package admin implements the tieplmd commands: serve, ingest and migrate.
package admin

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/RyanNg1403/tieplm/internal/config"
	"github.com/RyanNg1403/tieplm/internal/database"
	"github.com/RyanNg1403/tieplm/internal/openai"
	"github.com/RyanNg1403/tieplm/internal/repository"
	"github.com/RyanNg1403/tieplm/internal/search"
	"github.com/RyanNg1403/tieplm/internal/storage"
	"github.com/RyanNg1403/tieplm/internal/telemetry"
	"github.com/jackc/pgx/v5/pgxpool"
	gopenai "github.com/sashabaranov/go-openai"
)

// initTelemetry starts Sentry when SENTRY_DSN is set.
func initTelemetry() func() {
	dsn := os.Getenv("SENTRY_DSN")
	if dsn == "" {
		return func() {}
	}

	environment := os.Getenv("ENVIRONMENT")
	if environment == "" {
		environment = "development"
	}

	// Default to 10% sampling in production, 100% in development
	sampleRate := 0.1
	if environment == "development" {
		sampleRate = 1.0
	}

	shutdown, err := telemetry.Init(telemetry.Config{
		DSN:              dsn,
		Environment:      environment,
		TracesSampleRate: sampleRate,
	})
	if err != nil {
		log.Printf("telemetry init failed (continuing without tracing): %v", err)
		return func() {}
	}
	return shutdown
}

func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	pool, err := database.NewPool(ctx, database.Config{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DatabaseMaxConn,
	})
	if err != nil {
		return nil, err
	}
	log.Println("connected to database")
	return pool, nil
}

func applyMigrations(cfg *config.Config) error {
	if _, err := database.Migrate(cfg.DatabaseURL, cfg.MigrationsDir, 0); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func newLLMClient(cfg *config.Config) (*openai.Client, error) {
	if !cfg.HasOpenAI() {
		return nil, fmt.Errorf("%s_OPENAI_API_KEY is required", config.EnvPrefix)
	}
	return openai.NewClientWithConfig(openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		BaseURL:             cfg.OpenAIBaseURL,
		EmbeddingModel:      gopenai.EmbeddingModel(cfg.EmbeddingModel),
		EmbeddingDimensions: cfg.EmbeddingDimensions,
		ChatModel:           cfg.ChatModel,
		RequestsPerSecond:   cfg.LLMRequestsPerSecond,
	}), nil
}

// newTranscriptSources reads local paths always and s3:// locations when
// S3 is configured.
func newTranscriptSources(ctx context.Context, cfg *config.Config) (storage.Sources, error) {
	sources := storage.Sources{}
	if !cfg.HasS3() {
		return sources, nil
	}

	client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          cfg.S3Bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		return sources, fmt.Errorf("failed to create S3 client: %w", err)
	}
	sources.S3 = storage.S3Source{Client: client}
	return sources, nil
}

// loadSnapshot builds the first lexical snapshot from the chunk store.
func loadSnapshot(ctx context.Context, pool *pgxpool.Pool) (*search.SnapshotHolder, error) {
	holder := search.NewSnapshotHolder(repository.NewChunkRepository(pool))
	if err := holder.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("failed to build lexical snapshot: %w", err)
	}
	return holder, nil
}
