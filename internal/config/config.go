package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every configuration variable.
const EnvPrefix = "TIEPLM"

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL     string `envconfig:"DATABASE_URL" required:"true"`
	DatabaseMaxConn int32  `envconfig:"DATABASE_MAX_CONNS" default:"10"`
	MigrationsDir   string `envconfig:"MIGRATIONS_DIR" default:"migrations"`

	OpenAIAPIKey         string  `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL        string  `envconfig:"OPENAI_BASE_URL"`
	ChatModel            string  `envconfig:"CHAT_MODEL" default:"gpt-4o-mini"`
	ContextModel         string  `envconfig:"CONTEXT_MODEL" default:"gpt-4o-mini"`
	EmbeddingModel       string  `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDimensions  int     `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`
	LLMRequestsPerSecond float64 `envconfig:"LLM_REQUESTS_PER_SECOND" default:"5"`

	ChunkWindowSeconds  float64 `envconfig:"CHUNK_WINDOW_SECONDS" default:"60"`
	ChunkOverlapSeconds float64 `envconfig:"CHUNK_OVERLAP_SECONDS" default:"10"`
	ContextTokenLimit   int     `envconfig:"CONTEXT_TOKEN_LIMIT" default:"200"`
	ContextTokenStep    int     `envconfig:"CONTEXT_TOKEN_STEP" default:"100"`
	EmbedBatchSize      int     `envconfig:"EMBED_BATCH_SIZE" default:"100"`
	IngestWorkers       int     `envconfig:"INGEST_WORKERS" default:"4"`
	StoreMaxAttempts    int     `envconfig:"STORE_MAX_ATTEMPTS" default:"3"`

	RetrievalInitialK  int  `envconfig:"RETRIEVAL_INITIAL_K" default:"150"`
	DenseK             int  `envconfig:"DENSE_K" default:"150"`
	LexicalK           int  `envconfig:"LEXICAL_K" default:"150"`
	RRFK               int  `envconfig:"RRF_K" default:"60"`
	FinalContextChunks int  `envconfig:"FINAL_CONTEXT_CHUNKS" default:"10"`
	QuizContextChunks  int  `envconfig:"QUIZ_CONTEXT_CHUNKS" default:"10"`
	EnableReranking    bool `envconfig:"ENABLE_RERANKING" default:"true"`

	RerankerURL   string `envconfig:"RERANKER_URL"`
	RerankerModel string `envconfig:"RERANKER_MODEL" default:"cross-encoder/ms-marco-MiniLM-L-6-v2"`

	SnapshotRefreshInterval time.Duration `envconfig:"SNAPSHOT_REFRESH_INTERVAL" default:"5m"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"tieplm-transcripts"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.ChunkWindowSeconds <= 0 {
		errs = append(errs, errors.New("CHUNK_WINDOW_SECONDS must be positive"))
	}
	if c.ChunkOverlapSeconds < 0 || c.ChunkOverlapSeconds >= c.ChunkWindowSeconds {
		errs = append(errs, errors.New("CHUNK_OVERLAP_SECONDS must be in [0, CHUNK_WINDOW_SECONDS)"))
	}
	if c.ContextTokenLimit <= 0 || c.ContextTokenStep < 0 {
		errs = append(errs, errors.New("CONTEXT_TOKEN_LIMIT must be positive and CONTEXT_TOKEN_STEP non-negative"))
	}
	if c.EmbedBatchSize <= 0 || c.IngestWorkers <= 0 || c.StoreMaxAttempts <= 0 {
		errs = append(errs, errors.New("EMBED_BATCH_SIZE, INGEST_WORKERS and STORE_MAX_ATTEMPTS must be positive"))
	}
	if c.DenseK <= 0 || c.LexicalK <= 0 || c.RRFK <= 0 {
		errs = append(errs, errors.New("DENSE_K, LEXICAL_K and RRF_K must be positive"))
	}
	if c.FinalContextChunks <= 0 || c.RetrievalInitialK < c.FinalContextChunks {
		errs = append(errs, errors.New("FINAL_CONTEXT_CHUNKS must be positive and at most RETRIEVAL_INITIAL_K"))
	}
	if c.QuizContextChunks <= 0 {
		errs = append(errs, errors.New("QUIZ_CONTEXT_CHUNKS must be positive"))
	}
	if c.EmbeddingDimensions <= 0 {
		errs = append(errs, errors.New("EMBEDDING_DIMENSIONS must be positive"))
	}
	if c.SnapshotRefreshInterval <= 0 {
		errs = append(errs, errors.New("SNAPSHOT_REFRESH_INTERVAL must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

// HasReranker reports whether a cross-encoder server should be used.
func (c *Config) HasReranker() bool {
	return c.EnableReranking && c.RerankerURL != ""
}
