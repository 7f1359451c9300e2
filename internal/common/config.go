package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Vector    VectorConfig
	LLM       LLMConfig
	Gemini    GeminiConfig
	Messaging MessagingConfig
	Ingest    IngestConfig
	Uploads   UploadConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
	RunMigrations    bool
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr        string
	GRPCAddr        string
	ShutdownTimeout time.Duration
	MaxUploadBytes  int64
}

// VectorConfig holds the local vector index configuration
type VectorConfig struct {
	Path     string
	TopK     int
	Provider string // openai | gemini
}

// LLMConfig holds the primary (OpenAI-compatible) model configuration
type LLMConfig struct {
	Model          string
	EmbeddingModel string
	APIKey         string
	BaseURL        string
	Temperature    float32
	Timeout        time.Duration
}

// GeminiConfig holds the fallback model configuration
type GeminiConfig struct {
	APIKey         string
	Model          string
	EmbeddingModel string
}

// MessagingConfig holds RabbitMQ configuration. An empty URL disables publishing.
type MessagingConfig struct {
	URL      string
	Exchange string
	Queue    string
}

// IngestConfig holds the CSV drop-folder configuration. An empty dir disables the watcher.
type IngestConfig struct {
	WatchDir       string
	Debounce       time.Duration
	ReindexWorkers int
	ReindexQueue   int
}

// UploadConfig holds where event photos are written
type UploadConfig struct {
	Dir string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
			RunMigrations:    getEnvAsBool("RUN_MIGRATIONS", true),
		},
		Server: ServerConfig{
			HTTPAddr:        getEnv("HTTP_ADDR", ":8000"),
			GRPCAddr:        getEnv("GRPC_ADDR", ":8081"),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
			MaxUploadBytes:  int64(getEnvAsInt("MAX_UPLOAD_MB", 16)) << 20,
		},
		Vector: VectorConfig{
			Path:     getEnv("VECTOR_DB_PATH", "./data/vectors.db"),
			TopK:     getEnvAsInt("RAG_TOP_K", 5),
			Provider: strings.ToLower(getEnv("EMBEDDING_PROVIDER", "openai")),
		},
		LLM: LLMConfig{
			Model:          getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			EmbeddingModel: getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			APIKey:         getEnv("OPENAI_API_KEY", ""),
			BaseURL:        getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Temperature:    getEnvAsFloat32("OPENAI_TEMPERATURE", 0.0),
			Timeout:        getEnvAsDuration("OPENAI_TIMEOUT", 45*time.Second),
		},
		Gemini: GeminiConfig{
			APIKey:         getEnv("GEMINI_API_KEY", ""),
			Model:          getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			EmbeddingModel: getEnv("GEMINI_EMBEDDING_MODEL", "gemini-embedding-001"),
		},
		Messaging: MessagingConfig{
			URL:      getEnv("RABBITMQ_URL", ""),
			Exchange: getEnv("RABBITMQ_EXCHANGE", "cryotrace.events"),
			Queue:    getEnv("RABBITMQ_REINDEX_QUEUE", "cryotrace.reindex"),
		},
		Ingest: IngestConfig{
			WatchDir:       getEnv("INGEST_WATCH_DIR", ""),
			Debounce:       getEnvAsDuration("INGEST_DEBOUNCE", 500*time.Millisecond),
			ReindexWorkers: getEnvAsInt("REINDEX_WORKERS", 2),
			ReindexQueue:   getEnvAsInt("REINDEX_QUEUE_SIZE", 64),
		},
		Uploads: UploadConfig{
			Dir: getEnv("UPLOAD_DIR", "./uploads"),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// HasLLM reports whether any completion provider is configured.
func (c *Config) HasLLM() bool {
	return c.LLM.APIKey != "" || c.Gemini.APIKey != ""
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if !c.HasLLM() {
		return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY or GEMINI_API_KEY is required", ErrInvalidInput)
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Vector.TopK <= 0 {
		return NewAppError("CONFIG_ERROR", "RAG_TOP_K must be positive", ErrInvalidInput)
	}
	switch c.Vector.Provider {
	case "openai":
		if c.LLM.APIKey == "" {
			return NewAppError("CONFIG_ERROR", "EMBEDDING_PROVIDER=openai requires OPENAI_API_KEY", ErrInvalidInput)
		}
	case "gemini":
		if c.Gemini.APIKey == "" {
			return NewAppError("CONFIG_ERROR", "EMBEDDING_PROVIDER=gemini requires GEMINI_API_KEY", ErrInvalidInput)
		}
	default:
		return NewAppError("CONFIG_ERROR", "EMBEDDING_PROVIDER must be openai or gemini", ErrInvalidInput)
	}
	return nil
}
