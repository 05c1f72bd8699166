package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI    string
	DBName      string
	Port        string
	GinMode     string
	CORSOrigins []string

	// Upload limits
	MaxFileSize int64
	MaxBatch    int

	// Chunking
	ChunkWindowSize int
	ChunkOverlap    int

	// Vector store persistence
	SnapshotPath     string
	SnapshotInterval int // minutes

	// Retrieval tuning
	SearchTopK int
	RerankTopK int
	PageRange  int

	// Redis Configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Sessions
	SessionTTLDays int
	BcryptCost     int

	// Rate limiting
	RateLimitReqs   int
	RateLimitWindow int

	// Embeddings configuration
	EmbeddingsProvider    string // "huggingface" (default), "google"
	HFAPIKey              string
	HFInferenceURL        string
	EmbeddingModels       []string
	GeminiAPIKey          string
	GoogleEmbeddingsModel string

	// Reranker
	RerankerURL   string
	RerankerModel string

	// LLM (Groq-compatible chat completions)
	GroqAPIKey     string
	GroqAPIURL     string
	LLMModel       string
	LLMFallbacks   []string
	LLMTemperature float64
	LLMMaxTokens   int

	// Blob storage for original PDFs
	BlobEndpoint  string
	BlobBucket    string
	BlobAccessKey string
	BlobSecretKey string
	BlobUseSSL    bool
	BlobLocalDir  string

	// SMTP Configuration
	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
	SMTPFrom string

	// OTP password reset
	OTPTTLMinutes  int
	OTPMaxPerHour  int
	AdminEmails    []string
	FileStorageDir string
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017/ragviet"),
		DBName:      getEnv("MONGODB_DB_NAME", "ragviet"),
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),

		MaxFileSize: getEnvInt64("MAX_FILE_SIZE", 52428800), // 50MB per PDF
		MaxBatch:    getEnvInt("MAX_UPLOAD_BATCH", 10),

		ChunkWindowSize: getEnvInt("CHUNK_WINDOW_SIZE", 400),
		ChunkOverlap:    getEnvInt("CHUNK_OVERLAP", 100),

		SnapshotPath:     getEnv("VECTOR_SNAPSHOT_PATH", "./storage/vector_store.json.gz"),
		SnapshotInterval: getEnvInt("VECTOR_SNAPSHOT_INTERVAL", 15),

		SearchTopK: getEnvInt("SEARCH_TOP_K", 30),
		RerankTopK: getEnvInt("RERANK_TOP_K", 15),
		PageRange:  getEnvInt("ADJACENT_PAGE_RANGE", 2),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		SessionTTLDays: getEnvInt("SESSION_TTL_DAYS", 7),
		BcryptCost:     getEnvInt("BCRYPT_COST", 12),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		EmbeddingsProvider: getEnv("EMBEDDINGS_PROVIDER", "huggingface"),
		HFAPIKey:           getEnv("HF_API_KEY", ""),
		HFInferenceURL:     getEnv("HF_INFERENCE_URL", "https://api-inference.huggingface.co/pipeline/feature-extraction"),
		EmbeddingModels: strings.Split(getEnv("EMBEDDING_MODELS",
			"keepitreal/vietnamese-sbert,VoVanPhuc/sup-SimCSE-VietNamese-phobert-base,sentence-transformers/paraphrase-multilingual-mpnet-base-v2"), ","),
		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		GoogleEmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),

		RerankerURL:   getEnv("RERANKER_URL", ""),
		RerankerModel: getEnv("RERANKER_MODEL", "BAAI/bge-reranker-base"),

		GroqAPIKey:     getEnv("GROQ_API_KEY", ""),
		GroqAPIURL:     getEnv("GROQ_API_URL", "https://api.groq.com/openai/v1/chat/completions"),
		LLMModel:       getEnv("LLM_MODEL", "llama-3.3-70b-versatile"),
		LLMFallbacks:   strings.Split(getEnv("LLM_FALLBACK_MODELS", "mistral-saba-24b,llama-3.1-8b-instant,llama-3.1-70b-versatile"), ","),
		LLMTemperature: getEnvFloat64("LLM_TEMPERATURE", 0.1),
		LLMMaxTokens:   getEnvInt("LLM_MAX_TOKENS", 4096),

		BlobEndpoint:  getEnv("BLOB_ENDPOINT", ""),
		BlobBucket:    getEnv("BLOB_BUCKET", "ragviet"),
		BlobAccessKey: getEnv("BLOB_ACCESS_KEY", ""),
		BlobSecretKey: getEnv("BLOB_SECRET_KEY", ""),
		BlobUseSSL:    getEnvBool("BLOB_USE_SSL", true),
		BlobLocalDir:  getEnv("BLOB_LOCAL_DIR", "./storage/blobs"),

		SMTPHost: getEnv("SMTP_HOST", ""),
		SMTPPort: getEnv("SMTP_PORT", "587"),
		SMTPUser: getEnv("SMTP_USER", ""),
		SMTPPass: getEnv("SMTP_PASS", ""),
		SMTPFrom: getEnv("SMTP_FROM", ""),

		OTPTTLMinutes:  getEnvInt("OTP_TTL_MINUTES", 15),
		OTPMaxPerHour:  getEnvInt("OTP_MAX_PER_HOUR", 3),
		AdminEmails:    strings.Split(getEnv("ADMIN_EMAILS", ""), ","),
		FileStorageDir: getEnv("FILE_STORAGE_DIR", "./storage"),
	}

	// Keep the chunk window inside the range the retrieval pipeline is tuned for
	if cfg.ChunkWindowSize < 300 {
		cfg.ChunkWindowSize = 300
	}
	if cfg.ChunkWindowSize > 500 {
		cfg.ChunkWindowSize = 500
	}

	// Validate required fields
	if cfg.GroqAPIKey == "" {
		return nil, fmt.Errorf("GROQ_API_KEY is required - set it in .env file")
	}

	if cfg.EmbeddingsProvider == "huggingface" && cfg.HFAPIKey == "" {
		return nil, fmt.Errorf("HF_API_KEY is required for huggingface embeddings - set it in .env file")
	}

	if cfg.EmbeddingsProvider == "google" && cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required for google embeddings - set it in .env file")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
