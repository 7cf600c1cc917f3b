package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// TelegramConfig configures the bot transport. An empty token disables it.
type TelegramConfig struct {
	Token       string
	PollTimeout int
	Debug       bool
}

// HTTPConfig configures the HTTP transport.
type HTTPConfig struct {
	Port    string
	Enabled bool
}

// AIConfig selects the inference engine and models for both pipeline phases.
type AIConfig struct {
	Engine         string // "gemini"|"openai"|"anthropic"
	GeminiAPIKey   string
	OpenAIAPIKey   string
	AnthropicKey   string
	DetectionModel string
	AnalysisModel  string
	RequestTimeout time.Duration
}

// RenderConfig holds the rasterization tuning knobs.
type RenderConfig struct {
	MaxThumbnailPages int
	LowDPI            int
	HighDPI           int
	JPEGQuality       int
	ColorMode         string // "rgb"|"gray"
}

// WorkerConfig bounds the render/inference pool.
type WorkerConfig struct {
	Concurrency int
	QueueSize   int
}

// SessionConfig defines where pending manual-override documents live.
type SessionConfig struct {
	Backend     string // "memory"|"redis"
	RedisURL    string
	KeyPrefix   string
	TTL         time.Duration
	BlobBackend string // "local"|"s3"
	BlobDir     string
	S3Bucket    string
	BlobPrefix  string
	BlobPass    string
}

// Config is the top-level configuration.
type Config struct {
	Logging  LoggingConfig
	Axiom    AxiomConfig
	Telegram TelegramConfig
	HTTP     HTTPConfig
	AI       AIConfig
	Render   RenderConfig
	Worker   WorkerConfig
	Session  SessionConfig
}

// FromEnv loads configuration from environment with sensible defaults.
// A .env file in the working directory is applied first when present.
func FromEnv() Config {
	_ = godotenv.Load()

	cfg := Config{}

	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", "logs/editorialbrief.log"),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_editorialbrief",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	cfg.Telegram = TelegramConfig{
		Token:       getEnv("TELEGRAM_BOT_TOKEN", ""),
		PollTimeout: parseInt(getEnv("TELEGRAM_POLL_TIMEOUT", "60"), 60),
		Debug:       parseBool(getEnv("TELEGRAM_DEBUG", "0")),
	}

	cfg.HTTP = HTTPConfig{
		Port:    getEnv("PORT", "8080"),
		Enabled: parseBool(getEnv("HTTP_ENABLED", "true")),
	}

	cfg.AI = AIConfig{
		Engine:         strings.ToLower(getEnv("AI_ENGINE", "gemini")),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		AnthropicKey:   getEnv("ANTHROPIC_API_KEY", ""),
		DetectionModel: getEnv("DETECTION_MODEL", ""),
		AnalysisModel:  getEnv("ANALYSIS_MODEL", ""),
		RequestTimeout: parseDuration(getEnv("AI_REQUEST_TIMEOUT", "180s"), 180*time.Second),
	}
	if cfg.AI.DetectionModel == "" {
		cfg.AI.DetectionModel = defaultModel(cfg.AI.Engine)
	}
	if cfg.AI.AnalysisModel == "" {
		cfg.AI.AnalysisModel = defaultModel(cfg.AI.Engine)
	}

	cfg.Render = RenderConfig{
		MaxThumbnailPages: parseInt(getEnv("MAX_THUMBNAIL_PAGES", "12"), 12),
		LowDPI:            parseInt(getEnv("LOW_DPI", "72"), 72),
		HighDPI:           parseInt(getEnv("HIGH_DPI", "300"), 300),
		JPEGQuality:       parseInt(getEnv("JPEG_QUALITY", "85"), 85),
		ColorMode:         strings.ToLower(getEnv("RENDER_COLOR_MODE", "rgb")),
	}

	cfg.Worker = WorkerConfig{
		Concurrency: parseInt(getEnv("WORKER_CONCURRENCY", "4"), 4),
		QueueSize:   parseInt(getEnv("WORKER_QUEUE_SIZE", "64"), 64),
	}

	cfg.Session = SessionConfig{
		Backend:     strings.ToLower(getEnv("SESSION_BACKEND", "memory")),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379"),
		KeyPrefix:   getEnv("SESSION_KEY_PREFIX", "brief"),
		TTL:         parseDuration(getEnv("SESSION_TTL", ""), 0),
		BlobBackend: strings.ToLower(getEnv("BLOB_BACKEND", "local")),
		BlobDir:     getEnv("BLOB_DIR", ""),
		S3Bucket:    getEnv("AWS_S3_BUCKET", ""),
		BlobPrefix:  getEnv("BLOB_PREFIX", "editorial_bot_files"),
		BlobPass:    getEnv("BLOB_PASSWORD", ""),
	}

	return cfg
}

// APIKey returns the key of the configured engine.
func (c AIConfig) APIKey() string {
	switch c.Engine {
	case "openai":
		return c.OpenAIAPIKey
	case "anthropic":
		return c.AnthropicKey
	default:
		return c.GeminiAPIKey
	}
}

func defaultModel(engine string) string {
	switch engine {
	case "openai":
		return "gpt-4.1-mini"
	case "anthropic":
		return "claude-sonnet-4-5"
	default:
		return "gemini-2.5-flash"
	}
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}
