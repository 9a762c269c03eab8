package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all process configuration.
type Config struct {
	Telegram TelegramConfig
	Google   GoogleConfig
	Gemini   GeminiConfig
	Database DatabaseConfig
	Receipts ReceiptConfig
	Journal  JournalConfig
	Server   ServerConfig
	LogLevel string
}

type TelegramConfig struct {
	Token string
	// Workers is the number of per-chat serialized handlers.
	Workers     int
	QueueSize   int
	PollTimeout int
	// PublishTimeout is how long an update waits for a busy chat's worker
	// before it is dropped.
	PublishTimeout time.Duration
	EventTimeout   time.Duration
	Debug          bool
}

type GoogleConfig struct {
	CredentialsFile       string
	SheetsRequestsPerMin  int
	ServiceAccountDisplay string
}

type GeminiConfig struct {
	// Free-form extraction is disabled when APIKey is empty.
	APIKey string
	Model  string
}

type DatabaseConfig struct {
	// An empty URL keeps chat bindings in memory.
	URL string
}

type ReceiptConfig struct {
	LookupURL string
	// Receipt photos are archived only when Bucket is set.
	Bucket string
}

type JournalConfig struct {
	// The journal is disabled when Project is empty.
	Project string
	Dataset string
	Table   string
}

type ServerConfig struct {
	Port           int
	MetricsEnabled bool
	// AdminToken protects the /api/ endpoints when set.
	AdminToken string
}

// Load reads configuration from the environment, after loading .env when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Telegram: TelegramConfig{
			Token:        getEnv("TELEGRAM_BOT_TOKEN", ""),
			Workers:        getEnvAsInt("WORKERS", 8),
			QueueSize:      getEnvAsInt("QUEUE_SIZE", 256),
			PollTimeout:    getEnvAsInt("TELEGRAM_POLL_TIMEOUT", 60),
			PublishTimeout: getEnvAsDuration("QUEUE_PUBLISH_TIMEOUT", 5*time.Second),
			EventTimeout:   getEnvAsDuration("EVENT_TIMEOUT", 2*time.Minute),
			Debug:          getEnvAsBool("TELEGRAM_DEBUG", false),
		},
		Google: GoogleConfig{
			CredentialsFile:       getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", getEnv("GOOGLE_APPLICATION_CREDENTIALS", "")),
			SheetsRequestsPerMin:  getEnvAsInt("SHEETS_REQUESTS_PER_MINUTE", 60),
			ServiceAccountDisplay: getEnv("SERVICE_ACCOUNT_EMAIL", ""),
		},
		Gemini: GeminiConfig{
			APIKey: getEnv("GEMINI_API_KEY", ""),
			Model:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Receipts: ReceiptConfig{
			LookupURL: getEnv("RECEIPT_LOOKUP_URL", "https://consumer.oofd.kz/api/tickets/get-by-url"),
			Bucket:    getEnv("RECEIPT_BUCKET", getEnv("GCS_BUCKET", "")),
		},
		Journal: JournalConfig{
			Project: getEnv("BQ_PROJECT", ""),
			Dataset: getEnv("BQ_DATASET", "telegrind"),
			Table:   getEnv("BQ_TABLE", "record_events"),
		},
		Server: ServerConfig{
			Port:           getEnvAsInt("HTTP_PORT", 8080),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
			AdminToken:     getEnv("ADMIN_TOKEN", ""),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if cfg.Telegram.Token == "" {
		return nil, errors.New("TELEGRAM_BOT_TOKEN is required")
	}
	if cfg.Google.CredentialsFile == "" {
		return nil, errors.New("GOOGLE_SERVICE_ACCOUNT_FILE is required")
	}
	if cfg.Telegram.Workers < 1 {
		cfg.Telegram.Workers = 1
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
