package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Port           string
	AllowedOrigins []string

	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	DBSSLMode  string

	GeminiAPIKey string
	GeminiModel  string
	Auth0Domain  string

	ArxivBaseURL         string
	ArxivRequestInterval time.Duration
	ArxivMaxRetries      int
	ArxivInitialBackoff  time.Duration
	ArxivLatestPageSize  int

	EnrichmentWorkers   int
	EnrichmentQueueSize int
	PDFFetchTimeout     time.Duration
	PDFMaxBytes         int64

	LogLevel  string
	LogFormat string
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found")
	}

	v := viper.New()
	v.SetDefault("PORT", "3000")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("GEMINI_MODEL", "gemini-1.5-flash")
	v.SetDefault("ARXIV_BASE_URL", "https://export.arxiv.org/api/query")
	v.SetDefault("ARXIV_REQUEST_INTERVAL", "3s")
	v.SetDefault("ARXIV_MAX_RETRIES", 3)
	v.SetDefault("ARXIV_INITIAL_BACKOFF", "1s")
	v.SetDefault("ARXIV_LATEST_PAGE_SIZE", 10)
	v.SetDefault("ENRICHMENT_WORKERS", 2)
	v.SetDefault("ENRICHMENT_QUEUE_SIZE", 64)
	v.SetDefault("PDF_FETCH_TIMEOUT", "60s")
	v.SetDefault("PDF_MAX_BYTES", 50<<20)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.AutomaticEnv()

	cfg := &Config{
		Port:           v.GetString("PORT"),
		AllowedOrigins: splitList(v.GetString("ALLOWED_ORIGINS")),

		DBHost:     v.GetString("DB_HOST"),
		DBUser:     v.GetString("DB_USER"),
		DBPassword: v.GetString("DB_PASSWORD"),
		DBName:     v.GetString("DB_NAME"),
		DBPort:     v.GetString("DB_PORT"),
		DBSSLMode:  v.GetString("DB_SSLMODE"),

		GeminiAPIKey: v.GetString("GOOGLE_AI_STUDIO_API_KEY"),
		GeminiModel:  v.GetString("GEMINI_MODEL"),
		Auth0Domain:  v.GetString("AUTH0_DOMAIN"),

		ArxivBaseURL:         v.GetString("ARXIV_BASE_URL"),
		ArxivRequestInterval: v.GetDuration("ARXIV_REQUEST_INTERVAL"),
		ArxivMaxRetries:      v.GetInt("ARXIV_MAX_RETRIES"),
		ArxivInitialBackoff:  v.GetDuration("ARXIV_INITIAL_BACKOFF"),
		ArxivLatestPageSize:  v.GetInt("ARXIV_LATEST_PAGE_SIZE"),

		EnrichmentWorkers:   v.GetInt("ENRICHMENT_WORKERS"),
		EnrichmentQueueSize: v.GetInt("ENRICHMENT_QUEUE_SIZE"),
		PDFFetchTimeout:     v.GetDuration("PDF_FETCH_TIMEOUT"),
		PDFMaxBytes:         v.GetInt64("PDF_MAX_BYTES"),

		LogLevel:  v.GetString("LOG_LEVEL"),
		LogFormat: v.GetString("LOG_FORMAT"),
	}
	if cfg.EnrichmentWorkers < 1 {
		return nil, fmt.Errorf("ENRICHMENT_WORKERS must be at least 1, got %d", cfg.EnrichmentWorkers)
	}
	if cfg.ArxivMaxRetries < 0 {
		return nil, fmt.Errorf("ARXIV_MAX_RETRIES must not be negative, got %d", cfg.ArxivMaxRetries)
	}
	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
