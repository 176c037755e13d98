package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Storage
	DBPath string

	// Chunking
	MaxChunkSize int

	// Recognition
	OCREngine    string
	OCRDPI       int
	OCRLanguages []string

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration

	// Rolling window of OCR latency stats
	StatsWindow time.Duration
}

// Load reads the configuration from the environment. A .env file in the
// working directory is applied first when present; real environment
// variables win.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("POLEDGER_API_KEY"),

		DBPath: envOr("DB_PATH", "poledger.db"),

		MaxChunkSize: envInt("MAX_CHUNK_SIZE", 10),

		OCREngine:    strings.ToLower(envOr("OCR_ENGINE", "auto")),
		OCRDPI:       envInt("OCR_DPI", 300),
		OCRLanguages: envList("OCR_LANGUAGES", []string{"eng"}),

		WorkerCount:  envInt("WORKER_COUNT", 2),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 100),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 104857600), // 100MB

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		StatsWindow: envDuration("STATS_WINDOW", 1*time.Hour),
	}

	if cfg.MaxChunkSize <= 0 {
		cfg.MaxChunkSize = 10
	}
	if cfg.OCRDPI <= 0 {
		cfg.OCRDPI = 300
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 104857600
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	if cfg.StatsWindow <= 0 {
		cfg.StatsWindow = 1 * time.Hour
	}

	return cfg
}

// Validate checks the settings the HTTP service needs.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("POLEDGER_API_KEY is required")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH is required")
	}
	switch c.OCREngine {
	case "auto", "tesseract", "textlayer":
	default:
		return fmt.Errorf("OCR_ENGINE must be auto, tesseract or textlayer, got %q", c.OCREngine)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// envList reads a comma or plus separated list, e.g. "eng+deu".
func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == '+' })
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
