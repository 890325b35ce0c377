package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	JWTSecret   string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	GenerationBaseURL string
	GenerationAPIKey  string

	PollInterval     time.Duration
	MaxPollAttempts  int
	MaxRetries       int
	QueueActiveSlots int

	BaseCredits        int
	CreditUnitPriceUSD float64

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int

	WorkerStaleAfter    time.Duration
	WorkerClaimBatch    int
	WorkerSweepInterval time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		GenerationBaseURL: getEnv("GENERATION_BASE_URL", "https://api.vidforge.example.com/v1"),
		GenerationAPIKey:  os.Getenv("GENERATION_API_KEY"),

		PollInterval:     time.Second * time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 3)),
		MaxPollAttempts:  getEnvInt("MAX_POLL_ATTEMPTS", 60),
		MaxRetries:       getEnvInt("MAX_RETRIES", 2),
		QueueActiveSlots: getEnvInt("QUEUE_ACTIVE_SLOTS", 1),

		BaseCredits:        getEnvInt("BASE_CREDITS", 10),
		CreditUnitPriceUSD: getEnvFloat("CREDIT_UNIT_PRICE_USD", 0.05),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),

		WorkerStaleAfter:    time.Second * time.Duration(getEnvInt("WORKER_STALE_AFTER_SECONDS", 300)),
		WorkerClaimBatch:    getEnvInt("WORKER_CLAIM_BATCH", 10),
		WorkerSweepInterval: time.Second * time.Duration(getEnvInt("WORKER_SWEEP_INTERVAL_SECONDS", 30)),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
