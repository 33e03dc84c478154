package config

import (
	"os"
	"strconv"
	"time"

	// this will automatically load your .env file:
	_ "github.com/joho/godotenv/autoload"
)

type Config struct {
	Logs       LogConfig
	DB         PostgresConfig
	Completion CompletionConfig
	RateLimit  RateLimitConfig
	Stripe     StripeConfig
}

type LogConfig struct {
	Style string
	Level string
}

type PostgresConfig struct {
	Username string
	Password string
	URL      string
	Port     string
}

// CompletionConfig configures the downstream AI completion service.
type CompletionConfig struct {
	APIKey         string
	BaseURL        string // optional OpenAI-compatible endpoint override
	Model          string
	RequestTimeout time.Duration // per-call timeout; a timed-out call is a per-form failure
	RequestsPerSec float64       // client-side smoothing toward the downstream
}

// RateLimitConfig configures the batch-process admission window.
type RateLimitConfig struct {
	Window      time.Duration
	MaxCalls    int // FREE plan submissions per window
	ProMaxCalls int // PRO plan submissions per window
	FailOpen    bool
}

type StripeConfig struct {
	SecretKey         string
	PriceIDProMonthly string
	FrontendURL       string
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		Logs: LogConfig{
			Style: os.Getenv("LOG_STYLE"),
			Level: os.Getenv("LOG_LEVEL"),
		},
		DB: PostgresConfig{
			Username: os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PWD"),
			URL:      os.Getenv("POSTGRES_URL"),
			Port:     os.Getenv("POSTGRES_PORT"),
		},
		Completion: CompletionConfig{
			APIKey:         os.Getenv("OPENAI_API_KEY"),
			BaseURL:        os.Getenv("OPENAI_BASE_URL"),
			Model:          envString("OPENAI_MODEL", "gpt-4o-mini"),
			RequestTimeout: time.Duration(envInt("COMPLETION_TIMEOUT_MS", 30000)) * time.Millisecond,
			RequestsPerSec: envFloat("COMPLETION_RPS", 5),
		},
		RateLimit: RateLimitConfig{
			Window:      time.Duration(envInt("RATE_LIMIT_WINDOW_MS", 60000)) * time.Millisecond,
			MaxCalls:    envInt("RATE_LIMIT_MAX_REQUESTS", 10),
			ProMaxCalls: envInt("RATE_LIMIT_PRO_MAX_REQUESTS", 60),
			FailOpen:    envBool("RATE_LIMIT_FAIL_OPEN", true),
		},
		Stripe: StripeConfig{
			SecretKey:         os.Getenv("STRIPE_SECRET_KEY"),
			PriceIDProMonthly: os.Getenv("STRIPE_PRICE_ID_PRO_MONTHLY"),
			FrontendURL:       os.Getenv("FRONTEND_URL"),
		},
	}

	return cfg, nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
