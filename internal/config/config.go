// Package config loads runtime configuration from environment variables,
// with an optional .env file for local development.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full runtime configuration for both the API server and the
// worker. Every field maps to one environment variable; zero values mean the
// corresponding integration is disabled and the in-memory or deterministic
// fallback is used instead.
type Config struct {
	Port     string
	Env      string // "development" or "production"
	LogLevel string

	// Routing gate.
	AgentEnabled bool

	// Backing services. Empty values fall back to in-memory implementations.
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Web search (Exa).
	ExaAPIKey         string
	ExaMaxResults     int
	ExaCacheTTL       time.Duration
	ExaPricePerSearch float64
	ExaDailyBudget    float64

	// Domain reputation.
	VirusTotalKey   string
	SafeBrowsingKey string

	// Company verification.
	CompaniesHouseKey string
	ACRAEnabled       bool

	// LLM reasoning/classification. BaseURL supports OpenAI-compatible
	// gateways (Gemini via its OpenAI endpoint included).
	LLMAPIKey  string
	LLMBaseURL string
	LLMModel   string

	// Entity extraction.
	DefaultRegion string

	// Worker.
	WorkerEmbedded    bool
	WorkerConcurrency int

	// Retention sweeps, worker-side.
	RegistryArchiveAfter time.Duration
	ResultRetention      time.Duration

	// WebSocket origin policy, comma-separated.
	AllowedOrigins string
}

// Load reads .env (if present) and then the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("[Config] .env load failed", "error", err)
	}

	return &Config{
		Port:     envStr("PORT", "8080"),
		Env:      envStr("APP_ENV", "development"),
		LogLevel: envStr("LOG_LEVEL", "info"),

		AgentEnabled: envBool("ENABLE_MCP_AGENT", true),

		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),

		ExaAPIKey:         os.Getenv("EXA_API_KEY"),
		ExaMaxResults:     envInt("EXA_MAX_RESULTS", 10),
		ExaCacheTTL:       envSeconds("EXA_CACHE_TTL", 24*time.Hour),
		ExaPricePerSearch: envFloat("EXA_PRICE_PER_SEARCH", 0.005),
		ExaDailyBudget:    envFloat("EXA_DAILY_BUDGET", 10.0),

		VirusTotalKey:   os.Getenv("VIRUSTOTAL_API_KEY"),
		SafeBrowsingKey: os.Getenv("SAFE_BROWSING_API_KEY"),

		CompaniesHouseKey: os.Getenv("COMPANIES_HOUSE_API_KEY"),
		ACRAEnabled:       envBool("ACRA_LOOKUP_ENABLED", true),

		LLMAPIKey:  firstEnv("OPENAI_API_KEY", "GEMINI_API_KEY"),
		LLMBaseURL: os.Getenv("LLM_BASE_URL"),
		LLMModel:   os.Getenv("LLM_MODEL"),

		DefaultRegion: envStr("DEFAULT_PHONE_REGION", "US"),

		WorkerEmbedded:    envBool("WORKER_EMBEDDED", true),
		WorkerConcurrency: envInt("WORKER_CONCURRENCY", 4),

		RegistryArchiveAfter: envDuration("REGISTRY_ARCHIVE_AFTER", 365*24*time.Hour),
		ResultRetention:      envDuration("RESULT_RETENTION", 7*24*time.Hour),

		AllowedOrigins: os.Getenv("ALLOWED_ORIGINS"),
	}
}

// SlogLevel maps LogLevel onto a slog.Level, defaulting to Info.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("[Config] Invalid bool, using default", "key", key, "value", v)
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("[Config] Invalid int, using default", "key", key, "value", v)
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
		slog.Warn("[Config] Invalid float, using default", "key", key, "value", v)
		return fallback
	}
	return f
}

// envSeconds reads a duration given as a bare number of seconds, the
// documented form; Go duration syntax ("30m") is accepted as well.
func envSeconds(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("[Config] Invalid duration, using default", "key", key, "value", v)
		return fallback
	}
	return d
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("[Config] Invalid duration, using default", "key", key, "value", v)
		return fallback
	}
	return d
}
