package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all application-level settings.
//
// Business values that admins tune at runtime (rates, prompts, exchange rate,
// bank account) live in the app_settings table; the values here are only the
// defaults used to seed it and to fall back on when it cannot be read.
type Config struct {
	// Server
	ServerAddr string
	LogLevel   string
	LogPretty  bool // human-readable console output instead of JSON

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// PostgreSQL
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Auth
	JWTSecret  string
	JWTTTL     time.Duration
	AdminToken string // Bearer token for admin and cron endpoints

	// Jobs
	JobTTL         time.Duration // how long a reservation may stay open before the reclaimer refunds it
	ReclaimCron    string        // cron schedule (with seconds) for the expiry sweep
	ReclaimBatch   int
	ReclaimLockTTL time.Duration

	// Default credit rates, per file
	DefaultIStockPhotoRate int
	DefaultIStockVideoRate int
	DefaultAdobePhotoRate  int
	DefaultAdobeVideoRate  int

	// Processing defaults handed to the desktop client
	DefaultImageConcurrency int
	DefaultVideoConcurrency int
	DefaultCacheThreshold   int
	ConfigSealKey           string // base64, 32 bytes; shared with the desktop client

	// Top-up
	DefaultExchangeRate decimal.Decimal // credits per baht
	NewUserWindow       time.Duration   // accounts younger than this count as new users for promotions
	TopupRateLimit      int
	TopupRateWindow     time.Duration
	BankName            string
	BankAccountName     string
	BankAccountNumber   string

	// Slip verification (external)
	SlipVerifyURL     string
	SlipVerifyAPIKey  string
	SlipVerifyTimeout time.Duration

	// Settings
	SettingsCacheTTL time.Duration
	SettingsSeedFile string // optional YAML file with initial settings documents

	// Per-IP request limiter
	IPRateLimit float64 // requests per second
	IPRateBurst int
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is applied first if present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServerAddr:              envOr("SERVER_ADDR", ":8080"),
		LogLevel:                envOr("LOG_LEVEL", "info"),
		LogPretty:               envBoolOr("LOG_PRETTY", false),
		RedisAddr:               envOr("REDIS_ADDR", "localhost:6379"),
		RedisPassword:           envOr("REDIS_PASSWORD", ""),
		RedisDB:                 envIntOr("REDIS_DB", 0),
		DBHost:                  envOr("DB_HOST", "localhost"),
		DBPort:                  envOr("DB_PORT", "5432"),
		DBUser:                  envOr("DB_USER", "postgres"),
		DBPassword:              envOr("DB_PASSWORD", "postgres"),
		DBName:                  envOr("DB_NAME", "bigeye"),
		DBSSLMode:               envOr("DB_SSLMODE", "disable"),
		JWTSecret:               envOr("JWT_SECRET", ""),
		JWTTTL:                  envDurationOr("JWT_TTL", 30*24*time.Hour),
		AdminToken:              envOr("ADMIN_TOKEN", ""),
		JobTTL:                  envDurationOr("JOB_TTL", 2*time.Hour),
		ReclaimCron:             envOr("RECLAIM_CRON", "0 * * * * *"),
		ReclaimBatch:            envIntOr("RECLAIM_BATCH", 100),
		ReclaimLockTTL:          envDurationOr("RECLAIM_LOCK_TTL", 50*time.Second),
		DefaultIStockPhotoRate:  envIntOr("DEFAULT_ISTOCK_PHOTO_RATE", 3),
		DefaultIStockVideoRate:  envIntOr("DEFAULT_ISTOCK_VIDEO_RATE", 3),
		DefaultAdobePhotoRate:   envIntOr("DEFAULT_ADOBE_PHOTO_RATE", 2),
		DefaultAdobeVideoRate:   envIntOr("DEFAULT_ADOBE_VIDEO_RATE", 2),
		DefaultImageConcurrency: envIntOr("DEFAULT_IMAGE_CONCURRENCY", 5),
		DefaultVideoConcurrency: envIntOr("DEFAULT_VIDEO_CONCURRENCY", 2),
		DefaultCacheThreshold:   envIntOr("DEFAULT_CACHE_THRESHOLD", 20),
		ConfigSealKey:           envOr("CONFIG_SEAL_KEY", ""),
		DefaultExchangeRate:     envDecimalOr("DEFAULT_EXCHANGE_RATE", decimal.NewFromInt(4)),
		NewUserWindow:           envDurationOr("NEW_USER_WINDOW", 7*24*time.Hour),
		TopupRateLimit:          envIntOr("TOPUP_RATE_LIMIT", 5),
		TopupRateWindow:         envDurationOr("TOPUP_RATE_WINDOW", time.Minute),
		BankName:                envOr("BANK_NAME", ""),
		BankAccountName:         envOr("BANK_ACCOUNT_NAME", ""),
		BankAccountNumber:       envOr("BANK_ACCOUNT_NUMBER", ""),
		SlipVerifyURL:           envOr("SLIP_VERIFY_URL", ""),
		SlipVerifyAPIKey:        envOr("SLIP_VERIFY_API_KEY", ""),
		SlipVerifyTimeout:       envDurationOr("SLIP_VERIFY_TIMEOUT", 15*time.Second),
		SettingsCacheTTL:        envDurationOr("SETTINGS_CACHE_TTL", 5*time.Minute),
		SettingsSeedFile:        envOr("SETTINGS_SEED_FILE", ""),
		IPRateLimit:             envFloatOr("IP_RATE_LIMIT", 20),
		IPRateBurst:             envIntOr("IP_RATE_BURST", 40),
	}
}

// ─── helpers ───

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDecimalOr(key string, fallback decimal.Decimal) decimal.Decimal {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
