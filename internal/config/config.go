// internal/config/config.go
//
// Process configuration for the garden share API.
// Values come from the environment (optionally seeded from a .env file by
// main via godotenv). Everything has a development default except
// JWT_SECRET, which must be set when APP_ENV=production.

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port     string
	Env      string
	LogLevel string

	DatabaseDriver string // "postgres" | "sqlite"
	DatabaseURL    string

	JWTSecret     string
	JWTExpiryDays int
	BcryptCost    int

	CORSOrigins []string

	CloudinaryURL       string
	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	MediaFolder         string
	MaxUploadBytes      int64

	AuthRatePerMinute int
	RequestTimeout    time.Duration
}

const devJWTSecret = "dev_secret_change_me"

// Load reads configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		Port:     getEnv("PORT", "5000"),
		Env:      strings.ToLower(getEnv("APP_ENV", "development")),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseDriver: strings.ToLower(getEnv("DATABASE_DRIVER", "sqlite")),
		DatabaseURL:    getEnv("DATABASE_URL", "./data/garden.db"),

		JWTSecret:     os.Getenv("JWT_SECRET"),
		JWTExpiryDays: getEnvInt("JWT_EXPIRES_IN_DAYS", 7),
		BcryptCost:    getEnvInt("BCRYPT_COST", 10),

		CORSOrigins: splitList(getEnv("CORS_ORIGIN", "http://localhost:3000")),

		CloudinaryURL:       os.Getenv("CLOUDINARY_URL"),
		CloudinaryCloudName: os.Getenv("CLOUDINARY_CLOUD_NAME"),
		CloudinaryAPIKey:    os.Getenv("CLOUDINARY_API_KEY"),
		CloudinaryAPISecret: os.Getenv("CLOUDINARY_API_SECRET"),
		MediaFolder:         getEnv("MEDIA_FOLDER", "garden-app"),
		MaxUploadBytes:      int64(getEnvInt("MAX_UPLOAD_MB", 5)) << 20,

		AuthRatePerMinute: getEnvInt("AUTH_RATE_PER_MIN", 20),
		RequestTimeout:    getEnvDuration("REQUEST_TIMEOUT", 15*time.Second),
	}

	if cfg.JWTSecret == "" {
		if cfg.IsProduction() {
			return nil, errors.New("JWT_SECRET is required in production")
		}
		cfg.JWTSecret = devJWTSecret
	}
	switch cfg.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER %q", cfg.DatabaseDriver)
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.JWTExpiryDays <= 0 {
		return nil, fmt.Errorf("JWT_EXPIRES_IN_DAYS must be positive, got %d", cfg.JWTExpiryDays)
	}
	return cfg, nil
}

// IsProduction reports whether APP_ENV=production.
func (c *Config) IsProduction() bool { return c.Env == "production" }

// UsesDevSecret is true when no JWT_SECRET was supplied.
func (c *Config) UsesDevSecret() bool { return c.JWTSecret == devJWTSecret }

// HasCloudinary reports whether enough credentials exist to reach Cloudinary.
func (c *Config) HasCloudinary() bool {
	if c.CloudinaryURL != "" {
		return true
	}
	return c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

// TokenTTL is the lifetime of issued bearer tokens.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.JWTExpiryDays) * 24 * time.Hour
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getEnvInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvDuration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// splitList splits a comma-separated list, trimming blanks and trailing slashes.
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if o := strings.TrimRight(strings.TrimSpace(p), "/"); o != "" {
			out = append(out, o)
		}
	}
	return out
}
