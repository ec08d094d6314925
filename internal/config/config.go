// Package config provides configuration loading for the NovaTube service.
// It handles environment variable parsing and provides default values for all settings.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// init loads .env and .env.local when present. godotenv never overrides variables
// already set, so the OS environment takes precedence.
func init() {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to load .env file: %v\n", err)
		}
	}

	// Local overrides, gitignored
	if _, err := os.Stat(".env.local"); err == nil {
		if err := godotenv.Load(".env.local"); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to load .env.local file: %v\n", err)
		}
	}
}

// Config captures environment-driven settings for the NovaTube service.
type Config struct {
	Env  string // Deployment environment (dev, staging, prod)
	Port string // HTTP server port

	// Generative collaborator
	AIAPIKey            string        // Empty runs the service with the offline generator
	AIModel             string        // Model name
	AIRequestsPerSecond float64       // Collaborator call rate limit
	SearchTimeout       time.Duration // Deadline for one ranking request

	NATSURL  string        // NATS server URL, empty disables events
	RedisURL string        // Redis URL for the L2 summary cache, empty disables L2
	CacheTTL time.Duration // Summary cache TTL

	S3Endpoint  string // S3-compatible storage endpoint
	S3Region    string // S3 region
	S3Bucket    string // S3 bucket name, empty uses the simulated uploader
	S3AccessKey string // S3 access key
	S3SecretKey string // S3 secret key

	// Media limits
	MaxMediaSize     int64    // Maximum media size in bytes (default 100MB)
	AllowedMimeTypes []string // Allowed MIME types for media attachments

	// CORS configuration
	CORSAllowedOrigins []string // Allowed origins for CORS (empty means deny all)

	TraceStdout bool // Export spans to stderr
}

// Default configuration values used when environment variables are not set
const (
	defaultPort          = "8080"
	defaultS3Region      = "us-east-1"
	defaultEnv           = "dev"
	defaultAIModel       = "gemini-2.5-flash"
	defaultAIRPS         = 2.0
	defaultSearchTimeout = 15 * time.Second
	defaultCacheTTL      = 30 * time.Minute
	defaultMaxMediaSize  = 100 * 1024 * 1024
)

var defaultMimeTypes = []string{"video/mp4", "video/webm", "video/quicktime", "image/jpeg", "image/png", "image/webp"}

// Load reads environment variables and produces a Config suitable for wiring the service.
// It returns an error when a numeric or duration setting cannot be parsed.
func Load() (Config, error) {
	cfg := Config{
		Env:      getEnv("NOVA_ENV", defaultEnv),
		Port:     getEnv("NOVA_PORT", defaultPort),
		AIAPIKey: os.Getenv("NOVA_AI_API_KEY"),
		AIModel:  getEnv("NOVA_AI_MODEL", defaultAIModel),
		NATSURL:  os.Getenv("NOVA_NATS_URL"),
		RedisURL: os.Getenv("NOVA_REDIS_URL"),

		S3Endpoint:  os.Getenv("NOVA_S3_ENDPOINT"),
		S3Region:    getEnv("NOVA_S3_REGION", defaultS3Region),
		S3Bucket:    os.Getenv("NOVA_S3_BUCKET"),
		S3AccessKey: os.Getenv("NOVA_S3_ACCESS_KEY"),
		S3SecretKey: os.Getenv("NOVA_S3_SECRET_KEY"),

		AIRequestsPerSecond: defaultAIRPS,
		SearchTimeout:       defaultSearchTimeout,
		CacheTTL:            defaultCacheTTL,
		MaxMediaSize:        defaultMaxMediaSize,
		AllowedMimeTypes:    defaultMimeTypes,
		TraceStdout:         parseBool(os.Getenv("NOVA_TRACE_STDOUT")),
	}

	if v, exists := lookupEnv("NOVA_AI_RPS"); exists {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil || rps < 0 {
			return cfg, fmt.Errorf("NOVA_AI_RPS must be a non-negative number, got %q", v)
		}
		cfg.AIRequestsPerSecond = rps
	}

	if v, exists := lookupEnv("NOVA_SEARCH_TIMEOUT"); exists {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("NOVA_SEARCH_TIMEOUT: %w", err)
		}
		cfg.SearchTimeout = d
	}

	if v, exists := lookupEnv("NOVA_CACHE_TTL"); exists {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("NOVA_CACHE_TTL: %w", err)
		}
		cfg.CacheTTL = d
	}

	if v, exists := lookupEnv("NOVA_MAX_MEDIA_SIZE"); exists {
		size, err := strconv.ParseInt(v, 10, 64)
		if err != nil || size <= 0 {
			return cfg, fmt.Errorf("NOVA_MAX_MEDIA_SIZE must be a positive integer, got %q", v)
		}
		cfg.MaxMediaSize = size
	}

	if v, exists := lookupEnv("NOVA_ALLOWED_MIME_TYPES"); exists {
		cfg.AllowedMimeTypes = splitList(v)
	}

	if v, exists := lookupEnv("NOVA_CORS_ALLOWED_ORIGINS"); exists {
		cfg.CORSAllowedOrigins = splitList(v)
	}

	return cfg, nil
}

// lookupEnv is os.LookupEnv treating an empty value as unset
func lookupEnv(key string) (string, bool) {
	v, exists := os.LookupEnv(key)
	return v, exists && v != ""
}

// getEnv retrieves an environment variable value, returning a fallback if not set or empty
func getEnv(key, fallback string) string {
	if v, exists := lookupEnv(key); exists {
		return v
	}
	return fallback
}

// parseBool converts a string to a boolean value, returning false if parsing fails
func parseBool(v string) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false
	}
	return b
}

// splitList splits a comma-separated value and drops empty entries.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
