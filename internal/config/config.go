// Package config handles gateway configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the gateway's runtime configuration.
type Config struct {
	// Bus
	NATSURL       string // NATS server URL (default nats://127.0.0.1:4222)
	SubjectPrefix string // routing-key prefix ahead of <tenant>.execute (default "rosey.db")

	// Store
	StorePath   string // path to the shared SQLite data file (default "rosey_data.sqlite")
	AuditDBPath string // path to the audit SQLite file; empty disables persistence

	// Admin HTTP API
	AdminListenAddr    string   // listen address for the admin surface (default ":8090")
	CORSAllowedOrigins []string // allowed origins for CORS (default: ["*"])

	// Per-tenant quota
	RateLimitDefault int           // requests per window per tenant (default 30)
	RateLimitWindow  time.Duration // sliding window length (default 60s)
	QuotasPath       string        // optional YAML file with per-tenant overrides

	// Global admission gate
	GlobalRPS   float64 // sustained requests per second across all tenants (default 200)
	GlobalBurst int     // burst capacity (default 400)

	// Execution
	SlowQueryMs     float64 // slow-query threshold in milliseconds (default 1000)
	AuditBufferSize int     // audit sink channel depth (default 1024)

	LogLevel string // log level: debug, info, warn, error (default "info")
	Env      string // environment: "development" (default) or "production"

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when the gateway is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		NATSURL:         os.Getenv("NATS_URL"),
		SubjectPrefix:   os.Getenv("SUBJECT_PREFIX"),
		StorePath:       os.Getenv("STORE_PATH"),
		AuditDBPath:     os.Getenv("AUDIT_DB_PATH"),
		AdminListenAddr: os.Getenv("ADMIN_LISTEN_ADDR"),
		QuotasPath:      os.Getenv("QUOTAS_PATH"),
		LogLevel:        os.Getenv("LOG_LEVEL"),
		Env:             os.Getenv("ENV"),
	}

	if v := os.Getenv("RATE_LIMIT_DEFAULT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("RATE_LIMIT_DEFAULT must be a non-negative integer, got %q", v)
		}
		cfg.RateLimitDefault = n
	}
	if v := os.Getenv("RATE_LIMIT_WINDOW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("RATE_LIMIT_WINDOW must be a positive duration, got %q", v)
		}
		cfg.RateLimitWindow = d
	}
	if v := os.Getenv("GLOBAL_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.GlobalRPS = f
		}
	}
	if v := os.Getenv("GLOBAL_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.GlobalBurst = n
		}
	}
	if v := os.Getenv("SLOW_QUERY_MS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.SlowQueryMs = f
		}
	}
	if v := os.Getenv("AUDIT_BUFFER_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.AuditBufferSize = n
		}
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORSAllowedOrigins = origins
	}

	// Defaults
	if cfg.NATSURL == "" {
		cfg.NATSURL = "nats://127.0.0.1:4222"
	}
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = "rosey.db"
	}
	if cfg.StorePath == "" {
		cfg.StorePath = "rosey_data.sqlite"
	}
	if cfg.AdminListenAddr == "" {
		cfg.AdminListenAddr = ":8090"
	}
	if cfg.RateLimitDefault == 0 && os.Getenv("RATE_LIMIT_DEFAULT") == "" {
		cfg.RateLimitDefault = 30
	}
	if cfg.RateLimitWindow == 0 {
		cfg.RateLimitWindow = time.Minute
	}
	if cfg.GlobalRPS == 0 {
		cfg.GlobalRPS = 200
	}
	if cfg.GlobalBurst == 0 {
		cfg.GlobalBurst = 400
	}
	if cfg.SlowQueryMs == 0 {
		cfg.SlowQueryMs = 1000
	}
	if cfg.AuditBufferSize == 0 {
		cfg.AuditBufferSize = 1024
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}
	if cfg.AuditDBPath == "" {
		cfg.Warnings = append(cfg.Warnings, "AUDIT_DB_PATH not set — audit records are logged but not persisted")
	}

	// Production mode: insecure defaults are fatal errors.
	if cfg.IsProduction() {
		if os.Getenv("STORE_PATH") == "" {
			return nil, fmt.Errorf("STORE_PATH must be set explicitly in production (ENV=production)")
		}
		if len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*" {
			return nil, fmt.Errorf("CORS wildcard (*) is not allowed in production (ENV=production)")
		}
	}

	return cfg, nil
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = stripQuotes(strings.TrimSpace(value))
		// Only set if not already in the environment (env vars take precedence)
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
// Only strips if both the first and last characters are matching quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
