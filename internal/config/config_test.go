package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"NATS_URL", "SUBJECT_PREFIX", "STORE_PATH", "AUDIT_DB_PATH",
		"ADMIN_LISTEN_ADDR", "QUOTAS_PATH", "LOG_LEVEL", "ENV",
		"RATE_LIMIT_DEFAULT", "RATE_LIMIT_WINDOW", "GLOBAL_RPS",
		"GLOBAL_BURST", "SLOW_QUERY_MS", "AUDIT_BUFFER_SIZE",
		"CORS_ALLOWED_ORIGINS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATSURL)
	assert.Equal(t, "rosey.db", cfg.SubjectPrefix)
	assert.Equal(t, "rosey_data.sqlite", cfg.StorePath)
	assert.Equal(t, ":8090", cfg.AdminListenAddr)
	assert.Equal(t, 30, cfg.RateLimitDefault)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, 200.0, cfg.GlobalRPS)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.NotEmpty(t, cfg.Warnings, "missing audit path should warn")
}

func TestLoadFromEnv_AllVarsSet(t *testing.T) {
	clearEnv(t)
	t.Setenv("NATS_URL", "nats://broker:4222")
	t.Setenv("SUBJECT_PREFIX", "bot.db")
	t.Setenv("STORE_PATH", "/data/rosey.sqlite")
	t.Setenv("AUDIT_DB_PATH", "/data/audit.sqlite")
	t.Setenv("RATE_LIMIT_DEFAULT", "120")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "nats://broker:4222", cfg.NATSURL)
	assert.Equal(t, "bot.db", cfg.SubjectPrefix)
	assert.Equal(t, 120, cfg.RateLimitDefault)
	assert.Equal(t, 30*time.Second, cfg.RateLimitWindow)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Empty(t, cfg.Warnings)
}

func TestLoadFromEnv_ZeroRateLimitIsBlocked(t *testing.T) {
	clearEnv(t)
	t.Setenv("RATE_LIMIT_DEFAULT", "0")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.RateLimitDefault, "explicit zero must not fall back to the default")
}

func TestLoadFromEnv_InvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("RATE_LIMIT_DEFAULT", "-5")
	_, err := LoadFromEnv()
	assert.Error(t, err)

	clearEnv(t)
	t.Setenv("RATE_LIMIT_WINDOW", "soon")
	_, err = LoadFromEnv()
	assert.Error(t, err)
}

func TestLoadFromEnv_ProductionGuards(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENV", "production")

	_, err := LoadFromEnv()
	require.Error(t, err, "production requires an explicit store path")

	t.Setenv("STORE_PATH", "/data/rosey.sqlite")
	_, err = LoadFromEnv()
	require.Error(t, err, "production rejects the CORS wildcard")

	t.Setenv("CORS_ALLOWED_ORIGINS", "https://ops.example")
	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tc := range tests {
		cfg := &Config{LogLevel: tc.level}
		assert.Equal(t, tc.want, cfg.SlogLevel())
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte(
		"# comment\n\nNATS_URL=nats://dotenv:4222\nLOG_LEVEL=\"debug\"\nNOT_A_PAIR\n"), 0o600))

	t.Setenv("NATS_URL", "nats://env-wins:4222")
	t.Setenv("LOG_LEVEL", "")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "nats://env-wins:4222", os.Getenv("NATS_URL"), "real env takes precedence")
	assert.Equal(t, "debug", os.Getenv("LOG_LEVEL"), "quotes are stripped")
}

func TestLoadDotEnv_MissingFileIsFine(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "nope.env")))
}

func TestLoadQuotas(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "quotas.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tenants:
  trivia:
    rate_limit: 120
  count-down:
    rate_limit: 0
  reporting:
    cross_tenant: true
`), 0o600))

	q, err := LoadQuotas(path)
	require.NoError(t, err)

	require.NotNil(t, q.Tenants["trivia"].RateLimit)
	assert.Equal(t, 120, *q.Tenants["trivia"].RateLimit)
	require.NotNil(t, q.Tenants["count-down"].RateLimit)
	assert.Equal(t, 0, *q.Tenants["count-down"].RateLimit)
	assert.Nil(t, q.Tenants["reporting"].RateLimit)
	assert.Equal(t, []string{"reporting"}, q.CrossTenantList())
}

func TestLoadQuotas_EmptyPath(t *testing.T) {
	q, err := LoadQuotas("")
	require.NoError(t, err)
	assert.Empty(t, q.Tenants)
}

func TestLoadQuotas_MissingConfiguredFile(t *testing.T) {
	_, err := LoadQuotas(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
