package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pkordes/missionmap/internal/config"
)

var allVars = []string{
	"PORT", "LOG_LEVEL", "CORS_ORIGINS", "LOCAL_DB_PATH", "REMOTE_BACKEND", "CHANGE_CHANNEL",
	"DATABASE_URL", "REDIS_URL", "S3_ENDPOINT", "S3_BUCKET", "S3_ACCESS_KEY", "S3_SECRET_KEY",
	"S3_USE_SSL", "S3_PREFIX", "SYNC_DEBOUNCE", "SYNC_RETRIES", "PLACES_FILE", "PLACES_URL", "MAX_BODY_BYTES",
}

// clearEnv blanks every variable Load reads so the host environment cannot
// leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allVars {
		t.Setenv(k, "")
	}
}

// TestLoad_defaults verifies that an empty environment yields a local-only
// configuration with documented defaults.
func TestLoad_defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Load()

	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, []string{"http://localhost:5173"}, cfg.CORSOrigins)
	require.Equal(t, "./data/missionmap.db", cfg.LocalDBPath)
	require.Equal(t, config.BackendNone, cfg.Backend)
	require.Equal(t, config.ChannelNone, cfg.Channel)
	require.False(t, cfg.RemoteEnabled())
	require.Equal(t, 800*time.Millisecond, cfg.Debounce)
	require.Equal(t, uint64(2), cfg.Retries)
	require.Equal(t, int64(1<<20), cfg.MaxBodyBytes)
	require.Equal(t, config.DefaultPlacesURL, cfg.PlacesURL)
	require.Equal(t, "missionmap", cfg.S3.Bucket)
}

// TestLoad_overrides verifies that values can be overridden via env vars.
func TestLoad_overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CORS_ORIGINS", "https://app.example.com, https://admin.example.com")
	t.Setenv("REMOTE_BACKEND", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://user:pass@db:5432/mydb")
	t.Setenv("SYNC_DEBOUNCE", "2s")
	t.Setenv("SYNC_RETRIES", "0")

	cfg, err := config.Load()

	require.NoError(t, err)
	require.Equal(t, "9090", cfg.Port)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.CORSOrigins)
	require.Equal(t, config.BackendPostgres, cfg.Backend)
	require.Equal(t, config.ChannelPostgres, cfg.Channel)
	require.True(t, cfg.RemoteEnabled())
	require.Equal(t, 2*time.Second, cfg.Debounce)
	require.Equal(t, uint64(0), cfg.Retries)
}

func TestLoad_autoChannel(t *testing.T) {
	cases := map[string]string{
		config.BackendNone:     config.ChannelNone,
		config.BackendRedis:    config.ChannelRedis,
		config.BackendS3:       config.ChannelRedis,
		config.BackendPostgres: config.ChannelPostgres,
	}
	for backend, want := range cases {
		t.Run(backend, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("REMOTE_BACKEND", backend)
			t.Setenv("DATABASE_URL", "postgres://localhost/db")
			t.Setenv("S3_ACCESS_KEY", "minio")

			cfg, err := config.Load()

			require.NoError(t, err)
			require.Equal(t, want, cfg.Channel)
		})
	}
}

// TestLoad_postgresNeedsDatabaseURL verifies the error names the missing variable.
func TestLoad_postgresNeedsDatabaseURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("REMOTE_BACKEND", "postgres")

	_, err := config.Load()

	require.Error(t, err)
	require.ErrorContains(t, err, "DATABASE_URL")
}

func TestLoad_channelMustMatchBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv("REMOTE_BACKEND", "redis")
	t.Setenv("CHANGE_CHANNEL", "postgres")

	_, err := config.Load()
	require.ErrorContains(t, err, "CHANGE_CHANNEL postgres requires REMOTE_BACKEND postgres")

	clearEnv(t)
	t.Setenv("CHANGE_CHANNEL", "redis")

	_, err = config.Load()
	require.ErrorContains(t, err, "CHANGE_CHANNEL requires a remote backend")
}

// TestLoad_reportsAllProblems verifies that several invalid variables are
// reported in one error.
func TestLoad_reportsAllProblems(t *testing.T) {
	clearEnv(t)
	t.Setenv("REMOTE_BACKEND", "ftp")
	t.Setenv("SYNC_DEBOUNCE", "soon")
	t.Setenv("MAX_BODY_BYTES", "-1")

	_, err := config.Load()

	require.Error(t, err)
	require.ErrorContains(t, err, "REMOTE_BACKEND")
	require.ErrorContains(t, err, "SYNC_DEBOUNCE")
	require.ErrorContains(t, err, "MAX_BODY_BYTES")
}

func TestLoad_s3NeedsAccessKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("REMOTE_BACKEND", "s3")

	_, err := config.Load()

	require.ErrorContains(t, err, "S3_ACCESS_KEY")
}
