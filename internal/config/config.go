// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Remote backends accepted by REMOTE_BACKEND.
const (
	BackendNone     = "none"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendS3       = "s3"
)

// Change channels accepted by CHANGE_CHANNEL. ChannelAuto picks the channel
// that matches the backend: postgres listens on its own database, redis and
// s3 use Redis pub/sub.
const (
	ChannelAuto     = "auto"
	ChannelNone     = "none"
	ChannelPostgres = "postgres"
	ChannelRedis    = "redis"
)

// DefaultPlacesURL lists the municipalities of Amazonas (state code 13).
const DefaultPlacesURL = "https://servicodados.ibge.gov.br/api/v1/localidades/estados/13/municipios"

// Config holds all configuration values for the API server and the CLI.
// Values are populated by Load from environment variables.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string

	// CORSOrigins is the list of allowed cross-origin request origins.
	// Defaults to ["http://localhost:5173"] (Vite dev server).
	CORSOrigins []string

	// LocalDBPath is the SQLite file backing the local store.
	LocalDBPath string

	// Backend selects the remote document store. Empty config means "none",
	// which runs local-only.
	Backend string

	// Channel selects the live change feed, resolved from "auto" by Load.
	// A postgres channel only works with the postgres backend.
	Channel string

	// DatabaseURL is the Postgres connection string. Required when Backend is
	// postgres.
	DatabaseURL string

	RedisURL string

	S3 S3Config

	// Debounce is the quiet period before local edits are pushed.
	Debounce time.Duration

	// Retries is the number of extra attempts after a transient remote failure.
	Retries uint64

	// PlacesFile is an optional YAML id→name table. When empty, PlacesURL is
	// fetched instead.
	PlacesFile string
	PlacesURL  string

	// MaxBodyBytes caps request bodies.
	MaxBodyBytes int64
}

// S3Config holds the object-storage backend settings. An empty SecretKey
// means the credential stored in the local store is used.
type S3Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Prefix    string
}

// Load reads configuration from environment variables and returns a Config.
// Returns an error listing every invalid or missing variable.
func Load() (Config, error) {
	cfg := Config{
		Port:        getEnv("PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CORSOrigins: splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		LocalDBPath: getEnv("LOCAL_DB_PATH", "./data/missionmap.db"),
		Backend:     strings.ToLower(getEnv("REMOTE_BACKEND", BackendNone)),
		Channel:     strings.ToLower(getEnv("CHANGE_CHANNEL", ChannelAuto)),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),
		S3: S3Config{
			Endpoint:  getEnv("S3_ENDPOINT", "localhost:9000"),
			Bucket:    getEnv("S3_BUCKET", "missionmap"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
			Prefix:    os.Getenv("S3_PREFIX"),
		},
		PlacesFile: os.Getenv("PLACES_FILE"),
		PlacesURL:  getEnv("PLACES_URL", DefaultPlacesURL),
	}

	var problems []string

	var err error
	if cfg.S3.UseSSL, err = strconv.ParseBool(getEnv("S3_USE_SSL", "false")); err != nil {
		problems = append(problems, "S3_USE_SSL must be a boolean")
	}
	if cfg.Debounce, err = time.ParseDuration(getEnv("SYNC_DEBOUNCE", "800ms")); err != nil || cfg.Debounce <= 0 {
		problems = append(problems, "SYNC_DEBOUNCE must be a positive duration")
	}
	if cfg.Retries, err = strconv.ParseUint(getEnv("SYNC_RETRIES", "2"), 10, 32); err != nil {
		problems = append(problems, "SYNC_RETRIES must be a non-negative integer")
	}
	if cfg.MaxBodyBytes, err = strconv.ParseInt(getEnv("MAX_BODY_BYTES", "1048576"), 10, 64); err != nil || cfg.MaxBodyBytes <= 0 {
		problems = append(problems, "MAX_BODY_BYTES must be a positive integer")
	}

	switch cfg.Backend {
	case BackendNone, BackendPostgres, BackendRedis, BackendS3:
	default:
		problems = append(problems, fmt.Sprintf("REMOTE_BACKEND %q is not one of none, postgres, redis, s3", cfg.Backend))
	}

	switch cfg.Channel {
	case ChannelAuto:
		cfg.Channel = autoChannel(cfg.Backend)
	case ChannelNone, ChannelPostgres, ChannelRedis:
	default:
		problems = append(problems, fmt.Sprintf("CHANGE_CHANNEL %q is not one of auto, none, postgres, redis", cfg.Channel))
	}

	if cfg.Backend == BackendPostgres && cfg.DatabaseURL == "" {
		problems = append(problems, "DATABASE_URL is required for the postgres backend")
	}
	// NOTIFY is raised by the sync_documents trigger, so only postgres writes
	// can feed a postgres channel.
	if cfg.Channel == ChannelPostgres && cfg.Backend != BackendPostgres {
		problems = append(problems, "CHANGE_CHANNEL postgres requires REMOTE_BACKEND postgres")
	}
	if cfg.Channel != ChannelNone && !cfg.RemoteEnabled() {
		problems = append(problems, "CHANGE_CHANNEL requires a remote backend")
	}
	if cfg.Backend == BackendS3 && cfg.S3.AccessKey == "" {
		problems = append(problems, "S3_ACCESS_KEY is required for the s3 backend")
	}

	if len(problems) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}

	return cfg, nil
}

// RemoteEnabled reports whether a remote backend is configured.
func (c Config) RemoteEnabled() bool {
	return c.Backend != "" && c.Backend != BackendNone
}

func autoChannel(backend string) string {
	switch backend {
	case BackendPostgres:
		return ChannelPostgres
	case BackendRedis, BackendS3:
		return ChannelRedis
	default:
		return ChannelNone
	}
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
