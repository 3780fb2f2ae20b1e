// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Config holds the configuration for the ETL pipeline and the HTTP read API.
type Config struct {
	GeoDBPath    string // path to the DuckDB geodata store (default "geoatlas.duckdb")
	MetaDBPath   string // path to the SQLite metadata store (default "geoatlas_meta.sqlite")
	ResourcesDir string // local dataset cache root (default "resources")

	// LocalRuntime selects the cache-first extraction path. When false every
	// extraction pulls from the remote object store.
	LocalRuntime bool
	// PullMissingFiles backfills the local cache from the remote store when a
	// cached dataset is absent. Only consulted when LocalRuntime is true.
	PullMissingFiles bool

	ListenAddr string // HTTP listen address (default ":8080")
	LogLevel   string // log level: debug, info, warn, error (default "info")

	// Rate limiting
	RateLimitRPS   float64 // sustained requests per second (default 100)
	RateLimitBurst int     // burst capacity (default 200)

	// CORS
	CORSAllowedOrigins []string // allowed origins for CORS (default: ["*"])

	// ETLSchedule is an optional cron expression; when set the server runs a
	// full update on that schedule.
	ETLSchedule string

	// FetchConcurrency bounds the fan-out of the fetch-only pre-warm.
	FetchConcurrency int

	// Remote holds the default object-store connection, overridable per
	// source via the remote sources file.
	Remote RemoteDefaults

	// RemoteSourcesFile points at an optional YAML file with per-source
	// remote overrides. Loaded into Sources by LoadFromEnv.
	RemoteSourcesFile string
	Sources           map[string]SourceRemote
}

// RemoteDefaults is the fallback object-store connection used by every
// source that has no override.
type RemoteDefaults struct {
	Server    string // host[:port] of the S3-compatible endpoint
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Path      string // default object path prefix
	UseTLS    bool
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

// LoadFromEnv loads configuration from environment variables and, when
// REMOTE_SOURCES_FILE is set, the per-source remote overrides YAML.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		GeoDBPath:         os.Getenv("GEO_DB_PATH"),
		MetaDBPath:        os.Getenv("META_DB_PATH"),
		ResourcesDir:      os.Getenv("RESOURCES_DIR"),
		ListenAddr:        os.Getenv("LISTEN_ADDR"),
		LogLevel:          os.Getenv("LOG_LEVEL"),
		ETLSchedule:       os.Getenv("ETL_SCHEDULE"),
		RemoteSourcesFile: os.Getenv("REMOTE_SOURCES_FILE"),
		LocalRuntime:      parseBoolEnvDefault("LOCAL_RUNTIME", true),
		PullMissingFiles:  parseBoolEnvDefault("ETL_PULL_MISSING_FILES", false),
		Remote: RemoteDefaults{
			Server:    os.Getenv("S3_SERVER"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
			Bucket:    os.Getenv("S3_BUCKET"),
			Region:    os.Getenv("S3_REGION"),
			Path:      os.Getenv("S3_DEFAULT_PATH"),
			UseTLS:    parseBoolEnvDefault("S3_USE_TLS", true),
		},
	}

	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRPS = f
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitBurst = n
		}
	}
	if v := os.Getenv("FETCH_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.FetchConcurrency = n
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
	if cfg.GeoDBPath == "" {
		cfg.GeoDBPath = "geoatlas.duckdb"
	}
	if cfg.MetaDBPath == "" {
		cfg.MetaDBPath = "geoatlas_meta.sqlite"
	}
	if cfg.ResourcesDir == "" {
		cfg.ResourcesDir = "resources"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 100
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 200
	}
	if cfg.FetchConcurrency <= 0 {
		cfg.FetchConcurrency = 4
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}

	if cfg.RemoteSourcesFile != "" {
		sources, err := LoadRemoteSources(cfg.RemoteSourcesFile)
		if err != nil {
			return nil, fmt.Errorf("load remote sources: %w", err)
		}
		cfg.Sources = sources
	}

	return cfg, nil
}

func parseBoolEnvDefault(key string, defaultVal bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return defaultVal
	}
	if v == "0" || v == "false" || v == "no" || v == "off" {
		return false
	}
	if v == "1" || v == "true" || v == "yes" || v == "on" {
		return true
	}
	return defaultVal
}

// LoadDotEnv reads a .env file and sets any variables not already in the
// environment. Lines must be in KEY=VALUE format. Comments (#) and blank
// lines are skipped.
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
		value = strings.TrimSpace(value)
		value = stripQuotes(value)
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
