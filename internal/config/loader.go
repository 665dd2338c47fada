package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load merges the TOML file at path over Defaults, then applies CJTRACE_*
// environment overrides (a .env file in the working directory is loaded
// first when present). A missing file is not an error. The result is not
// validated; call Validate.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		default:
			if undecoded := md.Undecoded(); len(undecoded) > 0 {
				keys := make([]string, len(undecoded))
				for i, k := range undecoded {
					keys[i] = k.String()
				}
				return nil, fmt.Errorf("config: unknown keys in %s: %s", path, strings.Join(keys, ", "))
			}
		}
	}

	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// applyEnvOverrides copies set CJTRACE_* variables over cfg so secrets can be
// injected at deploy time.
func applyEnvOverrides(cfg *Config) {
	// Explorer
	setStr(&cfg.Explorer.BaseURL, "CJTRACE_EXPLORER_BASE_URL")
	setDuration(&cfg.Explorer.Timeout, "CJTRACE_EXPLORER_TIMEOUT")
	setFloat64(&cfg.Explorer.RequestsPerSecond, "CJTRACE_EXPLORER_REQUESTS_PER_SECOND")
	setInt(&cfg.Explorer.Burst, "CJTRACE_EXPLORER_BURST")
	setStr(&cfg.Explorer.UserAgent, "CJTRACE_EXPLORER_USER_AGENT")

	// Analysis
	setInt(&cfg.Analysis.FetchConcurrency, "CJTRACE_ANALYSIS_FETCH_CONCURRENCY")
	setInt(&cfg.Analysis.MaxFetches, "CJTRACE_ANALYSIS_MAX_FETCHES")
	setStr(&cfg.Analysis.Network, "CJTRACE_ANALYSIS_NETWORK")
	setBool(&cfg.Analysis.ValidateAddresses, "CJTRACE_ANALYSIS_VALIDATE_ADDRESSES")

	// Cache
	setBool(&cfg.Cache.Enabled, "CJTRACE_CACHE_ENABLED")
	setDuration(&cfg.Cache.OutspendsTTL, "CJTRACE_CACHE_OUTSPENDS_TTL")
	setDuration(&cfg.Cache.TransactionTTL, "CJTRACE_CACHE_TRANSACTION_TTL")

	// Redis
	setBool(&cfg.Redis.Enabled, "CJTRACE_REDIS_ENABLED")
	setStr(&cfg.Redis.URL, "CJTRACE_REDIS_URL")
	setStr(&cfg.Redis.Addr, "CJTRACE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "CJTRACE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "CJTRACE_REDIS_DB")
	setBool(&cfg.Redis.TLSEnabled, "CJTRACE_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.LockTTL, "CJTRACE_REDIS_LOCK_TTL")
	setInt(&cfg.Redis.ExplorerLimit, "CJTRACE_REDIS_EXPLORER_LIMIT")

	// Postgres
	setBool(&cfg.Postgres.Enabled, "CJTRACE_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "CJTRACE_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL")
	setStr(&cfg.Postgres.Host, "CJTRACE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "CJTRACE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "CJTRACE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "CJTRACE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "CJTRACE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "CJTRACE_POSTGRES_SSL_MODE")
	setBool(&cfg.Postgres.RunMigrations, "CJTRACE_POSTGRES_RUN_MIGRATIONS")

	// S3
	setBool(&cfg.S3.Enabled, "CJTRACE_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "CJTRACE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "CJTRACE_S3_REGION")
	setStr(&cfg.S3.Bucket, "CJTRACE_S3_BUCKET")
	setStr(&cfg.S3.Prefix, "CJTRACE_S3_PREFIX")
	setStr(&cfg.S3.AccessKey, "CJTRACE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "CJTRACE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "CJTRACE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "CJTRACE_S3_FORCE_PATH_STYLE")

	// Output
	setStr(&cfg.Output.Dir, "CJTRACE_OUTPUT_DIR")
	setBool(&cfg.Output.WriteFile, "CJTRACE_OUTPUT_WRITE_FILE")
	setBool(&cfg.Output.Summary, "CJTRACE_OUTPUT_SUMMARY")

	// Server
	setInt(&cfg.Server.Port, "CJTRACE_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "CJTRACE_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "CJTRACE_SERVER_API_KEY")
	setDuration(&cfg.Server.AnalyzeTimeout, "CJTRACE_SERVER_ANALYZE_TIMEOUT")
	setFloat64(&cfg.Server.RateLimit, "CJTRACE_SERVER_RATE_LIMIT")
	setInt(&cfg.Server.RateBurst, "CJTRACE_SERVER_RATE_BURST")
	setBool(&cfg.Server.TrustProxy, "CJTRACE_SERVER_TRUST_PROXY")

	// Notify
	setStr(&cfg.Notify.TelegramToken, "CJTRACE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "CJTRACE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "CJTRACE_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "CJTRACE_NOTIFY_EVENTS")

	// Metrics
	setBool(&cfg.Metrics.Enabled, "CJTRACE_METRICS_ENABLED")
	setStr(&cfg.Metrics.Path, "CJTRACE_METRICS_PATH")

	setStr(&cfg.LogLevel, "CJTRACE_LOG_LEVEL")
}

// Each setter only touches dst when the variable is set, non-empty and
// parses.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var cleaned []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) > 0 {
		*dst = cleaned
	}
}
