// Package config defines the cjtrace configuration and its validation.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
)

// Config is the root configuration. Fields come from a TOML file and are then
// overridden by CJTRACE_* environment variables.
type Config struct {
	Explorer ExplorerConfig `toml:"explorer"`
	Analysis AnalysisConfig `toml:"analysis"`
	Cache    CacheConfig    `toml:"cache"`
	Redis    RedisConfig    `toml:"redis"`
	Postgres PostgresConfig `toml:"postgres"`
	S3       S3Config       `toml:"s3"`
	Output   OutputConfig   `toml:"output"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Metrics  MetricsConfig  `toml:"metrics"`
	LogLevel string         `toml:"log_level"`
}

// ExplorerConfig points at an Esplora-compatible HTTP API.
type ExplorerConfig struct {
	BaseURL           string   `toml:"base_url"`
	Timeout           duration `toml:"timeout"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
	Burst             int      `toml:"burst"`
	UserAgent         string   `toml:"user_agent"`
}

// AnalysisConfig tunes a single run.
type AnalysisConfig struct {
	FetchConcurrency  int    `toml:"fetch_concurrency"`
	MaxFetches        int    `toml:"max_fetches"`
	Network           string `toml:"network"`
	ValidateAddresses bool   `toml:"validate_addresses"`
}

// CacheConfig configures the in-process explorer response cache.
type CacheConfig struct {
	Enabled        bool     `toml:"enabled"`
	OutspendsTTL   duration `toml:"outspends_ttl"`
	TransactionTTL duration `toml:"transaction_ttl"`
	Capacity       uint64   `toml:"capacity"`
}

// RedisConfig configures the shared cache and the run lock.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	URL        string   `toml:"url"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	LockTTL    duration `toml:"lock_ttl"`

	// ExplorerLimit caps explorer requests per ExplorerWindow across every
	// process sharing this Redis. Zero disables the shared quota.
	ExplorerLimit  int      `toml:"explorer_limit"`
	ExplorerWindow duration `toml:"explorer_window"`
}

// PostgresConfig configures report and audit persistence.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// S3Config configures the report archive.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	Prefix         string `toml:"prefix"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// OutputConfig controls the local artifact and console output.
type OutputConfig struct {
	Dir       string `toml:"dir"`
	WriteFile bool   `toml:"write_file"`
	Summary   bool   `toml:"summary"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port           int      `toml:"port"`
	CORSOrigins    []string `toml:"cors_origins"`
	APIKey         string   `toml:"api_key"`
	AnalyzeTimeout duration `toml:"analyze_timeout"`
	// RateLimit is requests per second per client IP; 0 disables it.
	RateLimit float64 `toml:"rate_limit"`
	RateBurst int     `toml:"rate_burst"`
	// TrustProxy reads the client IP from X-Forwarded-For / X-Real-IP.
	TrustProxy bool `toml:"trust_proxy"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// MetricsConfig toggles the Prometheus endpoint in serve mode.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// duration lets TOML carry strings like "30s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with the values of
// config.example.toml.
func Defaults() Config {
	return Config{
		Explorer: ExplorerConfig{
			BaseURL:           "https://blockstream.info/api",
			Timeout:           duration{30 * time.Second},
			RequestsPerSecond: 5,
			Burst:             5,
			UserAgent:         "cjtrace/1.0",
		},
		Analysis: AnalysisConfig{
			FetchConcurrency: 1,
			MaxFetches:       500,
			Network:          "mainnet",
		},
		Cache: CacheConfig{
			Enabled:        true,
			OutspendsTTL:   duration{time.Minute},
			TransactionTTL: duration{time.Hour},
			Capacity:       10_000,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			LockTTL:  duration{10 * time.Minute},

			ExplorerWindow: duration{time.Second},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "cjtrace",
			User:          "cjtrace",
			SSLMode:       "disable",
			PoolMaxConns:  5,
			RunMigrations: true,
		},
		S3: S3Config{
			Region:         "us-east-1",
			Prefix:         "reports",
			UseSSL:         true,
			ForcePathStyle: true,
		},
		Output: OutputConfig{
			Dir:       ".",
			WriteFile: true,
			Summary:   true,
		},
		Server: ServerConfig{
			Port:           8080,
			CORSOrigins:    []string{"http://localhost:3000"},
			AnalyzeTimeout: duration{5 * time.Minute},
			RateLimit:      2,
			RateBurst:      10,
		},
		Notify: NotifyConfig{
			Events: []string{"links_found", "run_failed"},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		LogLevel: "info",
	}
}

var networks = map[string]*chaincfg.Params{
	"mainnet":  &chaincfg.MainNetParams,
	"testnet3": &chaincfg.TestNet3Params,
	"signet":   &chaincfg.SigNetParams,
	"regtest":  &chaincfg.RegressionNetParams,
	"simnet":   &chaincfg.SimNetParams,
}

// NetworkParams returns the chain parameters for the configured network.
func (a AnalysisConfig) NetworkParams() (*chaincfg.Params, error) {
	p, ok := networks[strings.ToLower(a.Network)]
	if !ok {
		return nil, fmt.Errorf("unknown network %q (valid: mainnet, testnet3, signet, regtest, simnet)", a.Network)
	}
	return p, nil
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config and returns one error listing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Explorer
	if u, err := url.Parse(c.Explorer.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("explorer: base_url %q must be an absolute URL", c.Explorer.BaseURL))
	}
	if c.Explorer.Timeout.Duration <= 0 {
		errs = append(errs, "explorer: timeout must be > 0")
	}
	if c.Explorer.RequestsPerSecond < 0 {
		errs = append(errs, "explorer: requests_per_second must be >= 0")
	}
	if c.Explorer.RequestsPerSecond > 0 && c.Explorer.Burst < 1 {
		errs = append(errs, "explorer: burst must be >= 1 when requests_per_second is set")
	}

	// Analysis
	if c.Analysis.FetchConcurrency < 1 {
		errs = append(errs, "analysis: fetch_concurrency must be >= 1")
	}
	if c.Analysis.MaxFetches < 0 {
		errs = append(errs, "analysis: max_fetches must be >= 0")
	}
	if _, err := c.Analysis.NetworkParams(); err != nil {
		errs = append(errs, "analysis: "+err.Error())
	}

	// Cache
	if c.Cache.Enabled && (c.Cache.OutspendsTTL.Duration <= 0 || c.Cache.TransactionTTL.Duration <= 0) {
		errs = append(errs, "cache: outspends_ttl and transaction_ttl must be > 0 when enabled")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.URL == "" && c.Redis.Addr == "" {
			errs = append(errs, "redis: addr or url must be set when enabled")
		}
		if c.Redis.LockTTL.Duration <= 0 {
			errs = append(errs, "redis: lock_ttl must be > 0")
		}
		if c.Redis.ExplorerLimit < 0 {
			errs = append(errs, "redis: explorer_limit must be >= 0")
		}
		if c.Redis.ExplorerLimit > 0 && c.Redis.ExplorerWindow.Duration <= 0 {
			errs = append(errs, "redis: explorer_window must be > 0 when explorer_limit is set")
		}
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
	}

	// Output
	if c.Output.WriteFile && c.Output.Dir == "" {
		errs = append(errs, "output: dir must not be empty when write_file is set")
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.AnalyzeTimeout.Duration <= 0 {
		errs = append(errs, "server: analyze_timeout must be > 0")
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, "server: rate_limit must be >= 0")
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst < 1 {
		errs = append(errs, "server: rate_burst must be >= 1 when rate_limit is set")
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	// Metrics
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, "metrics: path must start with /")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
