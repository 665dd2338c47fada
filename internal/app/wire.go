package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/cjtrace/internal/analysis"
	s3blob "github.com/alanyoungcy/cjtrace/internal/blob/s3"
	"github.com/alanyoungcy/cjtrace/internal/cache/memory"
	"github.com/alanyoungcy/cjtrace/internal/cache/redis"
	"github.com/alanyoungcy/cjtrace/internal/config"
	"github.com/alanyoungcy/cjtrace/internal/domain"
	"github.com/alanyoungcy/cjtrace/internal/notify"
	"github.com/alanyoungcy/cjtrace/internal/platform/esplora"
	"github.com/alanyoungcy/cjtrace/internal/report"
	"github.com/alanyoungcy/cjtrace/internal/server/handler"
	"github.com/alanyoungcy/cjtrace/internal/source"
	"github.com/alanyoungcy/cjtrace/internal/store/postgres"
)

// Dependencies bundles everything the modes need. Optional parts are nil
// when their section is disabled.
type Dependencies struct {
	Source   domain.TxSource
	Analyzer *analysis.Analyzer

	ReportStore domain.ReportStore
	AuditStore  domain.AuditStore
	LockManager domain.LockManager

	Sinks   []report.Sink
	Loaders []report.Loader

	Notifier *notify.Notifier

	// Health maps dependency names to their connectivity checks.
	Health map[string]handler.Pinger
}

type wireOptions struct {
	explorerTransport http.RoundTripper
	notifyClient      *http.Client
}

// WireOption adjusts how Wire builds dependencies.
type WireOption func(*wireOptions)

// WithExplorerTransport routes explorer requests through rt.
func WithExplorerTransport(rt http.RoundTripper) WireOption {
	return func(o *wireOptions) { o.explorerTransport = rt }
}

// WithNotifyClient sends notifications with c.
func WithNotifyClient(c *http.Client) WireOption {
	return func(o *wireOptions) { o.notifyClient = c }
}

// Wire builds the dependencies described by cfg and returns them with a
// cleanup function for shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...WireOption) (*Dependencies, func(), error) {
	var o wireOptions
	for _, opt := range opts {
		opt(&o)
	}

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{Health: make(map[string]handler.Pinger)}

	network, err := cfg.Analysis.NetworkParams()
	if err != nil {
		return fail(fmt.Errorf("wire: %w", err))
	}
	if !cfg.Analysis.ValidateAddresses {
		network = nil
	}

	// --- Caches ---
	var (
		caches []domain.TxCache
		shared domain.RateLimiter
	)
	if cfg.Cache.Enabled {
		mem := memory.NewTxCache(memory.Config{
			OutspendsTTL:   cfg.Cache.OutspendsTTL.Duration,
			TransactionTTL: cfg.Cache.TransactionTTL.Duration,
			Capacity:       cfg.Cache.Capacity,
		})
		closers = append(closers, mem.Close)
		caches = append(caches, mem)
	}

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			URL:        cfg.Redis.URL,
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		if cfg.Cache.Enabled {
			caches = append(caches, redis.NewTxCache(redisClient,
				cfg.Cache.OutspendsTTL.Duration, cfg.Cache.TransactionTTL.Duration))
		}
		if cfg.Redis.ExplorerLimit > 0 {
			shared = redis.NewRateLimiter(redisClient, cfg.Redis.ExplorerLimit, cfg.Redis.ExplorerWindow.Duration)
		}
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.Health["redis"] = redisClient.Ping
	}

	// --- Explorer ---
	explorer := esplora.NewClient(esplora.ClientConfig{
		BaseURL:           cfg.Explorer.BaseURL,
		Timeout:           cfg.Explorer.Timeout.Duration,
		RequestsPerSecond: cfg.Explorer.RequestsPerSecond,
		Burst:             cfg.Explorer.Burst,
		UserAgent:         cfg.Explorer.UserAgent,
		Shared:            shared,
		Transport:         o.explorerTransport,
	})

	if len(caches) > 0 {
		deps.Source = source.NewCached(explorer, logger, caches...)
	} else {
		deps.Source = explorer
	}
	deps.Analyzer = analysis.NewAnalyzer(deps.Source, analysis.Options{
		FetchConcurrency: cfg.Analysis.FetchConcurrency,
		MaxFetches:       cfg.Analysis.MaxFetches,
		Network:          network,
	}, logger)

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}

		pool := pgClient.Pool()
		store := postgres.NewReportStore(pool)
		deps.ReportStore = store
		deps.AuditStore = postgres.NewAuditStore(pool)
		deps.Loaders = append(deps.Loaders, storeLoader{store})
		deps.Health["postgres"] = pgClient.Ping
	}

	// --- Report artifacts ---
	var fileSink *report.FileSink
	if cfg.Output.WriteFile {
		fileSink = report.NewFileSink(cfg.Output.Dir)
		deps.Loaders = append(deps.Loaders, fileSink)
	}

	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		blobSink := report.NewBlobSink(s3blob.NewWriter(s3Client), s3blob.NewReader(s3Client), cfg.S3.Prefix)
		deps.Sinks = append(deps.Sinks, blobSink)
		deps.Loaders = append(deps.Loaders, blobSink)
		deps.Health["s3"] = s3Client.Health
	}
	// The local file goes last so a failed upload leaves no file behind.
	if fileSink != nil {
		deps.Sinks = append(deps.Sinks, fileSink)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID, o.notifyClient))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL, o.notifyClient))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}

// storeLoader adapts a ReportStore to report.Loader.
type storeLoader struct {
	store domain.ReportStore
}

func (l storeLoader) Load(ctx context.Context, coinjoin domain.Txid) (*domain.MatchReport, error) {
	return l.store.Get(ctx, coinjoin)
}
