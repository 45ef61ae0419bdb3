package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/quantpair/pairtrader/internal/cache/redis"
	"github.com/quantpair/pairtrader/internal/config"
	"github.com/quantpair/pairtrader/internal/domain"
	"github.com/quantpair/pairtrader/internal/feed"
	"github.com/quantpair/pairtrader/internal/notify"
	"github.com/quantpair/pairtrader/internal/store/postgres"
)

// Dependencies bundles the concrete implementations the application modes
// operate on. Wire constructs it; the returned cleanup function tears it
// down.
type Dependencies struct {
	// Feed is the price source, with write-through mirroring into the Redis
	// price cache.
	Feed domain.PriceFeed

	// Caches and messaging
	PriceCache    domain.PriceCache
	BaselineCache domain.BaselineCache
	Bus           domain.EventBus

	// TradeStore is nil when persistence is disabled.
	TradeStore domain.TradeStore

	// Notifier is always non-nil; without configured channels it is a no-op.
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them with a cleanup function to be called on
// shutdown.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.PriceCache = redis.NewPriceCache(redisClient)
	deps.BaselineCache = redis.NewBaselineCache(redisClient)
	deps.Bus = redis.NewEventBus(redisClient)

	// --- PostgreSQL (optional ledger persistence) ---
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
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		deps.TradeStore = postgres.NewTradeStore(pgClient.Pool())
	}

	// --- Price feed ---
	quoteClient := feed.NewClient(feed.Config{
		BaseURL:  cfg.Feed.BaseURL,
		APIKey:   cfg.Feed.APIKey,
		Exchange: cfg.Feed.Exchange,
		Timeout:  cfg.Feed.Timeout.Duration,
	})
	deps.Feed = feed.NewCachedFeed(quoteClient, deps.PriceCache, cfg.Feed.CacheMaxStale.Duration, logger)

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.New(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
