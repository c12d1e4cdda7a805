package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/skyline-trading/weatherbot/internal/blob/s3"
	"github.com/skyline-trading/weatherbot/internal/cache/memory"
	"github.com/skyline-trading/weatherbot/internal/cache/redis"
	"github.com/skyline-trading/weatherbot/internal/calibration"
	"github.com/skyline-trading/weatherbot/internal/config"
	"github.com/skyline-trading/weatherbot/internal/domain"
	"github.com/skyline-trading/weatherbot/internal/forecast"
	"github.com/skyline-trading/weatherbot/internal/metrics"
	"github.com/skyline-trading/weatherbot/internal/notify"
	"github.com/skyline-trading/weatherbot/internal/platform/kalshi"
	"github.com/skyline-trading/weatherbot/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency the application modes
// need. Constructed by Wire, torn down by the returned cleanup function.
type Dependencies struct {
	Exchange  *kalshi.Client
	Forecasts *forecast.Aggregator
	Observer  *forecast.NWS

	Ensembles domain.EnsembleCache
	Books     domain.BookCache
	Locks     domain.LockManager

	Trades       domain.TradeStore
	Settlements  domain.SettlementStore
	ForecastErrs domain.ForecastErrorStore
	Archiver     domain.Archiver

	Calibration domain.Calibration
	Notifier    *notify.Notifier
	Metrics     *metrics.Metrics
}

// needsPostgres reports whether the mode requires persistence. Monitor mode
// runs without a database.
func needsPostgres(mode string) bool {
	switch mode {
	case "trade", "paper":
		return true
	default:
		return false
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration, plus a cleanup function for shutdown.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Exchange client ---
	exchange := kalshi.NewClient(cfg.Kalshi.BaseURL, cfg.Kalshi.ApiKeyID, cfg.Kalshi.RequestsPerSecond, logger)
	if cfg.Kalshi.RsaPrivateKeyPath != "" {
		if err := exchange.LoadRSAPrivateKey(cfg.Kalshi.RsaPrivateKeyPath); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: kalshi key: %w", err)
		}
	}
	exchange.SetCacheTTL(cfg.Kalshi.OrdersCacheTTL.Duration)
	deps.Exchange = exchange

	// --- PostgreSQL (only for modes that need persistence) ---
	if needsPostgres(cfg.Mode) && (cfg.Postgres.DSN != "" || cfg.Postgres.Host != "") {
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

		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}

		pool := pgClient.Pool()
		deps.Trades = postgres.NewTradeStore(pool)
		deps.Settlements = postgres.NewSettlementStore(pool)
		deps.ForecastErrs = postgres.NewForecastErrorStore(pool)
	}

	// --- Caches and locks: Redis when configured, in-process otherwise ---
	if cfg.Redis.Addr != "" {
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

		deps.Ensembles = redis.NewEnsembleCache(redisClient)
		deps.Books = redis.NewBookCache(redisClient)
		deps.Locks = redis.NewLockManager(redisClient, logger)
	} else {
		logger.Info("redis not configured, using in-process caches")
		deps.Ensembles = memory.NewEnsembleCache()
		deps.Books = memory.NewBookCache()
		deps.Locks = memory.NewLockManager()
	}

	// --- S3 blob storage for daily archives ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		if deps.Trades != nil && deps.Settlements != nil {
			writer := s3blob.NewWriter(s3Client, cfg.S3.KeyPrefix, logger)
			deps.Archiver = s3blob.NewArchiver(writer, deps.Trades, deps.Settlements)
		}
	}

	// --- Forecast sources and aggregator ---
	sources, observer := forecast.BuildSources(forecast.SourcesConfig{
		EnableNWS:            cfg.Forecast.EnableNWS,
		EnableOpenMeteo:      cfg.Forecast.EnableOpenMeteo,
		EnableTomorrowIO:     cfg.Forecast.EnableTomorrowIO,
		EnablePirateWeather:  cfg.Forecast.EnablePirateWeather,
		EnableVisualCrossing: cfg.Forecast.EnableVisualCrossing,
		TomorrowIOKey:        cfg.Forecast.TomorrowIOKey,
		PirateWeatherKey:     cfg.Forecast.PirateWeatherKey,
		VisualCrossingKey:    cfg.Forecast.VisualCrossingKey,
		Timeout:              cfg.Forecast.SourceTimeout.Duration,
	}, logger)
	deps.Observer = observer
	deps.Forecasts = forecast.NewAggregator(sources, forecast.AggregatorConfig{
		SourceTimeout:    cfg.Forecast.SourceTimeout.Duration,
		AgeHalfLifeHours: cfg.Forecast.AgeHalfLifeHours,
		NWSWeight:        cfg.Forecast.NWSWeight,
		SourceWeights:    cfg.Forecast.SourceWeights,
		CacheTTL:         cfg.Forecast.EnsembleCacheTTL.Duration,
	}, deps.Ensembles, logger)

	// --- Calibration ---
	deps.Calibration = calibration.New(calibration.DefaultConfig(), logger)

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
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Metrics ---
	if cfg.Metrics.Enabled {
		deps.Metrics = metrics.New(nil)
	}

	return deps, cleanup, nil
}
