package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bazaar/internal/amm"
	"bazaar/internal/api"
	"bazaar/internal/catalog"
	"bazaar/internal/config"
	"bazaar/internal/database"
	"bazaar/internal/domain"
	"bazaar/internal/events"
	"bazaar/internal/ledger"
	"bazaar/internal/logging"
	"bazaar/internal/metrics"
	"bazaar/internal/models"
	"bazaar/internal/repository"
	"bazaar/internal/settlement"
	"bazaar/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	bus := events.NewBus()

	balances := ledger.New(bus)
	for _, account := range cfg.Market.Accounts {
		if err := balances.Mint(models.AssetID(account.Asset), models.AccountID(account.Account), account.Amount); err != nil {
			return fmt.Errorf("seed account %s: %w", account.Account, err)
		}
	}

	exchange := amm.NewExchange(balances, cfg.Market.FeeRateBps, bus)
	for _, pool := range cfg.Market.Pools {
		if err := exchange.SeedPool(models.AssetID(pool.AssetA), pool.ReserveA, models.AssetID(pool.AssetB), pool.ReserveB); err != nil {
			return fmt.Errorf("seed pool %d/%d: %w", pool.AssetA, pool.AssetB, err)
		}
	}

	cat, err := restoreCatalog(db, &logger)
	if err != nil {
		return err
	}

	engine := settlement.NewEngine(cat, balances, exchange, bus, &logger)

	redisClient := initRedis(cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	journalWorker := worker.NewJournalWorker(db, cat, worker.RetryPolicy{}, &logger)
	journalWorker.Attach(bus)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		journalWorker.Run(ctx)
	}()

	// Seed listings only on first boot; a restored catalog already has them.
	if cat.Len() == 0 {
		if err := seedListings(ctx, engine, cfg.Market.Listings, &logger); err != nil {
			return err
		}
	}

	idem := newIdempotencyStore(cfg, redisClient)

	startMetrics(ctx, cfg, &logger)

	httpServer := api.NewHTTPServer(cfg.API, engine, balances, db, idem, cfg.Exports.Path, &logger)

	err = startServer(ctx, httpServer, cfg, &logger)

	// Give the journal worker its drain window before closing the database.
	<-workerDone
	return err
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

func restoreCatalog(db *database.DB, logger *zerolog.Logger) (*catalog.Catalog, error) {
	records, err := db.ListListings(context.Background())
	if err != nil {
		logger.Error().Err(err).Msg("restore listings")
		return nil, err
	}
	if len(records) == 0 {
		return catalog.New(), nil
	}

	logger.Info().Int("listings", len(records)).Msg("catalog restored")
	return catalog.Restore(records), nil
}

func seedListings(ctx context.Context, engine *settlement.Engine, listings []config.SeedListing, logger *zerolog.Logger) error {
	for _, seed := range listings {
		item := models.Item{Name: seed.Name, Description: seed.Description}
		id, err := engine.CreateItem(ctx, models.AccountID(seed.Owner), seed.Quantity, item, models.AssetID(seed.PriceAsset), seed.PriceAmount)
		if err != nil {
			return fmt.Errorf("seed listing %s: %w", seed.Name, err)
		}
		logger.Info().Uint64("item_id", uint64(id)).Str("name", seed.Name).Msg("listing seeded")
	}
	return nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	if err := repository.Ping(context.Background(), redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func newIdempotencyStore(cfg *config.Config, redisClient *redis.Client) domain.IdempotencyStore {
	ttl := time.Duration(cfg.Market.IdempotencyTTL) * time.Second
	if redisClient != nil {
		return repository.NewRedisIdempotencyStore(redisClient, ttl)
	}
	return repository.NewMemoryIdempotencyStore(ttl)
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServer(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Int("http_port", cfg.API.Port).Msg("marketplace started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}

	logger.Info().Msg("marketplace stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
