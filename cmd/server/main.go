package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/FolioMarket/server/internal/auth"
	"github.com/FolioMarket/server/internal/circuitbreaker"
	"github.com/FolioMarket/server/internal/config"
	"github.com/FolioMarket/server/internal/dbpool"
	"github.com/FolioMarket/server/internal/gateway"
	"github.com/FolioMarket/server/internal/httpserver"
	"github.com/FolioMarket/server/internal/lifecycle"
	"github.com/FolioMarket/server/internal/logger"
	"github.com/FolioMarket/server/internal/metrics"
	"github.com/FolioMarket/server/internal/notify"
	"github.com/FolioMarket/server/internal/payout"
	"github.com/FolioMarket/server/internal/settlement"
	"github.com/FolioMarket/server/internal/storage"
)

func main() {
	// Optional .env for local development; real deployments set env vars.
	_ = godotenv.Load()

	configPath := os.Getenv("FOLIO_CONFIG")
	cfg, err := config.Load(configPath)
	if err != nil {
		fatalBoot("config load failed", err)
	}

	appLogger := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Service:     "folio-market",
		Environment: cfg.Logging.Environment,
	})

	appLogger.Info().
		Str("address", cfg.Server.Address).
		Str("storage_backend", storageBackendName(cfg.Storage.Backend)).
		Str("currency", cfg.Gateway.Currency).
		Int64("platform_fee_bps", cfg.Gateway.PlatformFeeBps).
		Msg("server.starting")

	resources := lifecycle.NewManager()
	metricsCollector := metrics.New(prometheus.DefaultRegisterer)

	storeCfg := storage.StoreConfig{
		Backend:         cfg.Storage.Backend,
		MongoDBURL:      cfg.Storage.MongoDBURL,
		MongoDBDatabase: cfg.Storage.MongoDBDatabase,
		PostgresURL:     cfg.Storage.PostgresURL,
		PostgresPool:    cfg.Storage.PostgresPool,
	}

	// Postgres gets a shared pool so future repositories reuse the same
	// connections. The pool outlives the store, so it closes last.
	var sharedDB *sql.DB
	if cfg.Storage.Backend == "postgres" {
		pool, err := dbpool.NewSharedPool(cfg.Storage.PostgresURL, cfg.Storage.PostgresPool)
		if err != nil {
			fatalBoot("postgres pool init failed", err)
		}
		resources.Register("postgres-pool", pool)
		sharedDB = pool.DB()
	}

	store, err := storage.NewStoreWithDB(storeCfg, sharedDB)
	if err != nil {
		fatalBoot("storage init failed", err)
	}
	resources.Register("storage", store)
	store = storage.NewInstrumentedStore(store, cfg.Storage.Backend, metricsCollector)
	if cfg.Storage.Backend == "" || cfg.Storage.Backend == "memory" {
		appLogger.Warn().
			Msg("server.memory_storage: ledgers will not survive a restart")
	}

	breakers := circuitbreaker.NewManagerFromConfig(cfg.Notifications.Breaker)
	notifier := notify.NewRetryableClient(cfg.Notifications,
		notify.WithLogger(appLogger),
		notify.WithBreakers(breakers),
		notify.WithMetrics(metricsCollector),
	)
	if cfg.Notifications.SaleURL == "" {
		appLogger.Info().Msg("server.notifications_disabled")
	}

	classifier := gateway.NewClassifier(cfg.Gateway.PlatformSellerID, cfg.Gateway.Currency)
	calculator, err := payout.NewCalculator(cfg.Gateway.PlatformFeeBps)
	if err != nil {
		fatalBoot("payout calculator init failed", err)
	}

	settlementSvc := settlement.NewService(classifier, calculator, store, notifier, metricsCollector)
	verifier := auth.NewWebhookVerifier(cfg.Gateway.WebhookSecret)

	server := httpserver.New(cfg, verifier, settlementSvc, store, metricsCollector, appLogger)

	serverErr := make(chan error, 1)
	go func() {
		appLogger.Info().
			Str("address", cfg.Server.Address).
			Msg("server.listening")
		serverErr <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		appLogger.Info().
			Str("signal", sig.String()).
			Msg("server.shutdown_requested")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error().Err(err).Msg("server.listen_failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error().Err(err).Msg("server.shutdown_failed")
	}
	if err := resources.Close(); err != nil {
		appLogger.Error().Err(err).Msg("server.resource_close_failed")
	}

	appLogger.Info().Msg("server.stopped")
}

func storageBackendName(backend string) string {
	if backend == "" {
		return "memory"
	}
	return backend
}

// fatalBoot reports a startup failure before the structured logger exists
// (or when it cannot be trusted) and exits.
func fatalBoot(msg string, err error) {
	log := logger.New(logger.Config{Level: "error", Format: "json", Service: "folio-market"})
	log.Error().
		Err(err).
		Msg("server.boot_failed: " + msg)
	os.Exit(1)
}
