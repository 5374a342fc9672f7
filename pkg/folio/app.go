package folio

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/FolioMarket/server/internal/auth"
	"github.com/FolioMarket/server/internal/circuitbreaker"
	"github.com/FolioMarket/server/internal/config"
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

// App wires the FolioMarket settlement components for reuse or standalone
// serving.
type App struct {
	Config     *config.Config
	Store      storage.Store
	Notifier   notify.Notifier
	Settlement *settlement.Service

	router           chi.Router
	resourceManager  *lifecycle.Manager
	metricsCollector *metrics.Metrics
}

// Option configures App construction.
type Option func(*options)

type options struct {
	store    storage.Store
	notifier notify.Notifier
	router   chi.Router
}

// WithStore sets a custom storage backend.
func WithStore(store storage.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithNotifier injects a seller notification client.
func WithNotifier(notifier notify.Notifier) Option {
	return func(o *options) {
		o.notifier = notifier
	}
}

// WithRouter allows callers to provide an existing chi.Router to register routes onto.
func WithRouter(router chi.Router) Option {
	return func(o *options) {
		o.router = router
	}
}

// NewApp assembles the settlement pipeline and its HTTP surface for embedding.
func NewApp(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("folio: config required")
	}

	optState := options{}
	for _, opt := range opts {
		opt(&optState)
	}

	app := &App{
		Config:          cfg,
		resourceManager: lifecycle.NewManager(),
	}

	metricsCollector := metrics.New(prometheus.DefaultRegisterer)
	app.metricsCollector = metricsCollector

	if optState.store != nil {
		app.Store = optState.store
	} else {
		store, err := storage.NewStore(storage.StoreConfig{
			Backend:         cfg.Storage.Backend,
			MongoDBURL:      cfg.Storage.MongoDBURL,
			MongoDBDatabase: cfg.Storage.MongoDBDatabase,
			PostgresURL:     cfg.Storage.PostgresURL,
			PostgresPool:    cfg.Storage.PostgresPool,
		})
		if err != nil {
			return nil, err
		}
		app.resourceManager.Register("storage", store)
		app.Store = storage.NewInstrumentedStore(store, cfg.Storage.Backend, metricsCollector)
		if cfg.Storage.Backend == "" || cfg.Storage.Backend == "memory" {
			log.Warn().
				Msg("folio: using in-memory store; ledgers will not survive a restart")
		}
	}

	appLogger := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Service:     "folio-market-embedded",
		Environment: cfg.Logging.Environment,
	})

	if optState.notifier != nil {
		app.Notifier = optState.notifier
	} else {
		breakers := circuitbreaker.NewManagerFromConfig(cfg.Notifications.Breaker)
		app.Notifier = notify.NewRetryableClient(cfg.Notifications,
			notify.WithLogger(appLogger),
			notify.WithBreakers(breakers),
			notify.WithMetrics(metricsCollector),
		)
	}

	classifier := gateway.NewClassifier(cfg.Gateway.PlatformSellerID, cfg.Gateway.Currency)
	calculator, err := payout.NewCalculator(cfg.Gateway.PlatformFeeBps)
	if err != nil {
		return nil, err
	}
	app.Settlement = settlement.NewService(classifier, calculator, app.Store, app.Notifier, metricsCollector)

	if optState.router != nil {
		app.router = optState.router
	} else {
		app.router = chi.NewRouter()
	}

	verifier := auth.NewWebhookVerifier(cfg.Gateway.WebhookSecret)
	httpserver.ConfigureRouter(app.router, cfg, verifier, app.Settlement, app.Store, metricsCollector, appLogger)

	return app, nil
}

// Router returns the chi router with FolioMarket routes registered.
func (a *App) Router() chi.Router {
	return a.router
}

// Handler exposes the router as an http.Handler.
func (a *App) Handler() http.Handler {
	return a.router
}

// Close releases resources owned by the app.
func (a *App) Close() error {
	return a.resourceManager.Close()
}

// NewHandler is a convenience that constructs an App and returns its handler.
func NewHandler(cfg *config.Config, opts ...Option) (http.Handler, func(context.Context) error, error) {
	app, err := NewApp(cfg, opts...)
	if err != nil {
		return nil, nil, err
	}
	shutdown := func(context.Context) error {
		return app.Close()
	}
	return app.Handler(), shutdown, nil
}

// Config is an exported alias of the internal configuration struct for embedding use.
type Config = config.Config

// LoadConfig wraps the internal loader for consumers embedding FolioMarket.
func LoadConfig(path string) (*config.Config, error) {
	return config.Load(path)
}
