package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/FolioMarket/server/internal/auth"
	"github.com/FolioMarket/server/internal/config"
	"github.com/FolioMarket/server/internal/logger"
	"github.com/FolioMarket/server/internal/metrics"
	"github.com/FolioMarket/server/internal/ratelimit"
	"github.com/FolioMarket/server/internal/settlement"
	"github.com/FolioMarket/server/internal/storage"
)

var (
	serverStartTime = time.Now()
)

// Server wires handlers, middleware, and dependencies.
type Server struct {
	handlers
	httpServer *http.Server
}

type handlers struct {
	cfg        *config.Config
	verifier   *auth.WebhookVerifier
	settlement *settlement.Service
	store      storage.Store
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

// New builds the HTTP server with configured router.
func New(cfg *config.Config, verifier *auth.WebhookVerifier, settlementSvc *settlement.Service, store storage.Store, metricsCollector *metrics.Metrics, appLogger zerolog.Logger) *Server {
	router := chi.NewRouter()

	s := &Server{
		handlers: handlers{
			cfg:        cfg,
			verifier:   verifier,
			settlement: settlementSvc,
			store:      store,
			metrics:    metricsCollector,
			logger:     appLogger,
		},
		httpServer: &http.Server{
			Addr:         cfg.Server.Address,
			ReadTimeout:  cfg.Server.ReadTimeout.Duration,
			WriteTimeout: cfg.Server.WriteTimeout.Duration,
			IdleTimeout:  cfg.Server.IdleTimeout.Duration,
			Handler:      router,
		},
	}

	ConfigureRouter(router, cfg, verifier, settlementSvc, store, metricsCollector, appLogger)

	return s
}

// ConfigureRouter attaches FolioMarket routes to an existing router.
func ConfigureRouter(router chi.Router, cfg *config.Config, verifier *auth.WebhookVerifier, settlementSvc *settlement.Service, store storage.Store, metricsCollector *metrics.Metrics, appLogger zerolog.Logger) {
	if router == nil {
		return
	}

	handler := handlers{
		cfg:        cfg,
		verifier:   verifier,
		settlement: settlementSvc,
		store:      store,
		metrics:    metricsCollector,
		logger:     appLogger,
	}

	if len(cfg.Server.CORSAllowedOrigins) > 0 {
		router.Use(cors.New(cors.Options{
			AllowedOrigins:   cfg.Server.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: false,
			MaxAge:           300,
		}).Handler)
	}

	// Security headers middleware (applied first for all responses)
	router.Use(securityHeadersMiddleware)

	// Structured logging middleware (BEFORE RequestID for context propagation)
	router.Use(logger.Middleware(appLogger))
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	// Rate limiting middleware (applied globally). The webhook endpoint is
	// reachable from the public internet, so the limiters sit in front of
	// signature verification.
	rateLimitCfg := ratelimit.FromConfig(cfg.RateLimit, metricsCollector)
	router.Use(ratelimit.GlobalLimiter(rateLimitCfg))
	router.Use(ratelimit.IPLimiter(rateLimitCfg))

	// NOTE: Timeout middleware is applied per route group below so health
	// checks don't inherit the settlement timeout.

	// Lightweight endpoints with 5s timeout (health checks, metrics)
	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(5 * time.Second))
		r.Get("/foliomarket-health", handler.health)
		// Prometheus metrics endpoint, protected by optional admin API key
		r.With(adminAPIAuth(cfg.Server.AdminAPIKey)).Handle("/metrics", promhttp.Handler())
	})

	// Settlement and read endpoints with 30s timeout (storage round trips)
	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))

		// Payment gateway webhook (NOT versioned: the gateway needs a
		// stable URL across deployments)
		r.Get("/webhook/payments", handler.paymentWebhookInfo)
		r.Post("/webhook/payments", handler.handlePaymentWebhook)

		r.Get("/sellers/{sellerID}/ledger", handler.getSellerLedger)
		r.Get("/buyers/{buyerID}/library", handler.getBuyerLibrary)
		r.Get("/transactions/verify", handler.verifyTransaction)
	})
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
