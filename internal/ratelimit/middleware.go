package ratelimit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/FolioMarket/server/internal/config"
	"github.com/FolioMarket/server/internal/metrics"
)

// Config holds rate limiting configuration. The webhook endpoint is open to
// the internet by design, so these limiters are the only traffic control in
// front of signature verification.
type Config struct {
	// Global rate limiting (across all callers)
	GlobalEnabled bool
	GlobalLimit   int           // requests per window
	GlobalWindow  time.Duration // time window

	// Per-IP rate limiting
	PerIPEnabled bool
	PerIPLimit   int
	PerIPWindow  time.Duration

	// Metrics collector (optional)
	Metrics *metrics.Metrics
}

// rateLimitResponse represents the JSON error response for rate limit exceeded.
type rateLimitResponse struct {
	Error             string `json:"error"`
	Message           string `json:"message"`
	RetryAfterSeconds int    `json:"retry_after_seconds"`
}

// DefaultConfig returns sensible default rate limits. Generous enough for a
// busy storefront plus gateway redeliveries, tight enough to stop obvious
// spam.
func DefaultConfig() Config {
	return Config{
		// Global: 1000 req/min prevents DoS
		GlobalEnabled: true,
		GlobalLimit:   1000,
		GlobalWindow:  1 * time.Minute,

		// Per-IP: 120 req/min (2 req/sec avg)
		PerIPEnabled: true,
		PerIPLimit:   120,
		PerIPWindow:  1 * time.Minute,
	}
}

// FromConfig converts application config into limiter config.
func FromConfig(cfg config.RateLimitConfig, m *metrics.Metrics) Config {
	out := DefaultConfig()
	out.GlobalEnabled = cfg.GlobalEnabled
	out.PerIPEnabled = cfg.PerIPEnabled
	out.Metrics = m
	if cfg.GlobalLimit > 0 {
		out.GlobalLimit = cfg.GlobalLimit
	}
	if cfg.GlobalWindow.Duration > 0 {
		out.GlobalWindow = cfg.GlobalWindow.Duration
	}
	if cfg.PerIPLimit > 0 {
		out.PerIPLimit = cfg.PerIPLimit
	}
	if cfg.PerIPWindow.Duration > 0 {
		out.PerIPWindow = cfg.PerIPWindow.Duration
	}
	return out
}

// createRateLimitHandler creates a standardized rate limit handler function
// shared by the global and per-IP limiters.
func createRateLimitHandler(limitType string, windowSeconds int, metricsCollector *metrics.Metrics) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		metricsCollector.ObserveRateLimit(limitType)

		var message string
		switch limitType {
		case "global":
			message = "Global rate limit exceeded. Please try again later."
		case "per_ip":
			message = "IP rate limit exceeded. Please try again later."
		default:
			message = "Rate limit exceeded. Please try again later."
		}

		response := rateLimitResponse{
			Error:             "rate_limit_exceeded",
			Message:           message,
			RetryAfterSeconds: windowSeconds,
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", fmt.Sprintf("%d", windowSeconds))
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(response)
	}
}

// GlobalLimiter creates a global rate limiter middleware.
func GlobalLimiter(cfg Config) func(http.Handler) http.Handler {
	if !cfg.GlobalEnabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return httprate.Limit(
		cfg.GlobalLimit,
		cfg.GlobalWindow,
		httprate.WithLimitHandler(
			createRateLimitHandler("global", int(cfg.GlobalWindow.Seconds()), cfg.Metrics),
		),
	)
}

// IPLimiter creates a per-IP rate limiter middleware.
func IPLimiter(cfg Config) func(http.Handler) http.Handler {
	if !cfg.PerIPEnabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return httprate.Limit(
		cfg.PerIPLimit,
		cfg.PerIPWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(
			createRateLimitHandler("per_ip", int(cfg.PerIPWindow.Seconds()), cfg.Metrics),
		),
	)
}
