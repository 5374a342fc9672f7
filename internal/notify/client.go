package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/FolioMarket/server/internal/circuitbreaker"
	"github.com/FolioMarket/server/internal/config"
	"github.com/FolioMarket/server/internal/httputil"
	"github.com/FolioMarket/server/internal/metrics"
)

// RetryConfig holds notification retry configuration.
type RetryConfig struct {
	Enabled         bool          // retry at all (default: true)
	MaxAttempts     int           // maximum attempts (default: 5)
	InitialInterval time.Duration // initial backoff interval (default: 1s)
	MaxInterval     time.Duration // maximum backoff interval (default: 2m)
	Multiplier      float64       // backoff multiplier (default: 2.0)
	Timeout         time.Duration // per-attempt timeout (default: 10s)
}

// DefaultRetryConfig returns sensible defaults for notification retries.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Enabled:         true,
		MaxAttempts:     5,
		InitialInterval: 1 * time.Second,
		MaxInterval:     2 * time.Minute,
		Multiplier:      2.0,
		Timeout:         10 * time.Second,
	}
}

// RetryableClient posts sale notifications with exponential backoff. The
// whole delivery runs on its own goroutine so a slow notification channel
// never delays a webhook response.
type RetryableClient struct {
	url        string
	headers    map[string]string
	retryCfg   RetryConfig
	httpClient *http.Client
	logger     zerolog.Logger
	breakers   *circuitbreaker.Manager
	metrics    *metrics.Metrics
}

// Option customizes the notification client.
type Option func(*RetryableClient)

// WithLogger sets a custom logger for delivery attempts.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *RetryableClient) {
		c.logger = logger
	}
}

// WithRetryConfig sets custom retry configuration.
func WithRetryConfig(cfg RetryConfig) Option {
	return func(c *RetryableClient) {
		c.retryCfg = cfg
	}
}

// WithBreakers guards deliveries with the circuit breaker manager.
func WithBreakers(breakers *circuitbreaker.Manager) Option {
	return func(c *RetryableClient) {
		c.breakers = breakers
	}
}

// WithMetrics sets the metrics collector for delivery observability.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *RetryableClient) {
		c.metrics = m
	}
}

// NewRetryableClient constructs a notification client. Returns NoopNotifier
// when no sale URL is configured.
func NewRetryableClient(cfg config.NotificationsConfig, opts ...Option) Notifier {
	if cfg.SaleURL == "" {
		return NoopNotifier{}
	}

	retryCfg := DefaultRetryConfig()
	retryCfg.Enabled = cfg.Retry.Enabled
	if cfg.Retry.MaxAttempts > 0 {
		retryCfg.MaxAttempts = cfg.Retry.MaxAttempts
	}
	if cfg.Retry.InitialInterval.Duration > 0 {
		retryCfg.InitialInterval = cfg.Retry.InitialInterval.Duration
	}
	if cfg.Retry.MaxInterval.Duration > 0 {
		retryCfg.MaxInterval = cfg.Retry.MaxInterval.Duration
	}
	if cfg.Retry.Multiplier > 0 {
		retryCfg.Multiplier = cfg.Retry.Multiplier
	}
	if cfg.Timeout.Duration > 0 {
		retryCfg.Timeout = cfg.Timeout.Duration
	}

	client := &RetryableClient{
		url:        cfg.SaleURL,
		headers:    cfg.Headers,
		retryCfg:   retryCfg,
		httpClient: httputil.NewClient(retryCfg.Timeout),
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// SaleCompleted dispatches the notification asynchronously. Failures are
// logged and counted, never returned; settlement has already committed by
// the time this runs.
func (c *RetryableClient) SaleCompleted(ctx context.Context, notification SaleNotification) {
	if c == nil || c.url == "" {
		return
	}

	// EventID is fixed before serialization so every retry carries the same
	// idempotency key.
	if notification.EventID == "" {
		notification.EventID = fmt.Sprintf("sale_%s_%d", notification.TxRef, time.Now().UnixNano())
	}

	go func() {
		payload, err := json.Marshal(notification)
		if err != nil {
			c.logger.Error().Err(err).Msg("notify.serialize_failed")
			return
		}

		if err := c.deliverWithRetry(context.Background(), payload); err != nil {
			c.logger.Error().
				Err(err).
				Str("event_id", notification.EventID).
				Str("tx_ref", notification.TxRef).
				Str("seller_id", notification.SellerID).
				Msg("notify.delivery_failed")
		}
	}()
}

// deliverWithRetry attempts delivery with exponential backoff.
func (c *RetryableClient) deliverWithRetry(ctx context.Context, payload []byte) error {
	startTime := time.Now()
	interval := c.retryCfg.InitialInterval

	maxAttempts := c.retryCfg.MaxAttempts
	if !c.retryCfg.Enabled {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		reqCtx, cancel := context.WithTimeout(ctx, c.retryCfg.Timeout)
		err := c.send(reqCtx, payload)
		cancel()

		if err == nil {
			c.metrics.ObserveNotification("success", time.Since(startTime), attempt)
			if attempt > 1 {
				c.logger.Info().
					Int("attempt", attempt).
					Msg("notify.delivered_after_retry")
			}
			return nil
		}

		lastErr = err
		c.logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", maxAttempts).
			Dur("next_retry", interval).
			Msg("notify.attempt_failed")

		// Don't sleep after the last attempt
		if attempt < maxAttempts {
			time.Sleep(interval)
			interval = time.Duration(float64(interval) * c.retryCfg.Multiplier)
			if interval > c.retryCfg.MaxInterval {
				interval = c.retryCfg.MaxInterval
			}
		}
	}

	c.metrics.ObserveNotification("failed", time.Since(startTime), maxAttempts)
	return fmt.Errorf("notification failed after %d attempts: %w", maxAttempts, lastErr)
}

// send performs one HTTP delivery, wrapped by the circuit breaker when one
// is configured.
func (c *RetryableClient) send(ctx context.Context, payload []byte) error {
	do := func() (interface{}, error) {
		return nil, c.sendHTTP(ctx, payload)
	}
	if c.breakers != nil {
		_, err := c.breakers.Execute(circuitbreaker.ServiceNotify, do)
		return err
	}
	_, err := do()
	return err
}

// sendHTTP performs the actual HTTP request.
func (c *RetryableClient) sendHTTP(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.headers {
		if k == "" || strings.EqualFold(k, "content-type") {
			continue
		}
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("received status %d from %s", resp.StatusCode, c.url)
	}
	return nil
}
