package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for Folio Market.
type Metrics struct {
	// Webhook ingestion metrics
	WebhooksTotal   *prometheus.CounterVec
	WebhookDuration *prometheus.HistogramVec

	// Settlement metrics
	SettlementsTotal   *prometheus.CounterVec
	SettlementDuration *prometheus.HistogramVec
	SaleAmountTotal    *prometheus.CounterVec
	LedgerCreditsTotal *prometheus.CounterVec

	// Notification delivery metrics
	NotificationsTotal       *prometheus.CounterVec
	NotificationRetriesTotal *prometheus.CounterVec
	NotificationDuration     *prometheus.HistogramVec

	// Rate limiting metrics
	RateLimitHitsTotal *prometheus.CounterVec

	// Database metrics
	DBQueryDuration     *prometheus.HistogramVec
	DBConnectionsActive prometheus.Gauge
	StorageErrorsTotal  *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		// Webhook ingestion metrics
		WebhooksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_webhooks_total",
				Help: "Total number of webhook deliveries received",
			},
			[]string{"event_type", "outcome"},
		),
		WebhookDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "folio_webhook_duration_seconds",
				Help:    "Time taken to process a webhook delivery end to end",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"event_type"},
		),

		// Settlement metrics
		SettlementsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_settlements_total",
				Help: "Total number of settlement attempts",
			},
			[]string{"result"},
		),
		SettlementDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "folio_settlement_duration_seconds",
				Help:    "Time from event acceptance to completed settlement (supports p50, p95, p99 percentiles)",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"result"},
		),
		SaleAmountTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_sale_amount_total",
				Help: "Total gross sale amount in atomic currency units",
			},
			[]string{"currency"},
		),
		LedgerCreditsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_ledger_credits_total",
				Help: "Total number of seller ledger credits applied",
			},
			[]string{"currency"},
		),

		// Notification delivery metrics
		NotificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_notifications_total",
				Help: "Total number of sale notification deliveries",
			},
			[]string{"status"},
		),
		NotificationRetriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_notification_retries_total",
				Help: "Total number of notification retry attempts",
			},
			[]string{"attempt"},
		),
		NotificationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "folio_notification_duration_seconds",
				Help:    "Time taken for notification delivery",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"status"},
		),

		// Rate limiting metrics
		RateLimitHitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_rate_limit_hits_total",
				Help: "Total number of rate limit hits",
			},
			[]string{"limit_type"},
		),

		// Database metrics
		DBQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "folio_db_query_duration_seconds",
				Help:    "Database query duration (supports p50, p95, p99 percentiles)",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5, 1, 2},
			},
			[]string{"operation", "backend"},
		),
		DBConnectionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "folio_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		StorageErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_storage_errors_total",
				Help: "Total number of storage operation failures",
			},
			[]string{"operation", "backend"},
		),
	}
}

// ObserveWebhook records a webhook delivery and its outcome.
// Outcomes: accepted, ignored, duplicate, malformed, unauthorized, failed.
func (m *Metrics) ObserveWebhook(eventType, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.WebhooksTotal.WithLabelValues(eventType, outcome).Inc()
	m.WebhookDuration.WithLabelValues(eventType).Observe(duration.Seconds())
}

// ObserveSettlement records a settlement attempt and its duration.
func (m *Metrics) ObserveSettlement(result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.SettlementsTotal.WithLabelValues(result).Inc()
	m.SettlementDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// ObserveSale records a completed sale credit.
func (m *Metrics) ObserveSale(currency string, grossAtomic int64) {
	if m == nil {
		return
	}
	m.SaleAmountTotal.WithLabelValues(currency).Add(float64(grossAtomic))
	m.LedgerCreditsTotal.WithLabelValues(currency).Inc()
}

// ObserveNotification records a notification delivery attempt.
func (m *Metrics) ObserveNotification(status string, duration time.Duration, attempt int) {
	if m == nil {
		return
	}
	m.NotificationsTotal.WithLabelValues(status).Inc()
	m.NotificationDuration.WithLabelValues(status).Observe(duration.Seconds())
	if attempt > 1 {
		m.NotificationRetriesTotal.WithLabelValues(formatAttempt(attempt)).Inc()
	}
}

// ObserveRateLimit records a rate limit hit.
func (m *Metrics) ObserveRateLimit(limitType string) {
	if m == nil {
		return
	}
	m.RateLimitHitsTotal.WithLabelValues(limitType).Inc()
}

// ObserveDBQuery records a database query.
func (m *Metrics) ObserveDBQuery(operation, backend string, duration time.Duration) {
	if m == nil {
		return
	}
	m.DBQueryDuration.WithLabelValues(operation, backend).Observe(duration.Seconds())
}

// ObserveStorageError records a storage operation failure.
func (m *Metrics) ObserveStorageError(operation, backend string) {
	if m == nil {
		return
	}
	m.StorageErrorsTotal.WithLabelValues(operation, backend).Inc()
}

func formatAttempt(attempt int) string {
	if attempt <= 5 {
		return string(rune('0' + attempt))
	}
	return "5+"
}
