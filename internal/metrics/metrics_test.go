package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsInitialization(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	if m == nil {
		t.Fatal("metrics collector should not be nil")
	}

	// Verify all metrics are initialized
	if m.WebhooksTotal == nil {
		t.Error("WebhooksTotal should be initialized")
	}
	if m.SettlementsTotal == nil {
		t.Error("SettlementsTotal should be initialized")
	}
	if m.SettlementDuration == nil {
		t.Error("SettlementDuration should be initialized")
	}
	if m.SaleAmountTotal == nil {
		t.Error("SaleAmountTotal should be initialized")
	}
	if m.LedgerCreditsTotal == nil {
		t.Error("LedgerCreditsTotal should be initialized")
	}
	if m.NotificationsTotal == nil {
		t.Error("NotificationsTotal should be initialized")
	}
	if m.StorageErrorsTotal == nil {
		t.Error("StorageErrorsTotal should be initialized")
	}
}

func TestObserveWebhook(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.ObserveWebhook("payment.completed", "accepted", 5*time.Millisecond)
	m.ObserveWebhook("payment.completed", "duplicate", 2*time.Millisecond)
	m.ObserveWebhook("payment.failed", "ignored", 1*time.Millisecond)

	accepted := promtest.ToFloat64(m.WebhooksTotal.WithLabelValues("payment.completed", "accepted"))
	if accepted != 1 {
		t.Errorf("expected 1 accepted webhook, got %.0f", accepted)
	}

	duplicate := promtest.ToFloat64(m.WebhooksTotal.WithLabelValues("payment.completed", "duplicate"))
	if duplicate != 1 {
		t.Errorf("expected 1 duplicate webhook, got %.0f", duplicate)
	}

	ignored := promtest.ToFloat64(m.WebhooksTotal.WithLabelValues("payment.failed", "ignored"))
	if ignored != 1 {
		t.Errorf("expected 1 ignored webhook, got %.0f", ignored)
	}
}

func TestObserveSale(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.ObserveSale("NGN", 1000000)
	m.ObserveSale("NGN", 250000)

	amount := promtest.ToFloat64(m.SaleAmountTotal.WithLabelValues("NGN"))
	if amount != 1250000 {
		t.Errorf("expected sale amount 1250000, got %.0f", amount)
	}

	credits := promtest.ToFloat64(m.LedgerCreditsTotal.WithLabelValues("NGN"))
	if credits != 2 {
		t.Errorf("expected 2 ledger credits, got %.0f", credits)
	}
}

func TestObserveNotification(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	// First attempt succeeds
	m.ObserveNotification("success", 500*time.Millisecond, 1)

	count := promtest.ToFloat64(m.NotificationsTotal.WithLabelValues("success"))
	if count != 1 {
		t.Errorf("expected 1 notification delivery, got %.0f", count)
	}

	// Retries are only recorded when attempt > 1
	m.ObserveNotification("failed", 2*time.Second, 3)

	retries := promtest.ToFloat64(m.NotificationRetriesTotal.WithLabelValues("3"))
	if retries != 1 {
		t.Errorf("expected 1 notification retry record, got %.0f", retries)
	}
}

func TestObserveSettlement(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.ObserveSettlement("credited", 20*time.Millisecond)

	count := promtest.ToFloat64(m.SettlementsTotal.WithLabelValues("credited"))
	if count != 1 {
		t.Errorf("expected 1 settlement, got %.0f", count)
	}
}

func TestObserveRateLimit(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.ObserveRateLimit("per_ip")

	hits := promtest.ToFloat64(m.RateLimitHitsTotal.WithLabelValues("per_ip"))
	if hits != 1 {
		t.Errorf("expected 1 rate limit hit, got %.0f", hits)
	}
}

func TestObserveStorageError(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.ObserveStorageError("credit_ledger", "mongodb")

	errs := promtest.ToFloat64(m.StorageErrorsTotal.WithLabelValues("credit_ledger", "mongodb"))
	if errs != 1 {
		t.Errorf("expected 1 storage error, got %.0f", errs)
	}
}

func TestDBQueryHelpers(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	done := MeasureDBQuery(m, "credit_ledger", "mongodb")
	done()
	RecordDBQuery(m, "credit_ledger", "mongodb", 3*time.Millisecond)

	count := promtest.CollectAndCount(m.DBQueryDuration)
	if count == 0 {
		t.Error("expected db query duration samples to be recorded")
	}

	// Nil collector short-circuits
	MeasureDBQuery(nil, "credit_ledger", "mongodb")()
	RecordDBQuery(nil, "credit_ledger", "mongodb", time.Millisecond)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics

	// All observers must be no-ops on a nil collector
	m.ObserveWebhook("payment.completed", "accepted", time.Millisecond)
	m.ObserveSettlement("credited", time.Millisecond)
	m.ObserveSale("NGN", 100)
	m.ObserveNotification("success", time.Millisecond, 1)
	m.ObserveRateLimit("global")
	m.ObserveDBQuery("get_ledger", "memory", time.Millisecond)
	m.ObserveStorageError("append_journal", "postgres")
}
