package storage

import (
	"context"
	"errors"
	"time"

	"github.com/FolioMarket/server/internal/metrics"
	"github.com/FolioMarket/server/internal/money"
)

// InstrumentedStore wraps a Store with query timing and error counting.
// Not-found and duplicate results are outcomes, not errors, so they are
// never counted as storage failures.
type InstrumentedStore struct {
	inner   Store
	backend string
	metrics *metrics.Metrics
}

// NewInstrumentedStore decorates a store with metrics. A nil collector
// returns the store unwrapped.
func NewInstrumentedStore(inner Store, backend string, m *metrics.Metrics) Store {
	if m == nil {
		return inner
	}
	if backend == "" {
		backend = "memory"
	}
	return &InstrumentedStore{inner: inner, backend: backend, metrics: m}
}

func (s *InstrumentedStore) observe(operation string, start time.Time, err error) {
	metrics.RecordDBQuery(s.metrics, operation, s.backend, time.Since(start))
	if err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrDuplicateTransaction) {
		s.metrics.ObserveStorageError(operation, s.backend)
	}
}

func (s *InstrumentedStore) CreditLedger(ctx context.Context, sellerID string, earning money.Money, at time.Time) error {
	start := time.Now()
	err := s.inner.CreditLedger(ctx, sellerID, earning, at)
	s.observe("credit_ledger", start, err)
	return err
}

func (s *InstrumentedStore) GetLedger(ctx context.Context, sellerID string) (SellerLedger, error) {
	start := time.Now()
	ledger, err := s.inner.GetLedger(ctx, sellerID)
	s.observe("get_ledger", start, err)
	return ledger, err
}

func (s *InstrumentedStore) AppendTransaction(ctx context.Context, record TransactionRecord) error {
	start := time.Now()
	err := s.inner.AppendTransaction(ctx, record)
	s.observe("append_transaction", start, err)
	return err
}

func (s *InstrumentedStore) GetTransaction(ctx context.Context, txRef string) (TransactionRecord, error) {
	start := time.Now()
	record, err := s.inner.GetTransaction(ctx, txRef)
	s.observe("get_transaction", start, err)
	return record, err
}

func (s *InstrumentedStore) DeleteTransaction(ctx context.Context, txRef string) error {
	start := time.Now()
	err := s.inner.DeleteTransaction(ctx, txRef)
	s.observe("delete_transaction", start, err)
	return err
}

func (s *InstrumentedStore) GrantEntitlement(ctx context.Context, buyerID string, entry LibraryEntry) error {
	start := time.Now()
	err := s.inner.GrantEntitlement(ctx, buyerID, entry)
	s.observe("grant_entitlement", start, err)
	return err
}

func (s *InstrumentedStore) GetLibrary(ctx context.Context, buyerID string) ([]LibraryEntry, error) {
	start := time.Now()
	entries, err := s.inner.GetLibrary(ctx, buyerID)
	s.observe("get_library", start, err)
	return entries, err
}

func (s *InstrumentedStore) Close() error {
	return s.inner.Close()
}
