package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/FolioMarket/server/internal/gateway"
	"github.com/FolioMarket/server/internal/logger"
	"github.com/FolioMarket/server/internal/metrics"
	"github.com/FolioMarket/server/internal/notify"
	"github.com/FolioMarket/server/internal/payout"
	"github.com/FolioMarket/server/internal/storage"
)

// Result is the terminal state of one processed event.
type Result string

const (
	// ResultSettled means the seller was credited, the transaction
	// journaled, and the buyer entitled.
	ResultSettled Result = "settled"

	// ResultDuplicate means the transaction reference was already
	// journaled. Acknowledged without re-applying side effects.
	ResultDuplicate Result = "duplicate"

	// ResultIgnored means the event kind or status is not settleable.
	ResultIgnored Result = "ignored"

	// ResultMalformed means required metadata was missing or invalid.
	ResultMalformed Result = "malformed"

	// ResultFailed means a storage operation failed mid-pipeline. The
	// gateway should redeliver; idempotence makes that safe.
	ResultFailed Result = "failed"
)

// Store is the persistence surface settlement needs: the ledger's atomic
// credit, the journal's create-if-absent append, and the idempotent
// entitlement grant.
type Store interface {
	storage.LedgerStore
	storage.Journal
	storage.Library
}

// Service runs the settlement pipeline for classified payment events.
//
// Each event is one short-lived unit of work. There is no in-process lock:
// correctness under concurrent deliveries rests entirely on the store's
// atomicity contracts.
type Service struct {
	classifier *gateway.Classifier
	calculator *payout.Calculator
	store      Store
	notifier   notify.Notifier
	metrics    *metrics.Metrics
}

// NewService constructs the settlement pipeline.
func NewService(classifier *gateway.Classifier, calculator *payout.Calculator, store Store, notifier notify.Notifier, m *metrics.Metrics) *Service {
	if notifier == nil {
		notifier = notify.NoopNotifier{}
	}
	return &Service{
		classifier: classifier,
		calculator: calculator,
		store:      store,
		notifier:   notifier,
		metrics:    m,
	}
}

// ProcessEvent drives one event through the state machine:
//
//	classified (ignored | malformed | valid) → duplicate-checked →
//	journaled + entitled + credited → notified (best-effort)
//
// The journal append runs first because it is the de-duplication gate: a
// reference that is already journaled short-circuits to success without
// touching the ledger. The entitlement grant runs before the credit so a
// compensating journal delete after a failure can never re-admit an event
// whose credit already applied.
func (s *Service) ProcessEvent(ctx context.Context, ev gateway.PaymentEvent) (Result, error) {
	start := time.Now()
	result, err := s.process(ctx, ev)
	s.metrics.ObserveSettlement(string(result), time.Since(start))
	return result, err
}

func (s *Service) process(ctx context.Context, ev gateway.PaymentEvent) (Result, error) {
	log := logger.FromContext(ctx)

	checkout, outcome, err := s.classifier.Classify(ev)
	switch outcome {
	case gateway.OutcomeIgnored:
		log.Debug().
			Str("event", ev.Event).
			Str("status", ev.Data.Status).
			Msg("settlement.event_ignored")
		return ResultIgnored, nil
	case gateway.OutcomeMalformed:
		return ResultMalformed, err
	}

	split, err := s.calculator.Compute(checkout.Amount, checkout.PlatformOwned)
	if err != nil {
		return ResultMalformed, err
	}

	now := time.Now().UTC()
	record := storage.TransactionRecord{
		TxRef:         checkout.TxRef,
		BuyerID:       checkout.BuyerID,
		BuyerEmail:    checkout.BuyerEmail,
		BuyerName:     checkout.BuyerName,
		SellerID:      checkout.SellerID,
		SellerEmail:   checkout.SellerEmail,
		SellerName:    checkout.SellerName,
		BookID:        checkout.BookID,
		BookTitle:     checkout.BookTitle,
		GrossAmount:   checkout.Amount,
		SellerAmount:  split.SellerAmount,
		PlatformFee:   split.PlatformFee,
		PaymentMethod: checkout.PaymentMethod,
		Status:        storage.TransactionCompleted,
		CreatedAt:     now,
	}

	// De-duplication gate. Exactly one delivery per reference gets past
	// this append; the rest acknowledge without side effects.
	if err := s.store.AppendTransaction(ctx, record); err != nil {
		if errors.Is(err, storage.ErrDuplicateTransaction) {
			log.Info().
				Str("tx_ref", logger.TruncateRef(checkout.TxRef)).
				Msg("settlement.duplicate_delivery")
			return ResultDuplicate, nil
		}
		return ResultFailed, fmt.Errorf("journal transaction: %w", err)
	}

	if err := s.store.GrantEntitlement(ctx, checkout.BuyerID, storage.LibraryEntry{
		BookID:      checkout.BookID,
		BookTitle:   checkout.BookTitle,
		AmountPaid:  checkout.Amount,
		TxRef:       checkout.TxRef,
		PurchasedAt: now,
	}); err != nil {
		s.unwindJournal(ctx, checkout.TxRef)
		return ResultFailed, fmt.Errorf("grant entitlement: %w", err)
	}

	if err := s.store.CreditLedger(ctx, checkout.SellerID, split.SellerAmount, now); err != nil {
		s.unwindJournal(ctx, checkout.TxRef)
		return ResultFailed, fmt.Errorf("credit ledger: %w", err)
	}

	s.metrics.ObserveSale(checkout.Amount.Asset.Code, checkout.Amount.Atomic)
	log.Info().
		Str("tx_ref", logger.TruncateRef(checkout.TxRef)).
		Str("seller_id", checkout.SellerID).
		Str("book_id", checkout.BookID).
		Str("gross", checkout.Amount.ToMajor()).
		Str("seller_amount", split.SellerAmount.ToMajor()).
		Str("platform_fee", split.PlatformFee.ToMajor()).
		Bool("platform_owned", checkout.PlatformOwned).
		Msg("settlement.completed")

	s.notifySale(ctx, checkout, split, now)
	return ResultSettled, nil
}

// unwindJournal deletes the journal entry after a downstream failure so the
// gateway's redelivery can run the pipeline again. A failed delete strands
// the reference: the log line carries it so the record can be repaired.
func (s *Service) unwindJournal(ctx context.Context, txRef string) {
	if err := s.store.DeleteTransaction(ctx, txRef); err != nil {
		log := logger.FromContext(ctx)
		log.Error().
			Err(err).
			Str("tx_ref", txRef).
			Msg("settlement.journal_unwind_failed")
	}
}

// notifySale dispatches the best-effort seller notification. The new
// balance read is advisory; if it fails the notification still goes out
// with the earning alone.
func (s *Service) notifySale(ctx context.Context, checkout gateway.CheckoutEvent, split payout.Split, soldAt time.Time) {
	notification := notify.SaleNotification{
		TxRef:         checkout.TxRef,
		SellerID:      checkout.SellerID,
		SellerEmail:   checkout.SellerEmail,
		SellerName:    checkout.SellerName,
		BuyerName:     checkout.BuyerName,
		BookID:        checkout.BookID,
		BookTitle:     checkout.BookTitle,
		GrossAmount:   checkout.Amount.ToMajor(),
		SellerEarning: split.SellerAmount.ToMajor(),
		Currency:      checkout.Amount.Asset.Code,
		SoldAt:        soldAt,
	}
	if ledger, err := s.store.GetLedger(ctx, checkout.SellerID); err == nil {
		notification.NewBalance = ledger.Balance.ToMajor()
	}
	s.notifier.SaleCompleted(ctx, notification)
}
