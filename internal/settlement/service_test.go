package settlement

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/FolioMarket/server/internal/gateway"
	"github.com/FolioMarket/server/internal/money"
	"github.com/FolioMarket/server/internal/notify"
	"github.com/FolioMarket/server/internal/payout"
	"github.com/FolioMarket/server/internal/storage"
)

// recordingNotifier captures notifications for assertions.
type recordingNotifier struct {
	mu    sync.Mutex
	sales []notify.SaleNotification
}

func (n *recordingNotifier) SaleCompleted(_ context.Context, notification notify.SaleNotification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sales = append(n.sales, notification)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sales)
}

// flakyStore wraps a Store and fails chosen operations.
type flakyStore struct {
	Store
	failCredit bool
	failGrant  bool
}

func (f *flakyStore) CreditLedger(ctx context.Context, sellerID string, earning money.Money, at time.Time) error {
	if f.failCredit {
		return fmt.Errorf("storage: connection reset")
	}
	return f.Store.CreditLedger(ctx, sellerID, earning, at)
}

func (f *flakyStore) GrantEntitlement(ctx context.Context, buyerID string, entry storage.LibraryEntry) error {
	if f.failGrant {
		return fmt.Errorf("storage: connection reset")
	}
	return f.Store.GrantEntitlement(ctx, buyerID, entry)
}

func newService(t *testing.T, store Store, notifier notify.Notifier) *Service {
	t.Helper()
	calc, err := payout.NewCalculator(1500)
	if err != nil {
		t.Fatal(err)
	}
	return NewService(gateway.NewClassifier("folio-market", "NGN"), calc, store, notifier, nil)
}

func validEvent(txRef string) gateway.PaymentEvent {
	return gateway.PaymentEvent{
		Event: gateway.EventChargeCompleted,
		Data: gateway.PaymentData{
			Status:      gateway.StatusSuccessful,
			TxRef:       txRef,
			Amount:      10000,
			Currency:    "NGN",
			PaymentType: "card",
			Customer:    gateway.Customer{Email: "ada@example.com", Name: "Ada Obi"},
			Meta: map[string]string{
				gateway.MetaBuyerID:     "buyer-1",
				gateway.MetaBookID:      "book-42",
				gateway.MetaBookTitle:   "Distributed Ledgers",
				gateway.MetaSellerID:    "seller-7",
				gateway.MetaSellerEmail: "chi@example.com",
			},
		},
	}
}

func TestProcessEvent_Settles(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	notifier := &recordingNotifier{}
	svc := newService(t, store, notifier)

	result, err := svc.ProcessEvent(ctx, validEvent("FLW-TX-0001"))
	if err != nil {
		t.Fatalf("ProcessEvent() error = %v", err)
	}
	if result != ResultSettled {
		t.Fatalf("result = %q, want settled", result)
	}

	// 10,000.00 NGN gross at 15%: seller 8,500.00, fee 1,500.00
	ledger, err := store.GetLedger(ctx, "seller-7")
	if err != nil {
		t.Fatal(err)
	}
	if ledger.Balance.Atomic != 850000 {
		t.Errorf("balance = %d, want 850000", ledger.Balance.Atomic)
	}
	if ledger.BooksSold != 1 {
		t.Errorf("books sold = %d, want 1", ledger.BooksSold)
	}

	record, err := store.GetTransaction(ctx, "FLW-TX-0001")
	if err != nil {
		t.Fatal(err)
	}
	if record.PlatformFee.Atomic != 150000 {
		t.Errorf("platform fee = %d, want 150000", record.PlatformFee.Atomic)
	}
	if record.Status != storage.TransactionCompleted {
		t.Errorf("status = %q, want completed", record.Status)
	}

	library, err := store.GetLibrary(ctx, "buyer-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(library) != 1 || library[0].BookID != "book-42" {
		t.Errorf("library = %+v, want one entry for book-42", library)
	}

	if notifier.count() != 1 {
		t.Errorf("notifications = %d, want 1", notifier.count())
	}
	notification := notifier.sales[0]
	if notification.SellerEarning != "8500.00" {
		t.Errorf("notified earning = %q, want 8500.00", notification.SellerEarning)
	}
	if notification.NewBalance != "8500.00" {
		t.Errorf("notified balance = %q, want 8500.00", notification.NewBalance)
	}
}

func TestProcessEvent_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	notifier := &recordingNotifier{}
	svc := newService(t, store, notifier)

	// Deliver the identical event five times
	for i := 0; i < 5; i++ {
		result, err := svc.ProcessEvent(ctx, validEvent("FLW-TX-0001"))
		if err != nil {
			t.Fatalf("delivery %d error = %v", i+1, err)
		}
		want := ResultSettled
		if i > 0 {
			want = ResultDuplicate
		}
		if result != want {
			t.Errorf("delivery %d result = %q, want %q", i+1, result, want)
		}
	}

	ledger, err := store.GetLedger(ctx, "seller-7")
	if err != nil {
		t.Fatal(err)
	}
	if ledger.Balance.Atomic != 850000 {
		t.Errorf("balance = %d after redeliveries, want single credit 850000", ledger.Balance.Atomic)
	}
	if ledger.BooksSold != 1 {
		t.Errorf("books sold = %d, want 1", ledger.BooksSold)
	}

	library, _ := store.GetLibrary(ctx, "buyer-1")
	if len(library) != 1 {
		t.Errorf("library entries = %d, want 1", len(library))
	}
	if notifier.count() != 1 {
		t.Errorf("notifications = %d, want 1", notifier.count())
	}
}

func TestProcessEvent_ConcurrentSameReference(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	svc := newService(t, store, notify.NoopNotifier{})

	const deliveries = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	settled := 0

	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := svc.ProcessEvent(ctx, validEvent("FLW-TX-RACE"))
			if err != nil {
				t.Errorf("ProcessEvent() error = %v", err)
				return
			}
			if result == ResultSettled {
				mu.Lock()
				settled++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if settled != 1 {
		t.Errorf("settled %d times, want exactly 1", settled)
	}
	ledger, err := store.GetLedger(ctx, "seller-7")
	if err != nil {
		t.Fatal(err)
	}
	if ledger.Balance.Atomic != 850000 {
		t.Errorf("balance = %d, want 850000", ledger.Balance.Atomic)
	}
}

func TestProcessEvent_Ignored(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	svc := newService(t, store, notify.NoopNotifier{})

	ev := validEvent("FLW-TX-0002")
	ev.Data.Status = "failed"

	result, err := svc.ProcessEvent(ctx, ev)
	if err != nil {
		t.Fatalf("ProcessEvent() error = %v", err)
	}
	if result != ResultIgnored {
		t.Errorf("result = %q, want ignored", result)
	}

	// No trace anywhere
	if _, err := store.GetTransaction(ctx, "FLW-TX-0002"); err != storage.ErrNotFound {
		t.Error("ignored event must not be journaled")
	}
	if _, err := store.GetLedger(ctx, "seller-7"); err != storage.ErrNotFound {
		t.Error("ignored event must not credit the ledger")
	}
}

func TestProcessEvent_Malformed(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	svc := newService(t, store, notify.NoopNotifier{})

	ev := validEvent("FLW-TX-0003")
	delete(ev.Data.Meta, gateway.MetaSellerID)

	result, err := svc.ProcessEvent(ctx, ev)
	if result != ResultMalformed {
		t.Errorf("result = %q, want malformed", result)
	}
	if err == nil {
		t.Error("malformed event should carry an error")
	}
	if _, err := store.GetTransaction(ctx, "FLW-TX-0003"); err != storage.ErrNotFound {
		t.Error("malformed event must not be journaled")
	}
}

func TestProcessEvent_PlatformOwned(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	svc := newService(t, store, notify.NoopNotifier{})

	ev := validEvent("FLW-TX-0004")
	ev.Data.Amount = 5000
	ev.Data.Meta[gateway.MetaSellerID] = "folio-market"

	result, err := svc.ProcessEvent(ctx, ev)
	if err != nil || result != ResultSettled {
		t.Fatalf("ProcessEvent() = %q, %v", result, err)
	}

	// Full gross to the platform ledger, zero fee
	ledger, err := store.GetLedger(ctx, "folio-market")
	if err != nil {
		t.Fatal(err)
	}
	if ledger.Balance.Atomic != 500000 {
		t.Errorf("platform balance = %d, want 500000", ledger.Balance.Atomic)
	}
	record, _ := store.GetTransaction(ctx, "FLW-TX-0004")
	if record.PlatformFee.Atomic != 0 {
		t.Errorf("platform fee = %d, want 0", record.PlatformFee.Atomic)
	}
}

func TestProcessEvent_CreditFailureUnwindsJournal(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemoryStore()
	flaky := &flakyStore{Store: mem, failCredit: true}
	svc := newService(t, flaky, notify.NoopNotifier{})

	result, err := svc.ProcessEvent(ctx, validEvent("FLW-TX-0005"))
	if result != ResultFailed {
		t.Fatalf("result = %q, want failed", result)
	}
	if err == nil {
		t.Fatal("expected storage error")
	}

	// Journal was unwound so the redelivery can reprocess
	if _, err := mem.GetTransaction(ctx, "FLW-TX-0005"); err != storage.ErrNotFound {
		t.Error("journal entry should be deleted after credit failure")
	}

	// Redelivery succeeds once storage recovers, crediting exactly once
	flaky.failCredit = false
	result, err = svc.ProcessEvent(ctx, validEvent("FLW-TX-0005"))
	if err != nil || result != ResultSettled {
		t.Fatalf("redelivery = %q, %v", result, err)
	}
	ledger, err := mem.GetLedger(ctx, "seller-7")
	if err != nil {
		t.Fatal(err)
	}
	if ledger.Balance.Atomic != 850000 {
		t.Errorf("balance = %d, want 850000", ledger.Balance.Atomic)
	}
}

func TestProcessEvent_GrantFailureUnwindsJournal(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemoryStore()
	flaky := &flakyStore{Store: mem, failGrant: true}
	svc := newService(t, flaky, notify.NoopNotifier{})

	result, _ := svc.ProcessEvent(ctx, validEvent("FLW-TX-0006"))
	if result != ResultFailed {
		t.Fatalf("result = %q, want failed", result)
	}

	// Nothing credited, journal unwound
	if _, err := mem.GetLedger(ctx, "seller-7"); err != storage.ErrNotFound {
		t.Error("grant failure must not leave a credit behind")
	}
	if _, err := mem.GetTransaction(ctx, "FLW-TX-0006"); err != storage.ErrNotFound {
		t.Error("journal entry should be deleted after grant failure")
	}

	flaky.failGrant = false
	result, err := svc.ProcessEvent(ctx, validEvent("FLW-TX-0006"))
	if err != nil || result != ResultSettled {
		t.Fatalf("redelivery = %q, %v", result, err)
	}
}

func TestProcessEvent_SettlementSurvivesNotifierAbsence(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	// nil notifier falls back to noop; settlement must not depend on it
	svc := newService(t, store, nil)

	result, err := svc.ProcessEvent(ctx, validEvent("FLW-TX-0007"))
	if err != nil || result != ResultSettled {
		t.Fatalf("ProcessEvent() = %q, %v", result, err)
	}
}
