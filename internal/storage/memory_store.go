package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/FolioMarket/server/internal/money"
)

// MemoryStore is an in-memory Store implementation suitable for tests and
// local development. It honors the same atomicity contracts as the durable
// backends: ledger credits are applied under one lock, and journal appends
// are create-if-absent.
type MemoryStore struct {
	mu           sync.RWMutex
	ledgers      map[string]SellerLedger      // sellerID -> ledger
	transactions map[string]TransactionRecord // txRef -> record (globally unique)
	libraries    map[string][]LibraryEntry    // buyerID -> owned items
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		ledgers:      make(map[string]SellerLedger),
		transactions: make(map[string]TransactionRecord),
		libraries:    make(map[string][]LibraryEntry),
	}
}

// CreditLedger applies the sale increments to the seller's ledger, creating
// it on first sale. The whole read-and-add happens under the write lock so
// concurrent credits cannot lose updates.
func (m *MemoryStore) CreditLedger(_ context.Context, sellerID string, earning money.Money, at time.Time) error {
	if sellerID == "" {
		return fmt.Errorf("storage: seller id required")
	}
	if !earning.IsPositive() {
		return fmt.Errorf("storage: earning must be positive, got %s", earning)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ledger, ok := m.ledgers[sellerID]
	if !ok {
		m.ledgers[sellerID] = SellerLedger{
			SellerID:      sellerID,
			Balance:       earning,
			TotalEarnings: earning,
			BooksSold:     1,
			LastSaleAt:    at,
		}
		return nil
	}

	balance, err := ledger.Balance.Add(earning)
	if err != nil {
		return fmt.Errorf("storage: credit balance: %w", err)
	}
	total, err := ledger.TotalEarnings.Add(earning)
	if err != nil {
		return fmt.Errorf("storage: credit total earnings: %w", err)
	}

	ledger.Balance = balance
	ledger.TotalEarnings = total
	ledger.BooksSold++
	if at.After(ledger.LastSaleAt) {
		ledger.LastSaleAt = at
	}
	m.ledgers[sellerID] = ledger
	return nil
}

// GetLedger retrieves a seller's ledger.
func (m *MemoryStore) GetLedger(_ context.Context, sellerID string) (SellerLedger, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ledger, ok := m.ledgers[sellerID]
	if !ok {
		return SellerLedger{}, ErrNotFound
	}
	return ledger, nil
}

// AppendTransaction journals a settled payment with create-if-absent
// semantics. A reference that already exists is a redelivered event and
// returns ErrDuplicateTransaction.
func (m *MemoryStore) AppendTransaction(_ context.Context, record TransactionRecord) error {
	if record.TxRef == "" {
		return fmt.Errorf("storage: transaction reference required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.transactions[record.TxRef]; exists {
		return ErrDuplicateTransaction
	}
	m.transactions[record.TxRef] = record
	return nil
}

// GetTransaction retrieves a journaled record by transaction reference.
func (m *MemoryStore) GetTransaction(_ context.Context, txRef string) (TransactionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, ok := m.transactions[txRef]
	if !ok {
		return TransactionRecord{}, ErrNotFound
	}
	return record, nil
}

// DeleteTransaction removes a journal entry by transaction reference.
func (m *MemoryStore) DeleteTransaction(_ context.Context, txRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.transactions[txRef]; !ok {
		return ErrNotFound
	}
	delete(m.transactions, txRef)
	return nil
}

// GrantEntitlement appends the entry to the buyer's library unless an entry
// for the same book already exists. Already entitled is success.
func (m *MemoryStore) GrantEntitlement(_ context.Context, buyerID string, entry LibraryEntry) error {
	if buyerID == "" {
		return fmt.Errorf("storage: buyer id required")
	}
	if entry.BookID == "" {
		return fmt.Errorf("storage: book id required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, owned := range m.libraries[buyerID] {
		if owned.BookID == entry.BookID {
			return nil
		}
	}
	m.libraries[buyerID] = append(m.libraries[buyerID], entry)
	return nil
}

// GetLibrary returns a buyer's owned items. An unknown buyer has an empty
// library, not an error.
func (m *MemoryStore) GetLibrary(_ context.Context, buyerID string) ([]LibraryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := m.libraries[buyerID]
	out := make([]LibraryEntry, len(entries))
	copy(out, entries)
	return out, nil
}

// Close implements the Store interface.
func (m *MemoryStore) Close() error {
	return nil
}
