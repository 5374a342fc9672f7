package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/FolioMarket/server/internal/config"
	"github.com/FolioMarket/server/internal/money"
)

// ErrNotFound is returned when a requested entity is missing from the store.
var ErrNotFound = errors.New("storage: not found")

// ErrDuplicateTransaction is returned by AppendTransaction when a record with
// the same transaction reference already exists. It signals a redelivered
// webhook, not a fault.
var ErrDuplicateTransaction = errors.New("storage: transaction reference already journaled")

// SellerLedger is the per-seller balance aggregate. Created on first sale;
// mutated only by atomic increments afterwards.
type SellerLedger struct {
	SellerID      string
	Balance       money.Money
	TotalEarnings money.Money
	BooksSold     int64
	LastSaleAt    time.Time
}

// TransactionRecord is the immutable journal entry for one settled payment.
// Its presence under a transaction reference is the proof that settlement
// for that reference happened.
type TransactionRecord struct {
	TxRef         string
	BuyerID       string
	BuyerEmail    string
	BuyerName     string
	SellerID      string
	SellerEmail   string
	SellerName    string
	BookID        string
	BookTitle     string
	GrossAmount   money.Money
	SellerAmount  money.Money
	PlatformFee   money.Money
	PaymentMethod string
	Status        string
	CreatedAt     time.Time
}

// TransactionCompleted is the only status a journaled record ever carries.
const TransactionCompleted = "completed"

// LibraryEntry is one owned item in a buyer's library.
type LibraryEntry struct {
	BookID      string
	BookTitle   string
	AmountPaid  money.Money
	TxRef       string
	PurchasedAt time.Time
}

// LedgerStore is the seller balance aggregate. CreditLedger must apply the
// increments as one atomic storage-level operation so concurrent sales for
// the same seller never lose updates.
type LedgerStore interface {
	// CreditLedger adds earning to the seller's balance and lifetime
	// totals and bumps the sales count. Creates the ledger on first sale.
	CreditLedger(ctx context.Context, sellerID string, earning money.Money, at time.Time) error
	GetLedger(ctx context.Context, sellerID string) (SellerLedger, error)
}

// Journal is the append-only transaction record keyed by transaction
// reference. AppendTransaction is create-if-absent and doubles as the
// de-duplication gate for the settlement pipeline.
type Journal interface {
	// AppendTransaction writes the record, or returns
	// ErrDuplicateTransaction if the reference is already journaled.
	AppendTransaction(ctx context.Context, record TransactionRecord) error
	GetTransaction(ctx context.Context, txRef string) (TransactionRecord, error)

	// DeleteTransaction removes a journal entry. Used only to unwind the
	// de-duplication gate when a later settlement step fails, so the
	// gateway's redelivery can run the pipeline again.
	DeleteTransaction(ctx context.Context, txRef string) error
}

// Library is the buyer's owned-items collection. GrantEntitlement treats an
// existing entry for the same book as success so duplicate deliveries and
// racing grants converge on one entry.
type Library interface {
	GrantEntitlement(ctx context.Context, buyerID string, entry LibraryEntry) error
	GetLibrary(ctx context.Context, buyerID string) ([]LibraryEntry, error)
}

// Store is the full persistence surface for settlement state.
type Store interface {
	LedgerStore
	Journal
	Library

	Close() error
}

// StoreConfig holds storage backend configuration.
type StoreConfig struct {
	Backend         string // "memory", "mongodb", or "postgres"
	MongoDBURL      string
	MongoDBDatabase string
	PostgresURL     string
	PostgresPool    config.PostgresPoolConfig
}

// NewStore creates a Store instance based on the provided configuration.
func NewStore(cfg StoreConfig) (Store, error) {
	return NewStoreWithDB(cfg, nil)
}

// NewStoreWithDB creates a Store instance with an optional shared database
// pool. If sharedDB is non-nil for the postgres backend it is used instead
// of opening a new connection.
func NewStoreWithDB(cfg StoreConfig, sharedDB *sql.DB) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		// Memory backend loses all settlement state on restart. Only
		// suitable for development and tests.
		return NewMemoryStore(), nil
	case "mongodb":
		if cfg.MongoDBURL == "" {
			return nil, fmt.Errorf("mongodb backend requires mongodb_url")
		}
		if cfg.MongoDBDatabase == "" {
			return nil, fmt.Errorf("mongodb backend requires mongodb_database")
		}
		return NewMongoDBStore(cfg.MongoDBURL, cfg.MongoDBDatabase)
	case "postgres":
		if cfg.PostgresURL == "" {
			return nil, fmt.Errorf("postgres backend requires postgres_url")
		}
		if sharedDB != nil {
			return NewPostgresStoreWithDB(sharedDB)
		}
		return NewPostgresStore(cfg.PostgresURL, cfg.PostgresPool)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}
