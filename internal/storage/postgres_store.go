package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/FolioMarket/server/internal/config"
	"github.com/FolioMarket/server/internal/money"
)

// PostgresStore implements Store using PostgreSQL.
//
// The atomicity contracts map onto single statements: ledger credits are an
// INSERT ... ON CONFLICT DO UPDATE with arithmetic in the update clause, and
// journal appends are ON CONFLICT DO NOTHING against the tx_ref primary key.
type PostgresStore struct {
	db     *sql.DB
	ownsDB bool // whether Close() should close the pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(connectionString string, poolConfig config.PostgresPoolConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		// NOTE: db.Close() error is intentionally ignored during
		// initialization cleanup. If connection fails, the Close() error is
		// not actionable and would only obscure the original failure.
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	config.ApplyPostgresPoolSettings(db, poolConfig)

	store := &PostgresStore{db: db, ownsDB: true}
	if err := store.createTables(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewPostgresStoreWithDB creates a PostgreSQL-backed store using an existing
// connection pool. The caller retains ownership of the pool.
func NewPostgresStoreWithDB(db *sql.DB) (*PostgresStore, error) {
	store := &PostgresStore{db: db, ownsDB: false}
	if err := store.createTables(); err != nil {
		return nil, err
	}
	return store, nil
}

// createTables creates tables if they don't exist.
func (s *PostgresStore) createTables() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS seller_ledgers (
			seller_id      TEXT PRIMARY KEY,
			balance        BIGINT NOT NULL,
			total_earnings BIGINT NOT NULL,
			books_sold     BIGINT NOT NULL,
			asset          TEXT NOT NULL,
			last_sale_at   TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			tx_ref         TEXT PRIMARY KEY,
			buyer_id       TEXT NOT NULL,
			buyer_email    TEXT NOT NULL DEFAULT '',
			buyer_name     TEXT NOT NULL DEFAULT '',
			seller_id      TEXT NOT NULL,
			seller_email   TEXT NOT NULL DEFAULT '',
			seller_name    TEXT NOT NULL DEFAULT '',
			book_id        TEXT NOT NULL,
			book_title     TEXT NOT NULL DEFAULT '',
			gross_amount   BIGINT NOT NULL,
			seller_amount  BIGINT NOT NULL,
			platform_fee   BIGINT NOT NULL,
			asset          TEXT NOT NULL,
			payment_method TEXT NOT NULL DEFAULT '',
			status         TEXT NOT NULL,
			created_at     TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_seller
			ON transactions (seller_id, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS library_entries (
			buyer_id     TEXT NOT NULL,
			book_id      TEXT NOT NULL,
			book_title   TEXT NOT NULL DEFAULT '',
			amount_paid  BIGINT NOT NULL,
			asset        TEXT NOT NULL,
			tx_ref       TEXT NOT NULL,
			purchased_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (buyer_id, book_id)
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("create tables: %w", err)
		}
	}
	return nil
}

// CreditLedger applies the sale increments in one statement. The arithmetic
// happens inside the UPDATE clause so concurrent credits serialize on the
// row without a read-modify-write window.
func (s *PostgresStore) CreditLedger(ctx context.Context, sellerID string, earning money.Money, at time.Time) error {
	if sellerID == "" {
		return fmt.Errorf("storage: seller id required")
	}
	if !earning.IsPositive() {
		return fmt.Errorf("storage: earning must be positive, got %s", earning)
	}

	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO seller_ledgers (seller_id, balance, total_earnings, books_sold, asset, last_sale_at)
		VALUES ($1, $2, $2, 1, $3, $4)
		ON CONFLICT (seller_id) DO UPDATE SET
			balance        = seller_ledgers.balance + EXCLUDED.balance,
			total_earnings = seller_ledgers.total_earnings + EXCLUDED.total_earnings,
			books_sold     = seller_ledgers.books_sold + 1,
			last_sale_at   = GREATEST(seller_ledgers.last_sale_at, EXCLUDED.last_sale_at)`

	if _, err := s.db.ExecContext(ctx, query, sellerID, earning.Atomic, earning.Asset.Code, at); err != nil {
		return fmt.Errorf("credit ledger: %w", err)
	}
	return nil
}

// GetLedger retrieves a seller's ledger.
func (s *PostgresStore) GetLedger(ctx context.Context, sellerID string) (SellerLedger, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	query := `
		SELECT seller_id, balance, total_earnings, books_sold, asset, last_sale_at
		FROM seller_ledgers WHERE seller_id = $1`

	var (
		ledger    SellerLedger
		balance   int64
		total     int64
		assetCode string
	)
	err := s.db.QueryRowContext(ctx, query, sellerID).Scan(
		&ledger.SellerID, &balance, &total, &ledger.BooksSold, &assetCode, &ledger.LastSaleAt)
	if err == sql.ErrNoRows {
		return SellerLedger{}, ErrNotFound
	}
	if err != nil {
		return SellerLedger{}, fmt.Errorf("get ledger: %w", err)
	}

	asset, err := money.GetAsset(assetCode)
	if err != nil {
		return SellerLedger{}, fmt.Errorf("get ledger: %w", err)
	}
	ledger.Balance = money.New(asset, balance)
	ledger.TotalEarnings = money.New(asset, total)
	return ledger, nil
}

// AppendTransaction journals a settled payment. ON CONFLICT DO NOTHING on
// the tx_ref primary key makes the append create-if-absent; zero rows
// affected means the reference already existed.
func (s *PostgresStore) AppendTransaction(ctx context.Context, record TransactionRecord) error {
	if record.TxRef == "" {
		return fmt.Errorf("storage: transaction reference required")
	}

	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO transactions (
			tx_ref, buyer_id, buyer_email, buyer_name,
			seller_id, seller_email, seller_name,
			book_id, book_title,
			gross_amount, seller_amount, platform_fee, asset,
			payment_method, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (tx_ref) DO NOTHING`

	result, err := s.db.ExecContext(ctx, query,
		record.TxRef, record.BuyerID, record.BuyerEmail, record.BuyerName,
		record.SellerID, record.SellerEmail, record.SellerName,
		record.BookID, record.BookTitle,
		record.GrossAmount.Atomic, record.SellerAmount.Atomic, record.PlatformFee.Atomic,
		record.GrossAmount.Asset.Code,
		record.PaymentMethod, record.Status, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("append transaction: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("append transaction: %w", err)
	}
	if affected == 0 {
		return ErrDuplicateTransaction
	}
	return nil
}

// GetTransaction retrieves a journaled record by transaction reference.
func (s *PostgresStore) GetTransaction(ctx context.Context, txRef string) (TransactionRecord, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	query := `
		SELECT tx_ref, buyer_id, buyer_email, buyer_name,
			seller_id, seller_email, seller_name,
			book_id, book_title,
			gross_amount, seller_amount, platform_fee, asset,
			payment_method, status, created_at
		FROM transactions WHERE tx_ref = $1`

	var (
		record    TransactionRecord
		gross     int64
		seller    int64
		fee       int64
		assetCode string
	)
	err := s.db.QueryRowContext(ctx, query, txRef).Scan(
		&record.TxRef, &record.BuyerID, &record.BuyerEmail, &record.BuyerName,
		&record.SellerID, &record.SellerEmail, &record.SellerName,
		&record.BookID, &record.BookTitle,
		&gross, &seller, &fee, &assetCode,
		&record.PaymentMethod, &record.Status, &record.CreatedAt)
	if err == sql.ErrNoRows {
		return TransactionRecord{}, ErrNotFound
	}
	if err != nil {
		return TransactionRecord{}, fmt.Errorf("get transaction: %w", err)
	}

	asset, err := money.GetAsset(assetCode)
	if err != nil {
		return TransactionRecord{}, fmt.Errorf("get transaction: %w", err)
	}
	record.GrossAmount = money.New(asset, gross)
	record.SellerAmount = money.New(asset, seller)
	record.PlatformFee = money.New(asset, fee)
	return record, nil
}

// DeleteTransaction removes a journal entry by transaction reference.
func (s *PostgresStore) DeleteTransaction(ctx context.Context, txRef string) error {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	result, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE tx_ref = $1`, txRef)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// GrantEntitlement appends the entry unless the buyer already owns the book.
// The composite primary key makes the insert idempotent; a conflicting row
// means already entitled, which is success.
func (s *PostgresStore) GrantEntitlement(ctx context.Context, buyerID string, entry LibraryEntry) error {
	if buyerID == "" {
		return fmt.Errorf("storage: buyer id required")
	}
	if entry.BookID == "" {
		return fmt.Errorf("storage: book id required")
	}

	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO library_entries (buyer_id, book_id, book_title, amount_paid, asset, tx_ref, purchased_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (buyer_id, book_id) DO NOTHING`

	_, err := s.db.ExecContext(ctx, query,
		buyerID, entry.BookID, entry.BookTitle,
		entry.AmountPaid.Atomic, entry.AmountPaid.Asset.Code,
		entry.TxRef, entry.PurchasedAt)
	if err != nil {
		return fmt.Errorf("grant entitlement: %w", err)
	}
	return nil
}

// GetLibrary returns a buyer's owned items ordered by purchase time.
func (s *PostgresStore) GetLibrary(ctx context.Context, buyerID string) ([]LibraryEntry, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	query := `
		SELECT book_id, book_title, amount_paid, asset, tx_ref, purchased_at
		FROM library_entries WHERE buyer_id = $1
		ORDER BY purchased_at`

	rows, err := s.db.QueryContext(ctx, query, buyerID)
	if err != nil {
		return nil, fmt.Errorf("get library: %w", err)
	}
	defer rows.Close()

	var entries []LibraryEntry
	for rows.Next() {
		var (
			entry     LibraryEntry
			paid      int64
			assetCode string
		)
		if err := rows.Scan(&entry.BookID, &entry.BookTitle, &paid, &assetCode, &entry.TxRef, &entry.PurchasedAt); err != nil {
			return nil, fmt.Errorf("get library: %w", err)
		}
		asset, err := money.GetAsset(assetCode)
		if err != nil {
			return nil, fmt.Errorf("get library: %w", err)
		}
		entry.AmountPaid = money.New(asset, paid)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get library: %w", err)
	}
	return entries, nil
}

// Close closes the connection pool if this store owns it.
func (s *PostgresStore) Close() error {
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}
