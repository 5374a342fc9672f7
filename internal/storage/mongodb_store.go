package storage

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/FolioMarket/server/internal/money"
)

// MongoDBStore implements Store using MongoDB.
//
// The two atomicity contracts settlement depends on map directly onto
// MongoDB primitives: ledger credits are a single $inc upsert, and journal
// appends are a $setOnInsert upsert against a unique tx_ref index.
type MongoDBStore struct {
	client       *mongo.Client
	ledgers      *mongo.Collection
	transactions *mongo.Collection
	libraries    *mongo.Collection
}

// NewMongoDBStore creates a new MongoDB-backed store.
func NewMongoDBStore(connectionString, database string) (*MongoDBStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(connectionString))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		// NOTE: client.Disconnect() error is intentionally ignored during
		// initialization cleanup. If connection fails, the Disconnect()
		// error is not actionable and would only obscure the original
		// connection failure.
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	db := client.Database(database)

	store := &MongoDBStore{
		client:       client,
		ledgers:      db.Collection("seller_ledgers"),
		transactions: db.Collection("transactions"),
		libraries:    db.Collection("buyer_libraries"),
	}

	if err := store.createIndexes(ctx); err != nil {
		// Same rationale: Disconnect() error during initialization cleanup
		// is not actionable
		_ = client.Disconnect(ctx)
		return nil, err
	}

	return store, nil
}

// createIndexes creates the unique indexes the atomicity contracts rely on.
func (s *MongoDBStore) createIndexes(ctx context.Context) error {
	_, err := s.ledgers.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "seller_id", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return fmt.Errorf("create seller ledger indexes: %w", err)
	}

	// The unique tx_ref index is the de-duplication anchor for the whole
	// pipeline. Two concurrent appends for the same reference race on this
	// index and exactly one wins.
	_, err = s.transactions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "tx_ref", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "seller_id", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create transaction indexes: %w", err)
	}

	_, err = s.libraries.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "buyer_id", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return fmt.Errorf("create buyer library indexes: %w", err)
	}
	return nil
}

// mongoSellerLedger is the MongoDB document structure for seller ledgers.
// Amounts are stored as atomic integers with the asset code alongside, so
// $inc can operate on them directly.
type mongoSellerLedger struct {
	SellerID      string    `bson:"seller_id"`
	Balance       int64     `bson:"balance"`
	TotalEarnings int64     `bson:"total_earnings"`
	BooksSold     int64     `bson:"books_sold"`
	Asset         string    `bson:"asset"`
	LastSaleAt    time.Time `bson:"last_sale_at"`
}

// CreditLedger applies the sale increments as a single upsert. $inc is the
// storage-level atomic add the concurrency model requires; the document is
// created with zeroed counters on first sale and incremented in the same
// operation.
func (s *MongoDBStore) CreditLedger(ctx context.Context, sellerID string, earning money.Money, at time.Time) error {
	if sellerID == "" {
		return fmt.Errorf("storage: seller id required")
	}
	if !earning.IsPositive() {
		return fmt.Errorf("storage: earning must be positive, got %s", earning)
	}

	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	filter := bson.M{"seller_id": sellerID}
	update := bson.M{
		"$inc": bson.M{
			"balance":        earning.Atomic,
			"total_earnings": earning.Atomic,
			"books_sold":     int64(1),
		},
		"$max": bson.M{"last_sale_at": at},
		"$setOnInsert": bson.M{
			"seller_id": sellerID,
			"asset":     earning.Asset.Code,
		},
	}

	_, err := s.ledgers.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("credit ledger: %w", err)
	}
	return nil
}

// GetLedger retrieves a seller's ledger.
func (s *MongoDBStore) GetLedger(ctx context.Context, sellerID string) (SellerLedger, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	var doc mongoSellerLedger
	err := s.ledgers.FindOne(ctx, bson.M{"seller_id": sellerID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return SellerLedger{}, ErrNotFound
	}
	if err != nil {
		return SellerLedger{}, fmt.Errorf("get ledger: %w", err)
	}

	asset, err := money.GetAsset(doc.Asset)
	if err != nil {
		return SellerLedger{}, fmt.Errorf("get ledger: %w", err)
	}
	return SellerLedger{
		SellerID:      doc.SellerID,
		Balance:       money.New(asset, doc.Balance),
		TotalEarnings: money.New(asset, doc.TotalEarnings),
		BooksSold:     doc.BooksSold,
		LastSaleAt:    doc.LastSaleAt,
	}, nil
}

// mongoTransactionRecord is the MongoDB document structure for journal entries.
type mongoTransactionRecord struct {
	TxRef         string    `bson:"tx_ref"`
	BuyerID       string    `bson:"buyer_id"`
	BuyerEmail    string    `bson:"buyer_email"`
	BuyerName     string    `bson:"buyer_name"`
	SellerID      string    `bson:"seller_id"`
	SellerEmail   string    `bson:"seller_email"`
	SellerName    string    `bson:"seller_name"`
	BookID        string    `bson:"book_id"`
	BookTitle     string    `bson:"book_title"`
	GrossAmount   int64     `bson:"gross_amount"`
	SellerAmount  int64     `bson:"seller_amount"`
	PlatformFee   int64     `bson:"platform_fee"`
	Asset         string    `bson:"asset"`
	PaymentMethod string    `bson:"payment_method"`
	Status        string    `bson:"status"`
	CreatedAt     time.Time `bson:"created_at"`
}

// AppendTransaction journals a settled payment using a $setOnInsert upsert.
// UpsertedCount == 0 means the reference already existed, which is the
// duplicate-delivery signal.
func (s *MongoDBStore) AppendTransaction(ctx context.Context, record TransactionRecord) error {
	if record.TxRef == "" {
		return fmt.Errorf("storage: transaction reference required")
	}

	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	doc := mongoTransactionRecord{
		TxRef:         record.TxRef,
		BuyerID:       record.BuyerID,
		BuyerEmail:    record.BuyerEmail,
		BuyerName:     record.BuyerName,
		SellerID:      record.SellerID,
		SellerEmail:   record.SellerEmail,
		SellerName:    record.SellerName,
		BookID:        record.BookID,
		BookTitle:     record.BookTitle,
		GrossAmount:   record.GrossAmount.Atomic,
		SellerAmount:  record.SellerAmount.Atomic,
		PlatformFee:   record.PlatformFee.Atomic,
		Asset:         record.GrossAmount.Asset.Code,
		PaymentMethod: record.PaymentMethod,
		Status:        record.Status,
		CreatedAt:     record.CreatedAt,
	}

	filter := bson.M{"tx_ref": record.TxRef}
	update := bson.M{"$setOnInsert": doc}

	result, err := s.transactions.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// Lost the race on the unique index to a concurrent delivery.
			return ErrDuplicateTransaction
		}
		return fmt.Errorf("append transaction: %w", err)
	}
	if result.UpsertedCount == 0 {
		return ErrDuplicateTransaction
	}
	return nil
}

// GetTransaction retrieves a journaled record by transaction reference.
func (s *MongoDBStore) GetTransaction(ctx context.Context, txRef string) (TransactionRecord, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	var doc mongoTransactionRecord
	err := s.transactions.FindOne(ctx, bson.M{"tx_ref": txRef}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return TransactionRecord{}, ErrNotFound
	}
	if err != nil {
		return TransactionRecord{}, fmt.Errorf("get transaction: %w", err)
	}

	asset, err := money.GetAsset(doc.Asset)
	if err != nil {
		return TransactionRecord{}, fmt.Errorf("get transaction: %w", err)
	}
	return TransactionRecord{
		TxRef:         doc.TxRef,
		BuyerID:       doc.BuyerID,
		BuyerEmail:    doc.BuyerEmail,
		BuyerName:     doc.BuyerName,
		SellerID:      doc.SellerID,
		SellerEmail:   doc.SellerEmail,
		SellerName:    doc.SellerName,
		BookID:        doc.BookID,
		BookTitle:     doc.BookTitle,
		GrossAmount:   money.New(asset, doc.GrossAmount),
		SellerAmount:  money.New(asset, doc.SellerAmount),
		PlatformFee:   money.New(asset, doc.PlatformFee),
		PaymentMethod: doc.PaymentMethod,
		Status:        doc.Status,
		CreatedAt:     doc.CreatedAt,
	}, nil
}

// DeleteTransaction removes a journal entry by transaction reference.
func (s *MongoDBStore) DeleteTransaction(ctx context.Context, txRef string) error {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	result, err := s.transactions.DeleteOne(ctx, bson.M{"tx_ref": txRef})
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// mongoLibraryEntry is the MongoDB document structure for one owned item.
type mongoLibraryEntry struct {
	BookID      string    `bson:"book_id"`
	BookTitle   string    `bson:"book_title"`
	AmountPaid  int64     `bson:"amount_paid"`
	Asset       string    `bson:"asset"`
	TxRef       string    `bson:"tx_ref"`
	PurchasedAt time.Time `bson:"purchased_at"`
}

// mongoBuyerLibrary is the MongoDB document structure for a buyer's library.
type mongoBuyerLibrary struct {
	BuyerID string              `bson:"buyer_id"`
	Books   []mongoLibraryEntry `bson:"books"`
}

// GrantEntitlement appends the entry to the buyer's library with a guarded
// $push: the filter only matches when no entry for the book exists, so a
// concurrent duplicate grant either pushes nothing or loses the upsert race
// on the unique buyer_id index. Both cases mean the buyer is already
// entitled, which is success.
func (s *MongoDBStore) GrantEntitlement(ctx context.Context, buyerID string, entry LibraryEntry) error {
	if buyerID == "" {
		return fmt.Errorf("storage: buyer id required")
	}
	if entry.BookID == "" {
		return fmt.Errorf("storage: book id required")
	}

	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	doc := mongoLibraryEntry{
		BookID:      entry.BookID,
		BookTitle:   entry.BookTitle,
		AmountPaid:  entry.AmountPaid.Atomic,
		Asset:       entry.AmountPaid.Asset.Code,
		TxRef:       entry.TxRef,
		PurchasedAt: entry.PurchasedAt,
	}

	filter := bson.M{
		"buyer_id":      buyerID,
		"books.book_id": bson.M{"$ne": entry.BookID},
	}
	update := bson.M{
		"$push":        bson.M{"books": doc},
		"$setOnInsert": bson.M{"buyer_id": buyerID},
	}

	_, err := s.libraries.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// The library document exists and already holds this book.
			return nil
		}
		return fmt.Errorf("grant entitlement: %w", err)
	}
	return nil
}

// GetLibrary returns a buyer's owned items. An unknown buyer has an empty
// library, not an error.
func (s *MongoDBStore) GetLibrary(ctx context.Context, buyerID string) ([]LibraryEntry, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	var doc mongoBuyerLibrary
	err := s.libraries.FindOne(ctx, bson.M{"buyer_id": buyerID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get library: %w", err)
	}

	entries := make([]LibraryEntry, 0, len(doc.Books))
	for _, book := range doc.Books {
		asset, err := money.GetAsset(book.Asset)
		if err != nil {
			return nil, fmt.Errorf("get library: %w", err)
		}
		entries = append(entries, LibraryEntry{
			BookID:      book.BookID,
			BookTitle:   book.BookTitle,
			AmountPaid:  money.New(asset, book.AmountPaid),
			TxRef:       book.TxRef,
			PurchasedAt: book.PurchasedAt,
		})
	}
	return entries, nil
}

// Close disconnects from MongoDB.
func (s *MongoDBStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
