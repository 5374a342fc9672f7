package httpserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/FolioMarket/server/internal/errors"
	"github.com/FolioMarket/server/internal/logger"
	"github.com/FolioMarket/server/internal/storage"
	"github.com/FolioMarket/server/pkg/responders"
)

// health returns service health status.
func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	uptime := now.Sub(serverStartTime)

	responders.JSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"service":   "folio-market",
		"uptime":    uptime.String(),
		"timestamp": now.UTC(),
	})
}

// getSellerLedger returns a seller's balance aggregate.
func (h *handlers) getSellerLedger(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	sellerID := chi.URLParam(r, "sellerID")
	if sellerID == "" {
		apierrors.WriteSimpleError(w, apierrors.ErrCodeMissingField, "sellerID is required")
		return
	}

	ledger, err := h.store.GetLedger(r.Context(), sellerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			apierrors.WriteSimpleError(w, apierrors.ErrCodeLedgerNotFound, "No sales recorded for this seller")
			return
		}
		log.Error().
			Err(err).
			Str("seller_id", sellerID).
			Msg("ledger.read_failed")
		apierrors.WriteSimpleError(w, apierrors.ErrCodeStorageError, "ledger lookup failed")
		return
	}

	responders.JSON(w, http.StatusOK, map[string]any{
		"seller_id":      ledger.SellerID,
		"balance":        ledger.Balance.ToMajor(),
		"total_earnings": ledger.TotalEarnings.ToMajor(),
		"currency":       ledger.Balance.Asset.Code,
		"books_sold":     ledger.BooksSold,
		"last_sale_at":   ledger.LastSaleAt,
	})
}

// getBuyerLibrary returns the books a buyer owns. A buyer with no purchases
// gets an empty list, not a 404.
func (h *handlers) getBuyerLibrary(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	buyerID := chi.URLParam(r, "buyerID")
	if buyerID == "" {
		apierrors.WriteSimpleError(w, apierrors.ErrCodeMissingField, "buyerID is required")
		return
	}

	entries, err := h.store.GetLibrary(r.Context(), buyerID)
	if err != nil {
		log.Error().
			Err(err).
			Str("buyer_id", buyerID).
			Msg("library.read_failed")
		apierrors.WriteSimpleError(w, apierrors.ErrCodeStorageError, "library lookup failed")
		return
	}

	books := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		books = append(books, map[string]any{
			"book_id":      entry.BookID,
			"book_title":   entry.BookTitle,
			"amount_paid":  entry.AmountPaid.ToMajor(),
			"currency":     entry.AmountPaid.Asset.Code,
			"tx_ref":       entry.TxRef,
			"purchased_at": entry.PurchasedAt,
		})
	}

	responders.JSON(w, http.StatusOK, map[string]any{
		"buyer_id": buyerID,
		"count":    len(books),
		"books":    books,
	})
}

// verifyTransaction confirms that a transaction reference was settled.
// Frontends use this to check purchase status without waiting for the
// webhook round trip.
func (h *handlers) verifyTransaction(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	txRef := r.URL.Query().Get("tx_ref")
	if txRef == "" {
		log.Warn().Msg("transaction.verify.missing_tx_ref")
		apierrors.WriteSimpleError(w, apierrors.ErrCodeMissingField, "tx_ref is required")
		return
	}

	tx, err := h.store.GetTransaction(r.Context(), txRef)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			log.Warn().
				Str("tx_ref", logger.TruncateRef(txRef)).
				Msg("transaction.verify.not_found")
			apierrors.WriteSimpleError(w, apierrors.ErrCodeTransactionNotFound, "Transaction not settled or reference invalid")
			return
		}
		log.Error().
			Err(err).
			Str("tx_ref", logger.TruncateRef(txRef)).
			Msg("transaction.verify.read_failed")
		apierrors.WriteSimpleError(w, apierrors.ErrCodeStorageError, "transaction lookup failed")
		return
	}

	log.Info().
		Str("tx_ref", logger.TruncateRef(txRef)).
		Str("book_id", tx.BookID).
		Msg("transaction.verify.success")

	responders.JSON(w, http.StatusOK, map[string]any{
		"verified":   true,
		"tx_ref":     tx.TxRef,
		"status":     tx.Status,
		"book_id":    tx.BookID,
		"book_title": tx.BookTitle,
		"buyer_id":   tx.BuyerID,
		"seller_id":  tx.SellerID,
		"amount":     tx.GrossAmount.ToMajor(),
		"currency":   tx.GrossAmount.Asset.Code,
		"settled_at": tx.CreatedAt,
	})
}
