package notify

import (
	"context"
	"time"
)

// SaleNotification is the seller-facing summary of one settled sale.
// Amounts are rendered in major units so the relay can drop them straight
// into an email template.
type SaleNotification struct {
	EventID string `json:"eventId"`
	TxRef   string `json:"txRef"`

	SellerID    string `json:"sellerId"`
	SellerEmail string `json:"sellerEmail"`
	SellerName  string `json:"sellerName,omitempty"`

	BuyerName string `json:"buyerName,omitempty"`

	BookID    string `json:"bookId"`
	BookTitle string `json:"bookTitle"`

	GrossAmount   string `json:"grossAmount"`
	SellerEarning string `json:"sellerEarning"`
	NewBalance    string `json:"newBalance"`
	Currency      string `json:"currency"`

	SoldAt time.Time `json:"soldAt"`
}

// Notifier dispatches sale notifications to sellers. Delivery is best
// effort: implementations must never let a notification failure surface to
// the settlement pipeline.
type Notifier interface {
	SaleCompleted(ctx context.Context, notification SaleNotification)
}

// NoopNotifier ignores all notifications. Used when no sale URL is
// configured.
type NoopNotifier struct{}

// SaleCompleted implements Notifier as a no-op.
func (NoopNotifier) SaleCompleted(context.Context, SaleNotification) {}
