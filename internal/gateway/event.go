package gateway

import (
	"encoding/json"
	"fmt"
)

// Event kinds and statuses sent by the payment gateway. Only a completed
// charge with a successful status triggers settlement; everything else is
// acknowledged and dropped.
const (
	EventChargeCompleted = "charge.completed"
	StatusSuccessful     = "successful"
)

// PaymentEvent is the inbound webhook payload. It lives for the duration
// of one delivery and is never persisted verbatim.
type PaymentEvent struct {
	Event string      `json:"event"`
	Data  PaymentData `json:"data"`
}

// PaymentData carries the charge details and the checkout metadata bag.
type PaymentData struct {
	Status      string            `json:"status"`
	TxRef       string            `json:"tx_ref"`
	Amount      float64           `json:"amount"`
	Currency    string            `json:"currency"`
	PaymentType string            `json:"payment_type"`
	Customer    Customer          `json:"customer"`
	Meta        map[string]string `json:"meta"`
}

// Customer is the buyer contact info attached by the gateway.
type Customer struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Metadata keys the checkout flow attaches to every charge.
const (
	MetaBuyerID       = "buyer_id"
	MetaBookID        = "book_id"
	MetaBookTitle     = "book_title"
	MetaSellerID      = "seller_id"
	MetaSellerEmail   = "seller_email"
	MetaSellerName    = "seller_name"
	MetaPlatformOwned = "platform_owned"
)

// ParseEvent decodes a raw webhook body into a PaymentEvent.
func ParseEvent(body []byte) (PaymentEvent, error) {
	var ev PaymentEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return PaymentEvent{}, fmt.Errorf("gateway: decode event: %w", err)
	}
	if ev.Event == "" {
		return PaymentEvent{}, fmt.Errorf("gateway: event kind missing")
	}
	return ev, nil
}

// Meta returns a metadata value with nil-safe access.
func (d PaymentData) MetaValue(key string) string {
	if d.Meta == nil {
		return ""
	}
	return d.Meta[key]
}
