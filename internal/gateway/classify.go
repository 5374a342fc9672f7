package gateway

import (
	"fmt"
	"strings"

	"github.com/FolioMarket/server/internal/money"
)

// Outcome is the classification result for one inbound event.
type Outcome string

const (
	// OutcomeValid means the event is a settleable completed charge.
	OutcomeValid Outcome = "valid"

	// OutcomeIgnored means the event kind or status is not relevant.
	// The delivery is acknowledged so the gateway does not retry it.
	OutcomeIgnored Outcome = "ignored"

	// OutcomeMalformed means required metadata is missing or invalid.
	// Retries will fail identically until the checkout flow is fixed
	// upstream.
	OutcomeMalformed Outcome = "malformed"
)

// CheckoutEvent is a classified, normalized completed charge ready for
// settlement.
type CheckoutEvent struct {
	TxRef         string
	Amount        money.Money
	PaymentMethod string

	BuyerID    string
	BuyerEmail string
	BuyerName  string

	BookID    string
	BookTitle string

	SellerID    string
	SellerEmail string
	SellerName  string

	// PlatformOwned marks first-party catalog items. These settle at
	// 100% to the platform seller with no fee.
	PlatformOwned bool
}

// Classifier filters raw gateway events down to settleable checkouts.
type Classifier struct {
	platformSellerID string
	defaultCurrency  string
}

// NewClassifier creates a classifier. platformSellerID identifies the
// first-party catalog account; defaultCurrency is assumed when the
// gateway omits the currency code.
func NewClassifier(platformSellerID, defaultCurrency string) *Classifier {
	return &Classifier{
		platformSellerID: platformSellerID,
		defaultCurrency:  defaultCurrency,
	}
}

// Classify inspects kind and status, then extracts and validates the
// normalized checkout fields. Only charge.completed with a successful
// status proceeds; anything else is ignored, not an error.
func (c *Classifier) Classify(ev PaymentEvent) (CheckoutEvent, Outcome, error) {
	if ev.Event != EventChargeCompleted || ev.Data.Status != StatusSuccessful {
		return CheckoutEvent{}, OutcomeIgnored, nil
	}

	var missing []string
	if ev.Data.TxRef == "" {
		missing = append(missing, "tx_ref")
	}
	for _, key := range []string{MetaBuyerID, MetaBookID, MetaSellerID} {
		if ev.Data.MetaValue(key) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return CheckoutEvent{}, OutcomeMalformed,
			fmt.Errorf("gateway: event %s missing required fields: %s", ev.Data.TxRef, strings.Join(missing, ", "))
	}

	currency := strings.ToUpper(ev.Data.Currency)
	if currency == "" {
		currency = c.defaultCurrency
	}
	asset, err := money.GetAsset(currency)
	if err != nil {
		return CheckoutEvent{}, OutcomeMalformed,
			fmt.Errorf("gateway: event %s: unsupported currency %q", ev.Data.TxRef, ev.Data.Currency)
	}

	amount, err := money.FromFloat(asset, ev.Data.Amount)
	if err != nil || !amount.IsPositive() {
		return CheckoutEvent{}, OutcomeMalformed,
			fmt.Errorf("gateway: event %s: invalid amount %v", ev.Data.TxRef, ev.Data.Amount)
	}

	sellerID := ev.Data.MetaValue(MetaSellerID)
	checkout := CheckoutEvent{
		TxRef:         ev.Data.TxRef,
		Amount:        amount,
		PaymentMethod: ev.Data.PaymentType,
		BuyerID:       ev.Data.MetaValue(MetaBuyerID),
		BuyerEmail:    ev.Data.Customer.Email,
		BuyerName:     ev.Data.Customer.Name,
		BookID:        ev.Data.MetaValue(MetaBookID),
		BookTitle:     ev.Data.MetaValue(MetaBookTitle),
		SellerID:      sellerID,
		SellerEmail:   ev.Data.MetaValue(MetaSellerEmail),
		SellerName:    ev.Data.MetaValue(MetaSellerName),
		PlatformOwned: ev.Data.MetaValue(MetaPlatformOwned) == "true" ||
			(c.platformSellerID != "" && sellerID == c.platformSellerID),
	}
	return checkout, OutcomeValid, nil
}
