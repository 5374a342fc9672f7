package gateway

import (
	"strings"
	"testing"
)

func validEvent() PaymentEvent {
	return PaymentEvent{
		Event: EventChargeCompleted,
		Data: PaymentData{
			Status:      StatusSuccessful,
			TxRef:       "FLW-TX-0001",
			Amount:      10000,
			Currency:    "NGN",
			PaymentType: "card",
			Customer:    Customer{Email: "ada@example.com", Name: "Ada Obi"},
			Meta: map[string]string{
				MetaBuyerID:     "buyer-1",
				MetaBookID:      "book-42",
				MetaBookTitle:   "Distributed Ledgers",
				MetaSellerID:    "seller-7",
				MetaSellerEmail: "chi@example.com",
				MetaSellerName:  "Chinedu Eze",
			},
		},
	}
}

func TestParseEvent(t *testing.T) {
	body := []byte(`{
		"event": "charge.completed",
		"data": {
			"status": "successful",
			"tx_ref": "FLW-TX-0001",
			"amount": 10000,
			"currency": "NGN",
			"customer": {"email": "ada@example.com", "name": "Ada Obi"},
			"meta": {"buyer_id": "buyer-1", "book_id": "book-42", "seller_id": "seller-7"}
		}
	}`)

	ev, err := ParseEvent(body)
	if err != nil {
		t.Fatalf("ParseEvent() error = %v", err)
	}
	if ev.Event != EventChargeCompleted {
		t.Errorf("event = %q, want charge.completed", ev.Event)
	}
	if ev.Data.TxRef != "FLW-TX-0001" {
		t.Errorf("tx_ref = %q", ev.Data.TxRef)
	}
	if ev.Data.MetaValue(MetaBuyerID) != "buyer-1" {
		t.Errorf("buyer_id = %q", ev.Data.MetaValue(MetaBuyerID))
	}
}

func TestParseEvent_Invalid(t *testing.T) {
	if _, err := ParseEvent([]byte("not json")); err == nil {
		t.Error("expected error for invalid JSON")
	}
	if _, err := ParseEvent([]byte(`{"data": {}}`)); err == nil {
		t.Error("expected error when event kind is missing")
	}
}

func TestClassify_Valid(t *testing.T) {
	c := NewClassifier("folio-market", "NGN")

	checkout, outcome, err := c.Classify(validEvent())
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if outcome != OutcomeValid {
		t.Fatalf("outcome = %q, want valid", outcome)
	}
	if checkout.TxRef != "FLW-TX-0001" {
		t.Errorf("tx ref = %q", checkout.TxRef)
	}
	// 10000 NGN major units is 1000000 kobo
	if checkout.Amount.Atomic != 1000000 {
		t.Errorf("amount atomic = %d, want 1000000", checkout.Amount.Atomic)
	}
	if checkout.Amount.Asset.Code != "NGN" {
		t.Errorf("currency = %q, want NGN", checkout.Amount.Asset.Code)
	}
	if checkout.PlatformOwned {
		t.Error("user-listed item should not be platform owned")
	}
	if checkout.BuyerEmail != "ada@example.com" {
		t.Errorf("buyer email = %q", checkout.BuyerEmail)
	}
}

func TestClassify_Ignored(t *testing.T) {
	c := NewClassifier("folio-market", "NGN")

	tests := []struct {
		name   string
		mutate func(*PaymentEvent)
	}{
		{name: "wrong kind", mutate: func(ev *PaymentEvent) { ev.Event = "transfer.completed" }},
		{name: "failed status", mutate: func(ev *PaymentEvent) { ev.Data.Status = "failed" }},
		{name: "pending status", mutate: func(ev *PaymentEvent) { ev.Data.Status = "pending" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := validEvent()
			tt.mutate(&ev)

			_, outcome, err := c.Classify(ev)
			if err != nil {
				t.Fatalf("Classify() error = %v", err)
			}
			if outcome != OutcomeIgnored {
				t.Errorf("outcome = %q, want ignored", outcome)
			}
		})
	}
}

func TestClassify_Malformed(t *testing.T) {
	c := NewClassifier("folio-market", "NGN")

	tests := []struct {
		name    string
		mutate  func(*PaymentEvent)
		wantMsg string
	}{
		{name: "missing buyer id", mutate: func(ev *PaymentEvent) { delete(ev.Data.Meta, MetaBuyerID) }, wantMsg: "buyer_id"},
		{name: "missing book id", mutate: func(ev *PaymentEvent) { delete(ev.Data.Meta, MetaBookID) }, wantMsg: "book_id"},
		{name: "missing seller id", mutate: func(ev *PaymentEvent) { delete(ev.Data.Meta, MetaSellerID) }, wantMsg: "seller_id"},
		{name: "no metadata at all", mutate: func(ev *PaymentEvent) { ev.Data.Meta = nil }, wantMsg: "buyer_id, book_id, seller_id"},
		{name: "missing tx ref", mutate: func(ev *PaymentEvent) { ev.Data.TxRef = "" }, wantMsg: "tx_ref"},
		{name: "zero amount", mutate: func(ev *PaymentEvent) { ev.Data.Amount = 0 }, wantMsg: "invalid amount"},
		{name: "negative amount", mutate: func(ev *PaymentEvent) { ev.Data.Amount = -50 }, wantMsg: "invalid amount"},
		{name: "unsupported currency", mutate: func(ev *PaymentEvent) { ev.Data.Currency = "DOGE" }, wantMsg: "unsupported currency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := validEvent()
			tt.mutate(&ev)

			_, outcome, err := c.Classify(ev)
			if outcome != OutcomeMalformed {
				t.Fatalf("outcome = %q, want malformed", outcome)
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %v, want substring %q", err, tt.wantMsg)
			}
		})
	}
}

func TestClassify_PlatformOwned(t *testing.T) {
	c := NewClassifier("folio-market", "NGN")

	// Explicit flag
	ev := validEvent()
	ev.Data.Meta[MetaPlatformOwned] = "true"
	checkout, outcome, err := c.Classify(ev)
	if err != nil || outcome != OutcomeValid {
		t.Fatalf("Classify() = %q, %v", outcome, err)
	}
	if !checkout.PlatformOwned {
		t.Error("platform_owned=true flag should mark the checkout platform owned")
	}

	// Seller id matches the platform account
	ev = validEvent()
	ev.Data.Meta[MetaSellerID] = "folio-market"
	checkout, outcome, err = c.Classify(ev)
	if err != nil || outcome != OutcomeValid {
		t.Fatalf("Classify() = %q, %v", outcome, err)
	}
	if !checkout.PlatformOwned {
		t.Error("platform seller id should mark the checkout platform owned")
	}
}

func TestClassify_DefaultCurrency(t *testing.T) {
	c := NewClassifier("folio-market", "NGN")

	ev := validEvent()
	ev.Data.Currency = ""
	checkout, outcome, err := c.Classify(ev)
	if err != nil || outcome != OutcomeValid {
		t.Fatalf("Classify() = %q, %v", outcome, err)
	}
	if checkout.Amount.Asset.Code != "NGN" {
		t.Errorf("currency = %q, want default NGN", checkout.Amount.Asset.Code)
	}
}
