package backend

import (
	"encoding/json"

	"github.com/noah-isme/checkout-gateway/internal/cart"
)

// ShippingInfo is the destination recorded on a delivery order. All fields
// except Country are required when the order is delivered.
type ShippingInfo struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country,omitempty"`
}

// OrderLine is the id+qty projection of a cart item sent on submission.
type OrderLine struct {
	ID  string `json:"id"`
	Qty int    `json:"qty"`
}

// OrderSubmission is the checkout payload posted to the backend-of-record.
// ClientGrandTotal and ClientCashbackEstimate are advisory only: the backend
// recomputes every figure and must never charge or credit from these values.
type OrderSubmission struct {
	DeliveryOption         string        `json:"deliveryOption"`
	Shipping               *ShippingInfo `json:"shipping,omitempty"`
	PaymentMethod          string        `json:"paymentMethod"`
	PayerPhone             string        `json:"payerPhone,omitempty"`
	WalletApplied          int64         `json:"walletApplied"`
	Items                  []OrderLine   `json:"items"`
	ClientGrandTotal       int64         `json:"clientGrandTotal"`
	ClientCashbackEstimate int64         `json:"clientCashbackEstimate"`
	IdempotencyKey         string        `json:"idempotencyKey"`
}

// OrderResult is the authoritative response to a successful submission.
// WalletDelta, when present, is the post-order balance and replaces any
// locally cached value.
type OrderResult struct {
	OrderID     string          `json:"orderId"`
	WalletDelta *int64          `json:"walletDelta,omitempty"`
	MpesaAction json.RawMessage `json:"mpesaAction,omitempty"`
}

// Lines projects cart items down to the submission shape.
func Lines(items []cart.Item) []OrderLine {
	out := make([]OrderLine, 0, len(items))
	for _, it := range items {
		out = append(out, OrderLine{ID: it.ID, Qty: it.Qty})
	}
	return out
}
