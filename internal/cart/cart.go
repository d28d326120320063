package cart

import (
	"strings"

	"github.com/noah-isme/checkout-gateway/internal/pricing"
)

// Item is a cart line as served by the backend-of-record. Price is
// VAT-inclusive in minor units. The cart is read-only for the duration of a
// checkout flow.
type Item struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	UnitPrice     int64    `json:"price"`
	Qty           int      `json:"qty"`
	DeliveryClass string   `json:"deliveryClass,omitempty"`
	CashbackPct   *float64 `json:"cashbackPercent,omitempty"`
}

// Normalize applies the documented line item defaults in place of missing
// values: quantity 1 and delivery class small.
func Normalize(items []Item) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if strings.TrimSpace(it.ID) == "" {
			continue
		}
		if it.Qty < 1 {
			it.Qty = 1
		}
		it.DeliveryClass = pricing.ParseClass(it.DeliveryClass).String()
		out = append(out, it)
	}
	return out
}

// ToPricing converts cart lines to the pricing engine's item view.
func ToPricing(items []Item) []pricing.Item {
	out := make([]pricing.Item, 0, len(items))
	for _, it := range items {
		out = append(out, pricing.Item{
			Qty:         it.Qty,
			UnitPrice:   it.UnitPrice,
			Class:       pricing.ParseClass(it.DeliveryClass),
			CashbackPct: it.CashbackPct,
		})
	}
	return out
}
