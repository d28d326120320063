package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value stored in minor units.
type Money = int64

// VATRateBps is the fixed value-added tax rate in basis points.
const VATRateBps = 1600

// DefaultCashbackPct applies when an item does not carry an explicit
// cashback percentage. An explicit zero disables cashback for the item.
const DefaultCashbackPct = 5.0

var (
	vatRate    = decimal.New(VATRateBps, -4)
	vatDivisor = decimal.New(10000+VATRateBps, -4)
	oneHundred = decimal.NewFromInt(100)
)

// Class is a coarse size bucket used to price delivery per cart.
type Class int

const (
	ClassSmall Class = iota
	ClassMedium
	ClassBulky
)

func (c Class) String() string {
	switch c {
	case ClassMedium:
		return "medium"
	case ClassBulky:
		return "bulky"
	default:
		return "small"
	}
}

// ParseClass maps a stored delivery class to its enum value. Unknown or
// empty values fall back to small.
func ParseClass(value string) Class {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "medium":
		return ClassMedium
	case "bulky":
		return ClassBulky
	default:
		return ClassSmall
	}
}

// Item describes a line item used for pricing calculation. UnitPrice is
// VAT-inclusive.
type Item struct {
	Qty         int
	UnitPrice   Money
	Class       Class
	CashbackPct *float64
}

// FeeTable holds the delivery fee per class.
type FeeTable struct {
	Small  Money
	Medium Money
	Bulky  Money
}

func (t FeeTable) fee(c Class) Money {
	switch c {
	case ClassMedium:
		return t.Medium
	case ClassBulky:
		return t.Bulky
	default:
		return t.Small
	}
}

// Breakdown decomposes the VAT-inclusive cart into its tax components.
type Breakdown struct {
	SubtotalExclVAT  Money
	VATAmount        Money
	ItemsTotalIncVAT Money
}

// Summary aggregates every computed pricing component for a checkout.
type Summary struct {
	Breakdown
	DeliveryFee     Money
	GrandTotal      Money
	WalletApplied   Money
	ResidualPayable Money
	Cashback        Money
}

// round applies round-half-away-from-zero to the nearest minor unit.
func round(d decimal.Decimal) Money {
	return d.Round(0).IntPart()
}

func exclusivePrice(inclusive Money) Money {
	return round(decimal.NewFromInt(inclusive).Div(vatDivisor))
}

func qtyOrOne(qty int) int64 {
	if qty < 1 {
		return 1
	}
	return int64(qty)
}

// VATBreakdown derives the VAT-exclusive subtotal from VAT-inclusive unit
// prices. The exclusive unit price is rounded per item; the VAT amount is
// rounded once on the aggregate subtotal so totals are stable regardless of
// line ordering.
func VATBreakdown(items []Item) Breakdown {
	var subtotal Money
	for _, it := range items {
		subtotal += exclusivePrice(it.UnitPrice) * qtyOrOne(it.Qty)
	}
	vat := round(decimal.NewFromInt(subtotal).Mul(vatRate))
	return Breakdown{
		SubtotalExclVAT:  subtotal,
		VATAmount:        vat,
		ItemsTotalIncVAT: subtotal + vat,
	}
}

// DeliveryFee returns zero for pickup. For delivery the fee of the single
// highest class present in the cart applies, not a per-item sum.
func DeliveryFee(items []Item, pickup bool, fees FeeTable) Money {
	if pickup {
		return 0
	}
	highest := ClassSmall
	for _, it := range items {
		if it.Class > highest {
			highest = it.Class
		}
		if highest == ClassBulky {
			break
		}
	}
	return fees.fee(highest)
}

// Cashback sums the per-item rebate computed on the VAT-exclusive price.
func Cashback(items []Item) Money {
	var total Money
	for _, it := range items {
		pct := DefaultCashbackPct
		if it.CashbackPct != nil {
			pct = *it.CashbackPct
		}
		if pct <= 0 {
			continue
		}
		excl := exclusivePrice(it.UnitPrice) * qtyOrOne(it.Qty)
		total += round(decimal.NewFromInt(excl).Mul(decimal.NewFromFloat(pct)).Div(oneHundred))
	}
	return total
}

// WalletApplication clamps the requested wallet amount into
// [0, min(balance, grandTotal)]. Non-numeric input counts as zero.
func WalletApplication(requested string, balance, grandTotal Money) Money {
	parsed, err := decimal.NewFromString(strings.TrimSpace(requested))
	if err != nil {
		return 0
	}
	amount := parsed.Round(0).IntPart()
	if amount < 0 {
		amount = 0
	}
	limit := balance
	if grandTotal < limit {
		limit = grandTotal
	}
	if limit < 0 {
		limit = 0
	}
	if amount > limit {
		amount = limit
	}
	return amount
}

// GrandTotal combines the VAT-inclusive items total with the delivery fee.
func GrandTotal(itemsTotalIncVAT, deliveryFee Money) Money {
	return itemsTotalIncVAT + deliveryFee
}

// ResidualPayable is the part of the grand total not covered by the wallet.
func ResidualPayable(grandTotal, walletApplied Money) Money {
	residual := grandTotal - walletApplied
	if residual < 0 {
		residual = 0
	}
	return residual
}

// Compute derives every monetary figure for a checkout in one pass.
func Compute(items []Item, pickup bool, fees FeeTable, walletRequested string, walletBalance Money) Summary {
	breakdown := VATBreakdown(items)
	fee := DeliveryFee(items, pickup, fees)
	grand := GrandTotal(breakdown.ItemsTotalIncVAT, fee)
	applied := WalletApplication(walletRequested, walletBalance, grand)
	return Summary{
		Breakdown:       breakdown,
		DeliveryFee:     fee,
		GrandTotal:      grand,
		WalletApplied:   applied,
		ResidualPayable: ResidualPayable(grand, applied),
		Cashback:        Cashback(items),
	}
}
