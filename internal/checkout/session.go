package checkout

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/checkout-gateway/internal/backend"
	"github.com/noah-isme/checkout-gateway/internal/cart"
	"github.com/noah-isme/checkout-gateway/internal/pricing"
)

// Step identifies the current position in the checkout flow.
type Step string

const (
	StepShipping     Step = "shipping"
	StepPayment      Step = "payment"
	StepConfirmation Step = "confirmation"
	StepComplete     Step = "complete"
)

// DeliveryOption selects between store pickup and home delivery.
type DeliveryOption string

const (
	DeliveryPickup DeliveryOption = "pickup"
	DeliveryHome   DeliveryOption = "delivery"
)

// Source records which data source the session was bootstrapped from. It is
// decided once per session and never re-probed.
type Source string

const (
	SourceRemote Source = "remote"
	SourceLocal  Source = "local"
)

// Receipt summarises a completed order. CashbackPending is provisional: the
// backend credits it only after the delivery/return window closes.
type Receipt struct {
	OrderID         string          `json:"orderId"`
	WalletApplied   int64           `json:"walletApplied"`
	ResidualPaid    int64           `json:"residualPaid"`
	CashbackPending int64           `json:"cashbackPending"`
	Source          Source          `json:"source"`
	MpesaAction     json.RawMessage `json:"mpesaAction,omitempty"`
}

// Session is the persisted state of one checkout flow. The cart snapshot is
// taken at bootstrap and stays immutable for the whole flow; there is
// exactly one mutator per session.
type Session struct {
	ID             string                `json:"id"`
	ShopperID      string                `json:"shopperId"`
	Step           Step                  `json:"step"`
	Source         Source                `json:"source"`
	Items          []cart.Item           `json:"items"`
	WalletBalance  int64                 `json:"walletBalance"`
	DeliveryOption DeliveryOption        `json:"deliveryOption,omitempty"`
	Shipping       *backend.ShippingInfo `json:"shipping,omitempty"`
	PaymentMethod  string                `json:"paymentMethod,omitempty"`
	PayerPhone     string                `json:"payerPhone,omitempty"`
	WalletInput    string                `json:"walletInput,omitempty"`
	TermsAccepted  bool                  `json:"termsAccepted"`
	IdempotencyKey string                `json:"idempotencyKey,omitempty"`
	Receipt        *Receipt              `json:"receipt,omitempty"`
	CreatedAt      time.Time             `json:"createdAt"`
	UpdatedAt      time.Time             `json:"updatedAt"`
}

// Pickup reports whether the session charges no delivery fee.
func (s *Session) Pickup() bool {
	return s.DeliveryOption != DeliveryHome
}

// Quote recomputes the full pricing summary from the immutable cart
// snapshot and the shopper's current wallet input.
func (s *Session) Quote(fees pricing.FeeTable) pricing.Summary {
	return pricing.Compute(cart.ToPricing(s.Items), s.Pickup(), fees, s.WalletInput, s.WalletBalance)
}

// back returns the step a Back transition lands on and whether the
// transition is allowed. Leaving the first step exits the flow entirely and
// completed sessions are immutable.
func (s *Session) back() (Step, bool) {
	switch s.Step {
	case StepPayment:
		return StepShipping, true
	case StepConfirmation:
		return StepPayment, true
	default:
		return s.Step, false
	}
}
