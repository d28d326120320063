package checkout

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/checkout-gateway/internal/backend"
	"github.com/noah-isme/checkout-gateway/internal/cart"
	"github.com/noah-isme/checkout-gateway/internal/common"
	"github.com/noah-isme/checkout-gateway/internal/obs"
	"github.com/noah-isme/checkout-gateway/internal/pricing"
	"github.com/noah-isme/checkout-gateway/internal/store"
	"github.com/noah-isme/checkout-gateway/internal/wallet"
)

const sessionKeyPrefix = "checkout:session:"

// Backend is the backend-of-record surface the coordinator consumes.
// *backend.Client implements it; tests substitute a stub.
type Backend interface {
	Healthy(ctx context.Context) bool
	Cart(ctx context.Context, shopperID string) ([]cart.Item, error)
	WalletBalance(ctx context.Context, shopperID string) (int64, error)
	SubmitOrder(ctx context.Context, shopperID string, sub backend.OrderSubmission) (backend.OrderResult, error)
}

// Coordinator drives the checkout flow: bootstrap against the
// backend-of-record (or the local cache when it is down), guarded step
// transitions and idempotent order submission.
type Coordinator struct {
	Sessions   store.KV
	SessionTTL time.Duration
	Remote     Backend
	Carts      cart.Cache
	Wallets    wallet.Store
	Fees       pricing.FeeTable
	Guard      SubmitGuard
	Logger     zerolog.Logger
	Now        func() time.Time
}

// ErrSessionNotFound is returned when the session id does not resolve.
var ErrSessionNotFound = common.NewAppError("NOT_FOUND", "checkout session not found", http.StatusNotFound, nil)

// ErrCartEmpty aborts the flow before a session is created: there is no
// checkout without items. Clients redirect to the cart view.
var ErrCartEmpty = common.NewAppError("CART_EMPTY", "no items available for checkout", http.StatusConflict, nil)

func (c *Coordinator) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Coordinator) sessionTTL() time.Duration {
	if c.SessionTTL <= 0 {
		return 2 * time.Hour
	}
	return c.SessionTTL
}

func (c *Coordinator) save(ctx context.Context, s *Session) error {
	s.UpdatedAt = c.now()
	return c.Sessions.SetJSON(ctx, sessionKeyPrefix+s.ID, s, c.sessionTTL())
}

// Load resolves a session by id.
func (c *Coordinator) Load(ctx context.Context, sessionID string) (*Session, error) {
	var s Session
	found, err := c.Sessions.GetJSON(ctx, sessionKeyPrefix+sessionID, &s)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrSessionNotFound
	}
	return &s, nil
}

// Bootstrap creates a session from the authoritative cart and wallet, or
// from the local cache when the backend is unreachable. The chosen source is
// pinned on the session; it is not re-probed per call.
func (c *Coordinator) Bootstrap(ctx context.Context, shopperID string) (*Session, error) {
	shopperID = strings.TrimSpace(shopperID)
	if shopperID == "" {
		return nil, common.NewAppError("VALIDATION", "shopper id is required", http.StatusBadRequest, nil)
	}

	source := SourceLocal
	var items []cart.Item
	if c.Remote != nil && c.Remote.Healthy(ctx) {
		fetched, err := c.Remote.Cart(ctx, shopperID)
		if err != nil {
			c.Logger.Warn().Err(err).Str("shopper_id", shopperID).Msg("cart fetch failed, using local cache")
		} else {
			source = SourceRemote
			items = fetched
			// refresh the fallback copy while the backend is reachable
			if err := c.Carts.Save(ctx, shopperID, items); err != nil {
				c.Logger.Warn().Err(err).Msg("refresh cart cache")
			}
		}
	}
	if source == SourceLocal {
		cached, ok, err := c.Carts.Load(ctx, shopperID)
		if err != nil {
			return nil, err
		}
		if !ok {
			countBootstrap(string(SourceLocal), "cart_empty")
			return nil, ErrCartEmpty
		}
		items = cached
	}
	if len(items) == 0 {
		countBootstrap(string(source), "cart_empty")
		return nil, ErrCartEmpty
	}

	balance, err := c.walletBalance(ctx, shopperID, source)
	if err != nil {
		return nil, err
	}

	now := c.now()
	s := &Session{
		ID:            uuid.NewString(),
		ShopperID:     shopperID,
		Step:          StepShipping,
		Source:        source,
		Items:         items,
		WalletBalance: balance,
		CreatedAt:     now,
	}
	if err := c.save(ctx, s); err != nil {
		return nil, err
	}
	countBootstrap(string(source), "ok")
	c.Logger.Info().
		Str("session_id", s.ID).
		Str("shopper_id", shopperID).
		Str("source", string(source)).
		Int("items", len(items)).
		Msg("checkout_bootstrap")
	return s, nil
}

func (c *Coordinator) walletBalance(ctx context.Context, shopperID string, source Source) (int64, error) {
	if source == SourceRemote {
		balance, err := c.Remote.WalletBalance(ctx, shopperID)
		if err == nil {
			// authoritative value replaces the cached one wholesale
			if err := c.Wallets.Replace(ctx, shopperID, balance); err != nil {
				c.Logger.Warn().Err(err).Msg("refresh wallet cache")
			}
			return balance, nil
		}
		c.Logger.Warn().Err(err).Str("shopper_id", shopperID).Msg("wallet fetch failed, using cached balance")
	}
	return c.Wallets.Balance(ctx, shopperID)
}

// DeliveryInput is the shipping step payload.
type DeliveryInput struct {
	DeliveryOption string                `json:"deliveryOption"`
	Shipping       *backend.ShippingInfo `json:"shipping,omitempty"`
}

// SetDelivery records the delivery choice and advances to the payment step.
// Delivery orders require a complete shipping address; pickup requires none.
func (c *Coordinator) SetDelivery(ctx context.Context, sessionID string, in DeliveryInput) (*Session, error) {
	s, err := c.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Step != StepShipping {
		return nil, stepError(s.Step, StepShipping)
	}

	var option DeliveryOption
	switch DeliveryOption(strings.ToLower(strings.TrimSpace(in.DeliveryOption))) {
	case DeliveryPickup:
		option = DeliveryPickup
	case DeliveryHome:
		option = DeliveryHome
	default:
		return nil, common.NewAppError("VALIDATION", "deliveryOption must be pickup or delivery", http.StatusUnprocessableEntity, nil)
	}

	if option == DeliveryHome {
		if err := validateShipping(in.Shipping); err != nil {
			return nil, err
		}
		s.Shipping = in.Shipping
	} else {
		s.Shipping = nil
	}
	s.DeliveryOption = option
	c.transition(s, StepPayment)
	if err := c.save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// PaymentInput is the payment step payload. WalletAmount is free-form user
// input and is clamped, never rejected, by the pricing rules.
type PaymentInput struct {
	PaymentMethod string `json:"paymentMethod"`
	PayerPhone    string `json:"payerPhone,omitempty"`
	WalletAmount  string `json:"walletAmount,omitempty"`
	TermsAccepted bool   `json:"termsAccepted"`
}

// methodRequiresPayer reports whether the payment method needs a payer
// identifier when there is a residual amount to charge.
func methodRequiresPayer(method string) bool {
	return method == "mpesa"
}

// SetPayment records payment details and advances to confirmation. Entering
// confirmation mints the idempotency key that every submission retry of
// this logical order reuses.
func (c *Coordinator) SetPayment(ctx context.Context, sessionID string, in PaymentInput) (*Session, error) {
	s, err := c.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Step != StepPayment {
		return nil, stepError(s.Step, StepPayment)
	}

	method := strings.ToLower(strings.TrimSpace(in.PaymentMethod))
	switch method {
	case "mpesa", "card":
	default:
		return nil, common.NewAppError("VALIDATION", "paymentMethod must be mpesa or card", http.StatusUnprocessableEntity, nil)
	}
	if !in.TermsAccepted {
		return nil, common.NewAppError("VALIDATION", "terms must be accepted", http.StatusUnprocessableEntity, nil)
	}

	s.PaymentMethod = method
	s.PayerPhone = strings.TrimSpace(in.PayerPhone)
	s.WalletInput = strings.TrimSpace(in.WalletAmount)
	s.TermsAccepted = true

	quote := s.Quote(c.Fees)
	if quote.ResidualPayable > 0 && methodRequiresPayer(method) && s.PayerPhone == "" {
		return nil, common.NewAppError("VALIDATION", "payer phone is required for mpesa", http.StatusUnprocessableEntity, nil)
	}

	s.IdempotencyKey = uuid.NewString()
	c.transition(s, StepConfirmation)
	if err := c.save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Back moves one step towards the cart without any guard. From the first
// step the flow exits to the cart view instead, and completed sessions
// cannot be reopened.
func (c *Coordinator) Back(ctx context.Context, sessionID string) (*Session, error) {
	s, err := c.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	prev, ok := s.back()
	if !ok {
		if s.Step == StepComplete {
			return nil, common.NewAppError("CONFLICT", "order already completed", http.StatusConflict, nil)
		}
		return nil, common.NewAppError("AT_FIRST_STEP", "already at the first step, exit to cart", http.StatusConflict, nil)
	}
	c.transition(s, prev)
	if err := c.save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Submit places the order. A remote session posts to the backend-of-record;
// a local session settles against the cached wallet ledger. Failures leave
// the session in ConfirmationStep so the shopper can retry with the same
// idempotency key.
func (c *Coordinator) Submit(ctx context.Context, sessionID string) (*Session, error) {
	s, err := c.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Step == StepComplete {
		return nil, common.NewAppError("CONFLICT", "order already completed", http.StatusConflict, nil)
	}
	if s.Step != StepConfirmation {
		return nil, stepError(s.Step, StepConfirmation)
	}

	held, err := c.Guard.Acquire(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	if !held {
		return nil, common.NewAppError("SUBMIT_IN_FLIGHT", "an order submission is already in progress", http.StatusConflict, nil)
	}
	defer c.Guard.Release(ctx, s.ID)

	quote := s.Quote(c.Fees)
	var receipt *Receipt
	if s.Source == SourceRemote {
		receipt, err = c.submitRemote(ctx, s, quote)
	} else {
		receipt, err = c.settleLocal(ctx, s, quote)
	}
	if err != nil {
		countSubmit(string(s.Source), "error")
		return nil, err
	}

	if err := c.Carts.Clear(ctx, s.ShopperID); err != nil {
		c.Logger.Warn().Err(err).Str("shopper_id", s.ShopperID).Msg("clear cart cache")
	}
	s.Receipt = receipt
	c.transition(s, StepComplete)
	if err := c.save(ctx, s); err != nil {
		return nil, err
	}
	countSubmit(string(s.Source), "ok")
	c.Logger.Info().
		Str("session_id", s.ID).
		Str("order_id", receipt.OrderID).
		Str("path", string(s.Source)).
		Int64("wallet_applied", receipt.WalletApplied).
		Int64("residual", receipt.ResidualPaid).
		Msg("order_complete")
	return s, nil
}

func (c *Coordinator) submission(s *Session, quote pricing.Summary) backend.OrderSubmission {
	return backend.OrderSubmission{
		DeliveryOption:         string(s.DeliveryOption),
		Shipping:               s.Shipping,
		PaymentMethod:          s.PaymentMethod,
		PayerPhone:             s.PayerPhone,
		WalletApplied:          quote.WalletApplied,
		Items:                  backend.Lines(s.Items),
		ClientGrandTotal:       quote.GrandTotal,
		ClientCashbackEstimate: quote.Cashback,
		IdempotencyKey:         s.IdempotencyKey,
	}
}

func (c *Coordinator) submitRemote(ctx context.Context, s *Session, quote pricing.Summary) (*Receipt, error) {
	result, err := c.Remote.SubmitOrder(ctx, s.ShopperID, c.submission(s, quote))
	if err != nil {
		return nil, err
	}
	if result.WalletDelta != nil {
		if err := c.Wallets.Replace(ctx, s.ShopperID, *result.WalletDelta); err != nil {
			c.Logger.Warn().Err(err).Msg("replace wallet balance")
		}
	}
	return &Receipt{
		OrderID:         result.OrderID,
		WalletApplied:   quote.WalletApplied,
		ResidualPaid:    quote.ResidualPayable,
		CashbackPending: quote.Cashback,
		Source:          SourceRemote,
		MpesaAction:     result.MpesaAction,
	}, nil
}

func (c *Coordinator) settleLocal(ctx context.Context, s *Session, quote pricing.Summary) (*Receipt, error) {
	orderID := "LOCAL-" + uuid.NewString()
	_, err := c.Wallets.Settle(ctx, s.ShopperID, quote.WalletApplied, quote.Cashback,
		"order "+orderID, "cashback "+orderID)
	if err != nil {
		countSettle("error")
		return nil, err
	}
	countSettle("ok")
	return &Receipt{
		OrderID:         orderID,
		WalletApplied:   quote.WalletApplied,
		ResidualPaid:    quote.ResidualPayable,
		CashbackPending: quote.Cashback,
		Source:          SourceLocal,
	}, nil
}

func (c *Coordinator) transition(s *Session, next Step) {
	if obs.StepTransitionTotal != nil {
		obs.StepTransitionTotal.WithLabelValues(string(s.Step), string(next)).Inc()
	}
	s.Step = next
}

func stepError(current, expected Step) error {
	return common.NewAppError("WRONG_STEP",
		"operation requires the "+string(expected)+" step, session is at "+string(current),
		http.StatusConflict, nil)
}

func countBootstrap(source, result string) {
	if obs.CheckoutBootstrapTotal != nil {
		obs.CheckoutBootstrapTotal.WithLabelValues(source, result).Inc()
	}
}

func countSubmit(path, result string) {
	if obs.OrderSubmitTotal != nil {
		obs.OrderSubmitTotal.WithLabelValues(path, result).Inc()
	}
}

func countSettle(result string) {
	if obs.WalletSettleTotal != nil {
		obs.WalletSettleTotal.WithLabelValues(result).Inc()
	}
}
