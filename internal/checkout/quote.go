package checkout

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/noah-isme/checkout-gateway/internal/cart"
	"github.com/noah-isme/checkout-gateway/internal/common"
	"github.com/noah-isme/checkout-gateway/internal/pricing"
)

// QuoteHandler prices a cart without creating a session. Useful for cart
// pages that want live totals before checkout starts.
type QuoteHandler struct {
	Fees pricing.FeeTable
}

type quoteRequest struct {
	Items          []cart.Item `json:"items"`
	DeliveryOption string      `json:"deliveryOption"`
	WalletAmount   string      `json:"walletAmount,omitempty"`
	WalletBalance  int64       `json:"walletBalance,omitempty"`
}

// Quote computes a full pricing summary for the posted cart.
func (h QuoteHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var payload quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	items := cart.Normalize(payload.Items)
	if len(items) == 0 {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "at least one item is required", nil)
		return
	}
	pickup := strings.ToLower(strings.TrimSpace(payload.DeliveryOption)) != string(DeliveryHome)
	balance := payload.WalletBalance
	if balance < 0 {
		balance = 0
	}
	summary := pricing.Compute(cart.ToPricing(items), pickup, h.Fees, payload.WalletAmount, balance)
	common.JSON(w, http.StatusOK, map[string]any{"data": toQuoteView(summary)})
}
