package checkout

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/checkout-gateway/internal/common"
	"github.com/noah-isme/checkout-gateway/internal/pricing"
)

// Handler exposes the checkout flow over HTTP.
type Handler struct {
	Coord *Coordinator
}

type sessionView struct {
	*Session
	Quote quoteView `json:"quote"`
}

type quoteView struct {
	SubtotalExclVAT  int64 `json:"subtotalExclVat"`
	VATAmount        int64 `json:"vatAmount"`
	ItemsTotalIncVAT int64 `json:"itemsTotalIncVat"`
	DeliveryFee      int64 `json:"deliveryFee"`
	GrandTotal       int64 `json:"grandTotal"`
	WalletApplied    int64 `json:"walletApplied"`
	ResidualPayable  int64 `json:"residualPayable"`
	Cashback         int64 `json:"cashbackEstimate"`
}

func toQuoteView(s pricing.Summary) quoteView {
	return quoteView{
		SubtotalExclVAT:  s.SubtotalExclVAT,
		VATAmount:        s.VATAmount,
		ItemsTotalIncVAT: s.ItemsTotalIncVAT,
		DeliveryFee:      s.DeliveryFee,
		GrandTotal:       s.GrandTotal,
		WalletApplied:    s.WalletApplied,
		ResidualPayable:  s.ResidualPayable,
		Cashback:         s.Cashback,
	}
}

func (h *Handler) view(s *Session) sessionView {
	return sessionView{Session: s, Quote: toQuoteView(s.Quote(h.Coord.Fees))}
}

func (h *Handler) writeSession(w http.ResponseWriter, status int, s *Session) {
	common.JSON(w, status, map[string]any{"data": h.view(s)})
}

// Create bootstraps a new checkout session for the shopper.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ShopperID string `json:"shopperId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if payload.ShopperID == "" {
		payload.ShopperID = r.Header.Get("X-Shopper-ID")
	}
	s, err := h.Coord.Bootstrap(r.Context(), payload.ShopperID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSession(w, http.StatusCreated, s)
}

// Get returns the session with a freshly computed quote.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.Coord.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSession(w, http.StatusOK, s)
}

// Delivery submits the shipping step.
func (h *Handler) Delivery(w http.ResponseWriter, r *http.Request) {
	var payload DeliveryInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	s, err := h.Coord.SetDelivery(r.Context(), chi.URLParam(r, "id"), payload)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSession(w, http.StatusOK, s)
}

// Payment submits the payment step.
func (h *Handler) Payment(w http.ResponseWriter, r *http.Request) {
	var payload PaymentInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	s, err := h.Coord.SetPayment(r.Context(), chi.URLParam(r, "id"), payload)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSession(w, http.StatusOK, s)
}

// Back steps towards the cart.
func (h *Handler) Back(w http.ResponseWriter, r *http.Request) {
	s, err := h.Coord.Back(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSession(w, http.StatusOK, s)
}

// Submit places the order.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	s, err := h.Coord.Submit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSession(w, http.StatusOK, s)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusBadRequest
		}
		code := appErr.Code
		if code == "" {
			code = "BAD_REQUEST"
		}
		common.JSONError(w, status, code, appErr.Message, appErr.Details)
		return
	}
	// connectivity and submission failures surface verbatim so the
	// shopper can retry
	common.JSONError(w, http.StatusBadGateway, "UPSTREAM", err.Error(), nil)
}
