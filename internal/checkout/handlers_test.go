package checkout_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/checkout-gateway/internal/checkout"
)

func newRouter(f fixture) chi.Router {
	handler := &checkout.Handler{Coord: f.coord}
	quote := checkout.QuoteHandler{Fees: testFees}

	r := chi.NewRouter()
	r.Post("/api/v1/pricing/quote", quote.Quote)
	r.Route("/api/v1/checkout", func(v chi.Router) {
		v.Post("/sessions", handler.Create)
		v.Route("/sessions/{id}", func(s chi.Router) {
			s.Get("/", handler.Get)
			s.Post("/delivery", handler.Delivery)
			s.Post("/payment", handler.Payment)
			s.Post("/back", handler.Back)
			s.Post("/submit", handler.Submit)
		})
	})
	return r
}

func postJSON(t *testing.T, router http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

type sessionEnvelope struct {
	Data struct {
		ID    string `json:"id"`
		Step  string `json:"step"`
		Quote struct {
			SubtotalExclVAT int64 `json:"subtotalExclVat"`
			VATAmount       int64 `json:"vatAmount"`
			DeliveryFee     int64 `json:"deliveryFee"`
			GrandTotal      int64 `json:"grandTotal"`
			ResidualPayable int64 `json:"residualPayable"`
		} `json:"quote"`
		Receipt *struct {
			OrderID string `json:"orderId"`
		} `json:"receipt"`
	} `json:"data"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func decodeSession(t *testing.T, rec *httptest.ResponseRecorder) sessionEnvelope {
	t.Helper()
	var env sessionEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestCheckoutFlowOverHTTP(t *testing.T) {
	remote := &stubBackend{healthy: true, items: smallCart(), balance: 1000}
	f := newFixture(t, remote)
	router := newRouter(f)

	rec := postJSON(t, router, "/api/v1/checkout/sessions", map[string]string{"shopperId": "shopper-1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	env := decodeSession(t, rec)
	require.Equal(t, "shipping", env.Data.Step)
	require.EqualValues(t, 500, env.Data.Quote.SubtotalExclVAT)
	require.EqualValues(t, 80, env.Data.Quote.VATAmount)
	require.EqualValues(t, 580, env.Data.Quote.GrandTotal)
	id := env.Data.ID

	rec = postJSON(t, router, fmt.Sprintf("/api/v1/checkout/sessions/%s/delivery", id), map[string]any{
		"deliveryOption": "pickup",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "payment", decodeSession(t, rec).Data.Step)

	rec = postJSON(t, router, fmt.Sprintf("/api/v1/checkout/sessions/%s/payment", id), map[string]any{
		"paymentMethod": "card",
		"walletAmount":  "580",
		"termsAccepted": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	env = decodeSession(t, rec)
	require.Equal(t, "confirmation", env.Data.Step)
	require.EqualValues(t, 0, env.Data.Quote.ResidualPayable)

	remote.result.OrderID = "ORD-7"
	rec = postJSON(t, router, fmt.Sprintf("/api/v1/checkout/sessions/%s/submit", id), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	env = decodeSession(t, rec)
	require.Equal(t, "complete", env.Data.Step)
	require.NotNil(t, env.Data.Receipt)
	require.Equal(t, "ORD-7", env.Data.Receipt.OrderID)
}

func TestCreateUsesShopperHeaderFallback(t *testing.T) {
	f := newFixture(t, &stubBackend{healthy: true, items: smallCart()})
	router := newRouter(f)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/sessions", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("X-Shopper-ID", "shopper-9")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestCreateEmptyCartConflicts(t *testing.T) {
	f := newFixture(t, &stubBackend{healthy: false})
	router := newRouter(f)

	rec := postJSON(t, router, "/api/v1/checkout/sessions", map[string]string{"shopperId": "shopper-1"})
	require.Equal(t, http.StatusConflict, rec.Code)
	env := decodeSession(t, rec)
	require.NotNil(t, env.Error)
	require.Equal(t, "CART_EMPTY", env.Error.Code)
}

func TestWrongStepReturnsConflict(t *testing.T) {
	f := newFixture(t, &stubBackend{healthy: true, items: smallCart()})
	router := newRouter(f)

	rec := postJSON(t, router, "/api/v1/checkout/sessions", map[string]string{"shopperId": "shopper-1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeSession(t, rec).Data.ID

	rec = postJSON(t, router, fmt.Sprintf("/api/v1/checkout/sessions/%s/submit", id), nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	env := decodeSession(t, rec)
	require.NotNil(t, env.Error)
	require.Equal(t, "WRONG_STEP", env.Error.Code)
}

func TestSessionNotFound(t *testing.T) {
	f := newFixture(t, &stubBackend{healthy: true, items: smallCart()})
	router := newRouter(f)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/checkout/sessions/missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQuoteWithoutSession(t *testing.T) {
	f := newFixture(t, &stubBackend{})
	router := newRouter(f)

	rec := postJSON(t, router, "/api/v1/pricing/quote", map[string]any{
		"items": []map[string]any{
			{"id": "p1", "price": 580, "qty": 1, "deliveryClass": "bulky"},
		},
		"deliveryOption": "delivery",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var env struct {
		Data struct {
			DeliveryFee int64 `json:"deliveryFee"`
			GrandTotal  int64 `json:"grandTotal"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.EqualValues(t, 60000, env.Data.DeliveryFee)
	require.EqualValues(t, 60580, env.Data.GrandTotal)
}

func TestQuoteRejectsEmptyCart(t *testing.T) {
	f := newFixture(t, &stubBackend{})
	router := newRouter(f)

	rec := postJSON(t, router, "/api/v1/pricing/quote", map[string]any{"items": []map[string]any{}})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
