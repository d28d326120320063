package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/noah-isme/checkout-gateway/internal/common"
	"github.com/noah-isme/checkout-gateway/internal/http/middleware"
)

func TestRequireShopperMissing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	rec := httptest.NewRecorder()
	handler := middleware.RequireShopper(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRequireShopperPresent(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req = req.WithContext(common.WithShopperID(req.Context(), "shopper-123"))
	rec := httptest.NewRecorder()
	handler := middleware.RequireShopper(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestShopperContextCopiesHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(middleware.ShopperHeader, "shopper-123")
	rec := httptest.NewRecorder()
	var got string
	handler := middleware.ShopperContext(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = common.ShopperID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(rec, req)
	if got != "shopper-123" {
		t.Fatalf("expected shopper id in context, got %q", got)
	}
}
