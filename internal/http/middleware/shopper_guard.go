package middleware

import (
	"net/http"
	"strings"

	"github.com/noah-isme/checkout-gateway/internal/common"
)

// ShopperHeader carries the shopper identity on every checkout request.
const ShopperHeader = "X-Shopper-ID"

// ShopperContext copies the shopper header into the request context so
// downstream handlers and the request logger can reach it.
func ShopperContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := strings.TrimSpace(r.Header.Get(ShopperHeader)); id != "" {
			r = r.WithContext(common.WithShopperID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireShopper rejects requests that carry no shopper identity.
func RequireShopper(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := common.ShopperID(r.Context()); !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":"SHOPPER_REQUIRED","message":"shopper id is required"}}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
