package common

import "context"

type ctxKey string

const shopperIDKey ctxKey = "checkout/shopper-id"

// WithShopperID stores the shopper identifier on the provided context.
func WithShopperID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, shopperIDKey, id)
}

// ShopperID extracts the shopper identifier from the context if present.
func ShopperID(ctx context.Context) (string, bool) {
	v := ctx.Value(shopperIDKey)
	if v == nil {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}
