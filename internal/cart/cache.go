package cart

import (
	"context"
	"errors"
	"time"

	"github.com/noah-isme/checkout-gateway/internal/store"
)

const cacheKeyPrefix = "checkout:cart:"

// Cache persists the last known cart per shopper so checkout can proceed
// when the backend-of-record is unreachable.
type Cache struct {
	KV  store.KV
	TTL time.Duration
}

func (c Cache) key(shopperID string) string {
	return cacheKeyPrefix + shopperID
}

func (c Cache) ttl() time.Duration {
	if c.TTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return c.TTL
}

// Load returns the cached cart for the shopper. The second result reports
// whether a cart was present.
func (c Cache) Load(ctx context.Context, shopperID string) ([]Item, bool, error) {
	if c.KV == nil {
		return nil, false, errors.New("cart cache not configured")
	}
	var items []Item
	found, err := c.KV.GetJSON(ctx, c.key(shopperID), &items)
	if err != nil || !found {
		return nil, false, err
	}
	items = Normalize(items)
	return items, len(items) > 0, nil
}

// Save stores the cart snapshot for later fallback use.
func (c Cache) Save(ctx context.Context, shopperID string, items []Item) error {
	if c.KV == nil {
		return errors.New("cart cache not configured")
	}
	return c.KV.SetJSON(ctx, c.key(shopperID), Normalize(items), c.ttl())
}

// Clear drops the cached cart, used after a successful order.
func (c Cache) Clear(ctx context.Context, shopperID string) error {
	if c.KV == nil {
		return nil
	}
	return c.KV.Delete(ctx, c.key(shopperID))
}
