package storefront

import "context"

// KV is the small string store client state lives in: product discounts and
// the theme preference. *redis.KV implements it.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	SetNX(ctx context.Context, key, value string) (bool, error)
}
