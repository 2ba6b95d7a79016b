package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/mishramart/internal/domain/cart"
	"github.com/xenking/mishramart/internal/domain/product"
)

func setupTestRedis(t *testing.T) (*goredis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewClient(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	require.NoError(t, client.Close())

	_, err = NewClient(context.Background(), "not a url")
	require.Error(t, err)
}

func TestCartStore(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewCartStore(client)
	ctx := context.Background()
	slot := cart.User("u1").Slot()

	_, err := store.Load(ctx, slot)
	require.ErrorIs(t, err, cart.ErrSlotNotFound)

	size := "M"
	lines := []cart.Line{{
		ProductID:       "p1",
		Name:            "Shirt",
		Size:            &size,
		Quantity:        2,
		Price:           decimal.RequireFromString("499.50"),
		OriginalPrice:   decimal.RequireFromString("599.00"),
		DiscountPercent: 17,
	}}
	require.NoError(t, store.Save(ctx, slot, lines))
	assert.True(t, mr.Exists("mishramart_cart_u1"))
	assert.Equal(t, time.Duration(0), mr.TTL("mishramart_cart_u1"))

	got, err := store.Load(ctx, slot)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "M", *got[0].Size)
	assert.Equal(t, 2, got[0].Quantity)
	assert.True(t, lines[0].Price.Equal(got[0].Price))

	require.NoError(t, store.Save(ctx, slot, nil))
	got, err = store.Load(ctx, slot)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCartStore_CorruptSlot(t *testing.T) {
	client, mr := setupTestRedis(t)
	require.NoError(t, mr.Set(cart.Guest.Slot(), "{not json"))

	_, err := NewCartStore(client).Load(context.Background(), cart.Guest.Slot())
	require.Error(t, err)
	assert.NotErrorIs(t, err, cart.ErrSlotNotFound)
}

func TestKV(t *testing.T) {
	client, _ := setupTestRedis(t)
	kv := NewKV(client)
	ctx := context.Background()

	_, ok, err := kv.Get(ctx, "product_discount_p1")
	require.NoError(t, err)
	assert.False(t, ok)

	set, err := kv.SetNX(ctx, "product_discount_p1", "20")
	require.NoError(t, err)
	assert.True(t, set)
	set, err = kv.SetNX(ctx, "product_discount_p1", "35")
	require.NoError(t, err)
	assert.False(t, set)

	v, ok, err := kv.Get(ctx, "product_discount_p1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "20", v)

	require.NoError(t, kv.Set(ctx, "mm_theme_mode", "dark"))
	v, _, err = kv.Get(ctx, "mm_theme_mode")
	require.NoError(t, err)
	assert.Equal(t, "dark", v)
}

type countingRepo struct {
	product.Repository
	products []product.Product
	lists    int
}

func (r *countingRepo) List(context.Context) ([]product.Product, error) {
	r.lists++
	return r.products, nil
}

func (r *countingRepo) Upsert(_ context.Context, p *product.Product) error {
	r.products = append(r.products, *p)
	return nil
}

func (r *countingRepo) Delete(context.Context, string) error { return nil }

func TestCachedProducts(t *testing.T) {
	client, mr := setupTestRedis(t)
	repo := &countingRepo{products: []product.Product{{ID: "p1", Name: "Shirt", Price: decimal.NewFromInt(499)}}}
	cached := NewCachedProducts(repo, client, time.Minute, nil)
	ctx := context.Background()

	first, err := cached.List(ctx)
	require.NoError(t, err)
	second, err := cached.List(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, repo.lists)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.True(t, first[0].Price.Equal(second[0].Price))
	assert.True(t, mr.Exists(catalogKey))

	require.NoError(t, cached.Upsert(ctx, &product.Product{ID: "p2", Name: "Cap"}))
	assert.False(t, mr.Exists(catalogKey))

	got, err := cached.List(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 2, repo.lists)

	require.NoError(t, cached.Delete(ctx, "p2"))
	assert.False(t, mr.Exists(catalogKey))
}

func TestCachedProducts_RedisDown(t *testing.T) {
	client, mr := setupTestRedis(t)
	repo := &countingRepo{products: []product.Product{{ID: "p1"}}}
	cached := NewCachedProducts(repo, client, time.Minute, nil)
	mr.Close()

	got, err := cached.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestRateStore(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewRateStore(client, "rl:")
	ctx := context.Background()
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	for i := range 3 {
		q, err := store.Allow(ctx, "session:alice", 3, time.Minute, start.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		assert.True(t, q.Allowed)
		assert.Equal(t, 2-i, q.Remaining)
		assert.Equal(t, start.Add(time.Minute), q.ResetAt)
	}
	q, err := store.Allow(ctx, "session:alice", 3, time.Minute, start.Add(10*time.Second))
	require.NoError(t, err)
	assert.False(t, q.Allowed)

	q, err = store.Allow(ctx, "session:bob", 3, time.Minute, start.Add(10*time.Second))
	require.NoError(t, err)
	assert.True(t, q.Allowed, "keys have separate budgets")

	// The session token never appears in a key, and counters expire.
	for _, k := range mr.Keys() {
		assert.NotContains(t, k, "alice")
		assert.True(t, mr.TTL(k) > 0 && mr.TTL(k) <= 2*time.Minute, "ttl of %s", k)
	}

	// Half way into the next window: 4 rejected-inclusive hits * 0.5 + 1 = 3.
	q, err = store.Allow(ctx, "session:alice", 3, time.Minute, start.Add(90*time.Second))
	require.NoError(t, err)
	assert.True(t, q.Allowed)
	assert.Equal(t, 0, q.Remaining)
}

func TestRateStore_Unavailable(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewRateStore(client, "rl:")
	mr.Close()

	_, err := store.Allow(context.Background(), "k", 1, time.Minute, time.Now())
	require.Error(t, err)
}
