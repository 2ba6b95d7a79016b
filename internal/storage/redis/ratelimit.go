package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xenking/mishramart/pkg/httpmiddleware"
)

// RateStore keeps rate limit counters in Redis so every API replica shares
// one budget per key. Each fixed window is a counter that expires after two
// windows; the sliding count blends it with the previous one.
//
// Unlike httpmiddleware.MemoryStore, rejected requests are counted too.
type RateStore struct {
	client goredis.UniversalClient
	prefix string
}

var _ httpmiddleware.RateStore = (*RateStore)(nil)

// NewRateStore returns a RateStore whose keys start with prefix.
func NewRateStore(client goredis.UniversalClient, prefix string) *RateStore {
	return &RateStore{client: client, prefix: prefix}
}

// Allow implements httpmiddleware.RateStore.
func (s *RateStore) Allow(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (httpmiddleware.Quota, error) {
	start := now.Truncate(window)
	base := s.counterKey(key)
	currKey := base + strconv.FormatInt(start.UnixMilli(), 10)
	prevKey := base + strconv.FormatInt(start.Add(-window).UnixMilli(), 10)

	var (
		prev *goredis.StringCmd
		curr *goredis.IntCmd
	)
	_, err := s.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		prev = p.Get(ctx, prevKey)
		curr = p.Incr(ctx, currKey)
		p.PExpire(ctx, currKey, 2*window)
		return nil
	})
	if err != nil && !errors.Is(err, goredis.Nil) {
		return httpmiddleware.Quota{}, fmt.Errorf("redis rate limit %q: %w", currKey, err)
	}

	prevCount, err := prev.Float64()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return httpmiddleware.Quota{}, fmt.Errorf("redis rate limit %q: %w", prevKey, err)
	}
	count := httpmiddleware.SlidingCount(prevCount, float64(curr.Val()), start, now, window)
	return httpmiddleware.QuotaFor(limit, count, start, window), nil
}

// counterKey hashes the limit key so session tokens are not stored in clear.
func (s *RateStore) counterKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return s.prefix + hex.EncodeToString(sum[:16]) + ":"
}
