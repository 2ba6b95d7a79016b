package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xenking/mishramart/internal/domain/cart"
)

var _ cart.Store = (*CartStore)(nil)

// CartStore keeps one JSON-encoded ledger per slot key. Slots do not expire.
type CartStore struct {
	client goredis.UniversalClient
}

// NewCartStore returns a CartStore using client.
func NewCartStore(client goredis.UniversalClient) *CartStore {
	return &CartStore{client: client}
}

// Load returns the ledger saved under slot, or cart.ErrSlotNotFound.
func (s *CartStore) Load(ctx context.Context, slot string) ([]cart.Line, error) {
	data, err := s.client.Get(ctx, slot).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, cart.ErrSlotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %q: %w", slot, err)
	}

	var lines []cart.Line
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, fmt.Errorf("unmarshal cart %q: %w", slot, err)
	}
	return lines, nil
}

// Save overwrites the ledger under slot.
func (s *CartStore) Save(ctx context.Context, slot string, lines []cart.Line) error {
	if lines == nil {
		lines = []cart.Line{}
	}
	data, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("marshal cart %q: %w", slot, err)
	}
	if err := s.client.Set(ctx, slot, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", slot, err)
	}
	return nil
}
