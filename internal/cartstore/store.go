package cartstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ecomgo/storefront/internal/models"
	"github.com/redis/go-redis/v9"
)

// Store holds per-user carts as ordered snapshot arrays. The contract the
// handlers rely on: a missing or unreadable cart reads as empty, every
// mutation is written through in full, and Clear removes the key entirely
// rather than writing an empty array.
type Store interface {
	Get(ctx context.Context, userID uint) ([]models.CartItem, error)
	Save(ctx context.Context, userID uint, items []models.CartItem) error
	Clear(ctx context.Context, userID uint) error
}

const cartTTL = 30 * 24 * time.Hour

type RedisStore struct {
	RDB *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{RDB: rdb}
}

func cartKey(userID uint) string {
	return fmt.Sprintf("cart:%d", userID)
}

func (s *RedisStore) Get(ctx context.Context, userID uint) ([]models.CartItem, error) {
	data, err := s.RDB.Get(ctx, cartKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return []models.CartItem{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cartstore: get: %w", err)
	}

	var items []models.CartItem
	if err := json.Unmarshal([]byte(data), &items); err != nil {
		// A corrupt cart is treated as empty, never surfaced to the user.
		return []models.CartItem{}, nil
	}
	return items, nil
}

func (s *RedisStore) Save(ctx context.Context, userID uint, items []models.CartItem) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("cartstore: marshal: %w", err)
	}
	if err := s.RDB.Set(ctx, cartKey(userID), data, cartTTL).Err(); err != nil {
		return fmt.Errorf("cartstore: save: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, userID uint) error {
	if err := s.RDB.Del(ctx, cartKey(userID)).Err(); err != nil {
		return fmt.Errorf("cartstore: clear: %w", err)
	}
	return nil
}
